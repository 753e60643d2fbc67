package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/skillgate/internal/profile"
	"github.com/hrygo/skillgate/plugin/ai"
	"github.com/hrygo/skillgate/plugin/ai/skill"
	storetest "github.com/hrygo/skillgate/store/test"
)

func TestNewRouter(t *testing.T) {
	p := profile.Default()
	r, err := NewRouter(p)
	require.NoError(t, err)
	assert.Equal(t, skill.SalesAnalyst, r.FallbackSkill())

	p.DefaultSkill = "astrologer"
	_, err = NewRouter(p)
	assert.Error(t, err)
}

func TestNewFromProfile(t *testing.T) {
	ctx := context.Background()
	s := storetest.NewTestingStore(ctx, t)

	p := profile.Default()
	p.Mode = "demo"
	p.EmbeddingEnabled = false
	p.MaxToolCalls = 3

	t.Run("requires credentials without an injected model", func(t *testing.T) {
		p := *p
		p.LLMAPIKey = ""
		_, err := NewFromProfile(ctx, &p, s, nil)
		assert.Error(t, err)
	})

	t.Run("builds a working agent", func(t *testing.T) {
		llm := ai.NewMockLLMService(ai.MockText("Sales were flat."))
		a, err := NewFromProfile(ctx, p, s, llm)
		require.NoError(t, err)
		defer a.Close()

		assert.Equal(t, 3, a.cfg.MaxToolCalls)
		assert.False(t, a.cache.SemanticEnabled())
		assert.NotEmpty(t, a.tools.Names())

		resp, err := a.Chat(ctx, "", "Show me total revenue")
		require.NoError(t, err)
		assert.Equal(t, "Sales were flat.", resp.Content)
		assert.Equal(t, skill.SalesAnalyst, resp.Skill)
	})
}
