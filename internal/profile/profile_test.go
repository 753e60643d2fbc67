package profile

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	p := Default()

	assert.Equal(t, "dev", p.Mode)
	assert.Equal(t, 8081, p.Port)
	assert.Equal(t, "sqlite", p.Driver)
	assert.Equal(t, 100, p.QueryCacheSize)
	assert.Equal(t, time.Hour, p.QueryCacheTTL)
	assert.Equal(t, 200, p.SemanticCacheSize)
	assert.Equal(t, 2*time.Hour, p.SemanticCacheTTL)
	assert.Equal(t, 0.92, p.SemanticThreshold)
	assert.Equal(t, 10, p.HistoryMaxTurns)
	assert.Equal(t, 5, p.HistorySummarizeAfter)
	assert.Equal(t, 500, p.HistoryMaxToolResultTokens)
	assert.Equal(t, 50, p.HistoryMaxMessages)
	assert.Equal(t, 5, p.MaxToolCalls)
	assert.Equal(t, 2000, p.MaxResultChars)
	assert.Equal(t, "sales_analyst", p.DefaultSkill)
}

func TestFromEnv(t *testing.T) {
	t.Setenv("SKILLGATE_LLM_API_KEY", "sk-test")
	t.Setenv("SKILLGATE_SEMANTIC_THRESHOLD", "0.85")
	t.Setenv("SKILLGATE_QUERY_CACHE_TTL", "30m")
	t.Setenv("SKILLGATE_MAX_TOOL_CALLS", "3")

	v := viper.New()
	SetDefaults(v)
	p := FromViper(v)

	assert.Equal(t, "sk-test", p.LLMAPIKey)
	assert.Equal(t, "sk-test", p.EmbeddingAPIKey, "embedding key falls back to the LLM key for the same provider")
	assert.Equal(t, 0.85, p.SemanticThreshold)
	assert.Equal(t, 30*time.Minute, p.QueryCacheTTL)
	assert.Equal(t, 3, p.MaxToolCalls)
	assert.True(t, p.IsAIEnabled())
}

func TestBindFlags(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	v := viper.New()
	require.NoError(t, BindFlags(fs, v))

	require.NoError(t, fs.Parse([]string{"--port", "9000", "--default-skill", "product_expert", "--llm-provider", "ollama"}))
	p := FromViper(v)

	assert.Equal(t, 9000, p.Port)
	assert.Equal(t, "product_expert", p.DefaultSkill)
	assert.True(t, p.IsAIEnabled())
	assert.Equal(t, 5, p.MaxToolCalls)
}

func TestValidate(t *testing.T) {
	t.Run("SqliteDSNFromDataDir", func(t *testing.T) {
		dir := t.TempDir()
		p := Default()
		p.Data = dir
		require.NoError(t, p.Validate())
		assert.Equal(t, filepath.Join(dir, "skillgate_dev.db"), p.DSN)
	})

	t.Run("UnknownModeBecomesDemo", func(t *testing.T) {
		p := Default()
		p.Mode = "staging"
		p.DSN = ":memory:"
		require.NoError(t, p.Validate())
		assert.Equal(t, "demo", p.Mode)
	})

	tests := []struct {
		name   string
		mutate func(p *Profile)
	}{
		{"MissingDataDir", func(p *Profile) { p.Data = "/does/not/exist" }},
		{"PostgresWithoutDSN", func(p *Profile) { p.Driver = "postgres" }},
		{"UnknownDriver", func(p *Profile) { p.Driver = "mysql"; p.DSN = "x" }},
		{"BadLogFormat", func(p *Profile) { p.DSN = "x"; p.LogFormat = "xml" }},
		{"ZeroToolCalls", func(p *Profile) { p.DSN = "x"; p.MaxToolCalls = 0 }},
		{"ThresholdAboveOne", func(p *Profile) { p.DSN = "x"; p.SemanticThreshold = 1.5 }},
		{"ZeroCacheSize", func(p *Profile) { p.DSN = "x"; p.QueryCacheSize = 0 }},
		{"SummarizeAfterTooLarge", func(p *Profile) { p.DSN = "x"; p.HistorySummarizeAfter = 20 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Default()
			tt.mutate(p)
			assert.Error(t, p.Validate())
		})
	}
}
