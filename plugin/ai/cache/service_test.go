package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_TwoLevelLookup(t *testing.T) {
	ctx := context.Background()
	svc := NewService(DefaultServiceConfig())
	defer svc.Close()

	svc.Set(ctx, "Top products in 2024", "MS 271 leads revenue", "sales_analyst", []float32{1, 0, 0})

	t.Run("Exact", func(t *testing.T) {
		got := svc.Get(ctx, "top products in 2024", nil)
		require.True(t, got.Hit())
		assert.Equal(t, SourceExact, got.Source)
	})

	t.Run("Semantic", func(t *testing.T) {
		got := svc.Get(ctx, "which products sold best in 2024", []float32{0.99, 0.05, 0})
		require.True(t, got.Hit())
		assert.Equal(t, SourceSemantic, got.Source)
		assert.Equal(t, "MS 271 leads revenue", got.Entry.Response)
	})

	t.Run("MissWithoutEmbedding", func(t *testing.T) {
		got := svc.Get(ctx, "which products sold best in 2024", nil)
		assert.False(t, got.Hit())
		assert.Equal(t, SourceNone, got.Source)
	})

	stats := svc.Stats(ctx)
	assert.Equal(t, 1, stats.Exact.Size)
	assert.Equal(t, 1, stats.Semantic.Size)
	assert.Equal(t, int64(1), stats.Semantic.Hits)

	svc.Clear(ctx)
	stats = svc.Stats(ctx)
	assert.Zero(t, stats.Exact.Size)
	assert.Zero(t, stats.Semantic.Size)
}

func TestService_SemanticDisabled(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultServiceConfig()
	cfg.SemanticEnabled = false
	svc := NewService(cfg)
	defer svc.Close()

	svc.Set(ctx, "q", "a", "", []float32{1})
	assert.False(t, svc.SemanticEnabled())
	assert.False(t, svc.Get(ctx, "other", []float32{1}).Hit())
	assert.Nil(t, svc.Snapshot())
	assert.Zero(t, svc.Restore([]SemanticEntry{{Embedding: []float32{1}}}))
}

func TestService_SnapshotRestore(t *testing.T) {
	ctx := context.Background()
	src := NewService(DefaultServiceConfig())
	defer src.Close()
	src.Set(ctx, "q", "a", "sales_analyst", []float32{0, 1})

	dst := NewService(DefaultServiceConfig())
	defer dst.Close()
	assert.Equal(t, 1, dst.Restore(src.Snapshot()))

	got := dst.Get(ctx, "different wording", []float32{0, 1})
	require.True(t, got.Hit())
	assert.Equal(t, "sales_analyst", got.Entry.SkillName)
}

func TestService_CleanupLoop(t *testing.T) {
	cfg := DefaultServiceConfig()
	cfg.QueryTTL = 10 * time.Millisecond
	cfg.CleanupInterval = 5 * time.Millisecond
	svc := NewService(cfg)
	defer svc.Close()

	svc.Set(context.Background(), "q", "a", "", nil)
	assert.Eventually(t, func() bool {
		return svc.Stats(context.Background()).Exact.Size == 0
	}, time.Second, 5*time.Millisecond)
}

func TestService_Concurrency(t *testing.T) {
	ctx := context.Background()
	svc := NewService(DefaultServiceConfig())
	defer svc.Close()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				q := string(rune('a' + (id+j)%26))
				svc.Set(ctx, q, "v", "", []float32{float32(id), float32(j)})
				svc.Get(ctx, q, []float32{float32(j), float32(id)})
			}
		}(i)
	}
	wg.Wait()

	stats := svc.Stats(ctx)
	assert.LessOrEqual(t, stats.Exact.Size, DefaultQueryMaxSize)
	assert.LessOrEqual(t, stats.Semantic.Size, DefaultSemanticMaxSize)
}
