package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMetricsServiceContract tests the MetricsService contract.
func TestMetricsServiceContract(t *testing.T) {
	ctx := context.Background()
	svc := NewMockMetricsService()

	t.Run("RecordRequest_StoresData", func(t *testing.T) {
		svc.Clear()
		svc.RecordRequest(ctx, "sales_analyst", 100*time.Millisecond, true)
		svc.RecordRequest(ctx, "inventory_analyst", 200*time.Millisecond, true)
		svc.RecordRequest(ctx, "product_expert", 150*time.Millisecond, false)

		stats, err := svc.GetStats(ctx, TimeRange{})
		require.NoError(t, err)
		assert.Equal(t, int64(3), stats.RequestCount)
		assert.Equal(t, int64(2), stats.SuccessCount)
	})

	t.Run("RecordToolCall_StoresData", func(t *testing.T) {
		svc.Clear()
		svc.RecordToolCall(ctx, "query_sales_data", 50*time.Millisecond, true)
		svc.RecordToolCall(ctx, "search_products", 100*time.Millisecond, false)

		calls := svc.ToolCalls()
		require.Len(t, calls, 2)
		assert.Equal(t, "search_products", calls[1].ToolName)
		assert.False(t, calls[1].Success)
	})

	t.Run("GetStats_CalculatesPercentiles", func(t *testing.T) {
		svc.Clear()
		for i := 1; i <= 10; i++ {
			svc.RecordRequest(ctx, "sales_analyst", time.Duration(i*10)*time.Millisecond, true)
		}

		stats, err := svc.GetStats(ctx, TimeRange{})
		require.NoError(t, err)
		assert.InDelta(t, 50, stats.LatencyP50Ms, 10)
		assert.GreaterOrEqual(t, stats.LatencyP95Ms, int64(80))
	})

	t.Run("GetStats_GroupsBySkill", func(t *testing.T) {
		svc.Clear()
		svc.RecordRequest(ctx, "sales_analyst", 100*time.Millisecond, true)
		svc.RecordRequest(ctx, "sales_analyst", 200*time.Millisecond, true)
		svc.RecordRequest(ctx, "dealer_analyst", 150*time.Millisecond, true)
		svc.RecordRequest(ctx, "dealer_analyst", 150*time.Millisecond, false)

		stats, err := svc.GetStats(ctx, TimeRange{})
		require.NoError(t, err)
		require.Contains(t, stats.SkillStats, "sales_analyst")
		assert.Equal(t, int64(2), stats.SkillStats["sales_analyst"].Count)
		assert.Equal(t, float32(1.0), stats.SkillStats["sales_analyst"].SuccessRate)
		assert.Equal(t, int64(150), stats.SkillStats["sales_analyst"].AvgLatencyMs)
		assert.Equal(t, float32(0.5), stats.SkillStats["dealer_analyst"].SuccessRate)
	})

	t.Run("GetStats_TracksErrorsAndCacheHits", func(t *testing.T) {
		svc.Clear()
		svc.RecordError(ctx, "sales_analyst", "LLM_UNAVAILABLE")
		svc.RecordError(ctx, "sales_analyst", "LLM_UNAVAILABLE")
		svc.RecordCacheHit(ctx, "sales_analyst")

		stats, err := svc.GetStats(ctx, TimeRange{})
		require.NoError(t, err)
		assert.Equal(t, int64(2), stats.ErrorsByCode["LLM_UNAVAILABLE"])
		assert.Equal(t, int64(1), stats.CacheHits)
	})

	t.Run("GetStats_FiltersTimeRange", func(t *testing.T) {
		svc.Clear()
		svc.RecordRequest(ctx, "sales_analyst", 100*time.Millisecond, true)

		stats, err := svc.GetStats(ctx, TimeRange{Start: time.Now().Add(time.Hour)})
		require.NoError(t, err)
		assert.Equal(t, int64(0), stats.RequestCount)
	})

	t.Run("GetStats_EmptyData", func(t *testing.T) {
		svc.Clear()

		stats, err := svc.GetStats(ctx, TimeRange{})
		require.NoError(t, err)
		assert.Equal(t, int64(0), stats.RequestCount)
		assert.NotNil(t, stats.SkillStats)
		assert.NotNil(t, stats.ErrorsByCode)
	})
}
