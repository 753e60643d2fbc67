package test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/skillgate/store"
)

func TestSkillMetricsStore(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)
	hour := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	_, err := ts.UpsertSkillMetrics(ctx, &store.UpsertSkillMetrics{
		HourBucket: hour, SkillName: "sales_analyst", RequestCount: 2, SuccessCount: 2, CacheHits: 1, LatencySumMs: 300, Errors: "{}",
	})
	require.NoError(t, err)

	// A second upsert in the same hour accumulates counters.
	m, err := ts.UpsertSkillMetrics(ctx, &store.UpsertSkillMetrics{
		HourBucket: hour, SkillName: "sales_analyst", RequestCount: 1, LatencySumMs: 100, LatencyP95Ms: 180, Errors: `{"LLM_UNAVAILABLE":1}`,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), m.RequestCount)
	assert.Equal(t, int64(2), m.SuccessCount)
	assert.Equal(t, int64(1), m.CacheHits)
	assert.Equal(t, int64(400), m.LatencySumMs)
	assert.Equal(t, int32(180), m.LatencyP95Ms)
	assert.True(t, hour.Equal(m.HourBucket))

	_, err = ts.UpsertSkillMetrics(ctx, &store.UpsertSkillMetrics{HourBucket: hour.Add(-48 * time.Hour), SkillName: "dealer_analyst", RequestCount: 1, Errors: "{}"})
	require.NoError(t, err)

	name := "sales_analyst"
	list, err := ts.ListSkillMetrics(ctx, &store.FindSkillMetrics{SkillName: &name})
	require.NoError(t, err)
	require.Len(t, list, 1)

	start := hour.Add(-time.Hour)
	list, err = ts.ListSkillMetrics(ctx, &store.FindSkillMetrics{StartTime: &start})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	before := hour.Add(-24 * time.Hour)
	require.NoError(t, ts.DeleteSkillMetrics(ctx, &store.DeleteSkillMetrics{BeforeTime: &before}))
	list, err = ts.ListSkillMetrics(ctx, &store.FindSkillMetrics{})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	assert.Error(t, ts.DeleteSkillMetrics(ctx, &store.DeleteSkillMetrics{}))
}

func TestToolMetricsStore(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)
	hour := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		_, err := ts.UpsertToolMetrics(ctx, &store.UpsertToolMetrics{
			HourBucket: hour, ToolName: "query_sales_data", CallCount: 1, SuccessCount: 1, LatencySumMs: 20,
		})
		require.NoError(t, err)
	}

	list, err := ts.ListToolMetrics(ctx, &store.FindToolMetrics{Limit: 10})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(3), list[0].CallCount)
	assert.Equal(t, int64(60), list[0].LatencySumMs)

	after := hour.Add(time.Hour)
	require.NoError(t, ts.DeleteToolMetrics(ctx, &store.DeleteToolMetrics{BeforeTime: &after}))
	list, err = ts.ListToolMetrics(ctx, &store.FindToolMetrics{})
	require.NoError(t, err)
	assert.Empty(t, list)
}
