package agent

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/skillgate/plugin/ai/cache"
)

func TestAgentMetrics_Turns(t *testing.T) {
	m := NewAgentMetrics()
	m.RecordTurn(100*time.Millisecond, 1, true)
	m.RecordTurn(300*time.Millisecond, 3, true)
	m.RecordTurn(200*time.Millisecond, 2, false)

	s := m.GetSummary()
	assert.Equal(t, int64(3), s.TotalTurns)
	assert.Equal(t, int64(1), s.FailedTurns)
	assert.InDelta(t, 66.67, s.SuccessRate, 0.01)
	assert.Equal(t, 200*time.Millisecond, s.AverageDuration)
	assert.Equal(t, 300*time.Millisecond, s.P95Duration)
	assert.InDelta(t, 2.0, s.AverageRounds, 1e-9)
}

func TestAgentMetrics_DurationWindow(t *testing.T) {
	m := NewAgentMetrics()
	for i := 0; i < maxDurationSamples+10; i++ {
		m.RecordTurn(time.Second, 1, true)
	}
	assert.Len(t, m.turnDuration, maxDurationSamples)
	assert.Equal(t, int64(maxDurationSamples+10), m.GetSummary().TotalTurns)
}

func TestAgentMetrics_CacheAndErrors(t *testing.T) {
	m := NewAgentMetrics()
	assert.Zero(t, m.GetCacheHitRate())

	m.RecordCacheLookup(cache.SourceExact)
	m.RecordCacheLookup(cache.SourceSemantic)
	m.RecordCacheLookup(cache.SourceNone)
	m.RecordCacheLookup(cache.SourceNone)
	assert.InDelta(t, 50.0, m.GetCacheHitRate(), 1e-9)

	m.RecordError(ErrCodeToolBudgetExhausted)
	m.RecordError(ErrCodeLLMUnavailable)
	m.RecordError(ErrCodeLLMUnavailable)

	s := m.GetSummary()
	assert.Equal(t, int64(1), s.BudgetExhausted)
	assert.Equal(t, int64(2), s.Errors[ErrCodeLLMUnavailable])
	assert.Equal(t, int64(1), s.ExactHits)
	assert.Equal(t, int64(1), s.SemanticHits)
}

func TestAgentMetrics_ToolStats(t *testing.T) {
	m := NewAgentMetrics()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m.RecordToolCall("query_sales_data", 10*time.Millisecond, i%4 != 0)
		}(i)
	}
	wg.Wait()
	m.RecordToolCall("analyze_trends", 30*time.Millisecond, true)

	stats := m.GetAllToolStats()
	require.Len(t, stats, 2)
	assert.Equal(t, "analyze_trends", stats[0].Name)
	assert.Equal(t, "query_sales_data", stats[1].Name)
	assert.Equal(t, int64(20), stats[1].TotalCalls)
	assert.Equal(t, int64(5), stats[1].Failures)
	assert.InDelta(t, 75.0, stats[1].SuccessRate, 1e-9)
	assert.Equal(t, 10*time.Millisecond, stats[1].AverageLatency)
}
