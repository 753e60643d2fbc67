package agent

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hrygo/skillgate/plugin/ai/cache"
)

const (
	maxDurationSamples = 100
	maxLatencySamples  = 50
)

// AgentMetrics collects in-process chat turn statistics.
// All operations are thread-safe for concurrent access.
type AgentMetrics struct {
	mu sync.RWMutex

	// Recent turn durations and completion rounds
	turnDuration []time.Duration
	roundCount   []int

	totalTurns      atomic.Int64
	successfulTurns atomic.Int64
	failedTurns     atomic.Int64
	budgetExhausted atomic.Int64

	toolCalls    map[string]*atomic.Int64
	toolFailures map[string]*atomic.Int64
	toolLatency  map[string][]time.Duration

	errorsByCode map[ErrorCode]int64

	exactHits    atomic.Int64
	semanticHits atomic.Int64
	cacheMisses  atomic.Int64
}

// NewAgentMetrics creates a new metrics collector.
func NewAgentMetrics() *AgentMetrics {
	return &AgentMetrics{
		turnDuration: make([]time.Duration, 0, maxDurationSamples),
		roundCount:   make([]int, 0, maxDurationSamples),
		toolCalls:    make(map[string]*atomic.Int64),
		toolFailures: make(map[string]*atomic.Int64),
		toolLatency:  make(map[string][]time.Duration),
		errorsByCode: make(map[ErrorCode]int64),
	}
}

// RecordTurn records a completed chat turn.
func (m *AgentMetrics) RecordTurn(duration time.Duration, rounds int, success bool) {
	m.totalTurns.Add(1)
	if success {
		m.successfulTurns.Add(1)
	} else {
		m.failedTurns.Add(1)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.turnDuration) >= maxDurationSamples {
		m.turnDuration = m.turnDuration[1:]
		m.roundCount = m.roundCount[1:]
	}
	m.turnDuration = append(m.turnDuration, duration)
	m.roundCount = append(m.roundCount, rounds)
}

// RecordToolCall records a tool execution.
func (m *AgentMetrics) RecordToolCall(tool string, duration time.Duration, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.toolCalls[tool] == nil {
		m.toolCalls[tool] = &atomic.Int64{}
		m.toolFailures[tool] = &atomic.Int64{}
		m.toolLatency[tool] = make([]time.Duration, 0, maxLatencySamples)
	}

	m.toolCalls[tool].Add(1)
	if !success {
		m.toolFailures[tool].Add(1)
	}

	if len(m.toolLatency[tool]) >= maxLatencySamples {
		m.toolLatency[tool] = m.toolLatency[tool][1:]
	}
	m.toolLatency[tool] = append(m.toolLatency[tool], duration)
}

// RecordError counts a failed or degraded turn by code.
func (m *AgentMetrics) RecordError(code ErrorCode) {
	if code == ErrCodeToolBudgetExhausted {
		m.budgetExhausted.Add(1)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorsByCode[code]++
}

// RecordCacheLookup records the level that answered, or a miss.
func (m *AgentMetrics) RecordCacheLookup(source cache.Source) {
	switch source {
	case cache.SourceExact:
		m.exactHits.Add(1)
	case cache.SourceSemantic:
		m.semanticHits.Add(1)
	default:
		m.cacheMisses.Add(1)
	}
}

// GetSuccessRate returns the success rate as a percentage (0-100).
func (m *AgentMetrics) GetSuccessRate() float64 {
	total := m.totalTurns.Load()
	if total == 0 {
		return 0
	}
	return float64(m.successfulTurns.Load()) / float64(total) * 100
}

// GetCacheHitRate returns the share of turns answered from either cache level
// as a percentage.
func (m *AgentMetrics) GetCacheHitRate() float64 {
	hits := m.exactHits.Load() + m.semanticHits.Load()
	total := hits + m.cacheMisses.Load()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total) * 100
}

func (m *AgentMetrics) averageDuration() time.Duration {
	if len(m.turnDuration) == 0 {
		return 0
	}
	var sum time.Duration
	for _, d := range m.turnDuration {
		sum += d
	}
	return sum / time.Duration(len(m.turnDuration))
}

func (m *AgentMetrics) averageRounds() float64 {
	if len(m.roundCount) == 0 {
		return 0
	}
	var sum int
	for _, r := range m.roundCount {
		sum += r
	}
	return float64(sum) / float64(len(m.roundCount))
}

func (m *AgentMetrics) p95Duration() time.Duration {
	if len(m.turnDuration) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), m.turnDuration...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	idx := int(float64(len(sorted)) * 0.95)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// ToolStats represents statistics for a single tool.
type ToolStats struct {
	Name           string        `json:"name"`
	TotalCalls     int64         `json:"total_calls"`
	Failures       int64         `json:"failures"`
	SuccessRate    float64       `json:"success_rate"`
	AverageLatency time.Duration `json:"average_latency"`
}

// GetAllToolStats returns statistics for all tools sorted by name.
func (m *AgentMetrics) GetAllToolStats() []ToolStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]ToolStats, 0, len(m.toolCalls))
	for tool, counter := range m.toolCalls {
		stats := ToolStats{
			Name:       tool,
			TotalCalls: counter.Load(),
			Failures:   m.toolFailures[tool].Load(),
		}
		if stats.TotalCalls > 0 {
			stats.SuccessRate = 100 - float64(stats.Failures)/float64(stats.TotalCalls)*100
		}
		if latencies := m.toolLatency[tool]; len(latencies) > 0 {
			var sum time.Duration
			for _, l := range latencies {
				sum += l
			}
			stats.AverageLatency = sum / time.Duration(len(latencies))
		}
		out = append(out, stats)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// MetricsSummary represents a summary of all metrics.
type MetricsSummary struct {
	TotalTurns      int64               `json:"total_turns"`
	SuccessfulTurns int64               `json:"successful_turns"`
	FailedTurns     int64               `json:"failed_turns"`
	BudgetExhausted int64               `json:"budget_exhausted"`
	SuccessRate     float64             `json:"success_rate"`
	AverageDuration time.Duration       `json:"average_duration"`
	P95Duration     time.Duration       `json:"p95_duration"`
	AverageRounds   float64             `json:"average_rounds"`
	ExactHits       int64               `json:"exact_hits"`
	SemanticHits    int64               `json:"semantic_hits"`
	CacheMisses     int64               `json:"cache_misses"`
	CacheHitRate    float64             `json:"cache_hit_rate"`
	Errors          map[ErrorCode]int64 `json:"errors"`
	Tools           []ToolStats         `json:"tools"`
}

// GetSummary returns a summary of all metrics.
func (m *AgentMetrics) GetSummary() MetricsSummary {
	tools := m.GetAllToolStats()

	m.mu.RLock()
	defer m.mu.RUnlock()

	errs := make(map[ErrorCode]int64, len(m.errorsByCode))
	for code, n := range m.errorsByCode {
		errs[code] = n
	}
	return MetricsSummary{
		TotalTurns:      m.totalTurns.Load(),
		SuccessfulTurns: m.successfulTurns.Load(),
		FailedTurns:     m.failedTurns.Load(),
		BudgetExhausted: m.budgetExhausted.Load(),
		SuccessRate:     m.GetSuccessRate(),
		AverageDuration: m.averageDuration(),
		P95Duration:     m.p95Duration(),
		AverageRounds:   m.averageRounds(),
		ExactHits:       m.exactHits.Load(),
		SemanticHits:    m.semanticHits.Load(),
		CacheMisses:     m.cacheMisses.Load(),
		CacheHitRate:    m.GetCacheHitRate(),
		Errors:          errs,
		Tools:           tools,
	}
}

// LogSummary logs the current metrics summary.
func (m *AgentMetrics) LogSummary() {
	summary := m.GetSummary()
	slog.Info("agent_metrics_summary",
		"total_turns", summary.TotalTurns,
		"success_rate", fmtFloat(summary.SuccessRate),
		"avg_duration_ms", summary.AverageDuration.Milliseconds(),
		"p95_duration_ms", summary.P95Duration.Milliseconds(),
		"avg_rounds", fmtFloat(summary.AverageRounds),
		"budget_exhausted", summary.BudgetExhausted,
		"cache_hit_rate", fmtFloat(summary.CacheHitRate),
	)
}

func fmtFloat(f float64) string {
	return fmt.Sprintf("%.2f", f)
}
