package metrics

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MockMetricsService is a mock implementation of MetricsService for testing.
type MockMetricsService struct {
	mu        sync.RWMutex
	requests  []requestRecord
	toolCalls []ToolCallRecord
	cacheHits map[string]int64
	errors    map[string]int64
}

type requestRecord struct {
	SkillName string
	Latency   time.Duration
	Success   bool
	Timestamp time.Time
}

// ToolCallRecord is one recorded tool call.
type ToolCallRecord struct {
	ToolName  string
	Latency   time.Duration
	Success   bool
	Timestamp time.Time
}

// NewMockMetricsService creates a new MockMetricsService.
func NewMockMetricsService() *MockMetricsService {
	return &MockMetricsService{
		requests:  make([]requestRecord, 0),
		toolCalls: make([]ToolCallRecord, 0),
		cacheHits: make(map[string]int64),
		errors:    make(map[string]int64),
	}
}

// RecordRequest records request metrics.
func (m *MockMetricsService) RecordRequest(_ context.Context, skillName string, latency time.Duration, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, requestRecord{
		SkillName: skillName,
		Latency:   latency,
		Success:   success,
		Timestamp: time.Now(),
	})
}

// RecordCacheHit records a cached answer.
func (m *MockMetricsService) RecordCacheHit(_ context.Context, skillName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cacheHits[skillName]++
}

// RecordError counts a failed turn by code.
func (m *MockMetricsService) RecordError(_ context.Context, _ string, code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[code]++
}

// RecordToolCall records tool call metrics.
func (m *MockMetricsService) RecordToolCall(_ context.Context, toolName string, latency time.Duration, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.toolCalls = append(m.toolCalls, ToolCallRecord{
		ToolName:  toolName,
		Latency:   latency,
		Success:   success,
		Timestamp: time.Now(),
	})
}

// ToolCalls returns a copy of the recorded tool calls.
func (m *MockMetricsService) ToolCalls() []ToolCallRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]ToolCallRecord(nil), m.toolCalls...)
}

// GetStats retrieves statistics data.
func (m *MockMetricsService) GetStats(_ context.Context, timeRange TimeRange) (*Overview, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := newOverview()
	skillLatency := make(map[string]int64)
	toolLatency := make(map[string]int64)
	inRange := func(ts time.Time) bool {
		return (timeRange.Start.IsZero() || !ts.Before(timeRange.Start)) &&
			(timeRange.End.IsZero() || !ts.After(timeRange.End))
	}

	var latencies []int64
	for _, r := range m.requests {
		if !inRange(r.Timestamp) {
			continue
		}
		stats.RequestCount++
		st := stats.skill(r.SkillName)
		st.Count++
		if r.Success {
			stats.SuccessCount++
			st.SuccessCount++
		}
		latencies = append(latencies, r.Latency.Milliseconds())
		skillLatency[r.SkillName] += r.Latency.Milliseconds()
	}

	for _, c := range m.toolCalls {
		if !inRange(c.Timestamp) {
			continue
		}
		st := stats.tool(c.ToolName)
		st.Count++
		if c.Success {
			st.SuccessCount++
		}
		toolLatency[c.ToolName] += c.Latency.Milliseconds()
	}

	for name, n := range m.cacheHits {
		stats.CacheHits += n
		stats.skill(name).CacheHits += n
	}
	for code, n := range m.errors {
		stats.ErrorsByCode[code] = n
	}

	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
		stats.LatencyP50Ms = percentile(latencies, 50)
		stats.LatencyP95Ms = percentile(latencies, 95)
	}

	stats.finish(skillLatency, toolLatency)
	return stats, nil
}

// Clear removes all recorded metrics (for testing).
func (m *MockMetricsService) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = make([]requestRecord, 0)
	m.toolCalls = make([]ToolCallRecord, 0)
	m.cacheHits = make(map[string]int64)
	m.errors = make(map[string]int64)
}

// Ensure MockMetricsService implements MetricsService
var _ MetricsService = (*MockMetricsService)(nil)
