// Package metrics records per-skill request and per-tool call statistics
// for the gateway and persists them in hourly buckets.
package metrics

import (
	"context"
	"time"
)

// MetricsService defines the gateway metrics service interface.
type MetricsService interface {
	// RecordRequest records one answered turn under the routed skill.
	RecordRequest(ctx context.Context, skillName string, latency time.Duration, success bool)

	// RecordCacheHit records a turn answered from the response cache.
	RecordCacheHit(ctx context.Context, skillName string)

	// RecordError counts a failed turn by error code.
	RecordError(ctx context.Context, skillName, code string)

	// RecordToolCall records tool call metrics.
	RecordToolCall(ctx context.Context, toolName string, latency time.Duration, success bool)

	// GetStats retrieves statistics data.
	GetStats(ctx context.Context, timeRange TimeRange) (*Overview, error)
}

// TimeRange represents a time range for querying metrics.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Overview represents aggregated gateway metrics.
type Overview struct {
	RequestCount int64                 `json:"request_count"`
	SuccessCount int64                 `json:"success_count"`
	CacheHits    int64                 `json:"cache_hits"`
	LatencyP50Ms int64                 `json:"latency_p50_ms"`
	LatencyP95Ms int64                 `json:"latency_p95_ms"`
	SkillStats   map[string]*SkillStat `json:"skill_stats"`
	ToolStats    map[string]*ToolStat  `json:"tool_stats"`
	ErrorsByCode map[string]int64      `json:"errors_by_code"`
}

// SkillStat represents statistics for a single skill.
type SkillStat struct {
	Count        int64   `json:"count"`
	SuccessCount int64   `json:"success_count"`
	CacheHits    int64   `json:"cache_hits"`
	SuccessRate  float32 `json:"success_rate"`
	AvgLatencyMs int64   `json:"avg_latency_ms"`
}

// ToolStat represents statistics for a single tool.
type ToolStat struct {
	Count        int64   `json:"count"`
	SuccessCount int64   `json:"success_count"`
	SuccessRate  float32 `json:"success_rate"`
	AvgLatencyMs int64   `json:"avg_latency_ms"`
}

func newOverview() *Overview {
	return &Overview{
		SkillStats:   make(map[string]*SkillStat),
		ToolStats:    make(map[string]*ToolStat),
		ErrorsByCode: make(map[string]int64),
	}
}

func (o *Overview) skill(name string) *SkillStat {
	st, ok := o.SkillStats[name]
	if !ok {
		st = &SkillStat{}
		o.SkillStats[name] = st
	}
	return st
}

func (o *Overview) tool(name string) *ToolStat {
	st, ok := o.ToolStats[name]
	if !ok {
		st = &ToolStat{}
		o.ToolStats[name] = st
	}
	return st
}

// finish derives rates once all counters are merged. latencySums are in
// milliseconds keyed like SkillStats and ToolStats.
func (o *Overview) finish(skillLatency, toolLatency map[string]int64) {
	for name, st := range o.SkillStats {
		if st.Count > 0 {
			st.SuccessRate = float32(st.SuccessCount) / float32(st.Count)
			st.AvgLatencyMs = skillLatency[name] / st.Count
		}
	}
	for name, st := range o.ToolStats {
		if st.Count > 0 {
			st.SuccessRate = float32(st.SuccessCount) / float32(st.Count)
			st.AvgLatencyMs = toolLatency[name] / st.Count
		}
	}
}
