package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hrygo/skillgate/store"
)

// ErrMetricsNotConfigured is returned when metrics persistence is not configured.
var ErrMetricsNotConfigured = errors.New("metrics persistence not configured")

// Service implements the MetricsService interface with real storage.
type Service struct {
	store      *store.Store
	aggregator *Aggregator
	persister  *Persister
}

// NewService creates a new metrics service.
// If store is nil, metrics will only be aggregated in memory (no persistence).
func NewService(s *store.Store, cfg PersisterConfig) *Service {
	aggregator := NewAggregator()

	svc := &Service{
		store:      s,
		aggregator: aggregator,
	}

	if s != nil {
		svc.persister = NewPersister(s, aggregator, cfg)
		svc.persister.Start()
	} else {
		slog.Warn("metrics service initialized without store (persistence disabled)")
	}

	return svc
}

// Close stops the metrics service and flushes remaining data.
func (s *Service) Close() {
	if s.persister != nil {
		s.persister.Close()
	}
}

// RecordRequest records a routed turn.
func (s *Service) RecordRequest(_ context.Context, skillName string, latency time.Duration, success bool) {
	s.aggregator.RecordSkillRequest(skillName, latency, success)
}

// RecordCacheHit records a cached answer.
func (s *Service) RecordCacheHit(_ context.Context, skillName string) {
	s.aggregator.RecordCacheHit(skillName)
}

// RecordError counts a failed turn by code.
func (s *Service) RecordError(_ context.Context, skillName, code string) {
	s.aggregator.RecordError(skillName, code)
}

// RecordToolCall records a tool call metric.
func (s *Service) RecordToolCall(_ context.Context, toolName string, latency time.Duration, success bool) {
	s.aggregator.RecordToolCall(toolName, latency, success)
}

// GetStats merges in-memory counters with persisted buckets in timeRange.
// A zero bound leaves that side of the range open.
func (s *Service) GetStats(ctx context.Context, timeRange TimeRange) (*Overview, error) {
	stats := newOverview()
	skillLatency := make(map[string]int64)
	toolLatency := make(map[string]int64)
	s.aggregator.collect(stats, skillLatency, toolLatency)

	if s.store == nil {
		stats.finish(skillLatency, toolLatency)
		return stats, nil
	}

	find := &store.FindSkillMetrics{Limit: 1000}
	findTools := &store.FindToolMetrics{Limit: 1000}
	if !timeRange.Start.IsZero() {
		find.StartTime = &timeRange.Start
		findTools.StartTime = &timeRange.Start
	}
	if !timeRange.End.IsZero() {
		find.EndTime = &timeRange.End
		findTools.EndTime = &timeRange.End
	}

	skillMetrics, err := s.store.ListSkillMetrics(ctx, find)
	if err != nil {
		// Log error but return in-memory stats
		slog.Warn("failed to query persisted skill metrics", "error", err)
		stats.finish(skillLatency, toolLatency)
		return stats, nil
	}

	memoryHasLatency := stats.LatencyP50Ms > 0 || stats.LatencyP95Ms > 0
	var weightedP50, weightedP95, weight int64
	for _, m := range skillMetrics {
		stats.RequestCount += m.RequestCount
		stats.SuccessCount += m.SuccessCount
		stats.CacheHits += m.CacheHits

		st := stats.skill(m.SkillName)
		st.Count += m.RequestCount
		st.SuccessCount += m.SuccessCount
		st.CacheHits += m.CacheHits
		skillLatency[m.SkillName] += m.LatencySumMs

		weightedP50 += int64(m.LatencyP50Ms) * m.RequestCount
		weightedP95 += int64(m.LatencyP95Ms) * m.RequestCount
		weight += m.RequestCount

		for code, n := range decodeErrors(m.Errors) {
			stats.ErrorsByCode[code] += n
		}
	}
	if !memoryHasLatency && weight > 0 {
		stats.LatencyP50Ms = weightedP50 / weight
		stats.LatencyP95Ms = weightedP95 / weight
	}

	toolMetrics, err := s.store.ListToolMetrics(ctx, findTools)
	if err != nil {
		slog.Warn("failed to query persisted tool metrics", "error", err)
	}
	for _, m := range toolMetrics {
		st := stats.tool(m.ToolName)
		st.Count += m.CallCount
		st.SuccessCount += m.SuccessCount
		toolLatency[m.ToolName] += m.LatencySumMs
	}

	stats.finish(skillLatency, toolLatency)
	return stats, nil
}

// Flush forces an immediate flush of metrics to the database.
func (s *Service) Flush(ctx context.Context) error {
	if s.persister == nil {
		return ErrMetricsNotConfigured
	}
	return s.persister.FlushAll(ctx)
}

// HasPersistence returns true if metrics persistence is enabled.
func (s *Service) HasPersistence() bool {
	return s.persister != nil
}

func decodeErrors(raw string) map[string]int64 {
	if raw == "" {
		return nil
	}
	var counts map[string]int64
	if err := json.Unmarshal([]byte(raw), &counts); err != nil {
		slog.Debug("ignoring malformed metrics errors column", "error", err)
		return nil
	}
	return counts
}

var _ MetricsService = (*Service)(nil)
