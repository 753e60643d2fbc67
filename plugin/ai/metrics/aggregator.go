package metrics

import (
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// Aggregator aggregates metrics in memory before persisting to database.
type Aggregator struct {
	mu  sync.RWMutex
	now func() time.Time

	// Skill metrics: key = "hourBucket|skillName"
	skillMetrics map[string]*skillBucket

	// Tool metrics: key = "hourBucket|toolName"
	toolMetrics map[string]*toolBucket
}

type skillBucket struct {
	hourBucket   time.Time
	skillName    string
	requestCount int64
	successCount int64
	cacheHits    int64
	latencies    []int64 // in milliseconds
	errors       map[string]int64
}

type toolBucket struct {
	hourBucket   time.Time
	toolName     string
	callCount    int64
	successCount int64
	latencySum   int64 // in milliseconds
}

// NewAggregator creates a new metrics aggregator.
func NewAggregator() *Aggregator {
	return newAggregator(time.Now)
}

func newAggregator(now func() time.Time) *Aggregator {
	return &Aggregator{
		now:          now,
		skillMetrics: make(map[string]*skillBucket),
		toolMetrics:  make(map[string]*toolBucket),
	}
}

// RecordSkillRequest records a single routed turn.
func (a *Aggregator) RecordSkillRequest(skillName string, latency time.Duration, success bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	bucket := a.skillBucket(skillName)
	bucket.requestCount++
	if success {
		bucket.successCount++
	}
	bucket.latencies = append(bucket.latencies, latency.Milliseconds())
}

// RecordCacheHit records a turn answered from cache.
func (a *Aggregator) RecordCacheHit(skillName string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.skillBucket(skillName).cacheHits++
}

// RecordError counts a failed turn by error code.
func (a *Aggregator) RecordError(skillName, code string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.skillBucket(skillName).errors[code]++
}

// RecordToolCall records a single tool call.
func (a *Aggregator) RecordToolCall(toolName string, latency time.Duration, success bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	hourBucket := truncateToHour(a.now())
	key := makeKey(hourBucket, toolName)

	bucket, exists := a.toolMetrics[key]
	if !exists {
		bucket = &toolBucket{
			hourBucket: hourBucket,
			toolName:   toolName,
		}
		a.toolMetrics[key] = bucket
	}

	bucket.callCount++
	if success {
		bucket.successCount++
	}
	bucket.latencySum += latency.Milliseconds()
}

// skillBucket returns the current hour bucket of skillName. Callers hold mu.
func (a *Aggregator) skillBucket(skillName string) *skillBucket {
	hourBucket := truncateToHour(a.now())
	key := makeKey(hourBucket, skillName)

	bucket, exists := a.skillMetrics[key]
	if !exists {
		bucket = &skillBucket{
			hourBucket: hourBucket,
			skillName:  skillName,
			latencies:  make([]int64, 0, 100),
			errors:     make(map[string]int64),
		}
		a.skillMetrics[key] = bucket
	}
	return bucket
}

// SkillSnapshot represents a snapshot of skill metrics for persistence.
type SkillSnapshot struct {
	HourBucket   time.Time
	SkillName    string
	RequestCount int64
	SuccessCount int64
	CacheHits    int64
	LatencySumMs int64
	LatencyP50Ms int32
	LatencyP95Ms int32
	Errors       map[string]int64
}

// ErrorsJSON encodes the error counters for storage.
func (s *SkillSnapshot) ErrorsJSON() string {
	if len(s.Errors) == 0 {
		return "{}"
	}
	b, err := json.Marshal(s.Errors)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// ToolSnapshot represents a snapshot of tool metrics for persistence.
type ToolSnapshot struct {
	HourBucket   time.Time
	ToolName     string
	CallCount    int64
	SuccessCount int64
	LatencySumMs int64
}

// FlushSkillMetrics returns and clears all skill metrics for hours before
// the given time.
func (a *Aggregator) FlushSkillMetrics(beforeHour time.Time) []*SkillSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	var snapshots []*SkillSnapshot
	for key, bucket := range a.skillMetrics {
		if !bucket.hourBucket.Before(beforeHour) {
			continue
		}
		snapshots = append(snapshots, &SkillSnapshot{
			HourBucket:   bucket.hourBucket,
			SkillName:    bucket.skillName,
			RequestCount: bucket.requestCount,
			SuccessCount: bucket.successCount,
			CacheHits:    bucket.cacheHits,
			LatencySumMs: sumLatencies(bucket.latencies),
			LatencyP50Ms: int32(percentile(bucket.latencies, 50)),
			LatencyP95Ms: int32(percentile(bucket.latencies, 95)),
			Errors:       bucket.errors,
		})
		delete(a.skillMetrics, key)
	}
	return snapshots
}

// FlushToolMetrics returns and clears all tool metrics for hours before the given time.
func (a *Aggregator) FlushToolMetrics(beforeHour time.Time) []*ToolSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	var snapshots []*ToolSnapshot
	for key, bucket := range a.toolMetrics {
		if !bucket.hourBucket.Before(beforeHour) {
			continue
		}
		snapshots = append(snapshots, &ToolSnapshot{
			HourBucket:   bucket.hourBucket,
			ToolName:     bucket.toolName,
			CallCount:    bucket.callCount,
			SuccessCount: bucket.successCount,
			LatencySumMs: bucket.latencySum,
		})
		delete(a.toolMetrics, key)
	}
	return snapshots
}

// GetCurrentStats returns aggregated stats of everything not yet flushed.
func (a *Aggregator) GetCurrentStats() *Overview {
	stats := newOverview()
	skillLatency := make(map[string]int64)
	toolLatency := make(map[string]int64)
	a.collect(stats, skillLatency, toolLatency)
	stats.finish(skillLatency, toolLatency)
	return stats
}

// collect adds the in-memory counters to stats and the latency sums, in
// milliseconds, to the given maps.
func (a *Aggregator) collect(stats *Overview, skillLatency, toolLatency map[string]int64) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	allLatencies := make([]int64, 0)
	for _, bucket := range a.skillMetrics {
		stats.RequestCount += bucket.requestCount
		stats.SuccessCount += bucket.successCount
		stats.CacheHits += bucket.cacheHits
		allLatencies = append(allLatencies, bucket.latencies...)

		st := stats.skill(bucket.skillName)
		st.Count += bucket.requestCount
		st.SuccessCount += bucket.successCount
		st.CacheHits += bucket.cacheHits
		skillLatency[bucket.skillName] += sumLatencies(bucket.latencies)

		for code, n := range bucket.errors {
			stats.ErrorsByCode[code] += n
		}
	}

	for _, bucket := range a.toolMetrics {
		st := stats.tool(bucket.toolName)
		st.Count += bucket.callCount
		st.SuccessCount += bucket.successCount
		toolLatency[bucket.toolName] += bucket.latencySum
	}

	stats.LatencyP50Ms = percentile(allLatencies, 50)
	stats.LatencyP95Ms = percentile(allLatencies, 95)
}

// Helper functions

func truncateToHour(t time.Time) time.Time {
	return t.UTC().Truncate(time.Hour)
}

func makeKey(hourBucket time.Time, name string) string {
	return hourBucket.Format(time.RFC3339) + "|" + name
}

func sumLatencies(latencies []int64) int64 {
	var sum int64
	for _, l := range latencies {
		sum += l
	}
	return sum
}

func percentile(latencies []int64, p int) int64 {
	if len(latencies) == 0 {
		return 0
	}

	sorted := make([]int64, len(latencies))
	copy(sorted, latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	idx := (len(sorted) - 1) * p / 100
	return sorted[idx]
}
