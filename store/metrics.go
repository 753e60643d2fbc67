package store

import "time"

// SkillMetrics represents hourly aggregated metrics for a routed skill.
type SkillMetrics struct {
	ID           int64
	HourBucket   time.Time
	SkillName    string
	RequestCount int64
	SuccessCount int64
	CacheHits    int64
	LatencySumMs int64
	LatencyP50Ms int32
	LatencyP95Ms int32
	Errors       string // JSON: {"error_code": count}
}

// ToolMetrics represents hourly aggregated metrics for a tool.
type ToolMetrics struct {
	ID           int64
	HourBucket   time.Time
	ToolName     string
	CallCount    int64
	SuccessCount int64
	LatencySumMs int64
}

// UpsertSkillMetrics specifies the data for upserting skill metrics.
type UpsertSkillMetrics struct {
	HourBucket   time.Time
	SkillName    string
	RequestCount int64
	SuccessCount int64
	CacheHits    int64
	LatencySumMs int64
	LatencyP50Ms int32
	LatencyP95Ms int32
	Errors       string
}

// UpsertToolMetrics specifies the data for upserting tool metrics.
type UpsertToolMetrics struct {
	HourBucket   time.Time
	ToolName     string
	CallCount    int64
	SuccessCount int64
	LatencySumMs int64
}

// FindSkillMetrics specifies the conditions for finding skill metrics.
type FindSkillMetrics struct {
	SkillName *string
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int
}

// FindToolMetrics specifies the conditions for finding tool metrics.
type FindToolMetrics struct {
	ToolName  *string
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int
}

// DeleteSkillMetrics specifies the conditions for deleting skill metrics.
type DeleteSkillMetrics struct {
	BeforeTime *time.Time // Delete records older than this time
}

// DeleteToolMetrics specifies the conditions for deleting tool metrics.
type DeleteToolMetrics struct {
	BeforeTime *time.Time // Delete records older than this time
}
