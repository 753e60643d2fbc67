package v1

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/skillgate/plugin/ai/agent"
	"github.com/hrygo/skillgate/plugin/ai/metrics"
)

// MetricsOverviewResponse represents the overview response of system metrics
type MetricsOverviewResponse struct {
	TotalRequests int64   `json:"total_requests"`
	SuccessRate   float64 `json:"success_rate"`
	CacheHitRate  float64 `json:"cache_hit_rate"`
	P50LatencyMs  int64   `json:"p50_latency_ms"`
	P95LatencyMs  int64   `json:"p95_latency_ms"`
	ErrorCount    int64   `json:"error_count"`
	TimeRange     string  `json:"time_range"`

	Overview *metrics.Overview    `json:"overview"`
	Process  agent.MetricsSummary `json:"process"`
}

// GetMetricsOverview returns the system metrics overview
// GET /api/v1/metrics/overview
func (s *APIV1Service) GetMetricsOverview(c echo.Context) error {
	// Parse time range parameter
	timeRange := c.QueryParam("range")
	if timeRange == "" {
		timeRange = "24h"
	}
	now := time.Now()
	start, err := parseTimeRange(now, timeRange)
	if err != nil {
		slog.Warn("Invalid time range parameter in metrics request", "range", timeRange, "error", err)
		return badRequest(c, "invalid time range")
	}

	overview, err := s.Agent.MetricsOverview(c.Request().Context(), metrics.TimeRange{Start: start, End: now})
	if err != nil {
		return writeError(c, agent.Wrap(err, agent.ErrCodeInternal, "failed to load metrics"))
	}

	resp := MetricsOverviewResponse{
		TotalRequests: overview.RequestCount,
		P50LatencyMs:  overview.LatencyP50Ms,
		P95LatencyMs:  overview.LatencyP95Ms,
		TimeRange:     timeRange,
		Overview:      overview,
		Process:       s.Agent.Stats(),
	}
	if overview.RequestCount > 0 {
		resp.SuccessRate = float64(overview.SuccessCount) / float64(overview.RequestCount)
		resp.CacheHitRate = float64(overview.CacheHits) / float64(overview.RequestCount)
	}
	for _, n := range overview.ErrorsByCode {
		resp.ErrorCount += n
	}
	return c.JSON(http.StatusOK, resp)
}

// parseTimeRange parses time range string and returns the start time
func parseTimeRange(now time.Time, timeRange string) (time.Time, error) {
	switch timeRange {
	case "1h":
		return now.Add(-1 * time.Hour), nil
	case "24h":
		return now.Add(-24 * time.Hour), nil
	case "7d":
		return now.Add(-7 * 24 * time.Hour), nil
	case "30d":
		return now.Add(-30 * 24 * time.Hour), nil
	default:
		return time.Time{}, fmt.Errorf("invalid time range: %s (valid: 1h, 24h, 7d, 30d)", timeRange)
	}
}
