package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hrygo/skillgate/store"
)

// maxMetricsRows caps list queries over the hourly metric tables.
const maxMetricsRows = 1000

func (d *DB) UpsertSkillMetrics(ctx context.Context, upsert *store.UpsertSkillMetrics) (*store.SkillMetrics, error) {
	if upsert == nil {
		return nil, fmt.Errorf("upsert parameter cannot be nil")
	}

	query := `
		INSERT INTO skill_metrics (hour_bucket, skill_name, request_count, success_count, cache_hits, latency_sum_ms, latency_p50_ms, latency_p95_ms, errors)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (hour_bucket, skill_name) DO UPDATE SET
			request_count = skill_metrics.request_count + EXCLUDED.request_count,
			success_count = skill_metrics.success_count + EXCLUDED.success_count,
			cache_hits = skill_metrics.cache_hits + EXCLUDED.cache_hits,
			latency_sum_ms = skill_metrics.latency_sum_ms + EXCLUDED.latency_sum_ms,
			latency_p50_ms = EXCLUDED.latency_p50_ms,
			latency_p95_ms = EXCLUDED.latency_p95_ms,
			errors = EXCLUDED.errors
		RETURNING id, hour_bucket, skill_name, request_count, success_count, cache_hits, latency_sum_ms, latency_p50_ms, latency_p95_ms, errors
	`

	var metrics store.SkillMetrics
	var hourBucket int64
	err := d.db.QueryRowContext(ctx, query,
		upsert.HourBucket.Unix(), upsert.SkillName, upsert.RequestCount, upsert.SuccessCount, upsert.CacheHits,
		upsert.LatencySumMs, upsert.LatencyP50Ms, upsert.LatencyP95Ms, upsert.Errors,
	).Scan(
		&metrics.ID, &hourBucket, &metrics.SkillName,
		&metrics.RequestCount, &metrics.SuccessCount, &metrics.CacheHits, &metrics.LatencySumMs,
		&metrics.LatencyP50Ms, &metrics.LatencyP95Ms, &metrics.Errors,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert skill metrics: %w", err)
	}
	metrics.HourBucket = time.Unix(hourBucket, 0).UTC()

	return &metrics, nil
}

func (d *DB) ListSkillMetrics(ctx context.Context, find *store.FindSkillMetrics) ([]*store.SkillMetrics, error) {
	if find == nil {
		return nil, fmt.Errorf("find parameter cannot be nil")
	}

	where, args := []string{"1 = 1"}, []any{}
	if find.SkillName != nil {
		where, args = append(where, "skill_name = "+placeholder(len(args)+1)), append(args, *find.SkillName)
	}
	if find.StartTime != nil {
		where, args = append(where, "hour_bucket >= "+placeholder(len(args)+1)), append(args, find.StartTime.Unix())
	}
	if find.EndTime != nil {
		where, args = append(where, "hour_bucket <= "+placeholder(len(args)+1)), append(args, find.EndTime.Unix())
	}

	query := fmt.Sprintf(`
		SELECT id, hour_bucket, skill_name, request_count, success_count, cache_hits, latency_sum_ms, latency_p50_ms, latency_p95_ms, errors
		FROM skill_metrics
		WHERE %s
		ORDER BY hour_bucket DESC, skill_name
	`, strings.Join(where, " AND "))
	query += limitClause(find.Limit)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list skill metrics: %w", err)
	}
	defer rows.Close()

	var metrics []*store.SkillMetrics
	for rows.Next() {
		var m store.SkillMetrics
		var hourBucket int64
		if err := rows.Scan(
			&m.ID, &hourBucket, &m.SkillName,
			&m.RequestCount, &m.SuccessCount, &m.CacheHits, &m.LatencySumMs,
			&m.LatencyP50Ms, &m.LatencyP95Ms, &m.Errors,
		); err != nil {
			return nil, fmt.Errorf("failed to scan skill metrics: %w", err)
		}
		m.HourBucket = time.Unix(hourBucket, 0).UTC()
		metrics = append(metrics, &m)
	}

	return metrics, rows.Err()
}

func (d *DB) DeleteSkillMetrics(ctx context.Context, delete *store.DeleteSkillMetrics) error {
	if delete == nil {
		return fmt.Errorf("delete parameter cannot be nil")
	}
	if delete.BeforeTime == nil {
		return fmt.Errorf("before_time is required for deletion")
	}

	if _, err := d.db.ExecContext(ctx, `DELETE FROM skill_metrics WHERE hour_bucket < $1`, delete.BeforeTime.Unix()); err != nil {
		return fmt.Errorf("failed to delete skill metrics: %w", err)
	}
	return nil
}

func (d *DB) UpsertToolMetrics(ctx context.Context, upsert *store.UpsertToolMetrics) (*store.ToolMetrics, error) {
	if upsert == nil {
		return nil, fmt.Errorf("upsert parameter cannot be nil")
	}

	query := `
		INSERT INTO tool_metrics (hour_bucket, tool_name, call_count, success_count, latency_sum_ms)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (hour_bucket, tool_name) DO UPDATE SET
			call_count = tool_metrics.call_count + EXCLUDED.call_count,
			success_count = tool_metrics.success_count + EXCLUDED.success_count,
			latency_sum_ms = tool_metrics.latency_sum_ms + EXCLUDED.latency_sum_ms
		RETURNING id, hour_bucket, tool_name, call_count, success_count, latency_sum_ms
	`

	var metrics store.ToolMetrics
	var hourBucket int64
	err := d.db.QueryRowContext(ctx, query,
		upsert.HourBucket.Unix(), upsert.ToolName, upsert.CallCount,
		upsert.SuccessCount, upsert.LatencySumMs,
	).Scan(
		&metrics.ID, &hourBucket, &metrics.ToolName,
		&metrics.CallCount, &metrics.SuccessCount, &metrics.LatencySumMs,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert tool metrics: %w", err)
	}
	metrics.HourBucket = time.Unix(hourBucket, 0).UTC()

	return &metrics, nil
}

func (d *DB) ListToolMetrics(ctx context.Context, find *store.FindToolMetrics) ([]*store.ToolMetrics, error) {
	if find == nil {
		return nil, fmt.Errorf("find parameter cannot be nil")
	}

	where, args := []string{"1 = 1"}, []any{}
	if find.ToolName != nil {
		where, args = append(where, "tool_name = "+placeholder(len(args)+1)), append(args, *find.ToolName)
	}
	if find.StartTime != nil {
		where, args = append(where, "hour_bucket >= "+placeholder(len(args)+1)), append(args, find.StartTime.Unix())
	}
	if find.EndTime != nil {
		where, args = append(where, "hour_bucket <= "+placeholder(len(args)+1)), append(args, find.EndTime.Unix())
	}

	query := fmt.Sprintf(`
		SELECT id, hour_bucket, tool_name, call_count, success_count, latency_sum_ms
		FROM tool_metrics
		WHERE %s
		ORDER BY hour_bucket DESC, tool_name
	`, strings.Join(where, " AND "))
	query += limitClause(find.Limit)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tool metrics: %w", err)
	}
	defer rows.Close()

	var metrics []*store.ToolMetrics
	for rows.Next() {
		var m store.ToolMetrics
		var hourBucket int64
		if err := rows.Scan(
			&m.ID, &hourBucket, &m.ToolName,
			&m.CallCount, &m.SuccessCount, &m.LatencySumMs,
		); err != nil {
			return nil, fmt.Errorf("failed to scan tool metrics: %w", err)
		}
		m.HourBucket = time.Unix(hourBucket, 0).UTC()
		metrics = append(metrics, &m)
	}

	return metrics, rows.Err()
}

func (d *DB) DeleteToolMetrics(ctx context.Context, delete *store.DeleteToolMetrics) error {
	if delete == nil {
		return fmt.Errorf("delete parameter cannot be nil")
	}
	if delete.BeforeTime == nil {
		return fmt.Errorf("before_time is required for deletion")
	}

	if _, err := d.db.ExecContext(ctx, `DELETE FROM tool_metrics WHERE hour_bucket < $1`, delete.BeforeTime.Unix()); err != nil {
		return fmt.Errorf("failed to delete tool metrics: %w", err)
	}
	return nil
}

func limitClause(limit int) string {
	if limit <= 0 {
		return ""
	}
	if limit > maxMetricsRows {
		limit = maxMetricsRows
	}
	return fmt.Sprintf(" LIMIT %d", limit)
}
