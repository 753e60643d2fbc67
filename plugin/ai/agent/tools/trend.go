package tools

import (
	"context"
	"fmt"
	"strings"
)

var trendTypes = []string{"yoy", "mom", "growth_rates", "momentum", "category_trends", "regional_trends"}

// AnalyzeTrendsTool computes growth and momentum indicators over the monthly
// sales series.
type AnalyzeTrendsTool struct {
	wh *warehouse
}

// NewAnalyzeTrendsTool creates a new trend analysis tool.
func NewAnalyzeTrendsTool(wh *warehouse) *AnalyzeTrendsTool {
	return &AnalyzeTrendsTool{wh: wh}
}

// Name returns the tool name.
func (t *AnalyzeTrendsTool) Name() string {
	return AnalyzeTrendsName
}

// Description returns the tool description.
func (t *AnalyzeTrendsTool) Description() string {
	return `Analyze sales trends. trend_type: yoy (year over year), mom (month over month), growth_rates (moving averages and YTD), momentum (short vs long term signals), category_trends, regional_trends.
metric is revenue, units or transactions. group_by category or region compares the latest month of each group.`
}

// InputType returns the JSON schema for the tool arguments.
func (t *AnalyzeTrendsTool) InputType() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"trend_type": map[string]any{
				"type": "string",
				"enum": trendTypes,
			},
			"metric": map[string]any{
				"type": "string",
				"enum": []string{"revenue", "units", "transactions"},
			},
			"group_by": map[string]any{
				"type": "string",
				"enum": []string{"category", "region"},
			},
			"category":           map[string]any{"type": "string"},
			"region":             map[string]any{"type": "string"},
			"comparison_periods": map[string]any{"type": "integer", "description": "Months to return (default 12)"},
		},
		"required": []string{"trend_type"},
	}
}

// AnalyzeTrendsInput represents the tool arguments. Comparison and Dimension
// are accepted as aliases of TrendType and GroupBy.
type AnalyzeTrendsInput struct {
	TrendType         string `json:"trend_type"`
	Comparison        string `json:"comparison"`
	Metric            string `json:"metric"`
	GroupBy           string `json:"group_by"`
	Dimension         string `json:"dimension"`
	Category          string `json:"category"`
	Region            string `json:"region"`
	ComparisonPeriods int    `json:"comparison_periods"`
}

// Run executes the tool.
func (t *AnalyzeTrendsTool) Run(ctx context.Context, input string) (*Result, error) {
	var in AnalyzeTrendsInput
	if err := decodeInput(input, &in); err != nil {
		return ErrorResult(err.Error()), nil
	}
	trendType := strings.ToLower(firstNonEmpty(in.TrendType, in.Comparison, "yoy"))
	groupBy := firstNonEmpty(in.GroupBy, in.Dimension)
	switch trendType {
	case "category_trends":
		groupBy = "category"
	case "regional_trends":
		groupBy = "region"
	}

	column, ok := metricColumn(in.Metric)
	if !ok {
		return ErrorResult(fmt.Sprintf("Unknown metric: %s. Use: revenue, units, transactions", in.Metric)), nil
	}
	dim, ok := dimensionColumn(groupBy)
	if !ok {
		return ErrorResult(fmt.Sprintf("Unknown group_by: %s. Use: category, region", groupBy)), nil
	}
	periods := clampInt(in.ComparisonPeriods, 1, 36, 12)
	metric := strings.ToLower(firstNonEmpty(in.Metric, "revenue"))

	var compute func([]monthPoint) []*payload
	switch trendType {
	case "yoy":
		compute = yoyRows
	case "mom":
		compute = momRows
	case "growth_rates":
		compute = growthRows
	case "momentum":
		compute = momentumRows
	case "category_trends", "regional_trends":
		compute = marketRows(trendType)
	default:
		return ErrorResult(fmt.Sprintf("Unknown trend_type: %s. Use: %s", trendType, strings.Join(trendTypes, ", "))), nil
	}

	c := &conditions{}
	c.equalFold("category", in.Category)
	c.equalFold("region", in.Region)
	series, order, err := t.wh.monthlySeries(ctx, column, dim, c)
	if err != nil {
		return nil, err
	}

	var rows []*payload
	for _, entity := range order {
		computed := compute(series[entity])
		if dim == "" {
			rows = append(rows, newestFirst(computed, periods)...)
			continue
		}
		// Grouped analyses compare the latest month of each group.
		if n := len(computed); n > 0 {
			rows = append(rows, prepend(computed[n-1], dim, entity))
		}
	}

	out := okPayload(trendType)
	out.Set("metric", metric)
	if dim != "" {
		out.Set("group_by", dim)
	}
	out.Set("filters_applied", filters("category", in.Category, "region", in.Region))
	setRows(out, rows)
	return JSONResult(out)
}

// newestFirst returns at most n rows from the end of rows, newest first.
func newestFirst(rows []*payload, n int) []*payload {
	out := make([]*payload, 0, n)
	for i := len(rows) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, rows[i])
	}
	return out
}

// prepend returns a copy of row with key first.
func prepend(row *payload, key string, value any) *payload {
	out := newPayload()
	out.Set(key, value)
	for pair := row.Oldest(); pair != nil; pair = pair.Next() {
		out.Set(pair.Key, pair.Value)
	}
	return out
}

func periodRow(p monthPoint) *payload {
	row := newPayload()
	row.Set("year", p.Year)
	row.Set("month", p.Month)
	return row
}

// priorYear finds the same month one year before points[i].
func priorYear(points []monthPoint, i int) (float64, bool) {
	for j := i - 1; j >= 0; j-- {
		if points[j].Year == points[i].Year-1 && points[j].Month == points[i].Month {
			return points[j].Value, true
		}
		if points[j].Year < points[i].Year-1 {
			break
		}
	}
	return 0, false
}

// movingAvg averages the window ending at i, shortened at the series start.
func movingAvg(points []monthPoint, i, window int) float64 {
	start := i - window + 1
	if start < 0 {
		start = 0
	}
	return mean(values(points[start : i+1]))
}

// YoYDirection classifies a year-over-year percentage change.
func YoYDirection(pct float64) string {
	switch {
	case pct > 20:
		return "Strong Growth"
	case pct > 5:
		return "Moderate Growth"
	case pct > -5:
		return "Flat"
	case pct > -20:
		return "Moderate Decline"
	default:
		return "Sharp Decline"
	}
}

// MoMMomentum classifies a month-over-month percentage change.
func MoMMomentum(pct float64) string {
	switch {
	case pct > 15:
		return "Surge"
	case pct > 5:
		return "Growth"
	case pct > -5:
		return "Stable"
	case pct > -15:
		return "Decline"
	default:
		return "Drop"
	}
}

func yoyRows(points []monthPoint) []*payload {
	var rows []*payload
	for i, p := range points {
		prev, ok := priorYear(points, i)
		if !ok {
			continue
		}
		pct := pctChange(p.Value, prev)
		row := periodRow(p)
		row.Set("current_value", round(p.Value, 2))
		row.Set("prior_year_value", round(prev, 2))
		row.Set("yoy_change", round(p.Value-prev, 2))
		row.Set("yoy_change_pct", pct)
		row.Set("trend_direction", YoYDirection(pct))
		rows = append(rows, row)
	}
	return rows
}

func momRows(points []monthPoint) []*payload {
	var rows []*payload
	for i := 1; i < len(points); i++ {
		p, prev := points[i], points[i-1].Value
		pct := pctChange(p.Value, prev)
		row := periodRow(p)
		row.Set("value", round(p.Value, 2))
		row.Set("prev_month", round(prev, 2))
		row.Set("mom_change", round(p.Value-prev, 2))
		row.Set("mom_change_pct", pct)
		row.Set("momentum", MoMMomentum(pct))
		rows = append(rows, row)
	}
	return rows
}

func growthRows(points []monthPoint) []*payload {
	rows := make([]*payload, 0, len(points))
	var ytd float64
	for i, p := range points {
		if i == 0 || points[i-1].Year != p.Year {
			ytd = 0
		}
		ytd += p.Value
		ma3, ma6 := movingAvg(points, i, 3), movingAvg(points, i, 6)

		row := periodRow(p)
		row.Set("current_value", round(p.Value, 2))
		row.Set("moving_avg_3m", round(ma3, 2))
		row.Set("moving_avg_6m", round(ma6, 2))
		row.Set("ytd_total", round(ytd, 2))
		if prev, ok := priorYear(points, i); ok {
			row.Set("yoy_growth_pct", pctChange(p.Value, prev))
		} else {
			row.Set("yoy_growth_pct", nil)
		}
		row.Set("short_vs_long_trend", pctChange(ma3, ma6))
		rows = append(rows, row)
	}
	return rows
}

func momentumRows(points []monthPoint) []*payload {
	var rows []*payload
	for i := 3; i < len(points); i++ {
		p := points[i]
		ma3, ma6 := movingAvg(points, i, 3), movingAvg(points, i, 6)

		signal := "Bearish"
		if ma3 > ma6 {
			signal = "Bullish"
		}
		var momentum string
		switch {
		case ma3 > ma6 && p.Value > ma3:
			momentum = "Strong Uptrend"
		case ma3 > ma6:
			momentum = "Uptrend"
		case ma3 < ma6 && p.Value < ma3:
			momentum = "Strong Downtrend"
		case ma3 < ma6:
			momentum = "Downtrend"
		default:
			momentum = "Consolidating"
		}

		row := periodRow(p)
		row.Set("current_value", round(p.Value, 2))
		row.Set("short_term_avg", round(ma3, 2))
		row.Set("long_term_avg", round(ma6, 2))
		row.Set("trend_signal", signal)
		row.Set("momentum_3m_pct", pctChange(p.Value, points[i-3].Value))
		if i >= 6 {
			row.Set("momentum_6m_pct", pctChange(p.Value, points[i-6].Value))
		} else {
			row.Set("momentum_6m_pct", nil)
		}
		row.Set("momentum_signal", momentum)
		rows = append(rows, row)
	}
	return rows
}

// marketRows labels each group's year-over-year change. Categories use a
// ±10% band; regions distinguish hot markets above 15%.
func marketRows(trendType string) func([]monthPoint) []*payload {
	label := func(pct float64) string {
		switch {
		case pct > 10:
			return "Growing"
		case pct < -10:
			return "Declining"
		default:
			return "Stable"
		}
	}
	if trendType == "regional_trends" {
		label = func(pct float64) string {
			switch {
			case pct > 15:
				return "Hot Market"
			case pct > 5:
				return "Growing"
			case pct > -5:
				return "Stable"
			default:
				return "Needs Attention"
			}
		}
	}

	return func(points []monthPoint) []*payload {
		var rows []*payload
		for i, p := range points {
			prev, ok := priorYear(points, i)
			if !ok {
				continue
			}
			pct := pctChange(p.Value, prev)
			row := periodRow(p)
			row.Set("current_value", round(p.Value, 2))
			row.Set("prior_year_value", round(prev, 2))
			row.Set("yoy_change_pct", pct)
			row.Set("trend_3m_avg", round(movingAvg(points, i, 3), 2))
			row.Set("market_status", label(pct))
			rows = append(rows, row)
		}
		return rows
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
