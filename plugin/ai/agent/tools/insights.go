package tools

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/hrygo/skillgate/store"
)

var (
	insightTypes      = []string{"anomaly", "stockout_risk", "trend", "forecast_alert", "opportunity"}
	insightSeverities = []string{"critical", "warning", "info"}
)

var severityMarkers = map[string]string{
	"critical": "🔴",
	"warning":  "🟡",
	"info":     "🟢",
}

// ProactiveInsightsTool surfaces the active insights worth attention, or
// derives them from current data when none are stored.
type ProactiveInsightsTool struct {
	wh *warehouse
}

// NewProactiveInsightsTool creates a new proactive insights tool.
func NewProactiveInsightsTool(wh *warehouse) *ProactiveInsightsTool {
	return &ProactiveInsightsTool{wh: wh}
}

// Name returns the tool name.
func (t *ProactiveInsightsTool) Name() string {
	return ProactiveInsightsName
}

// Description returns the tool description.
func (t *ProactiveInsightsTool) Description() string {
	return `Get proactive insights: anomalies, stockout risks, trends and opportunities ranked by severity. Call at the start of a conversation or for "what should I know?".`
}

// InputType returns the JSON schema for the tool arguments.
func (t *ProactiveInsightsTool) InputType() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"insight_types": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string", "enum": insightTypes},
			},
			"severity_filter": map[string]any{"type": "string", "enum": insightSeverities},
			"max_insights":    map[string]any{"type": "integer", "description": "Default 5"},
		},
	}
}

// ProactiveInsightsInput represents the tool arguments.
type ProactiveInsightsInput struct {
	InsightTypes   []string `json:"insight_types"`
	SeverityFilter string   `json:"severity_filter"`
	MaxInsights    int      `json:"max_insights"`
}

// Run executes the tool.
func (t *ProactiveInsightsTool) Run(ctx context.Context, input string) (*Result, error) {
	var in ProactiveInsightsInput
	if err := decodeInput(input, &in); err != nil {
		return ErrorResult(err.Error()), nil
	}
	out, err := t.insights(ctx, in)
	if err != nil {
		return nil, err
	}
	return JSONResult(out)
}

func (t *ProactiveInsightsTool) insights(ctx context.Context, in ProactiveInsightsInput) (*payload, error) {
	limit := clampInt(in.MaxInsights, 1, 20, 5)

	c := &conditions{}
	c.add("is_active = TRUE")
	if len(in.InsightTypes) > 0 {
		marks := make([]string, len(in.InsightTypes))
		args := make([]any, len(in.InsightTypes))
		for i, v := range in.InsightTypes {
			marks[i] = "?"
			args[i] = strings.ToLower(v)
		}
		c.add("insight_type IN ("+strings.Join(marks, ", ")+")", args...)
	}
	if in.SeverityFilter != "" {
		c.add("severity = ?", strings.ToLower(in.SeverityFilter))
	}

	sql := `SELECT insight_id, insight_type, severity, title, description, affected_entity, recommended_action, deviation_pct
FROM insights` + c.where() + `
ORDER BY CASE severity WHEN 'critical' THEN 1 WHEN 'warning' THEN 2 ELSE 3 END, ABS(deviation_pct) DESC, insight_id`
	res, err := t.wh.query(ctx, sql, limit, c)
	if err != nil {
		slog.Warn("stored insights unavailable, deriving from current data", "error", err)
	} else if res.RowCount > 0 {
		out := okPayload("")
		out.Set("source", "insights")
		setRows(out, res.Data)
		out.Set("narrative_summary", insightNarrative(res.Data))
		return out, nil
	}

	rows, err := t.realtime(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := okPayload("")
	out.Set("source", "realtime_analysis")
	setRows(out, rows)
	out.Set("narrative_summary", insightNarrative(rows))
	return out, nil
}

// realtime derives insights from stockouts, critical stock and the strongest
// category and region of the latest month.
func (t *ProactiveInsightsTool) realtime(ctx context.Context, limit int) ([]*payload, error) {
	var rows []*payload

	stockouts, err := t.wh.query(ctx, `SELECT product_name, region, CAST(COUNT(*) AS BIGINT) AS locations
FROM inventory_status
WHERE quantity_on_hand = 0
GROUP BY product_name, region
ORDER BY locations DESC, product_name`, 3, nil)
	if err != nil {
		return nil, err
	}
	for _, r := range stockouts.Data {
		name, region := store.String(r, "product_name"), store.String(r, "region")
		rows = append(rows, insightRow("stockout_risk", "critical",
			"STOCKOUT: "+name,
			fmt.Sprintf("%s is out of stock in %s", name, region),
			name, fmt.Sprintf("Reorder %s for %s immediately", name, region)))
	}

	critical, err := t.wh.query(ctx, `SELECT product_name, region, days_of_supply
FROM inventory_status
WHERE UPPER(status) = 'CRITICAL' AND quantity_on_hand > 0
ORDER BY days_of_supply ASC, product_name`, 3, nil)
	if err != nil {
		return nil, err
	}
	for _, r := range critical.Data {
		name := store.String(r, "product_name")
		row := insightRow("stockout_risk", "warning",
			"Critical Stock: "+name,
			fmt.Sprintf("%s has only %.0f days of supply in %s", name, store.Float(r, "days_of_supply"), store.String(r, "region")),
			name, "Review reorder for "+name)
		row.Set("metric_value", store.Float(r, "days_of_supply"))
		rows = append(rows, row)
	}

	sales, err := t.wh.query(ctx, `SELECT category, region, CAST(SUM(total_revenue) AS DOUBLE PRECISION) AS revenue
FROM monthly_sales
WHERE year * 100 + month = (SELECT MAX(year * 100 + month) FROM monthly_sales)
GROUP BY category, region
ORDER BY revenue DESC`, 2, nil)
	if err != nil {
		return nil, err
	}
	for _, r := range sales.Data {
		category, region := store.String(r, "category"), store.String(r, "region")
		row := insightRow("opportunity", "info",
			fmt.Sprintf("Strong Sales: %s in %s", category, region),
			fmt.Sprintf("%s generated $%s in %s last month", category, formatMoney(store.Float(r, "revenue")), region),
			category, "Consider increasing inventory for this category")
		row.Set("metric_value", round(store.Float(r, "revenue"), 2))
		rows = append(rows, row)
	}

	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func insightRow(kind, severity, title, description, entity, action string) *payload {
	row := newPayload()
	row.Set("insight_type", kind)
	row.Set("severity", severity)
	row.Set("title", title)
	row.Set("description", description)
	row.Set("affected_entity", entity)
	row.Set("recommended_action", action)
	return row
}

// insightNarrative renders one marked line per insight.
func insightNarrative(rows []*payload) string {
	if len(rows) == 0 {
		return "No significant insights requiring attention at this time."
	}
	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		marker, ok := severityMarkers[store.String(r, "severity")]
		if !ok {
			marker = "ℹ️"
		}
		lines = append(lines, fmt.Sprintf("%s **%s**: %s", marker, store.String(r, "title"), store.String(r, "description")))
	}
	return strings.Join(lines, "\n")
}

// formatMoney renders v with thousands separators and no decimals.
func formatMoney(v float64) string {
	s := fmt.Sprintf("%.0f", math.Abs(v))
	var b strings.Builder
	if v < 0 {
		b.WriteByte('-')
	}
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// DetectAnomaliesTool compares one month against each group's history and
// reports statistically unusual groups.
type DetectAnomaliesTool struct {
	wh *warehouse
}

// NewDetectAnomaliesTool creates a new anomaly detection tool.
func NewDetectAnomaliesTool(wh *warehouse) *DetectAnomaliesTool {
	return &DetectAnomaliesTool{wh: wh}
}

// Name returns the tool name.
func (t *DetectAnomaliesTool) Name() string {
	return DetectAnomaliesName
}

// Description returns the tool description.
func (t *DetectAnomaliesTool) Description() string {
	return `Detect anomalies by comparing a month against each group's historical monthly average (z-score). metric: revenue, units or stock_level. group_by: category, region or category_region. time_period picks the month (default: latest).`
}

// InputType returns the JSON schema for the tool arguments.
func (t *DetectAnomaliesTool) InputType() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"metric": map[string]any{
				"type": "string",
				"enum": []string{"revenue", "units", "stock_level"},
			},
			"group_by": map[string]any{
				"type": "string",
				"enum": []string{"category", "region", "category_region"},
			},
			"time_period": map[string]any{"type": "string", "description": "Month to analyze, e.g. 2025-06 or March 2025"},
			"z_threshold": map[string]any{"type": "number", "description": "Standard deviations for an anomaly (default 2.0)"},
		},
		"required": []string{"metric"},
	}
}

// DetectAnomaliesInput represents the tool arguments. EntityType and
// ThresholdStd are accepted as aliases.
type DetectAnomaliesInput struct {
	Metric       string  `json:"metric"`
	GroupBy      string  `json:"group_by"`
	EntityType   string  `json:"entity_type"`
	TimePeriod   string  `json:"time_period"`
	ZThreshold   float64 `json:"z_threshold"`
	ThresholdStd float64 `json:"threshold_std"`
}

// Anomaly statuses.
const (
	AnomalyCriticalHigh = "critical_high"
	AnomalyCriticalLow  = "critical_low"
	AnomalyWarningHigh  = "warning_high"
	AnomalyWarningLow   = "warning_low"
	AnomalyNormal       = "normal"
)

// ClassifyZ labels a z-score. Beyond 1.5 times the threshold is critical.
func ClassifyZ(z, threshold float64) string {
	switch {
	case z > threshold*1.5:
		return AnomalyCriticalHigh
	case z < -threshold*1.5:
		return AnomalyCriticalLow
	case z > threshold:
		return AnomalyWarningHigh
	case z < -threshold:
		return AnomalyWarningLow
	default:
		return AnomalyNormal
	}
}

// Run executes the tool.
func (t *DetectAnomaliesTool) Run(ctx context.Context, input string) (*Result, error) {
	var in DetectAnomaliesInput
	if err := decodeInput(input, &in); err != nil {
		return ErrorResult(err.Error()), nil
	}
	threshold := in.ZThreshold
	if threshold <= 0 {
		threshold = in.ThresholdStd
	}
	if threshold <= 0 {
		threshold = 2.0
	}
	groupBy := strings.ToLower(firstNonEmpty(in.GroupBy, in.EntityType, "category"))

	var dim string
	switch groupBy {
	case "category", "region":
		dim = groupBy
	case "category_region":
		dim = "category || ' in ' || region"
	default:
		return ErrorResult(fmt.Sprintf("Unknown group_by: %s. Use: category, region, category_region", groupBy)), nil
	}

	metric := strings.ToLower(firstNonEmpty(in.Metric, "revenue"))
	if metric == "stock_level" {
		out, err := t.inventoryAnomalies(ctx, groupBy, threshold)
		if err != nil {
			return nil, err
		}
		return JSONResult(out)
	}
	column, ok := metricColumn(metric)
	if !ok || column == "transaction_count" {
		return ErrorResult(fmt.Sprintf("Unknown metric: %s. Use: revenue, units, stock_level", in.Metric)), nil
	}

	var target Period
	if in.TimePeriod != "" {
		p, err := t.wh.period(in.TimePeriod)
		if err != nil {
			return ErrorResult(err.Error()), nil
		}
		target = monthPeriod(p.ToYear, p.ToMonth)
	}

	series, order, err := t.wh.monthlySeries(ctx, column, dim, nil)
	if err != nil {
		return nil, err
	}
	if target.IsZero() {
		target = latestMonth(series)
	}

	type scored struct {
		row *payload
		z   float64
	}
	var found []scored
	for _, entity := range order {
		points := series[entity]
		var history []float64
		var current *monthPoint
		for i := range points {
			p := points[i]
			switch {
			case p.Year == target.FromYear && p.Month == target.FromMonth:
				current = &points[i]
			case p.Year*100+p.Month < target.FromYear*100+target.FromMonth:
				history = append(history, p.Value)
			}
		}
		if current == nil || len(history) < 2 {
			continue
		}
		avg, sd := mean(history), stddev(history)
		if sd == 0 {
			continue
		}
		z := (current.Value - avg) / sd
		if math.Abs(z) <= threshold {
			continue
		}

		row := newPayload()
		row.Set("entity", entity)
		row.Set("period", current.label())
		row.Set("current_value", round(current.Value, 2))
		row.Set("historical_avg", round(avg, 2))
		row.Set("historical_std", round(sd, 2))
		row.Set("months_of_history", len(history))
		row.Set("z_score", round(z, 2))
		row.Set("pct_deviation", pctChange(current.Value, avg))
		row.Set("anomaly_status", ClassifyZ(z, threshold))
		found = append(found, scored{row: row, z: z})
	}
	sort.SliceStable(found, func(i, j int) bool { return math.Abs(found[i].z) > math.Abs(found[j].z) })
	if len(found) > 10 {
		found = found[:10]
	}

	rows := make([]*payload, len(found))
	for i, f := range found {
		rows[i] = f.row
	}
	out := okPayload("")
	out.Set("metric_analyzed", metric)
	out.Set("group_by", groupBy)
	out.Set("time_period", target.Label)
	out.Set("threshold_std", threshold)
	out.Set("comparison", target.Label+" vs historical monthly average")
	out.Set("entities_analyzed", len(order))
	setRows(out, rows)
	return JSONResult(out)
}

func latestMonth(series map[string][]monthPoint) Period {
	best := 0
	for _, points := range series {
		if n := len(points); n > 0 {
			if v := points[n-1].Year*100 + points[n-1].Month; v > best {
				best = v
			}
		}
	}
	if best == 0 {
		return Period{Label: "no data"}
	}
	return monthPeriod(best/100, best%100)
}

// inventoryAnomalies scores current stock per group against the other groups.
func (t *DetectAnomaliesTool) inventoryAnomalies(ctx context.Context, groupBy string, threshold float64) (*payload, error) {
	dim := "region"
	if groupBy == "category" {
		dim = "category"
	}
	res, err := t.wh.query(ctx, `SELECT `+dim+` AS entity,
  CAST(SUM(quantity_on_hand) AS DOUBLE PRECISION) AS total_stock,
  CAST(AVG(days_of_supply) AS DOUBLE PRECISION) AS avg_dos,
  CAST(SUM(CASE WHEN UPPER(status) = 'CRITICAL' THEN 1 ELSE 0 END) AS BIGINT) AS critical_count,
  CAST(SUM(CASE WHEN UPPER(status) = 'LOW' THEN 1 ELSE 0 END) AS BIGINT) AS low_count
FROM inventory_status
GROUP BY `+dim+`
ORDER BY avg_dos ASC`, 100, nil)
	if err != nil {
		return nil, err
	}

	stock := make([]float64, len(res.Data))
	dos := make([]float64, len(res.Data))
	for i, r := range res.Data {
		stock[i] = store.Float(r, "total_stock")
		dos[i] = store.Float(r, "avg_dos")
	}
	meanStock, sdStock := mean(stock), stddev(stock)
	meanDOS, sdDOS := mean(dos), stddev(dos)

	var rows []*payload
	for i, r := range res.Data {
		critical := store.Int(r, "critical_count")
		if dos[i] >= 14 && dos[i] <= 60 && critical == 0 {
			continue
		}
		var status string
		switch {
		case dos[i] < 7:
			status = AnomalyCriticalLow
		case dos[i] < 14:
			status = AnomalyWarningLow
		case dos[i] > 60:
			status = AnomalyWarningHigh
		default:
			// Healthy on average but with critical locations.
			status = AnomalyWarningLow
		}
		row := newPayload()
		row.Set("entity", store.String(r, "entity"))
		row.Set("current_stock", stock[i])
		row.Set("avg_stock_across_entities", round(meanStock, 1))
		row.Set("days_of_supply", round(dos[i], 1))
		row.Set("avg_dos_across_entities", round(meanDOS, 1))
		row.Set("critical_count", critical)
		row.Set("low_count", store.Int(r, "low_count"))
		row.Set("stock_z_score", zScore(stock[i], meanStock, sdStock))
		row.Set("dos_z_score", zScore(dos[i], meanDOS, sdDOS))
		row.Set("anomaly_status", status)
		rows = append(rows, row)
	}

	out := okPayload("")
	out.Set("metric_analyzed", "stock_level")
	out.Set("group_by", dim)
	out.Set("threshold_std", threshold)
	out.Set("comparison", "Current inventory levels across "+dim+"s")
	setRows(out, rows)
	return out, nil
}

func zScore(v, m, sd float64) any {
	if sd == 0 {
		return nil
	}
	return round((v-m)/sd, 2)
}

// DailyBriefingTool summarizes key metrics and the top insights.
type DailyBriefingTool struct {
	wh       *warehouse
	insights *ProactiveInsightsTool
}

// NewDailyBriefingTool creates a new daily briefing tool.
func NewDailyBriefingTool(wh *warehouse) *DailyBriefingTool {
	return &DailyBriefingTool{wh: wh, insights: NewProactiveInsightsTool(wh)}
}

// Name returns the tool name.
func (t *DailyBriefingTool) Name() string {
	return DailyBriefingName
}

// Description returns the tool description.
func (t *DailyBriefingTool) Description() string {
	return "Generate a daily briefing with key sales and inventory metrics and the top priority insights."
}

// InputType returns the JSON schema for the tool arguments.
func (t *DailyBriefingTool) InputType() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}

// Run executes the tool.
func (t *DailyBriefingTool) Run(ctx context.Context, _ string) (*Result, error) {
	metrics, err := t.keyMetrics(ctx)
	if err != nil {
		return nil, err
	}
	insights, err := t.insights.insights(ctx, ProactiveInsightsInput{MaxInsights: 3})
	if err != nil {
		return nil, err
	}
	top, _ := insights.Get("data")
	topRows, _ := top.([]*payload)

	out := okPayload("")
	out.Set("generated_at", t.wh.clock.now().UTC().Format(time.RFC3339))
	out.Set("key_metrics", metrics)
	out.Set("top_insights", topRows)
	out.Set("narrative", briefingNarrative(metrics, topRows))
	return JSONResult(out)
}

func (t *DailyBriefingTool) keyMetrics(ctx context.Context) (*payload, error) {
	res, err := t.wh.query(ctx, `SELECT
  (SELECT CAST(SUM(total_revenue) AS DOUBLE PRECISION) FROM monthly_sales) AS total_revenue,
  (SELECT CAST(COUNT(*) AS BIGINT) FROM inventory_status WHERE quantity_on_hand = 0) AS stockouts,
  (SELECT CAST(COUNT(*) AS BIGINT) FROM inventory_status WHERE UPPER(status) = 'CRITICAL' AND quantity_on_hand > 0) AS critical_stock,
  (SELECT CAST(COUNT(*) AS BIGINT) FROM inventory_status WHERE UPPER(status) = 'LOW') AS low_stock,
  (SELECT CAST(COUNT(*) AS BIGINT) FROM shipment_requests WHERE status = 'PENDING') AS pending_shipments`, 1, nil)
	if err != nil {
		return nil, err
	}
	m := newPayload()
	if res.RowCount > 0 {
		r := res.Data[0]
		m.Set("total_revenue", round(store.Float(r, "total_revenue"), 2))
		m.Set("stockouts", store.Int(r, "stockouts"))
		m.Set("critical_stock", store.Int(r, "critical_stock"))
		m.Set("low_stock", store.Int(r, "low_stock"))
		m.Set("pending_shipments", store.Int(r, "pending_shipments"))
	}

	series, _, err := t.wh.monthlySeries(ctx, "total_revenue", "", nil)
	if err != nil {
		return nil, err
	}
	if points := series[""]; len(points) > 0 {
		last := points[len(points)-1]
		m.Set("latest_month", last.label())
		m.Set("latest_month_revenue", round(last.Value, 2))
		if len(points) > 1 {
			m.Set("latest_month_mom_pct", pctChange(last.Value, points[len(points)-2].Value))
		}
	}
	return m, nil
}

func briefingNarrative(metrics *payload, insights []*payload) string {
	parts := []string{"**Daily Briefing**", ""}
	if n := store.Int(metrics, "stockouts"); n > 0 {
		parts = append(parts, fmt.Sprintf("⚠️ %d product locations currently out of stock", n))
	}
	if n := store.Int(metrics, "critical_stock"); n > 0 {
		parts = append(parts, fmt.Sprintf("🔴 %d product locations with critical inventory", n))
	}
	if n := store.Int(metrics, "low_stock"); n > 0 {
		parts = append(parts, fmt.Sprintf("🟡 %d product locations with low inventory", n))
	}
	if v := store.Float(metrics, "total_revenue"); v > 0 {
		parts = append(parts, "💰 Total revenue: $"+formatMoney(v))
	}
	if month := store.String(metrics, "latest_month"); month != "" {
		parts = append(parts, fmt.Sprintf("📈 %s revenue: $%s", month, formatMoney(store.Float(metrics, "latest_month_revenue"))))
	}
	if len(insights) > 0 {
		parts = append(parts, "", "**Top Priority:** "+store.String(insights[0], "title"))
	}
	return strings.Join(parts, "\n")
}
