package tools

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/hrygo/skillgate/store"
)

// warehouse runs the analytic queries shared by the sales, inventory,
// dealer, insight, forecast and trend tools.
type warehouse struct {
	store *store.Store
	clock Clock
}

func newWarehouse(s *store.Store, clock Clock) *warehouse {
	return &warehouse{store: s, clock: clock}
}

func (w *warehouse) query(ctx context.Context, sql string, maxRows int, c *conditions) (*store.QueryResult, error) {
	var args []any
	if c != nil {
		args = c.args
	}
	res, err := w.store.Query(ctx, sql, maxRows, args...)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// period resolves expr against the warehouse clock.
func (w *warehouse) period(expr string) (Period, error) {
	return ParsePeriod(expr, w.clock.now())
}

// monthPoint is one (year, month) aggregate.
type monthPoint struct {
	Year, Month int
	Value       float64
}

func (p monthPoint) label() string {
	return fmt.Sprintf("%d-%02d", p.Year, p.Month)
}

// monthlySeries returns the monthly totals of column, oldest first, grouped by
// an optional dimension. The key of an ungrouped series is "".
func (w *warehouse) monthlySeries(ctx context.Context, column, groupBy string, c *conditions) (map[string][]monthPoint, []string, error) {
	dim, group := "''", "year, month"
	if groupBy != "" {
		dim, group = groupBy, groupBy+", year, month"
	}
	sql := fmt.Sprintf(`SELECT %s AS entity, year, month, CAST(SUM(%s) AS DOUBLE PRECISION) AS value
FROM monthly_sales%s
GROUP BY %s
ORDER BY year, month`, dim, column, c.where(), group)
	res, err := w.query(ctx, sql, 10000, c)
	if err != nil {
		return nil, nil, err
	}

	series := make(map[string][]monthPoint)
	var order []string
	for _, row := range res.Data {
		entity := store.String(row, "entity")
		if _, ok := series[entity]; !ok {
			order = append(order, entity)
		}
		series[entity] = append(series[entity], monthPoint{
			Year:  int(store.Int(row, "year")),
			Month: int(store.Int(row, "month")),
			Value: store.Float(row, "value"),
		})
	}
	return series, order, nil
}

// conditions accumulates WHERE clauses whose "?" markers are numbered as $N
// in order, which both drivers accept.
type conditions struct {
	clauses []string
	args    []any
}

func (c *conditions) add(expr string, args ...any) {
	var b strings.Builder
	for _, r := range expr {
		if r == '?' {
			c.args = append(c.args, nil)
			fmt.Fprintf(&b, "$%d", len(c.args))
			continue
		}
		b.WriteRune(r)
	}
	copy(c.args[len(c.args)-len(args):], args)
	c.clauses = append(c.clauses, b.String())
}

// equalFold adds a case-insensitive equality filter when value is set.
func (c *conditions) equalFold(column, value string) {
	if value == "" {
		return
	}
	c.add(fmt.Sprintf("LOWER(%s) = LOWER(?)", column), value)
}

func (c *conditions) where() string {
	if c == nil || len(c.clauses) == 0 {
		return ""
	}
	return "\nWHERE " + strings.Join(c.clauses, " AND ")
}

func (c *conditions) and() string {
	if c == nil || len(c.clauses) == 0 {
		return ""
	}
	return " AND " + strings.Join(c.clauses, " AND ")
}

// filters records which optional arguments narrowed a result.
func filters(kv ...string) map[string]string {
	m := make(map[string]string)
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i+1] != "" {
			m[kv[i]] = kv[i+1]
		}
	}
	return m
}

// round returns v rounded to n decimals.
func round(v float64, n int) float64 {
	p := math.Pow(10, float64(n))
	return math.Round(v*p) / p
}

// pctChange is the percentage change from prev to cur, or 0 when prev is 0.
func pctChange(cur, prev float64) float64 {
	if prev == 0 {
		return 0
	}
	return round((cur-prev)/prev*100, 1)
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stddev is the sample standard deviation.
func stddev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	var ss float64
	for _, v := range values {
		ss += (v - m) * (v - m)
	}
	return math.Sqrt(ss / float64(len(values)-1))
}

func values(points []monthPoint) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Value
	}
	return out
}

// metricColumn maps a metric argument to its monthly_sales column.
func metricColumn(metric string) (string, bool) {
	switch strings.ToLower(metric) {
	case "", "revenue", "total_revenue", "sales":
		return "total_revenue", true
	case "units", "units_sold", "total_units":
		return "total_units", true
	case "transactions", "transaction_count":
		return "transaction_count", true
	default:
		return "", false
	}
}

// dimensionColumn maps a grouping argument to a monthly_sales column.
func dimensionColumn(dim string) (string, bool) {
	switch strings.ToLower(dim) {
	case "":
		return "", true
	case "category", "categories":
		return "category", true
	case "region", "regions":
		return "region", true
	default:
		return "", false
	}
}

func clampInt(v, lo, hi, def int) int {
	if v == 0 {
		return def
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// okPayload starts a successful result for queryType.
func okPayload(queryType string) *payload {
	p := newPayload()
	p.Set("success", true)
	if queryType != "" {
		p.Set("query_type", queryType)
	}
	return p
}

// setRows attaches rows and their count to p.
func setRows(p *payload, rows []*payload) {
	if rows == nil {
		rows = []*payload{}
	}
	p.Set("row_count", len(rows))
	p.Set("data", rows)
}

// roundColumns rounds the named float columns of every row in place.
func roundColumns(rows []*store.Row, decimals int, cols ...string) {
	for _, row := range rows {
		for _, col := range cols {
			if _, ok := row.Get(col); ok {
				row.Set(col, round(store.Float(row, col), decimals))
			}
		}
	}
}

func unknownQueryType(kind string, valid []string) *Result {
	return ErrorResult(fmt.Sprintf("Unknown query_type: %s. Use: %s", kind, strings.Join(valid, ", ")))
}
