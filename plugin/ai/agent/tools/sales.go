package tools

import (
	"context"
	"fmt"

	"github.com/hrygo/skillgate/store"
)

var salesQueryTypes = []string{"summary", "top_products", "top_dealers", "trend", "by_category", "by_region"}

// SalesDataTool answers revenue, unit and ranking questions from monthly_sales
// and the product and dealer rollups.
type SalesDataTool struct {
	wh *warehouse
}

// NewSalesDataTool creates a new sales data tool.
func NewSalesDataTool(wh *warehouse) *SalesDataTool {
	return &SalesDataTool{wh: wh}
}

// Name returns the tool name.
func (t *SalesDataTool) Name() string {
	return QuerySalesDataName
}

// Description returns the tool description.
func (t *SalesDataTool) Description() string {
	return `Query sales performance. query_type: summary (totals for the period), top_products, top_dealers, trend (monthly series), by_category, by_region (with share of total).
Filter with time_period (last_month, last_quarter, last_year, ytd, 2024, 2024-Q1, 2024-06), category and region.`
}

// InputType returns the JSON schema for the tool arguments.
func (t *SalesDataTool) InputType() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query_type": map[string]any{
				"type": "string",
				"enum": salesQueryTypes,
			},
			"time_period": map[string]any{
				"type":        "string",
				"description": "last_month, last_quarter, last_year, ytd, YYYY, YYYY-Qn or YYYY-MM",
			},
			"category": map[string]any{"type": "string", "description": "Product category, e.g. Chainsaws"},
			"region":   map[string]any{"type": "string", "description": "Northeast, Southeast, Midwest, Southwest or West"},
			"top_n":    map[string]any{"type": "integer", "description": "Rows for rankings (default 10)"},
		},
		"required": []string{"query_type"},
	}
}

// SalesDataInput represents the tool arguments.
type SalesDataInput struct {
	QueryType  string `json:"query_type"`
	TimePeriod string `json:"time_period"`
	Category   string `json:"category"`
	Region     string `json:"region"`
	TopN       int    `json:"top_n"`
}

// ReportsRows reports that the tool returns query rows.
func (t *SalesDataTool) ReportsRows() bool {
	return true
}

// Run executes the tool.
func (t *SalesDataTool) Run(ctx context.Context, input string) (*Result, error) {
	var in SalesDataInput
	if err := decodeInput(input, &in); err != nil {
		return ErrorResult(err.Error()), nil
	}
	if in.QueryType == "" {
		in.QueryType = "summary"
	}
	topN := clampInt(in.TopN, 1, 50, 10)

	period, err := t.wh.period(in.TimePeriod)
	if err != nil {
		return ErrorResult(err.Error()), nil
	}
	c := &conditions{}
	period.apply(c)
	c.equalFold("category", in.Category)
	c.equalFold("region", in.Region)

	var rows []*payload
	switch in.QueryType {
	case "summary":
		rows, err = t.summary(ctx, c)
	case "top_products":
		rows, err = t.topProducts(ctx, in.Category, topN)
	case "top_dealers":
		rows, err = t.topDealers(ctx, in.Region, topN)
	case "trend":
		rows, err = t.trend(ctx, c)
	case "by_category":
		rows, err = t.breakdown(ctx, "category", c)
	case "by_region":
		rows, err = t.breakdown(ctx, "region", c)
	default:
		return unknownQueryType(in.QueryType, salesQueryTypes), nil
	}
	if err != nil {
		return nil, err
	}

	label := period.Label
	if in.QueryType == "top_products" || in.QueryType == "top_dealers" {
		// Rankings read the all-time rollups.
		label = "all time"
	}
	out := okPayload(in.QueryType)
	out.Set("time_period", label)
	out.Set("filters_applied", filters("time_period", in.TimePeriod, "category", in.Category, "region", in.Region))
	setRows(out, rows)
	return JSONResult(out)
}

func (t *SalesDataTool) summary(ctx context.Context, c *conditions) ([]*payload, error) {
	sql := `SELECT CAST(COUNT(DISTINCT year * 100 + month) AS BIGINT) AS periods,
  CAST(SUM(total_revenue) AS DOUBLE PRECISION) AS total_revenue,
  CAST(SUM(total_units) AS BIGINT) AS total_units,
  CAST(SUM(transaction_count) AS BIGINT) AS total_transactions
FROM monthly_sales` + c.where()
	res, err := t.wh.query(ctx, sql, 1, c)
	if err != nil {
		return nil, err
	}

	row := newPayload()
	if res.RowCount > 0 {
		r := res.Data[0]
		revenue := store.Float(r, "total_revenue")
		units := store.Int(r, "total_units")
		row.Set("periods", store.Int(r, "periods"))
		row.Set("total_revenue", round(revenue, 2))
		row.Set("total_units", units)
		row.Set("total_transactions", store.Int(r, "total_transactions"))
		avg := 0.0
		if units > 0 {
			avg = round(revenue/float64(units), 2)
		}
		row.Set("avg_price_per_unit", avg)
	}
	return []*payload{row}, nil
}

func (t *SalesDataTool) topProducts(ctx context.Context, category string, topN int) ([]*payload, error) {
	c := &conditions{}
	c.equalFold("category", category)
	sql := `SELECT product_id, product_name, category, total_revenue, total_units_sold, transaction_count
FROM product_performance` + c.where() + `
ORDER BY total_revenue DESC`
	res, err := t.wh.query(ctx, sql, topN, c)
	if err != nil {
		return nil, err
	}
	roundColumns(res.Data, 2, "total_revenue")
	return res.Data, nil
}

func (t *SalesDataTool) topDealers(ctx context.Context, region string, topN int) ([]*payload, error) {
	c := &conditions{}
	c.equalFold("region", region)
	sql := `SELECT dealer_id, dealer_name, region, state, tier, total_revenue, total_units_sold, transaction_count
FROM dealer_performance` + c.where() + `
ORDER BY total_revenue DESC`
	res, err := t.wh.query(ctx, sql, topN, c)
	if err != nil {
		return nil, err
	}
	roundColumns(res.Data, 2, "total_revenue")
	return res.Data, nil
}

func (t *SalesDataTool) trend(ctx context.Context, c *conditions) ([]*payload, error) {
	sql := `SELECT year, month,
  CAST(SUM(total_revenue) AS DOUBLE PRECISION) AS revenue,
  CAST(SUM(total_units) AS BIGINT) AS units,
  CAST(SUM(transaction_count) AS BIGINT) AS transactions
FROM monthly_sales` + c.where() + `
GROUP BY year, month
ORDER BY year, month`
	res, err := t.wh.query(ctx, sql, 120, c)
	if err != nil {
		return nil, err
	}
	roundColumns(res.Data, 2, "revenue")
	return res.Data, nil
}

// breakdown totals the period by dim and adds each group's share of revenue.
func (t *SalesDataTool) breakdown(ctx context.Context, dim string, c *conditions) ([]*payload, error) {
	sql := fmt.Sprintf(`SELECT %[1]s,
  CAST(SUM(total_revenue) AS DOUBLE PRECISION) AS revenue,
  CAST(SUM(total_units) AS BIGINT) AS units,
  CAST(SUM(transaction_count) AS BIGINT) AS transactions
FROM monthly_sales%[2]s
GROUP BY %[1]s
ORDER BY revenue DESC`, dim, c.where())
	res, err := t.wh.query(ctx, sql, 100, c)
	if err != nil {
		return nil, err
	}

	var total float64
	for _, row := range res.Data {
		total += store.Float(row, "revenue")
	}
	for _, row := range res.Data {
		revenue := store.Float(row, "revenue")
		row.Set("revenue", round(revenue, 2))
		share := 0.0
		if total > 0 {
			share = round(revenue/total*100, 1)
		}
		row.Set("pct_of_total", share)
	}
	return res.Data, nil
}
