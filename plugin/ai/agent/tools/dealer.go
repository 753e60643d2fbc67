package tools

import (
	"context"
	"sort"

	"github.com/hrygo/skillgate/store"
)

var dealerQueryTypes = []string{
	"summary", "top_dealers", "bottom_dealers", "by_region", "by_tier", "performance_tiers", "coverage_gaps",
}

var quartileLabels = [4]string{"Platinum (Top 25%)", "Gold (25-50%)", "Silver (50-75%)", "Bronze (Bottom 25%)"}

// DealerDataTool reports on the dealer network from dealer_performance.
type DealerDataTool struct {
	wh *warehouse
}

// NewDealerDataTool creates a new dealer data tool.
func NewDealerDataTool(wh *warehouse) *DealerDataTool {
	return &DealerDataTool{wh: wh}
}

// Name returns the tool name.
func (t *DealerDataTool) Name() string {
	return QueryDealerDataName
}

// Description returns the tool description.
func (t *DealerDataTool) Description() string {
	return `Query the dealer network. query_type: summary, top_dealers, bottom_dealers, by_region, by_tier (assigned dealer tier), performance_tiers (revenue quartiles), coverage_gaps (regions with few dealers for their sales).
Filter with region, state and tier.`
}

// InputType returns the JSON schema for the tool arguments.
func (t *DealerDataTool) InputType() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query_type": map[string]any{
				"type": "string",
				"enum": dealerQueryTypes,
			},
			"region": map[string]any{"type": "string"},
			"state":  map[string]any{"type": "string"},
			"tier":   map[string]any{"type": "string", "description": "Dealer tier, e.g. Gold"},
			"top_n":  map[string]any{"type": "integer", "description": "Rows for rankings (default 10)"},
		},
		"required": []string{"query_type"},
	}
}

// DealerDataInput represents the tool arguments.
type DealerDataInput struct {
	QueryType string `json:"query_type"`
	Region    string `json:"region"`
	State     string `json:"state"`
	Tier      string `json:"tier"`
	TopN      int    `json:"top_n"`
}

// ReportsRows reports that the tool returns query rows.
func (t *DealerDataTool) ReportsRows() bool {
	return true
}

// Run executes the tool.
func (t *DealerDataTool) Run(ctx context.Context, input string) (*Result, error) {
	var in DealerDataInput
	if err := decodeInput(input, &in); err != nil {
		return ErrorResult(err.Error()), nil
	}
	switch in.QueryType {
	case "":
		in.QueryType = "summary"
	case "by_type":
		in.QueryType = "by_tier"
	}
	topN := clampInt(in.TopN, 1, 50, 10)

	c := &conditions{}
	c.equalFold("region", in.Region)
	c.equalFold("state", in.State)
	c.equalFold("tier", in.Tier)

	var (
		rows []*payload
		err  error
	)
	switch in.QueryType {
	case "summary":
		rows, err = t.summary(ctx, c)
	case "top_dealers":
		rows, err = t.ranked(ctx, c, "DESC", topN)
	case "bottom_dealers":
		rows, err = t.ranked(ctx, c, "ASC", topN)
	case "by_region":
		rows, err = t.grouped(ctx, "region", c)
	case "by_tier":
		rows, err = t.grouped(ctx, "tier", c)
	case "performance_tiers":
		rows, err = t.performanceTiers(ctx, c)
	case "coverage_gaps":
		rows, err = t.coverageGaps(ctx)
	default:
		return unknownQueryType(in.QueryType, dealerQueryTypes), nil
	}
	if err != nil {
		return nil, err
	}

	out := okPayload(in.QueryType)
	out.Set("filters_applied", filters("region", in.Region, "state", in.State, "tier", in.Tier))
	setRows(out, rows)
	return JSONResult(out)
}

func (t *DealerDataTool) summary(ctx context.Context, c *conditions) ([]*payload, error) {
	sql := `SELECT CAST(COUNT(DISTINCT dealer_id) AS BIGINT) AS total_dealers,
  CAST(COUNT(DISTINCT region) AS BIGINT) AS regions_covered,
  CAST(COUNT(DISTINCT state) AS BIGINT) AS states_covered,
  CAST(SUM(total_revenue) AS DOUBLE PRECISION) AS total_revenue,
  CAST(SUM(total_units_sold) AS BIGINT) AS total_units,
  CAST(SUM(transaction_count) AS BIGINT) AS total_transactions
FROM dealer_performance` + c.where()
	res, err := t.wh.query(ctx, sql, 1, c)
	if err != nil {
		return nil, err
	}
	roundColumns(res.Data, 2, "total_revenue")
	return res.Data, nil
}

func (t *DealerDataTool) ranked(ctx context.Context, c *conditions, order string, topN int) ([]*payload, error) {
	sql := `SELECT dealer_id, dealer_name, region, state, tier, total_revenue, total_units_sold, transaction_count
FROM dealer_performance` + c.where() + `
ORDER BY total_revenue ` + order + `, dealer_id`
	res, err := t.wh.query(ctx, sql, topN, c)
	if err != nil {
		return nil, err
	}
	for _, row := range res.Data {
		row.Set("total_revenue", round(store.Float(row, "total_revenue"), 2))
		avg := 0.0
		if n := store.Int(row, "transaction_count"); n > 0 {
			avg = round(store.Float(row, "total_revenue")/float64(n), 2)
		}
		row.Set("avg_transaction_value", avg)
	}
	return res.Data, nil
}

func (t *DealerDataTool) grouped(ctx context.Context, dim string, c *conditions) ([]*payload, error) {
	sql := `SELECT ` + dim + `,
  CAST(COUNT(DISTINCT dealer_id) AS BIGINT) AS dealer_count,
  CAST(SUM(total_revenue) AS DOUBLE PRECISION) AS total_revenue,
  CAST(SUM(total_units_sold) AS BIGINT) AS total_units,
  CAST(AVG(total_revenue) AS DOUBLE PRECISION) AS avg_revenue_per_dealer
FROM dealer_performance` + c.where() + `
GROUP BY ` + dim + `
ORDER BY total_revenue DESC`
	res, err := t.wh.query(ctx, sql, 100, c)
	if err != nil {
		return nil, err
	}
	roundColumns(res.Data, 2, "total_revenue", "avg_revenue_per_dealer")
	return res.Data, nil
}

// performanceTiers splits dealers into revenue quartiles the way NTILE(4)
// does: earlier quartiles take the remainder.
func (t *DealerDataTool) performanceTiers(ctx context.Context, c *conditions) ([]*payload, error) {
	sql := `SELECT dealer_id, total_revenue FROM dealer_performance` + c.where() + `
ORDER BY total_revenue DESC, dealer_id`
	res, err := t.wh.query(ctx, sql, 10000, c)
	if err != nil {
		return nil, err
	}

	revenues := make([]float64, len(res.Data))
	for i, row := range res.Data {
		revenues[i] = store.Float(row, "total_revenue")
	}

	var rows []*payload
	n := len(revenues)
	start := 0
	for q := 0; q < 4 && start < n; q++ {
		size := n / 4
		if q < n%4 {
			size++
		}
		if size == 0 {
			continue
		}
		bucket := revenues[start : start+size]
		start += size

		var sum float64
		for _, v := range bucket {
			sum += v
		}
		row := newPayload()
		row.Set("tier", quartileLabels[q])
		row.Set("dealer_count", len(bucket))
		row.Set("tier_revenue", round(sum, 2))
		row.Set("avg_revenue", round(sum/float64(len(bucket)), 2))
		row.Set("min_revenue", round(bucket[len(bucket)-1], 2))
		row.Set("max_revenue", round(bucket[0], 2))
		rows = append(rows, row)
	}
	return rows, nil
}

// coverageGaps compares each sales region's trailing revenue with its dealer
// count. Regions without dealers, or whose revenue per dealer exceeds the
// network average by 25%, are flagged.
func (t *DealerDataTool) coverageGaps(ctx context.Context) ([]*payload, error) {
	sales, err := t.wh.query(ctx, `SELECT region, CAST(SUM(total_revenue) AS DOUBLE PRECISION) AS revenue
FROM monthly_sales
GROUP BY region`, 100, nil)
	if err != nil {
		return nil, err
	}
	dealers, err := t.wh.query(ctx, `SELECT region, CAST(COUNT(*) AS BIGINT) AS dealer_count
FROM dealer_performance
GROUP BY region`, 100, nil)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64)
	for _, row := range dealers.Data {
		counts[store.String(row, "region")] = store.Int(row, "dealer_count")
	}

	type regionCoverage struct {
		region    string
		revenue   float64
		dealers   int64
		perDealer float64
	}
	var regions []regionCoverage
	var totalRevenue float64
	var totalDealers int64
	for _, row := range sales.Data {
		rc := regionCoverage{region: store.String(row, "region"), revenue: store.Float(row, "revenue")}
		rc.dealers = counts[rc.region]
		if rc.dealers > 0 {
			rc.perDealer = rc.revenue / float64(rc.dealers)
		}
		totalRevenue += rc.revenue
		totalDealers += rc.dealers
		regions = append(regions, rc)
	}
	avgPerDealer := 0.0
	if totalDealers > 0 {
		avgPerDealer = totalRevenue / float64(totalDealers)
	}

	sort.Slice(regions, func(i, j int) bool {
		if regions[i].dealers != regions[j].dealers {
			return regions[i].dealers < regions[j].dealers
		}
		return regions[i].perDealer > regions[j].perDealer
	})

	rows := make([]*payload, 0, len(regions))
	for _, rc := range regions {
		gap := rc.dealers == 0 || (avgPerDealer > 0 && rc.perDealer > avgPerDealer*1.25)
		row := newPayload()
		row.Set("region", rc.region)
		row.Set("dealer_count", rc.dealers)
		row.Set("sales_revenue", round(rc.revenue, 2))
		row.Set("revenue_per_dealer", round(rc.perDealer, 2))
		row.Set("network_avg_per_dealer", round(avgPerDealer, 2))
		row.Set("coverage_gap", gap)
		rows = append(rows, row)
	}
	return rows, nil
}
