package tools

import (
	"context"
	"fmt"
	"strings"
)

var inventoryQueryTypes = []string{
	"summary", "low_stock", "stockouts", "by_category", "by_region", "days_of_supply", "by_status", "critical_products",
}

// Inventory statuses, most urgent first.
const (
	StatusCritical    = "CRITICAL"
	StatusLow         = "LOW"
	StatusHealthy     = "HEALTHY"
	StatusOverstocked = "OVERSTOCKED"
)

// InventoryDataTool reports stock positions from inventory_status.
type InventoryDataTool struct {
	wh *warehouse
}

// NewInventoryDataTool creates a new inventory data tool.
func NewInventoryDataTool(wh *warehouse) *InventoryDataTool {
	return &InventoryDataTool{wh: wh}
}

// Name returns the tool name.
func (t *InventoryDataTool) Name() string {
	return QueryInventoryDataName
}

// Description returns the tool description.
func (t *InventoryDataTool) Description() string {
	return `Query current inventory. query_type: summary, low_stock (CRITICAL or LOW with stock left), stockouts (zero on hand), by_category, by_region, days_of_supply, by_status, critical_products.
Filter with category, region, status_filter (CRITICAL, LOW, HEALTHY, OVERSTOCKED) and max_days_of_supply.`
}

// InputType returns the JSON schema for the tool arguments.
func (t *InventoryDataTool) InputType() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query_type": map[string]any{
				"type": "string",
				"enum": inventoryQueryTypes,
			},
			"category":      map[string]any{"type": "string"},
			"region":        map[string]any{"type": "string"},
			"status_filter": map[string]any{"type": "string", "enum": []string{StatusCritical, StatusLow, StatusHealthy, StatusOverstocked}},
			"max_days_of_supply": map[string]any{
				"type":        "number",
				"description": "Only rows with at most this many days of supply",
			},
			"top_n": map[string]any{"type": "integer", "description": "Rows for lists (default 10)"},
		},
		"required": []string{"query_type"},
	}
}

// InventoryDataInput represents the tool arguments.
type InventoryDataInput struct {
	QueryType       string   `json:"query_type"`
	Category        string   `json:"category"`
	Region          string   `json:"region"`
	StatusFilter    string   `json:"status_filter"`
	MaxDaysOfSupply *float64 `json:"max_days_of_supply"`
	TopN            int      `json:"top_n"`
}

// ReportsRows reports that the tool returns query rows.
func (t *InventoryDataTool) ReportsRows() bool {
	return true
}

// Run executes the tool.
func (t *InventoryDataTool) Run(ctx context.Context, input string) (*Result, error) {
	var in InventoryDataInput
	if err := decodeInput(input, &in); err != nil {
		return ErrorResult(err.Error()), nil
	}
	if in.QueryType == "" {
		in.QueryType = "summary"
	}
	topN := clampInt(in.TopN, 1, 100, 10)

	c := &conditions{}
	c.equalFold("category", in.Category)
	c.equalFold("region", in.Region)
	if in.StatusFilter != "" {
		c.add("UPPER(status) = ?", strings.ToUpper(in.StatusFilter))
	}
	if in.MaxDaysOfSupply != nil {
		c.add("days_of_supply <= ?", *in.MaxDaysOfSupply)
	}

	sql, ok := inventoryQuery(in.QueryType, c)
	if !ok {
		return unknownQueryType(in.QueryType, inventoryQueryTypes), nil
	}
	res, err := t.wh.query(ctx, sql, topN, c)
	if err != nil {
		return nil, err
	}
	roundColumns(res.Data, 1, "avg_days_of_supply", "days_of_supply")

	out := okPayload(in.QueryType)
	out.Set("filters_applied", filters(
		"category", in.Category, "region", in.Region, "status_filter", in.StatusFilter,
	))
	setRows(out, res.Data)
	return JSONResult(out)
}

func inventoryQuery(queryType string, c *conditions) (string, bool) {
	where, and := c.where(), c.and()
	switch queryType {
	case "summary":
		return `SELECT CAST(COUNT(DISTINCT product_id) AS BIGINT) AS total_products,
  CAST(COUNT(DISTINCT warehouse_id) AS BIGINT) AS total_warehouses,
  CAST(SUM(quantity_on_hand) AS BIGINT) AS total_units_on_hand,
  CAST(SUM(quantity_available) AS BIGINT) AS total_units_available,
  CAST(AVG(days_of_supply) AS DOUBLE PRECISION) AS avg_days_of_supply,
  CAST(SUM(CASE WHEN quantity_on_hand = 0 THEN 1 ELSE 0 END) AS BIGINT) AS stockout_count,
  CAST(SUM(CASE WHEN UPPER(status) = 'CRITICAL' THEN 1 ELSE 0 END) AS BIGINT) AS critical_count,
  CAST(SUM(CASE WHEN UPPER(status) = 'LOW' THEN 1 ELSE 0 END) AS BIGINT) AS low_count
FROM inventory_status` + where, true
	case "low_stock":
		return `SELECT product_name, category, warehouse_id, region, quantity_on_hand, quantity_available, days_of_supply, status
FROM inventory_status
WHERE UPPER(status) IN ('CRITICAL', 'LOW') AND quantity_on_hand > 0` + and + `
ORDER BY days_of_supply ASC, product_name`, true
	case "stockouts":
		return `SELECT product_name, category, warehouse_id, region, quantity_on_hand, status
FROM inventory_status
WHERE quantity_on_hand = 0` + and + `
ORDER BY product_name, region`, true
	case "by_category", "by_region":
		dim := strings.TrimPrefix(queryType, "by_")
		return fmt.Sprintf(`SELECT %[1]s,
  CAST(COUNT(DISTINCT warehouse_id) AS BIGINT) AS warehouses,
  CAST(COUNT(DISTINCT product_id) AS BIGINT) AS products,
  CAST(SUM(quantity_on_hand) AS BIGINT) AS total_units,
  CAST(AVG(days_of_supply) AS DOUBLE PRECISION) AS avg_days_of_supply,
  CAST(SUM(CASE WHEN quantity_on_hand = 0 THEN 1 ELSE 0 END) AS BIGINT) AS stockouts,
  CAST(SUM(CASE WHEN UPPER(status) = 'CRITICAL' THEN 1 ELSE 0 END) AS BIGINT) AS critical_items
FROM inventory_status%[2]s
GROUP BY %[1]s
ORDER BY total_units DESC`, dim, where), true
	case "days_of_supply":
		return `SELECT product_name, category, region, quantity_on_hand, quantity_available, days_of_supply, status
FROM inventory_status` + where + `
ORDER BY days_of_supply ASC, product_name`, true
	case "by_status":
		return `SELECT UPPER(status) AS status,
  CAST(COUNT(*) AS BIGINT) AS count,
  CAST(SUM(quantity_on_hand) AS BIGINT) AS total_units,
  CAST(AVG(days_of_supply) AS DOUBLE PRECISION) AS avg_days_of_supply
FROM inventory_status` + where + `
GROUP BY UPPER(status)
ORDER BY CASE UPPER(status)
  WHEN 'CRITICAL' THEN 1
  WHEN 'LOW' THEN 2
  WHEN 'HEALTHY' THEN 3
  WHEN 'OVERSTOCKED' THEN 4
  ELSE 5
END`, true
	case "critical_products":
		return `SELECT product_name, product_id, category, region, warehouse_id, quantity_on_hand, quantity_available, days_of_supply, status
FROM inventory_status
WHERE UPPER(status) = 'CRITICAL' AND quantity_on_hand > 0` + and + `
ORDER BY days_of_supply ASC, product_name`, true
	default:
		return "", false
	}
}
