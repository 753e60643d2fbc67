package tools

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/skillgate/plugin/ai"
	"github.com/hrygo/skillgate/store"
	storetest "github.com/hrygo/skillgate/store/test"
)

// demoClock puts "last_month" on the newest seeded month, 2025-06.
var demoClock = FixedClock(time.Date(2025, time.July, 15, 12, 0, 0, 0, time.UTC))

func newTestRegistry(ctx context.Context, t *testing.T) (*Registry, *store.Store) {
	t.Helper()
	s := storetest.NewTestingStore(ctx, t)
	return NewDefaultRegistry(s, Options{Clock: demoClock}), s
}

func runTool(ctx context.Context, t *testing.T, r *Registry, name, input string) map[string]any {
	t.Helper()
	res, err := r.Run(ctx, name, input)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.Output), &out), res.Output)
	return out
}

func rows(t *testing.T, out map[string]any) []map[string]any {
	t.Helper()
	raw, ok := out["data"].([]any)
	require.True(t, ok, "data is not a list: %v", out)
	list := make([]map[string]any, len(raw))
	for i, r := range raw {
		list[i] = r.(map[string]any)
	}
	return list
}

func TestRegistry_Definitions(t *testing.T) {
	r := NewDefaultRegistry(nil, Options{})
	assert.Len(t, r.Names(), 13)
	assert.Equal(t, SearchProductsName, r.Names()[0])

	defs := r.Definitions(QueryInventoryDataName, "unknown", QuerySalesDataName)
	require.Len(t, defs, 2)
	assert.Equal(t, QueryInventoryDataName, defs[0].Name)
	assert.Equal(t, QuerySalesDataName, defs[1].Name)
	assert.Contains(t, string(defs[0].Parameters), `"query_type"`)

	assert.Len(t, r.Definitions(), 13)
	assert.Error(t, r.Register(NewSalesDataTool(nil)))
}

func TestDataClock(t *testing.T) {
	ctx := context.Background()
	s := storetest.NewTestingStore(ctx, t)

	year, month, err := LatestDataMonth(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, 2025, year)
	assert.Equal(t, 6, month)

	clock, err := DataClock(ctx, s)
	require.NoError(t, err)
	p, err := ParsePeriod("last_month", clock())
	require.NoError(t, err)
	assert.Equal(t, "2025-06", p.Label)
}

func TestSalesDataTool(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRegistry(ctx, t)

	t.Run("Summary", func(t *testing.T) {
		out := runTool(ctx, t, r, QuerySalesDataName, `{"query_type":"summary","time_period":"last_month"}`)
		assert.Equal(t, true, out["success"])
		assert.Equal(t, "2025-06", out["time_period"])
		data := rows(t, out)
		require.Len(t, data, 1)
		assert.EqualValues(t, 1, data[0]["periods"])
		assert.Greater(t, data[0]["total_revenue"].(float64), 0.0)
	})

	t.Run("ByRegionSharesSumToHundred", func(t *testing.T) {
		out := runTool(ctx, t, r, QuerySalesDataName, `{"query_type":"by_region","time_period":"2024"}`)
		data := rows(t, out)
		require.Len(t, data, 5)
		var total float64
		for _, row := range data {
			total += row["pct_of_total"].(float64)
		}
		assert.InDelta(t, 100, total, 0.5)
	})

	t.Run("TrendFilteredByCategory", func(t *testing.T) {
		out := runTool(ctx, t, r, QuerySalesDataName, `{"query_type":"trend","category":"chainsaws","time_period":"2025-Q1"}`)
		assert.Len(t, rows(t, out), 3)
		assert.Equal(t, map[string]any{"time_period": "2025-Q1", "category": "chainsaws"}, out["filters_applied"])
	})

	t.Run("TopProducts", func(t *testing.T) {
		out := runTool(ctx, t, r, QuerySalesDataName, `{"query_type":"top_products","top_n":3}`)
		assert.Equal(t, "all time", out["time_period"])
		assert.Len(t, rows(t, out), 3)
	})

	t.Run("BadArguments", func(t *testing.T) {
		out := runTool(ctx, t, r, QuerySalesDataName, `{"query_type":"revenue_by_planet"}`)
		assert.Equal(t, false, out["success"])
		assert.Contains(t, out["error"], "Unknown query_type")

		out = runTool(ctx, t, r, QuerySalesDataName, `{"query_type":"summary","time_period":"next week"}`)
		assert.Equal(t, false, out["success"])
	})
}

func TestInventoryDataTool(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRegistry(ctx, t)

	out := runTool(ctx, t, r, QueryInventoryDataName, `{"query_type":"stockouts","top_n":50}`)
	stockouts := rows(t, out)
	require.NotEmpty(t, stockouts)
	for _, row := range stockouts {
		assert.EqualValues(t, 0, row["quantity_on_hand"])
	}

	out = runTool(ctx, t, r, QueryInventoryDataName, `{"query_type":"stockouts","region":"northeast","top_n":50}`)
	names := map[string]bool{}
	for _, row := range rows(t, out) {
		names[row["product_name"].(string)] = true
	}
	assert.True(t, names["MS 271 Farm Boss"])
	assert.True(t, names["MSA 140 C-B"])

	out = runTool(ctx, t, r, QueryInventoryDataName, `{"query_type":"by_status"}`)
	statuses := rows(t, out)
	require.NotEmpty(t, statuses)
	assert.Equal(t, StatusCritical, statuses[0]["status"])

	out = runTool(ctx, t, r, QueryInventoryDataName, `{"query_type":"low_stock","max_days_of_supply":10,"top_n":100}`)
	for _, row := range rows(t, out) {
		assert.LessOrEqual(t, row["days_of_supply"].(float64), 10.0)
		assert.Greater(t, row["quantity_on_hand"].(float64), 0.0)
	}
}

func TestDealerDataTool(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRegistry(ctx, t)

	out := runTool(ctx, t, r, QueryDealerDataName, `{"query_type":"summary"}`)
	data := rows(t, out)
	require.Len(t, data, 1)
	assert.EqualValues(t, 12, data[0]["total_dealers"])

	out = runTool(ctx, t, r, QueryDealerDataName, `{"query_type":"top_dealers","top_n":3}`)
	top := rows(t, out)
	require.Len(t, top, 3)
	assert.GreaterOrEqual(t, top[0]["total_revenue"].(float64), top[1]["total_revenue"].(float64))
	assert.Contains(t, top[0], "avg_transaction_value")

	out = runTool(ctx, t, r, QueryDealerDataName, `{"query_type":"performance_tiers"}`)
	tiers := rows(t, out)
	require.Len(t, tiers, 4)
	var dealers float64
	for _, tier := range tiers {
		dealers += tier["dealer_count"].(float64)
	}
	assert.EqualValues(t, 12, dealers)

	out = runTool(ctx, t, r, QueryDealerDataName, `{"query_type":"coverage_gaps"}`)
	assert.Len(t, rows(t, out), 5)

	out = runTool(ctx, t, r, QueryDealerDataName, `{"query_type":"by_type"}`)
	assert.Equal(t, "by_tier", out["query_type"])
}

func TestAnalyzeTrendsTool(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRegistry(ctx, t)

	out := runTool(ctx, t, r, AnalyzeTrendsName, `{"trend_type":"yoy","comparison_periods":6}`)
	data := rows(t, out)
	require.Len(t, data, 6)
	assert.EqualValues(t, 2025, data[0]["year"])
	assert.EqualValues(t, 6, data[0]["month"])
	assert.Contains(t, data[0], "trend_direction")

	out = runTool(ctx, t, r, AnalyzeTrendsName, `{"trend_type":"regional_trends"}`)
	regional := rows(t, out)
	require.Len(t, regional, 5)
	assert.Contains(t, regional[0], "region")
	assert.Contains(t, regional[0], "market_status")

	out = runTool(ctx, t, r, AnalyzeTrendsName, `{"comparison":"mom","dimension":"category"}`)
	assert.Equal(t, "mom", out["query_type"])
	assert.Len(t, rows(t, out), 6)
}

func TestSalesForecastTool(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRegistry(ctx, t)

	out := runTool(ctx, t, r, SalesForecastName, `{"forecast_type":"monthly","periods_ahead":2}`)
	data := rows(t, out)
	require.Len(t, data, 2)
	assert.Equal(t, "2025-07", data[0]["period"])
	assert.Equal(t, "2025-08", data[1]["period"])
	assert.LessOrEqual(t, data[0]["low_estimate"].(float64), data[0]["forecast_revenue"].(float64))
	assert.NotEmpty(t, out["disclaimer"])

	out = runTool(ctx, t, r, SalesForecastName, `{"forecast_type":"seasonal"}`)
	assert.Len(t, rows(t, out), 12)
	assert.NotNil(t, out["peak_months"])

	out = runTool(ctx, t, r, SalesForecastName, `{"forecast_type":"year_end"}`)
	years := rows(t, out)
	require.Len(t, years, 2)
	assert.EqualValues(t, 2025, years[0]["year"])
	assert.EqualValues(t, 6, years[0]["months_complete"])

	out = runTool(ctx, t, r, SalesForecastName, `{"forecast_type":"monthly","region":"Atlantis"}`)
	assert.Equal(t, false, out["success"])
}

func TestProactiveInsightsTool(t *testing.T) {
	ctx := context.Background()
	r, s := newTestRegistry(ctx, t)

	out := runTool(ctx, t, r, ProactiveInsightsName, `{}`)
	assert.Equal(t, "insights", out["source"])
	data := rows(t, out)
	require.Len(t, data, 5)
	assert.Equal(t, "critical", data[0]["severity"])
	assert.Equal(t, "INS-002", data[0]["insight_id"], "larger deviation ranks first")
	assert.Contains(t, out["narrative_summary"], "🔴")

	out = runTool(ctx, t, r, ProactiveInsightsName, `{"insight_types":["trend","opportunity"],"max_insights":10}`)
	assert.Len(t, rows(t, out), 2)

	out = runTool(ctx, t, r, ProactiveInsightsName, `{"severity_filter":"warning"}`)
	for _, row := range rows(t, out) {
		assert.Equal(t, "warning", row["severity"])
	}

	_, err := s.GetDriver().GetDB().ExecContext(ctx, "DELETE FROM insights")
	require.NoError(t, err)
	out = runTool(ctx, t, r, ProactiveInsightsName, `{"max_insights":10}`)
	assert.Equal(t, "realtime_analysis", out["source"])
	realtime := rows(t, out)
	require.NotEmpty(t, realtime)
	assert.Equal(t, "stockout_risk", realtime[0]["insight_type"])
}

func TestDetectAnomaliesTool(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRegistry(ctx, t)

	out := runTool(ctx, t, r, DetectAnomaliesName, `{"metric":"revenue","group_by":"category_region","time_period":"2025-06"}`)
	assert.Equal(t, "2025-06", out["time_period"])
	var found map[string]any
	for _, row := range rows(t, out) {
		if row["entity"] == "Chainsaws in Southwest" {
			found = row
		}
	}
	require.NotNil(t, found, "the June Southwest chainsaw spike is detected")
	assert.Equal(t, AnomalyCriticalHigh, found["anomaly_status"])
	assert.Greater(t, found["z_score"].(float64), 3.0)

	out = runTool(ctx, t, r, DetectAnomaliesName, `{"metric":"stock_level","entity_type":"region"}`)
	assert.Equal(t, "stock_level", out["metric_analyzed"])
	for _, row := range rows(t, out) {
		assert.NotEqual(t, AnomalyNormal, row["anomaly_status"])
	}

	out = runTool(ctx, t, r, DetectAnomaliesName, `{"metric":"profit"}`)
	assert.Equal(t, false, out["success"])
}

func TestDailyBriefingTool(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRegistry(ctx, t)

	out := runTool(ctx, t, r, DailyBriefingName, "")
	metrics, ok := out["key_metrics"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 10, metrics["stockouts"])
	assert.Equal(t, "2025-06", metrics["latest_month"])
	assert.Equal(t, "2025-07-15T12:00:00Z", out["generated_at"])
	assert.Len(t, out["top_insights"], 3)
	assert.Contains(t, out["narrative"], "out of stock")
}

func TestShipmentTools(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRegistry(ctx, t)

	out := runTool(ctx, t, r, CreateShipmentRequestName, `{"product_name":"MS 271","destination":"Southwest","quantity":40}`)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "MS-271", out["product_id"])
	assert.Equal(t, store.ShipmentPending, out["status"])
	assert.Equal(t, "2025-07", out["request_period"])
	assert.NotZero(t, out["shipment_request_id"])

	out = runTool(ctx, t, r, CreateShipmentRequestName, `{"product_name":"Mystery Saw"}`)
	assert.Equal(t, true, out["success"])
	assert.Nil(t, out["product_id"])
	assert.EqualValues(t, defaultShipmentQuantity, out["quantity"])
	assert.Equal(t, defaultShipmentDestination, out["destination"])

	out = runTool(ctx, t, r, CreateShipmentRequestName, `{"destination":"West"}`)
	assert.Equal(t, false, out["success"])

	out = runTool(ctx, t, r, CreateShipmentRequestName, `{"product_name":"MS 271","quantity":4294967297}`)
	assert.Equal(t, false, out["success"])
	assert.Contains(t, out["error"], "at most")
	assert.True(t, Mutates(NewCreateShipmentRequestTool(nil, nil)))
	assert.False(t, Mutates(NewGetShipmentRequestsTool(nil)))

	out = runTool(ctx, t, r, GetShipmentRequestsName, `{"status":"pending"}`)
	assert.EqualValues(t, 2, out["row_count"])

	out = runTool(ctx, t, r, GetShipmentRequestsName, `{"destination":"Northeast"}`)
	assert.EqualValues(t, 2, out["row_count"], "seeded request plus the defaulted one")
}

func TestProductTools(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRegistry(ctx, t)

	t.Run("KeywordSearch", func(t *testing.T) {
		res, err := r.Run(ctx, SearchProductsName, `{"query":"quiet battery chainsaw","max_price":500}`)
		require.NoError(t, err)
		var out map[string]any
		require.NoError(t, json.Unmarshal([]byte(res.Output), &out))
		assert.Equal(t, "success", out["status"])
		assert.Equal(t, "keyword", out["search_method"])
		products := out["products"].([]any)
		require.NotEmpty(t, products)
		assert.Equal(t, "MSA-140", products[0].(map[string]any)["product_id"])
	})

	t.Run("NoResults", func(t *testing.T) {
		res, err := r.Run(ctx, SearchProductsName, `{"query":"chainsaw","max_price":1}`)
		require.NoError(t, err)
		assert.Contains(t, res.Output, "no_results")
	})

	t.Run("Compare", func(t *testing.T) {
		res, err := r.Run(ctx, CompareProductsName, `{"product_ids":["MS-170","MS 271","MS-462"]}`)
		require.NoError(t, err)
		var out map[string]any
		require.NoError(t, json.Unmarshal([]byte(res.Output), &out))
		assert.EqualValues(t, 3, out["products_compared"])
		assert.Equal(t, "MS-170", out["lowest_price"])

		res, err = r.Run(ctx, CompareProductsName, `{"product_ids":["MS-170"]}`)
		require.NoError(t, err)
		assert.False(t, res.Success)
	})

	t.Run("Recommendations", func(t *testing.T) {
		res, err := r.Run(ctx, ProductRecommendationsName, `{"use_case":"trimmer for a small yard","experience_level":"homeowner","budget":250}`)
		require.NoError(t, err)
		assert.Contains(t, res.Output, "recommendation_context")
	})
}

func TestIndexProductsAndVectorSearch(t *testing.T) {
	ctx := context.Background()
	s := storetest.NewTestingStore(ctx, t)
	embedder := ai.NewMockEmbeddingService(16)

	n, err := IndexProducts(ctx, s, embedder, "mock")
	require.NoError(t, err)
	assert.Equal(t, 16, n)

	r := NewDefaultRegistry(s, Options{Embedder: embedder, Clock: demoClock})
	res, err := r.Run(ctx, SearchProductsName, `{"query":"chainsaw","category":"Chainsaws","top_k":2}`)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.Output), &out))
	assert.Equal(t, "semantic", out["search_method"])
	for _, p := range out["products"].([]any) {
		assert.Equal(t, "Chainsaws", p.(map[string]any)["category"])
	}
}
