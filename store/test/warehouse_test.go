package test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/skillgate/store"
)

func TestWarehouseQuery(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	result, err := ts.Query(ctx, `
		SELECT dealer_name, region, total_revenue
		FROM dealer_performance
		WHERE region = $1
		ORDER BY total_revenue DESC`, 10, "West")
	require.NoError(t, err)
	assert.Equal(t, []string{"dealer_name", "region", "total_revenue"}, result.Columns)
	assert.False(t, result.HasMore)
	require.NotEmpty(t, result.Data)
	for _, row := range result.Data {
		assert.Equal(t, "West", store.String(row, "region"))
		assert.Greater(t, store.Float(row, "total_revenue"), 0.0)
	}

	// Rows encode with keys in select order.
	raw, err := json.Marshal(result.Data[0])
	require.NoError(t, err)
	assert.Regexp(t, `^\{"dealer_name":.*,"region":.*,"total_revenue":.*\}$`, string(raw))
}

func TestWarehouseQueryMaxRows(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	result, err := ts.Query(ctx, "SELECT product_id FROM products ORDER BY product_id", 5)
	require.NoError(t, err)
	assert.Equal(t, 5, result.RowCount)
	assert.True(t, result.HasMore)

	result, err = ts.Query(ctx, "SELECT COUNT(*) AS total FROM products", 0)
	require.NoError(t, err)
	require.Equal(t, 1, result.RowCount)
	assert.Equal(t, int64(16), store.Int(result.Data[0], "total"))
}

func TestWarehouseAggregates(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	result, err := ts.Query(ctx, `
		SELECT category,
			CAST(SUM(total_revenue) AS DOUBLE PRECISION) AS revenue,
			CAST(SUM(total_units) AS BIGINT) AS units
		FROM monthly_sales
		WHERE year = $1
		GROUP BY category
		ORDER BY revenue DESC`, 0, 2024)
	require.NoError(t, err)
	assert.Equal(t, 6, result.RowCount)
	assert.Equal(t, "Chainsaws", store.String(result.Data[0], "category"))
	assert.Greater(t, store.Int(result.Data[0], "units"), int64(0))
}

func TestWarehouseQueryError(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	_, err := ts.Query(ctx, "SELECT * FROM missing_table", 10)
	assert.Error(t, err)
}
