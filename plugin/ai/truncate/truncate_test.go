package truncate

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxChars int
		want     string
	}{
		{name: "short", input: "hello", maxChars: 10, want: "hello"},
		{name: "exact", input: "hello", maxChars: 5, want: "hello"},
		{name: "cut", input: strings.Repeat("a", 50), maxChars: 30, want: strings.Repeat("a", 10) + "... [truncated]"},
		{name: "tiny budget", input: strings.Repeat("a", 50), maxChars: 5, want: "... [truncated]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Text(tt.input, tt.maxChars))
		})
	}
}

func TestText_RuneBoundary(t *testing.T) {
	s := strings.Repeat("库存", 20) // 3 bytes per rune
	out := Text(s, 31)
	assert.True(t, strings.HasSuffix(out, textMarker))
	assert.True(t, json.Valid([]byte(`"`+out+`"`)))
	assert.Equal(t, "库存库", strings.TrimSuffix(out, textMarker))
}

func TestRunes(t *testing.T) {
	assert.Equal(t, "", Runes("", 5))
	assert.Equal(t, "short", Runes("short", 5))
	assert.Equal(t, "stoc...", Runes("stockout report", 4))

	out := Runes("补货请求已创建", 3)
	assert.Equal(t, "补货请...", out)
	assert.True(t, utf8.ValidString(out))
}

func TestTruncate_PreservesCriticalKeys(t *testing.T) {
	input := map[string]any{
		"product_name": "MS 271 Farm Boss",
		"revenue":      125000.5,
		"units_sold":   412,
		"notes":        strings.Repeat("n", 3000),
	}
	for i := 0; i < 30; i++ {
		input[fmt.Sprintf("attr_%02d", i)] = strings.Repeat("v", 100)
	}

	out := Result(input, 2000)
	require.LessOrEqual(t, len(out), 2000)
	require.True(t, gjson.Valid(out))

	doc := gjson.Parse(out)
	assert.Equal(t, "MS 271 Farm Boss", doc.Get("product_name").String())
	assert.Equal(t, 125000.5, doc.Get("revenue").Float())
	assert.Equal(t, int64(412), doc.Get("units_sold").Int())
	assert.Greater(t, doc.Get(moreFieldsKey).Int(), int64(0))

	if notes := doc.Get("notes"); notes.Exists() {
		assert.LessOrEqual(t, len(notes.String()), stringLimit+3)
	}
}

func TestTruncate_KeepsSmallResults(t *testing.T) {
	in := `{"status":"ok","count":2,"results":[{"id":1},{"id":2}]}`
	assert.Equal(t, in, Result(in, 2000))
}

func TestTruncate_KeyOrder(t *testing.T) {
	in := `{"zeta":1,"alpha":2,"id":"x"}`
	// Preserved keys come first, the rest keep input order.
	assert.Equal(t, `{"id":"x","zeta":1,"alpha":2}`, Result(in, 2000))
}

func TestTruncate_Idempotent(t *testing.T) {
	var b strings.Builder
	b.WriteString(`{"id":"sku-1"`)
	for i := 0; i < 40; i++ {
		fmt.Fprintf(&b, `,"field_%02d":"%s"`, i, strings.Repeat("x", 100))
	}
	b.WriteString("}")

	tr := New(2000)
	once := tr.Truncate(b.String())
	twice := tr.Truncate(once)

	assert.LessOrEqual(t, len(once), 2000)
	assert.LessOrEqual(t, len(twice), len(once))
	assert.Equal(t, "sku-1", gjson.Get(twice, "id").String())
	assert.GreaterOrEqual(t, gjson.Get(twice, moreFieldsKey).Int(), gjson.Get(once, moreFieldsKey).Int())
}

func TestTruncate_NestedDepth(t *testing.T) {
	in := `{"a":{"b":{"c":{"d":{"e":{"f":1}}}}}}`
	out := Result(in, 2000)
	assert.Equal(t, nestedPlaceholder, gjson.Get(out, "a.b.c.d.e").String())
}

func TestTruncate_LongList(t *testing.T) {
	items := make([]map[string]any, 20)
	for i := range items {
		items[i] = map[string]any{"id": i, "name": fmt.Sprintf("item %d", i)}
	}

	out := Result(items, 2000)
	require.LessOrEqual(t, len(out), 2000)

	doc := gjson.Parse(out)
	assert.Equal(t, int64(20), doc.Get("total_count").Int())
	assert.Equal(t, int64(maxListItems), doc.Get("showing").Int())
	assert.Len(t, doc.Get("items").Array(), maxListItems)
	assert.Equal(t, "item 0", doc.Get("items.0.name").String())
}

func TestTruncate_ShortList(t *testing.T) {
	out := Result([]int{1, 2, 3}, 2000)
	assert.Equal(t, "[1,2,3]", out)
}

func TestTruncate_PlainText(t *testing.T) {
	in := "not json: " + strings.Repeat("t", 3000)
	out := Result(in, 2000)
	assert.LessOrEqual(t, len(out), 2000)
	assert.True(t, strings.HasSuffix(out, "... [truncated]"))
	assert.True(t, strings.HasPrefix(out, "not json: "))
}

func TestTruncate_Nil(t *testing.T) {
	assert.Equal(t, "null", Result(nil, 100))
}

func TestTruncate_SafetyNet(t *testing.T) {
	long := strings.Repeat("d", 400)
	in := map[string]any{
		"description":  long,
		"message":      long,
		"product_name": long,
		"title":        long,
	}

	out := Result(in, 300)
	assert.LessOrEqual(t, len(out), 300)
	assert.True(t, strings.HasSuffix(out, lengthMarker))
}

func TestTruncate_ExtraPreserveKeys(t *testing.T) {
	var b strings.Builder
	b.WriteString(`{`)
	for i := 0; i < 30; i++ {
		fmt.Fprintf(&b, `"f%02d":"%s",`, i, strings.Repeat("x", 100))
	}
	b.WriteString(`"dealer_tier":"gold"}`)

	out := Result(b.String(), 1000, "dealer_tier")
	assert.Equal(t, "gold", gjson.Get(out, "dealer_tier").String())

	out = Result(b.String(), 1000)
	assert.False(t, gjson.Get(out, "dealer_tier").Exists())
}

func TestSummarizeSQLResult(t *testing.T) {
	t.Run("Totals", func(t *testing.T) {
		in := `{"total_revenue":1234567.4,"total_units":9876,"results":[{"month":"2024-01","revenue":10,"units":2,"dealers":3}]}`
		out := SummarizeSQLResult(in)

		var got SQLSummary
		require.NoError(t, json.Unmarshal([]byte(out), &got))
		assert.Equal(t, "Revenue: $1,234,567 | Units: 9,876 | 1 items returned | Fields: month, revenue, units", got.Summary)
		assert.True(t, gjson.Valid(got.Data))
		assert.Equal(t, "2024-01", gjson.Get(got.Data, "results.0.month").String())
	})

	t.Run("SingleRowData", func(t *testing.T) {
		in := `{"success":true,"query_type":"summary","row_count":1,"data":[{"periods":1,"total_revenue":98765.4,"total_units":321}]}`
		out := SummarizeSQLResult(in)

		var got SQLSummary
		require.NoError(t, json.Unmarshal([]byte(out), &got))
		assert.Equal(t, "Revenue: $98,765 | Units: 321 | 1 items returned | Fields: periods, total_revenue, total_units", got.Summary)
		assert.Equal(t, "summary", gjson.Get(got.Data, "query_type").String())
	})

	t.Run("CountFallsBackToTotal", func(t *testing.T) {
		out := SummarizeSQLResult(`{"count":0,"total":5}`)
		assert.Equal(t, "Count: 5", gjson.Get(out, "summary").String())
	})

	t.Run("NoTotals", func(t *testing.T) {
		in := `{"region":"Southeast"}`
		assert.Equal(t, in, SummarizeSQLResult(in))
	})

	t.Run("NotJSON", func(t *testing.T) {
		in := strings.Repeat("r", 2500)
		out := SummarizeSQLResult(in)
		assert.LessOrEqual(t, len(out), DefaultMaxChars)
		assert.True(t, strings.HasSuffix(out, textMarker))
	})
}
