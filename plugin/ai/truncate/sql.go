package truncate

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/tidwall/gjson"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	sqlDataMaxChars = 1500
	previewFields   = 3
)

var numbers = message.NewPrinter(language.English)

// SQLSummary is the compact form of an aggregate query result.
type SQLSummary struct {
	Summary string `json:"summary"`
	Data    string `json:"data"`
}

// SummarizeSQLResult prefixes an aggregate query result with a one-line
// headline of its totals and a truncated copy of the data. Rows are read from
// "results" or "data"; a single row's totals head the summary. Results without
// recognizable totals are truncated as usual.
func SummarizeSQLResult(result string) string {
	if !gjson.Valid(result) {
		return Result(result, DefaultMaxChars)
	}

	doc := gjson.Parse(result)
	var parts []string
	if doc.IsObject() {
		results := doc.Get("results")
		if !results.IsArray() {
			results = doc.Get("data")
		}
		totals := doc
		if !doc.Get("total_revenue").Exists() && results.IsArray() {
			if rows := results.Array(); len(rows) == 1 && rows[0].IsObject() {
				totals = rows[0]
			}
		}

		if v := totals.Get("total_revenue"); v.Exists() {
			parts = append(parts, "Revenue: $"+numbers.Sprintf("%.0f", v.Float()))
		}
		if v := totals.Get("total_units"); v.Exists() {
			parts = append(parts, "Units: "+groupNumber(v))
		}
		if count, total := doc.Get("count"), doc.Get("total"); count.Exists() || total.Exists() {
			v := count
			if !truthy(count) {
				v = total
			}
			parts = append(parts, fmt.Sprintf("Count: %s", v.String()))
		}

		if results.IsArray() {
			items := results.Array()
			parts = append(parts, fmt.Sprintf("%d items returned", len(items)))
			if len(items) > 0 && items[0].IsObject() {
				var keys []string
				items[0].ForEach(func(k, _ gjson.Result) bool {
					keys = append(keys, k.String())
					return len(keys) < previewFields
				})
				parts = append(parts, "Fields: "+strings.Join(keys, ", "))
			}
		}
	}

	if len(parts) == 0 {
		return Result(result, DefaultMaxChars)
	}

	out, err := json.Marshal(SQLSummary{
		Summary: strings.Join(parts, " | "),
		Data:    Result(result, sqlDataMaxChars),
	})
	if err != nil {
		return Result(result, DefaultMaxChars)
	}
	return string(out)
}

func groupNumber(v gjson.Result) string {
	if v.Type != gjson.Number {
		return v.String()
	}
	f := v.Float()
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return numbers.Sprintf("%d", int64(f))
	}
	return numbers.Sprintf("%f", f)
}

func truthy(v gjson.Result) bool {
	switch v.Type {
	case gjson.Null:
		return false
	case gjson.False:
		return false
	case gjson.Number:
		return v.Float() != 0
	case gjson.String:
		return v.Str != ""
	default:
		return v.Exists()
	}
}
