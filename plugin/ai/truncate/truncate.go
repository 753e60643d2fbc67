// Package truncate shrinks tool results before they re-enter the model
// context while keeping identifiers and headline metrics intact.
package truncate

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/tidwall/gjson"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

const (
	// DefaultMaxChars is the default output budget in bytes.
	DefaultMaxChars = 2000

	maxDepth             = 4
	stringLimit          = 300
	preservedStringLimit = 500
	perValueLimit        = 500
	budgetFloor          = 200
	keyOverhead          = 10
	smallList            = 5
	maxListItems         = 8
	listOverhead         = 100

	nestedPlaceholder = "[nested data]"
	moreFieldsKey     = "_more_fields"
	lengthMarker      = `... [truncated for length]"}`
	lengthReserve     = 50
)

// CriticalKeys identify entities and core metrics. They are never dropped.
var CriticalKeys = []string{
	"product_name", "product_id", "name", "id", "sku",
	"category", "region", "status", "severity",
	"days_of_supply", "units_on_hand", "units_available",
	"insight_type", "title", "description", "message",
	"revenue", "units_sold", "transaction_count", "transactions",
	"units", "avg_price_per_unit", "pct_of_total",
	"dealer_name", "state",
}

// SummaryKeys carry totals and outcome fields. They are never dropped.
var SummaryKeys = []string{
	"total", "count", "summary", "status", "error",
	"total_revenue", "total_units", "insight_count",
	"total_products", "critical_count", "warning_count",
	"total_transactions", "periods",
}

// Object is an insertion-ordered JSON object.
type Object = orderedmap.OrderedMap[string, any]

// Truncator applies the result truncation policy with a fixed budget and
// preserve-key set.
type Truncator struct {
	maxChars int
	preserve map[string]struct{}
}

// New creates a truncator. A non-positive maxChars uses DefaultMaxChars.
func New(maxChars int, extraPreserveKeys ...string) *Truncator {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	preserve := make(map[string]struct{}, len(CriticalKeys)+len(SummaryKeys)+len(extraPreserveKeys))
	for _, group := range [][]string{CriticalKeys, SummaryKeys, extraPreserveKeys} {
		for _, k := range group {
			preserve[k] = struct{}{}
		}
	}
	return &Truncator{maxChars: maxChars, preserve: preserve}
}

// Result truncates result with a one-off truncator.
func Result(result any, maxChars int, extraPreserveKeys ...string) string {
	return New(maxChars, extraPreserveKeys...).Truncate(result)
}

// MaxChars returns the output budget.
func (t *Truncator) MaxChars() int {
	return t.maxChars
}

// Truncate renders result as a string of at most MaxChars bytes.
//
// Strings, byte slices and json.RawMessage are parsed as JSON when valid and
// cut as plain text otherwise. Other values are encoded to JSON first; Go
// maps therefore come out with sorted keys. Object key order of JSON input
// is kept.
func (t *Truncator) Truncate(result any) string {
	data, raw, ok := decode(result)
	if !ok {
		return Text(raw, t.maxChars)
	}

	out, err := encode(t.value(data, t.maxChars, 0))
	if err != nil {
		slog.Warn("tool result encoding failed", "error", err)
		return Text(raw, t.maxChars)
	}

	if len(out) > t.maxChars {
		slog.Warn("tool result exceeded max chars after truncation",
			"size", len(out),
			"max_chars", t.maxChars)
		keep := t.maxChars - lengthReserve
		if keep < 0 {
			keep = 0
		}
		return cutBytes(string(out), keep) + lengthMarker
	}
	return string(out)
}

func (t *Truncator) value(v any, budget, depth int) any {
	if depth > maxDepth {
		return nestedPlaceholder
	}
	switch val := v.(type) {
	case *Object:
		return t.object(val, budget, depth)
	case []any:
		return t.list(val, budget, depth)
	case string:
		return Runes(val, stringLimit)
	default:
		return v
	}
}

func (t *Truncator) object(obj *Object, budget, depth int) *Object {
	out := orderedmap.New[string, any]()
	remaining := budget

	for p := obj.Oldest(); p != nil; p = p.Next() {
		if _, ok := t.preserve[p.Key]; !ok {
			continue
		}
		v := p.Value
		if s, ok := v.(string); ok {
			v = Runes(s, preservedStringLimit)
		}
		out.Set(p.Key, v)
		remaining -= cost(v) + len(p.Key) + keyOverhead
	}

	omitted, stopped := 0, false
	for p := obj.Oldest(); p != nil; p = p.Next() {
		if _, kept := t.preserve[p.Key]; kept {
			continue
		}
		if p.Key == moreFieldsKey {
			// Carried over from an earlier pass.
			if n, ok := asInt(p.Value); ok {
				omitted += n
				continue
			}
		}
		if stopped || remaining <= budgetFloor {
			stopped = true
			omitted++
			continue
		}

		tv := t.value(p.Value, min(perValueLimit, remaining), depth+1)
		c := cost(tv) + len(p.Key) + keyOverhead
		if c < remaining {
			out.Set(p.Key, tv)
			remaining -= c
		} else {
			omitted++
		}
	}

	if omitted > 0 {
		out.Set(moreFieldsKey, omitted)
	}
	return out
}

func (t *Truncator) list(items []any, budget, depth int) any {
	n := len(items)
	if n == 0 {
		return []any{}
	}

	if n <= smallList {
		out := make([]any, n)
		for i, item := range items {
			out[i] = t.value(item, budget/n, depth+1)
		}
		return out
	}

	shown := min(maxListItems, n)
	per := (budget - listOverhead) / shown
	out := make([]any, shown)
	for i := 0; i < shown; i++ {
		out[i] = t.value(items[i], per, depth+1)
	}
	if n <= shown {
		return out
	}

	wrapped := orderedmap.New[string, any]()
	wrapped.Set("items", out)
	wrapped.Set("total_count", n)
	wrapped.Set("showing", shown)
	return wrapped
}

// decode turns result into a JSON tree. ok is false when result holds text
// that is not JSON; raw then carries the text.
func decode(result any) (data any, raw string, ok bool) {
	switch v := result.(type) {
	case nil:
		return nil, "null", true
	case string:
		raw = v
	case []byte:
		raw = string(v)
	case json.RawMessage:
		raw = string(v)
	case *Object, []any:
		return v, "", true
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Sprint(v), false
		}
		raw = string(b)
	}
	if !gjson.Valid(raw) {
		return nil, raw, false
	}
	return fromJSON(gjson.Parse(raw)), raw, true
}

// fromJSON converts a parsed document into ordered objects, slices and
// scalars. Numbers stay json.Number so re-encoding is lossless.
func fromJSON(r gjson.Result) any {
	switch {
	case r.IsObject():
		obj := orderedmap.New[string, any]()
		r.ForEach(func(k, v gjson.Result) bool {
			obj.Set(k.String(), fromJSON(v))
			return true
		})
		return obj
	case r.IsArray():
		arr := []any{}
		r.ForEach(func(_, v gjson.Result) bool {
			arr = append(arr, fromJSON(v))
			return true
		})
		return arr
	}

	switch r.Type {
	case gjson.String:
		return r.Str
	case gjson.Number:
		return json.Number(r.Raw)
	case gjson.True:
		return true
	case gjson.False:
		return false
	default:
		return nil
	}
}

func encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

// cost is the encoded size of v.
func cost(v any) int {
	b, err := encode(v)
	if err != nil {
		return len(fmt.Sprint(v))
	}
	return len(b)
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case json.Number:
		i, err := strconv.Atoi(n.String())
		return i, err == nil
	default:
		return 0, false
	}
}
