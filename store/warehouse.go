package store

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/pkg/errors"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// DefaultMaxRows caps warehouse query results when no limit is given.
const DefaultMaxRows = 100

// Row is one result row keyed by column name in select order.
type Row = orderedmap.OrderedMap[string, any]

// QueryResult holds the rows of a warehouse query.
type QueryResult struct {
	Columns  []string `json:"columns"`
	RowCount int      `json:"row_count"`
	HasMore  bool     `json:"has_more"`
	Data     []*Row   `json:"data"`
}

// QueryRows runs query on db and collects at most maxRows rows. Byte slices
// are returned as numbers when they parse as one (PostgreSQL NUMERIC) and
// as strings otherwise, so results encode as readable JSON.
func QueryRows(ctx context.Context, db *sql.DB, query string, maxRows int, args ...any) (*QueryResult, error) {
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute query")
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read columns")
	}

	result := &QueryResult{Columns: columns, Data: []*Row{}}
	for rows.Next() {
		if len(result.Data) == maxRows {
			result.HasMore = true
			break
		}

		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, errors.Wrap(err, "failed to scan row")
		}

		row := orderedmap.New[string, any](len(columns))
		for i, col := range columns {
			row.Set(col, normalizeValue(values[i]))
		}
		result.Data = append(result.Data, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result.RowCount = len(result.Data)
	return result, nil
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case []byte:
		text := string(val)
		if i, err := strconv.ParseInt(text, 10, 64); err == nil {
			return i
		}
		if f, err := strconv.ParseFloat(text, 64); err == nil {
			return f
		}
		return text
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return v
	}
}

// Float reads a numeric column as float64.
func Float(row *Row, col string) float64 {
	v, _ := row.Get(col)
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int64:
		return float64(n)
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case string:
		f, _ := strconv.ParseFloat(n, 64)
		return f
	default:
		return 0
	}
}

// Int reads a numeric column as int64.
func Int(row *Row, col string) int64 {
	v, _ := row.Get(col)
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case float64:
		return int64(n)
	case string:
		i, _ := strconv.ParseInt(n, 10, 64)
		return i
	default:
		return 0
	}
}

// String reads a text column.
func String(row *Row, col string) string {
	v, _ := row.Get(col)
	s, _ := v.(string)
	return s
}
