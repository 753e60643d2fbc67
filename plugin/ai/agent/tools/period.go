package tools

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/skillgate/store"
)

// Clock returns the instant relative periods are resolved against.
type Clock func() time.Time

// FixedClock always returns t.
func FixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}

// LatestDataMonth returns the newest (year, month) present in monthly_sales.
func LatestDataMonth(ctx context.Context, s *store.Store) (int, int, error) {
	res, err := s.Query(ctx, "SELECT CAST(MAX(year * 100 + month) AS BIGINT) AS period FROM monthly_sales", 1)
	if err != nil {
		return 0, 0, err
	}
	if res.RowCount == 0 {
		return 0, 0, errors.New("monthly_sales is empty")
	}
	period := int(store.Int(res.Data[0], "period"))
	if period == 0 {
		return 0, 0, errors.New("monthly_sales is empty")
	}
	return period / 100, period % 100, nil
}

// DataClock anchors relative periods in the month after the newest sales
// month, so "last_month" names the latest data on a static demo warehouse.
func DataClock(ctx context.Context, s *store.Store) (Clock, error) {
	year, month, err := LatestDataMonth(ctx, s)
	if err != nil {
		return nil, err
	}
	anchor := time.Date(year, time.Month(month), 15, 12, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	return FixedClock(anchor), nil
}

// Period is a resolved time filter over the year and month columns.
type Period struct {
	Label string
	// FromYear/FromMonth and ToYear/ToMonth bound the period inclusively.
	// A zero FromYear means no filter.
	FromYear, FromMonth int
	ToYear, ToMonth     int
}

// IsZero reports whether the period places no restriction.
func (p Period) IsZero() bool {
	return p.FromYear == 0
}

// apply adds the period condition to c.
func (p Period) apply(c *conditions) {
	if p.IsZero() {
		return
	}
	from := p.FromYear*100 + p.FromMonth
	to := p.ToYear*100 + p.ToMonth
	if from == to {
		c.add("year = ? AND month = ?", p.FromYear, p.FromMonth)
		return
	}
	c.add("year * 100 + month BETWEEN ? AND ?", from, to)
}

// Contains reports whether the month lies inside the period.
func (p Period) Contains(year, month int) bool {
	if p.IsZero() {
		return true
	}
	v := year*100 + month
	return v >= p.FromYear*100+p.FromMonth && v <= p.ToYear*100+p.ToMonth
}

var (
	quarterPattern = regexp.MustCompile(`^(\d{4})-?q([1-4])$`)
	monthPattern   = regexp.MustCompile(`^(\d{4})-(\d{1,2})$`)
	slashPattern   = regexp.MustCompile(`^(\d{1,2})/(\d{4})$`)
	yearPattern    = regexp.MustCompile(`^(\d{4})$`)
)

var monthNames = map[string]int{
	"january": 1, "jan": 1,
	"february": 2, "feb": 2,
	"march": 3, "mar": 3,
	"april": 4, "apr": 4,
	"may": 5,
	"june": 6, "jun": 6,
	"july": 7, "jul": 7,
	"august": 8, "aug": 8,
	"september": 9, "sep": 9, "sept": 9,
	"october": 10, "oct": 10,
	"november": 11, "nov": 11,
	"december": 12, "dec": 12,
}

// ParsePeriod resolves a period expression: last_month, last_quarter,
// last_year, ytd, YYYY, YYYY-Qn, YYYY-MM, MM/YYYY or "March 2025". The
// empty string is the unrestricted period.
func ParsePeriod(expr string, now time.Time) (Period, error) {
	s := strings.ToLower(strings.TrimSpace(expr))
	if s == "" || s == "all" || s == "all_time" {
		return Period{Label: "all time"}, nil
	}

	switch s {
	case "last_month", "last month":
		prev := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
		return monthPeriod(prev.Year(), int(prev.Month())), nil
	case "last_quarter", "last quarter":
		q := (int(now.Month())-1)/3 + 1
		year := now.Year()
		if q == 1 {
			year, q = year-1, 4
		} else {
			q--
		}
		return quarterPeriod(year, q), nil
	case "last_year", "last year":
		return yearPeriod(now.Year() - 1), nil
	case "ytd", "year_to_date", "this_year":
		return Period{
			Label:    fmt.Sprintf("%d year to date", now.Year()),
			FromYear: now.Year(), FromMonth: 1,
			ToYear: now.Year(), ToMonth: int(now.Month()),
		}, nil
	}

	if m := quarterPattern.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[1])
		q, _ := strconv.Atoi(m[2])
		return quarterPeriod(year, q), nil
	}
	if m := monthPattern.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		if month >= 1 && month <= 12 {
			return monthPeriod(year, month), nil
		}
	}
	if m := slashPattern.FindStringSubmatch(s); m != nil {
		month, _ := strconv.Atoi(m[1])
		year, _ := strconv.Atoi(m[2])
		if month >= 1 && month <= 12 {
			return monthPeriod(year, month), nil
		}
	}
	if m := yearPattern.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[1])
		return yearPeriod(year), nil
	}

	words := strings.Fields(s)
	for _, w := range words {
		month, ok := monthNames[strings.Trim(w, ",")]
		if !ok {
			continue
		}
		for _, other := range words {
			if year, err := strconv.Atoi(other); err == nil && year >= 2000 && year <= 2100 {
				return monthPeriod(year, month), nil
			}
		}
	}

	return Period{}, errors.Errorf("unrecognized time_period %q; use last_month, last_quarter, last_year, ytd, YYYY, YYYY-Qn or YYYY-MM", expr)
}

func monthPeriod(year, month int) Period {
	return Period{
		Label:    fmt.Sprintf("%d-%02d", year, month),
		FromYear: year, FromMonth: month,
		ToYear: year, ToMonth: month,
	}
}

func quarterPeriod(year, q int) Period {
	return Period{
		Label:    fmt.Sprintf("%d-Q%d", year, q),
		FromYear: year, FromMonth: (q-1)*3 + 1,
		ToYear: year, ToMonth: q * 3,
	}
}

func yearPeriod(year int) Period {
	return Period{
		Label:    strconv.Itoa(year),
		FromYear: year, FromMonth: 1,
		ToYear: year, ToMonth: 12,
	}
}
