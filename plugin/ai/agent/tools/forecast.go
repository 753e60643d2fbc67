package tools

import (
	"context"
	"fmt"
	"time"
)

var forecastTypes = []string{"monthly", "quarterly", "year_end", "seasonal"}

// Seasonal index bands, as a ratio to the average month.
const (
	peakSeasonRatio = 1.15
	lowSeasonRatio  = 0.85
)

const forecastDisclaimer = "Forecasts are projections of historical patterns. Actual results may vary."

// SalesForecastTool projects sales from historical monthly totals with
// moving averages and run rates.
type SalesForecastTool struct {
	wh *warehouse
}

// NewSalesForecastTool creates a new forecast tool.
func NewSalesForecastTool(wh *warehouse) *SalesForecastTool {
	return &SalesForecastTool{wh: wh}
}

// Name returns the tool name.
func (t *SalesForecastTool) Name() string {
	return SalesForecastName
}

// Description returns the tool description.
func (t *SalesForecastTool) Description() string {
	return `Project future sales from historical patterns. forecast_type: monthly (next months from a 3-month moving average with a range), quarterly (quarter trend), year_end (annual run rate), seasonal (peak and low months).
Filter with category and region; periods_ahead is 1-6.`
}

// InputType returns the JSON schema for the tool arguments.
func (t *SalesForecastTool) InputType() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"forecast_type": map[string]any{
				"type": "string",
				"enum": forecastTypes,
			},
			"category":      map[string]any{"type": "string"},
			"region":        map[string]any{"type": "string"},
			"periods_ahead": map[string]any{"type": "integer", "description": "Months to forecast (1-6, default 3)"},
		},
		"required": []string{"forecast_type"},
	}
}

// SalesForecastInput represents the tool arguments.
type SalesForecastInput struct {
	ForecastType string `json:"forecast_type"`
	Category     string `json:"category"`
	Region       string `json:"region"`
	PeriodsAhead int    `json:"periods_ahead"`
}

// Run executes the tool.
func (t *SalesForecastTool) Run(ctx context.Context, input string) (*Result, error) {
	var in SalesForecastInput
	if err := decodeInput(input, &in); err != nil {
		return ErrorResult(err.Error()), nil
	}
	if in.ForecastType == "" {
		in.ForecastType = "monthly"
	}
	ahead := clampInt(in.PeriodsAhead, 1, 6, 3)

	c := &conditions{}
	c.equalFold("category", in.Category)
	c.equalFold("region", in.Region)

	out := okPayload("")
	out.Set("forecast_type", in.ForecastType)

	var build func(revenue, units []monthPoint, out *payload)
	switch in.ForecastType {
	case "monthly":
		build = func(revenue, units []monthPoint, out *payload) { monthlyForecast(revenue, units, ahead, out) }
	case "quarterly":
		build = quarterlyForecast
	case "year_end":
		build = yearEndForecast
	case "seasonal":
		build = seasonalPattern
	default:
		return ErrorResult(fmt.Sprintf("Unknown forecast_type: %s. Use: monthly, quarterly, year_end, seasonal", in.ForecastType)), nil
	}

	revenue, _, err := t.wh.monthlySeries(ctx, "total_revenue", "", c)
	if err != nil {
		return nil, err
	}
	units, _, err := t.wh.monthlySeries(ctx, "total_units", "", c)
	if err != nil {
		return nil, err
	}
	if len(revenue[""]) == 0 {
		return ErrorResult("No sales history matches the filters."), nil
	}

	build(revenue[""], units[""], out)
	out.Set("filters_applied", filters("category", in.Category, "region", in.Region))
	out.Set("disclaimer", forecastDisclaimer)
	return JSONResult(out)
}

// monthlyForecast projects each of the next ahead months as the average of the
// last three months, with one standard deviation of those months as range.
func monthlyForecast(revenue, units []monthPoint, ahead int, out *payload) {
	recent := tail(revenue, 3)
	recentUnits := tail(units, 3)
	avg := mean(values(recent))
	avgUnits := mean(values(recentUnits))
	spread := stddev(values(recent))

	last := revenue[len(revenue)-1]
	next := time.Date(last.Year, time.Month(last.Month), 1, 0, 0, 0, 0, time.UTC)
	rows := make([]*payload, 0, ahead)
	for i := 1; i <= ahead; i++ {
		m := next.AddDate(0, i, 0)
		row := newPayload()
		row.Set("period", fmt.Sprintf("%d-%02d", m.Year(), int(m.Month())))
		row.Set("forecast_revenue", round(avg, 2))
		row.Set("forecast_units", round(avgUnits, 0))
		row.Set("low_estimate", round(max(avg-spread, 0), 2))
		row.Set("high_estimate", round(avg+spread, 2))
		rows = append(rows, row)
	}

	out.Set("method", "3-month moving average")
	out.Set("last_actual_period", last.label())
	out.Set("history_months", len(tail(revenue, 12)))
	out.Set("revenue_uncertainty", round(spread, 2))
	out.Set("total_forecast_revenue", round(avg*float64(ahead), 2))
	out.Set("periods_forecast", ahead)
	setRows(out, rows)
}

type quarterTotal struct {
	year, quarter int
	revenue       float64
	months        int
}

// quarterlyForecast reports the last eight quarters with growth and a
// four-quarter moving average; the latest average is the next-quarter forecast.
func quarterlyForecast(revenue, _ []monthPoint, out *payload) {
	var quarters []quarterTotal
	for _, p := range revenue {
		q := (p.Month-1)/3 + 1
		if n := len(quarters); n > 0 && quarters[n-1].year == p.Year && quarters[n-1].quarter == q {
			quarters[n-1].revenue += p.Value
			quarters[n-1].months++
			continue
		}
		quarters = append(quarters, quarterTotal{year: p.Year, quarter: q, revenue: p.Value, months: 1})
	}

	rows := make([]*payload, 0, len(quarters))
	var nextForecast float64
	for i, q := range quarters {
		start := i - 3
		if start < 0 {
			start = 0
		}
		var sum float64
		for _, w := range quarters[start : i+1] {
			sum += w.revenue
		}
		ma := sum / float64(i+1-start)
		nextForecast = ma

		row := newPayload()
		row.Set("year", q.year)
		row.Set("quarter", q.quarter)
		row.Set("actual_revenue", round(q.revenue, 2))
		row.Set("months_reported", q.months)
		row.Set("moving_avg_4q", round(ma, 2))
		if i > 0 {
			row.Set("qoq_growth_pct", pctChange(q.revenue, quarters[i-1].revenue))
		} else {
			row.Set("qoq_growth_pct", nil)
		}
		rows = append(rows, row)
	}

	out.Set("method", "4-quarter moving average")
	out.Set("next_quarter_forecast", round(nextForecast, 2))
	setRows(out, newestFirst(rows, 8))
}

// yearEndForecast extrapolates each year's run rate to twelve months.
func yearEndForecast(revenue, units []monthPoint, out *payload) {
	type yearTotal struct {
		year           int
		revenue, units float64
		months         int
	}
	var years []*yearTotal
	byYear := make(map[int]*yearTotal)
	for i, p := range revenue {
		y, ok := byYear[p.Year]
		if !ok {
			y = &yearTotal{year: p.Year}
			byYear[p.Year] = y
			years = append(years, y)
		}
		y.revenue += p.Value
		if i < len(units) {
			y.units += units[i].Value
		}
		if p.Month > y.months {
			y.months = p.Month
		}
	}

	rows := make([]*payload, 0, len(years))
	for i := len(years) - 1; i >= 0; i-- {
		y := years[i]
		projected := y.revenue / float64(y.months) * 12
		row := newPayload()
		row.Set("year", y.year)
		row.Set("ytd_revenue", round(y.revenue, 2))
		row.Set("ytd_units", round(y.units, 0))
		row.Set("months_complete", y.months)
		row.Set("projected_annual_revenue", round(projected, 2))
		row.Set("projected_annual_units", round(y.units/float64(y.months)*12, 0))
		row.Set("remaining_forecast", round(projected-y.revenue, 2))
		rows = append(rows, row)
	}

	out.Set("method", "year-to-date run rate")
	setRows(out, rows)
}

// seasonalPattern averages each calendar month and indexes it against the
// average month.
func seasonalPattern(revenue, _ []monthPoint, out *payload) {
	byMonth := make([][]float64, 13)
	for _, p := range revenue {
		byMonth[p.Month] = append(byMonth[p.Month], p.Value)
	}
	var monthAvgs []float64
	for m := 1; m <= 12; m++ {
		if len(byMonth[m]) > 0 {
			monthAvgs = append(monthAvgs, mean(byMonth[m]))
		}
	}
	overall := mean(monthAvgs)

	var rows []*payload
	peaks, lows := []string{}, []string{}
	for m := 1; m <= 12; m++ {
		if len(byMonth[m]) == 0 {
			continue
		}
		avg := mean(byMonth[m])
		season := SeasonType(avg, overall)
		name := time.Month(m).String()
		switch season {
		case "Peak Season":
			peaks = append(peaks, name)
		case "Low Season":
			lows = append(lows, name)
		}

		row := newPayload()
		row.Set("month", m)
		row.Set("month_name", name)
		row.Set("avg_revenue", round(avg, 2))
		index := 0.0
		if overall > 0 {
			index = round(avg/overall*100, 1)
		}
		row.Set("seasonal_index", index)
		row.Set("season_type", season)
		row.Set("variability", round(stddev(byMonth[m]), 2))
		row.Set("data_points", len(byMonth[m]))
		rows = append(rows, row)
	}

	out.Set("method", "seasonal index")
	out.Set("peak_months", peaks)
	out.Set("low_months", lows)
	setRows(out, rows)
}

// SeasonType classifies a month's average against the overall monthly average.
func SeasonType(avg, overall float64) string {
	switch {
	case avg > overall*peakSeasonRatio:
		return "Peak Season"
	case avg < overall*lowSeasonRatio:
		return "Low Season"
	default:
		return "Normal"
	}
}

func tail(points []monthPoint, n int) []monthPoint {
	if len(points) <= n {
		return points
	}
	return points[len(points)-n:]
}
