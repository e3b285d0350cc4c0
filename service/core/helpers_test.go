package core

import (
	"testing"
	"time"

	m "capm/data/models"
)

var testStart = time.Date(2025, time.January, 2, 0, 0, 0, 0, time.UTC)

// Helper: build a series with one price per consecutive calendar day from start
func makeSeries(t *testing.T, symbol string, start time.Time, prices ...float64) m.PriceSeries {
	t.Helper()
	res := m.PriceSeries{Symbol: symbol, Points: make([]m.PricePoint, len(prices))}
	for i, p := range prices {
		res.Points[i] = m.PricePoint{Date: start.AddDate(0, 0, i), Price: p}
	}
	return res
}

// Helper: build prices from percent returns so the return table is known exactly up to rounding
func pricesFromReturns(t *testing.T, start float64, returns []float64) []float64 {
	t.Helper()
	res := make([]float64, len(returns)+1)
	res[0] = start
	for i, r := range returns {
		res[i+1] = res[i] * (1 + r/100)
	}
	return res
}

// Helper: a return table built directly, skipping the price stage
func makeReturnTable(t *testing.T, benchmark []float64, stocks map[string][]float64) *ReturnTable {
	t.Helper()
	res := &ReturnTable{
		Benchmark: "SP500",
		Values:    map[string][]float64{"SP500": benchmark},
	}
	for s, v := range stocks {
		res.Columns = append(res.Columns, s)
		res.Values[s] = v
	}
	res.Columns = append(res.Columns, "SP500")
	for i := range benchmark {
		res.Dates = append(res.Dates, testStart.AddDate(0, 0, i))
	}
	return res
}
