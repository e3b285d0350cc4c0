package core

import (
	"fmt"
	"maps"
	"slices"
	"time"

	m "capm/data/models"
)

// DefaultBenchmarkColumn names the benchmark column when the series has no symbol
const DefaultBenchmarkColumn = "Benchmark"

// AlignedPriceTable holds prices for the dates every input series has in common.
// Columns is stocks in input order followed by the benchmark.
type AlignedPriceTable struct {
	Dates     []time.Time
	Columns   []string
	Benchmark string
	Values    map[string][]float64
}

func (t *AlignedPriceTable) Len() int {
	return len(t.Dates)
}

// Stocks returns the column names without the benchmark
func (t *AlignedPriceTable) Stocks() []string {
	return slices.DeleteFunc(slices.Clone(t.Columns), func(c string) bool { return c == t.Benchmark })
}

func (t *AlignedPriceTable) Column(name string) ([]float64, bool) {
	v, ok := t.Values[name]
	return v, ok
}

// NormalizeDate drops time of day and zone, keeping the calendar day the timestamp was reported on
func NormalizeDate(t time.Time) time.Time {
	return m.CalendarDay(t)
}

// Align inner joins the benchmark and stock series on normalized date
func Align(benchmark m.PriceSeries, stocks []m.PriceSeries) (*AlignedPriceTable, error) {
	if len(stocks) == 0 {
		return nil, ErrEmptyInput
	}

	benchmarkColumn := benchmark.Symbol
	if benchmarkColumn == "" {
		benchmarkColumn = DefaultBenchmarkColumn
	}

	columns := make([]string, 0, len(stocks)+1)
	seen := map[string]bool{benchmarkColumn: true}
	for i, s := range stocks {
		if s.Symbol == "" {
			return nil, fmt.Errorf("stock series %d has no symbol: %w", i, ErrEmptyInput)
		}
		if seen[s.Symbol] {
			return nil, fmt.Errorf("%s: %w", s.Symbol, ErrDuplicateSymbol)
		}
		seen[s.Symbol] = true
		columns = append(columns, s.Symbol)
	}
	columns = append(columns, benchmarkColumn)

	byDate := make(map[string]map[time.Time]float64, len(columns))
	for _, s := range stocks {
		byDate[s.Symbol] = indexByDate(s)
	}
	byDate[benchmarkColumn] = indexByDate(benchmark)

	dates := make([]time.Time, 0, len(byDate[benchmarkColumn]))
	for d := range maps.Keys(byDate[benchmarkColumn]) {
		inAll := true
		for _, s := range stocks {
			if _, ok := byDate[s.Symbol][d]; !ok {
				inAll = false
				break
			}
		}
		if inAll {
			dates = append(dates, d)
		}
	}

	if len(dates) == 0 {
		return nil, ErrNoOverlap
	}

	slices.SortFunc(dates, func(a, b time.Time) int { return a.Compare(b) })

	values := make(map[string][]float64, len(columns))
	for _, c := range columns {
		col := make([]float64, len(dates))
		for i, d := range dates {
			col[i] = byDate[c][d]
		}
		values[c] = col
	}

	return &AlignedPriceTable{
		Dates:     dates,
		Columns:   columns,
		Benchmark: benchmarkColumn,
		Values:    values,
	}, nil
}

// indexByDate keys a series by normalized date, the latest timestamp of a day wins
func indexByDate(s m.PriceSeries) map[time.Time]float64 {
	sorted := s.Sorted()
	res := make(map[time.Time]float64, sorted.Len())
	for _, p := range sorted.Points {
		res[NormalizeDate(p.Date)] = p.Price
	}
	return res
}
