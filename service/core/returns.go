package core

import (
	"fmt"
	"math"
	"slices"
	"time"
)

// ReturnTable has the shape of AlignedPriceTable with percent daily returns as values.
// Row 0 is the anchor and is 0 for every column.
type ReturnTable struct {
	Dates     []time.Time
	Columns   []string
	Benchmark string
	Values    map[string][]float64

	// DroppedRows counts rows removed because a return was not finite (a zero price)
	DroppedRows int
}

func (t *ReturnTable) Len() int {
	return len(t.Dates)
}

func (t *ReturnTable) Stocks() []string {
	return slices.DeleteFunc(slices.Clone(t.Columns), func(c string) bool { return c == t.Benchmark })
}

func (t *ReturnTable) Column(name string) ([]float64, bool) {
	v, ok := t.Values[name]
	return v, ok
}

// ComputeReturns converts prices to (p[i] - p[i-1]) / p[i-1] * 100, then drops any row
// holding a non finite value.
func ComputeReturns(prices *AlignedPriceTable) *ReturnTable {
	n := prices.Len()

	raw := make(map[string][]float64, len(prices.Columns))
	for _, c := range prices.Columns {
		p := prices.Values[c]
		r := make([]float64, n)
		for i := 1; i < n; i++ {
			r[i] = (p[i] - p[i-1]) / p[i-1] * 100
		}
		raw[c] = r
	}

	keep := make([]bool, n)
	kept := 0
	for i := range n {
		keep[i] = true
		for _, c := range prices.Columns {
			if v := raw[c][i]; math.IsNaN(v) || math.IsInf(v, 0) {
				keep[i] = false
				break
			}
		}
		if keep[i] {
			kept++
		}
	}

	res := &ReturnTable{
		Dates:       make([]time.Time, 0, kept),
		Columns:     slices.Clone(prices.Columns),
		Benchmark:   prices.Benchmark,
		Values:      make(map[string][]float64, len(prices.Columns)),
		DroppedRows: n - kept,
	}

	for i, d := range prices.Dates {
		if keep[i] {
			res.Dates = append(res.Dates, d)
		}
	}

	for _, c := range prices.Columns {
		col := make([]float64, 0, kept)
		for i, v := range raw[c] {
			if keep[i] {
				col = append(col, v)
			}
		}
		res.Values[c] = col
	}

	return res
}

// NormalizePrices divides every column by its first price so all series start at 1.
// A first price that is not a positive finite number cannot be a base and is ErrInvalidPrice.
func NormalizePrices(prices *AlignedPriceTable) (*AlignedPriceTable, error) {
	for _, c := range prices.Columns {
		if p := prices.Values[c]; len(p) > 0 && !(p[0] > 0 && !math.IsInf(p[0], 0)) {
			return nil, fmt.Errorf("%s starts at %v: %w", c, p[0], ErrInvalidPrice)
		}
	}

	res := &AlignedPriceTable{
		Dates:     slices.Clone(prices.Dates),
		Columns:   slices.Clone(prices.Columns),
		Benchmark: prices.Benchmark,
		Values:    make(map[string][]float64, len(prices.Columns)),
	}

	for _, c := range prices.Columns {
		p := prices.Values[c]
		col := make([]float64, len(p))
		for i, v := range p {
			col[i] = v / p[0]
		}
		res.Values[c] = col
	}

	return res, nil
}
