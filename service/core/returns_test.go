package core

import (
	"errors"
	"math"
	"slices"
	"testing"

	ex "capm/data/extensions"
	m "capm/data/models"
)

func TestComputeReturnsFormulaAndAnchor(t *testing.T) {
	benchmark := makeSeries(t, "SP500", testStart, 4000, 4040, 3999.6, 4100, 4100)
	stock := makeSeries(t, "AAPL", testStart, 150, 151.5, 148.47, 155, 160.2)

	prices, err := Align(benchmark, []m.PriceSeries{stock})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	returns := ComputeReturns(prices)
	ex.AssertAreEqual(t, "rows", prices.Len(), returns.Len())
	ex.AssertAreEqual(t, "dropped", 0, returns.DroppedRows)

	for _, c := range prices.Columns {
		p := prices.Values[c]
		r := returns.Values[c]

		// anchor is exactly zero
		if r[0] != 0 {
			t.Fatalf("%s: expected anchor 0, got %v", c, r[0])
		}

		for i := 1; i < len(p); i++ {
			expected := (p[i] - p[i-1]) / p[i-1] * 100
			if math.Abs(r[i]-expected) > 1e-9 {
				t.Errorf("%s row %d: expected %v, got %v", c, i, expected, r[i])
			}
		}
	}

	ex.AssertWithin(t, "AAPL day 1", 1.0, returns.Values["AAPL"][1], 1e-9)
	ex.AssertWithin(t, "SP500 day 2", -1.0, returns.Values["SP500"][2], 1e-9)
	ex.AssertAreEqual(t, "SP500 flat day", 0.0, returns.Values["SP500"][4])
}

func TestComputeReturnsDropsNonFiniteRows(t *testing.T) {
	// a zero price makes the following return infinite
	benchmark := makeSeries(t, "SP500", testStart, 100, 101, 102, 103)
	stock := makeSeries(t, "AAPL", testStart, 10, 0, 12, 13)

	prices, err := Align(benchmark, []m.PriceSeries{stock})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	returns := ComputeReturns(prices)
	ex.AssertAreEqual(t, "dropped", 1, returns.DroppedRows)
	ex.AssertAreEqual(t, "rows", 3, returns.Len())

	// row 1 (-100%) is kept, row 2 (division by zero) is gone from every column
	if !slices.Equal(returns.Values["AAPL"], []float64{0, -100, (13.0 - 12.0) / 12.0 * 100}) {
		t.Fatalf("unexpected AAPL returns %v", returns.Values["AAPL"])
	}
	ex.AssertAreEqual(t, "SP500 rows", 3, len(returns.Values["SP500"]))
	ex.AssertAreEqual(t, "last date", ex.FmtShort(testStart.AddDate(0, 0, 3)), ex.FmtShort(returns.Dates[2]))
}

func TestComputeReturnsSingleRow(t *testing.T) {
	prices, err := Align(makeSeries(t, "SP500", testStart, 100), []m.PriceSeries{makeSeries(t, "AAPL", testStart, 10)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	returns := ComputeReturns(prices)
	ex.AssertAreEqual(t, "rows", 1, returns.Len())
	ex.AssertAreEqual(t, "anchor", 0.0, returns.Values["AAPL"][0])
}

func TestComputeReturnsLeavesPricesUntouched(t *testing.T) {
	prices, err := Align(makeSeries(t, "SP500", testStart, 100, 110), []m.PriceSeries{makeSeries(t, "AAPL", testStart, 10, 12)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ComputeReturns(prices)
	if _, err := NormalizePrices(prices); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !slices.Equal(prices.Values["AAPL"], []float64{10, 12}) {
		t.Fatalf("prices were modified: %v", prices.Values["AAPL"])
	}
}

func TestNormalizePrices(t *testing.T) {
	prices, err := Align(makeSeries(t, "SP500", testStart, 200, 220, 180), []m.PriceSeries{makeSeries(t, "AAPL", testStart, 10, 12, 15)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	normalized, err := NormalizePrices(prices)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slices.Equal(normalized.Values["AAPL"], []float64{1, 1.2, 1.5}) {
		t.Fatalf("unexpected normalized AAPL %v", normalized.Values["AAPL"])
	}
	if !slices.Equal(normalized.Values["SP500"], []float64{1, 1.1, 0.9}) {
		t.Fatalf("unexpected normalized SP500 %v", normalized.Values["SP500"])
	}
}

func TestNormalizePricesRejectsBadBase(t *testing.T) {
	for _, first := range []float64{0, -5, math.NaN(), math.Inf(1)} {
		prices, err := Align(makeSeries(t, "SP500", testStart, 200, 220), []m.PriceSeries{makeSeries(t, "AAPL", testStart, first, 12)})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if _, err := NormalizePrices(prices); !errors.Is(err, ErrInvalidPrice) {
			t.Fatalf("first price %v: expected ErrInvalidPrice, got %v", first, err)
		}
	}
}
