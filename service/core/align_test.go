package core

import (
	"errors"
	"slices"
	"testing"
	"time"

	ex "capm/data/extensions"
	m "capm/data/models"
)

func TestAlignInnerJoinIsSetEqualToCommonDates(t *testing.T) {
	benchmark := makeSeries(t, "SP500", testStart, 100, 101, 102, 103, 104, 105)

	// aapl misses day 2, googl starts on day 1 and misses day 4
	aapl := makeSeries(t, "AAPL", testStart, 10, 11, 12, 13, 14, 15)
	aapl.Points = slices.Delete(aapl.Points, 2, 3)
	googl := makeSeries(t, "GOOGL", testStart.AddDate(0, 0, 1), 20, 21, 22, 23, 24)
	googl.Points = slices.Delete(googl.Points, 3, 4)

	table, err := Align(benchmark, []m.PriceSeries{aapl, googl})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := []time.Time{testStart.AddDate(0, 0, 1), testStart.AddDate(0, 0, 3), testStart.AddDate(0, 0, 5)}
	if !slices.EqualFunc(table.Dates, expected, time.Time.Equal) {
		t.Fatalf("expected dates %v, got %v", expected, table.Dates)
	}

	if !slices.Equal(table.Columns, []string{"AAPL", "GOOGL", "SP500"}) {
		t.Fatalf("unexpected columns %v", table.Columns)
	}
	ex.AssertAreEqual(t, "benchmark", "SP500", table.Benchmark)
	if !slices.Equal(table.Stocks(), []string{"AAPL", "GOOGL"}) {
		t.Fatalf("unexpected stocks %v", table.Stocks())
	}

	// every row has every column, values follow the dates
	for _, c := range table.Columns {
		ex.AssertAreEqual(t, c+" length", 3, len(table.Values[c]))
	}
	if !slices.Equal(table.Values["AAPL"], []float64{11, 13, 15}) {
		t.Fatalf("unexpected AAPL prices %v", table.Values["AAPL"])
	}
	if !slices.Equal(table.Values["GOOGL"], []float64{20, 22, 24}) {
		t.Fatalf("unexpected GOOGL prices %v", table.Values["GOOGL"])
	}
	if !slices.Equal(table.Values["SP500"], []float64{101, 103, 105}) {
		t.Fatalf("unexpected SP500 prices %v", table.Values["SP500"])
	}
}

func TestAlignNormalizesTimestamps(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("error loading location: %v", err)
	}

	benchmark := m.PriceSeries{Symbol: "SP500", Points: []m.PricePoint{
		{Date: time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC), Price: 100},
		{Date: time.Date(2025, time.March, 4, 0, 0, 0, 0, time.UTC), Price: 101},
	}}

	// same calendar days reported at midnight new york and at the close
	stock := m.PriceSeries{Symbol: "AAPL", Points: []m.PricePoint{
		{Date: time.Date(2025, time.March, 4, 16, 0, 0, 0, ny), Price: 11},
		{Date: time.Date(2025, time.March, 3, 0, 0, 0, 0, ny), Price: 10},
	}}

	table, err := Align(benchmark, []m.PriceSeries{stock})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ex.AssertAreEqual(t, "rows", 2, table.Len())
	ex.AssertAreEqual(t, "first date", "2025-03-03", ex.FmtShort(table.Dates[0]))
	ex.AssertAreEqual(t, "first date location", time.UTC, table.Dates[0].Location())
	ex.AssertAreEqual(t, "first price", 10.0, table.Values["AAPL"][0])
	ex.AssertAreEqual(t, "second price", 11.0, table.Values["AAPL"][1])
}

func TestAlignSameDayKeepsLatestTimestamp(t *testing.T) {
	day := time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC)
	benchmark := makeSeries(t, "SP500", day, 100)
	stock := m.PriceSeries{Symbol: "AAPL", Points: []m.PricePoint{
		{Date: day.Add(20 * time.Hour), Price: 12},
		{Date: day.Add(9 * time.Hour), Price: 10},
	}}

	table, err := Align(benchmark, []m.PriceSeries{stock})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ex.AssertAreEqual(t, "price", 12.0, table.Values["AAPL"][0])
}

func TestAlignErrors(t *testing.T) {
	benchmark := makeSeries(t, "SP500", testStart, 100, 101, 102)

	if _, err := Align(benchmark, nil); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}

	disjoint := makeSeries(t, "AAPL", testStart.AddDate(0, 1, 0), 10, 11, 12)
	if _, err := Align(benchmark, []m.PriceSeries{disjoint}); !errors.Is(err, ErrNoOverlap) {
		t.Fatalf("expected ErrNoOverlap, got %v", err)
	}

	empty := m.PriceSeries{Symbol: "AAPL"}
	if _, err := Align(benchmark, []m.PriceSeries{empty}); !errors.Is(err, ErrNoOverlap) {
		t.Fatalf("expected ErrNoOverlap for an empty series, got %v", err)
	}

	a := makeSeries(t, "AAPL", testStart, 10, 11, 12)
	if _, err := Align(benchmark, []m.PriceSeries{a, a}); !errors.Is(err, ErrDuplicateSymbol) {
		t.Fatalf("expected ErrDuplicateSymbol, got %v", err)
	}

	clash := makeSeries(t, "SP500", testStart, 10, 11, 12)
	if _, err := Align(benchmark, []m.PriceSeries{clash}); !errors.Is(err, ErrDuplicateSymbol) {
		t.Fatalf("expected ErrDuplicateSymbol for a stock named like the benchmark, got %v", err)
	}

	unnamed := makeSeries(t, "", testStart, 10, 11, 12)
	if _, err := Align(benchmark, []m.PriceSeries{unnamed}); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput for an unnamed series, got %v", err)
	}
}

func TestAlignDefaultBenchmarkColumn(t *testing.T) {
	benchmark := makeSeries(t, "", testStart, 100, 101)
	stock := makeSeries(t, "AAPL", testStart, 10, 11)

	table, err := Align(benchmark, []m.PriceSeries{stock})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ex.AssertAreEqual(t, "benchmark", DefaultBenchmarkColumn, table.Benchmark)
	ex.AssertAreEqual(t, "last column", DefaultBenchmarkColumn, table.Columns[len(table.Columns)-1])
}

func TestAlignDoesNotMutateInput(t *testing.T) {
	benchmark := makeSeries(t, "SP500", testStart, 100, 101, 102)
	stock := makeSeries(t, "AAPL", testStart, 10, 11, 12)
	slices.Reverse(stock.Points)
	before := slices.Clone(stock.Points)

	if _, err := Align(benchmark, []m.PriceSeries{stock}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slices.Equal(before, stock.Points) {
		t.Fatal("align reordered its input")
	}
}
