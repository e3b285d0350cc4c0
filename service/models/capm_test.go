package models

import (
	"math"
	"testing"

	ex "capm/data/extensions"
)

func TestRound2(t *testing.T) {
	tests := []struct {
		in       float64
		expected float64
	}{
		{1.234, 1.23},
		{1.235, 1.24},
		{-1.235, -1.24},
		{0.005, 0.01},
		{12, 12},
		{0, 0},
	}

	for _, tt := range tests {
		ex.AssertAreEqual(t, "round", tt.expected, Round2(tt.in))
	}

	if !math.IsNaN(Round2(math.NaN())) {
		t.Fatal("NaN should pass through")
	}
	ex.AssertAreEqual(t, "inf", math.Inf(1), Round2(math.Inf(1)))
}

func TestGetCapmSettingsResources(t *testing.T) {
	res := GetCapmSettingsResources("SP500")
	ex.AssertAreEqual(t, "benchmark", "SP500", res.Benchmark)
	ex.AssertAreEqual(t, "min years", 1, res.MinYears)
	ex.AssertAreEqual(t, "max years", 25, res.MaxYears)
	ex.AssertAreEqual(t, "stocks", len(StockOptions), len(res.Stocks))

	res.Stocks[0] = "CHANGED"
	ex.AssertAreEqual(t, "options are copied", "AAPL", StockOptions[0])
}
