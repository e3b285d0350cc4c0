package models

import (
	"math"

	"github.com/shopspring/decimal"
)

// CapmRequestSettings will be the request from the front end or the cli to the capm controller
type CapmRequestSettings struct {
	Symbols      []string `json:"symbols"`
	Years        int      `json:"years"`
	RiskFreeRate float64  `json:"riskFreeRate"` // percent
}

// CapmResponse is the overview of one run, every number is rounded to two decimals
type CapmResponse struct {
	Benchmark              string             `json:"benchmark"`
	Start                  string             `json:"start"`
	End                    string             `json:"end"`
	Observations           int                `json:"observations"`
	DroppedRows            int                `json:"droppedRows"`
	AnnualizedMarketReturn float64            `json:"annualizedMarketReturn"`
	RiskFreeRate           float64            `json:"riskFreeRate"`
	Stocks                 []CapmRow          `json:"stocks"`
	Head                   []PriceRow         `json:"head"`
	Tail                   []PriceRow         `json:"tail"`
	Normalized             []NormalizedSeries `json:"normalized"`
	Correlations           *CorrelationTable  `json:"correlations,omitempty"`
}

// CorrelationTable holds pairwise return correlations, Values[i][j] pairs Symbols[i] with Symbols[j]
type CorrelationTable struct {
	Symbols []string    `json:"symbols"`
	Values  [][]float64 `json:"values"`
}

type CapmRow struct {
	Symbol         string  `json:"symbol"`
	Beta           float64 `json:"beta"`
	ExpectedReturn float64 `json:"expectedReturn"`
}

// PriceRow is one date of the merged price table
type PriceRow struct {
	Date   string             `json:"date"`
	Prices map[string]float64 `json:"prices"`
}

// NormalizedSeries is a price column divided by its first value, for charting growth of 1
type NormalizedSeries struct {
	Symbol string    `json:"symbol"`
	Dates  []string  `json:"dates"`
	Values []float64 `json:"values"`
}

// BetaResponse is the detailed view of one stock against the benchmark
type BetaResponse struct {
	Symbol         string        `json:"symbol"`
	Benchmark      string        `json:"benchmark"`
	Start          string        `json:"start"`
	End            string        `json:"end"`
	Beta           float64       `json:"beta"`
	Alpha          float64       `json:"alpha"`
	RSquared       float64       `json:"rSquared"`
	Correlation    float64       `json:"correlation"`
	Volatility     float64       `json:"volatility"` // daily, percent
	ExpectedReturn float64       `json:"expectedReturn"`
	Observations   int           `json:"observations"`
	Scatter        []ReturnPoint `json:"scatter"`
	Line           []ReturnPoint `json:"line"`

	MarketVolatility           float64        `json:"marketVolatility"`
	AnnualizedVolatility       float64        `json:"annualizedVolatility"`
	AnnualizedMarketVolatility float64        `json:"annualizedMarketVolatility"`
	RSquaredStrength           string         `json:"rSquaredStrength"`
	CorrelationStrength        string         `json:"correlationStrength"`
	VolatilityLevel            string         `json:"volatilityLevel"`
	Risk                       RiskAssessment `json:"risk"`
}

// RiskAssessment describes beta in plain words, RelativeVolatility is |beta - 1| in percent
type RiskAssessment struct {
	Level              string  `json:"level"`
	RelativeVolatility float64 `json:"relativeVolatility"`
	Summary            string  `json:"summary"`
	Interpretation     string  `json:"interpretation"`
}

// ReturnPoint is a (benchmark return, stock return) pair
type ReturnPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Round2 rounds half away from zero to two decimals, non finite values are returned unchanged
func Round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}
