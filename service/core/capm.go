package core

import (
	"fmt"

	"gonum.org/v1/gonum/stat"
)

type CapmResult struct {
	Symbol         string
	Beta           float64
	ExpectedReturn float64 // percent, annualized
}

// EstimateCapmReturn is riskFreeRate + beta * (annualizedMarketReturn - riskFreeRate)
func EstimateCapmReturn(beta, annualizedMarketReturn, riskFreeRate float64) float64 {
	if beta == 0 {
		return riskFreeRate
	}
	return riskFreeRate + beta*(annualizedMarketReturn-riskFreeRate)
}

// AnnualizedMarketReturn is the mean daily benchmark return, anchor row included, times Daily
func AnnualizedMarketReturn(returns *ReturnTable, benchmarkColumn string) (float64, error) {
	x, ok := returns.Column(benchmarkColumn)
	if !ok {
		return 0, fmt.Errorf("%s: %w", benchmarkColumn, ErrUnknownColumn)
	}
	if len(x) == 0 {
		return 0, fmt.Errorf("benchmark has no returns: %w", ErrNoOverlap)
	}
	return stat.Mean(x, nil) * Daily, nil
}
