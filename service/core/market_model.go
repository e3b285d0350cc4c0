package core

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

type MarketModelResult struct {
	Symbol       string
	Beta         float64
	Alpha        float64
	RSquared     float64
	Correlation  float64
	Volatility   float64 // sample standard deviation of daily returns, percent
	Observations int
}

// FitMarketModel fits stock = alpha + beta * benchmark by ordinary least squares,
// beta = Cov(benchmark, stock) / Var(benchmark) and alpha = mean(stock) - beta * mean(benchmark).
func FitMarketModel(returns *ReturnTable, benchmarkColumn, stockColumn string) (MarketModelResult, error) {
	x, ok := returns.Column(benchmarkColumn)
	if !ok {
		return MarketModelResult{}, fmt.Errorf("%s: %w", benchmarkColumn, ErrUnknownColumn)
	}
	y, ok := returns.Column(stockColumn)
	if !ok {
		return MarketModelResult{}, fmt.Errorf("%s: %w", stockColumn, ErrUnknownColumn)
	}

	if len(x) < 2 {
		return MarketModelResult{}, fmt.Errorf("%d observations: %w", len(x), ErrDegenerateFit)
	}

	// a constant column can still leave a rounding residue in the variance
	if floats.Max(x) == floats.Min(x) {
		return MarketModelResult{}, ErrDegenerateFit
	}
	if v := stat.Variance(x, nil); !(v > 0) || math.IsInf(v, 0) {
		return MarketModelResult{}, ErrDegenerateFit
	}

	alpha, beta := stat.LinearRegression(x, y, nil, false)
	if !isFinite(alpha) || !isFinite(beta) {
		return MarketModelResult{}, ErrDegenerateFit
	}

	res := MarketModelResult{
		Symbol:       stockColumn,
		Beta:         beta,
		Alpha:        alpha,
		Volatility:   stat.StdDev(y, nil),
		Observations: len(y),
	}

	// a flat stock has nothing to explain
	if floats.Max(y) != floats.Min(y) {
		res.RSquared = stat.RSquared(x, y, nil, alpha, beta)
		res.Correlation = stat.Correlation(x, y, nil)
	}

	return res, nil
}

// FittedLine returns alpha + beta * x for every x, the regression line of the beta chart
func (r MarketModelResult) FittedLine(x []float64) []float64 {
	res := make([]float64, len(x))
	for i, v := range x {
		res[i] = r.Alpha + r.Beta*v
	}
	return res
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
