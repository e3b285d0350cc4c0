package core

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	m "capm/data/models"
)

// CapmReport is everything computed for one (symbols, window, risk free rate) request.
// Per symbol results are keyed by symbol.
type CapmReport struct {
	Prices                 *AlignedPriceTable
	NormalizedPrices       *AlignedPriceTable
	Returns                *ReturnTable
	Correlations           *mat.SymDense
	AnnualizedMarketReturn float64
	RiskFreeRate           float64
	MarketModels           map[string]MarketModelResult
	Capm                   map[string]CapmResult
}

// RunPipeline aligns, computes returns, fits every stock against the benchmark and applies CAPM.
// It has no side effects, the first error of any stage is returned.
func RunPipeline(benchmark m.PriceSeries, stocks []m.PriceSeries, riskFreeRate float64) (*CapmReport, error) {
	prices, err := Align(benchmark, stocks)
	if err != nil {
		return nil, err
	}

	normalized, err := NormalizePrices(prices)
	if err != nil {
		return nil, err
	}

	returns := ComputeReturns(prices)

	rm, err := AnnualizedMarketReturn(returns, returns.Benchmark)
	if err != nil {
		return nil, err
	}

	report := &CapmReport{
		Prices:                 prices,
		NormalizedPrices:       normalized,
		Returns:                returns,
		Correlations:           CorrelationMatrix(returns),
		AnnualizedMarketReturn: rm,
		RiskFreeRate:           riskFreeRate,
		MarketModels:           make(map[string]MarketModelResult, len(stocks)),
		Capm:                   make(map[string]CapmResult, len(stocks)),
	}

	for _, symbol := range returns.Stocks() {
		fit, err := FitMarketModel(returns, returns.Benchmark, symbol)
		if err != nil {
			return nil, fmt.Errorf("fitting market model for %s: %w", symbol, err)
		}

		report.MarketModels[symbol] = fit
		report.Capm[symbol] = CapmResult{
			Symbol:         symbol,
			Beta:           fit.Beta,
			ExpectedReturn: EstimateCapmReturn(fit.Beta, rm, riskFreeRate),
		}
	}

	return report, nil
}
