package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	ex "capm/data/extensions"
	m "capm/data/models"
	sm "capm/service/models"
)

const defaultFetchWorkers = 4

var errNoData = errors.New("no prices returned for the requested window")

// Window is the inclusive date range prices are requested for
type Window struct {
	Start time.Time
	End   time.Time
}

// ResolveWindow ends on the calendar day of now and starts on the same day years earlier
func ResolveWindow(now time.Time, years int) Window {
	end := NormalizeDate(now)
	return Window{
		Start: end.AddDate(-years, 0, 0),
		End:   end,
	}
}

// CapmRun is a pipeline report together with the request that produced it
type CapmRun struct {
	Settings sm.CapmRequestSettings
	Window   Window
	Report   *CapmReport
}

// ValidateSettings normalizes symbols to upper case and checks the window and rate.
// Duplicate symbols are rejected here so they are never fetched twice.
func ValidateSettings(settings sm.CapmRequestSettings) (sm.CapmRequestSettings, error) {
	symbols := make([]string, 0, len(settings.Symbols))
	seen := make(map[string]bool, len(settings.Symbols))
	for _, raw := range settings.Symbols {
		for _, s := range ex.SplitSymbols(raw) {
			if seen[s] {
				return settings, fmt.Errorf("%s: %w", s, ErrDuplicateSymbol)
			}
			seen[s] = true
			symbols = append(symbols, s)
		}
	}

	if len(symbols) == 0 {
		return settings, ErrEmptyInput
	}

	if settings.Years < sm.MinYears || settings.Years > sm.MaxYears {
		return settings, fmt.Errorf("years must be between %d and %d, got %d: %w", sm.MinYears, sm.MaxYears, settings.Years, ErrInvalidParameter)
	}

	if math.IsNaN(settings.RiskFreeRate) || math.IsInf(settings.RiskFreeRate, 0) {
		return settings, fmt.Errorf("risk free rate must be finite: %w", ErrInvalidParameter)
	}

	return sm.CapmRequestSettings{
		Symbols:      symbols,
		Years:        settings.Years,
		RiskFreeRate: settings.RiskFreeRate,
	}, nil
}

// RunCapm validates the request, fetches every series and runs the pipeline, going through the cache when one is set
func (sc *ServiceContext) RunCapm(ctx context.Context, settings sm.CapmRequestSettings) (*CapmRun, error) {
	start := time.Now()

	settings, err := ValidateSettings(settings)
	if err != nil {
		return nil, err
	}

	window := ResolveWindow(sc.now(), settings.Years)
	logger := log.With().Strs("symbols", settings.Symbols).Int("years", settings.Years).Logger()

	build := func(ctx context.Context) (*CapmRun, error) {
		logger.Info().Str("start", ex.FmtShort(window.Start)).Str("end", ex.FmtShort(window.End)).Msg("fetching price series")
		benchmark, stocks, err := sc.fetchSeries(ctx, settings.Symbols, window)
		if err != nil {
			return nil, err
		}

		logger.Debug().Dur("elapsed", time.Since(start)).Msg("running capm pipeline")
		report, err := RunPipeline(benchmark, stocks, settings.RiskFreeRate)
		if err != nil {
			return nil, err
		}

		if report.Returns.DroppedRows > 0 {
			logger.Warn().Int("dropped", report.Returns.DroppedRows).Msg("dropped return rows with non finite values")
		}

		return &CapmRun{Settings: settings, Window: window, Report: report}, nil
	}

	if sc.Cache == nil {
		run, err := build(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("capm run failed")
			return nil, err
		}
		logger.Info().Dur("elapsed", time.Since(start)).Msg("capm run completed")
		return run, nil
	}

	run, hit, err := sc.Cache.Get(ctx, NewCacheKey(settings.Symbols, settings.Years, settings.RiskFreeRate, window.End), build)
	if err != nil {
		logger.Error().Err(err).Msg("capm run failed")
		return nil, err
	}

	logger.Info().Bool("cached", hit).Dur("elapsed", time.Since(start)).Msg("capm run completed")
	return run, nil
}

// fetchSeries gets the benchmark and every stock concurrently, the first failure cancels the rest
func (sc *ServiceContext) fetchSeries(ctx context.Context, symbols []string, window Window) (m.PriceSeries, []m.PriceSeries, error) {
	if sc.Stocks == nil || sc.Benchmark == nil {
		return m.PriceSeries{}, nil, fmt.Errorf("price sources have not been set")
	}

	workers := sc.FetchWorkers
	if workers <= 0 {
		workers = defaultFetchWorkers
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var benchmark m.PriceSeries
	stocks := make([]m.PriceSeries, len(symbols))

	g.Go(func() error {
		s, err := fetchOne(gctx, sc.Benchmark, sc.BenchmarkSeries, window)
		benchmark = s
		return err
	})

	for i, symbol := range symbols {
		g.Go(func() error {
			s, err := fetchOne(gctx, sc.Stocks, symbol, window)
			stocks[i] = s
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return m.PriceSeries{}, nil, err
	}

	return benchmark, stocks, nil
}

func fetchOne(ctx context.Context, src PriceSource, symbol string, window Window) (m.PriceSeries, error) {
	s, err := src.GetPriceSeries(ctx, symbol, window.Start, window.End)
	if err != nil {
		// a cancelled request is not the provider's fault
		if ctxErr := ctx.Err(); ctxErr != nil {
			return m.PriceSeries{}, ctxErr
		}
		return m.PriceSeries{}, &UpstreamDataError{Symbol: symbol, Err: err}
	}
	if s.Len() == 0 {
		return m.PriceSeries{}, &UpstreamDataError{Symbol: symbol, Err: errNoData}
	}

	log.Debug().Str("symbol", symbol).Int("observations", s.Len()).Msg("price series fetched")

	s.Symbol = symbol
	return s, nil
}

// GetCapmResponse runs the request and builds the overview, stocks in request order
func (sc *ServiceContext) GetCapmResponse(ctx context.Context, settings sm.CapmRequestSettings) (*sm.CapmResponse, error) {
	settings, err := ValidateSettings(settings)
	if err != nil {
		return nil, err
	}

	run, err := sc.RunCapm(ctx, settings)
	if err != nil {
		return nil, err
	}
	return buildCapmResponse(run, settings.Symbols), nil
}

// GetCapmDetails is GetCapmResponse plus the regression detail of every stock, all from the same run
func (sc *ServiceContext) GetCapmDetails(ctx context.Context, settings sm.CapmRequestSettings) (*sm.CapmResponse, []*sm.BetaResponse, error) {
	settings, err := ValidateSettings(settings)
	if err != nil {
		return nil, nil, err
	}

	run, err := sc.RunCapm(ctx, settings)
	if err != nil {
		return nil, nil, err
	}

	details := make([]*sm.BetaResponse, 0, len(settings.Symbols))
	for _, symbol := range settings.Symbols {
		d, err := buildBetaResponse(run, symbol)
		if err != nil {
			return nil, nil, err
		}
		details = append(details, d)
	}

	return buildCapmResponse(run, settings.Symbols), details, nil
}

// GetBetaResponse runs the request for a single symbol and builds the regression detail
func (sc *ServiceContext) GetBetaResponse(ctx context.Context, symbol string, years int, riskFreeRate float64) (*sm.BetaResponse, error) {
	run, err := sc.RunCapm(ctx, sm.CapmRequestSettings{
		Symbols:      []string{symbol},
		Years:        years,
		RiskFreeRate: riskFreeRate,
	})
	if err != nil {
		return nil, err
	}

	if len(run.Settings.Symbols) != 1 {
		return nil, fmt.Errorf("beta detail takes exactly one symbol, got %d: %w", len(run.Settings.Symbols), ErrInvalidParameter)
	}
	return buildBetaResponse(run, run.Settings.Symbols[0])
}

// buildCapmResponse orders stocks by symbols, a cached run may have been computed for another order
func buildCapmResponse(run *CapmRun, symbols []string) *sm.CapmResponse {
	report := run.Report
	prices := report.Prices

	res := &sm.CapmResponse{
		Benchmark:              prices.Benchmark,
		Start:                  ex.FmtShort(prices.Dates[0]),
		End:                    ex.FmtShort(prices.Dates[prices.Len()-1]),
		Observations:           report.Returns.Len(),
		DroppedRows:            report.Returns.DroppedRows,
		AnnualizedMarketReturn: sm.Round2(report.AnnualizedMarketReturn),
		RiskFreeRate:           sm.Round2(report.RiskFreeRate),
		Stocks:                 make([]sm.CapmRow, 0, len(symbols)),
		Normalized:             make([]sm.NormalizedSeries, 0, len(prices.Columns)),
	}

	for _, symbol := range symbols {
		c := report.Capm[symbol]
		res.Stocks = append(res.Stocks, sm.CapmRow{
			Symbol:         symbol,
			Beta:           sm.Round2(c.Beta),
			ExpectedReturn: sm.Round2(c.ExpectedReturn),
		})
	}

	n := prices.Len()
	head := ex.Min(sm.HeadTailRows, n)
	res.Head = priceRows(prices, 0, head)
	res.Tail = priceRows(prices, n-head, n)

	dates := ex.Map(report.NormalizedPrices.Dates, ex.FmtShort)
	for _, c := range slices.Concat(symbols, []string{prices.Benchmark}) {
		res.Normalized = append(res.Normalized, sm.NormalizedSeries{
			Symbol: c,
			Dates:  dates,
			Values: ex.Map(report.NormalizedPrices.Values[c], sm.Round2),
		})
	}

	res.Correlations = correlationTable(report, slices.Concat(symbols, []string{prices.Benchmark}))
	return res
}

// correlationTable reorders the report's matrix to follow order
func correlationTable(report *CapmReport, order []string) *sm.CorrelationTable {
	if report.Correlations == nil {
		return nil
	}

	index := make(map[string]int, len(report.Returns.Columns))
	for i, c := range report.Returns.Columns {
		index[c] = i
	}

	res := &sm.CorrelationTable{Symbols: order, Values: make([][]float64, len(order))}
	for i, a := range order {
		res.Values[i] = make([]float64, len(order))
		for j, b := range order {
			res.Values[i][j] = sm.Round2(report.Correlations.At(index[a], index[b]))
		}
	}
	return res
}

func priceRows(prices *AlignedPriceTable, from, to int) []sm.PriceRow {
	res := make([]sm.PriceRow, 0, to-from)
	for i := from; i < to; i++ {
		row := sm.PriceRow{
			Date:   ex.FmtShort(prices.Dates[i]),
			Prices: make(map[string]float64, len(prices.Columns)),
		}
		for _, c := range prices.Columns {
			row.Prices[c] = sm.Round2(prices.Values[c][i])
		}
		res = append(res, row)
	}
	return res
}

func buildBetaResponse(run *CapmRun, symbol string) (*sm.BetaResponse, error) {
	report := run.Report
	returns := report.Returns

	fit, ok := report.MarketModels[symbol]
	if !ok {
		return nil, fmt.Errorf("%s: %w", symbol, ErrUnknownColumn)
	}

	x := returns.Values[returns.Benchmark]
	y := returns.Values[symbol]

	scatter := make([]sm.ReturnPoint, len(x))
	for i := range x {
		scatter[i] = sm.ReturnPoint{X: sm.Round2(x[i]), Y: sm.Round2(y[i])}
	}

	ends := []float64{floats.Min(x), floats.Max(x)}
	line := fit.FittedLine(ends)
	marketVolatility := stat.StdDev(x, nil)

	return &sm.BetaResponse{
		Symbol:         symbol,
		Benchmark:      returns.Benchmark,
		Start:          ex.FmtShort(returns.Dates[0]),
		End:            ex.FmtShort(returns.Dates[returns.Len()-1]),
		Beta:           sm.Round2(fit.Beta),
		Alpha:          sm.Round2(fit.Alpha),
		RSquared:       sm.Round2(fit.RSquared),
		Correlation:    sm.Round2(fit.Correlation),
		Volatility:     sm.Round2(fit.Volatility),
		ExpectedReturn: sm.Round2(report.Capm[symbol].ExpectedReturn),
		Observations:   fit.Observations,
		Scatter:        scatter,
		Line: []sm.ReturnPoint{
			{X: sm.Round2(ends[0]), Y: sm.Round2(line[0])},
			{X: sm.Round2(ends[1]), Y: sm.Round2(line[1])},
		},
		MarketVolatility:           sm.Round2(marketVolatility),
		AnnualizedVolatility:       sm.Round2(AnnualizedVolatility(fit.Volatility)),
		AnnualizedMarketVolatility: sm.Round2(AnnualizedVolatility(marketVolatility)),
		RSquaredStrength:           StrengthLabel(fit.RSquared),
		CorrelationStrength:        StrengthLabel(fit.Correlation),
		VolatilityLevel:            VolatilityLabel(fit.Volatility),
		Risk:                       AssessRisk(symbol, fit.Beta),
	}, nil
}
