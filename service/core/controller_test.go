package core

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	ex "capm/data/extensions"
	m "capm/data/models"
	sm "capm/service/models"
)

var testNow = time.Date(2025, time.December, 31, 15, 0, 0, 0, time.UTC)

// fakeSource serves fixed series, unknown symbols come back empty
type fakeSource struct {
	mu     sync.Mutex
	series map[string]m.PriceSeries
	errs   map[string]error
	calls  map[string]int
}

func newFakeSource(series ...m.PriceSeries) *fakeSource {
	f := &fakeSource{
		series: make(map[string]m.PriceSeries),
		errs:   make(map[string]error),
		calls:  make(map[string]int),
	}
	for _, s := range series {
		f.series[s.Symbol] = s
	}
	return f
}

func (f *fakeSource) GetPriceSeries(ctx context.Context, symbol string, start, end time.Time) (m.PriceSeries, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls[symbol]++
	if err := ctx.Err(); err != nil {
		return m.PriceSeries{}, err
	}
	if err, ok := f.errs[symbol]; ok {
		return m.PriceSeries{}, err
	}
	s, ok := f.series[symbol]
	if !ok {
		return m.PriceSeries{Symbol: symbol}, nil
	}
	return s.Between(start, end), nil
}

func (f *fakeSource) callCount(symbol string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[symbol]
}

// Helper: service context over generated market data, clock fixed after the data ends
func newTestContext(t *testing.T) (*ServiceContext, *fakeSource) {
	t.Helper()
	benchmark, stocks := generateMarket(t, 5)
	stockSource := newFakeSource(stocks...)

	return &ServiceContext{
		Context:         context.Background(),
		Stocks:          stockSource,
		Benchmark:       newFakeSource(benchmark),
		BenchmarkSeries: "SP500",
		FetchWorkers:    2,
		Now:             func() time.Time { return testNow },
	}, stockSource
}

func TestValidateSettings(t *testing.T) {
	tests := []struct {
		name     string
		settings sm.CapmRequestSettings
		expected error
	}{
		{"no symbols", sm.CapmRequestSettings{Years: 1}, ErrEmptyInput},
		{"blank symbols", sm.CapmRequestSettings{Symbols: []string{" ", ","}, Years: 1}, ErrEmptyInput},
		{"duplicate", sm.CapmRequestSettings{Symbols: []string{"aapl", "AAPL"}, Years: 1}, ErrDuplicateSymbol},
		{"zero years", sm.CapmRequestSettings{Symbols: []string{"AAPL"}, Years: 0}, ErrInvalidParameter},
		{"too many years", sm.CapmRequestSettings{Symbols: []string{"AAPL"}, Years: 26}, ErrInvalidParameter},
		{"nan rate", sm.CapmRequestSettings{Symbols: []string{"AAPL"}, Years: 1, RiskFreeRate: math.NaN()}, ErrInvalidParameter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ValidateSettings(tt.settings); !errors.Is(err, tt.expected) {
				t.Fatalf("expected %v, got %v", tt.expected, err)
			}
		})
	}

	res, err := ValidateSettings(sm.CapmRequestSettings{Symbols: []string{" aapl, googl ", "msft"}, Years: 25, RiskFreeRate: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ex.AssertAreEqual(t, "symbols", 3, len(res.Symbols))
	ex.AssertAreEqual(t, "first", "AAPL", res.Symbols[0])
	ex.AssertAreEqual(t, "last", "MSFT", res.Symbols[2])
}

func TestResolveWindow(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("no tz database: %v", err)
	}

	w := ResolveWindow(time.Date(2025, time.March, 3, 23, 30, 0, 0, ny), 2)
	ex.AssertAreEqual(t, "end", time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC), w.End)
	ex.AssertAreEqual(t, "start", time.Date(2023, time.March, 3, 0, 0, 0, 0, time.UTC), w.Start)

	leap := ResolveWindow(time.Date(2024, time.February, 29, 12, 0, 0, 0, time.UTC), 1)
	ex.AssertAreEqual(t, "leap day rolls forward", time.Date(2023, time.March, 1, 0, 0, 0, 0, time.UTC), leap.Start)
}

func TestRunCapm(t *testing.T) {
	sc, _ := newTestContext(t)

	run, err := sc.RunCapm(context.Background(), sm.CapmRequestSettings{Symbols: []string{"aapl,jpm"}, Years: 1, RiskFreeRate: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ex.AssertAreEqual(t, "window end", NormalizeDate(testNow), run.Window.End)
	ex.AssertAreEqual(t, "symbols", 2, len(run.Settings.Symbols))
	ex.AssertAreEqual(t, "benchmark column", "SP500", run.Report.Returns.Benchmark)
	ex.AssertAreEqual(t, "capm results", 2, len(run.Report.Capm))
	ex.AssertAreEqual(t, "risk free", 1.0, run.Report.RiskFreeRate)
}

func TestRunCapmWrapsUpstreamFailures(t *testing.T) {
	sc, stocks := newTestContext(t)
	boom := errors.New("connection reset")
	stocks.errs["JPM"] = boom

	_, err := sc.RunCapm(context.Background(), sm.CapmRequestSettings{Symbols: []string{"AAPL", "JPM"}, Years: 1})

	var upstream *UpstreamDataError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected UpstreamDataError, got %v", err)
	}
	ex.AssertAreEqual(t, "symbol", "JPM", upstream.Symbol)
	if !errors.Is(err, ErrUpstreamData) || !errors.Is(err, boom) {
		t.Fatalf("expected both the sentinel and the source error to match, got %v", err)
	}
}

func TestRunCapmEmptySeriesIsUpstreamFailure(t *testing.T) {
	sc, _ := newTestContext(t)

	_, err := sc.RunCapm(context.Background(), sm.CapmRequestSettings{Symbols: []string{"NOPE"}, Years: 1})
	if !errors.Is(err, ErrUpstreamData) || !errors.Is(err, errNoData) {
		t.Fatalf("expected an upstream no data error, got %v", err)
	}
}

func TestRunCapmUsesCache(t *testing.T) {
	sc, stocks := newTestContext(t)
	sc.Cache = NewResultCache(time.Hour, func() time.Time { return testNow })

	first, err := sc.RunCapm(context.Background(), sm.CapmRequestSettings{Symbols: []string{"JPM", "AAPL"}, Years: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := sc.RunCapm(context.Background(), sm.CapmRequestSettings{Symbols: []string{"AAPL", "JPM"}, Years: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ex.AssertAreEqual(t, "same run", first, second)
	ex.AssertAreEqual(t, "fetched once", 1, stocks.callCount("AAPL"))

	// a different rate is a different key
	if _, err := sc.RunCapm(context.Background(), sm.CapmRequestSettings{Symbols: []string{"AAPL", "JPM"}, Years: 1, RiskFreeRate: 3}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ex.AssertAreEqual(t, "fetched again", 2, stocks.callCount("AAPL"))
}

func TestGetCapmResponse(t *testing.T) {
	sc, _ := newTestContext(t)
	sc.Cache = NewResultCache(time.Hour, nil)

	// warm the cache with the other order first
	if _, err := sc.GetCapmResponse(context.Background(), sm.CapmRequestSettings{Symbols: []string{"AAPL", "JPM"}, Years: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res, err := sc.GetCapmResponse(context.Background(), sm.CapmRequestSettings{Symbols: []string{"JPM", "AAPL"}, Years: 1, RiskFreeRate: 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ex.AssertAreEqual(t, "benchmark", "SP500", res.Benchmark)
	ex.AssertAreEqual(t, "stocks", 2, len(res.Stocks))
	ex.AssertAreEqual(t, "request order", "JPM", res.Stocks[0].Symbol)
	ex.AssertAreEqual(t, "head", sm.HeadTailRows, len(res.Head))
	ex.AssertAreEqual(t, "tail", sm.HeadTailRows, len(res.Tail))
	ex.AssertAreEqual(t, "start", ex.FmtShort(testStart), res.Start)
	ex.AssertAreEqual(t, "tail ends the table", res.End, res.Tail[len(res.Tail)-1].Date)
	ex.AssertAreEqual(t, "normalized includes benchmark", 3, len(res.Normalized))
	ex.AssertAreEqual(t, "normalized last", "SP500", res.Normalized[2].Symbol)
	ex.AssertAreEqual(t, "normalized start", 1.0, res.Normalized[0].Values[0])

	for _, row := range res.Stocks {
		ex.AssertAreEqual(t, row.Symbol+" rounded", sm.Round2(row.Beta), row.Beta)
	}

	corr := res.Correlations
	ex.AssertNillability(t, "correlations", false, corr)
	ex.AssertAreEqual(t, "correlation order", "JPM,AAPL,SP500", strings.Join(corr.Symbols, ","))
	for i := range corr.Symbols {
		ex.AssertAreEqual(t, corr.Symbols[i]+" diagonal", 1.0, corr.Values[i][i])
		for j := range corr.Symbols {
			ex.AssertAreEqual(t, "symmetric", corr.Values[i][j], corr.Values[j][i])
		}
	}
}

func TestGetBetaResponse(t *testing.T) {
	sc, _ := newTestContext(t)

	res, err := sc.GetBetaResponse(context.Background(), "aapl", 1, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ex.AssertAreEqual(t, "symbol", "AAPL", res.Symbol)
	ex.AssertAreEqual(t, "observations", Daily+1, res.Observations)
	ex.AssertAreEqual(t, "scatter", Daily+1, len(res.Scatter))
	ex.AssertAreEqual(t, "line", 2, len(res.Line))
	if res.Line[0].X > res.Line[1].X {
		t.Fatalf("line should run left to right, got %v", res.Line)
	}
	ex.AssertWithin(t, "beta", 1.2, res.Beta, 0.15)

	ex.AssertAreEqual(t, "risk level", RiskHigh, res.Risk.Level)
	ex.AssertWithin(t, "relative volatility", (res.Beta-1)*100, res.Risk.RelativeVolatility, 0.01)
	if !strings.Contains(res.Risk.Summary, "more volatile than the market") {
		t.Fatalf("unexpected risk summary %q", res.Risk.Summary)
	}
	if res.MarketVolatility <= 0 {
		t.Fatalf("expected a market volatility, got %v", res.MarketVolatility)
	}
	ex.AssertWithin(t, "annualized volatility", res.Volatility*math.Sqrt(Daily), res.AnnualizedVolatility, 0.1)
	ex.AssertWithin(t, "annualized market volatility", res.MarketVolatility*math.Sqrt(Daily), res.AnnualizedMarketVolatility, 0.1)
	ex.AssertAreEqual(t, "r squared strength", StrengthLabel(res.RSquared), res.RSquaredStrength)
	ex.AssertAreEqual(t, "correlation strength", StrengthLabel(res.Correlation), res.CorrelationStrength)
	ex.AssertAreEqual(t, "volatility level", VolatilityLabel(res.Volatility), res.VolatilityLevel)

	if _, err := sc.GetBetaResponse(context.Background(), "AAPL,JPM", 1, 2); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter, got %v", err)
	}
}

func TestFallbackSource(t *testing.T) {
	stored := newFakeSource(makeSeries(t, "AAPL", testStart, 1, 2, 3))
	remote := newFakeSource(makeSeries(t, "AAPL", testStart, 4, 5, 6), makeSeries(t, "JPM", testStart, 7, 8))
	src := FallbackSource{stored, remote}

	s, err := src.GetPriceSeries(context.Background(), "AAPL", testStart, testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ex.AssertAreEqual(t, "stored first", 1.0, s.Points[0].Price)

	s, err = src.GetPriceSeries(context.Background(), "JPM", testStart, testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ex.AssertAreEqual(t, "falls through", 7.0, s.Points[0].Price)

	boom := errors.New("down")
	stored.errs["JPM"] = boom
	if _, err := src.GetPriceSeries(context.Background(), "JPM", testStart, testNow); !errors.Is(err, boom) {
		t.Fatalf("expected source error, got %v", err)
	}
	ex.AssertAreEqual(t, "stops on error", 1, remote.callCount("JPM"))
}

func TestGetCapmDetails(t *testing.T) {
	sc, _ := newTestContext(t)

	res, details, err := sc.GetCapmDetails(context.Background(), sm.CapmRequestSettings{Symbols: []string{"JPM", "AAPL"}, Years: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ex.AssertAreEqual(t, "details", len(res.Stocks), len(details))
	for i, row := range res.Stocks {
		ex.AssertAreEqual(t, "same symbol", row.Symbol, details[i].Symbol)
		ex.AssertAreEqual(t, row.Symbol+" same beta", row.Beta, details[i].Beta)
		ex.AssertAreEqual(t, row.Symbol+" same expected return", row.ExpectedReturn, details[i].ExpectedReturn)
	}
}

func TestRunCapmCancelledIsNotUpstreamFailure(t *testing.T) {
	sc, _ := newTestContext(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := sc.RunCapm(ctx, sm.CapmRequestSettings{Symbols: []string{"AAPL"}, Years: 1})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if errors.Is(err, ErrUpstreamData) {
		t.Fatalf("a cancelled request should not read as an upstream failure: %v", err)
	}
}
