package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/subcommands"
	"github.com/rs/zerolog/log"

	ex "capm/data/extensions"
	sm "capm/service/models"
)

// windowFlags are shared by every command that runs the pipeline
type windowFlags struct {
	years int
	rf    float64
}

func (w *windowFlags) set(f *flag.FlagSet) {
	f.IntVar(&w.years, "years", sm.DefaultYears, fmt.Sprintf("lookback in years (%d-%d)", sm.MinYears, sm.MaxYears))
	f.Float64Var(&w.rf, "rf", sm.DefaultRiskFreeRate, "risk free rate in percent")
}

func (w *windowFlags) clampedYears() int {
	return ex.Clamp(w.years, sm.MinYears, sm.MaxYears)
}

type capmCmd struct {
	windowFlags
	symbols string
}

func (*capmCmd) Name() string     { return "capm" }
func (*capmCmd) Synopsis() string { return "beta and CAPM expected return for several stocks" }
func (*capmCmd) Usage() string {
	return `capmcli capm [-symbols AAPL,MSFT] [-years 1] [-rf 0]

  Aligns the stocks with the benchmark over the lookback, fits each stock's
  market model and prints beta, expected return and the return correlations.
`
}

func (p *capmCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.symbols, "symbols", strings.Join(sm.StockOptions[:4], ","), "comma separated stock symbols")
	p.windowFlags.set(f)
}

func (p *capmCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	sc, err := serviceContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer sc.Close()

	settings := sm.CapmRequestSettings{
		Symbols:      ex.SplitSymbols(p.symbols),
		Years:        p.clampedYears(),
		RiskFreeRate: p.rf,
	}

	res, details, err := sc.GetCapmDetails(ctx, settings)
	if err != nil {
		log.Error().Err(err).Msg("capm run failed")
		return subcommands.ExitFailure
	}

	render(os.Stdout, res, details)
	return subcommands.ExitSuccess
}

type betaCmd struct {
	windowFlags
}

func (*betaCmd) Name() string     { return "beta" }
func (*betaCmd) Synopsis() string { return "regression detail and risk assessment for one stock" }
func (*betaCmd) Usage() string {
	return `capmcli beta [-years 1] [-rf 0] <symbol>

  Prints the market model of a single stock against the benchmark with
  volatility figures and a plain reading of its beta.
`
}

func (p *betaCmd) SetFlags(f *flag.FlagSet) {
	p.windowFlags.set(f)
}

func (p *betaCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "beta takes exactly one symbol")
		return subcommands.ExitUsageError
	}

	sc, err := serviceContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer sc.Close()

	res, err := sc.GetBetaResponse(ctx, f.Arg(0), p.clampedYears(), p.rf)
	if err != nil {
		log.Error().Err(err).Str("symbol", f.Arg(0)).Msg("beta run failed")
		return subcommands.ExitFailure
	}

	renderBeta(os.Stdout, res)
	return subcommands.ExitSuccess
}

type syncCmd struct{}

func (*syncCmd) Name() string     { return "sync" }
func (*syncCmd) Synopsis() string { return "mirror the daily history of stocks into postgres" }
func (*syncCmd) Usage() string {
	return `capmcli sync <symbol>...

  Requires DATABASE_URL. Symbols synced within the last day are skipped.
`
}

func (*syncCmd) SetFlags(*flag.FlagSet) {}

func (*syncCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	symbols := ex.SplitSymbols(strings.Join(f.Args(), ","))
	if len(symbols) == 0 {
		fmt.Fprintln(os.Stderr, "sync takes at least one symbol")
		return subcommands.ExitUsageError
	}

	sc, err := serviceContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer sc.Close()

	status := subcommands.ExitSuccess
	for _, symbol := range symbols {
		refreshed, err := sc.SyncSymbolTimeSeriesData(ctx, symbol)
		if err != nil {
			log.Error().Err(err).Str("symbol", symbol).Msg("sync failed")
			status = subcommands.ExitFailure
			continue
		}
		fmt.Fprintf(os.Stdout, "%s synced through %s\n", symbol, ex.FmtShort(refreshed))
	}
	return status
}
