package core

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	m "capm/data/models"
	r "capm/data/repos"
	av "capm/service/api/alpha_vantage"
	"capm/service/api/fred"
	"capm/service/config"
)

// PriceSource is anything that can produce a daily price history for a symbol within [start, end]
type PriceSource interface {
	GetPriceSeries(ctx context.Context, symbol string, start, end time.Time) (m.PriceSeries, error)
}

type ServiceContext struct {
	Context            context.Context
	PostgresConnection *r.Postgres // nil when no database is configured
	AlphaVantageClient *av.AlphaVantageClient

	Stocks          PriceSource
	Benchmark       PriceSource
	BenchmarkSeries string
	FetchWorkers    int

	Cache *ResultCache // nil disables caching
	Now   func() time.Time
}

// NewServiceContext wires the market data clients, the optional postgres mirror and the cache from cfg.
// Stocks are read from postgres first when a database is configured, alpha vantage otherwise.
func NewServiceContext(ctx context.Context, cfg config.Config) (*ServiceContext, error) {
	avClient := av.GetClient(cfg.AlphaVantageApiKey, cfg.AlphaVantageSeries)
	fredClient := fred.GetClient(cfg.FredApiKey)

	sc := &ServiceContext{
		Context:            ctx,
		AlphaVantageClient: &avClient,
		Stocks:             &avClient,
		Benchmark:          &fredClient,
		BenchmarkSeries:    cfg.BenchmarkSeries,
		FetchWorkers:       cfg.FetchWorkers,
		Cache:              NewResultCache(cfg.CacheTTL, nil),
		Now:                time.Now,
	}

	if cfg.DatabaseUrl == "" {
		log.Info().Msg("no database configured, prices come straight from alpha vantage")
		return sc, nil
	}

	pg, err := r.GetPostgresConnection(ctx, cfg.DatabaseUrl)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pg.EnsureSchema(ctx); err != nil {
		pg.Close()
		return nil, err
	}

	sc.PostgresConnection = pg
	sc.Stocks = FallbackSource{pg, &avClient}
	return sc, nil
}

// Close releases the database pool if there is one
func (sc *ServiceContext) Close() {
	if sc.PostgresConnection != nil {
		sc.PostgresConnection.Close()
	}
}

func (sc *ServiceContext) now() time.Time {
	if sc.Now == nil {
		return time.Now()
	}
	return sc.Now()
}

// FallbackSource asks each source in order and returns the first non empty series.
// A source error stops the search, an empty result moves on to the next source.
type FallbackSource []PriceSource

func (fs FallbackSource) GetPriceSeries(ctx context.Context, symbol string, start, end time.Time) (m.PriceSeries, error) {
	for i, src := range fs {
		s, err := src.GetPriceSeries(ctx, symbol, start, end)
		if err != nil {
			return m.PriceSeries{}, fmt.Errorf("price source %d: %w", i, err)
		}
		if s.Len() > 0 {
			return s, nil
		}
	}
	return m.PriceSeries{Symbol: symbol}, nil
}
