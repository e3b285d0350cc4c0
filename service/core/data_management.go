package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	ex "capm/data/extensions"
	m "capm/data/models"
)

// sync is skipped when the stored history is younger than this
const syncCooldown = 24 * time.Hour

var (
	ErrDatabaseNotConfigured = errors.New("no database configured")
	ErrRecentlySynced        = errors.New("symbol was synced recently")
)

// SyncSymbolTimeSeriesData mirrors the configured daily history of symbol into postgres.
// The first sync copies the history in bulk, later syncs upsert every row so restated
// adjusted closes replace the stored ones. Cached runs using symbol are dropped.
func (sc *ServiceContext) SyncSymbolTimeSeriesData(ctx context.Context, symbol string) (time.Time, error) {
	if sc.PostgresConnection == nil {
		return time.Time{}, ErrDatabaseNotConfigured
	}
	if sc.AlphaVantageClient == nil {
		return time.Time{}, fmt.Errorf("alpha vantage client has not been set")
	}

	md, err := sc.PostgresConnection.GetMetaDataBySymbol(ctx, symbol)
	if err != nil {
		return time.Time{}, fmt.Errorf("error determining if meta data exists in sync data: %w", err)
	}

	if md == nil {
		log.Info().Str("symbol", symbol).Msg("adding new symbol to db")
		md = &m.TimeSeriesMetadata{
			Symbol:        symbol,
			LastRefreshed: time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC),
		}

		if err := sc.PostgresConnection.InsertNewMetaData(ctx, md, nil); err != nil {
			return time.Time{}, fmt.Errorf("error adding %s to db: %w", symbol, err)
		}
	}

	if md.LastRefreshed.After(sc.now().Add(-syncCooldown)) {
		return md.LastRefreshed, fmt.Errorf("%s last refreshed %s: %w", symbol, ex.FmtShort(md.LastRefreshed), ErrRecentlySynced)
	}

	mrd, err := sc.PostgresConnection.GetMostRecentTimestampForSymbol(ctx, symbol)
	if err != nil {
		return time.Time{}, fmt.Errorf("error getting most recent time series date for symbol %s: %w", symbol, err)
	}

	series := sc.AlphaVantageClient.TimeSeries
	if !series.IsAdjusted() {
		log.Warn().Str("symbol", symbol).Str("series", series.Name()).Msg("mirroring unadjusted closes, returns will jump on splits and dividends")
	}

	tsr, err := sc.AlphaVantageClient.StockTimeSeries(ctx, series, symbol)
	if err != nil {
		return time.Time{}, &UpstreamDataError{Symbol: symbol, Err: err}
	}

	for _, d := range tsr.TimeSeries {
		d.SourceId = md.Id
	}

	tx, err := sc.PostgresConnection.GetTransaction(ctx)
	if err != nil {
		return time.Time{}, fmt.Errorf("error beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) // no-op once committed

	var ra int64
	switch {
	case len(tsr.TimeSeries) == 0:
	case mrd == nil:
		ra, err = sc.PostgresConnection.InsertTimeSeriesData(ctx, tsr.TimeSeries, md.Id, tx)
	default:
		ra, err = sc.PostgresConnection.UpsertTimeSeriesData(ctx, tsr.TimeSeries, md.Id, tx)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("error writing time series data: %w", err)
	}

	if err := sc.PostgresConnection.UpdateLastRefreshedDate(ctx, symbol, tsr.Metadata.LastRefreshed, tx); err != nil {
		return time.Time{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return time.Time{}, fmt.Errorf("error committing transaction to sync symbol %s: %w", symbol, err)
	}

	dropped := 0
	if sc.Cache != nil {
		dropped = sc.Cache.Invalidate(symbol)
	}

	log.Info().
		Str("symbol", symbol).
		Str("series", series.Name()).
		Int("received", len(tsr.TimeSeries)).
		Int64("written", ra).
		Bool("initial", mrd == nil).
		Int("invalidated", dropped).
		Msg("symbol synced")
	return tsr.Metadata.LastRefreshed, nil
}
