package repos

import (
	"context"
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/jackc/pgx/v5"

	m "capm/data/models"
	q "capm/data/queries"
)

// daily rows are stamped at midnight on the exchange calendar
var exchangeLocation = loadLocation("America/New_York")

func loadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

var timeSeriesDataColumns = []string{
	"source_id", "timestamp", "open", "high", "low",
	"close", "volume", "adjusted_close", "dividend_amount", "split_coefficient",
}

// GetPriceSeries reads the stored daily closes for symbol on the calendar days start through end.
// Rows are read a day either side and trimmed by their exchange date, so a row stamped at
// New York midnight on the end day is kept. An empty series means nothing has been synced for that window.
func (pg *Postgres) GetPriceSeries(ctx context.Context, symbol string, start, end time.Time) (m.PriceSeries, error) {
	args := pgx.NamedArgs{
		"symbol": symbol,
		"start":  m.CalendarDay(start).AddDate(0, 0, -1),
		"end":    m.CalendarDay(end).AddDate(0, 0, 2),
	}

	points, err := Query[m.PricePoint](ctx, pg, q.Get(q.QueryHelper.Select.PriceSeries), args)
	if err != nil {
		return m.PriceSeries{}, fmt.Errorf("unable to query price series by symbol (%s): %w", symbol, err)
	}

	res := m.PriceSeries{Symbol: symbol, Points: make([]m.PricePoint, len(points))}
	for i, p := range points {
		res.Points[i] = *p
	}
	return res.In(exchangeLocation).Between(start, end), nil
}

// GetMostRecentTimestampForSymbol returns nil when there is no stored data for symbol
func (pg *Postgres) GetMostRecentTimestampForSymbol(ctx context.Context, symbol string) (*time.Time, error) {
	var res *time.Time
	err := pg.db.QueryRow(ctx, q.Get(q.QueryHelper.Select.MostRecentTimestampBySymbol), pgx.NamedArgs{"symbol": symbol}).Scan(&res)
	if err != nil {
		return nil, fmt.Errorf("unable to query most recent timestamp for %s: %w", symbol, err)
	}
	return res, nil
}

func (pg *Postgres) InsertTimeSeriesData(ctx context.Context, data []*m.TimeSeriesData, sourceId int32, tx pgx.Tx) (int64, error) {
	entries := make([][]any, len(data))
	for i, ent := range data {
		entries[i] = []any{
			sourceId, ent.Timestamp, ent.Open, ent.High, ent.Low,
			ent.Close, ent.Volume, ent.AdjustedClose, ent.DividendAmount, ent.SplitCoefficient,
		}
	}

	return pg.BulkInsert(ctx, "av_time_series_data", timeSeriesDataColumns, entries, tx)
}

// UpsertTimeSeriesData writes every row, replacing stored rows for the same day.
// Alpha Vantage restates the whole adjusted history after a split or dividend, so older rows change too.
func (pg *Postgres) UpsertTimeSeriesData(ctx context.Context, data []*m.TimeSeriesData, sourceId int32, tx pgx.Tx) (int64, error) {
	args := make([]pgx.NamedArgs, len(data))
	for i, ent := range data {
		args[i] = pgx.NamedArgs{
			"source_id":         sourceId,
			"timestamp":         ent.Timestamp,
			"open":              ent.Open,
			"high":              ent.High,
			"low":               ent.Low,
			"close":             ent.Close,
			"volume":            ent.Volume,
			"adjusted_close":    ent.AdjustedClose,
			"dividend_amount":   ent.DividendAmount,
			"split_coefficient": ent.SplitCoefficient,
		}
	}

	ra, err := pg.BatchExec(ctx, q.Get(q.QueryHelper.Insert.TimeSeriesData), args, tx)
	if err != nil {
		return ra, fmt.Errorf("unable to upsert time series data for source %d: %w", sourceId, err)
	}
	return ra, nil
}
