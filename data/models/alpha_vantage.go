package models

import (
	"time"

	"github.com/guregu/null/v6"
)

type TimeSeriesResult struct {
	Metadata   *TimeSeriesMetadata
	TimeSeries []*TimeSeriesData
}

// TimeSeriesMetadata is shared by the alpha vantage parser and the metadata table,
// the nullable fields only ever come from the api.
type TimeSeriesMetadata struct {
	Id            int32       `db:"id"`
	Symbol        string      `db:"symbol"`
	LastRefreshed time.Time   `db:"last_refreshed"`
	Information   null.String `db:"-"`
	OutputSize    null.String `db:"-"`
	TimeZone      string      `db:"-"`
}

type TimeSeriesOHLCV struct {
	Open   null.Float `db:"open"`
	High   null.Float `db:"high"`
	Low    null.Float `db:"low"`
	Close  null.Float `db:"close"`
	Volume null.Float `db:"volume"`
}

type TimeSeriesData struct {
	SourceId  int32     `db:"source_id"`
	Timestamp time.Time `db:"timestamp"`
	TimeSeriesOHLCV
	AdjustedClose    null.Float `db:"adjusted_close"`
	DividendAmount   null.Float `db:"dividend_amount"`
	SplitCoefficient null.Float `db:"split_coefficient"`
}

// ClosePrice prefers the adjusted close and falls back to the raw close,
// ok is false when neither is present.
func (d *TimeSeriesData) ClosePrice() (float64, bool) {
	if d.AdjustedClose.Valid {
		return d.AdjustedClose.Float64, true
	}
	if d.Close.Valid {
		return d.Close.Float64, true
	}
	return 0, false
}

// ToPriceSeries flattens an api result to the daily close series used by the pipeline.
// rows without any close are skipped.
func (r *TimeSeriesResult) ToPriceSeries(symbol string) PriceSeries {
	res := PriceSeries{Symbol: symbol, Points: make([]PricePoint, 0, len(r.TimeSeries))}
	for _, d := range r.TimeSeries {
		price, ok := d.ClosePrice()
		if !ok {
			continue
		}
		res.Points = append(res.Points, PricePoint{Date: d.Timestamp, Price: price})
	}
	return res.Sorted()
}
