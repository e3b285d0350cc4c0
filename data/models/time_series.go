package models

import (
	"slices"
	"time"
)

// PricePoint is a single daily close, adjusted for splits and dividends.
type PricePoint struct {
	Date  time.Time `db:"timestamp"`
	Price float64   `db:"adjusted_close"`
}

// PriceSeries is the daily price history of one symbol.
type PriceSeries struct {
	Symbol string
	Points []PricePoint
}

func (ps PriceSeries) Len() int {
	return len(ps.Points)
}

// Sorted returns a copy of the series ordered by date ascending
func (ps PriceSeries) Sorted() PriceSeries {
	points := slices.Clone(ps.Points)
	slices.SortStableFunc(points, func(a, b PricePoint) int {
		return a.Date.Compare(b.Date)
	})
	return PriceSeries{Symbol: ps.Symbol, Points: points}
}

// Between returns the points whose calendar day falls within the days of start and end, both inclusive.
// Each date is read in its own location, so an exchange stamped midnight is not pushed across a day boundary.
func (ps PriceSeries) Between(start, end time.Time) PriceSeries {
	from, to := CalendarDay(start), CalendarDay(end)
	res := PriceSeries{Symbol: ps.Symbol, Points: make([]PricePoint, 0, len(ps.Points))}
	for _, p := range ps.Points {
		d := CalendarDay(p.Date)
		if d.Before(from) || d.After(to) {
			continue
		}
		res.Points = append(res.Points, p)
	}
	return res
}

// In returns a copy with every date expressed in loc
func (ps PriceSeries) In(loc *time.Location) PriceSeries {
	res := PriceSeries{Symbol: ps.Symbol, Points: make([]PricePoint, len(ps.Points))}
	for i, p := range ps.Points {
		res.Points[i] = PricePoint{Date: p.Date.In(loc), Price: p.Price}
	}
	return res
}

// CalendarDay drops time of day and zone, keeping the day t was reported on, as midnight UTC
func CalendarDay(t time.Time) time.Time {
	y, mo, d := t.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
}
