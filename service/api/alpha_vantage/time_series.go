package alpha_vantage

import (
	"fmt"
	"strings"
)

// TimeSeries specifies which daily series to query for stock data.
type TimeSeries uint8

const (
	TimeSeriesDaily TimeSeries = iota
	TimeSeriesDailyAdjusted
)

func (t TimeSeries) Name() string {
	switch t {
	case TimeSeriesDaily:
		return "daily"
	case TimeSeriesDailyAdjusted:
		return "daily_adjusted"
	default:
		return ""
	}
}

// ParseTimeSeries reads a series by Name, case insensitive. The free api tier only serves daily.
func ParseTimeSeries(name string) (TimeSeries, error) {
	for _, t := range []TimeSeries{TimeSeriesDaily, TimeSeriesDailyAdjusted} {
		if strings.EqualFold(strings.TrimSpace(name), t.Name()) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown alpha vantage series %q, expected daily or daily_adjusted", name)
}

func (t TimeSeries) Function() string {
	switch t {
	case TimeSeriesDaily:
		return "TIME_SERIES_DAILY"
	case TimeSeriesDailyAdjusted:
		return "TIME_SERIES_DAILY_ADJUSTED"
	default:
		return ""
	}
}

// TimeSeriesKey is the top level json key holding the observations, both daily functions share it
func (t TimeSeries) TimeSeriesKey() string {
	switch t {
	case TimeSeriesDaily, TimeSeriesDailyAdjusted:
		return "Time Series (Daily)"
	default:
		return ""
	}
}

func (t TimeSeries) IsAdjusted() bool {
	return strings.HasSuffix(t.Function(), "_ADJUSTED")
}
