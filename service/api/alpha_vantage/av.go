package alpha_vantage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"net/url"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/guregu/null/v6"
	"github.com/rs/zerolog/log"

	e "capm/data/extensions"
	m "capm/data/models"
	c "capm/service/api"
)

// public
const (
	HostDefault = "www.alphavantage.co"
)

// private
const (
	// default query parameters
	defaultOutputSize = "full"
	defaultDataType   = "json"
	defaultTimeout    = time.Second * 30

	// api request elements
	query    = "query"
	symbol   = "symbol"
	function = "function"
)

var (
	timeSeriesDateFormats = []string{
		"2006-01-02",
		"2006-01-02 15:04:05",
	}

	ohlcvResultKeys = map[string]string{
		"Open":   ". open",
		"High":   ". high",
		"Low":    ". low",
		"Close":  ". close",
		"Volume": ". volume",
	}

	// alpha vantage answers 200 with one of these instead of data when throttled or misused
	apiMessageKeys = []string{"Error Message", "Note", "Information"}
)

type AlphaVantageClient struct {
	*c.Client
	TimeSeries TimeSeries
}

func GetClient(apiKey string, series TimeSeries) AlphaVantageClient {
	return AlphaVantageClient{
		Client:     c.ClientFactory(HostDefault, apiKey, defaultTimeout),
		TimeSeries: series,
	}
}

// GetPriceSeries returns the daily closes of ticker between start and end, oldest first.
// Adjusted close is used when the configured series has one.
func (avc *AlphaVantageClient) GetPriceSeries(ctx context.Context, ticker string, start, end time.Time) (m.PriceSeries, error) {
	tsr, err := avc.StockTimeSeries(ctx, avc.TimeSeries, ticker)
	if err != nil {
		return m.PriceSeries{}, err
	}

	return tsr.ToPriceSeries(ticker).Between(start, end), nil
}

// StockTimeSeries queries the full daily history of a ticker
// https://www.alphavantage.co/documentation/#dailyadj
func (avc *AlphaVantageClient) StockTimeSeries(ctx context.Context, timeSeries TimeSeries, ticker string) (*m.TimeSeriesResult, error) {
	if avc == nil || avc.Client == nil {
		return nil, fmt.Errorf("alpha vantage client has not been set")
	}

	endpoint := avc.buildRequestPath(map[string]string{
		function: timeSeries.Function(),
		symbol:   ticker,
	})

	response, err := avc.Client.Connection.Request(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("error requesting %s for %s: %w", timeSeries.Function(), ticker, err)
	}

	defer response.Body.Close()

	raw, err := parseRawJson(response.Body)
	if err != nil {
		return nil, err
	}

	if err := checkApiMessage(raw); err != nil {
		return nil, fmt.Errorf("alpha vantage rejected %s request for %s: %w", timeSeries.Function(), ticker, err)
	}

	metaData, timeZone, err := parseMetaData(raw)
	if err != nil {
		return nil, err
	}

	timeSeriesData, err := parseTimeSeriesDataResult(raw, timeSeries.TimeSeriesKey(), timeZone)
	if err != nil {
		return nil, err
	}

	log.Debug().Str("symbol", ticker).Int("observations", len(timeSeriesData)).Msg("alpha vantage time series parsed")

	return &m.TimeSeriesResult{
		Metadata:   metaData,
		TimeSeries: timeSeriesData,
	}, nil
}

func (avc *AlphaVantageClient) buildRequestPath(params map[string]string) *url.URL {
	// build our URL
	endpoint := &url.URL{}
	endpoint.Path = query

	// base parameters
	query := endpoint.Query()
	query.Set("apikey", avc.Client.ApiKey)
	query.Set("datatype", defaultDataType)
	query.Set("outputsize", defaultOutputSize)

	// additional parameters
	for key, value := range params {
		query.Set(key, value)
	}

	endpoint.RawQuery = query.Encode()

	return endpoint
}

func parseRawJson(reader io.Reader) (raw map[string]json.RawMessage, err error) {
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}

	// converting to a <string, raw message> map
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("error unmarshaling response: %w", err)
	}

	return
}

func checkApiMessage(raw map[string]json.RawMessage) error {
	if _, ok := raw["Meta Data"]; ok {
		return nil
	}

	for _, key := range apiMessageKeys {
		if msg, ok := raw[key]; ok {
			var s string
			if err := json.Unmarshal(msg, &s); err != nil {
				s = string(msg)
			}
			return fmt.Errorf("%s: %s", strings.ToLower(key), s)
		}
	}

	return fmt.Errorf("response has no meta data")
}

func parseMetaData(raw map[string]json.RawMessage) (*m.TimeSeriesMetadata, *time.Location, error) {
	var metadataElements map[string]string
	if err := json.Unmarshal(raw["Meta Data"], &metadataElements); err != nil {
		return nil, nil, fmt.Errorf("error unmarshaling meta data: %w", err)
	}

	metaDataKeys := slices.Collect(maps.Keys(metadataElements))
	find := func(suffix string) (string, error) {
		return e.FilterSingle(metaDataKeys, func(s string) bool { return strings.HasSuffix(s, suffix) })
	}

	symbolKey, err := find(". Symbol")
	if err != nil {
		return nil, nil, fmt.Errorf("error extracting symbol for meta data")
	}

	timeZoneKey, err := find(". Time Zone")
	if err != nil {
		return nil, nil, fmt.Errorf("error extracting time zone for meta data")
	}

	timeZone, err := getTimeZone(metadataElements[timeZoneKey])
	if err != nil {
		return nil, nil, fmt.Errorf("error converting time zone key %s, to time.Location: %w", metadataElements[timeZoneKey], err)
	}

	lastRefreshedKey, err := find(". Last Refreshed")
	if err != nil {
		return nil, nil, fmt.Errorf("error extracting last refreshed date")
	}

	lastRefreshed, err := parseDate(metadataElements[lastRefreshedKey], timeZone)
	if err != nil {
		return nil, nil, fmt.Errorf("error parsing last refreshed date: %w", err)
	}

	res := m.TimeSeriesMetadata{
		Symbol:        metadataElements[symbolKey],
		LastRefreshed: lastRefreshed,
		TimeZone:      metadataElements[timeZoneKey],
	}

	if key, err := find(". Information"); err == nil {
		res.Information = null.StringFrom(metadataElements[key])
	}
	if key, err := find(". Output Size"); err == nil {
		res.OutputSize = null.StringFrom(metadataElements[key])
	}

	return &res, timeZone, nil
}

func parseTimeSeriesDataResult(raw map[string]json.RawMessage, key string, location *time.Location) ([]*m.TimeSeriesData, error) {
	var timeSeriesElements map[string]map[string]string
	if err := json.Unmarshal(raw[key], &timeSeriesElements); err != nil {
		return nil, fmt.Errorf("error unmarshaling time series: %w", err)
	}

	if len(timeSeriesElements) == 0 {
		return []*m.TimeSeriesData{}, nil
	}

	// populate the lookups
	var firstValue map[string]string
	for _, v := range timeSeriesElements {
		firstValue = v
		break
	}

	ohlcvLookup, err := getLookupKey(ohlcvResultKeys, firstValue)
	if err != nil {
		return nil, err
	}

	// adjusted close, dividend and split only exist on the adjusted series
	valueKeys := slices.Collect(maps.Keys(firstValue))
	optionalKey := func(suffix string) string {
		k, _ := e.FilterSingle(valueKeys, func(s string) bool { return strings.HasSuffix(s, suffix) })
		return k
	}
	adjustedCloseKey := optionalKey(". adjusted close")
	dividendAmountKey := optionalKey(". dividend amount")
	splitCoefficientKey := optionalKey(". split coefficient")

	timeSeries := make([]*m.TimeSeriesData, 0, len(timeSeriesElements))
	for timeSeriesKey, timeSeriesValue := range timeSeriesElements {
		timestamp, err := parseDate(timeSeriesKey, location)
		if err != nil {
			return nil, fmt.Errorf("error converting TIMESTAMP from string to time.Time: %w", err)
		}

		ohlcv, err := parseOHLCV(timeSeriesValue, ohlcvLookup)
		if err != nil {
			return nil, fmt.Errorf("error parsing OHLCV: %w", err)
		}

		timeSeries = append(timeSeries, &m.TimeSeriesData{
			Timestamp:        timestamp,
			TimeSeriesOHLCV:  ohlcv,
			AdjustedClose:    parseFloat(timeSeriesValue[adjustedCloseKey]),
			DividendAmount:   parseFloat(timeSeriesValue[dividendAmountKey]),
			SplitCoefficient: parseFloat(timeSeriesValue[splitCoefficientKey]),
		})
	}

	// map iteration order is random, keep the output stable
	slices.SortFunc(timeSeries, func(a, b *m.TimeSeriesData) int {
		return a.Timestamp.Compare(b.Timestamp)
	})

	return timeSeries, nil
}

func parseOHLCV(value, lookup map[string]string) (res m.TimeSeriesOHLCV, err error) {
	v := reflect.ValueOf(&res).Elem()
	for jsonKey, structAttribute := range lookup {
		field := v.FieldByName(structAttribute)
		if !field.IsValid() {
			return res, fmt.Errorf("field %s does not exist", structAttribute)
		}
		if !field.CanSet() {
			return res, fmt.Errorf("field %s cannot be set", structAttribute)
		}

		field.Set(reflect.ValueOf(parseFloat(value[jsonKey])))
	}
	return
}

func getLookupKey(expectedKeys, values map[string]string) (map[string]string, error) {
	res := make(map[string]string)
	responseValueHeaders := slices.Collect(maps.Keys(values))

	for key, value := range expectedKeys {
		f := func(s string) bool {
			return strings.HasSuffix(strings.ToLower(s), strings.ToLower(value))
		}
		if jsonKey, err := e.FilterSingle(responseValueHeaders, f); err == nil {
			res[jsonKey] = key
		}
	}

	if len(res) == 0 {
		return nil, fmt.Errorf("error generating key value map from av response object. Available headers: %v", responseValueHeaders)
	}

	return res, nil
}

func getTimeZone(location string) (*time.Location, error) {
	var loc string
	switch strings.ToUpper(location) {
	case "US/EASTERN":
		loc = "America/New_York"
	default:
		log.Warn().Str("timezone", location).Msg("time zone not recognized, using UTC")
		return time.UTC, nil
	}

	res, err := time.LoadLocation(loc)
	if err != nil {
		return nil, fmt.Errorf("error parsing time zone %s in time.LoadLocation", loc)
	}

	return res, nil
}

func parseDate(dateString string, location *time.Location) (time.Time, error) {
	for _, format := range timeSeriesDateFormats {
		t, err := time.ParseInLocation(format, dateString, location)
		if err != nil {
			continue
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("error converting date %s to time.Time", dateString)
}

func parseFloat(val string) null.Float {
	if val == "" {
		return null.Float{}
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return null.Float{}
	}
	return null.FloatFrom(f)
}
