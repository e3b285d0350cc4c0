package fred

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	ex "capm/data/extensions"
	m "capm/data/models"
	c "capm/service/api"
)

const (
	HostDefault = "api.stlouisfed.org"

	// SP500 is the daily S&P 500 index level series
	SP500 = "SP500"
)

const (
	observationsPath = "fred/series/observations"
	defaultTimeout   = time.Second * 30

	// fred reports holidays and gaps as "."
	missingValue = "."
)

type FredClient struct {
	*c.Client
}

type observationsResponse struct {
	Observations []observation `json:"observations"`
	ErrorCode    int           `json:"error_code"`
	ErrorMessage string        `json:"error_message"`
}

type observation struct {
	Date  string `json:"date"`
	Value string `json:"value"`
}

func GetClient(apiKey string) FredClient {
	return FredClient{
		c.ClientFactory(HostDefault, apiKey, defaultTimeout),
	}
}

// GetPriceSeries returns the observations of seriesId between start and end, oldest first.
// missing observations are skipped.
func (fc *FredClient) GetPriceSeries(ctx context.Context, seriesId string, start, end time.Time) (m.PriceSeries, error) {
	if fc == nil || fc.Client == nil {
		return m.PriceSeries{}, fmt.Errorf("fred client has not been set")
	}

	endpoint := fc.buildRequestPath(seriesId, start, end)
	response, err := fc.Client.Connection.Request(ctx, endpoint)
	if err != nil {
		return m.PriceSeries{}, fmt.Errorf("error requesting fred series %s: %w", seriesId, err)
	}
	defer response.Body.Close()

	var body observationsResponse
	if err := json.NewDecoder(response.Body).Decode(&body); err != nil {
		return m.PriceSeries{}, fmt.Errorf("error unmarshaling fred response: %w", err)
	}

	if body.ErrorCode != 0 {
		return m.PriceSeries{}, fmt.Errorf("fred error %d for series %s: %s", body.ErrorCode, seriesId, body.ErrorMessage)
	}

	res := m.PriceSeries{Symbol: seriesId, Points: make([]m.PricePoint, 0, len(body.Observations))}
	skipped := 0
	for _, o := range body.Observations {
		if o.Value == missingValue || o.Value == "" {
			skipped++
			continue
		}

		date, err := time.Parse(time.DateOnly, o.Date)
		if err != nil {
			return m.PriceSeries{}, fmt.Errorf("error parsing fred observation date %s: %w", o.Date, err)
		}

		value, err := strconv.ParseFloat(o.Value, 64)
		if err != nil {
			return m.PriceSeries{}, fmt.Errorf("error parsing fred observation value %q on %s: %w", o.Value, o.Date, err)
		}

		res.Points = append(res.Points, m.PricePoint{Date: date, Price: value})
	}

	log.Debug().Str("series", seriesId).Int("observations", res.Len()).Int("skipped", skipped).Msg("fred series parsed")

	return res.Sorted(), nil
}

func (fc *FredClient) buildRequestPath(seriesId string, start, end time.Time) *url.URL {
	endpoint := &url.URL{Path: observationsPath}

	query := endpoint.Query()
	query.Set("series_id", seriesId)
	query.Set("api_key", fc.Client.ApiKey)
	query.Set("file_type", "json")
	query.Set("observation_start", ex.FmtShort(start))
	query.Set("observation_end", ex.FmtShort(end))
	endpoint.RawQuery = query.Encode()

	return endpoint
}
