package config

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	av "capm/service/api/alpha_vantage"
	"capm/service/api/fred"
)

const (
	DefaultHttpAddr     = ":8080"
	DefaultCacheTTL     = time.Hour
	DefaultFetchWorkers = 4
)

type Config struct {
	AlphaVantageApiKey string
	FredApiKey         string
	DatabaseUrl        string // optional, enables the price mirror and sync endpoint
	AlphaVantageSeries av.TimeSeries

	HttpAddr        string
	BenchmarkSeries string
	CacheTTL        time.Duration
	FetchWorkers    int

	LogLevel  string
	LogFormat string
}

// Load reads the given .env files (a missing file is only logged), then the environment
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil {
		log.Debug().Err(err).Msg(".env not loaded")
	}

	cfg := Config{
		AlphaVantageApiKey: os.Getenv("ALPHAVANTAGE_API_KEY"),
		FredApiKey:         os.Getenv("FRED_API_KEY"),
		DatabaseUrl:        os.Getenv("DATABASE_URL"),
		HttpAddr:           getOrDefault("HTTP_ADDR", DefaultHttpAddr),
		BenchmarkSeries:    strings.ToUpper(getOrDefault("BENCHMARK_SERIES", fred.SP500)),
		AlphaVantageSeries: av.TimeSeriesDailyAdjusted,
		CacheTTL:           DefaultCacheTTL,
		FetchWorkers:       DefaultFetchWorkers,
		LogLevel:           getOrDefault("LOG_LEVEL", "info"),
		LogFormat:          os.Getenv("LOG_FORMAT"),
	}

	if v := os.Getenv("ALPHAVANTAGE_SERIES"); v != "" {
		series, err := av.ParseTimeSeries(v)
		if err != nil {
			return cfg, fmt.Errorf("error parsing ALPHAVANTAGE_SERIES: %w", err)
		}
		cfg.AlphaVantageSeries = series
	}

	if v := os.Getenv("CACHE_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("error parsing CACHE_TTL: %w", err)
		}
		cfg.CacheTTL = ttl
	}

	if v := os.Getenv("FETCH_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return cfg, fmt.Errorf("FETCH_WORKERS must be a positive integer, got %q", v)
		}
		cfg.FetchWorkers = n
	}

	if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
		return cfg, fmt.Errorf("error parsing LOG_LEVEL: %w", err)
	}

	return cfg, nil
}

// SetupLogging configures the global zerolog logger, console output when LOG_FORMAT=console
func (c Config) SetupLogging(w io.Writer) {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || c.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if strings.EqualFold(c.LogFormat, "console") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.DateTime}
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
}

func getOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
