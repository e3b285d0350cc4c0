package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/rs/zerolog/log"

	ex "capm/data/extensions"
	sm "capm/service/models"
)

const (
	DefaultAddr = ":8080"

	requestTimeout = 60 * time.Second
	allowedOrigin  = "http://localhost:3000"
)

func GetHttpServer(sc *ServiceContext, addr string) *http.Server {
	if addr == "" {
		addr = DefaultAddr
	}

	server := &http.Server{
		Addr:           addr,
		Handler:        NewRouter(sc),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   requestTimeout + 10*time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	if sc.Context != nil {
		server.BaseContext = func(net.Listener) context.Context { return context.WithoutCancel(sc.Context) }
	}

	return server
}

func NewRouter(sc *ServiceContext) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{allowedOrigin},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           int((12 * time.Hour).Seconds()),
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/ping", func(w http.ResponseWriter, req *http.Request) { ping(w, req, sc) })
		r.Get("/stocks", func(w http.ResponseWriter, req *http.Request) { stocks(w, sc) })

		r.Route("/capm", func(r chi.Router) {
			r.Get("/", func(w http.ResponseWriter, req *http.Request) { capm(w, req, sc) })
			r.Get("/beta", func(w http.ResponseWriter, req *http.Request) { beta(w, req, sc) })
			r.Get("/returns.csv", func(w http.ResponseWriter, req *http.Request) { exportCsv(w, req, sc, returnsFrame) })
			r.Get("/prices.csv", func(w http.ResponseWriter, req *http.Request) { exportCsv(w, req, sc, pricesFrame) })
		})

		r.Post("/sync/{symbol}", func(w http.ResponseWriter, req *http.Request) { syncSymbol(w, req, sc) })
	})

	return r
}

func ping(w http.ResponseWriter, req *http.Request, sc *ServiceContext) {
	res := map[string]string{"message": "pong", "database": "disabled"}
	if sc.PostgresConnection != nil {
		res["database"] = "ok"
		if err := sc.PostgresConnection.Ping(req.Context()); err != nil {
			log.Warn().Err(err).Msg("database ping failed")
			res["database"] = "unavailable"
		}
	}
	writeJson(w, http.StatusOK, sm.GetServiceResponseOk(&res))
}

func stocks(w http.ResponseWriter, sc *ServiceContext) {
	res := sm.GetCapmSettingsResources(sc.BenchmarkSeries)
	writeJson(w, http.StatusOK, sm.GetServiceResponseOk(&res))
}

func capm(w http.ResponseWriter, req *http.Request, sc *ServiceContext) {
	settings, err := parseSettings(req, "symbols")
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := sc.GetCapmResponse(req.Context(), settings)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJson(w, http.StatusOK, sm.GetServiceResponseOk(res))
}

func beta(w http.ResponseWriter, req *http.Request, sc *ServiceContext) {
	settings, err := parseSettings(req, "symbol")
	if err != nil {
		writeError(w, err)
		return
	}

	if len(settings.Symbols) != 1 {
		writeError(w, fmt.Errorf("exactly one symbol expected: %w", ErrInvalidParameter))
		return
	}

	res, err := sc.GetBetaResponse(req.Context(), settings.Symbols[0], settings.Years, settings.RiskFreeRate)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJson(w, http.StatusOK, sm.GetServiceResponseOk(res))
}

func exportCsv(w http.ResponseWriter, req *http.Request, sc *ServiceContext, frame func(*CapmReport) dataframe.DataFrame) {
	settings, err := parseSettings(req, "symbols")
	if err != nil {
		writeError(w, err)
		return
	}

	run, err := sc.RunCapm(req.Context(), settings)
	if err != nil {
		writeError(w, err)
		return
	}

	df := frame(run.Report)
	if df.Err != nil {
		writeError(w, df.Err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.WriteHeader(http.StatusOK)
	if err := df.WriteCSV(w); err != nil {
		log.Error().Err(err).Msg("error writing csv")
	}
}

func syncSymbol(w http.ResponseWriter, req *http.Request, sc *ServiceContext) {
	symbols := ex.SplitSymbols(chi.URLParam(req, "symbol"))
	if len(symbols) != 1 {
		writeError(w, fmt.Errorf("exactly one symbol expected: %w", ErrInvalidParameter))
		return
	}

	lastRefreshed, err := sc.SyncSymbolTimeSeriesData(req.Context(), symbols[0])
	if err != nil {
		writeError(w, err)
		return
	}

	res := map[string]string{"symbol": symbols[0], "lastRefreshed": ex.FmtShort(lastRefreshed)}
	writeJson(w, http.StatusOK, sm.GetServiceResponseOk(&res))
}

// parseSettings reads symbols from the given query key plus years and rf, missing years and rf take defaults
func parseSettings(req *http.Request, symbolsKey string) (sm.CapmRequestSettings, error) {
	q := req.URL.Query()
	settings := sm.CapmRequestSettings{
		Symbols:      ex.SplitSymbols(q.Get(symbolsKey)),
		Years:        sm.DefaultYears,
		RiskFreeRate: sm.DefaultRiskFreeRate,
	}

	if v := q.Get("years"); v != "" {
		years, err := strconv.Atoi(v)
		if err != nil {
			return settings, fmt.Errorf("years %q is not a whole number: %w", v, ErrInvalidParameter)
		}
		settings.Years = years
	}

	if v := q.Get("rf"); v != "" {
		rf, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return settings, fmt.Errorf("rf %q is not a number: %w", v, ErrInvalidParameter)
		}
		settings.RiskFreeRate = rf
	}

	return settings, nil
}

func returnsFrame(report *CapmReport) dataframe.DataFrame {
	returns := report.Returns
	return tableFrame(returns.Dates, returns.Columns, returns.Values)
}

func pricesFrame(report *CapmReport) dataframe.DataFrame {
	prices := report.Prices
	return tableFrame(prices.Dates, prices.Columns, prices.Values)
}

func tableFrame(dates []time.Time, columns []string, values map[string][]float64) dataframe.DataFrame {
	cols := make([]series.Series, 0, len(columns)+1)
	cols = append(cols, series.New(ex.Map(dates, ex.FmtShort), series.String, "Date"))
	for _, c := range columns {
		cols = append(cols, series.New(values[c], series.Float, c))
	}
	return dataframe.New(cols...)
}

// StatusForError maps an error kind to the http status returned for it
func StatusForError(err error) int {
	switch {
	case errors.Is(err, ErrEmptyInput),
		errors.Is(err, ErrDuplicateSymbol),
		errors.Is(err, ErrInvalidParameter),
		errors.Is(err, ErrUnknownColumn):
		return http.StatusBadRequest
	case errors.Is(err, ErrNoOverlap), errors.Is(err, ErrDegenerateFit), errors.Is(err, ErrInvalidPrice):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrUpstreamData):
		return http.StatusBadGateway
	case errors.Is(err, ErrRecentlySynced):
		return http.StatusConflict
	case errors.Is(err, ErrDatabaseNotConfigured):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// errorMessage keeps upstream and internal details in the log only
func errorMessage(status int, err error) string {
	var upstream *UpstreamDataError
	switch {
	case errors.As(err, &upstream):
		return fmt.Sprintf("market data for %s is unavailable", upstream.Symbol)
	case status == http.StatusInternalServerError:
		return "internal error"
	case status == http.StatusGatewayTimeout:
		return "request timed out"
	default:
		return err.Error()
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := StatusForError(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Int("status", status).Msg("request failed")
	} else {
		log.Debug().Err(err).Int("status", status).Msg("request rejected")
	}
	writeJson(w, status, sm.GetServiceResponseError(errorMessage(status, err)))
}

// writeJson encodes before the header goes out so an unencodable value still gets an error response
func writeJson(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("error encoding response")
		status = http.StatusInternalServerError
		body, _ = json.Marshal(sm.GetServiceResponseError("internal error"))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(body, '\n')); err != nil {
		log.Debug().Err(err).Msg("error writing response")
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
		next.ServeHTTP(ww, req)

		log.Info().
			Str("request_id", middleware.GetReqID(req.Context())).
			Str("method", req.Method).
			Str("path", req.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request served")
	})
}
