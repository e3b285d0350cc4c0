package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"capm/service/config"
	c "capm/service/core"
)

func main() {
	// initialize context and signal handler, listen for interrupt and term signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// load in environment variables from .env file
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	cfg.SetupLogging(os.Stdout)

	// market data clients, postgres when configured, and the result cache
	sc, err := c.NewServiceContext(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build service context")
	}
	defer sc.Close()

	// get http server, makes all of the endpoints and routes
	s := c.GetHttpServer(sc, cfg.HttpAddr)

	// start http server in goroutine
	go func() {
		log.Info().Str("addr", s.Addr).Str("benchmark", cfg.BenchmarkSeries).Msg("starting capm server")
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// golang channel, will wait here until the context is closed (ie, ctrl+C)
	<-ctx.Done()
	log.Info().Msg("received shutdown signal, shutting down gracefully")

	// this gives the server 10 seconds to shutdown gracefully
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := s.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}

	log.Info().Msg("server stopped successfully")
}
