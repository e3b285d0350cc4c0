package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path"

	"github.com/google/subcommands"
	"github.com/rs/zerolog/log"

	"capm/service/config"
	c "capm/service/core"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(&capmCmd{}, "analysis")
	commander.Register(&betaCmd{}, "analysis")
	commander.Register(&syncCmd{}, "data")

	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	status := commander.Execute(ctx)
	stop()
	os.Exit(int(status))
}

// serviceContext loads the environment and builds the same context the http service runs on
func serviceContext(ctx context.Context) (*c.ServiceContext, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	cfg.SetupLogging(os.Stderr)

	sc, err := c.NewServiceContext(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("failed to build service context")
		return nil, err
	}
	return sc, nil
}
