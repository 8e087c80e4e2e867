// Package main is the entry point for the InvoiceDrop server binary.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/dharsanguruparan/InvoiceDrop/internal/app"
	"github.com/dharsanguruparan/InvoiceDrop/internal/config"
	"github.com/dharsanguruparan/InvoiceDrop/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (overrides "+config.ConfigEnv+")")
	flag.Parse()

	// Step 1: defaults, then the optional YAML file, then environment variables.
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Pretty)

	// Step 2: a context that cancels when SIGINT/SIGTERM arrive.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Step 3: wire dependencies and block until the server exits.
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("init service")
	}
	if err := a.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
	logger.Info().Msg("server stopped")
}
