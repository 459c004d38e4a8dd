// Signalcart - Storefront Interaction Signals and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/signalcart

package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/signalcart/internal/config"
	"github.com/tomtom215/signalcart/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		l := logging.Logger()
		l.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logger := logging.Init(cfg.Logger())

	logger.Info().
		Str("addr", cfg.Server.Addr()).
		Str("data_dir", cfg.Storage.DataDir).
		Str("auth_mode", cfg.Auth.Mode).
		Bool("events", cfg.Events.Enabled).
		Bool("catalog", cfg.Catalog.Enabled).
		Msg("Starting Signalcart")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize")
	}

	err = app.tree.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("Supervisor stopped with error")
	}
	logger.Info().Msg("Shutting down")

	if unstopped, _ := app.tree.UnstoppedServiceReport(); len(unstopped) > 0 { //nolint:errcheck // report is best effort
		for _, svc := range unstopped {
			logger.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
		}
	}

	code := 0
	if err := app.Close(); err != nil {
		logger.Error().Err(err).Msg("Error during shutdown")
		code = 1
	}
	logger.Info().Msg("Shutdown complete")
	os.Exit(code)
}
