// Signalcart - Storefront Interaction Signals and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/signalcart

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/tomtom215/signalcart/internal/api"
	"github.com/tomtom215/signalcart/internal/auth"
	"github.com/tomtom215/signalcart/internal/authz"
	"github.com/tomtom215/signalcart/internal/catalog"
	"github.com/tomtom215/signalcart/internal/config"
	"github.com/tomtom215/signalcart/internal/eventlog"
	"github.com/tomtom215/signalcart/internal/events"
	"github.com/tomtom215/signalcart/internal/interactions"
	"github.com/tomtom215/signalcart/internal/logging"
	"github.com/tomtom215/signalcart/internal/recommend"
	"github.com/tomtom215/signalcart/internal/recommend/algorithms"
	"github.com/tomtom215/signalcart/internal/registry"
	"github.com/tomtom215/signalcart/internal/supervisor"
	"github.com/tomtom215/signalcart/internal/supervisor/services"
	"github.com/tomtom215/signalcart/internal/training"
	"github.com/tomtom215/signalcart/internal/websocket"
)

// app holds the components that need closing after the tree stops.
type app struct {
	tree    *supervisor.Tree
	closers []func() error
}

func (a *app) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// Close closes components in reverse construction order.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// build wires every component and registers the long-lived ones with the
// supervisor tree. On error, whatever was already opened is closed.
//
//nolint:gocritic,gocyclo // zerolog.Logger is designed to be passed by value; sequential setup
func build(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			_ = a.Close() //nolint:errcheck // already failing
		}
	}()

	a.tree = supervisor.NewTree(logging.NewSlogLogger(logger), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})

	log, err := eventlog.Open(cfg.EventLog(), logger)
	if err != nil {
		return nil, fmt.Errorf("open interaction log: %w", err)
	}
	a.onClose(log.Close)

	reg, err := registry.Open(cfg.ModelRegistry(), logger)
	if err != nil {
		return nil, fmt.Errorf("open model registry: %w", err)
	}

	checks := []api.HealthCheck{{
		Name: "interaction_log",
		Check: func(ctx context.Context) error {
			_, err := log.Tail(ctx, 1)
			return err
		},
	}}

	var store *catalog.Store
	if cfg.Catalog.Enabled {
		store, err = catalog.Open(ctx, cfg.CatalogStore(), logger)
		if err != nil {
			return nil, fmt.Errorf("open catalog: %w", err)
		}
		a.onClose(store.Close)
		a.tree.AddDataService(store)
		checks = append(checks, api.HealthCheck{Name: "catalog", Check: store.Ping})
	}

	var bus *events.Bus
	if cfg.Events.Enabled {
		bus, err = events.Open(ctx, cfg.EventBus(), logger)
		if err != nil {
			return nil, fmt.Errorf("open event bus: %w", err)
		}
		a.onClose(bus.Close)
	}

	var notifiers interactions.Notifiers
	if bus != nil {
		notifiers = append(notifiers, bus)
	}
	if store != nil {
		notifiers = append(notifiers, store)
	}
	var recOpts []interactions.RecorderOption
	if len(notifiers) > 0 {
		recOpts = append(recOpts, interactions.WithNotifier(notifiers))
	}
	recorder := interactions.NewRecorder(log, logger, recOpts...)
	exporter := interactions.NewExporter(log)

	trainer, err := algorithms.New(cfg.Algorithms())
	if err != nil {
		return nil, fmt.Errorf("create trainer: %w", err)
	}
	var orchOpts []training.Option
	if bus != nil {
		orchOpts = append(orchOpts, training.WithNotifier(bus))
	}
	orch, err := training.New(cfg.Orchestrator(), exporter, reg, trainer, logger, orchOpts...)
	if err != nil {
		return nil, fmt.Errorf("create training orchestrator: %w", err)
	}
	// Closing first cancels a run still writing to the registry or log.
	a.onClose(orch.Close)
	a.tree.AddDataService(services.NewTrainingScheduler(orch, services.SchedulerConfig{
		Interval:   cfg.Training.Interval,
		RunOnStart: cfg.Training.RunOnStart,
	}, logger))

	chain := recommend.NewChain(logger, fallbackSources(cfg, store, log, logger)...)
	recommender, err := recommend.NewServer(cfg.RecommendServer(), reg, chain, logger)
	if err != nil {
		return nil, fmt.Errorf("create recommendation server: %w", err)
	}

	var wsHandler http.Handler
	if cfg.WebSocket.Enabled {
		if bus == nil {
			logger.Warn().Msg("Websocket feed needs the event bus; feed disabled")
		} else {
			hub := websocket.NewHub(logger)
			a.tree.AddMessagingService(hub)
			a.tree.AddMessagingService(websocket.NewBridge(hub, bus, map[string]string{
				bus.Topics().ModelPublished: websocket.MessageTypeModelPublished,
				bus.Topics().TrainingFailed: websocket.MessageTypeTrainingFailed,
			}))
			wsHandler = websocket.Handler(hub, cfg.WebSocket.AllowedOrigins)
		}
	}
	if bus != nil && cfg.Events.Ingest.Enabled {
		a.tree.AddDataService(events.NewIngestor(bus, recorder, logger))
	}

	authn, err := auth.New(cfg.Authentication())
	if err != nil {
		return nil, fmt.Errorf("create authenticator: %w", err)
	}
	if cfg.Auth.Mode == string(auth.ModeNone) || cfg.Auth.Mode == "" {
		logger.Warn().Msg("Authentication is DISABLED (AUTH_MODE=none); every caller is admin")
	}
	enforcer, err := authz.NewEnforcer(cfg.Authorization())
	if err != nil {
		return nil, fmt.Errorf("create authorization enforcer: %w", err)
	}

	server := &http.Server{
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}
	httpSvc := services.NewHTTPServerService(server, services.HTTPConfig{
		Addr:            cfg.Server.Addr(),
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		DrainDelay:      cfg.Server.DrainDelay,
	}, logger)
	checks = append(checks, api.HealthCheck{Name: "http", Check: httpSvc.Check})

	routerCfg := api.DefaultConfig()
	routerCfg.CORSOrigins = cfg.Server.CORSOrigins
	routerCfg.RateLimitRequests = cfg.Server.RateLimitRequests
	routerCfg.RateLimitWindow = cfg.Server.RateLimitWindow
	routerCfg.ExportMaxLimit = cfg.Server.ExportMaxLimit
	router := api.NewRouter(routerCfg, api.Deps{
		Recorder:    recorder,
		Exporter:    exporter,
		Trainer:     orch,
		Models:      reg,
		Recommender: recommender,
		Authn:       authn,
		Enforcer:    enforcer,
		WebSocket:   wsHandler,
		Checks:      checks,
	}, logger)

	server.Handler = router.Handler()
	a.tree.AddAPIService(httpSvc)

	return a, nil
}

// fallbackSources orders the chain: curated products, then best sellers,
// then recently interacted products.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func fallbackSources(cfg *config.Config, store *catalog.Store, log *eventlog.Log, logger zerolog.Logger) []recommend.FallbackSource {
	var sources []recommend.FallbackSource
	if len(cfg.Recommend.FallbackProducts) > 0 {
		sources = append(sources, recommend.NewStaticSource(cfg.Recommend.FallbackProducts))
	}
	if store != nil {
		sources = append(sources, catalog.NewBestSellerSource(store, cfg.CatalogStore().Breaker, logger))
	}
	if cfg.Recommend.RecentWindow > 0 {
		sources = append(sources, recommend.NewRecentSource(log, cfg.Recommend.RecentWindow))
	}
	return sources
}
