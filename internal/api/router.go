// Signalcart - Storefront Interaction Signals and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/signalcart

// Package api exposes recording, export, training, model management and
// recommendations over HTTP.
//
// Every JSON response uses the models.APIResponse envelope. Routes under
// /api/v1 are authenticated and then authorized per route against the
// Casbin policy; health, metrics and API docs are open.
package api

import (
	"context"
	"iter"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "github.com/tomtom215/signalcart/internal/api/docs" // registers the OpenAPI document
	"github.com/tomtom215/signalcart/internal/auth"
	"github.com/tomtom215/signalcart/internal/authz"
	"github.com/tomtom215/signalcart/internal/interactions"
	"github.com/tomtom215/signalcart/internal/middleware"
	"github.com/tomtom215/signalcart/internal/models"
	"github.com/tomtom215/signalcart/internal/recommend"
	"github.com/tomtom215/signalcart/internal/registry"
	"github.com/tomtom215/signalcart/internal/training"
)

// Recorder records interactions.
type Recorder interface {
	RecordNamed(ctx context.Context, userID, productID int64, kind string) (models.InteractionEvent, error)
}

// Exporter reads training records from the log.
type Exporter interface {
	ExportSince(ctx context.Context, cursor uint64) iter.Seq2[models.InteractionRecord, error]
	ExportPage(ctx context.Context, cursor uint64, limit int) (interactions.Page, error)
	Head() uint64
}

// Trainer controls training runs.
type Trainer interface {
	Start(ctx context.Context, req training.Request) (training.RunInfo, error)
	Cancel() bool
	Status() training.Status
}

// Models is the model registry.
type Models interface {
	List() []registry.Info
	Info(tag string) (registry.Info, error)
	Active() *registry.Artifact
	Activate(ctx context.Context, tag string) (*registry.Artifact, error)
}

// Recommender serves recommendations.
type Recommender interface {
	Recommend(ctx context.Context, req recommend.Request) (recommend.Result, error)
	MaxCount() int
}

// HealthCheck is one readiness dependency.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Config holds HTTP layer settings.
type Config struct {
	CORSOrigins []string

	// RateLimitRequests per RateLimitWindow and client IP for ingestion and
	// recommendation routes. Zero disables limiting.
	RateLimitRequests int
	RateLimitWindow   time.Duration

	ExportDefaultLimit int
	ExportMaxLimit     int

	DefaultCount int
}

// DefaultConfig returns defaults.
func DefaultConfig() Config {
	return Config{
		CORSOrigins:        []string{"*"},
		RateLimitRequests:  600,
		RateLimitWindow:    time.Minute,
		ExportDefaultLimit: 1000,
		ExportMaxLimit:     10000,
		DefaultCount:       10,
	}
}

// Deps are the services behind the routes. WebSocket may be nil.
type Deps struct {
	Recorder    Recorder
	Exporter    Exporter
	Trainer     Trainer
	Models      Models
	Recommender Recommender
	Authn       auth.Authenticator
	Enforcer    *authz.Enforcer
	WebSocket   http.Handler
	Checks      []HealthCheck
}

// Router builds the HTTP handler.
type Router struct {
	cfg    Config
	deps   Deps
	logger zerolog.Logger
}

// NewRouter creates a Router.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewRouter(cfg Config, deps Deps, logger zerolog.Logger) *Router {
	if cfg.ExportDefaultLimit <= 0 {
		cfg.ExportDefaultLimit = DefaultConfig().ExportDefaultLimit
	}
	if cfg.ExportMaxLimit < cfg.ExportDefaultLimit {
		cfg.ExportMaxLimit = cfg.ExportDefaultLimit
	}
	if cfg.DefaultCount <= 0 {
		cfg.DefaultCount = DefaultConfig().DefaultCount
	}
	return &Router{cfg: cfg, deps: deps, logger: logger.With().Str("component", "api").Logger()}
}

// Handler returns the routed handler.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID(rt.logger))
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: rt.cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-User-ID", "X-User-Role", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader, headerExportHead},
		MaxAge:         86400,
	}))
	r.Use(middleware.PrometheusMetrics)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", nil)
	})

	r.Get("/health/live", rt.healthLive)
	r.Get("/health/ready", rt.healthReady)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	authorize := authz.NewMiddleware(rt.deps.Enforcer, respondErr).Authorize
	limit := rt.rateLimit()

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.Middleware(rt.deps.Authn, respondErr))

		r.With(limit, authorize(authz.ObjInteractions, authz.ActWrite)).Post("/interactions", rt.recordInteraction)
		r.With(authorize(authz.ObjInteractions, authz.ActExport)).Get("/interactions/export", rt.exportInteractions)

		r.Route("/training", func(r chi.Router) {
			r.With(authorize(authz.ObjTraining, authz.ActWrite)).Post("/", rt.startTraining)
			r.With(authorize(authz.ObjTraining, authz.ActRead)).Get("/status", rt.trainingStatus)
			r.With(authorize(authz.ObjTraining, authz.ActWrite)).Post("/cancel", rt.cancelTraining)
		})

		r.Route("/models", func(r chi.Router) {
			r.With(authorize(authz.ObjModels, authz.ActRead)).Get("/", rt.listModels)
			r.With(authorize(authz.ObjModels, authz.ActRead)).Get("/active", rt.activeModel)
			r.With(authorize(authz.ObjModels, authz.ActActivate)).Post("/{tag}/activate", rt.activateModel)
		})

		r.Route("/recommendations", func(r chi.Router) {
			r.Use(limit, authorize(authz.ObjRecommendations, authz.ActRead))
			r.Get("/homepage", rt.homepage)
			r.Get("/similar/{productId}", rt.similar)
		})

		if rt.deps.WebSocket != nil {
			r.With(authorize(authz.ObjEvents, authz.ActRead)).Get("/ws", rt.deps.WebSocket.ServeHTTP)
		}
	})

	return r
}

func (rt *Router) rateLimit() func(http.Handler) http.Handler {
	if rt.cfg.RateLimitRequests <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		rt.cfg.RateLimitRequests,
		rt.cfg.RateLimitWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			respondError(w, r, http.StatusTooManyRequests, ErrCodeTooManyRequests, "rate limit exceeded", nil)
		}),
	)
}
