// Signalcart - Storefront Interaction Signals and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/signalcart

// Package services adapts blocking components to suture services.
package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// ErrNotServing is reported by the readiness check while the API listener
// is not bound or is draining.
var ErrNotServing = errors.New("http server is not accepting requests")

// HTTPServer is the subset of *http.Server the service drives.
type HTTPServer interface {
	Serve(l net.Listener) error
	Shutdown(ctx context.Context) error
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr string

	// ShutdownTimeout bounds the graceful shutdown. Non-positive means 10s.
	ShutdownTimeout time.Duration

	// DrainDelay keeps serving after stop is requested while Check already
	// fails, so load balancers stop routing before connections close.
	DrainDelay time.Duration
}

// HTTPServerService binds the API address, serves until its context ends
// and then drains and shuts down gracefully.
type HTTPServerService struct {
	server  HTTPServer
	cfg     HTTPConfig
	logger  zerolog.Logger
	listen  func(network, addr string) (net.Listener, error)
	serving atomic.Bool
	bound   atomic.Pointer[string]
}

// NewHTTPServerService wraps server.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewHTTPServerService(server HTTPServer, cfg HTTPConfig, logger zerolog.Logger) *HTTPServerService {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	return &HTTPServerService{
		server: server,
		cfg:    cfg,
		logger: logger.With().Str("component", "http").Logger(),
		listen: net.Listen,
	}
}

// Serve implements suture.Service. A bind failure is returned at once with
// the address, so the supervisor log says which port is taken.
func (h *HTTPServerService) Serve(ctx context.Context) error {
	ln, err := h.listen("tcp", h.cfg.Addr)
	if err != nil {
		h.logger.Error().Err(err).Str("addr", h.cfg.Addr).Msg("HTTP listen failed")
		return fmt.Errorf("listen on %s: %w", h.cfg.Addr, err)
	}
	addr := ln.Addr().String()
	h.bound.Store(&addr)
	h.serving.Store(true)
	defer h.serving.Store(false)
	h.logger.Info().Str("addr", addr).Msg("HTTP server listening")

	errCh := make(chan error, 1)
	go func() { errCh <- h.server.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server on %s: %w", addr, err)
	case <-ctx.Done():
	}

	h.serving.Store(false)
	if h.cfg.DrainDelay > 0 {
		h.logger.Info().Dur("drain_delay", h.cfg.DrainDelay).Msg("Draining HTTP server")
		time.Sleep(h.cfg.DrainDelay)
	}

	// ctx is already done; shutdown needs its own deadline.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), h.cfg.ShutdownTimeout)
	defer cancel()
	if err := h.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		h.logger.Warn().Err(err).Msg("HTTP server stopped with error")
	}
	h.logger.Info().Msg("HTTP server stopped")
	return ctx.Err()
}

// Check is a readiness check: it fails until the listener is bound and
// again as soon as a drain starts.
func (h *HTTPServerService) Check(context.Context) error {
	if !h.serving.Load() {
		return ErrNotServing
	}
	return nil
}

// Addr returns the last bound address, or "" before the first bind.
func (h *HTTPServerService) Addr() string {
	if p := h.bound.Load(); p != nil {
		return *p
	}
	return ""
}

// String names the service for the supervisor.
func (h *HTTPServerService) String() string {
	return "http-server"
}
