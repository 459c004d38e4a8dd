// Signalcart - Storefront Interaction Signals and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/signalcart

package config

import (
	"errors"
	"fmt"

	"github.com/tomtom215/signalcart/internal/auth"
	"github.com/tomtom215/signalcart/internal/logging"
)

// Validate checks the configuration, section by section.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return fmt.Errorf("server: %w", err)
	}

	el := c.EventLog()
	if err := el.Validate(); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	reg := c.ModelRegistry()
	if err := reg.Validate(); err != nil {
		return fmt.Errorf("registry: %w", err)
	}
	if c.Training.Interval < 0 {
		return errors.New("training: interval must not be negative")
	}
	tr := c.Orchestrator()
	if err := tr.Validate(); err != nil {
		return fmt.Errorf("training: %w", err)
	}
	if err := c.Algorithms().Validate(); err != nil {
		return fmt.Errorf("algorithm: %w", err)
	}
	rec := c.RecommendServer()
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("recommend: %w", err)
	}
	if c.Recommend.RecentWindow < 0 {
		return errors.New("recommend: recent_window must not be negative")
	}
	for _, id := range c.Recommend.FallbackProducts {
		if id <= 0 {
			return fmt.Errorf("recommend: fallback product ids must be positive, got %d", id)
		}
	}
	cat := c.CatalogStore()
	if err := cat.Validate(); err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	ev := c.EventBus()
	if err := ev.Validate(); err != nil {
		return fmt.Errorf("events: %w", err)
	}
	au := c.Authentication()
	if err := au.Validate(); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if au.Mode == auth.ModeJWT && c.Auth.TokenTTL <= 0 {
		return errors.New("auth: token_ttl must be positive")
	}
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("logging: invalid level %q", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging: invalid format %q", c.Logging.Format)
	}
	return nil
}

func (c *Config) validateServer() error {
	s := c.Server
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", s.Port)
	}
	if s.ReadTimeout <= 0 || s.WriteTimeout <= 0 {
		return errors.New("read and write timeouts must be positive")
	}
	if s.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	if s.DrainDelay < 0 || s.DrainDelay >= s.ShutdownTimeout {
		return errors.New("drain_delay must be non-negative and shorter than shutdown_timeout")
	}
	if s.RateLimitRequests < 0 {
		return errors.New("rate_limit_requests must not be negative")
	}
	if s.RateLimitRequests > 0 && s.RateLimitWindow <= 0 {
		return errors.New("rate_limit_window must be positive when limiting")
	}
	if s.ExportMaxLimit < 1 {
		return errors.New("export_max_limit must be at least 1")
	}
	return nil
}
