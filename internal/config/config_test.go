// Signalcart - Storefront Interaction Signals and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/signalcart

package config

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(ConfigPathEnvVar, "")
	t.Setenv("DATA_DIR", dir)
	t.Chdir(dir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Addr() != "0.0.0.0:8080" {
		t.Errorf("Addr() = %s", cfg.Server.Addr())
	}
	if cfg.Storage.EventLogPath != filepath.Join(dir, "interactions") || cfg.Registry.Dir != filepath.Join(dir, "models") {
		t.Errorf("paths not resolved from data dir: %+v %+v", cfg.Storage, cfg.Registry)
	}
	if cfg.Training.Interval != time.Hour || !cfg.Training.RunOnStart {
		t.Errorf("training = %+v", cfg.Training)
	}
	if cfg.Auth.Mode != "none" || cfg.Events.Backend != "gochannel" {
		t.Errorf("auth/events defaults = %s/%s", cfg.Auth.Mode, cfg.Events.Backend)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, `
server:
  port: 9000
  cors_origins: ["https://shop.example"]
storage:
  data_dir: `+dir+`
  event_log_path: log
training:
  interval: 15m
recommend:
  fallback_products: [5, 6]
logging:
  level: debug
`)
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("HTTP_PORT", "9100")
	t.Setenv("HTTP_DRAIN_DELAY", "5s")
	t.Setenv("TRAINING_INTERVAL", "0s")
	t.Setenv("RECOMMEND_FALLBACK_PRODUCTS", "7, 8,9")
	t.Setenv("WEBSOCKET_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("port = %d, env should win over file", cfg.Server.Port)
	}
	if cfg.Server.DrainDelay != 5*time.Second {
		t.Errorf("drain delay = %v", cfg.Server.DrainDelay)
	}
	if !slices.Equal(cfg.Server.CORSOrigins, []string{"https://shop.example"}) {
		t.Errorf("cors = %v", cfg.Server.CORSOrigins)
	}
	if cfg.Storage.EventLogPath != filepath.Join(dir, "log") {
		t.Errorf("relative log path = %s", cfg.Storage.EventLogPath)
	}
	if cfg.Training.Interval != 0 {
		t.Errorf("interval = %v", cfg.Training.Interval)
	}
	if !slices.Equal(cfg.Recommend.FallbackProducts, []int64{7, 8, 9}) {
		t.Errorf("fallback = %v", cfg.Recommend.FallbackProducts)
	}
	if len(cfg.WebSocket.AllowedOrigins) != 2 {
		t.Errorf("origins = %v", cfg.WebSocket.AllowedOrigins)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("level = %s", cfg.Logging.Level)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "nope.yaml"))
	if _, err := Load(); err == nil {
		t.Fatal("Load() with a missing CONFIG_PATH should fail")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server"},
		{"negative interval", func(c *Config) { c.Training.Interval = -time.Second }, "training"},
		{"unknown algorithm", func(c *Config) { c.Algorithm.Name = "svd" }, "algorithm"},
		{"bad fallback id", func(c *Config) { c.Recommend.FallbackProducts = []int64{3, 0} }, "recommend"},
		{"jwt without secret", func(c *Config) { c.Auth.Mode = "jwt" }, "auth"},
		{"unknown backend", func(c *Config) { c.Events.Backend = "kafka" }, "events"},
		{"bad breaker ratio", func(c *Config) { c.Catalog.BreakerFailureRatio = 2 }, "catalog"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging"},
		{"rate limit without window", func(c *Config) { c.Server.RateLimitWindow = 0 }, "server"},
		{"drain longer than shutdown", func(c *Config) { c.Server.DrainDelay = c.Server.ShutdownTimeout }, "server"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := defaultConfig()
			cfg.Storage.DataDir = t.TempDir()
			cfg.resolvePaths()
			tt.mutate(cfg)
			err := cfg.Validate()
			switch {
			case tt.wantErr == "" && err != nil:
				t.Errorf("Validate() error = %v", err)
			case tt.wantErr != "" && (err == nil || !strings.HasPrefix(err.Error(), tt.wantErr)):
				t.Errorf("Validate() error = %v, want %s error", err, tt.wantErr)
			}
		})
	}
}

func TestSectionMapping(t *testing.T) {
	t.Parallel()
	cfg := defaultConfig()
	cfg.Catalog.BreakerMinRequests = 42
	cfg.Events.NATS.StreamName = "SHOP"
	cfg.Auth.PolicyPath = "/etc/policy.csv"

	if got := cfg.CatalogStore().Breaker.MinRequests; got != 42 {
		t.Errorf("catalog breaker = %d", got)
	}
	if got := cfg.EventBus().NATS.StreamName; got != "SHOP" {
		t.Errorf("stream = %s", got)
	}
	if got := cfg.Authorization().PolicyPath; got != "/etc/policy.csv" {
		t.Errorf("policy = %s", got)
	}
	if cfg.Logger().Output == nil {
		t.Error("logger output not defaulted")
	}
}
