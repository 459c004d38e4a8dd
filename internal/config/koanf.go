// Signalcart - Storefront Interaction Signals and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/signalcart

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/signalcart/config.yaml",
	"/etc/signalcart/config.yml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

// Load reads defaults, the config file if one is found, then the
// environment, and validates the result.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	path, err := findConfigFile()
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	cfg.resolvePaths()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// findConfigFile returns the file to load, or "" for none. An explicit
// CONFIG_PATH that does not exist is an error.
func findConfigFile() (string, error) {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err != nil {
			return "", fmt.Errorf("config file %s: %w", p, err)
		}
		return p, nil
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", nil
}

// sliceConfigPaths accept comma-separated strings from the environment.
var sliceConfigPaths = []string{
	"server.cors_origins",
	"recommend.fallback_products",
	"websocket.allowed_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := strings.Split(s, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

var envMappings = map[string]string{
	"http_host":             "server.host",
	"http_port":             "server.port",
	"http_read_timeout":     "server.read_timeout",
	"http_write_timeout":    "server.write_timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",
	"http_drain_delay":      "server.drain_delay",
	"cors_origins":          "server.cors_origins",
	"rate_limit_requests":   "server.rate_limit_requests",
	"rate_limit_window":     "server.rate_limit_window",
	"export_max_limit":      "server.export_max_limit",

	"data_dir":            "storage.data_dir",
	"event_log_path":      "storage.event_log_path",
	"event_log_in_memory": "storage.in_memory",
	"event_log_sync":      "storage.sync_writes",
	"event_log_batch":     "storage.batch_size",

	"registry_dir":           "registry.dir",
	"registry_keep_versions": "registry.keep_versions",

	"training_interval":         "training.interval",
	"training_run_on_start":     "training.run_on_start",
	"training_timeout":          "training.timeout",
	"training_min_interactions": "training.min_interactions",

	"algorithm":               "algorithm.name",
	"algorithm_max_neighbors": "algorithm.max_neighbors",
	"algorithm_workers":       "algorithm.workers",

	"recommend_max_count":         "recommend.max_count",
	"recommend_timeout":           "recommend.timeout",
	"recommend_cache_enabled":     "recommend.cache_enabled",
	"recommend_cache_ttl":         "recommend.cache_ttl",
	"recommend_fallback_products": "recommend.fallback_products",
	"recommend_recent_window":     "recommend.recent_window",

	"catalog_enabled": "catalog.enabled",
	"catalog_path":    "catalog.path",
	"catalog_window":  "catalog.window",

	"events_enabled":      "events.enabled",
	"events_backend":      "events.backend",
	"events_topic_prefix": "events.topic_prefix",
	"nats_url":            "events.nats.url",
	"nats_embedded":       "events.nats.embedded",
	"nats_port":           "events.nats.port",
	"nats_store_dir":      "events.nats.store_dir",
	"nats_stream":         "events.nats.stream_name",
	"nats_durable_name":   "events.nats.durable_name",
	"ingest_enabled":      "events.ingest.enabled",
	"ingest_rate":         "events.ingest.rate_per_second",
	"ingest_burst":        "events.ingest.burst",

	"auth_mode":         "auth.mode",
	"jwt_secret":        "auth.jwt_secret",
	"jwt_issuer":        "auth.jwt_issuer",
	"auth_default_role": "auth.default_role",
	"casbin_policy":     "auth.policy_path",

	"websocket_enabled": "websocket.enabled",
	"websocket_origins": "websocket.allowed_origins",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps known environment variables to config keys and
// drops every other variable.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
