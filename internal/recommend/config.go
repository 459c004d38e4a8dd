// Signalcart - Storefront Interaction Signals and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/signalcart

package recommend

import (
	"fmt"
	"time"
)

// Config contains serving parameters.
type Config struct {
	// MaxCount is the largest accepted request count.
	// Default: 1000.
	MaxCount int

	// Timeout bounds a single request, fallback sources included.
	// Default: 2s.
	Timeout time.Duration

	// Cache contains result caching parameters.
	Cache CacheConfig
}

// CacheConfig contains caching parameters.
type CacheConfig struct {
	// Enabled controls whether caching is active.
	// Default: true.
	Enabled bool

	// TTL is the cache entry time-to-live. Publishing a model changes the
	// cache key, so the TTL only bounds staleness of fallback padding.
	// Default: 30s.
	TTL time.Duration

	// MaxEntries is the maximum number of cached entries.
	// Default: 10000.
	MaxEntries int
}

// DefaultConfig returns a Config with production defaults.
func DefaultConfig() Config {
	return Config{
		MaxCount: 1000,
		Timeout:  2 * time.Second,
		Cache: CacheConfig{
			Enabled:    true,
			TTL:        30 * time.Second,
			MaxEntries: 10000,
		},
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.MaxCount < 1 {
		return fmt.Errorf("recommend.max_count must be positive, got %d", c.MaxCount)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("recommend.timeout must be positive, got %v", c.Timeout)
	}
	if c.Cache.Enabled {
		if c.Cache.TTL <= 0 {
			return fmt.Errorf("recommend.cache.ttl must be positive, got %v", c.Cache.TTL)
		}
		if c.Cache.MaxEntries < 1 {
			return fmt.Errorf("recommend.cache.max_entries must be positive, got %d", c.Cache.MaxEntries)
		}
	}
	return nil
}
