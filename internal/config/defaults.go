// Signalcart - Storefront Interaction Signals and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/signalcart

package config

import (
	"time"

	"github.com/tomtom215/signalcart/internal/auth"
	"github.com/tomtom215/signalcart/internal/authz"
	"github.com/tomtom215/signalcart/internal/catalog"
	"github.com/tomtom215/signalcart/internal/eventlog"
	"github.com/tomtom215/signalcart/internal/events"
	"github.com/tomtom215/signalcart/internal/logging"
	"github.com/tomtom215/signalcart/internal/recommend"
	"github.com/tomtom215/signalcart/internal/recommend/algorithms"
	"github.com/tomtom215/signalcart/internal/registry"
	"github.com/tomtom215/signalcart/internal/training"
)

// defaultConfig builds the defaults from each package's own defaults. Data
// paths are left empty so DataDir decides them.
func defaultConfig() *Config {
	el := eventlog.DefaultConfig()
	reg := registry.DefaultConfig()
	tr := training.DefaultConfig()
	alg := algorithms.DefaultConfig()
	rec := recommend.DefaultConfig()
	cat := catalog.DefaultConfig()
	ev := events.DefaultConfig()
	au := auth.DefaultConfig()
	lg := logging.DefaultConfig()

	return &Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              8080,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       2 * time.Minute,
			ShutdownTimeout:   30 * time.Second,
			CORSOrigins:       []string{"*"},
			RateLimitRequests: 600,
			RateLimitWindow:   time.Minute,
			ExportMaxLimit:    10000,
		},
		Storage: StorageConfig{
			DataDir:       "/data",
			SyncWrites:    el.SyncWrites,
			Compression:   el.Compression,
			BatchSize:     el.BatchSize,
			QueueSize:     el.QueueSize,
			MemTableSize:  el.MemTableSize,
			ValueLogSize:  el.ValueLogFileSize,
			NumCompactors: el.NumCompactors,
			CloseTimeout:  el.CloseTimeout,
		},
		Registry: RegistryConfig{
			KeepVersions: reg.KeepVersions,
			CacheSize:    reg.CacheSize,
		},
		Training: TrainingConfig{
			Interval:        time.Hour,
			RunOnStart:      true,
			Timeout:         tr.Timeout,
			MinInteractions: tr.MinInteractions,
			PipelineBuffer:  tr.PipelineBuffer,
		},
		Algorithm: AlgorithmConfig{
			Name:            alg.Algorithm,
			MaxNeighbors:    alg.MaxNeighbors,
			MinCoOccurrence: alg.MinCoOccurrence,
			Workers:         alg.Workers,
		},
		Recommend: RecommendConfig{
			MaxCount:        rec.MaxCount,
			Timeout:         rec.Timeout,
			CacheEnabled:    rec.Cache.Enabled,
			CacheTTL:        rec.Cache.TTL,
			CacheMaxEntries: rec.Cache.MaxEntries,
			RecentWindow:    1000,
		},
		Catalog: CatalogConfig{
			Enabled:             cat.Enabled,
			Window:              cat.Window,
			QueueSize:           cat.QueueSize,
			FlushInterval:       cat.FlushInterval,
			MaxThreads:          cat.MaxThreads,
			BreakerMaxRequests:  cat.Breaker.MaxRequests,
			BreakerInterval:     cat.Breaker.Interval,
			BreakerTimeout:      cat.Breaker.Timeout,
			BreakerMinRequests:  cat.Breaker.MinRequests,
			BreakerFailureRatio: cat.Breaker.FailureRatio,
		},
		Events: EventsConfig{
			Enabled:      ev.Enabled,
			Backend:      ev.Backend,
			TopicPrefix:  ev.TopicPrefix,
			OutputBuffer: ev.OutputBuffer,
			NATS: NATSConfig{
				URL:             ev.NATS.URL,
				Embedded:        ev.NATS.Embedded,
				Host:            ev.NATS.Host,
				Port:            ev.NATS.Port,
				MaxMemory:       ev.NATS.MaxMemory,
				MaxStore:        ev.NATS.MaxStore,
				StreamName:      ev.NATS.StreamName,
				MaxAge:          ev.NATS.MaxAge,
				DuplicateWindow: ev.NATS.DuplicateWindow,
				DurableName:     ev.NATS.DurableName,
				QueueGroup:      ev.NATS.QueueGroup,
				AckWait:         ev.NATS.AckWait,
				MaxDeliver:      ev.NATS.MaxDeliver,
				MaxReconnects:   ev.NATS.MaxReconnects,
				ReconnectWait:   ev.NATS.ReconnectWait,
			},
			Ingest: IngestConfig{
				Enabled:              ev.Ingest.Enabled,
				RatePerSecond:        ev.Ingest.RatePerSecond,
				Burst:                ev.Ingest.Burst,
				DedupSize:            ev.Ingest.DedupSize,
				DedupTTL:             ev.Ingest.DedupTTL,
				MaxRetries:           ev.Ingest.MaxRetries,
				RetryInitialInterval: ev.Ingest.RetryInitialInterval,
				RetryMaxInterval:     ev.Ingest.RetryMaxInterval,
				CloseTimeout:         ev.Ingest.CloseTimeout,
			},
		},
		Auth: AuthConfig{
			Mode:        string(au.Mode),
			JWTIssuer:   au.JWTIssuer,
			TokenTTL:    au.TokenTTL,
			UserHeader:  au.UserHeader,
			RoleHeader:  au.RoleHeader,
			DefaultRole: au.DefaultRole,
		},
		WebSocket: WebSocketConfig{Enabled: true},
		Logging: LoggingConfig{
			Level:  lg.Level,
			Format: lg.Format,
			Caller: lg.Caller,
		},
	}
}

// EventLog returns the interaction log configuration.
func (c *Config) EventLog() eventlog.Config {
	return eventlog.Config{
		Path:             c.Storage.EventLogPath,
		InMemory:         c.Storage.InMemory,
		SyncWrites:       c.Storage.SyncWrites,
		Compression:      c.Storage.Compression,
		BatchSize:        c.Storage.BatchSize,
		QueueSize:        c.Storage.QueueSize,
		MemTableSize:     c.Storage.MemTableSize,
		ValueLogFileSize: c.Storage.ValueLogSize,
		NumCompactors:    c.Storage.NumCompactors,
		CloseTimeout:     c.Storage.CloseTimeout,
	}
}

// ModelRegistry returns the registry configuration.
func (c *Config) ModelRegistry() registry.Config {
	return registry.Config{
		Dir:          c.Registry.Dir,
		KeepVersions: c.Registry.KeepVersions,
		CacheSize:    c.Registry.CacheSize,
	}
}

// Orchestrator returns the training orchestrator configuration.
func (c *Config) Orchestrator() training.Config {
	return training.Config{
		Timeout:         c.Training.Timeout,
		MinInteractions: c.Training.MinInteractions,
		PipelineBuffer:  c.Training.PipelineBuffer,
	}
}

// Algorithms returns the model builder configuration.
func (c *Config) Algorithms() algorithms.Config {
	return algorithms.Config{
		Algorithm:       c.Algorithm.Name,
		MaxNeighbors:    c.Algorithm.MaxNeighbors,
		MinCoOccurrence: c.Algorithm.MinCoOccurrence,
		Workers:         c.Algorithm.Workers,
	}
}

// RecommendServer returns the recommendation server configuration.
func (c *Config) RecommendServer() recommend.Config {
	return recommend.Config{
		MaxCount: c.Recommend.MaxCount,
		Timeout:  c.Recommend.Timeout,
		Cache: recommend.CacheConfig{
			Enabled:    c.Recommend.CacheEnabled,
			TTL:        c.Recommend.CacheTTL,
			MaxEntries: c.Recommend.CacheMaxEntries,
		},
	}
}

// CatalogStore returns the best-seller ledger configuration.
func (c *Config) CatalogStore() catalog.Config {
	return catalog.Config{
		Enabled:       c.Catalog.Enabled,
		Path:          c.Catalog.Path,
		Window:        c.Catalog.Window,
		QueueSize:     c.Catalog.QueueSize,
		FlushInterval: c.Catalog.FlushInterval,
		MaxThreads:    c.Catalog.MaxThreads,
		Breaker: catalog.BreakerConfig{
			MaxRequests:  c.Catalog.BreakerMaxRequests,
			Interval:     c.Catalog.BreakerInterval,
			Timeout:      c.Catalog.BreakerTimeout,
			MinRequests:  c.Catalog.BreakerMinRequests,
			FailureRatio: c.Catalog.BreakerFailureRatio,
		},
	}
}

// EventBus returns the event bus configuration.
func (c *Config) EventBus() events.Config {
	n, in := c.Events.NATS, c.Events.Ingest
	return events.Config{
		Enabled:      c.Events.Enabled,
		Backend:      c.Events.Backend,
		TopicPrefix:  c.Events.TopicPrefix,
		OutputBuffer: c.Events.OutputBuffer,
		NATS: events.NATSConfig{
			URL:             n.URL,
			Embedded:        n.Embedded,
			Host:            n.Host,
			Port:            n.Port,
			StoreDir:        n.StoreDir,
			MaxMemory:       n.MaxMemory,
			MaxStore:        n.MaxStore,
			StreamName:      n.StreamName,
			MaxAge:          n.MaxAge,
			DuplicateWindow: n.DuplicateWindow,
			DurableName:     n.DurableName,
			QueueGroup:      n.QueueGroup,
			AckWait:         n.AckWait,
			MaxDeliver:      n.MaxDeliver,
			MaxReconnects:   n.MaxReconnects,
			ReconnectWait:   n.ReconnectWait,
		},
		Ingest: events.IngestConfig{
			Enabled:              in.Enabled,
			RatePerSecond:        in.RatePerSecond,
			Burst:                in.Burst,
			DedupSize:            in.DedupSize,
			DedupTTL:             in.DedupTTL,
			MaxRetries:           in.MaxRetries,
			RetryInitialInterval: in.RetryInitialInterval,
			RetryMaxInterval:     in.RetryMaxInterval,
			CloseTimeout:         in.CloseTimeout,
		},
	}
}

// Authentication returns the authenticator configuration.
func (c *Config) Authentication() auth.Config {
	return auth.Config{
		Mode:        auth.Mode(c.Auth.Mode),
		JWTSecret:   c.Auth.JWTSecret,
		JWTIssuer:   c.Auth.JWTIssuer,
		TokenTTL:    c.Auth.TokenTTL,
		UserHeader:  c.Auth.UserHeader,
		RoleHeader:  c.Auth.RoleHeader,
		DefaultRole: c.Auth.DefaultRole,
	}
}

// Authorization returns the policy enforcer configuration.
func (c *Config) Authorization() authz.Config {
	cfg := authz.DefaultConfig()
	cfg.PolicyPath = c.Auth.PolicyPath
	return cfg
}

// Logger returns the logger configuration.
func (c *Config) Logger() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = c.Logging.Level
	cfg.Format = c.Logging.Format
	cfg.Caller = c.Logging.Caller
	return cfg
}
