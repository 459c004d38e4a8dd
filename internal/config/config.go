// Signalcart - Storefront Interaction Signals and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/signalcart

// Package config loads the server configuration.
//
// Values are layered with koanf: built-in defaults, then an optional YAML
// file, then environment variables. The loaded Config is mapped into each
// package's own Config type by the accessor methods, so packages never
// depend on this one.
package config

import (
	"net"
	"path/filepath"
	"strconv"
	"time"
)

// Config is the complete server configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Storage   StorageConfig   `koanf:"storage"`
	Registry  RegistryConfig  `koanf:"registry"`
	Training  TrainingConfig  `koanf:"training"`
	Algorithm AlgorithmConfig `koanf:"algorithm"`
	Recommend RecommendConfig `koanf:"recommend"`
	Catalog   CatalogConfig   `koanf:"catalog"`
	Events    EventsConfig    `koanf:"events"`
	Auth      AuthConfig      `koanf:"auth"`
	WebSocket WebSocketConfig `koanf:"websocket"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`

	// DrainDelay fails readiness this long before the listener closes.
	DrainDelay time.Duration `koanf:"drain_delay"`

	// RateLimitRequests per RateLimitWindow and client IP on the ingestion
	// and recommendation routes. Zero disables limiting.
	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`

	// ExportMaxLimit caps the page size of JSON exports.
	ExportMaxLimit int `koanf:"export_max_limit"`
}

// StorageConfig holds the interaction log settings.
type StorageConfig struct {
	// DataDir is the base for every relative or empty data path.
	DataDir string `koanf:"data_dir"`

	EventLogPath  string        `koanf:"event_log_path"`
	InMemory      bool          `koanf:"in_memory"`
	SyncWrites    bool          `koanf:"sync_writes"`
	Compression   bool          `koanf:"compression"`
	BatchSize     int           `koanf:"batch_size"`
	QueueSize     int           `koanf:"queue_size"`
	MemTableSize  int64         `koanf:"memtable_size"`
	ValueLogSize  int64         `koanf:"value_log_size"`
	NumCompactors int           `koanf:"num_compactors"`
	CloseTimeout  time.Duration `koanf:"close_timeout"`
}

// RegistryConfig holds the model registry settings.
type RegistryConfig struct {
	Dir          string `koanf:"dir"`
	KeepVersions int    `koanf:"keep_versions"`
	CacheSize    int    `koanf:"cache_size"`
}

// TrainingConfig holds the orchestrator and scheduler settings.
type TrainingConfig struct {
	// Interval between scheduled incremental runs. Zero disables the
	// scheduler.
	Interval        time.Duration `koanf:"interval"`
	RunOnStart      bool          `koanf:"run_on_start"`
	Timeout         time.Duration `koanf:"timeout"`
	MinInteractions int64         `koanf:"min_interactions"`
	PipelineBuffer  int           `koanf:"pipeline_buffer"`
}

// AlgorithmConfig selects and tunes the model builder.
type AlgorithmConfig struct {
	Name            string `koanf:"name"`
	MaxNeighbors    int    `koanf:"max_neighbors"`
	MinCoOccurrence int64  `koanf:"min_cooccurrence"`
	Workers         int    `koanf:"workers"`
}

// RecommendConfig holds the recommendation server settings.
type RecommendConfig struct {
	MaxCount        int           `koanf:"max_count"`
	Timeout         time.Duration `koanf:"timeout"`
	CacheEnabled    bool          `koanf:"cache_enabled"`
	CacheTTL        time.Duration `koanf:"cache_ttl"`
	CacheMaxEntries int           `koanf:"cache_max_entries"`

	// FallbackProducts is the static head of the fallback chain.
	FallbackProducts []int64 `koanf:"fallback_products"`

	// RecentWindow is how many log events the recent source scans. Zero
	// removes the source from the chain.
	RecentWindow int `koanf:"recent_window"`
}

// CatalogConfig holds the best-seller ledger settings.
type CatalogConfig struct {
	Enabled       bool          `koanf:"enabled"`
	Path          string        `koanf:"path"`
	Window        time.Duration `koanf:"window"`
	QueueSize     int           `koanf:"queue_size"`
	FlushInterval time.Duration `koanf:"flush_interval"`
	MaxThreads    int           `koanf:"max_threads"`

	BreakerMaxRequests  uint32        `koanf:"breaker_max_requests"`
	BreakerInterval     time.Duration `koanf:"breaker_interval"`
	BreakerTimeout      time.Duration `koanf:"breaker_timeout"`
	BreakerMinRequests  uint32        `koanf:"breaker_min_requests"`
	BreakerFailureRatio float64       `koanf:"breaker_failure_ratio"`
}

// EventsConfig holds the event bus settings.
type EventsConfig struct {
	Enabled      bool         `koanf:"enabled"`
	Backend      string       `koanf:"backend"`
	TopicPrefix  string       `koanf:"topic_prefix"`
	OutputBuffer int64        `koanf:"output_buffer"`
	NATS         NATSConfig   `koanf:"nats"`
	Ingest       IngestConfig `koanf:"ingest"`
}

// NATSConfig holds the JetStream backend settings.
type NATSConfig struct {
	URL             string        `koanf:"url"`
	Embedded        bool          `koanf:"embedded"`
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	StoreDir        string        `koanf:"store_dir"`
	MaxMemory       int64         `koanf:"max_memory"`
	MaxStore        int64         `koanf:"max_store"`
	StreamName      string        `koanf:"stream_name"`
	MaxAge          time.Duration `koanf:"max_age"`
	DuplicateWindow time.Duration `koanf:"duplicate_window"`
	DurableName     string        `koanf:"durable_name"`
	QueueGroup      string        `koanf:"queue_group"`
	AckWait         time.Duration `koanf:"ack_wait"`
	MaxDeliver      int           `koanf:"max_deliver"`
	MaxReconnects   int           `koanf:"max_reconnects"`
	ReconnectWait   time.Duration `koanf:"reconnect_wait"`
}

// IngestConfig holds the bus ingestion consumer settings.
type IngestConfig struct {
	Enabled              bool          `koanf:"enabled"`
	RatePerSecond        float64       `koanf:"rate_per_second"`
	Burst                int           `koanf:"burst"`
	DedupSize            int           `koanf:"dedup_size"`
	DedupTTL             time.Duration `koanf:"dedup_ttl"`
	MaxRetries           int           `koanf:"max_retries"`
	RetryInitialInterval time.Duration `koanf:"retry_initial_interval"`
	RetryMaxInterval     time.Duration `koanf:"retry_max_interval"`
	CloseTimeout         time.Duration `koanf:"close_timeout"`
}

// AuthConfig holds authentication and authorization settings.
type AuthConfig struct {
	Mode        string        `koanf:"mode"`
	JWTSecret   string        `koanf:"jwt_secret"`
	JWTIssuer   string        `koanf:"jwt_issuer"`
	TokenTTL    time.Duration `koanf:"token_ttl"`
	UserHeader  string        `koanf:"user_header"`
	RoleHeader  string        `koanf:"role_header"`
	DefaultRole string        `koanf:"default_role"`
	PolicyPath  string        `koanf:"policy_path"`
}

// WebSocketConfig holds the notification feed settings.
type WebSocketConfig struct {
	Enabled bool `koanf:"enabled"`

	// AllowedOrigins lists accepted Origin values. Empty accepts only
	// same-host requests; "*" accepts any.
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Addr returns the HTTP listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// resolvePaths fills empty data paths from DataDir and anchors relative
// ones to it.
func (c *Config) resolvePaths() {
	base := c.Storage.DataDir
	if base == "" {
		return
	}
	resolve := func(p *string, name string) {
		switch {
		case *p == "":
			*p = filepath.Join(base, name)
		case !filepath.IsAbs(*p) && *p != ":memory:":
			*p = filepath.Join(base, *p)
		}
	}
	resolve(&c.Storage.EventLogPath, "interactions")
	resolve(&c.Registry.Dir, "models")
	resolve(&c.Catalog.Path, "catalog.duckdb")
	resolve(&c.Events.NATS.StoreDir, "nats")
}
