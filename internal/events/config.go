// Signalcart - Storefront Interaction Signals and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/signalcart

package events

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Backend names.
const (
	BackendGoChannel = "gochannel"
	BackendNATS      = "nats"
)

// Config holds event bus configuration.
type Config struct {
	Enabled bool

	// Backend is "gochannel" (in-process) or "nats" (JetStream).
	Backend string

	// TopicPrefix is prepended to every topic, separated by a dot.
	TopicPrefix string

	// OutputBuffer sizes each gochannel subscriber's buffer.
	OutputBuffer int64

	NATS   NATSConfig
	Ingest IngestConfig
}

// NATSConfig configures the JetStream backend.
type NATSConfig struct {
	// URL of an external server. Ignored when Embedded is set.
	URL string

	// Embedded starts an in-process nats-server with JetStream.
	Embedded bool
	Host     string
	Port     int
	StoreDir string

	MaxMemory int64
	MaxStore  int64

	StreamName      string
	MaxAge          time.Duration
	DuplicateWindow time.Duration

	DurableName   string
	QueueGroup    string
	AckWait       time.Duration
	MaxDeliver    int
	MaxReconnects int
	ReconnectWait time.Duration
}

// IngestConfig configures the bus ingestion consumer.
type IngestConfig struct {
	Enabled bool

	// RatePerSecond caps recordings from the bus. Zero disables throttling.
	RatePerSecond float64
	Burst         int

	DedupSize int
	DedupTTL  time.Duration

	MaxRetries           int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration

	CloseTimeout time.Duration
}

// DefaultConfig returns an in-process bus with ingestion enabled.
func DefaultConfig() Config {
	return Config{
		Enabled:      true,
		Backend:      BackendGoChannel,
		TopicPrefix:  "signalcart",
		OutputBuffer: 256,
		NATS: NATSConfig{
			URL:             "nats://127.0.0.1:4222",
			Embedded:        true,
			Host:            "127.0.0.1",
			Port:            4222,
			StoreDir:        "/data/nats",
			MaxMemory:       256 << 20,
			MaxStore:        4 << 30,
			StreamName:      "SIGNALCART",
			MaxAge:          7 * 24 * time.Hour,
			DuplicateWindow: 2 * time.Minute,
			DurableName:     "signalcart-ingest",
			QueueGroup:      "signalcart",
			AckWait:         30 * time.Second,
			MaxDeliver:      5,
			MaxReconnects:   -1,
			ReconnectWait:   2 * time.Second,
		},
		Ingest: IngestConfig{
			Enabled:              true,
			RatePerSecond:        0,
			Burst:                100,
			DedupSize:            100000,
			DedupTTL:             10 * time.Minute,
			MaxRetries:           3,
			RetryInitialInterval: 100 * time.Millisecond,
			RetryMaxInterval:     5 * time.Second,
			CloseTimeout:         30 * time.Second,
		},
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	switch c.Backend {
	case BackendGoChannel:
	case BackendNATS:
		if !c.NATS.Embedded && c.NATS.URL == "" {
			return errors.New("nats url is required without an embedded server")
		}
		if c.NATS.StreamName == "" {
			return errors.New("nats stream name is required")
		}
		if c.NATS.Embedded && c.NATS.StoreDir == "" {
			return errors.New("nats store dir is required for the embedded server")
		}
	default:
		return fmt.Errorf("unknown event bus backend %q", c.Backend)
	}
	if c.TopicPrefix == "" || strings.ContainsAny(c.TopicPrefix, " *>") {
		return fmt.Errorf("invalid topic prefix %q", c.TopicPrefix)
	}
	if c.Ingest.RatePerSecond < 0 {
		return errors.New("ingest rate must not be negative")
	}
	if c.Ingest.RatePerSecond > 0 && c.Ingest.Burst < 1 {
		return errors.New("ingest burst must be at least 1 when throttling")
	}
	if c.Ingest.MaxRetries < 0 {
		return errors.New("ingest retries must not be negative")
	}
	return nil
}
