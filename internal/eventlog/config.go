// Signalcart - Storefront Interaction Signals and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/signalcart

// Package eventlog is the durable, append-only interaction log backed by
// BadgerDB.
//
// Events are keyed by a big-endian sequence number under a fixed prefix, so
// key order is insertion order. A single appender goroutine owns sequence
// assignment: concurrent Append calls are gathered into one Badger
// transaction per batch, sequences are assigned contiguously, and batches
// commit in sequence order. A reader holding cursor N therefore never misses
// an event with a sequence below N that commits later.
//
// Scans run inside a Badger read transaction, which pins a snapshot of
// everything committed when the scan started. Writers are never blocked by
// readers.
package eventlog

import (
	"errors"
	"time"
)

// Config holds event log configuration.
type Config struct {
	// Path is the BadgerDB directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps the log in memory only. Intended for tests.
	InMemory bool

	// SyncWrites fsyncs every batch commit.
	SyncWrites bool

	// Compression enables Snappy compression of values.
	Compression bool

	// BatchSize caps the number of events committed in one transaction.
	BatchSize int

	// QueueSize is the buffer between Append callers and the appender.
	QueueSize int

	// MemTableSize is the BadgerDB memtable size in bytes.
	MemTableSize int64

	// ValueLogFileSize is the BadgerDB value log file size in bytes.
	ValueLogFileSize int64

	// NumCompactors is the number of BadgerDB compaction workers (minimum 2).
	NumCompactors int

	// CloseTimeout bounds how long Close waits for BadgerDB.
	CloseTimeout time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Path:             "/data/interactions",
		SyncWrites:       true,
		Compression:      true,
		BatchSize:        256,
		QueueSize:        4096,
		MemTableSize:     16 * 1024 * 1024,
		ValueLogFileSize: 64 * 1024 * 1024,
		NumCompactors:    2,
		CloseTimeout:     30 * time.Second,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if !c.InMemory && c.Path == "" {
		return errors.New("event log path is required")
	}
	if c.BatchSize < 1 {
		return errors.New("event log batch size must be at least 1")
	}
	if c.QueueSize < 0 {
		return errors.New("event log queue size must not be negative")
	}
	if c.NumCompactors != 0 && c.NumCompactors < 2 {
		return errors.New("event log needs at least 2 compactors")
	}
	return nil
}
