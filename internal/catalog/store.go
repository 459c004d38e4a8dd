// Signalcart - Storefront Interaction Signals and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/signalcart

// Package catalog keeps a DuckDB sales ledger fed by recorded purchases and
// serves best sellers from it as a recommendation fallback source.
//
// Purchases are observed from the recording path without blocking it: they
// are queued and written in batches by a background service. The best-seller
// query runs behind a circuit breaker so a slow or broken database stops
// costing request latency.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/rs/zerolog"

	"github.com/tomtom215/signalcart/internal/metrics"
	"github.com/tomtom215/signalcart/internal/models"
)

// Config holds catalog configuration.
type Config struct {
	Enabled bool

	// Path is the DuckDB database file, or ":memory:".
	Path string

	// Window limits best sellers to sales within this duration. Zero means
	// all time.
	Window time.Duration

	// QueueSize buffers observed purchases ahead of the writer.
	QueueSize int

	// FlushInterval bounds how long a purchase waits in the queue.
	FlushInterval time.Duration

	// MaxThreads caps DuckDB worker threads.
	MaxThreads int

	Breaker BreakerConfig
}

// BreakerConfig tunes the best-seller circuit breaker.
type BreakerConfig struct {
	MaxRequests  uint32
	Interval     time.Duration
	Timeout      time.Duration
	MinRequests  uint32
	FailureRatio float64
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:       true,
		Path:          "/data/catalog.duckdb",
		Window:        30 * 24 * time.Hour,
		QueueSize:     8192,
		FlushInterval: time.Second,
		MaxThreads:    2,
		Breaker: BreakerConfig{
			MaxRequests:  3,
			Interval:     time.Minute,
			Timeout:      30 * time.Second,
			MinRequests:  10,
			FailureRatio: 0.6,
		},
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Path == "" {
		return errors.New("catalog path is required")
	}
	if c.Window < 0 {
		return errors.New("catalog window must not be negative")
	}
	if c.QueueSize < 1 {
		return errors.New("catalog queue size must be at least 1")
	}
	if c.FlushInterval <= 0 {
		return errors.New("catalog flush interval must be positive")
	}
	if c.Breaker.FailureRatio <= 0 || c.Breaker.FailureRatio > 1 {
		return fmt.Errorf("catalog breaker failure ratio must be in (0, 1], got %v", c.Breaker.FailureRatio)
	}
	return nil
}

const schema = `CREATE TABLE IF NOT EXISTS sales (
	product_id BIGINT NOT NULL,
	user_id    BIGINT NOT NULL,
	quantity   INTEGER NOT NULL DEFAULT 1,
	sold_at    TIMESTAMP NOT NULL
)`

// Sale is one recorded purchase.
type Sale struct {
	ProductID int64
	UserID    int64
	Quantity  int
	SoldAt    time.Time
}

// Store is the DuckDB sales ledger.
type Store struct {
	cfg     Config
	db      *sql.DB
	logger  zerolog.Logger
	queue   chan Sale
	dropped atomic.Int64
	now     func() time.Time
}

// Open opens the DuckDB database and creates the schema.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func Open(ctx context.Context, cfg Config, logger zerolog.Logger) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid catalog config: %w", err)
	}

	dsn := cfg.Path
	if cfg.MaxThreads > 0 {
		dsn = fmt.Sprintf("%s?threads=%d&autoinstall_known_extensions=false&autoload_known_extensions=false", cfg.Path, cfg.MaxThreads)
	}
	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("open catalog database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("create catalog schema: %w", err)
	}

	return &Store{
		cfg:    cfg,
		db:     db,
		logger: logger.With().Str("component", "catalog").Logger(),
		queue:  make(chan Sale, cfg.QueueSize),
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// Close closes the database. Queued sales not yet flushed are lost.
func (s *Store) Close() error {
	return s.db.Close()
}

// InteractionRecorded queues purchases for the ledger. It never blocks: when
// the queue is full the sale is dropped and counted.
func (s *Store) InteractionRecorded(_ context.Context, ev models.InteractionEvent) {
	if ev.Kind != models.KindPurchase {
		return
	}
	sale := Sale{ProductID: ev.ProductID, UserID: ev.UserID, Quantity: 1, SoldAt: ev.OccurredAt}
	select {
	case s.queue <- sale:
	default:
		s.dropped.Add(1)
		metrics.RecordCatalogDrop()
	}
}

// Dropped returns how many purchases were dropped on a full queue.
func (s *Store) Dropped() int64 {
	return s.dropped.Load()
}

// Serve flushes queued sales until ctx is done, then flushes what remains.
func (s *Store) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]Sale, 0, 256)
	flush := func(ctx context.Context) {
		if len(batch) == 0 {
			return
		}
		if err := s.Insert(ctx, batch...); err != nil {
			s.logger.Error().Err(err).Int("sales", len(batch)).Msg("Failed to write sales batch")
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case sale := <-s.queue:
					batch = append(batch, sale)
				default:
					flush(context.WithoutCancel(ctx))
					return ctx.Err()
				}
			}
		case sale := <-s.queue:
			batch = append(batch, sale)
			if len(batch) == cap(batch) {
				flush(ctx)
			}
		case <-ticker.C:
			flush(ctx)
		}
	}
}

// String names the service for the supervisor.
func (s *Store) String() string {
	return "catalog-writer"
}

// Insert writes sales in one transaction.
func (s *Store) Insert(ctx context.Context, sales ...Sale) error {
	if len(sales) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin sales insert: %w", err)
	}
	defer func() { _ = tx.Rollback() }() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO sales (product_id, user_id, quantity, sold_at) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare sales insert: %w", err)
	}
	defer func() { _ = stmt.Close() }() //nolint:errcheck // statement cleanup

	for _, sale := range sales {
		at := sale.SoldAt
		if at.IsZero() {
			at = s.now()
		}
		qty := max(sale.Quantity, 1)
		if _, err := stmt.ExecContext(ctx, sale.ProductID, sale.UserID, qty, at); err != nil {
			return fmt.Errorf("insert sale: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit sales insert: %w", err)
	}
	return nil
}

// TopSellers returns up to limit products by units sold within the
// configured window. Ties are broken by ascending product ID.
func (s *Store) TopSellers(ctx context.Context, limit int) ([]int64, error) {
	if limit <= 0 {
		return nil, nil
	}
	since := time.Time{}
	if s.cfg.Window > 0 {
		since = s.now().Add(-s.cfg.Window)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id
		FROM sales
		WHERE sold_at >= ?
		GROUP BY product_id
		ORDER BY SUM(quantity) DESC, product_id ASC
		LIMIT ?`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("query top sellers: %w", err)
	}
	defer func() { _ = rows.Close() }() //nolint:errcheck // read-only cursor

	out := make([]int64, 0, limit)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan top seller: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate top sellers: %w", err)
	}
	return out, nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
