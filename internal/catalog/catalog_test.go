// Signalcart - Storefront Interaction Signals and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/signalcart

package catalog

import (
	"context"
	"errors"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/signalcart/internal/models"
)

func openMemory(t *testing.T, mutate ...func(*Config)) *Store {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Path = ":memory:"
	cfg.FlushInterval = 10 * time.Millisecond
	for _, m := range mutate {
		m(&cfg)
	}
	s, err := Open(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestTopSellersOrdering(t *testing.T) {
	t.Parallel()
	s := openMemory(t)
	ctx := context.Background()

	err := s.Insert(ctx,
		Sale{ProductID: 5, UserID: 1, Quantity: 2},
		Sale{ProductID: 9, UserID: 2, Quantity: 1},
		Sale{ProductID: 3, UserID: 3, Quantity: 2},
		Sale{ProductID: 9, UserID: 4, Quantity: 2},
		Sale{ProductID: 7, UserID: 5},
	)
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	got, err := s.TopSellers(ctx, 10)
	if err != nil {
		t.Fatalf("TopSellers() error = %v", err)
	}
	// 9 sold 3, then 3 and 5 tie on 2 and break by ID, then 7 with a defaulted quantity.
	if want := []int64{9, 3, 5, 7}; !slices.Equal(got, want) {
		t.Errorf("TopSellers() = %v, want %v", got, want)
	}

	got, _ = s.TopSellers(ctx, 2)
	if !slices.Equal(got, []int64{9, 3}) {
		t.Errorf("TopSellers(2) = %v", got)
	}
	if got, _ := s.TopSellers(ctx, 0); got != nil {
		t.Errorf("TopSellers(0) = %v, want nil", got)
	}
}

func TestTopSellersWindow(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := openMemory(t, func(c *Config) { c.Window = 24 * time.Hour })
	s.now = func() time.Time { return now }
	ctx := context.Background()

	if err := s.Insert(ctx,
		Sale{ProductID: 1, Quantity: 10, SoldAt: now.Add(-48 * time.Hour)},
		Sale{ProductID: 2, Quantity: 1, SoldAt: now.Add(-time.Hour)},
	); err != nil {
		t.Fatal(err)
	}
	got, err := s.TopSellers(ctx, 5)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(got, []int64{2}) {
		t.Errorf("TopSellers() = %v, want only the in-window sale", got)
	}
}

func TestServeWritesQueuedPurchases(t *testing.T) {
	t.Parallel()
	s := openMemory(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	at := time.Now().UTC()
	s.InteractionRecorded(ctx, models.InteractionEvent{UserID: 1, ProductID: 4, Kind: models.KindPurchase, OccurredAt: at})
	s.InteractionRecorded(ctx, models.InteractionEvent{UserID: 1, ProductID: 8, Kind: models.KindClick, OccurredAt: at})
	s.InteractionRecorded(ctx, models.InteractionEvent{UserID: 2, ProductID: 4, Kind: models.KindPurchase, OccurredAt: at})
	s.InteractionRecorded(ctx, models.InteractionEvent{UserID: 3, ProductID: 6, Kind: models.KindPurchase, OccurredAt: at})

	deadline := time.Now().Add(5 * time.Second)
	for {
		got, err := s.TopSellers(context.Background(), 10)
		if err != nil {
			t.Fatal(err)
		}
		if slices.Equal(got, []int64{4, 6}) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("TopSellers() = %v, want [4 6]", got)
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Serve() error = %v, want context.Canceled", err)
	}
}

func TestServeFlushesOnShutdown(t *testing.T) {
	t.Parallel()
	s := openMemory(t, func(c *Config) { c.FlushInterval = time.Hour })

	s.InteractionRecorded(context.Background(), models.InteractionEvent{ProductID: 12, Kind: models.KindPurchase})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = s.Serve(ctx)

	got, err := s.TopSellers(context.Background(), 3)
	if err != nil || !slices.Equal(got, []int64{12}) {
		t.Errorf("TopSellers() after shutdown = %v, %v", got, err)
	}
}

func TestQueueFullDrops(t *testing.T) {
	t.Parallel()
	s := openMemory(t, func(c *Config) { c.QueueSize = 1 })

	for range 3 {
		s.InteractionRecorded(context.Background(), models.InteractionEvent{ProductID: 1, Kind: models.KindPurchase})
	}
	if s.Dropped() != 2 {
		t.Errorf("Dropped() = %d, want 2", s.Dropped())
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"disabled skips checks", func(c *Config) { c.Enabled = false; c.Path = "" }, false},
		{"empty path", func(c *Config) { c.Path = "" }, true},
		{"negative window", func(c *Config) { c.Window = -time.Hour }, true},
		{"zero queue", func(c *Config) { c.QueueSize = 0 }, true},
		{"zero flush", func(c *Config) { c.FlushInterval = 0 }, true},
		{"ratio above one", func(c *Config) { c.Breaker.FailureRatio = 1.5 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

type flakyQuerier struct {
	fail  atomic.Bool
	calls atomic.Int32
}

func (f *flakyQuerier) TopSellers(_ context.Context, limit int) ([]int64, error) {
	f.calls.Add(1)
	if f.fail.Load() {
		return nil, errors.New("database locked")
	}
	return []int64{1, 2, 3}[:min(limit, 3)], nil
}

func TestBestSellerSourceOpensCircuit(t *testing.T) {
	t.Parallel()
	q := &flakyQuerier{}
	cfg := DefaultConfig().Breaker
	cfg.Timeout = time.Hour
	src := NewBestSellerSource(q, cfg, zerolog.Nop())

	if got, err := src.Products(context.Background(), 2); err != nil || !slices.Equal(got, []int64{1, 2}) {
		t.Fatalf("Products() = %v, %v", got, err)
	}
	if src.Name() != "bestsellers" {
		t.Errorf("Name() = %q", src.Name())
	}

	q.fail.Store(true)
	for range int(cfg.MinRequests) {
		_, _ = src.Products(context.Background(), 2)
	}
	if src.State() != gobreaker.StateOpen {
		t.Fatalf("State() = %v, want open", src.State())
	}

	calls := q.calls.Load()
	if _, err := src.Products(context.Background(), 2); !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("Products() while open error = %v, want ErrOpenState", err)
	}
	if q.calls.Load() != calls {
		t.Error("open circuit still reached the database")
	}
}

func TestBestSellerSourceIgnoresCanceledCallers(t *testing.T) {
	t.Parallel()
	src := NewBestSellerSource(canceledQuerier{}, DefaultConfig().Breaker, zerolog.Nop())
	for range 20 {
		_, _ = src.Products(context.Background(), 1)
	}
	if src.State() != gobreaker.StateClosed {
		t.Errorf("State() = %v, want closed", src.State())
	}
}

type canceledQuerier struct{}

func (canceledQuerier) TopSellers(context.Context, int) ([]int64, error) {
	return nil, context.Canceled
}
