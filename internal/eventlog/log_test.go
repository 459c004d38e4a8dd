// Signalcart - Storefront Interaction Signals and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/signalcart

package eventlog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/signalcart/internal/apperr"
	"github.com/tomtom215/signalcart/internal/models"
)

func openTestLog(t *testing.T) *Log {
	t.Helper()
	cfg := DefaultConfig()
	cfg.InMemory = true
	cfg.Compression = false
	l, err := Open(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func newEvent(user, product int64, kind models.InteractionKind) *models.InteractionEvent {
	return &models.InteractionEvent{
		ID:         "test",
		UserID:     user,
		ProductID:  product,
		Kind:       kind,
		Weight:     kind.Weight(),
		OccurredAt: time.Now().UTC(),
	}
}

func collect(t *testing.T, l *Log, after uint64) []models.InteractionEvent {
	t.Helper()
	var out []models.InteractionEvent
	for ev, err := range l.Scan(context.Background(), after) {
		if err != nil {
			t.Fatalf("Scan() error = %v", err)
		}
		out = append(out, ev)
	}
	return out
}

func TestAppendAssignsSequentialSeq(t *testing.T) {
	t.Parallel()
	l := openTestLog(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		seq, err := l.Append(ctx, newEvent(1, int64(10+i), models.KindClick))
		if err != nil {
			t.Fatalf("Append() error = %v", err)
		}
		if seq != uint64(i) {
			t.Errorf("Append() seq = %d, want %d", seq, i)
		}
	}
	if l.Head() != 5 {
		t.Errorf("Head() = %d, want 5", l.Head())
	}
}

func TestScanInsertionOrderAndResume(t *testing.T) {
	t.Parallel()
	l := openTestLog(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if _, err := l.Append(ctx, newEvent(int64(i%3+1), int64(100+i), models.KindPurchase)); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	all := collect(t, l, 0)
	if len(all) != 10 {
		t.Fatalf("Scan(0) len = %d, want 10", len(all))
	}
	for i, ev := range all {
		if ev.Seq != uint64(i+1) || ev.ProductID != int64(100+i) {
			t.Errorf("event %d = seq %d product %d", i, ev.Seq, ev.ProductID)
		}
		if ev.Weight != 3 || ev.Kind != models.KindPurchase {
			t.Errorf("event %d lost kind or weight: %+v", i, ev)
		}
	}

	rest := collect(t, l, 4)
	if len(rest) != 6 || rest[0].Seq != 5 {
		t.Errorf("Scan(4) = %d events starting at %d, want 6 starting at 5", len(rest), rest[0].Seq)
	}

	if none := collect(t, l, 10); len(none) != 0 {
		t.Errorf("Scan(head) len = %d, want 0", len(none))
	}
}

func TestScanEarlyBreak(t *testing.T) {
	t.Parallel()
	l := openTestLog(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _ = l.Append(ctx, newEvent(1, int64(i+1), models.KindClick))
	}

	count := 0
	for _, err := range l.Scan(ctx, 0) {
		if err != nil {
			t.Fatalf("Scan() error = %v", err)
		}
		count++
		if count == 2 {
			break
		}
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
}

func TestScanSnapshotExcludesLaterWrites(t *testing.T) {
	t.Parallel()
	l := openTestLog(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _ = l.Append(ctx, newEvent(1, int64(i+1), models.KindClick))
	}

	var seen []uint64
	for ev, err := range l.Scan(ctx, 0) {
		if err != nil {
			t.Fatalf("Scan() error = %v", err)
		}
		seen = append(seen, ev.Seq)
		if len(seen) == 1 {
			if _, err := l.Append(ctx, newEvent(2, 99, models.KindPurchase)); err != nil {
				t.Fatalf("Append() during scan error = %v", err)
			}
		}
	}

	if len(seen) != 3 {
		t.Errorf("scan saw %v, want exactly the 3 events committed before it started", seen)
	}
	if after := collect(t, l, 3); len(after) != 1 || after[0].ProductID != 99 {
		t.Errorf("resume from cursor 3 = %+v, want the event written during the scan", after)
	}
}

func TestConcurrentAppendNoGapsNoDuplicates(t *testing.T) {
	t.Parallel()
	l := openTestLog(t)
	ctx := context.Background()

	const writers, perWriter = 8, 50
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				if _, err := l.Append(ctx, newEvent(int64(w+1), int64(i+1), models.KindAddToCart)); err != nil {
					t.Errorf("Append() error = %v", err)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	events := collect(t, l, 0)
	if len(events) != writers*perWriter {
		t.Fatalf("Scan() len = %d, want %d", len(events), writers*perWriter)
	}
	for i, ev := range events {
		if ev.Seq != uint64(i+1) {
			t.Fatalf("event %d has seq %d: gap or duplicate", i, ev.Seq)
		}
	}
	if st := l.Stats(); st.Appends != writers*perWriter || st.Batches < 1 {
		t.Errorf("Stats() = %+v", st)
	}
}

func TestTailNewestFirst(t *testing.T) {
	t.Parallel()
	l := openTestLog(t)
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		_, _ = l.Append(ctx, newEvent(1, int64(i), models.KindClick))
	}

	tail, err := l.Tail(ctx, 2)
	if err != nil {
		t.Fatalf("Tail() error = %v", err)
	}
	if len(tail) != 2 || tail[0].ProductID != 4 || tail[1].ProductID != 3 {
		t.Errorf("Tail(2) = %+v, want products 4,3", tail)
	}
}

func TestHeadRestoredOnReopen(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Path = t.TempDir()
	cfg.SyncWrites = false

	l, err := Open(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := l.Append(context.Background(), newEvent(1, int64(i+1), models.KindClick)); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	l, err = Open(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer l.Close()

	if l.Head() != 3 {
		t.Fatalf("Head() after reopen = %d, want 3", l.Head())
	}
	seq, err := l.Append(context.Background(), newEvent(1, 4, models.KindClick))
	if err != nil || seq != 4 {
		t.Errorf("Append() after reopen = %d, %v; want 4", seq, err)
	}
}

func TestClosedLogReturnsStorageError(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.InMemory = true
	l, err := Open(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	_, err = l.Append(context.Background(), newEvent(1, 1, models.KindClick))
	if !errors.Is(err, apperr.ErrStorage) || !errors.Is(err, ErrClosed) {
		t.Errorf("Append() after close error = %v, want storage/closed", err)
	}

	for _, err := range l.Scan(context.Background(), 0) {
		if !errors.Is(err, apperr.ErrStorage) {
			t.Errorf("Scan() after close error = %v, want storage error", err)
		}
	}
}

func TestScanContextCancelled(t *testing.T) {
	t.Parallel()
	l := openTestLog(t)

	for i := 0; i < 3; i++ {
		_, _ = l.Append(context.Background(), newEvent(1, int64(i+1), models.KindClick))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var gotErr error
	for _, err := range l.Scan(ctx, 0) {
		gotErr = err
	}
	if !errors.Is(gotErr, context.Canceled) {
		t.Errorf("Scan() with cancelled ctx error = %v, want context.Canceled", gotErr)
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
		{"in memory without path", func(c *Config) { c.Path = ""; c.InMemory = true }, false},
		{"missing path", func(c *Config) { c.Path = "" }, true},
		{"zero batch", func(c *Config) { c.BatchSize = 0 }, true},
		{"one compactor", func(c *Config) { c.NumCompactors = 1 }, true},
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
