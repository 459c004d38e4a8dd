// Signalcart - Storefront Interaction Signals and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/signalcart

package interactions

import (
	"context"
	"errors"
	"iter"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/tomtom215/signalcart/internal/apperr"
	"github.com/tomtom215/signalcart/internal/eventlog"
	"github.com/tomtom215/signalcart/internal/metrics"
	"github.com/tomtom215/signalcart/internal/models"
)

func openLog(t *testing.T) *eventlog.Log {
	t.Helper()
	cfg := eventlog.DefaultConfig()
	cfg.InMemory = true
	l, err := eventlog.Open(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("eventlog.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

type failingAppender struct{ err error }

func (f failingAppender) Append(context.Context, *models.InteractionEvent) (uint64, error) {
	return 0, f.err
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []models.InteractionEvent
}

func (n *recordingNotifier) InteractionRecorded(_ context.Context, ev models.InteractionEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func TestRecordValidation(t *testing.T) {
	t.Parallel()
	rec := NewRecorder(openLog(t), zerolog.Nop())

	tests := []struct {
		name      string
		user      int64
		product   int64
		kind      models.InteractionKind
		wantValid bool
	}{
		{"valid purchase", 1, 10, models.KindPurchase, true},
		{"zero user", 0, 10, models.KindClick, false},
		{"negative product", 1, -5, models.KindClick, false},
		{"unknown kind", 1, 10, models.KindUnknown, false},
		{"out of range kind", 1, 10, models.InteractionKind(42), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ev, err := rec.Record(context.Background(), tt.user, tt.product, tt.kind)
			if tt.wantValid {
				if err != nil {
					t.Fatalf("Record() error = %v", err)
				}
				if ev.Seq == 0 || ev.ID == "" || ev.Weight != tt.kind.Weight() {
					t.Errorf("Record() = %+v", ev)
				}
				return
			}
			if !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("Record() error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestRecordNamedRejectsUnknownType(t *testing.T) {
	t.Parallel()
	rec := NewRecorder(openLog(t), zerolog.Nop())

	if _, err := rec.RecordNamed(context.Background(), 1, 2, "WISHLIST"); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("RecordNamed(WISHLIST) error = %v, want ErrValidation", err)
	}
	ev, err := rec.RecordNamed(context.Background(), 1, 2, "ADD_TO_CART")
	if err != nil || ev.Weight != 2 {
		t.Errorf("RecordNamed(ADD_TO_CART) = %+v, %v", ev, err)
	}
}

func TestRecordStorageFailure(t *testing.T) {
	t.Parallel()

	notifier := &recordingNotifier{}
	rec := NewRecorder(failingAppender{err: apperr.Storage("append", errors.New("disk gone"))}, zerolog.Nop(), WithNotifier(notifier))

	_, err := rec.Record(context.Background(), 1, 10, models.KindClick)
	if !errors.Is(err, apperr.ErrStorage) {
		t.Fatalf("Record() error = %v, want ErrStorage", err)
	}
	if len(notifier.events) != 0 {
		t.Error("notifier must not hear about a failed append")
	}
}

// lateCancelAppender commits the event and then reports ctx as done, the
// way the log answers a caller whose context ended mid-commit.
type lateCancelAppender struct {
	log    *eventlog.Log
	cancel context.CancelFunc
}

func (a lateCancelAppender) Append(ctx context.Context, ev *models.InteractionEvent) (uint64, error) {
	if _, err := a.log.Append(context.WithoutCancel(ctx), ev); err != nil {
		return 0, err
	}
	a.cancel()
	return 0, ctx.Err()
}

func TestRecordCancelledAfterCommit(t *testing.T) {
	t.Parallel()
	log := openLog(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notifier := &recordingNotifier{}
	rec := NewRecorder(lateCancelAppender{log: log, cancel: cancel}, zerolog.Nop(), WithNotifier(notifier))
	before := testutil.ToFloat64(metrics.InteractionRecordErrors.WithLabelValues("cancelled"))

	_, err := rec.Record(ctx, 1, 10, models.KindPurchase)
	if !errors.Is(err, context.Canceled) || errors.Is(err, apperr.ErrStorage) {
		t.Fatalf("Record() error = %v, want context.Canceled", err)
	}
	if log.Head() != 1 {
		t.Errorf("Head() = %d, the event should be durable", log.Head())
	}
	if len(notifier.events) != 0 {
		t.Error("notifier heard about an append reported as failed")
	}
	if got := testutil.ToFloat64(metrics.InteractionRecordErrors.WithLabelValues("cancelled")) - before; got != 1 {
		t.Errorf("cancelled errors counted = %v", got)
	}
}

func TestRecordNotifiesAndStampsTime(t *testing.T) {
	t.Parallel()

	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	notifier := &recordingNotifier{}
	rec := NewRecorder(openLog(t), zerolog.Nop(), WithNotifier(notifier), WithClock(func() time.Time { return fixed }))

	ev, err := rec.Record(context.Background(), 7, 70, models.KindAddToCart)
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if !ev.OccurredAt.Equal(fixed) {
		t.Errorf("OccurredAt = %v, want %v", ev.OccurredAt, fixed)
	}
	if len(notifier.events) != 1 || notifier.events[0].Seq != ev.Seq {
		t.Errorf("notifier events = %+v", notifier.events)
	}
}

func TestExportMatchesRecordedOrder(t *testing.T) {
	t.Parallel()
	log := openLog(t)
	rec := NewRecorder(log, zerolog.Nop())
	exp := NewExporter(log)
	ctx := context.Background()

	if _, err := rec.Record(ctx, 1, 10, models.KindPurchase); err != nil {
		t.Fatal(err)
	}
	if _, err := rec.Record(ctx, 1, 11, models.KindClick); err != nil {
		t.Fatal(err)
	}

	var got []models.InteractionRecord
	for r, err := range exp.ExportSince(ctx, 0) {
		if err != nil {
			t.Fatalf("ExportSince() error = %v", err)
		}
		got = append(got, r)
	}

	want := []models.InteractionRecord{
		{Cursor: 1, UserID: 1, ProductID: 10, Weight: 3, Kind: models.KindPurchase},
		{Cursor: 2, UserID: 1, ProductID: 11, Weight: 1, Kind: models.KindClick},
	}
	if len(got) != len(want) {
		t.Fatalf("ExportSince() = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("record %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestExportNRecordsNoDuplicates(t *testing.T) {
	t.Parallel()
	log := openLog(t)
	rec := NewRecorder(log, zerolog.Nop())
	ctx := context.Background()

	const n = 300
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := rec.Record(ctx, int64(i%17+1), int64(i+1), models.KindClick); err != nil {
				t.Errorf("Record() error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	seen := make(map[int64]bool, n)
	var last uint64
	for r, err := range NewExporter(log).ExportSince(ctx, 0) {
		if err != nil {
			t.Fatalf("ExportSince() error = %v", err)
		}
		if seen[r.ProductID] {
			t.Fatalf("product %d exported twice", r.ProductID)
		}
		if r.Cursor <= last {
			t.Fatalf("cursor %d not increasing after %d", r.Cursor, last)
		}
		seen[r.ProductID] = true
		last = r.Cursor
	}
	if len(seen) != n {
		t.Errorf("exported %d records, want %d", len(seen), n)
	}
}

type brokenScanner struct {
	events []models.InteractionEvent
	failAt int
}

func (b brokenScanner) Head() uint64 { return uint64(len(b.events)) }

func (b brokenScanner) Scan(_ context.Context, after uint64) iter.Seq2[models.InteractionEvent, error] {
	return func(yield func(models.InteractionEvent, error) bool) {
		for i, ev := range b.events {
			if ev.Seq <= after {
				continue
			}
			if i == b.failAt {
				yield(models.InteractionEvent{}, apperr.Storage("scan", errors.New("io error")))
				return
			}
			if !yield(ev, nil) {
				return
			}
		}
	}
}

func TestExportResumesAfterStorageFailure(t *testing.T) {
	t.Parallel()

	events := make([]models.InteractionEvent, 5)
	for i := range events {
		events[i] = models.InteractionEvent{Seq: uint64(i + 1), UserID: 1, ProductID: int64(i + 1), Kind: models.KindClick, Weight: 1}
	}

	var seenCursor uint64
	var failed bool
	for r, err := range NewExporter(brokenScanner{events: events, failAt: 3}).ExportSince(context.Background(), 0) {
		if err != nil {
			if !errors.Is(err, apperr.ErrStorage) {
				t.Fatalf("error = %v, want ErrStorage", err)
			}
			failed = true
			break
		}
		seenCursor = r.Cursor
	}
	if !failed || seenCursor != 3 {
		t.Fatalf("failed=%v lastCursor=%d, want failure after cursor 3", failed, seenCursor)
	}

	var resumed []uint64
	for r, err := range NewExporter(brokenScanner{events: events, failAt: -1}).ExportSince(context.Background(), seenCursor) {
		if err != nil {
			t.Fatalf("resume error = %v", err)
		}
		resumed = append(resumed, r.Cursor)
	}
	if len(resumed) != 2 || resumed[0] != 4 || resumed[1] != 5 {
		t.Errorf("resumed cursors = %v, want [4 5]", resumed)
	}
}

func TestExportPage(t *testing.T) {
	t.Parallel()
	log := openLog(t)
	rec := NewRecorder(log, zerolog.Nop())
	exp := NewExporter(log)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		if _, err := rec.Record(ctx, 1, int64(i), models.KindClick); err != nil {
			t.Fatal(err)
		}
	}

	page, err := exp.ExportPage(ctx, 0, 2)
	if err != nil {
		t.Fatalf("ExportPage() error = %v", err)
	}
	if len(page.Records) != 2 || !page.HasMore || page.NextCursor != 2 {
		t.Errorf("first page = %+v", page)
	}

	page, err = exp.ExportPage(ctx, page.NextCursor, 10)
	if err != nil {
		t.Fatalf("ExportPage() error = %v", err)
	}
	if len(page.Records) != 3 || page.HasMore || page.NextCursor != 5 {
		t.Errorf("second page = %+v", page)
	}

	if _, err := exp.ExportPage(ctx, 0, 0); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("ExportPage(limit=0) error = %v, want ErrValidation", err)
	}
	if exp.Head() != 5 {
		t.Errorf("Head() = %d, want 5", exp.Head())
	}
}
