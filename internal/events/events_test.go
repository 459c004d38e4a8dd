// Signalcart - Storefront Interaction Signals and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/signalcart

package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/signalcart/internal/apperr"
	"github.com/tomtom215/signalcart/internal/logging"
	"github.com/tomtom215/signalcart/internal/models"
	"github.com/tomtom215/signalcart/internal/training"
)

func openBus(t *testing.T) *Bus {
	t.Helper()
	b, err := Open(context.Background(), DefaultConfig(), zerolog.Nop())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b
}

type fakeRecorder struct {
	mu           sync.Mutex
	calls        []IngestMessage
	correlations []string
	err          error
}

func (f *fakeRecorder) RecordNamed(ctx context.Context, userID, productID int64, kind string) (models.InteractionEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return models.InteractionEvent{}, f.err
	}
	f.calls = append(f.calls, IngestMessage{UserID: userID, ProductID: productID, InteractionType: kind})
	f.correlations = append(f.correlations, logging.CorrelationIDFromContext(ctx))
	return models.InteractionEvent{Seq: uint64(len(f.calls))}, nil
}

func (f *fakeRecorder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeRecorder) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func ingestMsg(t *testing.T, in IngestMessage) *message.Message {
	t.Helper()
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	return message.NewMessage("m-"+in.EventID, data)
}

func receive(t *testing.T, ch <-chan *message.Message) *message.Message {
	t.Helper()
	select {
	case msg := <-ch:
		msg.Ack()
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("no message received")
		return nil
	}
}

func TestTopics(t *testing.T) {
	t.Parallel()
	topics := NewTopics("shop")
	if topics.ModelPublished != "shop.model.published" || topics.Ingest != "shop.interaction.ingest" {
		t.Errorf("NewTopics() = %+v", topics)
	}
	if got := topics.Subjects(); len(got) != 1 || got[0] != "shop.>" {
		t.Errorf("Subjects() = %v", got)
	}
}

func TestModelPublishedNotification(t *testing.T) {
	t.Parallel()
	b := openBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := b.Subscribe(ctx, b.Topics().ModelPublished)
	if err != nil {
		t.Fatal(err)
	}

	run := training.RunInfo{ID: "run-1", State: training.StatePublished, Mode: training.ModeIncremental, VersionTag: "v7", Cursor: 42, Records: 10}
	b.ModelPublished(ctx, run)

	msg := receive(t, ch)
	if msg.UUID != "run-1" {
		t.Errorf("UUID = %q, want run id", msg.UUID)
	}
	var got training.RunInfo
	if err := json.Unmarshal(msg.Payload, &got); err != nil {
		t.Fatal(err)
	}
	if got.VersionTag != "v7" || got.Cursor != 42 || got.State != training.StatePublished {
		t.Errorf("payload = %+v", got)
	}
}

func TestInteractionRecordedNotification(t *testing.T) {
	t.Parallel()
	b := openBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := b.Subscribe(ctx, b.Topics().InteractionRecorded)
	if err != nil {
		t.Fatal(err)
	}
	b.InteractionRecorded(logging.ContextWithCorrelationID(ctx, "corr-9"), models.InteractionEvent{ID: "e-1", Seq: 3, UserID: 1, ProductID: 2, Kind: models.KindAddToCart, Weight: 2})

	msg := receive(t, ch)
	if cid := middleware.MessageCorrelationID(msg); cid != "corr-9" {
		t.Errorf("correlation ID = %q, want corr-9", cid)
	}
	var got InteractionMessage
	if err := json.Unmarshal(msg.Payload, &got); err != nil {
		t.Fatal(err)
	}
	if got.EventID != "e-1" || got.InteractionType != "ADD_TO_CART" || got.Weight != 2 || got.Seq != 3 {
		t.Errorf("payload = %+v", got)
	}
}

func TestPublishAfterClose(t *testing.T) {
	t.Parallel()
	b, err := Open(context.Background(), DefaultConfig(), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := b.Publish("x", "", 1); !errors.Is(err, ErrClosed) {
		t.Errorf("Publish() error = %v, want ErrClosed", err)
	}
	// Notifiers swallow the error.
	b.TrainingFailed(context.Background(), training.RunInfo{ID: "r"})
}

func TestIngestHandle(t *testing.T) {
	t.Parallel()

	valid := IngestMessage{EventID: "a", UserID: 1, ProductID: 2, InteractionType: "PURCHASE"}

	tests := []struct {
		name      string
		msg       func(t *testing.T) *message.Message
		recErr    error
		wantErr   bool
		wantCalls int
	}{
		{"valid", func(t *testing.T) *message.Message { return ingestMsg(t, valid) }, nil, false, 1},
		{"malformed json is dropped", func(*testing.T) *message.Message { return message.NewMessage("x", []byte("{")) }, nil, false, 0},
		{"missing event id is dropped", func(t *testing.T) *message.Message {
			in := valid
			in.EventID = ""
			return ingestMsg(t, in)
		}, nil, false, 0},
		{"unknown kind is dropped", func(t *testing.T) *message.Message {
			in := valid
			in.InteractionType = "WISHLIST"
			return ingestMsg(t, in)
		}, nil, false, 0},
		{"recorder validation is dropped", func(t *testing.T) *message.Message { return ingestMsg(t, valid) }, apperr.Validationf("bad"), false, 0},
		{"storage failure is retried", func(t *testing.T) *message.Message { return ingestMsg(t, valid) }, apperr.Storage("append", errors.New("disk")), true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := &fakeRecorder{err: tt.recErr}
			in := NewIngestor(openBus(t), rec, zerolog.Nop())

			err := in.Handle(tt.msg(t))
			if (err != nil) != tt.wantErr {
				t.Errorf("Handle() error = %v, wantErr %v", err, tt.wantErr)
			}
			if rec.count() != tt.wantCalls {
				t.Errorf("recorded %d, want %d", rec.count(), tt.wantCalls)
			}
		})
	}
}

func TestIngestCorrelationID(t *testing.T) {
	t.Parallel()
	rec := &fakeRecorder{}
	in := NewIngestor(openBus(t), rec, zerolog.Nop())

	tagged := ingestMsg(t, IngestMessage{EventID: "c-1", UserID: 1, ProductID: 2, InteractionType: "CLICK"})
	middleware.SetCorrelationID("upstream-7", tagged)
	if err := in.Handle(tagged); err != nil {
		t.Fatal(err)
	}
	if err := in.Handle(ingestMsg(t, IngestMessage{EventID: "c-2", UserID: 1, ProductID: 3, InteractionType: "CLICK"})); err != nil {
		t.Fatal(err)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.correlations) != 2 || rec.correlations[0] != "upstream-7" {
		t.Fatalf("correlations = %v", rec.correlations)
	}
	if len(rec.correlations[1]) != 8 {
		t.Errorf("generated correlation ID = %q", rec.correlations[1])
	}
}

func TestIngestDeduplicates(t *testing.T) {
	t.Parallel()
	rec := &fakeRecorder{}
	in := NewIngestor(openBus(t), rec, zerolog.Nop())
	msg := IngestMessage{EventID: "dup", UserID: 1, ProductID: 2, InteractionType: "click"}

	for range 3 {
		if err := in.Handle(ingestMsg(t, msg)); err != nil {
			t.Fatal(err)
		}
	}
	if rec.count() != 1 {
		t.Errorf("recorded %d times, want 1", rec.count())
	}
}

func TestIngestRedeliveryAfterStorageFailure(t *testing.T) {
	t.Parallel()
	rec := &fakeRecorder{err: apperr.Storage("append", errors.New("disk"))}
	in := NewIngestor(openBus(t), rec, zerolog.Nop())
	msg := IngestMessage{EventID: "retry", UserID: 1, ProductID: 2, InteractionType: "CLICK"}

	if err := in.Handle(ingestMsg(t, msg)); err == nil {
		t.Fatal("Handle() should fail while storage is down")
	}
	rec.setErr(nil)
	if err := in.Handle(ingestMsg(t, msg)); err != nil {
		t.Fatalf("redelivered Handle() error = %v", err)
	}
	if rec.count() != 1 {
		t.Errorf("recorded %d, want 1 after redelivery", rec.count())
	}
}

func TestIngestServeOverGoChannel(t *testing.T) {
	t.Parallel()
	b := openBus(t)
	rec := &fakeRecorder{}
	in := NewIngestor(b, rec, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- in.Serve(ctx) }()

	msg := IngestMessage{EventID: "bus-1", UserID: 4, ProductID: 5, InteractionType: "ADD_TO_CART"}
	deadline := time.Now().Add(5 * time.Second)
	for rec.count() == 0 {
		// The subscription may not exist yet; resending is safe because of dedup.
		if err := b.Publish(b.Topics().Ingest, "", msg); err != nil {
			t.Fatal(err)
		}
		if time.Now().After(deadline) {
			t.Fatal("ingested message never recorded")
		}
		time.Sleep(20 * time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)
	if rec.count() != 1 {
		t.Errorf("recorded %d, want 1", rec.count())
	}

	cancel()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("Serve() did not return after cancel")
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
		{"disabled", func(c *Config) { c.Enabled = false; c.Backend = "kafka" }, false},
		{"unknown backend", func(c *Config) { c.Backend = "kafka" }, true},
		{"nats embedded", func(c *Config) { c.Backend = BackendNATS }, false},
		{"nats external without url", func(c *Config) { c.Backend = BackendNATS; c.NATS.Embedded = false; c.NATS.URL = "" }, true},
		{"nats without stream", func(c *Config) { c.Backend = BackendNATS; c.NATS.StreamName = "" }, true},
		{"wildcard prefix", func(c *Config) { c.TopicPrefix = "shop.>" }, true},
		{"negative rate", func(c *Config) { c.Ingest.RatePerSecond = -1 }, true},
		{"rate without burst", func(c *Config) { c.Ingest.RatePerSecond = 5; c.Ingest.Burst = 0 }, true},
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
