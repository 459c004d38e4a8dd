// Signalcart - Storefront Interaction Signals and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/signalcart

// Package interactions holds the write and export paths over the interaction
// log: the Recorder validates and appends storefront events, and the Exporter
// turns the log into a lazy, resumable stream of training records.
package interactions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tomtom215/signalcart/internal/apperr"
	"github.com/tomtom215/signalcart/internal/metrics"
	"github.com/tomtom215/signalcart/internal/models"
)

// Appender is the durable append used by the Recorder.
type Appender interface {
	Append(ctx context.Context, ev *models.InteractionEvent) (uint64, error)
}

// Notifier is told about each recorded event. Implementations must not block
// for long and must not fail the recording; errors are theirs to log.
type Notifier interface {
	InteractionRecorded(ctx context.Context, ev models.InteractionEvent)
}

// Recorder validates interactions and appends them to the log. It is safe for
// concurrent use and holds no locks of its own.
type Recorder struct {
	log      Appender
	notifier Notifier
	logger   zerolog.Logger
	now      func() time.Time
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithNotifier registers a notifier for recorded events.
func WithNotifier(n Notifier) RecorderOption {
	return func(r *Recorder) { r.notifier = n }
}

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) { r.now = now }
}

// NewRecorder creates a Recorder writing to log.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewRecorder(log Appender, logger zerolog.Logger, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		log:    log,
		logger: logger.With().Str("component", "recorder").Logger(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record appends one interaction. It fails with a validation error for
// non-positive IDs or an invalid kind, and with a storage error when the
// append fails; in both cases nothing is written.
//
// When ctx ends while the append is queued or committing, Record returns the
// context error but the event may already be durable. A retry can then
// record it twice, which training tolerates. Notifiers only hear about
// appends that returned success.
func (r *Recorder) Record(ctx context.Context, userID, productID int64, kind models.InteractionKind) (models.InteractionEvent, error) {
	if err := validate(userID, productID, kind); err != nil {
		metrics.RecordInteractionError("validation")
		return models.InteractionEvent{}, err
	}

	ev := models.InteractionEvent{
		ID:         uuid.New().String(),
		UserID:     userID,
		ProductID:  productID,
		Kind:       kind,
		Weight:     kind.Weight(),
		OccurredAt: r.now(),
	}

	seq, err := r.log.Append(ctx, &ev)
	if err != nil {
		class := "storage"
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			class = "cancelled"
		}
		metrics.RecordInteractionError(class)
		return models.InteractionEvent{}, fmt.Errorf("record interaction: %w", err)
	}
	ev.Seq = seq

	metrics.RecordInteraction(kind.String())
	r.logger.Debug().
		Uint64("seq", seq).
		Int64("user_id", userID).
		Int64("product_id", productID).
		Str("kind", kind.String()).
		Msg("Interaction recorded")

	if r.notifier != nil {
		r.notifier.InteractionRecorded(ctx, ev)
	}
	return ev, nil
}

// RecordNamed parses a wire kind name and records it.
func (r *Recorder) RecordNamed(ctx context.Context, userID, productID int64, kind string) (models.InteractionEvent, error) {
	k, err := models.ParseInteractionKind(kind)
	if err != nil {
		metrics.RecordInteractionError("validation")
		return models.InteractionEvent{}, apperr.Validationf("%v", err)
	}
	return r.Record(ctx, userID, productID, k)
}

func validate(userID, productID int64, kind models.InteractionKind) error {
	if userID <= 0 {
		return apperr.Validationf("user id must be positive, got %d", userID)
	}
	if productID <= 0 {
		return apperr.Validationf("product id must be positive, got %d", productID)
	}
	if !kind.Valid() {
		return apperr.Validationf("invalid interaction kind %d", int(kind))
	}
	return nil
}

// Notifiers fans one recorded event out to several notifiers in order.
type Notifiers []Notifier

// InteractionRecorded calls every notifier.
func (ns Notifiers) InteractionRecorded(ctx context.Context, ev models.InteractionEvent) {
	for _, n := range ns {
		n.InteractionRecorded(ctx, ev)
	}
}
