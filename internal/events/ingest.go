// Signalcart - Storefront Interaction Signals and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/signalcart

package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tomtom215/signalcart/internal/apperr"
	"github.com/tomtom215/signalcart/internal/cache"
	"github.com/tomtom215/signalcart/internal/logging"
	"github.com/tomtom215/signalcart/internal/metrics"
	"github.com/tomtom215/signalcart/internal/models"
	"github.com/tomtom215/signalcart/internal/validation"
)

// Recorder records an interaction by wire kind name.
type Recorder interface {
	RecordNamed(ctx context.Context, userID, productID int64, kind string) (models.InteractionEvent, error)
}

// Ingestor consumes interactions submitted over the bus and records them.
//
// Malformed or invalid messages are acked and dropped; redelivery cannot fix
// them. Storage failures are retried with backoff and then nacked so the
// broker redelivers. Each event_id is recorded at most once within the
// dedup window.
type Ingestor struct {
	cfg     IngestConfig
	bus     *Bus
	rec     Recorder
	seen    *cache.LRU[string, struct{}]
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// NewIngestor creates an ingestion consumer on bus.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewIngestor(bus *Bus, rec Recorder, logger zerolog.Logger) *Ingestor {
	cfg := bus.cfg.Ingest
	i := &Ingestor{
		cfg:    cfg,
		bus:    bus,
		rec:    rec,
		seen:   cache.New[string, struct{}](cfg.DedupSize, cfg.DedupTTL),
		logger: logger.With().Str("component", "ingest").Logger(),
	}
	if cfg.RatePerSecond > 0 {
		i.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst)
	}
	return i
}

// Serve runs a router over the ingest topic until ctx is done. Each call
// builds a fresh router so the supervisor can restart it.
func (i *Ingestor) Serve(ctx context.Context) error {
	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: i.cfg.CloseTimeout}, i.bus.wmLogger)
	if err != nil {
		return fmt.Errorf("create ingest router: %w", err)
	}

	router.AddMiddleware(
		middleware.Recoverer,
		middleware.Retry{
			MaxRetries:      i.cfg.MaxRetries,
			InitialInterval: i.cfg.RetryInitialInterval,
			MaxInterval:     i.cfg.RetryMaxInterval,
			Multiplier:      2,
			Logger:          i.bus.wmLogger,
		}.Middleware,
	)
	router.AddConsumerHandler("interaction-ingest", i.bus.topics.Ingest, i.bus.Subscriber(), i.Handle)

	i.logger.Info().Str("topic", i.bus.topics.Ingest).Msg("Ingest consumer started")
	if err := router.Run(ctx); err != nil {
		return fmt.Errorf("ingest router: %w", err)
	}
	return ctx.Err()
}

// String names the service for the supervisor.
func (i *Ingestor) String() string {
	return "ingest-consumer"
}

// Handle processes one ingest message. A nil return acks it.
func (i *Ingestor) Handle(msg *message.Message) error {
	topic := i.bus.topics.Ingest
	cid := middleware.MessageCorrelationID(msg)
	if cid == "" {
		cid = logging.GenerateCorrelationID()
	}
	ctx := logging.ContextWithCorrelationID(msg.Context(), cid)

	var in IngestMessage
	if err := json.Unmarshal(msg.Payload, &in); err != nil {
		i.drop(msg, "malformed", err)
		return nil
	}
	if err := validation.ValidateStruct(&in); err != nil {
		i.drop(msg, "invalid", err)
		return nil
	}

	if i.seen.IsDuplicate(in.EventID) {
		metrics.RecordBusMessage(topic, "consume", "duplicate")
		i.logger.Debug().Str("event_id", in.EventID).Msg("Duplicate ingest message skipped")
		return nil
	}

	if i.limiter != nil {
		if err := i.limiter.Wait(ctx); err != nil {
			i.seen.Remove(in.EventID)
			return fmt.Errorf("ingest throttle: %w", err)
		}
	}

	ev, err := i.rec.RecordNamed(ctx, in.UserID, in.ProductID, in.InteractionType)
	switch {
	case err == nil:
		metrics.RecordBusMessage(topic, "consume", "ok")
		i.logger.Debug().Str("event_id", in.EventID).Str("correlation_id", cid).Uint64("seq", ev.Seq).Msg("Ingested interaction")
		return nil
	case errors.Is(err, apperr.ErrValidation):
		i.drop(msg, "invalid", err)
		return nil
	default:
		// Forget the key so the redelivery is not mistaken for a duplicate.
		i.seen.Remove(in.EventID)
		metrics.RecordBusMessage(topic, "consume", "error")
		return fmt.Errorf("record ingested interaction %s: %w", in.EventID, err)
	}
}

func (i *Ingestor) drop(msg *message.Message, reason string, err error) {
	metrics.RecordBusMessage(i.bus.topics.Ingest, "consume", reason)
	i.logger.Warn().Err(err).Str("message_uuid", msg.UUID).Str("reason", reason).Msg("Dropping ingest message")
}
