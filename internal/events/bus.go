// Signalcart - Storefront Interaction Signals and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/signalcart

// Package events connects Signalcart to a watermill message bus.
//
// The bus carries three outbound notifications (interaction recorded, model
// published, training failed) and one inbound stream of interactions
// submitted by upstream systems. Two backends exist: an in-process gochannel
// for single binaries and tests, and NATS JetStream, either external or
// embedded in the process.
//
// Publishing is best effort. A bus outage never fails a recording or a
// training run; failures are logged and counted.
package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"github.com/tomtom215/signalcart/internal/logging"
	"github.com/tomtom215/signalcart/internal/metrics"
	"github.com/tomtom215/signalcart/internal/models"
	"github.com/tomtom215/signalcart/internal/training"
)

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("event bus is closed")

// Bus publishes notifications and hands out subscriptions.
type Bus struct {
	cfg        Config
	topics     Topics
	publisher  message.Publisher
	subscriber message.Subscriber
	shared     bool
	embedded   *EmbeddedServer
	wmLogger   watermill.LoggerAdapter
	logger     zerolog.Logger
	closed     atomic.Bool
}

// Open connects the configured backend.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func Open(ctx context.Context, cfg Config, logger zerolog.Logger) (*Bus, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid event bus config: %w", err)
	}

	b := &Bus{
		cfg:      cfg,
		topics:   NewTopics(cfg.TopicPrefix),
		wmLogger: logging.NewWatermillAdapter(logger),
		logger:   logger.With().Str("component", "events").Logger(),
	}

	switch cfg.Backend {
	case BackendNATS:
		if err := b.openNATS(ctx); err != nil {
			b.shutdownEmbedded()
			return nil, err
		}
	default:
		ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: cfg.OutputBuffer}, b.wmLogger)
		b.publisher, b.subscriber = ch, ch
		b.shared = true
	}

	b.logger.Info().Str("backend", cfg.Backend).Str("prefix", cfg.TopicPrefix).Msg("Event bus connected")
	return b, nil
}

func (b *Bus) openNATS(ctx context.Context) error {
	cfg := b.cfg.NATS
	url := cfg.URL
	if cfg.Embedded {
		srv, err := NewEmbeddedServer(cfg)
		if err != nil {
			return err
		}
		b.embedded = srv
		url = srv.ClientURL()
	}

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				b.logger.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			b.logger.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		natsgo.ErrorHandler(func(_ *natsgo.Conn, sub *natsgo.Subscription, err error) {
			ev := b.logger.Error().Err(err)
			if sub != nil {
				ev = ev.Str("subject", sub.Subject)
			}
			ev.Msg("NATS error")
		}),
	}

	if err := b.ensureStream(ctx, url, natsOpts); err != nil {
		return err
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         url,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision: false,
			TrackMsgId:    true,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}, b.wmLogger)
	if err != nil {
		return fmt.Errorf("create NATS publisher: %w", err)
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              url,
		SubscribersCount: 1,
		AckWaitTimeout:   cfg.AckWait,
		CloseTimeout:     b.cfg.Ingest.CloseTimeout,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision: false,
			SubscribeOptions: []natsgo.SubOpt{
				natsgo.MaxDeliver(cfg.MaxDeliver),
				natsgo.AckWait(cfg.AckWait),
				natsgo.DeliverNew(),
				natsgo.BindStream(cfg.StreamName),
			},
			DurablePrefix: cfg.DurableName,
			DurableCalculator: func(prefix, topic string) string {
				return prefix + "_" + strings.ReplaceAll(topic, ".", "_")
			},
		},
	}, b.wmLogger)
	if err != nil {
		_ = pub.Close() //nolint:errcheck // already failing
		return fmt.Errorf("create NATS subscriber: %w", err)
	}

	b.publisher, b.subscriber = pub, sub
	return nil
}

// ensureStream creates the stream covering every topic, or updates it.
func (b *Bus) ensureStream(ctx context.Context, url string, opts []natsgo.Option) error {
	nc, err := natsgo.Connect(url, opts...)
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("create JetStream context: %w", err)
	}

	cfg := b.cfg.NATS
	streamCfg := jetstream.StreamConfig{
		Name:       cfg.StreamName,
		Subjects:   b.topics.Subjects(),
		Retention:  jetstream.LimitsPolicy,
		MaxAge:     cfg.MaxAge,
		Duplicates: cfg.DuplicateWindow,
		Storage:    jetstream.FileStorage,
		Discard:    jetstream.DiscardOld,
	}

	_, err = js.Stream(ctx, cfg.StreamName)
	switch {
	case err == nil:
		if _, err := js.UpdateStream(ctx, streamCfg); err != nil {
			return fmt.Errorf("update stream %s: %w", cfg.StreamName, err)
		}
	case errors.Is(err, jetstream.ErrStreamNotFound):
		if _, err := js.CreateStream(ctx, streamCfg); err != nil {
			return fmt.Errorf("create stream %s: %w", cfg.StreamName, err)
		}
	default:
		return fmt.Errorf("check stream %s: %w", cfg.StreamName, err)
	}
	return nil
}

// Topics returns the topic names in use.
func (b *Bus) Topics() Topics {
	return b.topics
}

// WatermillLogger returns the adapter used for watermill components.
func (b *Bus) WatermillLogger() watermill.LoggerAdapter {
	return b.wmLogger
}

// Publish marshals payload as JSON and publishes it with id as the message
// UUID, which JetStream uses for deduplication. A blank id gets a new UUID.
func (b *Bus) Publish(topic, id string, payload any) error {
	return b.PublishContext(context.Background(), topic, id, payload)
}

// PublishContext is Publish with the correlation ID from ctx, if any, set on
// the message metadata.
func (b *Bus) PublishContext(ctx context.Context, topic, id string, payload any) error {
	if b.closed.Load() {
		return ErrClosed
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", topic, err)
	}
	if id == "" {
		id = watermill.NewUUID()
	}
	msg := message.NewMessage(id, data)
	msg.Metadata.Set(natsgo.MsgIdHdr, id)
	if cid := logging.CorrelationIDFromContext(ctx); cid != "" {
		middleware.SetCorrelationID(cid, msg)
	}

	if err := b.publisher.Publish(topic, msg); err != nil {
		metrics.RecordBusMessage(topic, "publish", "error")
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	metrics.RecordBusMessage(topic, "publish", "ok")
	return nil
}

// Subscribe returns messages published to topic until ctx is done.
func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	if b.closed.Load() {
		return nil, ErrClosed
	}
	return b.subscriber.Subscribe(ctx, topic)
}

// Subscriber returns the underlying subscriber for routers.
func (b *Bus) Subscriber() message.Subscriber {
	return b.subscriber
}

// InteractionRecorded publishes a recorded interaction.
func (b *Bus) InteractionRecorded(ctx context.Context, ev models.InteractionEvent) {
	if err := b.PublishContext(ctx, b.topics.InteractionRecorded, ev.ID, newInteractionMessage(ev)); err != nil {
		b.logger.Warn().Err(err).Str("event_id", ev.ID).Str("correlation_id", logging.CorrelationIDFromContext(ctx)).Msg("Failed to publish interaction")
	}
}

// ModelPublished publishes a successful training run.
func (b *Bus) ModelPublished(_ context.Context, run training.RunInfo) {
	if err := b.Publish(b.topics.ModelPublished, run.ID, run); err != nil {
		b.logger.Warn().Err(err).Str("run_id", run.ID).Msg("Failed to publish model notification")
	}
}

// TrainingFailed publishes a failed training run.
func (b *Bus) TrainingFailed(_ context.Context, run training.RunInfo) {
	if err := b.Publish(b.topics.TrainingFailed, run.ID, run); err != nil {
		b.logger.Warn().Err(err).Str("run_id", run.ID).Msg("Failed to publish training failure")
	}
}

// Close closes the publisher and subscriber, then the embedded server.
func (b *Bus) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	var errs []error
	if err := b.publisher.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close publisher: %w", err))
	}
	if !b.shared {
		if err := b.subscriber.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close subscriber: %w", err))
		}
	}
	b.shutdownEmbedded()
	return errors.Join(errs...)
}

func (b *Bus) shutdownEmbedded() {
	if b.embedded != nil {
		b.embedded.Shutdown()
		b.embedded = nil
	}
}
