// Signalcart - Storefront Interaction Signals and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/signalcart

package websocket

import (
	"context"
	"fmt"
	"slices"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"
)

// Subscriber opens a bus subscription.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error)
}

// Bridge forwards bus notifications to the hub. routes maps a bus topic to
// the websocket message type it is broadcast as.
type Bridge struct {
	hub    *Hub
	sub    Subscriber
	routes map[string]string
}

// NewBridge creates a bridge for routes.
func NewBridge(hub *Hub, sub Subscriber, routes map[string]string) *Bridge {
	return &Bridge{hub: hub, sub: sub, routes: routes}
}

// Serve subscribes to every routed topic and forwards until ctx is done.
func (b *Bridge) Serve(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	topics := make([]string, 0, len(b.routes))
	for topic := range b.routes {
		topics = append(topics, topic)
	}
	slices.Sort(topics)

	for _, topic := range topics {
		msgs, err := b.sub.Subscribe(ctx, topic)
		if err != nil {
			return fmt.Errorf("subscribe to %s: %w", topic, err)
		}
		msgType := b.routes[topic]
		g.Go(func() error {
			b.forward(ctx, msgType, msgs)
			return nil
		})
	}

	b.hub.logger.Info().Strs("topics", topics).Msg("Websocket bridge started")
	<-ctx.Done()
	_ = g.Wait() //nolint:errcheck // forwarders never fail
	return ctx.Err()
}

// String names the service for the supervisor.
func (b *Bridge) String() string {
	return "websocket-bridge"
}

func (b *Bridge) forward(ctx context.Context, msgType string, msgs <-chan *message.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			// Notifications are fire-and-forget; a bad payload is not redelivered.
			msg.Ack()
			if !json.Valid(msg.Payload) {
				b.hub.logger.Warn().Str("message_uuid", msg.UUID).Msg("Skipping non-JSON notification")
				continue
			}
			b.hub.Broadcast(msgType, json.RawMessage(msg.Payload))
		}
	}
}
