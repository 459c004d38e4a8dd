// Signalcart - Storefront Interaction Signals and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/signalcart

// Package websocket pushes model and training notifications to connected
// dashboard clients.
//
// A Hub owns the client set and runs as a supervised service. Broadcasts
// never block: a client whose send buffer is full is disconnected rather
// than allowed to stall everyone else.
package websocket

import (
	"context"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tomtom215/signalcart/internal/metrics"
)

// Message types.
const (
	MessageTypePing           = "ping"
	MessageTypePong           = "pong"
	MessageTypeModelPublished = "model_published"
	MessageTypeTrainingFailed = "training_failed"
)

// Message is one websocket frame.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Hub maintains the active clients and fans broadcasts out to them.
type Hub struct {
	clients   map[*Client]struct{}
	broadcast chan Message
	register  chan *Client
	mu        sync.RWMutex
	logger    zerolog.Logger
}

// NewHub creates a Hub. Call Serve to start it.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients:   make(map[*Client]struct{}),
		broadcast: make(chan Message, 256),
		register:  make(chan *Client),
		logger:    logger.With().Str("component", "websocket-hub").Logger(),
	}
}

// Serve runs the hub until ctx is done, then closes every client.
//
// Registrations are drained before broadcasts so a client registered ahead
// of a broadcast always receives it.
func (h *Hub) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		case c := <-h.register:
			h.add(c)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		case c := <-h.register:
			h.add(c)
		case msg := <-h.broadcast:
			h.fanOut(msg)
		}
	}
}

// String names the service for the supervisor.
func (h *Hub) String() string {
	return "websocket-hub"
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	metrics.WebSocketClients.Set(float64(n))
	h.logger.Debug().Uint64("client_id", c.id).Int("total_clients", n).Msg("Websocket client connected")
}

// remove is called by the client's read pump; it may run after shutdown.
func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	metrics.WebSocketClients.Set(float64(n))
	h.logger.Debug().Uint64("client_id", c.id).Int("total_clients", n).Msg("Websocket client disconnected")
}

// reply sends msg to one client if it is still registered.
func (h *Hub) reply(c *Client, msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

// fanOut delivers msg in client ID order. Clients with a full buffer are
// dropped.
func (h *Hub) fanOut(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, c := range h.sortedLocked() {
		select {
		case c.send <- msg:
		default:
			close(c.send)
			delete(h.clients, c)
			h.logger.Warn().Uint64("client_id", c.id).Msg("Dropping slow websocket client")
		}
	}
	metrics.WebSocketClients.Set(float64(len(h.clients)))
}

func (h *Hub) shutdown(ctx context.Context) {
	h.mu.Lock()
	clients := h.sortedLocked()
	for _, c := range clients {
		close(c.send)
		delete(h.clients, c)
	}
	h.mu.Unlock()
	metrics.WebSocketClients.Set(0)

	reason := "context_canceled"
	if ctx.Err() == context.DeadlineExceeded {
		reason = "context_deadline"
	}
	h.logger.Info().Str("reason", reason).Int("clients_closed", len(clients)).Msg("Websocket hub stopped")
}

func (h *Hub) sortedLocked() []*Client {
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	slices.SortFunc(clients, func(a, b *Client) int {
		switch {
		case a.id < b.id:
			return -1
		case a.id > b.id:
			return 1
		default:
			return 0
		}
	})
	return clients
}

// Broadcast queues a message for every client. It reports false when the
// broadcast queue is full and the message was dropped.
func (h *Hub) Broadcast(msgType string, data any) bool {
	select {
	case h.broadcast <- Message{Type: msgType, Data: data}:
		return true
	default:
		h.logger.Warn().Str("message_type", msgType).Msg("Broadcast channel full, dropping message")
		return false
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
