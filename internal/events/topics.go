// Signalcart - Storefront Interaction Signals and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/signalcart

package events

import (
	"time"

	"github.com/tomtom215/signalcart/internal/models"
)

// Topics holds the bus topic names derived from a prefix.
type Topics struct {
	Prefix              string
	InteractionRecorded string
	ModelPublished      string
	TrainingFailed      string
	Ingest              string
}

// NewTopics derives topic names from prefix.
func NewTopics(prefix string) Topics {
	return Topics{
		Prefix:              prefix,
		InteractionRecorded: prefix + ".interaction.recorded",
		ModelPublished:      prefix + ".model.published",
		TrainingFailed:      prefix + ".training.failed",
		Ingest:              prefix + ".interaction.ingest",
	}
}

// Subjects returns the JetStream subject filter covering every topic.
func (t Topics) Subjects() []string {
	return []string{t.Prefix + ".>"}
}

// InteractionMessage is published for every recorded interaction.
type InteractionMessage struct {
	EventID         string    `json:"event_id"`
	Seq             uint64    `json:"seq"`
	UserID          int64     `json:"user_id"`
	ProductID       int64     `json:"product_id"`
	InteractionType string    `json:"interaction_type"`
	Weight          int       `json:"weight"`
	OccurredAt      time.Time `json:"occurred_at"`
}

func newInteractionMessage(ev models.InteractionEvent) InteractionMessage {
	return InteractionMessage{
		EventID:         ev.ID,
		Seq:             ev.Seq,
		UserID:          ev.UserID,
		ProductID:       ev.ProductID,
		InteractionType: ev.Kind.String(),
		Weight:          ev.Weight,
		OccurredAt:      ev.OccurredAt,
	}
}

// IngestMessage is an interaction submitted over the bus by an upstream
// system. EventID is the producer's idempotency key.
type IngestMessage struct {
	EventID         string `json:"event_id" validate:"required,max=128"`
	UserID          int64  `json:"user_id" validate:"required,gt=0"`
	ProductID       int64  `json:"product_id" validate:"required,gt=0"`
	InteractionType string `json:"interaction_type" validate:"required,interaction_type"`
}
