// Signalcart - Storefront Interaction Signals and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/signalcart

// Package models holds the interaction types and API envelope shared across
// packages.
package models

import (
	"fmt"
	"strings"
	"time"
)

// InteractionKind classifies a user-product engagement.
type InteractionKind int

const (
	// KindUnknown is the zero value and never appears in a recorded event.
	KindUnknown InteractionKind = iota
	// KindClick is a product view or click.
	KindClick
	// KindAddToCart is a cart addition.
	KindAddToCart
	// KindPurchase is a completed purchase.
	KindPurchase
)

// InteractionKinds lists every valid kind in weight order.
var InteractionKinds = []InteractionKind{KindClick, KindAddToCart, KindPurchase}

// String returns the wire name of the kind.
func (k InteractionKind) String() string {
	switch k {
	case KindClick:
		return "CLICK"
	case KindAddToCart:
		return "ADD_TO_CART"
	case KindPurchase:
		return "PURCHASE"
	default:
		return "UNKNOWN"
	}
}

// Weight returns the integer training signal for the kind.
// The mapping is fixed: CLICK=1, ADD_TO_CART=2, PURCHASE=3. Unknown kinds weigh 0.
func (k InteractionKind) Weight() int {
	switch k {
	case KindClick:
		return 1
	case KindAddToCart:
		return 2
	case KindPurchase:
		return 3
	default:
		return 0
	}
}

// Valid reports whether k is one of the recordable kinds.
func (k InteractionKind) Valid() bool {
	return k.Weight() > 0
}

// ParseInteractionKind parses a wire name, case-insensitively.
func ParseInteractionKind(s string) (InteractionKind, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CLICK":
		return KindClick, nil
	case "ADD_TO_CART":
		return KindAddToCart, nil
	case "PURCHASE":
		return KindPurchase, nil
	default:
		return KindUnknown, fmt.Errorf("unknown interaction type %q", s)
	}
}

// MarshalText encodes the kind by name.
func (k InteractionKind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("cannot marshal interaction kind %d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name.
func (k *InteractionKind) UnmarshalText(text []byte) error {
	parsed, err := ParseInteractionKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// InteractionEvent is a recorded engagement. Immutable once appended to the log.
type InteractionEvent struct {
	// ID is a UUID assigned by the recorder, used for bus deduplication.
	ID string `json:"id"`

	// Seq is the log position assigned on append. Zero before the append.
	Seq uint64 `json:"seq"`

	UserID    int64           `json:"user_id"`
	ProductID int64           `json:"product_id"`
	Kind      InteractionKind `json:"kind"`

	// Weight is always Kind.Weight(); stored so exports never recompute it.
	Weight int `json:"weight"`

	OccurredAt time.Time `json:"occurred_at"`
}

// Record projects the event into its training form.
func (e *InteractionEvent) Record() InteractionRecord {
	return InteractionRecord{
		Cursor:    e.Seq,
		UserID:    e.UserID,
		ProductID: e.ProductID,
		Weight:    e.Weight,
		Kind:      e.Kind,
	}
}

// InteractionRecord is the export projection consumed by training.
type InteractionRecord struct {
	// Cursor is the log position of the source event. Resuming an export
	// from Cursor yields the records after this one.
	Cursor uint64 `json:"-"`

	UserID    int64           `json:"user_id"`
	ProductID int64           `json:"product_id"`
	Weight    int             `json:"weight"`
	Kind      InteractionKind `json:"type"`
}
