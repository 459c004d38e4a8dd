// Signalcart - Storefront Interaction Signals and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/signalcart

package recommend

import (
	"fmt"
	"strings"
)

// Strategy selects how recommendations are produced.
type Strategy int

const (
	StrategyUnknown Strategy = iota
	// StrategyHomepage ranks products by overall popularity.
	StrategyHomepage
	// StrategySimilar ranks products by similarity to a seed product.
	StrategySimilar
)

// String returns the wire name of the strategy.
func (s Strategy) String() string {
	switch s {
	case StrategyHomepage:
		return "HOMEPAGE"
	case StrategySimilar:
		return "SIMILAR"
	default:
		return "UNKNOWN"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Strategy) MarshalText() ([]byte, error) {
	if s != StrategyHomepage && s != StrategySimilar {
		return nil, fmt.Errorf("invalid strategy %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Strategy) UnmarshalText(text []byte) error {
	parsed, err := ParseStrategy(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseStrategy parses a strategy name, ignoring case.
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "HOMEPAGE":
		return StrategyHomepage, nil
	case "SIMILAR":
		return StrategySimilar, nil
	default:
		return StrategyUnknown, fmt.Errorf("unknown strategy %q", name)
	}
}

// Request asks for up to Count product IDs.
type Request struct {
	Strategy Strategy

	// SeedProductID is required for SIMILAR and ignored for HOMEPAGE.
	SeedProductID int64

	Count int

	// Exclude lists products the caller does not want back, such as items
	// already in the cart.
	Exclude []int64
}

// Result is an ordered list of unique product IDs. It may be shorter than
// the requested count, including empty.
type Result struct {
	ProductIDs []int64  `json:"product_ids"`
	Strategy   Strategy `json:"strategy"`
	Count      int      `json:"count"`

	// ModelVersion is the artifact that served the model part, if any.
	ModelVersion string `json:"model_version,omitempty"`

	// FromModel is how many leading IDs came from the model; the rest were
	// padded from fallback sources.
	FromModel int `json:"from_model"`

	// Sources names each contributing source in order.
	Sources []string `json:"sources,omitempty"`

	Cached bool `json:"cached"`
}
