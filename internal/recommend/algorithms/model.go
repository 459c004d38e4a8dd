// Signalcart - Storefront Interaction Signals and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/signalcart

package algorithms

import (
	"context"
	"fmt"
	"maps"

	"github.com/tomtom215/signalcart/internal/models"
)

// Neighbor is one entry of a product's similarity list.
type Neighbor struct {
	ProductID int64
	Score     float64
}

// Model is the trained content of an artifact. The exported fields are the
// sufficient statistics plus the lists derived from them; all of it is
// gob-encoded by the registry.
type Model struct {
	Algorithm    string
	Interactions int64

	// ItemScores is the total weight recorded per product.
	ItemScores map[int64]int64

	// UserItems is the accumulated weight per user and product.
	UserItems map[int64]map[int64]int64

	// CoOccur[p][q] is the sum over users of min(w_u(p), w_u(q)).
	CoOccur map[int64]map[int64]int64

	// Popular holds every scored product, best first.
	Popular []int64

	// Similar holds the capped neighbor list per product, best first.
	Similar map[int64][]Neighbor
}

// Products returns the number of distinct products in the model.
func (m *Model) Products() int {
	if m == nil {
		return 0
	}
	return len(m.ItemScores)
}

// TopK returns up to k popular products, skipping any for which skip
// returns true.
func (m *Model) TopK(k int, skip func(int64) bool) []int64 {
	if m == nil || k <= 0 {
		return nil
	}
	return take(m.Popular, k, skip)
}

// SimilarTo returns up to k neighbors of seed. The seed itself is never
// returned.
func (m *Model) SimilarTo(seed int64, k int, skip func(int64) bool) []int64 {
	if m == nil || k <= 0 {
		return nil
	}
	neighbors := m.Similar[seed]
	out := make([]int64, 0, min(k, len(neighbors)))
	for _, n := range neighbors {
		if len(out) == k {
			break
		}
		if n.ProductID == seed || (skip != nil && skip(n.ProductID)) {
			continue
		}
		out = append(out, n.ProductID)
	}
	return out
}

// Validate checks the structural consistency of a decoded model.
func (m *Model) Validate() error {
	if m == nil {
		return fmt.Errorf("model is nil")
	}
	if m.Algorithm == "" {
		return fmt.Errorf("model has no algorithm")
	}
	if len(m.Popular) != len(m.ItemScores) {
		return fmt.Errorf("popular list has %d products, scores have %d", len(m.Popular), len(m.ItemScores))
	}
	for p := range m.Similar {
		if _, ok := m.ItemScores[p]; !ok {
			return fmt.Errorf("neighbor list for unscored product %d", p)
		}
	}
	return nil
}

// cloneStats deep-copies the sufficient statistics of m. Derived lists are
// not copied since Build recomputes them.
func (m *Model) cloneStats() *Model {
	out := &Model{
		Algorithm:    m.Algorithm,
		Interactions: m.Interactions,
		ItemScores:   maps.Clone(m.ItemScores),
		UserItems:    make(map[int64]map[int64]int64, len(m.UserItems)),
		CoOccur:      make(map[int64]map[int64]int64, len(m.CoOccur)),
	}
	if out.ItemScores == nil {
		out.ItemScores = make(map[int64]int64)
	}
	for u, items := range m.UserItems {
		out.UserItems[u] = maps.Clone(items)
	}
	for p, row := range m.CoOccur {
		out.CoOccur[p] = maps.Clone(row)
	}
	return out
}

func newStats(algorithm string) *Model {
	return &Model{
		Algorithm:  algorithm,
		ItemScores: make(map[int64]int64),
		UserItems:  make(map[int64]map[int64]int64),
		CoOccur:    make(map[int64]map[int64]int64),
	}
}

func take(ids []int64, k int, skip func(int64) bool) []int64 {
	out := make([]int64, 0, min(k, len(ids)))
	for _, id := range ids {
		if len(out) == k {
			break
		}
		if skip != nil && skip(id) {
			continue
		}
		out = append(out, id)
	}
	return out
}

// Trainer creates accumulators for one algorithm.
type Trainer interface {
	// Name is the algorithm identifier stored in built models.
	Name() string

	// NewAccumulator starts a build. A non-nil base built by the same
	// algorithm seeds the statistics; base itself is never modified.
	NewAccumulator(base *Model) Accumulator
}

// Accumulator folds records into sufficient statistics.
type Accumulator interface {
	Add(rec models.InteractionRecord)
	Build(ctx context.Context) (*Model, error)
}

// Config selects and tunes the training algorithm.
type Config struct {
	Algorithm string

	// MaxNeighbors caps each product's similarity list.
	MaxNeighbors int

	// MinCoOccurrence drops weaker pairs from the neighbor lists. The
	// statistics keep every pair so incremental runs stay exact.
	MinCoOccurrence int64

	// Workers bounds the parallel neighbor finalization.
	Workers int
}

// DefaultConfig returns the default algorithm configuration.
func DefaultConfig() Config {
	return Config{
		Algorithm:       NameCoVisitation,
		MaxNeighbors:    50,
		MinCoOccurrence: 1,
		Workers:         4,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch c.Algorithm {
	case NameCoVisitation, NamePopularity:
	default:
		return fmt.Errorf("unknown algorithm %q", c.Algorithm)
	}
	if c.MaxNeighbors < 1 {
		return fmt.Errorf("max_neighbors must be at least 1, got %d", c.MaxNeighbors)
	}
	if c.MinCoOccurrence < 1 {
		return fmt.Errorf("min_cooccurrence must be at least 1, got %d", c.MinCoOccurrence)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	return nil
}

// New returns the trainer selected by cfg.
func New(cfg Config) (Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Algorithm {
	case NamePopularity:
		return NewPopularity(), nil
	default:
		return NewCoVisitation(cfg), nil
	}
}

func contextCancelled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}
