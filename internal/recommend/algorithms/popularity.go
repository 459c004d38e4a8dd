// Signalcart - Storefront Interaction Signals and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/signalcart

package algorithms

import (
	"cmp"
	"context"
	"slices"

	"github.com/tomtom215/signalcart/internal/models"
)

// NamePopularity identifies the popularity-only algorithm.
const NamePopularity = "popularity"

// Popularity ranks products by total interaction weight. It keeps no
// per-user state, so it is the cheapest model to train and store.
type Popularity struct{}

// NewPopularity creates a popularity trainer.
func NewPopularity() *Popularity {
	return &Popularity{}
}

// Name returns the algorithm identifier.
func (p *Popularity) Name() string {
	return NamePopularity
}

// NewAccumulator starts a popularity build.
func (p *Popularity) NewAccumulator(base *Model) Accumulator {
	if base == nil || base.Algorithm != NamePopularity {
		return &popularityAccumulator{stats: newStats(NamePopularity)}
	}
	return &popularityAccumulator{stats: base.cloneStats()}
}

type popularityAccumulator struct {
	stats *Model
}

func (a *popularityAccumulator) Add(rec models.InteractionRecord) {
	if rec.Weight <= 0 {
		return
	}
	a.stats.ItemScores[rec.ProductID] += int64(rec.Weight)
	a.stats.Interactions++
}

func (a *popularityAccumulator) Build(ctx context.Context) (*Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m := a.stats
	m.Popular = rankPopular(m.ItemScores)
	m.Similar = map[int64][]Neighbor{}
	return m, nil
}

// rankPopular orders products by score, highest first. Equal scores are
// ordered by ascending product ID so the ranking is deterministic.
func rankPopular(scores map[int64]int64) []int64 {
	ids := make([]int64, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b int64) int {
		if c := cmp.Compare(scores[b], scores[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	return ids
}
