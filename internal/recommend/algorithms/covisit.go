// Signalcart - Storefront Interaction Signals and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/signalcart

package algorithms

import (
	"cmp"
	"context"
	"math"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/signalcart/internal/models"
)

// NameCoVisitation identifies the co-visitation algorithm.
const NameCoVisitation = "covisit"

// CoVisitation recommends products that the same users engage with.
//
// For every user u the accumulated weight w_u(p) of each product is tracked.
// The co-occurrence of two products is
//
//	co[p][q] = sum over u of min(w_u(p), w_u(q))
//
// and the similarity used for ranking neighbors is
//
//	sim(p, q) = co[p][q] / sqrt(score(p) * score(q))
//
// where score(p) is the total weight recorded for p. Because min(w_p, w_q)
// never exceeds either weight, sim stays within [0, 1].
type CoVisitation struct {
	maxNeighbors    int
	minCoOccurrence int64
	workers         int
}

// NewCoVisitation creates a co-visitation trainer. Zero values take the
// defaults.
func NewCoVisitation(cfg Config) *CoVisitation {
	def := DefaultConfig()
	if cfg.MaxNeighbors < 1 {
		cfg.MaxNeighbors = def.MaxNeighbors
	}
	if cfg.MinCoOccurrence < 1 {
		cfg.MinCoOccurrence = def.MinCoOccurrence
	}
	if cfg.Workers < 1 {
		cfg.Workers = def.Workers
	}
	return &CoVisitation{
		maxNeighbors:    cfg.MaxNeighbors,
		minCoOccurrence: cfg.MinCoOccurrence,
		workers:         cfg.Workers,
	}
}

// Name returns the algorithm identifier.
func (c *CoVisitation) Name() string {
	return NameCoVisitation
}

// NewAccumulator starts a co-visitation build.
func (c *CoVisitation) NewAccumulator(base *Model) Accumulator {
	stats := newStats(NameCoVisitation)
	if base != nil && base.Algorithm == NameCoVisitation {
		stats = base.cloneStats()
	}
	return &covisitAccumulator{cfg: c, stats: stats}
}

type covisitAccumulator struct {
	cfg   *CoVisitation
	stats *Model
}

// Add folds one record. Raising w_u(p) from old to new changes co[p][q] by
// min(new, w_u(q)) - min(old, w_u(q)) for each other product q of the user.
func (a *covisitAccumulator) Add(rec models.InteractionRecord) {
	if rec.Weight <= 0 {
		return
	}
	s := a.stats
	w := int64(rec.Weight)
	p := rec.ProductID

	items := s.UserItems[rec.UserID]
	if items == nil {
		items = make(map[int64]int64)
		s.UserItems[rec.UserID] = items
	}
	prev := items[p]
	next := prev + w

	for q, wq := range items {
		if q == p {
			continue
		}
		delta := min(next, wq) - min(prev, wq)
		if delta == 0 {
			continue
		}
		a.bump(p, q, delta)
		a.bump(q, p, delta)
	}

	items[p] = next
	s.ItemScores[p] += w
	s.Interactions++
}

func (a *covisitAccumulator) bump(p, q, delta int64) {
	row := a.stats.CoOccur[p]
	if row == nil {
		row = make(map[int64]int64)
		a.stats.CoOccur[p] = row
	}
	row[q] += delta
}

// Build ranks products and finalizes neighbor lists in parallel.
func (a *covisitAccumulator) Build(ctx context.Context) (*Model, error) {
	m := a.stats
	m.Popular = rankPopular(m.ItemScores)

	products := make([]int64, 0, len(m.CoOccur))
	for p := range m.CoOccur {
		products = append(products, p)
	}
	slices.Sort(products)
	lists := make([][]Neighbor, len(products))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.workers)
	for i, p := range products {
		if contextCancelled(gctx) {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			lists[i] = a.neighbors(p)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.Similar = make(map[int64][]Neighbor, len(products))
	for i, p := range products {
		if len(lists[i]) > 0 {
			m.Similar[p] = lists[i]
		}
	}
	return m, nil
}

// neighbors reads only immutable state, so several run concurrently.
func (a *covisitAccumulator) neighbors(p int64) []Neighbor {
	s := a.stats
	sp := float64(s.ItemScores[p])
	row := s.CoOccur[p]

	out := make([]Neighbor, 0, len(row))
	for q, co := range row {
		if q == p || co < a.cfg.minCoOccurrence {
			continue
		}
		sq := float64(s.ItemScores[q])
		if sp <= 0 || sq <= 0 {
			continue
		}
		out = append(out, Neighbor{ProductID: q, Score: float64(co) / math.Sqrt(sp*sq)})
	}
	slices.SortFunc(out, func(x, y Neighbor) int {
		if c := cmp.Compare(y.Score, x.Score); c != 0 {
			return c
		}
		return cmp.Compare(x.ProductID, y.ProductID)
	})
	if len(out) > a.cfg.maxNeighbors {
		out = slices.Clip(out[:a.cfg.maxNeighbors])
	}
	return out
}
