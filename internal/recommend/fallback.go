// Signalcart - Storefront Interaction Signals and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/signalcart

package recommend

import (
	"context"
	"slices"

	"github.com/rs/zerolog"

	"github.com/tomtom215/signalcart/internal/metrics"
	"github.com/tomtom215/signalcart/internal/models"
)

// FallbackSource supplies products when the model cannot fill a request.
// Products returns up to limit IDs, best first.
type FallbackSource interface {
	Name() string
	Products(ctx context.Context, limit int) ([]int64, error)
}

// StaticSource serves a fixed, configured list.
type StaticSource struct {
	ids []int64
}

// NewStaticSource creates a source over ids, dropping non-positive and
// repeated entries.
func NewStaticSource(ids []int64) *StaticSource {
	seen := make(map[int64]struct{}, len(ids))
	clean := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup || id <= 0 {
			continue
		}
		seen[id] = struct{}{}
		clean = append(clean, id)
	}
	return &StaticSource{ids: clean}
}

// Name returns "static".
func (s *StaticSource) Name() string { return "static" }

// Products returns the first limit configured IDs.
func (s *StaticSource) Products(_ context.Context, limit int) ([]int64, error) {
	return slices.Clone(s.ids[:min(limit, len(s.ids))]), nil
}

// Tailer reads the newest events from the interaction log.
type Tailer interface {
	Tail(ctx context.Context, n int) ([]models.InteractionEvent, error)
}

// RecentSource serves products engaged with most recently.
type RecentSource struct {
	log    Tailer
	window int
}

// NewRecentSource creates a source scanning the newest window events.
func NewRecentSource(log Tailer, window int) *RecentSource {
	if window < 1 {
		window = 1000
	}
	return &RecentSource{log: log, window: window}
}

// Name returns "recent".
func (s *RecentSource) Name() string { return "recent" }

// Products returns distinct products from the log tail, newest first.
func (s *RecentSource) Products(ctx context.Context, limit int) ([]int64, error) {
	events, err := s.log.Tail(ctx, s.window)
	if err != nil {
		return nil, err
	}
	seen := make(map[int64]struct{}, min(limit, len(events)))
	out := make([]int64, 0, min(limit, len(events)))
	for _, ev := range events {
		if len(out) == limit {
			break
		}
		if _, dup := seen[ev.ProductID]; dup {
			continue
		}
		seen[ev.ProductID] = struct{}{}
		out = append(out, ev.ProductID)
	}
	return out, nil
}

// Chain consults fallback sources in order.
type Chain struct {
	sources []FallbackSource
	logger  zerolog.Logger
}

// NewChain creates a chain over sources, consulted in the given order.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewChain(logger zerolog.Logger, sources ...FallbackSource) *Chain {
	return &Chain{
		sources: sources,
		logger:  logger.With().Str("component", "fallback").Logger(),
	}
}

// Len returns the number of sources.
func (c *Chain) Len() int {
	return len(c.sources)
}

// fillResult is the outcome of one Fill.
type fillResult struct {
	ids     []int64
	sources []string

	// allFailed is true when there was at least one source and every
	// consulted source returned an error.
	allFailed bool
}

// Fill gathers up to need products not already in taken. A failing source
// is logged and skipped. taken is extended with the returned IDs.
func (c *Chain) Fill(ctx context.Context, need int, taken map[int64]struct{}) fillResult {
	var res fillResult
	if need <= 0 || len(c.sources) == 0 {
		return res
	}

	failures := 0
	consulted := 0
	for _, src := range c.sources {
		if len(res.ids) >= need {
			break
		}
		if ctx.Err() != nil {
			break
		}
		consulted++

		remaining := need - len(res.ids)
		// Ask for enough that skipping every taken ID still fills the request.
		ids, err := src.Products(ctx, remaining+len(taken))
		if err != nil {
			failures++
			metrics.RecordFallbackError(src.Name())
			c.logger.Warn().Err(err).Str("source", src.Name()).Msg("Fallback source failed")
			continue
		}

		added := 0
		for _, id := range ids {
			if added == remaining {
				break
			}
			if _, dup := taken[id]; dup || id <= 0 {
				continue
			}
			taken[id] = struct{}{}
			res.ids = append(res.ids, id)
			added++
		}
		if added > 0 {
			res.sources = append(res.sources, src.Name())
			metrics.RecordRecommendationItems(src.Name(), added)
		}
	}

	res.allFailed = consulted > 0 && failures == consulted && consulted == len(c.sources)
	return res
}
