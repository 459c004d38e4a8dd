// Signalcart - Storefront Interaction Signals and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/signalcart

// Package recommend serves recommendations from the active model artifact.
//
// Requests read the registry's active artifact once and work against that
// snapshot, so a publish mid-request never mixes two models. When the model
// has nothing or too little to offer, results are padded from an ordered
// chain of fallback sources. A short result is not an error; only a request
// with no active model whose every fallback source failed is.
package recommend

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/signalcart/internal/apperr"
	"github.com/tomtom215/signalcart/internal/cache"
	"github.com/tomtom215/signalcart/internal/metrics"
	"github.com/tomtom215/signalcart/internal/registry"
)

// ModelSource provides the active artifact.
type ModelSource interface {
	Active() *registry.Artifact
}

// Server answers recommendation requests. It is safe for concurrent use.
type Server struct {
	cfg      Config
	models   ModelSource
	fallback *Chain
	cache    *cache.LRU[string, Result]
	logger   zerolog.Logger
}

// NewServer creates a Server. A nil chain serves from the model only.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewServer(cfg Config, models ModelSource, fallback *Chain, logger zerolog.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid recommend config: %w", err)
	}
	if fallback == nil {
		fallback = NewChain(logger)
	}
	s := &Server{
		cfg:      cfg,
		models:   models,
		fallback: fallback,
		logger:   logger.With().Str("component", "recommend").Logger(),
	}
	if cfg.Cache.Enabled {
		s.cache = cache.New[string, Result](cfg.Cache.MaxEntries, cfg.Cache.TTL)
	}
	return s, nil
}

// MaxCount returns the largest accepted count.
func (s *Server) MaxCount() int {
	return s.cfg.MaxCount
}

// Recommend returns up to req.Count unique product IDs.
func (s *Server) Recommend(ctx context.Context, req Request) (Result, error) {
	start := time.Now()
	res, err := s.recommend(ctx, req)

	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
	case res.Cached:
		outcome = "cached"
	case res.Count < req.Count:
		outcome = "short"
	}
	metrics.RecordRecommendation(req.Strategy.String(), outcome, time.Since(start))
	return res, err
}

func (s *Server) recommend(ctx context.Context, req Request) (Result, error) {
	if err := s.validate(req); err != nil {
		return Result{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	art := s.models.Active()
	var key string
	if s.cache != nil && art != nil {
		key = cacheKey(art.VersionTag, req)
		cached, ok := s.cache.Get(key)
		metrics.RecordCacheLookup(ok)
		if ok {
			cached.Cached = true
			cached.ProductIDs = slices.Clone(cached.ProductIDs)
			return cached, nil
		}
	}

	taken := make(map[int64]struct{}, req.Count+len(req.Exclude)+1)
	for _, id := range req.Exclude {
		taken[id] = struct{}{}
	}
	if req.Strategy == StrategySimilar {
		taken[req.SeedProductID] = struct{}{}
	}
	skip := func(id int64) bool {
		_, ok := taken[id]
		return ok
	}

	res := Result{Strategy: req.Strategy}
	if art != nil {
		res.ModelVersion = art.VersionTag
		switch req.Strategy {
		case StrategyHomepage:
			res.ProductIDs = art.Model.TopK(req.Count, skip)
		case StrategySimilar:
			res.ProductIDs = art.Model.SimilarTo(req.SeedProductID, req.Count, skip)
		}
		res.FromModel = len(res.ProductIDs)
		if res.FromModel > 0 {
			res.Sources = append(res.Sources, "model")
			metrics.RecordRecommendationItems("model", res.FromModel)
		}
		for _, id := range res.ProductIDs {
			taken[id] = struct{}{}
		}
	}

	if need := req.Count - len(res.ProductIDs); need > 0 {
		fill := s.fallback.Fill(ctx, need, taken)
		if art == nil && fill.allFailed {
			s.logger.Warn().Str("strategy", req.Strategy.String()).Msg("No active model and every fallback source failed")
			return Result{}, fmt.Errorf("%w: no active model and all %d fallback sources failed", apperr.ErrModelUnavailable, s.fallback.Len())
		}
		res.ProductIDs = append(res.ProductIDs, fill.ids...)
		res.Sources = append(res.Sources, fill.sources...)
	}
	if res.ProductIDs == nil {
		res.ProductIDs = []int64{}
	}
	res.Count = len(res.ProductIDs)

	if key != "" {
		stored := res
		stored.ProductIDs = slices.Clone(res.ProductIDs)
		s.cache.Add(key, stored)
	}

	s.logger.Debug().
		Str("strategy", req.Strategy.String()).
		Int64("seed", req.SeedProductID).
		Int("requested", req.Count).
		Int("returned", res.Count).
		Int("from_model", res.FromModel).
		Str("model_version", res.ModelVersion).
		Msg("Recommendations served")
	return res, nil
}

func (s *Server) validate(req Request) error {
	if req.Count <= 0 || req.Count > s.cfg.MaxCount {
		return apperr.Validationf("count must be between 1 and %d, got %d", s.cfg.MaxCount, req.Count)
	}
	switch req.Strategy {
	case StrategyHomepage:
	case StrategySimilar:
		if req.SeedProductID <= 0 {
			return apperr.Validationf("seed product id must be positive for SIMILAR, got %d", req.SeedProductID)
		}
	default:
		return apperr.Validationf("unknown strategy %d", int(req.Strategy))
	}
	return nil
}

// cacheKey identifies a request against one model version. HOMEPAGE ignores
// the seed, so it is left out of the key.
func cacheKey(version string, req Request) string {
	var b strings.Builder
	b.WriteString(version)
	b.WriteByte('|')
	b.WriteString(req.Strategy.String())
	b.WriteByte('|')
	if req.Strategy == StrategySimilar {
		b.WriteString(strconv.FormatInt(req.SeedProductID, 10))
	}
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(req.Count))
	if len(req.Exclude) > 0 {
		ex := slices.Clone(req.Exclude)
		slices.Sort(ex)
		ex = slices.Compact(ex)
		for _, id := range ex {
			b.WriteByte(',')
			b.WriteString(strconv.FormatInt(id, 10))
		}
	}
	return b.String()
}
