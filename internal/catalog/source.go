// Signalcart - Storefront Interaction Signals and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/signalcart

package catalog

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/signalcart/internal/metrics"
)

const breakerName = "bestsellers"

// TopSellerQuerier is the query the source protects.
type TopSellerQuerier interface {
	TopSellers(ctx context.Context, limit int) ([]int64, error)
}

// BestSellerSource serves best sellers as a recommendation fallback. Calls
// go through a circuit breaker; while it is open the source fails fast.
type BestSellerSource struct {
	store  TopSellerQuerier
	cb     *gobreaker.CircuitBreaker[[]int64]
	logger zerolog.Logger
}

// NewBestSellerSource wraps store with a circuit breaker.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewBestSellerSource(store TopSellerQuerier, cfg BreakerConfig, logger zerolog.Logger) *BestSellerSource {
	logger = logger.With().Str("component", "bestsellers").Logger()
	metrics.SetCircuitBreakerState(breakerName, 0)

	cb := gobreaker.NewCircuitBreaker[[]int64](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,

		// Opens when the failure rate reaches the threshold over at least
		// MinRequests calls.
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			if ratio >= cfg.FailureRatio {
				logger.Warn().Uint32("failures", counts.TotalFailures).Float64("failure_rate", ratio*100).Msg("Opening circuit")
				return true
			}
			return false
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info().Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state transition")
			metrics.SetCircuitBreakerState(name, stateValue(to))
		},

		// A caller giving up is not a database failure.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &BestSellerSource{store: store, cb: cb, logger: logger}
}

// Name returns "bestsellers".
func (s *BestSellerSource) Name() string {
	return breakerName
}

// Products returns up to limit best sellers.
func (s *BestSellerSource) Products(ctx context.Context, limit int) ([]int64, error) {
	return s.cb.Execute(func() ([]int64, error) {
		return s.store.TopSellers(ctx, limit)
	})
}

// State returns the breaker state.
func (s *BestSellerSource) State() gobreaker.State {
	return s.cb.State()
}

func stateValue(state gobreaker.State) int {
	switch state {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
