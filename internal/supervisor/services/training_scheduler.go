// Signalcart - Storefront Interaction Signals and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/signalcart

package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/signalcart/internal/apperr"
	"github.com/tomtom215/signalcart/internal/registry"
	"github.com/tomtom215/signalcart/internal/training"
)

// Trainer runs one synchronous training run.
type Trainer interface {
	Train(ctx context.Context, req training.Request) (*registry.Artifact, error)
}

// SchedulerConfig controls periodic retraining.
type SchedulerConfig struct {
	// Interval between scheduled runs. Zero disables the schedule; the
	// service then only honors RunOnStart.
	Interval time.Duration

	// RunOnStart trains once as soon as the service starts.
	RunOnStart bool
}

// TrainingScheduler retrains incrementally on a fixed interval.
type TrainingScheduler struct {
	trainer Trainer
	cfg     SchedulerConfig
	logger  zerolog.Logger
}

// NewTrainingScheduler creates the scheduler.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewTrainingScheduler(trainer Trainer, cfg SchedulerConfig, logger zerolog.Logger) *TrainingScheduler {
	return &TrainingScheduler{
		trainer: trainer,
		cfg:     cfg,
		logger:  logger.With().Str("service", "training-scheduler").Logger(),
	}
}

// Serve implements suture.Service.
func (s *TrainingScheduler) Serve(ctx context.Context) error {
	s.logger.Info().Dur("interval", s.cfg.Interval).Bool("run_on_start", s.cfg.RunOnStart).Msg("Training scheduler starting")

	if s.cfg.RunOnStart {
		s.runOnce(ctx)
	}
	if s.cfg.Interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

// runOnce trains and logs the outcome. A manual run already in flight or a
// log with nothing new to learn is a skip, not a failure.
func (s *TrainingScheduler) runOnce(ctx context.Context) {
	start := time.Now()
	art, err := s.trainer.Train(ctx, training.Request{ForceRetrainAll: false})
	switch {
	case err == nil:
		s.logger.Info().Str("version_tag", art.VersionTag).Uint64("cursor", art.Cursor).Dur("duration", time.Since(start)).Msg("Scheduled training published")
	case errors.Is(err, apperr.ErrTrainingInProgress):
		s.logger.Debug().Msg("Scheduled training skipped, a run is in progress")
	case errors.Is(err, apperr.ErrValidation):
		s.logger.Debug().Err(err).Msg("Scheduled training skipped")
	case ctx.Err() != nil:
		// Shutting down.
	default:
		s.logger.Warn().Err(err).Msg("Scheduled training failed")
	}
}

// String names the service for the supervisor.
func (s *TrainingScheduler) String() string {
	return "training-scheduler"
}
