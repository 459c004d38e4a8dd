// Signalcart - Storefront Interaction Signals and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/signalcart

// Package training runs model training against the interaction log and
// publishes the results to the model registry.
//
// At most one run is in flight. A run claims the orchestrator with an atomic
// compare-and-swap from IDLE to RUNNING; a second caller fails immediately
// with a conflict instead of queueing. Each run streams export records into
// an accumulator through an errgroup pipeline, builds the model, and
// publishes it. Any failure leaves the previously active artifact in place.
package training

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/signalcart/internal/apperr"
	"github.com/tomtom215/signalcart/internal/metrics"
	"github.com/tomtom215/signalcart/internal/models"
	"github.com/tomtom215/signalcart/internal/recommend/algorithms"
	"github.com/tomtom215/signalcart/internal/registry"
)

// Config holds orchestrator configuration.
type Config struct {
	// Timeout bounds a single run. Zero disables the bound.
	Timeout time.Duration

	// MinInteractions is the smallest model, in folded records, worth
	// publishing.
	MinInteractions int64

	// PipelineBuffer is the channel size between export and accumulation.
	PipelineBuffer int
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:         30 * time.Minute,
		MinInteractions: 1,
		PipelineBuffer:  1024,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Timeout < 0 {
		return errors.New("training timeout must not be negative")
	}
	if c.MinInteractions < 0 {
		return errors.New("training min_interactions must not be negative")
	}
	if c.PipelineBuffer < 1 {
		return errors.New("training pipeline buffer must be at least 1")
	}
	return nil
}

// cancelCheckEvery is how many records the accumulator folds between
// context checks.
const cancelCheckEvery = 4096

// Orchestrator coordinates training runs. It is safe for concurrent use.
type Orchestrator struct {
	cfg      Config
	exporter Exporter
	registry Registry
	trainer  algorithms.Trainer
	notifier Notifier
	logger   zerolog.Logger
	now      func() time.Time

	state  atomic.Int32
	closed atomic.Bool
	wg     sync.WaitGroup

	// mu guards the run bookkeeping below, never the run itself.
	mu      sync.Mutex
	current *run
	last    *RunInfo
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithNotifier registers a notifier for finished runs.
func WithNotifier(n Notifier) Option {
	return func(o *Orchestrator) { o.notifier = n }
}

// WithClock overrides the time source used for timestamps and auto tags.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an Orchestrator.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func New(cfg Config, exporter Exporter, reg Registry, trainer algorithms.Trainer, logger zerolog.Logger, opts ...Option) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid training config: %w", err)
	}
	o := &Orchestrator{
		cfg:      cfg,
		exporter: exporter,
		registry: reg,
		trainer:  trainer,
		logger:   logger.With().Str("component", "training").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// run is the in-flight state of one training run.
type run struct {
	info    RunInfo
	base    *algorithms.Model
	ctx     context.Context
	cancel  context.CancelFunc
	records atomic.Int64
}

func (r *run) snapshot() RunInfo {
	info := r.info
	info.Records = r.records.Load()
	return info
}

// Train runs one training synchronously and returns the published artifact.
// The run stops early when ctx is cancelled.
func (o *Orchestrator) Train(ctx context.Context, req Request) (*registry.Artifact, error) {
	r, err := o.begin(ctx, req)
	if err != nil {
		return nil, err
	}
	return o.execute(r)
}

// Start claims the orchestrator synchronously and runs the training in the
// background. Conflicts and validation errors are returned before any work
// starts. The run does not inherit ctx's cancellation; use Cancel.
func (o *Orchestrator) Start(ctx context.Context, req Request) (RunInfo, error) {
	r, err := o.begin(context.WithoutCancel(ctx), req)
	if err != nil {
		return RunInfo{}, err
	}
	go func() {
		_, _ = o.execute(r) //nolint:errcheck // outcome is recorded in status and notifications
	}()
	return r.snapshot(), nil
}

// Cancel stops the in-flight run, if any, and reports whether there was one.
// The run finishes as FAILED.
func (o *Orchestrator) Cancel() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == nil {
		return false
	}
	o.current.cancel()
	return true
}

// Status returns the current state and the most recent finished run.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()

	st := Status{
		State:      State(o.state.Load()),
		LastCursor: o.registry.LastCursor(),
	}
	if a := o.registry.Active(); a != nil {
		st.ActiveTag = a.VersionTag
	}
	if o.current != nil {
		cur := o.current.snapshot()
		st.Current = &cur
	}
	if o.last != nil {
		last := *o.last
		st.Last = &last
	}
	return st
}

// Close rejects new runs, cancels the in-flight one, and waits for it to
// finish.
func (o *Orchestrator) Close() error {
	o.closed.Store(true)
	o.Cancel()
	o.wg.Wait()
	return nil
}

// begin validates req and claims the orchestrator.
func (o *Orchestrator) begin(parent context.Context, req Request) (*run, error) {
	tag, err := registry.NormalizeTag(req.VersionTag)
	if err != nil {
		return nil, err
	}

	// The claim and the current run are published together so Cancel and
	// Status never see RUNNING without a run.
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed.Load() {
		return nil, ErrClosed
	}
	if !o.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		metrics.RecordTrainingRejected()
		return nil, apperr.ErrTrainingInProgress
	}

	if tag == "" {
		tag = o.autoTag()
	} else if o.registry.Has(tag) {
		o.state.Store(int32(StateIdle))
		return nil, apperr.Conflictf("model version %q already exists", tag)
	}

	r := &run{
		info: RunInfo{
			ID:         uuid.New().String(),
			State:      StateRunning,
			Mode:       ModeFull,
			VersionTag: tag,
			StartedAt:  o.now(),
		},
	}
	if active := o.registry.Active(); !req.ForceRetrainAll && active != nil && active.Model != nil && active.Model.Algorithm == o.trainer.Name() {
		r.info.Mode = ModeIncremental
		r.info.FromCursor = active.Cursor
		r.base = active.Model
	}

	ctx := parent
	var cancelTimeout context.CancelFunc = func() {}
	if o.cfg.Timeout > 0 {
		ctx, cancelTimeout = context.WithTimeout(ctx, o.cfg.Timeout)
	}
	ctx, cancel := context.WithCancel(ctx)
	r.ctx = ctx
	r.cancel = func() {
		cancel()
		cancelTimeout()
	}

	o.current = r
	o.wg.Add(1)

	o.logger.Info().
		Str("run_id", r.info.ID).
		Str("mode", r.info.Mode).
		Str("version_tag", tag).
		Uint64("from_cursor", r.info.FromCursor).
		Msg("Training started")
	return r, nil
}

// autoTag returns v-auto-<unix millis>, suffixed with -n on collision.
func (o *Orchestrator) autoTag() string {
	base := "v-auto-" + strconv.FormatInt(o.now().UnixMilli(), 10)
	tag := base
	for n := 2; o.registry.Has(tag); n++ {
		tag = base + "-" + strconv.Itoa(n)
	}
	return tag
}

// execute runs the pipeline and publishes. It always releases the guard.
func (o *Orchestrator) execute(r *run) (*registry.Artifact, error) {
	defer o.wg.Done()
	defer r.cancel()

	art, err := o.build(r)
	if err == nil {
		err = o.registry.Publish(r.ctx, art)
	}
	if err == nil {
		// A cancel that lands after Publish returns is too late to matter.
		o.finish(r, art, nil)
		return art, nil
	}
	if ctxErr := r.ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
		err = fmt.Errorf("%w: %w", ctxErr, err)
	}
	o.finish(r, nil, err)
	return nil, fmt.Errorf("training run %s: %w", r.info.ID, err)
}

func (o *Orchestrator) build(r *run) (*registry.Artifact, error) {
	acc := o.trainer.NewAccumulator(r.base)
	cursor := r.info.FromCursor

	g, gctx := errgroup.WithContext(r.ctx)
	records := make(chan models.InteractionRecord, o.cfg.PipelineBuffer)

	g.Go(func() error {
		defer close(records)
		for rec, err := range o.exporter.ExportSince(gctx, r.info.FromCursor) {
			if err != nil {
				return fmt.Errorf("export: %w", err)
			}
			select {
			case records <- rec:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	g.Go(func() error {
		var n int64
		for rec := range records {
			acc.Add(rec)
			cursor = rec.Cursor
			n++
			if n%cancelCheckEvery == 0 {
				r.records.Store(n)
				if err := gctx.Err(); err != nil {
					return err
				}
			}
		}
		r.records.Store(n)
		return gctx.Err()
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if r.base != nil && cursor == r.info.FromCursor {
		return nil, ErrNothingToTrain
	}

	model, err := acc.Build(r.ctx)
	if err != nil {
		return nil, fmt.Errorf("build model: %w", err)
	}
	if model.Interactions < o.cfg.MinInteractions {
		return nil, apperr.Validationf("insufficient interactions: %d < %d", model.Interactions, o.cfg.MinInteractions)
	}
	if err := r.ctx.Err(); err != nil {
		return nil, err
	}

	return &registry.Artifact{
		VersionTag: r.info.VersionTag,
		TrainedAt:  o.now(),
		Cursor:     cursor,
		Mode:       r.info.Mode,
		RunID:      r.info.ID,
		Model:      model,
	}, nil
}

func (o *Orchestrator) finish(r *run, art *registry.Artifact, err error) {
	info := r.snapshot()
	info.FinishedAt = o.now()
	info.Duration = info.FinishedAt.Sub(info.StartedAt)

	outcome := "published"
	skipped := errors.Is(err, ErrNothingToTrain)
	if err != nil {
		info.State = StateFailed
		info.Error = err.Error()
		switch {
		case skipped:
			outcome = "skipped"
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			outcome = "cancelled"
		default:
			outcome = "failed"
		}
	} else {
		info.State = StatePublished
		info.Cursor = art.Cursor
	}

	o.mu.Lock()
	o.last = &info
	o.current = nil
	o.mu.Unlock()

	metrics.RecordTrainingRun(info.Mode, outcome, info.Duration, info.Records)

	notifyCtx := context.WithoutCancel(r.ctx)
	switch {
	case skipped:
		o.logger.Debug().
			Str("run_id", info.ID).
			Str("version_tag", info.VersionTag).
			Uint64("cursor", info.FromCursor).
			Msg("Training skipped, no new interactions")
	case err != nil:
		o.logger.Error().Err(err).
			Str("run_id", info.ID).
			Str("mode", info.Mode).
			Str("version_tag", info.VersionTag).
			Int64("records", info.Records).
			Msg("Training failed")
		if o.notifier != nil {
			o.notifier.TrainingFailed(notifyCtx, info)
		}
	default:
		o.logger.Info().
			Str("run_id", info.ID).
			Str("mode", info.Mode).
			Str("version_tag", info.VersionTag).
			Int64("records", info.Records).
			Uint64("cursor", info.Cursor).
			Dur("duration", info.Duration).
			Msg("Training published")
		if o.notifier != nil {
			o.notifier.ModelPublished(notifyCtx, info)
		}
	}

	o.state.Store(int32(StateIdle))
}
