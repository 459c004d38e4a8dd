// Signalcart - Storefront Interaction Signals and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/signalcart

package training

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/tomtom215/signalcart/internal/apperr"
	"github.com/tomtom215/signalcart/internal/models"
	"github.com/tomtom215/signalcart/internal/registry"
)

// State is a training run state.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StatePublished
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRunning:
		return "RUNNING"
	case StatePublished:
		return "PUBLISHED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name, so status and bus payloads round-trip.
func (s *State) UnmarshalText(text []byte) error {
	for _, st := range []State{StateIdle, StateRunning, StatePublished, StateFailed} {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown training state %q", text)
}

// Training modes.
const (
	ModeFull        = "full"
	ModeIncremental = "incremental"
)

var (
	// ErrClosed is returned once the orchestrator has been closed.
	ErrClosed = errors.New("training orchestrator is closed")

	// ErrNothingToTrain is returned by an incremental run that found no
	// records after the active model's cursor. Nothing is published.
	ErrNothingToTrain = fmt.Errorf("%w: no new interactions since the active model", apperr.ErrValidation)
)

// Request asks for one training run.
type Request struct {
	// ForceRetrainAll rebuilds from the start of the log instead of folding
	// new records into the active model.
	ForceRetrainAll bool

	// VersionTag names the resulting artifact. Blank generates one.
	VersionTag string
}

// RunInfo describes a training run.
type RunInfo struct {
	ID         string        `json:"id"`
	State      State         `json:"state"`
	Mode       string        `json:"mode"`
	VersionTag string        `json:"version_tag"`
	FromCursor uint64        `json:"from_cursor"`
	Cursor     uint64        `json:"cursor"`
	Records    int64         `json:"records"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"duration_ns,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// Status is a point-in-time view of the orchestrator.
type Status struct {
	State      State    `json:"state"`
	Current    *RunInfo `json:"current,omitempty"`
	Last       *RunInfo `json:"last,omitempty"`
	LastCursor uint64   `json:"last_cursor"`
	ActiveTag  string   `json:"active_tag,omitempty"`
}

// Exporter streams training records after a cursor.
type Exporter interface {
	ExportSince(ctx context.Context, cursor uint64) iter.Seq2[models.InteractionRecord, error]
}

// Registry is the artifact store the orchestrator publishes to.
type Registry interface {
	Active() *registry.Artifact
	Has(tag string) bool
	LastCursor() uint64
	Publish(ctx context.Context, a *registry.Artifact) error
}

// Notifier hears about finished runs. Calls are best effort and must not
// block for long.
type Notifier interface {
	ModelPublished(ctx context.Context, run RunInfo)
	TrainingFailed(ctx context.Context, run RunInfo)
}
