// Signalcart - Storefront Interaction Signals and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/signalcart

// Package registry stores trained model artifacts and tracks which one is
// active.
//
// Artifacts are written as gob-encoded, gzip-compressed files with a SHA-256
// checksum verified on load. A JSON manifest names the active version and
// the last successful training cursor; it is rewritten through a temporary
// file and rename so it is always either the old or the new version.
//
// # Concurrency
//
// Publish and Activate are serialized by a writer mutex. Readers never take
// it: Active loads an atomic pointer that is swapped only after the manifest
// is durable, so a reader observes either the previous artifact or the new
// one, and once Publish returns every reader observes the new one or later.
package registry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/signalcart/internal/apperr"
	"github.com/tomtom215/signalcart/internal/cache"
	"github.com/tomtom215/signalcart/internal/metrics"
)

// Config holds registry configuration.
type Config struct {
	// Dir holds the manifest and artifact files.
	Dir string

	// KeepVersions bounds how many versions are retained. The active
	// version is never removed. Zero keeps every version.
	KeepVersions int

	// CacheSize is how many inactive artifacts Get keeps decoded in memory.
	CacheSize int
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Dir:       "/data/models",
		CacheSize: 4,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Dir == "" {
		return errors.New("registry directory is required")
	}
	if c.KeepVersions < 0 {
		return errors.New("registry keep_versions must not be negative")
	}
	if c.CacheSize < 1 {
		return errors.New("registry cache size must be at least 1")
	}
	return nil
}

// Registry is the versioned model store. It is safe for concurrent use.
type Registry struct {
	cfg    Config
	logger zerolog.Logger
	now    func() time.Time

	// mu serializes writers. Readers use the atomic snapshots below.
	mu     sync.Mutex
	index  atomic.Pointer[manifest]
	active atomic.Pointer[Artifact]

	loaded *cache.LRU[string, *Artifact]
}

// Open loads the registry in cfg.Dir, creating the directory if needed, and
// restores the active artifact named by the manifest.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func Open(cfg Config, logger zerolog.Logger) (*Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid registry config: %w", err)
	}
	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil { //nolint:gosec // 0750 is acceptable for model storage
		return nil, apperr.Storage("create registry directory", err)
	}

	man, err := loadManifest(cfg.Dir)
	if err != nil {
		return nil, apperr.Storage("open registry", err)
	}

	r := &Registry{
		cfg:    cfg,
		logger: logger.With().Str("component", "registry").Logger(),
		now:    func() time.Time { return time.Now().UTC() },
		loaded: cache.New[string, *Artifact](cfg.CacheSize, 24*time.Hour),
	}
	r.index.Store(man)

	if man.ActiveTag != "" {
		info, _ := man.find(man.ActiveTag)
		a, err := r.read(info)
		if err != nil {
			return nil, apperr.Storage("load active artifact", err)
		}
		r.active.Store(a)
		metrics.SetActiveModel(a.TrainedAt, a.Model.Products())
	}

	r.logger.Info().
		Str("dir", cfg.Dir).
		Int("versions", len(man.Versions)).
		Str("active", man.ActiveTag).
		Msg("Model registry opened")
	return r, nil
}

// Active returns the active artifact, or nil if none was ever published.
func (r *Registry) Active() *Artifact {
	return r.active.Load()
}

// LastCursor returns the cursor of the most recent successful training run.
func (r *Registry) LastCursor() uint64 {
	return r.index.Load().LastCursor
}

// Has reports whether tag names a stored version.
func (r *Registry) Has(tag string) bool {
	_, ok := r.index.Load().find(tag)
	return ok
}

// List returns every stored version in publication order.
func (r *Registry) List() []Info {
	man := r.index.Load()
	out := make([]Info, len(man.Versions))
	for i, v := range man.Versions {
		v.IsActive = v.VersionTag == man.ActiveTag
		out[i] = v
	}
	return out
}

// Info returns the description of one version.
func (r *Registry) Info(tag string) (Info, error) {
	man := r.index.Load()
	info, ok := man.find(tag)
	if !ok {
		return Info{}, apperr.NotFoundf("model version %q", tag)
	}
	info.IsActive = tag == man.ActiveTag
	return info, nil
}

// Get returns the artifact stored under tag.
func (r *Registry) Get(tag string) (*Artifact, error) {
	if a := r.active.Load(); a != nil && a.VersionTag == tag {
		return a, nil
	}
	info, ok := r.index.Load().find(tag)
	if !ok {
		return nil, apperr.NotFoundf("model version %q", tag)
	}
	if a, ok := r.loaded.Get(tag); ok {
		return a, nil
	}
	a, err := r.read(info)
	if err != nil {
		return nil, apperr.Storage("load artifact", err)
	}
	r.loaded.Add(tag, a)
	return a, nil
}

// Publish stores a and makes it the active version. The previously active
// version is retained as inactive. A tag that already exists is a conflict.
// On any error nothing changes: the previous artifact stays active.
func (r *Registry) Publish(ctx context.Context, a *Artifact) error {
	if err := a.validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.index.Load()
	if _, exists := cur.find(a.VersionTag); exists {
		return apperr.Conflictf("model version %q already exists", a.VersionTag)
	}

	file, checksum, size, err := writeArtifact(r.cfg.Dir, a)
	if err != nil {
		return apperr.Storage("publish artifact", err)
	}
	discard := func() { _ = os.Remove(filepath.Join(r.cfg.Dir, file)) } //nolint:errcheck // best-effort rollback

	if err := ctx.Err(); err != nil {
		discard()
		return err
	}

	next := cur.clone()
	next.Versions = append(next.Versions, Info{
		VersionTag:   a.VersionTag,
		TrainedAt:    a.TrainedAt,
		PublishedAt:  r.now(),
		Cursor:       a.Cursor,
		Mode:         a.Mode,
		RunID:        a.RunID,
		Algorithm:    a.Model.Algorithm,
		Products:     a.Model.Products(),
		Interactions: a.Model.Interactions,
		Checksum:     checksum,
		SizeBytes:    size,
		File:         file,
	})
	next.ActiveTag = a.VersionTag
	next.LastCursor = max(next.LastCursor, a.Cursor)
	pruned := r.prune(next)

	if err := saveManifest(r.cfg.Dir, next); err != nil {
		discard()
		return apperr.Storage("publish manifest", err)
	}

	r.index.Store(next)
	if prev := r.active.Swap(a); prev != nil {
		r.loaded.Add(prev.VersionTag, prev)
	}
	r.removeFiles(pruned)
	metrics.SetActiveModel(a.TrainedAt, a.Model.Products())

	r.logger.Info().
		Str("version_tag", a.VersionTag).
		Str("mode", a.Mode).
		Uint64("cursor", a.Cursor).
		Int("products", a.Model.Products()).
		Int64("size_bytes", size).
		Msg("Model published")
	return nil
}

// Activate makes a retained version active again, for rollback.
func (r *Registry) Activate(ctx context.Context, tag string) (*Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.index.Load()
	if cur.ActiveTag == tag {
		return r.active.Load(), nil
	}
	info, ok := cur.find(tag)
	if !ok {
		return nil, apperr.NotFoundf("model version %q", tag)
	}

	a, ok := r.loaded.Get(tag)
	if !ok {
		var err error
		if a, err = r.read(info); err != nil {
			return nil, apperr.Storage("load artifact", err)
		}
	}

	next := cur.clone()
	next.ActiveTag = tag
	if err := saveManifest(r.cfg.Dir, next); err != nil {
		return nil, apperr.Storage("activate manifest", err)
	}

	r.index.Store(next)
	if prev := r.active.Swap(a); prev != nil {
		r.loaded.Add(prev.VersionTag, prev)
	}
	r.loaded.Remove(tag)
	metrics.SetActiveModel(a.TrainedAt, a.Model.Products())

	r.logger.Info().Str("version_tag", tag).Str("previous", cur.ActiveTag).Msg("Model version activated")
	return a, nil
}

// prune drops the oldest inactive versions from next beyond KeepVersions and
// returns their file names.
func (r *Registry) prune(next *manifest) []string {
	keep := r.cfg.KeepVersions
	if keep <= 0 || len(next.Versions) <= keep {
		return nil
	}

	var files []string
	excess := len(next.Versions) - keep
	next.Versions = slices.DeleteFunc(next.Versions, func(v Info) bool {
		if excess == 0 || v.VersionTag == next.ActiveTag {
			return false
		}
		excess--
		files = append(files, v.File)
		r.loaded.Remove(v.VersionTag)
		return true
	})
	return files
}

func (r *Registry) removeFiles(files []string) {
	for _, f := range files {
		if err := os.Remove(filepath.Join(r.cfg.Dir, f)); err != nil {
			r.logger.Warn().Err(err).Str("file", f).Msg("Failed to remove pruned artifact")
		}
	}
}

func (r *Registry) read(info Info) (*Artifact, error) {
	a, err := readArtifact(filepath.Join(r.cfg.Dir, info.File))
	if err != nil {
		return nil, err
	}
	if a.VersionTag != info.VersionTag {
		return nil, fmt.Errorf("artifact file %s holds %q, want %q", info.File, a.VersionTag, info.VersionTag)
	}
	if err := a.Model.Validate(); err != nil {
		return nil, fmt.Errorf("artifact %s: %w", info.VersionTag, err)
	}
	return a, nil
}
