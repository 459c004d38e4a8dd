// Signalcart - Storefront Interaction Signals and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/signalcart

package registry

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tomtom215/signalcart/internal/apperr"
	"github.com/tomtom215/signalcart/internal/recommend/algorithms"
)

// MaxTagLength is the longest accepted version tag, in characters.
const MaxTagLength = 255

// Artifact is one trained, immutable model version. Whether it is active is
// a property of the registry, not of the artifact.
type Artifact struct {
	VersionTag string
	TrainedAt  time.Time

	// Cursor is the last interaction cursor folded into Model.
	Cursor uint64

	// Mode is "full" or "incremental".
	Mode  string
	RunID string

	Model *algorithms.Model
}

// Info describes a stored version without its model content.
type Info struct {
	VersionTag   string    `json:"version_tag"`
	TrainedAt    time.Time `json:"trained_at"`
	PublishedAt  time.Time `json:"published_at"`
	Cursor       uint64    `json:"cursor"`
	Mode         string    `json:"mode"`
	RunID        string    `json:"run_id,omitempty"`
	Algorithm    string    `json:"algorithm"`
	Products     int       `json:"products"`
	Interactions int64     `json:"interactions"`
	Checksum     string    `json:"checksum"`
	SizeBytes    int64     `json:"size_bytes"`
	File         string    `json:"file"`
	IsActive     bool      `json:"is_active"`
}

// NormalizeTag trims tag and checks its length. An empty result is allowed
// and means the caller wants a generated tag.
func NormalizeTag(tag string) (string, error) {
	tag = strings.TrimSpace(tag)
	if n := utf8.RuneCountInString(tag); n > MaxTagLength {
		return "", apperr.Validationf("version tag is %d characters, maximum is %d", n, MaxTagLength)
	}
	return tag, nil
}

func (a *Artifact) validate() error {
	if a == nil {
		return apperr.Validationf("artifact is nil")
	}
	tag, err := NormalizeTag(a.VersionTag)
	if err != nil {
		return err
	}
	if tag == "" || tag != a.VersionTag {
		return apperr.Validationf("artifact version tag %q is not normalized", a.VersionTag)
	}
	if err := a.Model.Validate(); err != nil {
		return apperr.Validationf("artifact %s: %v", a.VersionTag, err)
	}
	return nil
}
