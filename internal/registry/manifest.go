// Signalcart - Storefront Interaction Signals and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/signalcart

package registry

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/goccy/go-json"
)

const manifestFile = "registry.json"

// manifest is the registry's durable index. It is replaced as a whole on
// every change; readers of the file never see a partial update.
type manifest struct {
	ActiveTag  string `json:"active_tag"`
	LastCursor uint64 `json:"last_cursor"`
	Versions   []Info `json:"versions"`
}

func (m *manifest) find(tag string) (Info, bool) {
	for _, v := range m.Versions {
		if v.VersionTag == tag {
			return v, true
		}
	}
	return Info{}, false
}

func (m *manifest) clone() *manifest {
	return &manifest{
		ActiveTag:  m.ActiveTag,
		LastCursor: m.LastCursor,
		Versions:   slices.Clone(m.Versions),
	}
}

func loadManifest(dir string) (*manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, manifestFile)) //nolint:gosec // fixed name inside registry directory
	if errors.Is(err, fs.ErrNotExist) {
		return &manifest{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if m.ActiveTag != "" {
		if _, ok := m.find(m.ActiveTag); !ok {
			return nil, fmt.Errorf("manifest names unknown active tag %q", m.ActiveTag)
		}
	}
	return &m, nil
}

func saveManifest(dir string, m *manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	err = writeFileAtomic(filepath.Join(dir, manifestFile), func(w io.Writer) error {
		_, werr := w.Write(data)
		return werr
	})
	if err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}
