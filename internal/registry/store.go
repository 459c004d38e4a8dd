// Signalcart - Storefront Interaction Signals and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/signalcart

package registry

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// storedFile is the on-disk format of an artifact file. Checksum is the
// SHA-256 of the uncompressed gob payload.
type storedFile struct {
	VersionTag     string
	Checksum       string
	CompressedData []byte
}

// artifactFile returns the file name for tag. Tags are free text, so the
// name is derived from a hash rather than the tag itself.
func artifactFile(tag string) string {
	sum := sha256.Sum256([]byte(tag))
	return "artifact_" + hex.EncodeToString(sum[:])[:32] + ".gob.gz"
}

// writeArtifact encodes a into dir and returns its file name, checksum and
// compressed size. The file is written to a temporary name and renamed, so a
// crash never leaves a partial artifact under the final name.
func writeArtifact(dir string, a *Artifact) (file, checksum string, size int64, err error) {
	var raw bytes.Buffer
	if err := gob.NewEncoder(&raw).Encode(a); err != nil {
		return "", "", 0, fmt.Errorf("encode artifact: %w", err)
	}
	hash := sha256.Sum256(raw.Bytes())
	checksum = hex.EncodeToString(hash[:])

	var compressed bytes.Buffer
	gzw := gzip.NewWriter(&compressed)
	if _, err := gzw.Write(raw.Bytes()); err != nil {
		return "", "", 0, fmt.Errorf("compress artifact: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return "", "", 0, fmt.Errorf("finalize compression: %w", err)
	}

	file = artifactFile(a.VersionTag)
	sf := storedFile{VersionTag: a.VersionTag, Checksum: checksum, CompressedData: compressed.Bytes()}
	err = writeFileAtomic(filepath.Join(dir, file), func(w io.Writer) error {
		return gob.NewEncoder(w).Encode(sf)
	})
	if err != nil {
		return "", "", 0, fmt.Errorf("write artifact file: %w", err)
	}
	return file, checksum, int64(compressed.Len()), nil
}

// readArtifact loads and verifies an artifact file.
func readArtifact(path string) (*Artifact, error) {
	f, err := os.Open(path) //nolint:gosec // path is built from the registry directory and a hashed name
	if err != nil {
		return nil, fmt.Errorf("open artifact file: %w", err)
	}
	defer func() { _ = f.Close() }() //nolint:errcheck // error on close after read is not actionable

	var sf storedFile
	if err := gob.NewDecoder(f).Decode(&sf); err != nil {
		return nil, fmt.Errorf("read artifact file: %w", err)
	}

	gzr, err := gzip.NewReader(bytes.NewReader(sf.CompressedData))
	if err != nil {
		return nil, fmt.Errorf("decompress artifact: %w", err)
	}
	defer func() { _ = gzr.Close() }() //nolint:errcheck // error on gzip close after read is not actionable

	raw, err := io.ReadAll(gzr)
	if err != nil {
		return nil, fmt.Errorf("read decompressed data: %w", err)
	}

	hash := sha256.Sum256(raw)
	if checksum := hex.EncodeToString(hash[:]); checksum != sf.Checksum {
		return nil, fmt.Errorf("checksum mismatch: expected %s, got %s", sf.Checksum, checksum)
	}

	var a Artifact
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&a); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	if a.VersionTag != sf.VersionTag {
		return nil, fmt.Errorf("artifact file holds %q, header says %q", a.VersionTag, sf.VersionTag)
	}
	return &a, nil
}

// writeFileAtomic writes path through a temporary file in the same
// directory, fsyncs it, and renames it into place.
func writeFileAtomic(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()        //nolint:errcheck // already failing
			_ = os.Remove(tmpName) //nolint:errcheck // best-effort cleanup
		}
	}()

	if err := write(tmp); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true
	syncDir(filepath.Dir(path))
	return nil
}

// syncDir is best effort: some filesystems reject fsync on directories, and
// the rename has already happened.
func syncDir(dir string) {
	d, err := os.Open(dir) //nolint:gosec // registry directory
	if err != nil {
		return
	}
	_ = d.Sync()  //nolint:errcheck // see above
	_ = d.Close() //nolint:errcheck // read-only handle
}
