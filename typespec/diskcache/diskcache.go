// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package diskcache is an advisory on-disk cache of a parsed
// typespec.Spec, keyed by the hash of the game library it was parsed
// from plus a format version this package controls. A miss (no file,
// hash mismatch, version mismatch, or any decode error) is never fatal:
// callers fall back to re-running the (out-of-scope) debug-info loader,
// the same as a cold cache.
package diskcache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/wafel-tas/timeline/typespec"
)

// FormatVersion is bumped whenever the on-disk encoding changes shape in
// a way an old cache file could not be safely decoded against.
const FormatVersion = 1

// entry is the on-disk envelope: LibraryHash pins the cache to the
// exact game build it was derived from, so swapping in a different ROM
// or a recompiled library invalidates it automatically.
type entry struct {
	Version     int            `json:"version"`
	LibraryHash string         `json:"library_hash"`
	Spec        *typespec.Spec `json:"spec"`
}

// Load reads a cached Spec from path, returning ok=false (never an
// error) on any miss: missing file, version mismatch, hash mismatch, or
// malformed JSON. A caller's own debug-info loader is always the
// fallback of record.
func Load(path, libraryHash string) (spec *typespec.Spec, ok bool) {
	f, err := os.Open(path)
	if err != nil {
		return nil, false
	}
	defer f.Close()

	var e entry
	if err := json.NewDecoder(f).Decode(&e); err != nil {
		return nil, false
	}
	if e.Version != FormatVersion || e.LibraryHash != libraryHash {
		return nil, false
	}
	return e.Spec, true
}

// Save writes spec to path, tagged with libraryHash and the current
// FormatVersion. Failure to save is advisory too — callers should warn,
// not abort, on a non-nil error (cmd/viewcore/main.go's pattern for
// ancillary, best-effort files).
func Save(path, libraryHash string, spec *typespec.Spec) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "diskcache: creating %s", path)
	}
	defer f.Close()

	e := entry{Version: FormatVersion, LibraryHash: libraryHash, Spec: spec}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return errors.Wrapf(enc.Encode(e), "diskcache: writing %s", path)
}

// Hash computes the cache key a game library at libraryPath should be
// looked up and saved under: the hex-encoded SHA-256 of its contents.
func Hash(libraryPath string) (string, error) {
	f, err := os.Open(libraryPath)
	if err != nil {
		return "", errors.Wrapf(err, "diskcache: hashing %s", libraryPath)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", errors.Wrapf(err, "diskcache: hashing %s", libraryPath)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
