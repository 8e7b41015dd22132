// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !cgo || (!linux && !darwin)

package dll

import (
	"github.com/pkg/errors"
	"github.com/wafel-tas/timeline/slot"
)

// Config describes how to load one native game build. On this platform
// (or build, with cgo disabled) loading one is not possible; the fields
// exist so callers building Config values do not need a second build
// tag of their own.
type Config struct {
	Path         string
	UpdateSymbol string
	Sections     []string
}

// Game is never constructed on this platform/build; Open always fails.
type Game struct{}

// Open always fails: native game loading needs cgo on linux or darwin.
func Open(cfg Config) (*Game, error) {
	return nil, errors.New("dll: native game loading requires building with cgo on linux or darwin")
}

// Layout implements slot.Game; unreachable since Open always fails.
func (g *Game) Layout() slot.Layout { return nil }

// Base implements slot.Game; unreachable since Open always fails.
func (g *Game) Base(name string) ([]byte, error) {
	return nil, errors.New("dll: unreachable")
}

// Advance implements slot.Game; unreachable since Open always fails.
func (g *Game) Advance() error { return errors.New("dll: unreachable") }

// Close implements slot.Game; unreachable since Open always fails.
func (g *Game) Close() error { return nil }
