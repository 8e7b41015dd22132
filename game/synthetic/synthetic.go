// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package synthetic is a pure-Go stand-in for a native game library: it
// implements slot.Game without cgo or a dlopen'd .so, so the rest of the
// module's tests never need a real SM64 build to exercise the timeline
// engine end to end.
package synthetic

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"github.com/wafel-tas/timeline/slot"
)

// FrameCounterOffset is the byte offset, within the "globals" section,
// where Game keeps a little-endian uint64 frame counter that Advance
// increments. Tests use it to observe frame-advance behavior without
// needing a typespec.Spec.
const FrameCounterOffset = 0

// Game is a minimal deterministic simulation: each Advance increments a
// frame counter in the "globals" section and runs any OnAdvance callback,
// so that tests can tell whether N frames actually ran without depending
// on real SM64 semantics. No other section is touched by Advance.
type Game struct {
	layout   slot.Layout
	sections map[string][]byte
	onAdvance func(g *Game)
}

// New returns a Game whose memory is carved up according to layout. Only
// the "globals" section is required (at least 8 bytes, for the frame
// counter); any others are whatever the caller's typespec.Spec expects
// to address.
func New(layout slot.Layout) (*Game, error) {
	g := &Game{
		layout:   layout,
		sections: make(map[string][]byte, len(layout)),
	}
	idx := layout.IndexOf("globals")
	if idx < 0 {
		return nil, errors.New("synthetic: layout must declare a \"globals\" section")
	}
	if layout[idx].Size < 8 {
		return nil, errors.New("synthetic: \"globals\" section must be at least 8 bytes")
	}
	for _, sec := range layout {
		g.sections[sec.Name] = make([]byte, sec.Size)
	}
	return g, nil
}

// OnAdvance installs a callback invoked at the end of every Advance,
// after the frame counter has been incremented. Tests use it to inject
// game-specific behavior (e.g. mutating a field a datapath.DataPath
// exercises) without subclassing Game.
func (g *Game) OnAdvance(fn func(g *Game)) {
	g.onAdvance = fn
}

// Frame returns the current value of the frame counter.
func (g *Game) Frame() uint64 {
	return binary.LittleEndian.Uint64(g.sections["globals"][FrameCounterOffset:])
}

// Layout implements slot.Game.
func (g *Game) Layout() slot.Layout { return g.layout }

// Base implements slot.Game.
func (g *Game) Base(name string) ([]byte, error) {
	b, ok := g.sections[name]
	if !ok {
		return nil, errors.Errorf("synthetic: no such section %q", name)
	}
	return b, nil
}

// Advance implements slot.Game: it increments the frame counter and then
// runs any installed OnAdvance callback.
func (g *Game) Advance() error {
	globals := g.sections["globals"]
	binary.LittleEndian.PutUint64(globals[FrameCounterOffset:], g.Frame()+1)
	if g.onAdvance != nil {
		g.onAdvance(g)
	}
	return nil
}

// Close implements slot.Game; synthetic games hold no external resources.
func (g *Game) Close() error { return nil }
