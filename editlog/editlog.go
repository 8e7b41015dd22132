// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package editlog is the sparse, append-only record of per-frame
// mutations an editor applies to a game's input, plus the Controller
// capability the timeline facade uses to feed those mutations into a
// frame-advance loop and be told when a change invalidates cached
// state (spec.md §6).
package editlog

import (
	"sync"

	"github.com/wafel-tas/timeline/memory"
)

// Key identifies which variable an Edit targets: Symbol is a global name
// (as passed to memory.Memory.Symbol) and Path is the datapath
// navigation string rooted at it (e.g. "[0].button"). Two edits at the
// same frame with different Keys are independent and both apply; two
// edits with the same Key and frame are not, the later Set replaces the
// earlier outright (spec.md §3: "later edit to the same variable wins").
type Key struct {
	Symbol string
	Path   string
}

// Edit is one recorded mutation at a specific frame, targeting a
// specific variable. Mutate is applied to the live game's Memory
// immediately before that frame is run.
type Edit struct {
	Frame  int64
	Key    Key
	Mutate func(m *memory.Memory) error
}

// Controller is the capability a Log drives: OnChange is called whenever
// an edit is set or removed (a timeline wires this to
// slotmanager.Manager.Invalidate), and Apply is called once per frame,
// before any per-frame Edit, to let the controller itself drive input
// (e.g. from a loaded .m64 the user hasn't overridden).
type Controller struct {
	OnChange func(frame int64)
	Apply    func(frame int64, m *memory.Memory) error
}

// NoOp is a Controller that does nothing, useful when a Log is driven
// purely by explicit Set calls with no underlying input source.
func NoOp() Controller {
	return Controller{
		OnChange: func(int64) {},
		Apply:    func(int64, *memory.Memory) error { return nil },
	}
}

// Log holds the sparse per-frame edit map plus one RangeSet per variable
// carrying a range edit. Edits to different Keys at the same frame
// coexist; a later Set to the same (frame, Key) replaces the earlier
// one. A point edit at a frame a range also covers takes precedence
// over the range's value for that frame.
type Log struct {
	mu         sync.RWMutex
	controller Controller
	edits      map[int64]map[Key]Edit
	ranges     map[Key]*RangeSet
}

// New returns an empty Log driven by the given Controller.
func New(controller Controller) *Log {
	return &Log{
		controller: controller,
		edits:      make(map[int64]map[Key]Edit),
		ranges:     make(map[Key]*RangeSet),
	}
}

// Set records (or replaces) the mutation at frame for key, then notifies
// the controller that frame onward is no longer validly cached.
func (l *Log) Set(frame int64, key Key, mutate func(m *memory.Memory) error) {
	l.mu.Lock()
	if l.edits[frame] == nil {
		l.edits[frame] = make(map[Key]Edit)
	}
	l.edits[frame][key] = Edit{Frame: frame, Key: key, Mutate: mutate}
	l.mu.Unlock()
	l.controller.OnChange(frame)
}

// Delete removes the edit recorded at (frame, key), if present, and
// notifies the controller.
func (l *Log) Delete(frame int64, key Key) {
	l.mu.Lock()
	byKey := l.edits[frame]
	_, had := byKey[key]
	if had {
		delete(byKey, key)
		if len(byKey) == 0 {
			delete(l.edits, frame)
		}
	}
	l.mu.Unlock()
	if had {
		l.controller.OnChange(frame)
	}
}

// ClearFrame removes every point edit recorded at frame, regardless of
// key, without shifting any other frame. Unlike DeleteFrame, it does not
// remove frame from the timeline, just whatever was scheduled there.
func (l *Log) ClearFrame(frame int64) {
	l.mu.Lock()
	_, had := l.edits[frame]
	delete(l.edits, frame)
	l.mu.Unlock()
	if had {
		l.controller.OnChange(frame)
	}
}

// Get returns the edit recorded at (frame, key), if any.
func (l *Log) Get(frame int64, key Key) (Edit, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.edits[frame][key]
	return e, ok
}

// SetRange records value over [start,end) for key, splitting or
// shrinking any existing range over the same key it overlaps (spec.md
// §4.F's range set algebra), and notifies the controller from start
// onward.
func (l *Log) SetRange(key Key, start, end int64, value memory.Value, mutate func(m *memory.Memory) error) {
	l.mu.Lock()
	rs := l.rangeSet(key)
	rs.Add(EditRange{Key: key, Start: start, End: end, Value: value, Mutate: mutate})
	l.mu.Unlock()
	l.controller.OnChange(start)
}

// ClearRange removes [start,end) from key's range track, splitting or
// shrinking whatever it overlaps, and notifies the controller from
// start onward.
func (l *Log) ClearRange(key Key, start, end int64) {
	l.mu.Lock()
	rs := l.rangeSet(key)
	rs.Remove(EditRange{Key: key, Start: start, End: end})
	l.mu.Unlock()
	l.controller.OnChange(start)
}

// Ranges returns key's current disjoint ranges, in ascending order.
func (l *Log) Ranges(key Key) []EditRange {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rs, ok := l.ranges[key]
	if !ok {
		return nil
	}
	return rs.Ranges()
}

// rangeSet returns (creating if necessary) key's RangeSet. Callers must
// hold l.mu.
func (l *Log) rangeSet(key Key) *RangeSet {
	rs, ok := l.ranges[key]
	if !ok {
		rs = &RangeSet{}
		l.ranges[key] = rs
	}
	return rs
}

// Frame returns every edit active at frame, in no particular order: a
// point edit recorded directly at frame for a key, or (if no point edit
// overrides it) the range edit covering frame for that key.
func (l *Log) Frame(frame int64) []Edit {
	l.mu.RLock()
	defer l.mu.RUnlock()
	byKey := l.edits[frame]
	out := make([]Edit, 0, len(byKey)+len(l.ranges))
	seen := make(map[Key]bool, len(byKey))
	for k, e := range byKey {
		out = append(out, e)
		seen[k] = true
	}
	for k, rs := range l.ranges {
		if seen[k] {
			continue
		}
		if r, ok := rs.Covers(frame); ok {
			out = append(out, Edit{Frame: frame, Key: r.Key, Mutate: r.Mutate})
		}
	}
	return out
}

// Frames returns every frame with at least one recorded edit, in
// ascending order.
func (l *Log) Frames() []int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]int64, 0, len(l.edits))
	for f := range l.edits {
		out = append(out, f)
	}
	sortInt64s(out)
	return out
}

// Apply runs the controller's per-frame input first, then every recorded
// Edit for frame, against m. It is called immediately before running
// frame itself. Edits apply in no guaranteed order among themselves,
// since distinct keys are required to target independent storage.
func (l *Log) Apply(frame int64, m *memory.Memory) error {
	if err := l.controller.Apply(frame, m); err != nil {
		return err
	}
	for _, e := range l.Frame(frame) {
		if err := e.Mutate(m); err != nil {
			return err
		}
	}
	return nil
}

// InsertFrame shifts every edit and range at or after f forward by one
// frame, per spec.md §4.F, and invalidates from f onward. A range
// straddling f stretches by one frame instead of shifting, since the
// newly inserted frame falls inside it.
func (l *Log) InsertFrame(f int64) {
	l.mu.Lock()
	l.edits = shiftEdits(l.edits, f, 1)
	for _, rs := range l.ranges {
		rs.insertFrame(f)
	}
	l.mu.Unlock()
	l.controller.OnChange(f)
}

// DeleteFrame removes frame f from the timeline, shifting every edit and
// range after it back by one frame, and invalidates from f onward. A
// range straddling f shrinks by one frame instead of shifting.
func (l *Log) DeleteFrame(f int64) {
	l.mu.Lock()
	delete(l.edits, f)
	l.edits = shiftEdits(l.edits, f, -1)
	for _, rs := range l.ranges {
		rs.deleteFrame(f)
	}
	l.mu.Unlock()
	l.controller.OnChange(f)
}

// shiftEdits rebuilds edits with every frame >= f moved by delta
// (+1 for insertion, -1 for deletion), leaving frames before f alone.
func shiftEdits(edits map[int64]map[Key]Edit, f, delta int64) map[int64]map[Key]Edit {
	out := make(map[int64]map[Key]Edit, len(edits))
	for frame, byKey := range edits {
		target := frame
		if frame >= f {
			target = frame + delta
		}
		if target < 0 {
			continue
		}
		shifted := make(map[Key]Edit, len(byKey))
		for k, e := range byKey {
			e.Frame = target
			shifted[k] = e
		}
		out[target] = shifted
	}
	return out
}

func sortInt64s(s []int64) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
