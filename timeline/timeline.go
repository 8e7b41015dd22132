// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package timeline is the facade the rest of an editor talks to: it
// wires a slotmanager.Manager, an editlog.Log, and a memory.Memory
// together behind a frame-indexed API, hiding slot selection and edit
// application from callers that just want to read or change game state
// at a given frame (spec.md §4.G).
package timeline

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/wafel-tas/timeline/datapath"
	"github.com/wafel-tas/timeline/editlog"
	"github.com/wafel-tas/timeline/memory"
	"github.com/wafel-tas/timeline/slot"
	"github.com/wafel-tas/timeline/slotmanager"
	"github.com/wafel-tas/timeline/typespec"
)

// Timeline is the top-level handle an editor holds: everything needed
// to inspect or edit a run at any frame.
type Timeline struct {
	pool     *slot.Pool
	mgr      *slotmanager.Manager
	edits    *editlog.Log
	spec     *typespec.Spec
	arch     memory.Arch
	compiler *datapath.Compiler

	mu        sync.Mutex
	pathCache map[pathKey]*datapath.DataPath
	listeners []func(frame int64)
}

type pathKey struct {
	symbol, path string
}

// Config bundles what New needs to assemble a Timeline.
type Config struct {
	Game       slot.Game
	Spec       *typespec.Spec
	Arch       memory.Arch
	Capacity   int
	Controller editlog.Controller // zero value defaults to editlog.NoOp()
}

// New constructs a Timeline over the given game, spec, and capacity.
func New(cfg Config) (*Timeline, error) {
	pool, err := slot.NewPool(cfg.Game)
	if err != nil {
		return nil, errors.Wrap(err, "timeline: opening slot pool")
	}
	capacity := cfg.Capacity
	if capacity < 1 {
		capacity = 32
	}
	mgr, err := slotmanager.New(pool, capacity)
	if err != nil {
		return nil, errors.Wrap(err, "timeline: creating slot manager")
	}
	controller := cfg.Controller
	if controller.OnChange == nil {
		controller = editlog.NoOp()
	}
	t := &Timeline{
		pool:      pool,
		mgr:       mgr,
		spec:      cfg.Spec,
		arch:      cfg.Arch,
		pathCache: make(map[pathKey]*datapath.DataPath),
	}
	controller.OnChange = wrapInvalidate(mgr, t.notifyInvalidation, controller.OnChange)
	t.edits = editlog.New(controller)
	t.compiler = datapath.NewCompiler(cfg.Spec)
	mgr.SetPreFrame(func(frame int64, space memory.AddressSpace) error {
		return t.edits.Apply(frame, memory.New(t.spec, t.arch, space))
	})
	return t, nil
}

// wrapInvalidate composes a caller-supplied OnChange with the mandatory
// slot-manager invalidation every edit must trigger, plus this
// Timeline's own on_invalidation listeners, so a Config caller can
// observe edits (e.g. to mark a project dirty) without having to
// remember to also call Invalidate themselves.
func wrapInvalidate(mgr *slotmanager.Manager, notify func(frame int64), user func(frame int64)) func(frame int64) {
	return func(frame int64) {
		mgr.Invalidate(frame)
		notify(frame)
		if user != nil {
			user(frame)
		}
	}
}

func (t *Timeline) notifyInvalidation(frame int64) {
	t.mu.Lock()
	listeners := append([]func(frame int64){}, t.listeners...)
	t.mu.Unlock()
	for _, fn := range listeners {
		fn(frame)
	}
}

// OnInvalidation registers a callback invoked whenever an edit (or frame
// insertion/deletion) invalidates cached state from some frame onward,
// in addition to the slot manager's own mandatory invalidation (spec.md
// §4.G's on_invalidation).
func (t *Timeline) OnInvalidation(cb func(frame int64)) {
	t.mu.Lock()
	t.listeners = append(t.listeners, cb)
	t.mu.Unlock()
}

// Handle is a read-locked view of game state at a specific frame,
// together with the Memory needed to interpret it.
type Handle struct {
	h      *slotmanager.Handle
	memory *memory.Memory
	t      *Timeline
}

// Frame returns the frame number this handle is locked to.
func (h *Handle) Frame() int64 { return h.h.Frame }

// Memory returns a memory.Memory reading and writing through this
// handle's slot. Writes through it are NOT frame edits: they mutate the
// cached slot's bytes directly and will be clobbered the next time that
// slot is re-derived. Use Timeline.Edit to make a durable, reproducible
// change.
func (h *Handle) Memory() *memory.Memory { return h.memory }

// Release drops the handle's read lock.
func (h *Handle) Release() { h.h.Release() }

// Compiler exposes the Timeline's datapath.Compiler, bound to its Spec,
// for callers that want to precompile frequently used paths once.
func (t *Timeline) Compiler() *datapath.Compiler { return t.compiler }

// Spec returns the type spec this Timeline was constructed with.
func (t *Timeline) Spec() *typespec.Spec { return t.spec }

// At returns a read-locked Handle to the game state at frame, running
// the game forward as needed. Frame -1 (the power-on state, before any
// input has been applied) is rejected with an error; no handle is
// handed out for it.
func (t *Timeline) At(frame int64) (*Handle, error) {
	return t.at(frame, slotmanager.RequestOptions{})
}

func (t *Timeline) at(frame int64, opts slotmanager.RequestOptions) (*Handle, error) {
	if frame == slotmanager.PowerOnFrame {
		return nil, errors.New("timeline: frame -1 (power-on) has no durable handle; reset the game instead")
	}
	h, err := t.mgr.Request(frame, opts)
	if err != nil {
		return nil, err
	}
	space := t.pool.View(h.Slot())
	return &Handle{h: h, memory: memory.New(t.spec, t.arch, space), t: t}, nil
}

// WithSlot runs fn against a single frozen Handle for frame, the escape
// hatch for reading several fields under one freeze instead of paying
// for a separate Request per field (spec.md §4.G's with_slot). The
// handle is released automatically when fn returns, whatever fn does.
func (t *Timeline) WithSlot(frame int64, fn func(h *Handle) error) error {
	h, err := t.At(frame)
	if err != nil {
		return err
	}
	defer h.Release()
	return fn(h)
}

// compile resolves symbol's declared type and compiles path against it,
// caching the result keyed by (symbol, path): the same field of the
// same global is typically re-read every frame by a scrubbing UI, and a
// global's type never changes between frames.
func (t *Timeline) compile(symbol, path string) (*datapath.DataPath, error) {
	key := pathKey{symbol, path}
	t.mu.Lock()
	dp, ok := t.pathCache[key]
	t.mu.Unlock()
	if ok {
		return dp, nil
	}
	g, err := t.spec.Global(symbol)
	if err != nil {
		return nil, err
	}
	dp, err = t.compiler.Compile(g.Type, path)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	t.pathCache[key] = dp
	t.mu.Unlock()
	return dp, nil
}

// Get reads the value at symbol+path at frame (spec.md §4.G's
// get(frame, path)).
func (t *Timeline) Get(frame int64, symbol, path string) (memory.Value, error) {
	h, err := t.At(frame)
	if err != nil {
		return memory.Value{}, err
	}
	defer h.Release()

	dp, err := t.compile(symbol, path)
	if err != nil {
		return memory.Value{}, err
	}
	base, _, err := h.Memory().Symbol(symbol)
	if err != nil {
		return memory.Value{}, err
	}
	return dp.Get(h.Memory(), base)
}

// Edit records mutate as the edit at (frame, key) and invalidates every
// cached slot from frame onward. Edits to different keys at the same
// frame coexist; a later Edit to the same (frame, key) replaces the
// earlier one.
func (t *Timeline) Edit(frame int64, key editlog.Key, mutate func(m *memory.Memory) error) {
	t.edits.Set(frame, key, mutate)
}

// ClearEdit removes the edit recorded at (frame, key), if any.
func (t *Timeline) ClearEdit(frame int64, key editlog.Key) {
	t.edits.Delete(frame, key)
}

// ClearFrame removes every edit recorded at frame, regardless of key.
func (t *Timeline) ClearFrame(frame int64) {
	t.edits.ClearFrame(frame)
}

// SetRange records value over [start,end) for key via mutate, splitting
// or shrinking any existing range over the same key it overlaps.
func (t *Timeline) SetRange(key editlog.Key, start, end int64, value memory.Value, mutate func(m *memory.Memory) error) {
	t.edits.SetRange(key, start, end, value, mutate)
}

// ClearRange removes [start,end) from key's range track.
func (t *Timeline) ClearRange(key editlog.Key, start, end int64) {
	t.edits.ClearRange(key, start, end)
}

// InsertFrame shifts every edit and range at or after f forward by one
// frame (spec.md §4.F) and invalidates from f onward.
func (t *Timeline) InsertFrame(f int64) {
	t.edits.InsertFrame(f)
}

// DeleteFrame removes frame f, shifting every edit and range after it
// back by one frame, and invalidates from f onward.
func (t *Timeline) DeleteFrame(f int64) {
	t.edits.DeleteFrame(f)
}

// Edits exposes the underlying editlog.Log for callers building their
// own range-edit UI atop the basic per-frame API.
func (t *Timeline) Edits() *editlog.Log { return t.edits }

// SetHotspot records (or updates) a named frame hint that
// Balance surrounds with checkpoints (spec.md §4.G's set_hotspot).
func (t *Timeline) SetHotspot(name string, frame int64) {
	t.mgr.SetHotspot(name, frame)
}

// DeleteHotspot removes a named hotspot (spec.md §4.G's
// delete_hotspot).
func (t *Timeline) DeleteHotspot(name string) {
	t.mgr.DeleteHotspot(name)
}

// Balance spends up to budget redistributing the slot cache around every
// registered hotspot (spec.md §4.G's balance_distribution). budget <= 0
// runs to completion instead of stopping early.
func (t *Timeline) Balance(budget time.Duration) {
	t.mgr.Balance(budget)
}

// LoadedFrames reports every frame currently cached by a slot, a
// diagnostic for tests and tooling (spec.md §4.G's loaded_frames).
func (t *Timeline) LoadedFrames() []int64 {
	return t.mgr.LoadedFrames()
}

// Close restores the power-on state into the live game and releases all
// resources.
func (t *Timeline) Close() error {
	return t.mgr.Close()
}
