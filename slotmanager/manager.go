// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package slotmanager layers cost-based slot selection, frame-advance
// breadcrumbing, and read-lock bookkeeping on top of slot.Pool's raw
// byte-level allocate/copy/run primitives (spec.md §4.D).
package slotmanager

import (
	"math/rand"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/wafel-tas/timeline/memory"
	"github.com/wafel-tas/timeline/slot"
)

// PowerOnFrame is the sentinel frame number of the permanently-retained
// slot holding the game's state before any frame has run, mirroring the
// reference implementation's "frame -1" power-on slot.
const PowerOnFrame int64 = -1

// Ladder is the sequence of checkpoint distances balance_distribution
// aims for; after the first step (1 to 15), each is roughly 2.7-3.7x the
// last. It is the same geometric
// progression the reference slot manager uses instead of uniform
// buckets, so that recent history stays dense while old history stays
// cheap to keep around (SPEC_FULL.md's Open Question resolution; see
// DESIGN.md).
var Ladder = []int64{1, 15, 40, 145, 410, 1505, 4010, 14005}

// breadcrumb tuning: while advancing a long way toward a target frame,
// scatter a snapshot into a spare copy slot every breadcrumbInterval
// frames, tightening to breadcrumbTailInterval once within
// breadcrumbTailWindow frames of the target (spec.md §4.E), so that
// scrolling backward from a freshly reached frame never has to replay
// from scratch.
const (
	breadcrumbInterval     = 1000
	breadcrumbTailWindow   = 60
	breadcrumbTailInterval = 10
)

type managedSlot struct {
	slot    *slot.Slot
	frame   int64 // PowerOnFrame for a slot holding the power-on state
	locked  int   // outstanding read/freeze locks
	powerOn bool  // the permanently retained power-on slot (slots[0])
}

// Manager selects, maintains, and serves read-locked access to a bounded
// pool of frame snapshots.
type Manager struct {
	pool     *slot.Pool
	capacity int
	slots    []*managedSlot
	latest   int64 // highest frame handed out by lock, lowered by Invalidate
	preFrame func(frame int64, space memory.AddressSpace) error

	base       *managedSlot     // the pool's one live base slot, tracked outside the capacity-bounded copy-slot list
	baseLocked int              // outstanding RequireBase handles
	hotspots   map[string]int64 // named frame hints consulted by Balance
}

// SetPreFrame installs the hook run immediately before the game is
// advanced to produce a given frame, letting a higher layer (editlog,
// via the timeline facade) apply that frame's recorded input. It is
// nil by default, meaning a Manager used on its own just runs the game
// forward with whatever input the game already has queued.
func (m *Manager) SetPreFrame(fn func(frame int64, space memory.AddressSpace) error) {
	m.preFrame = fn
}

// New creates a Manager with room for capacity non-power-on slots, plus
// the permanently retained power-on slot. capacity must be at least 1.
func New(pool *slot.Pool, capacity int) (*Manager, error) {
	if capacity < 1 {
		return nil, errors.New("slotmanager: capacity must be at least 1")
	}
	m := &Manager{pool: pool, capacity: capacity}
	power := &managedSlot{slot: pool.Alloc(), frame: PowerOnFrame, powerOn: true}
	pool.Copy(power.slot, pool.Base())
	m.slots = append(m.slots, power)
	m.base = &managedSlot{slot: pool.Base(), frame: PowerOnFrame}
	return m, nil
}

// Close restores the power-on state into the live game and releases the
// pool. This is the slot manager's half of "restore on destruction" (the
// power-on slot concept belongs here, not to slot.Pool, since slot.Pool
// has no notion of frame numbers).
func (m *Manager) Close() error {
	m.pool.Copy(m.pool.Base(), m.powerOn().slot)
	return m.pool.Close()
}

func (m *Manager) powerOn() *managedSlot {
	return m.slots[0]
}

// copySlotCount is the number of capacity-bounded copy slots currently
// allocated, excluding both the power-on slot and the live base.
func (m *Manager) copySlotCount() int {
	return len(m.slots) - 1
}

// LoadedFrames reports every frame currently held by a non-power-on
// slot, including the live base when it differs from power-on, as a
// diagnostic for tests and the timeline facade (spec.md §4.G's
// loaded_frames).
func (m *Manager) LoadedFrames() []int64 {
	var out []int64
	for _, s := range m.slots[1:] {
		out = append(out, s.frame)
	}
	if m.base.frame != PowerOnFrame {
		out = append(out, m.base.frame)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Handle is a read-locked reference to a snapshot at exactly a
// requested frame. Callers must call Release when done reading.
type Handle struct {
	m     *Manager
	slot  *managedSlot
	Frame int64
}

// Slot returns the underlying slot.Slot the handle locks.
func (h *Handle) Slot() *slot.Slot {
	return h.slot.slot
}

// Release drops the handle's read lock. A slot is only eligible for
// eviction or in-place advancement once its lock count reaches zero.
func (h *Handle) Release() {
	h.slot.locked--
	if h.slot == h.m.base {
		h.m.baseLocked--
	}
}

// errPrecondition is the sentinel for spec.md's fatal
// PreconditionViolation error kind: a caller broke an invariant that
// indicates a bug in this module, not ordinary misuse.
var errPrecondition = errors.New("precondition violation")

// errSlotExhausted is the sentinel for spec.md's SlotExhausted error
// kind: a nested, non-base request could not be served without either
// returning the base slot or advancing it, both forbidden while nesting.
var errSlotExhausted = errors.New("slot exhausted")

// IsSlotExhausted reports whether err (or something it wraps) is the
// SlotExhausted error kind.
func IsSlotExhausted(err error) bool {
	return errors.Cause(err) == errSlotExhausted
}

// RequestOptions modifies Request's slot-selection algorithm for the
// nested-call safety rules of spec.md §4.E/§5.
type RequestOptions struct {
	// AllowNesting is set by a caller making a Request from inside
	// another Request's dynamic extent (e.g. from a preFrame callback
	// or a handle's own read callback). Ordering requires that
	// run_frame never execute while a read-lock on the base slot is
	// held, so a nested request that would otherwise need to advance
	// the base must instead be satisfied from a non-base copy slot: one
	// already holding the frame, or a copy of the base when the base
	// already holds it.
	AllowNesting bool
	// RequireBase asks for the live base slot itself, frozen and
	// returned directly rather than copied out into a copy slot. Mutually
	// exclusive with AllowNesting.
	RequireBase bool
}

// Request returns a read-locked Handle to the game state at exactly the
// given frame, advancing the best available candidate slot forward as
// many frames as necessary. frame must be >= 0; use the power-on state
// directly via Close/New bookkeeping for frame -1.
func (m *Manager) Request(frame int64, opts RequestOptions) (*Handle, error) {
	if frame < 0 {
		return nil, errors.Errorf("slotmanager: frame %d is out of range", frame)
	}
	if opts.RequireBase && opts.AllowNesting {
		return nil, errors.New("slotmanager: RequireBase and AllowNesting cannot both be set")
	}
	if m.baseLocked > 0 && !opts.AllowNesting {
		return nil, errors.Wrap(errPrecondition, "slotmanager: base slot is frozen by an outstanding RequireBase request; nested calls must pass AllowNesting")
	}

	if opts.RequireBase {
		return m.requestBase(frame)
	}

	if m.baseLocked > 0 {
		// The base is held elsewhere; advancing through it (advanceToFrame
		// always uses it as scratch) would corrupt that request's
		// snapshot. Only an already-cached, exact-frame copy slot, or a
		// spare copy slot filled from the base when the frozen base itself
		// holds frame, can be served without advancing the base.
		cand := m.exactMatch(frame)
		if cand == nil && m.base.frame == frame {
			if spare := m.breadcrumbSlot(nil); spare != nil {
				m.pool.Copy(spare.slot, m.pool.Base())
				spare.frame = frame
				cand = spare
			}
		}
		if cand == nil {
			return nil, errors.Wrap(errSlotExhausted, "slotmanager: no cached copy slot already holds the requested frame while the base slot is frozen")
		}
		return m.lock(cand), nil
	}

	cand, err := m.selectCandidate(frame)
	if err != nil {
		return nil, err
	}
	if err := m.advanceToFrame(cand, frame); err != nil {
		return nil, err
	}
	return m.lock(cand), nil
}

func (m *Manager) requestBase(frame int64) (*Handle, error) {
	if err := m.advanceToFrame(m.base, frame); err != nil {
		return nil, err
	}
	m.baseLocked++
	return m.lock(m.base), nil
}

func (m *Manager) lock(cand *managedSlot) *Handle {
	cand.locked++
	if cand.frame > m.latest {
		m.latest = cand.frame
	}
	return &Handle{m: m, slot: cand, Frame: cand.frame}
}

// exactMatch returns an unlocked, non-power-on, non-base copy slot
// already holding frame, if one exists.
func (m *Manager) exactMatch(frame int64) *managedSlot {
	for _, s := range m.slots[1:] {
		if s.locked == 0 && s.frame == frame {
			return s
		}
	}
	return nil
}

// selectCandidate picks the unlocked copy slot at or before frame with
// the fewest frames left to run, allocating a fresh copy of the power-on
// slot if every existing copy slot is either locked or past frame, up to
// the manager's capacity; once at capacity it evicts the cheapest
// unlocked, non-power-on slot to make room.
func (m *Manager) selectCandidate(frame int64) (*managedSlot, error) {
	var best *managedSlot
	for _, s := range m.slots {
		if s.locked > 0 {
			continue
		}
		if s.frame > frame {
			continue
		}
		if best == nil || s.frame > best.frame {
			best = s
		}
	}
	if best != nil && (best.frame == frame || !best.powerOn) {
		return best, nil
	}
	if m.copySlotCount() < m.capacity {
		fresh := &managedSlot{slot: m.pool.Alloc(), frame: PowerOnFrame}
		m.pool.Copy(fresh.slot, m.powerOn().slot)
		m.slots = append(m.slots, fresh)
		return fresh, nil
	}
	victim, err := m.evictionCandidate(nil)
	if err != nil {
		return nil, err
	}
	if best != nil && best.frame > victim.frame {
		return best, nil
	}
	m.pool.Copy(victim.slot, m.powerOn().slot)
	victim.frame = PowerOnFrame
	return victim, nil
}

// evictionCandidate finds the oldest unlocked, non-power-on copy slot
// not present in exclude, the cheapest one to sacrifice.
func (m *Manager) evictionCandidate(exclude map[*managedSlot]bool) (*managedSlot, error) {
	var worst *managedSlot
	for _, s := range m.slots {
		if s.powerOn || s.locked > 0 || exclude[s] {
			continue
		}
		if worst == nil || s.frame < worst.frame {
			worst = s
		}
	}
	if worst == nil {
		return nil, errors.Wrap(errPrecondition, "slotmanager: no unlocked slot available to serve request; every slot is checked out")
	}
	return worst, nil
}

// advanceToFrame runs the live game forward from cand's current frame to
// the target, mutating cand's snapshot through the base slot. If cand
// already holds a later frame than target, it cannot be advanced
// in-place (the game only runs forward), so it is first reset to the
// power-on state; otherwise a later frame's bytes could be mislabeled as
// an earlier one's. The base itself is reset the same way when its label
// is PowerOnFrame, since its bytes may still hold a frame dropped by
// Invalidate. Each step applies the new frame's input through preFrame;
// the step from PowerOnFrame to frame 0 does not run the game, so frame N
// is N game updates past power-on. Afterwards the base holds frame too.
func (m *Manager) advanceToFrame(cand *managedSlot, frame int64) error {
	if cand.frame == frame {
		return nil
	}
	if cand.frame > frame || (cand == m.base && cand.frame == PowerOnFrame) {
		m.pool.Copy(cand.slot, m.powerOn().slot)
		cand.frame = PowerOnFrame
	}
	m.pool.Copy(m.pool.Base(), cand.slot)
	start := cand.frame
	lastCrumb := start
	for f := start; f < frame; f++ {
		target := f + 1
		if m.preFrame != nil {
			if err := m.preFrame(target, m.pool.View(m.pool.Base())); err != nil {
				return errors.Wrapf(err, "slotmanager: applying input for frame %d", target)
			}
		}
		if target != 0 {
			if err := m.pool.RunFrame(); err != nil {
				return errors.Wrapf(err, "slotmanager: advancing from frame %d toward %d", start, frame)
			}
		}
		if m.dueForBreadcrumb(target, frame, lastCrumb) {
			m.dropBreadcrumb(target, cand)
			lastCrumb = target
		}
	}
	m.pool.Copy(cand.slot, m.pool.Base())
	cand.frame = frame
	m.base.frame = frame
	return nil
}

// dueForBreadcrumb reports whether the frame just reached is far enough
// past the last breadcrumb to drop another: every breadcrumbInterval
// frames normally, tightening to breadcrumbTailInterval once within
// breadcrumbTailWindow frames of the final target.
func (m *Manager) dueForBreadcrumb(reached, target, lastCrumb int64) bool {
	interval := int64(breadcrumbInterval)
	if target-reached <= breadcrumbTailWindow {
		interval = breadcrumbTailInterval
	}
	return reached-lastCrumb >= interval
}

// dropBreadcrumb snapshots the live base (already advanced to frame) into
// a spare non-frozen copy slot, allocating one if under capacity and
// otherwise picking at random among unlocked copy slots other than
// exclude, so a later request scrubbing backward through this stretch
// does not have to replay from the nearest earlier checkpoint.
func (m *Manager) dropBreadcrumb(frame int64, exclude *managedSlot) {
	target := m.breadcrumbSlot(exclude)
	if target == nil {
		return
	}
	m.pool.Copy(target.slot, m.pool.Base())
	target.frame = frame
}

func (m *Manager) breadcrumbSlot(exclude *managedSlot) *managedSlot {
	if m.copySlotCount() < m.capacity {
		fresh := &managedSlot{slot: m.pool.Alloc(), frame: PowerOnFrame}
		m.slots = append(m.slots, fresh)
		return fresh
	}
	var candidates []*managedSlot
	for _, s := range m.slots[1:] {
		if s.locked > 0 || s == exclude {
			continue
		}
		candidates = append(candidates, s)
	}
	if len(candidates) == 0 {
		return nil
	}
	return candidates[rand.Intn(len(candidates))]
}

// Invalidate discards every cached slot at or after fromFrame, except
// the power-on slot, since an edit at fromFrame means any snapshot built
// on the old input sequence from that point on no longer reflects the
// true state (spec.md §4.D). A locked slot (or locked base) at or after
// fromFrame makes Invalidate panic with a precondition violation: the
// caller must have released every handle before editing, since holding
// a Handle across an edit is a programmer error.
func (m *Manager) Invalidate(fromFrame int64) {
	kept := m.slots[:1] // power-on slot always survives
	for _, s := range m.slots[1:] {
		if s.frame >= fromFrame {
			if s.locked > 0 {
				panic(errors.Wrapf(errPrecondition, "slotmanager: Invalidate(%d) with a held handle to frame %d", fromFrame, s.frame))
			}
			continue
		}
		kept = append(kept, s)
	}
	m.slots = kept
	if m.base.frame >= fromFrame {
		if m.base.locked > 0 {
			panic(errors.Wrapf(errPrecondition, "slotmanager: Invalidate(%d) with a held handle to base frame %d", fromFrame, m.base.frame))
		}
		m.base.frame = PowerOnFrame
	}
	if m.latest >= fromFrame {
		m.latest = fromFrame - 1
	}
}

// SetHotspot records (or updates) a named frame hint that Balance
// surrounds with checkpoints (spec.md §3's Hotspot entity).
func (m *Manager) SetHotspot(name string, frame int64) {
	if m.hotspots == nil {
		m.hotspots = make(map[string]int64)
	}
	m.hotspots[name] = frame
}

// DeleteHotspot removes a named hotspot, if present.
func (m *Manager) DeleteHotspot(name string) {
	delete(m.hotspots, name)
}

// Hotspots returns a copy of the current name -> frame hint table.
func (m *Manager) Hotspots() map[string]int64 {
	out := make(map[string]int64, len(m.hotspots))
	for k, v := range m.hotspots {
		out[k] = v
	}
	return out
}

// Balance spends up to budget redistributing slots to approximate
// Ladder's geometric checkpoint spacing around every registered hotspot,
// in alphabetical order for determinism, amortising the work across
// however many are currently set (spec.md §4.E's balance_distribution).
// budget <= 0 means run to completion instead of stopping early.
func (m *Manager) Balance(budget time.Duration) {
	if len(m.hotspots) == 0 {
		return
	}
	var deadline time.Time
	if budget > 0 {
		deadline = time.Now().Add(budget)
	}
	names := make([]string, 0, len(m.hotspots))
	for name := range m.hotspots {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if !deadline.IsZero() && time.Now().After(deadline) {
			return
		}
		m.balanceOne(m.hotspots[name], deadline)
	}
}

// BalanceFrame runs the same ladder maintenance as Balance around a
// single, unnamed frame, for callers that work in terms of "the furthest
// frame scrubbed to" rather than a persisted named hotspot. The RPC and
// CLI surfaces register a named hotspot and call Balance instead.
func (m *Manager) BalanceFrame(hotspot int64, budget time.Duration) {
	var deadline time.Time
	if budget > 0 {
		deadline = time.Now().Add(budget)
	}
	m.balanceOne(hotspot, deadline)
}

// balanceOne builds hotspot's geometric ladder of target frames, in
// ascending order, and for each either reuses an existing non-base slot
// within tolerance of that frame or advances a fresh/evicted one to it, stopping
// once deadline (if set) has passed.
func (m *Manager) balanceOne(hotspot int64, deadline time.Time) {
	if hotspot < 0 {
		hotspot = 0
	}
	seen := make(map[int64]bool, len(Ladder))
	targets := make([]int64, 0, len(Ladder))
	for _, k := range Ladder {
		t := alignDown(hotspot, k)
		if !seen[t] {
			seen[t] = true
			targets = append(targets, t)
		}
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i] < targets[j] })

	used := make(map[*managedSlot]bool, len(targets))
	for _, target := range targets {
		if !deadline.IsZero() && time.Now().After(deadline) {
			return
		}
		if s := m.closestUsable(target, used); s != nil {
			used[s] = true
			continue
		}
		victim, err := m.balanceVictim(used)
		if err != nil {
			continue
		}
		if err := m.advanceToFrame(victim, target); err != nil {
			continue
		}
		used[victim] = true
	}
}

// closestUsable returns an unlocked, non-power-on, not-already-used
// copy slot within tolerance of target, if one exists.
func (m *Manager) closestUsable(target int64, used map[*managedSlot]bool) *managedSlot {
	tol := m.tolerance()
	for _, s := range m.slots[1:] {
		if s.locked > 0 || used[s] {
			continue
		}
		d := s.frame - target
		if d < 0 {
			d = -d
		}
		if d <= tol {
			return s
		}
	}
	return nil
}

// balanceVictim allocates a fresh copy slot if under capacity, otherwise
// evicts the cheapest unlocked copy slot not already claimed this round.
func (m *Manager) balanceVictim(used map[*managedSlot]bool) (*managedSlot, error) {
	if m.copySlotCount() < m.capacity {
		fresh := &managedSlot{slot: m.pool.Alloc(), frame: PowerOnFrame}
		m.pool.Copy(fresh.slot, m.powerOn().slot)
		m.slots = append(m.slots, fresh)
		return fresh, nil
	}
	return m.evictionCandidate(used)
}

// tolerance is how close an existing slot must be to a ladder target to
// count as "already covering" it, avoiding needless re-derivation for a
// target that is already well served.
func (m *Manager) tolerance() int64 {
	return 1
}

// alignDown rounds h down to the nearest multiple of k, the geometric
// ladder's target-frame formula (spec.md §4.E): larger k produces a
// coarser, more distant checkpoint.
func alignDown(h, k int64) int64 {
	if k <= 0 {
		return h
	}
	return (h / k) * k
}
