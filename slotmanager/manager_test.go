// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slotmanager_test

import (
	"testing"

	"github.com/wafel-tas/timeline/game/synthetic"
	"github.com/wafel-tas/timeline/slot"
	"github.com/wafel-tas/timeline/slotmanager"
)

func newTestManager(t *testing.T, capacity int) (*slotmanager.Manager, *synthetic.Game) {
	t.Helper()
	layout := slot.Layout{{Name: "globals", Size: 64}}
	g, err := synthetic.New(layout)
	if err != nil {
		t.Fatalf("synthetic.New: %v", err)
	}
	pool, err := slot.NewPool(g)
	if err != nil {
		t.Fatalf("slot.NewPool: %v", err)
	}
	mgr, err := slotmanager.New(pool, capacity)
	if err != nil {
		t.Fatalf("slotmanager.New: %v", err)
	}
	return mgr, g
}

func TestRequestAdvancesAndCaches(t *testing.T) {
	mgr, g := newTestManager(t, 4)

	h, err := mgr.Request(10, slotmanager.RequestOptions{})
	if err != nil {
		t.Fatalf("Request(10): %v", err)
	}
	if h.Frame != 10 {
		t.Fatalf("Frame = %d, want 10", h.Frame)
	}
	if g.Frame() != 10 {
		t.Fatalf("game frame = %d, want 10", g.Frame())
	}
	h.Release()

	h2, err := mgr.Request(10, slotmanager.RequestOptions{})
	if err != nil {
		t.Fatalf("Request(10) again: %v", err)
	}
	defer h2.Release()
	if h2.Frame != 10 {
		t.Fatalf("Frame = %d, want 10", h2.Frame)
	}
}

func TestInvalidateDropsLaterSlots(t *testing.T) {
	mgr, _ := newTestManager(t, 4)

	h, err := mgr.Request(20, slotmanager.RequestOptions{})
	if err != nil {
		t.Fatalf("Request(20): %v", err)
	}
	h.Release()

	mgr.Invalidate(5)

	h2, err := mgr.Request(20, slotmanager.RequestOptions{})
	if err != nil {
		t.Fatalf("Request(20) after invalidate: %v", err)
	}
	defer h2.Release()
	if h2.Frame != 20 {
		t.Fatalf("Frame = %d, want 20", h2.Frame)
	}
}

func TestRequestReusesEarlierSlotInsteadOfRestarting(t *testing.T) {
	mgr, g := newTestManager(t, 4)

	h, err := mgr.Request(50, slotmanager.RequestOptions{})
	if err != nil {
		t.Fatalf("Request(50): %v", err)
	}
	h.Release()
	if g.Frame() != 50 {
		t.Fatalf("game frame = %d, want 50", g.Frame())
	}

	h2, err := mgr.Request(55, slotmanager.RequestOptions{})
	if err != nil {
		t.Fatalf("Request(55): %v", err)
	}
	defer h2.Release()
	if g.Frame() != 55 {
		t.Fatalf("game frame = %d, want 55 (should advance from the frame-50 slot, not restart)", g.Frame())
	}
}

func TestBalanceDoesNotTouchLockedSlots(t *testing.T) {
	mgr, _ := newTestManager(t, 4)

	h, err := mgr.Request(100, slotmanager.RequestOptions{})
	if err != nil {
		t.Fatalf("Request(100): %v", err)
	}
	defer h.Release()

	mgr.BalanceFrame(100, 0)

	if h.Frame != 100 {
		t.Fatalf("locked handle's frame changed to %d, want 100", h.Frame)
	}
}

// TestAdvanceToFrameResetsStaleSlot is a regression test for a slot that
// holds a later frame than the one being requested: advancing in place
// would otherwise just run the game forward from wherever it already
// was, silently mislabeling a later frame's bytes as an earlier one's.
func TestAdvanceToFrameResetsStaleSlot(t *testing.T) {
	mgr, g := newTestManager(t, 1)

	ahead, err := mgr.Request(80, slotmanager.RequestOptions{})
	if err != nil {
		t.Fatalf("Request(80): %v", err)
	}
	ahead.Release()
	if g.Frame() != 80 {
		t.Fatalf("game frame = %d, want 80", g.Frame())
	}

	// Force reuse of the very slot that now holds frame 80 for an
	// earlier frame: with only one copy slot available, the eviction
	// path must pick it and reset it to power-on before running
	// forward, not advance it in place from 80.
	behind, err := mgr.Request(30, slotmanager.RequestOptions{})
	if err != nil {
		t.Fatalf("Request(30): %v", err)
	}
	defer behind.Release()
	if behind.Frame != 30 {
		t.Fatalf("Frame = %d, want 30", behind.Frame)
	}
	if g.Frame() != 30 {
		t.Fatalf("game frame = %d, want 30 (stale frame-80 slot must not be advanced in place)", g.Frame())
	}
}

func TestRequireBaseFreezesLiveSlot(t *testing.T) {
	mgr, g := newTestManager(t, 4)

	h, err := mgr.Request(15, slotmanager.RequestOptions{RequireBase: true})
	if err != nil {
		t.Fatalf("Request(15, RequireBase): %v", err)
	}
	if h.Frame != 15 {
		t.Fatalf("Frame = %d, want 15", h.Frame)
	}
	if g.Frame() != 15 {
		t.Fatalf("game frame = %d, want 15", g.Frame())
	}

	if _, err := mgr.Request(20, slotmanager.RequestOptions{}); err == nil {
		t.Fatalf("Request(20) while base is frozen: want error, got nil")
	}

	h.Release()

	if _, err := mgr.Request(20, slotmanager.RequestOptions{}); err != nil {
		t.Fatalf("Request(20) after base release: %v", err)
	}
}

func TestAllowNestingFailsWithoutCachedFrame(t *testing.T) {
	mgr, _ := newTestManager(t, 4)

	base, err := mgr.Request(10, slotmanager.RequestOptions{RequireBase: true})
	if err != nil {
		t.Fatalf("Request(10, RequireBase): %v", err)
	}
	defer base.Release()

	_, err = mgr.Request(10, slotmanager.RequestOptions{AllowNesting: true})
	if err != nil {
		t.Fatalf("Request(10, AllowNesting) for the already-cached base frame: %v", err)
	}

	_, err = mgr.Request(11, slotmanager.RequestOptions{AllowNesting: true})
	if !slotmanager.IsSlotExhausted(err) {
		t.Fatalf("Request(11, AllowNesting) with base frozen at 10: want SlotExhausted, got %v", err)
	}
}

func TestAllowNestingNeverReturnsBaseSlot(t *testing.T) {
	mgr, _ := newTestManager(t, 4)

	h, err := mgr.Request(10, slotmanager.RequestOptions{AllowNesting: true})
	if err != nil {
		t.Fatalf("Request(10, AllowNesting): %v", err)
	}
	defer h.Release()

	// A second, RequireBase request for the same frame must still be able
	// to freeze the live base: if AllowNesting had handed back the base
	// slot itself, this would deadlock against h's own lock.
	base, err := mgr.Request(10, slotmanager.RequestOptions{RequireBase: true})
	if err != nil {
		t.Fatalf("Request(10, RequireBase) concurrently with an AllowNesting handle: %v", err)
	}
	base.Release()
}

func TestBalanceCoversHotspotLadder(t *testing.T) {
	mgr, _ := newTestManager(t, len(slotmanager.Ladder)+2)

	mgr.SetHotspot("selection", 5000)
	mgr.Balance(0)

	loaded := map[int64]bool{}
	for _, f := range mgr.LoadedFrames() {
		loaded[f] = true
	}
	for _, k := range slotmanager.Ladder {
		target := (int64(5000) / k) * k
		if !loaded[target] {
			t.Errorf("ladder target align_down(5000, %d) = %d not covered by any loaded slot: %v", k, target, mgr.LoadedFrames())
		}
	}
}

func TestBalanceTargetsAscendOutward(t *testing.T) {
	// Regression for a reversed-order bug: targets are visited in
	// ascending frame order, so the hotspot frame itself (the highest
	// target) is placed last and must be loaded once a full Balance
	// returns.
	mgr, _ := newTestManager(t, len(slotmanager.Ladder)+2)

	mgr.SetHotspot("selection", 5000)
	mgr.Balance(0)

	loaded := map[int64]bool{}
	for _, f := range mgr.LoadedFrames() {
		loaded[f] = true
	}
	if !loaded[5000] {
		t.Fatalf("nearest ladder target (5000 itself) not covered: %v", mgr.LoadedFrames())
	}
}
