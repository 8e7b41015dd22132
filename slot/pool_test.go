// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slot_test

import (
	"testing"

	"github.com/wafel-tas/timeline/game/synthetic"
	"github.com/wafel-tas/timeline/memory"
	"github.com/wafel-tas/timeline/slot"
)

func newTestPool(t *testing.T) (*slot.Pool, *synthetic.Game) {
	t.Helper()
	layout := slot.Layout{
		{Name: "globals", Size: 64},
		{Name: "heap", Size: 256},
	}
	g, err := synthetic.New(layout)
	if err != nil {
		t.Fatalf("synthetic.New: %v", err)
	}
	p, err := slot.NewPool(g)
	if err != nil {
		t.Fatalf("slot.NewPool: %v", err)
	}
	return p, g
}

func TestPoolCopyIsIndependent(t *testing.T) {
	p, g := newTestPool(t)

	snap := p.Alloc()
	p.Copy(snap, p.Base())

	if err := p.RunFrame(); err != nil {
		t.Fatalf("RunFrame: %v", err)
	}
	if g.Frame() != 1 {
		t.Fatalf("frame counter = %d, want 1", g.Frame())
	}

	view := p.View(snap)
	var buf [8]byte
	if err := view.ReadAt(memory.Virt("globals", 0), buf[:]); err != nil {
		t.Fatalf("ReadAt snapshot: %v", err)
	}
	for _, b := range buf {
		if b != 0 {
			t.Fatalf("snapshot slot was mutated by RunFrame, buf = %v", buf)
		}
	}
}

func TestPoolRestoreBase(t *testing.T) {
	p, g := newTestPool(t)

	snap := p.Alloc()
	p.Copy(snap, p.Base())

	for i := 0; i < 3; i++ {
		if err := p.RunFrame(); err != nil {
			t.Fatalf("RunFrame: %v", err)
		}
	}
	if g.Frame() != 3 {
		t.Fatalf("frame counter = %d, want 3", g.Frame())
	}

	p.Copy(p.Base(), snap)
	if g.Frame() != 0 {
		t.Fatalf("after restoring snapshot, frame counter = %d, want 0", g.Frame())
	}
}

func TestViewVirtualizeRoundTrip(t *testing.T) {
	p, _ := newTestPool(t)
	base := p.View(p.Base())

	var buf [8]byte
	memory.AMD64.ByteOrder.PutUint64(buf[:], 0x1234)
	if err := base.WriteAt(memory.Virt("heap", 8), buf[:]); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}

	raw, ok := base.Localize("heap", 8)
	if !ok {
		t.Fatalf("Localize(heap, 8) failed")
	}
	virt, ok := base.Virtualize(raw)
	if !ok {
		t.Fatalf("Virtualize(%x) failed", raw)
	}
	if !virt.Equal(memory.Virt("heap", 8)) {
		t.Fatalf("round trip = %s, want heap+0x8", virt)
	}
}

func TestViewAbsoluteOnlyValidOnBase(t *testing.T) {
	p, _ := newTestPool(t)
	snap := p.Alloc()
	view := p.View(snap)

	raw, ok := p.View(p.Base()).Localize("heap", 0)
	if !ok {
		t.Fatalf("Localize failed")
	}
	var buf [1]byte
	if err := view.ReadAt(memory.Abs(raw), buf[:]); err == nil {
		t.Fatalf("ReadAt absolute address on a copy slot should fail, got nil error")
	}
}

func TestFreeBasePanics(t *testing.T) {
	p, _ := newTestPool(t)
	defer func() {
		if recover() == nil {
			t.Fatalf("Free(base) should have panicked")
		}
	}()
	p.Free(p.Base())
}
