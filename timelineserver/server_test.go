// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package timelineserver_test

import (
	"net"
	"testing"
	"time"
	"unsafe"

	"github.com/wafel-tas/timeline/game/synthetic"
	"github.com/wafel-tas/timeline/memory"
	"github.com/wafel-tas/timeline/slot"
	"github.com/wafel-tas/timeline/timeline"
	"github.com/wafel-tas/timeline/timelineserver"
	"github.com/wafel-tas/timeline/typespec"
)

// newTestServer wires a Timeline over a synthetic Game with a single
// "hp" u32 global living at the start of the "heap" section, serves it
// over an ephemeral localhost port, and returns a connected Client.
func newTestServer(t *testing.T) (*timelineserver.Client, func()) {
	t.Helper()
	layout := slot.Layout{{Name: "globals", Size: 64}, {Name: "heap", Size: 256}}
	g, err := synthetic.New(layout)
	if err != nil {
		t.Fatalf("synthetic.New: %v", err)
	}
	heap, err := g.Base("heap")
	if err != nil {
		t.Fatalf("Base(heap): %v", err)
	}

	u32, err := typespec.NewPrimitive("u32")
	if err != nil {
		t.Fatalf("NewPrimitive: %v", err)
	}
	spec := typespec.New()
	spec.Globals["hp"] = typespec.Global{
		Name:    "hp",
		Type:    u32,
		Address: int64(uintptr(unsafe.Pointer(&heap[0]))),
	}

	tl, err := timeline.New(timeline.Config{Game: g, Spec: spec, Arch: memory.AMD64, Capacity: 8})
	if err != nil {
		t.Fatalf("timeline.New: %v", err)
	}

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	go timelineserver.ServeListener(l, tl)

	c, err := timelineserver.Dial(l.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	cleanup := func() {
		c.Close()
		l.Close()
		tl.Close()
	}
	return c, cleanup
}

func TestGetReadsPowerOnValue(t *testing.T) {
	c, cleanup := newTestServer(t)
	defer cleanup()

	v, err := c.Get(0, "hp", "")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v != "0" {
		t.Fatalf("Get(0, hp) = %q, want %q", v, "0")
	}
}

func TestSetThenGetObservesEdit(t *testing.T) {
	c, cleanup := newTestServer(t)
	defer cleanup()

	if err := c.SetUint(3, "hp", "", 42); err != nil {
		t.Fatalf("SetUint: %v", err)
	}
	v, err := c.Get(3, "hp", "")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v != "42" {
		t.Fatalf("Get(3, hp) after SetUint = %q, want %q", v, "42")
	}

	// Frames before the edit are untouched.
	v0, err := c.Get(0, "hp", "")
	if err != nil {
		t.Fatalf("Get(0): %v", err)
	}
	if v0 != "0" {
		t.Fatalf("Get(0, hp) = %q, want %q (edit at frame 3 should not affect frame 0)", v0, "0")
	}
}

func TestClearRemovesEdit(t *testing.T) {
	c, cleanup := newTestServer(t)
	defer cleanup()

	if err := c.SetUint(2, "hp", "", 7); err != nil {
		t.Fatalf("SetUint: %v", err)
	}
	if err := c.Clear(2); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	v, err := c.Get(2, "hp", "")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v != "0" {
		t.Fatalf("Get(2, hp) after Clear = %q, want %q", v, "0")
	}
}

func TestBalanceDoesNotError(t *testing.T) {
	c, cleanup := newTestServer(t)
	defer cleanup()

	if _, err := c.Get(5, "hp", ""); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if err := c.Balance(0); err != nil {
		t.Fatalf("Balance: %v", err)
	}
}

func TestSetHotspotThenBalanceCoversIt(t *testing.T) {
	c, cleanup := newTestServer(t)
	defer cleanup()

	if err := c.SetHotspot("boss-fight", 40); err != nil {
		t.Fatalf("SetHotspot: %v", err)
	}
	if err := c.Balance(5 * time.Second); err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if err := c.DeleteHotspot("boss-fight"); err != nil {
		t.Fatalf("DeleteHotspot: %v", err)
	}
	// Balancing with no hotspots registered must not error either.
	if err := c.Balance(0); err != nil {
		t.Fatalf("Balance after DeleteHotspot: %v", err)
	}
}
