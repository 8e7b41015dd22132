// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package movie_test

import (
	"testing"

	"github.com/wafel-tas/timeline/movie"
)

func TestToEditsExpandsEveryAxisPerFrame(t *testing.T) {
	inputs := []movie.FrameInput{
		{Buttons: 0x8000, StickX: -10, StickY: 20},
		{Buttons: 0, StickX: 5, StickY: -5},
	}
	edits := movie.ToEdits(inputs)
	if len(edits) != 6 {
		t.Fatalf("ToEdits produced %d edits, want 6 (3 per frame)", len(edits))
	}

	want := []movie.FrameEdit{
		{Frame: 0, Key: movie.ButtonKey, Value: 0x8000},
		{Frame: 0, Key: movie.StickXKey, Value: -10},
		{Frame: 0, Key: movie.StickYKey, Value: 20},
		{Frame: 1, Key: movie.ButtonKey, Value: 0},
		{Frame: 1, Key: movie.StickXKey, Value: 5},
		{Frame: 1, Key: movie.StickYKey, Value: -5},
	}
	for i, w := range want {
		if edits[i] != w {
			t.Errorf("edits[%d] = %+v, want %+v", i, edits[i], w)
		}
	}
}

func TestToEditsEmptyInput(t *testing.T) {
	if edits := movie.ToEdits(nil); len(edits) != 0 {
		t.Fatalf("ToEdits(nil) = %v, want empty", edits)
	}
}

func TestButtonsDownDecodesFlags(t *testing.T) {
	down := movie.ButtonsDown(movie.ButtonFlags["a"] | movie.ButtonFlags["cu"])
	seen := map[string]bool{}
	for _, name := range down {
		seen[name] = true
	}
	if !seen["a"] || !seen["cu"] {
		t.Fatalf("ButtonsDown = %v, want a and cu set", down)
	}
	if len(down) != 2 {
		t.Fatalf("ButtonsDown = %v, want exactly 2 names", down)
	}
}

func TestButtonFlagsMatchWafelTable(t *testing.T) {
	want := map[string]uint16{
		"a": 0x8000, "b": 0x4000, "z": 0x2000, "s": 0x1000,
		"l": 0x0020, "r": 0x0010,
		"cu": 0x0008, "cl": 0x0002, "cr": 0x0001, "cd": 0x0004,
		"du": 0x0800, "dl": 0x0200, "dr": 0x0100, "dd": 0x0400,
	}
	if len(movie.ButtonFlags) != len(want) {
		t.Fatalf("ButtonFlags has %d entries, want %d", len(movie.ButtonFlags), len(want))
	}
	for name, flag := range want {
		if movie.ButtonFlags[name] != flag {
			t.Errorf("ButtonFlags[%q] = %#x, want %#x", name, movie.ButtonFlags[name], flag)
		}
	}
}
