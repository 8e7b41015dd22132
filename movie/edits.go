// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package movie

import "github.com/wafel-tas/timeline/editlog"

// FrameInput is the controller-state shape ToEdits consumes. Input and
// wafi.Input carry the same three fields, so a caller that has read
// either an .m64 or a .wafi movie copies those fields into one
// FrameInput per frame (as tasctl's load command does).
type FrameInput struct {
	Buttons uint16
	StickX  int8
	StickY  int8
}

// ButtonKey, StickXKey, and StickYKey are the editlog.Key values ToEdits
// expands each frame's recorded input into: the three fields of
// controller 0's pad state, the variables an .m64/.wafi movie actually
// drives.
var (
	ButtonKey = editlog.Key{Symbol: "gControllerPads", Path: "[0].button"}
	StickXKey = editlog.Key{Symbol: "gControllerPads", Path: "[0].stick_x"}
	StickYKey = editlog.Key{Symbol: "gControllerPads", Path: "[0].stick_y"}
)

// FrameEdit is one (frame, key) pair ToEdits produces, carrying its raw
// value widened to int64. It is deliberately not an editlog.Edit: that
// would require resolving a Mutate closure against a particular Memory
// layout, which ToEdits has no business assuming. A caller turns a
// FrameEdit into a real edit once it knows how Symbol+Path map onto its
// own game (via a datapath.Compiler, or a raw offset for a synthetic
// demo game).
type FrameEdit struct {
	Frame int64
	Key   editlog.Key
	Value int64
}

// ToEdits expands inputs into one FrameEdit per (frame, axis): a movie
// only ever drives gControllerPads[0]'s button mask and two stick axes,
// so every frame yields exactly three edits regardless of whether that
// frame's input happens to match the previous frame's.
func ToEdits(inputs []FrameInput) []FrameEdit {
	out := make([]FrameEdit, 0, 3*len(inputs))
	for i, in := range inputs {
		frame := int64(i)
		out = append(out,
			FrameEdit{Frame: frame, Key: ButtonKey, Value: int64(in.Buttons)},
			FrameEdit{Frame: frame, Key: StickXKey, Value: int64(in.StickX)},
			FrameEdit{Frame: frame, Key: StickYKey, Value: int64(in.StickY)},
		)
	}
	return out
}

// ButtonFlags maps each named button to its bit in Input.Buttons / the
// button field ToEdits targets, mirroring the N64 controller's standard
// layout (wafel's INPUT_BUTTON_FLAGS table).
var ButtonFlags = map[string]uint16{
	"a":  0x8000,
	"b":  0x4000,
	"z":  0x2000,
	"s":  0x1000,
	"l":  0x0020,
	"r":  0x0010,
	"cu": 0x0008,
	"cl": 0x0002,
	"cr": 0x0001,
	"cd": 0x0004,
	"du": 0x0800,
	"dl": 0x0200,
	"dr": 0x0100,
	"dd": 0x0400,
}

// ButtonsDown returns the name of every button flag set in buttons, for
// annotation and diagnostic UIs. Order is unspecified.
func ButtonsDown(buttons uint16) []string {
	var down []string
	for name, flag := range ButtonFlags {
		if buttons&flag != 0 {
			down = append(down, name)
		}
	}
	return down
}
