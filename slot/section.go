// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package slot holds raw, byte-addressable copies of a game's writable
// memory sections and runs the game forward one frame at a time. A Pool
// owns one distinguished base Slot, whose sections alias the live game's
// own memory, and any number of copy slots, whose sections are
// independently allocated buffers (spec.md §4.C).
package slot

import "fmt"

// Section is one named, contiguous region of a game's memory a Pool
// tracks across every slot, e.g. "bss" or "heap". Every Slot in a Pool
// holds exactly one buffer per Section named by the Pool's Layout, all
// the same length.
type Section struct {
	Name string
	Size int64
}

// Layout is the fixed set of sections every Slot in a Pool allocates
// space for, in a stable order.
type Layout []Section

// IndexOf returns the position of the named section in the layout, or -1.
func (l Layout) IndexOf(name string) int {
	for i, s := range l {
		if s.Name == name {
			return i
		}
	}
	return -1
}

func (l Layout) String() string {
	return fmt.Sprintf("%v", []Section(l))
}
