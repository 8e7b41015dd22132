// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slot

// Slot is a full snapshot of a game's writable memory sections: one byte
// buffer per section named by the owning Pool's Layout. The distinguished
// base slot's buffers alias the live game's own memory (see Pool); every
// other slot owns independently allocated buffers populated by Pool.Copy.
type Slot struct {
	sections [][]byte
}

// section returns the raw bytes of the section at index idx within this slot.
// The index is resolved by the caller (typically via Pool.Layout's
// IndexOf) since a bare Slot does not carry its own layout reference.
func (s *Slot) section(idx int) []byte {
	return s.sections[idx]
}
