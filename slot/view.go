// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slot

import (
	"github.com/pkg/errors"
	"github.com/wafel-tas/timeline/memory"
)

// View adapts one Slot of a Pool into a memory.AddressSpace: reads and
// writes are satisfied from that slot's own bytes, while the portable
// Virtual<->raw translation (Virtualize/Localize) always consults the
// pool's base slot ranges, since a raw pointer value was necessarily
// written by the game in terms of the base slot's live addresses
// regardless of which slot's copy of the bytes we are now looking at.
type View struct {
	pool *Pool
	slot *Slot
}

// View returns the address space a Memory should use to interpret s's
// bytes.
func (p *Pool) View(s *Slot) View {
	return View{pool: p, slot: s}
}

func (v View) ReadAt(addr memory.Address, buf []byte) error {
	sec, off, err := v.resolve(addr)
	if err != nil {
		return err
	}
	if off < 0 || off+int64(len(buf)) > int64(len(sec)) {
		return memory.InvalidAddressf("read of %d bytes at %s is out of range", len(buf), addr)
	}
	copy(buf, sec[off:])
	return nil
}

func (v View) WriteAt(addr memory.Address, buf []byte) error {
	sec, off, err := v.resolve(addr)
	if err != nil {
		return err
	}
	if off < 0 || off+int64(len(buf)) > int64(len(sec)) {
		return memory.InvalidAddressf("write of %d bytes at %s is out of range", len(buf), addr)
	}
	copy(sec[off:], buf)
	return nil
}

// resolve locates the section bytes and in-section offset addr refers
// to within this view's slot. A Null address and an address outside
// every known section are both spec.md §4.B's InvalidAddress kind; an
// Absolute address used against a non-base slot is a programmer misuse
// of the API, not a bad address, so it stays a plain error.
func (v View) resolve(addr memory.Address) ([]byte, int64, error) {
	switch addr.Kind {
	case memory.Null:
		return nil, 0, memory.InvalidAddressf("dereferencing a null address")
	case memory.Virtual:
		idx := v.pool.layout.IndexOf(addr.Section)
		if idx < 0 {
			return nil, 0, memory.InvalidAddressf("unknown section %q", addr.Section)
		}
		return v.slot.sections[idx], addr.Offset, nil
	case memory.Absolute:
		if v.slot != v.pool.base {
			return nil, 0, errors.Errorf("absolute address %s is only meaningful against the base slot", addr)
		}
		idx, off, ok := v.pool.findRaw(addr.Raw)
		if !ok {
			return nil, 0, memory.InvalidAddressf("absolute address %s is outside every known section", addr)
		}
		return v.slot.sections[idx], off, nil
	default:
		return nil, 0, errors.Errorf("cannot read or write a %s address", addr)
	}
}

func (v View) Virtualize(raw uintptr) (memory.Address, bool) {
	idx, off, ok := v.pool.findRaw(raw)
	if !ok {
		return memory.NullAddress, false
	}
	return memory.Virt(v.pool.layout[idx].Name, off), true
}

func (v View) Localize(section string, offset int64) (uintptr, bool) {
	idx := v.pool.layout.IndexOf(section)
	if idx < 0 {
		return 0, false
	}
	size := v.pool.layout[idx].Size
	if offset < 0 || offset > size {
		return 0, false
	}
	return v.pool.baseRaw[idx] + uintptr(offset), true
}
