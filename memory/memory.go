// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memory

import (
	"math"

	"github.com/pkg/errors"
	"github.com/wafel-tas/timeline/typespec"
)

// AddressSpace is the byte-level view a Memory interprets. A slot.View
// (one slot seen through its slot.Pool) is the concrete implementation:
// ReadAt/WriteAt move bytes to and from a
// slot's sections, and Virtualize/Localize translate between the raw
// addresses a particular slot's sections happen to be backed by and the
// portable (section, offset) form a pointer is rewritten to on read, per
// the "base slot points into foreign memory" design note.
type AddressSpace interface {
	ReadAt(addr Address, buf []byte) error
	WriteAt(addr Address, buf []byte) error

	// Virtualize reports the Virtual address corresponding to a raw
	// pointer value, if raw falls within one of this address space's
	// known sections. ok is false for a raw value outside every section
	// (e.g. it points into a part of the process this Memory was not
	// told about, or is simply garbage).
	Virtualize(raw uintptr) (addr Address, ok bool)

	// Localize is Virtualize's inverse: the raw address this address
	// space's copy of a section currently occupies.
	Localize(section string, offset int64) (raw uintptr, ok bool)
}

// Memory reads and writes typed values out of an AddressSpace by
// consulting a typespec.Spec for layout and a per-target Arch for
// primitive width and byte order.
type Memory struct {
	Spec  *typespec.Spec
	Arch  Arch
	Space AddressSpace
}

// New returns a Memory over the given spec, arch, and address space.
func New(spec *typespec.Spec, arch Arch, space AddressSpace) *Memory {
	return &Memory{Spec: spec, Arch: arch, Space: space}
}

// Symbol resolves a named global to the portable Virtual address of its
// storage, along with its declared type.
func (m *Memory) Symbol(name string) (Address, *typespec.Type, error) {
	g, err := m.Spec.Global(name)
	if err != nil {
		return NullAddress, nil, err
	}
	addr, ok := m.Space.Virtualize(uintptr(g.Address))
	if !ok {
		return NullAddress, nil, invalidAddressf("global %s: address 0x%x is outside every known section", name, g.Address)
	}
	return addr, g.Type, nil
}

// Read decodes the primitive or pointer value of type t stored at addr.
// Reading a struct, union, array, or function type is a programmer error;
// use a datapath.DataPath to navigate into aggregates instead.
func (m *Memory) Read(addr Address, t *typespec.Type) (Value, error) {
	ct, err := m.Spec.Resolve(t)
	if err != nil {
		return Value{}, err
	}
	switch ct.Kind {
	case typespec.KindPointer:
		return m.readPointer(addr, t)
	case typespec.KindPrimitive:
		if ct.Name == "void" {
			return Value{}, invalidTypef("cannot read a value of primitive type void")
		}
		return m.readPrimitive(addr, t, ct)
	default:
		return Value{}, errors.Errorf("cannot read a scalar value out of a %s type %s", ct.Kind, ct)
	}
}

// Write encodes v and stores it at addr. v.Type must be assignable to t
// (the same resolved primitive, or any pointer type when writing an
// Address).
func (m *Memory) Write(addr Address, t *typespec.Type, v Value) error {
	ct, err := m.Spec.Resolve(t)
	if err != nil {
		return err
	}
	switch ct.Kind {
	case typespec.KindPointer:
		return m.writePointer(addr, v)
	case typespec.KindPrimitive:
		if ct.Name == "void" {
			return invalidTypef("cannot write a value of primitive type void")
		}
		return m.writePrimitive(addr, ct, v)
	default:
		return errors.Errorf("cannot write a scalar value into a %s type %s", ct.Kind, ct)
	}
}

func (m *Memory) readPrimitive(addr Address, declared, resolved *typespec.Type) (Value, error) {
	buf := make([]byte, resolved.Size)
	if err := m.Space.ReadAt(addr, buf); err != nil {
		return Value{}, errors.Wrapf(err, "reading %s at %s", declared, addr)
	}
	p := typespec.PrimitiveNames[resolved.Name]
	switch {
	case p.Float && resolved.Size == 4:
		return floatValue(declared, float64(math.Float32frombits(m.Arch.ByteOrder.Uint32(buf)))), nil
	case p.Float && resolved.Size == 8:
		return floatValue(declared, math.Float64frombits(m.Arch.ByteOrder.Uint64(buf))), nil
	case p.Unsig:
		return uintValue(declared, m.Arch.readUint(buf, int(resolved.Size))), nil
	default:
		return intValue(declared, signExtend(m.Arch.readUint(buf, int(resolved.Size)), int(resolved.Size))), nil
	}
}

func (m *Memory) writePrimitive(addr Address, resolved *typespec.Type, v Value) error {
	buf := make([]byte, resolved.Size)
	p := typespec.PrimitiveNames[resolved.Name]
	switch {
	case p.Float && resolved.Size == 4:
		m.Arch.ByteOrder.PutUint32(buf, math.Float32bits(float32(v.Float())))
	case p.Float && resolved.Size == 8:
		m.Arch.ByteOrder.PutUint64(buf, math.Float64bits(v.Float()))
	case p.Unsig:
		m.Arch.putUint(buf, int(resolved.Size), v.Uint())
	default:
		m.Arch.putUint(buf, int(resolved.Size), uint64(v.Int()))
	}
	return errors.Wrapf(m.Space.WriteAt(addr, buf), "writing to %s", addr)
}

// ReadPointer reads the raw pointer-width value stored at addr and
// rewrites it into a portable Address, without requiring a declared
// typespec.Type. datapath uses this to follow a Deref edge, where the
// pointee's element type (not the pointer's own type) is what callers
// care about.
func (m *Memory) ReadPointer(addr Address) (Address, error) {
	v, err := m.readPointer(addr, nil)
	if err != nil {
		return NullAddress, err
	}
	return v.Addr(), nil
}

// WritePointer stores target's raw representation at addr.
func (m *Memory) WritePointer(addr Address, target Address) error {
	return m.writePointer(addr, addrValue(nil, target))
}

func (m *Memory) readPointer(addr Address, declared *typespec.Type) (Value, error) {
	buf := make([]byte, m.Arch.PointerSize)
	if err := m.Space.ReadAt(addr, buf); err != nil {
		return Value{}, errors.Wrapf(err, "reading pointer %s at %s", declared, addr)
	}
	raw := m.Arch.readUintptr(buf)
	if raw == 0 {
		return addrValue(declared, NullAddress), nil
	}
	if virt, ok := m.Space.Virtualize(raw); ok {
		return addrValue(declared, virt), nil
	}
	// Outside every known section: keep it as an Absolute address, valid
	// only within the slot it was read from (e.g. a pointer into the
	// game's dynamic heap allocator bookkeeping, or a foreign address).
	return addrValue(declared, Abs(raw)), nil
}

func (m *Memory) writePointer(addr Address, v Value) error {
	target := v.Addr()
	var raw uintptr
	switch target.Kind {
	case Null:
		raw = 0
	case Absolute:
		raw = target.Raw
	case Virtual:
		r, ok := m.Space.Localize(target.Section, target.Offset)
		if !ok {
			return invalidAddressf("cannot localize %s into this address space", target)
		}
		raw = r
	}
	buf := make([]byte, m.Arch.PointerSize)
	m.Arch.putUintptr(buf, raw)
	return errors.Wrapf(m.Space.WriteAt(addr, buf), "writing pointer to %s", addr)
}

// signExtend widens a raw little-endian-decoded unsigned value read out
// of a narrower signed field to a full int64.
func signExtend(u uint64, width int) int64 {
	shift := uint(64 - width*8)
	return int64(u<<shift) >> shift
}
