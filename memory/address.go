// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package memory interprets the raw bytes of a slot through a typespec.Spec:
// symbol lookup, address arithmetic, and width-based primitive reads and
// writes, including the pointer rewriting a relocated base slot requires.
package memory

import (
	"fmt"

	"github.com/pkg/errors"
)

// AddressKind distinguishes the three forms an Address can take (spec.md
// §4.B): a Null address carries no location, an Absolute address is a raw
// process address meaningful only within the slot it was read from, and a
// Virtual address is a (section, offset) pair that is portable across
// slots because it does not depend on where a section happens to be
// mapped.
type AddressKind uint8

const (
	Null AddressKind = iota
	Absolute
	Virtual
)

func (k AddressKind) String() string {
	switch k {
	case Null:
		return "null"
	case Absolute:
		return "absolute"
	case Virtual:
		return "virtual"
	default:
		return fmt.Sprintf("AddressKind(%d)", uint8(k))
	}
}

// Address is a tri-state pointer value: Null, an Absolute raw address, or
// a Virtual (Section, Offset) pair. The zero value is Null.
type Address struct {
	Kind    AddressKind
	Raw     uintptr
	Section string
	Offset  int64
}

// NullAddress is the canonical null Address.
var NullAddress = Address{Kind: Null}

// Abs constructs an Absolute address.
func Abs(raw uintptr) Address {
	return Address{Kind: Absolute, Raw: raw}
}

// Virt constructs a Virtual address within the named section.
func Virt(section string, offset int64) Address {
	return Address{Kind: Virtual, Section: section, Offset: offset}
}

// IsNull reports whether a is the null address.
func (a Address) IsNull() bool {
	return a.Kind == Null
}

// Add returns the address offset by n bytes. Adding to a Null address
// yields Null, mirroring pointer arithmetic on a NULL C pointer.
func (a Address) Add(n int64) Address {
	switch a.Kind {
	case Null:
		return a
	case Absolute:
		return Abs(uintptr(int64(a.Raw) + n))
	case Virtual:
		return Virt(a.Section, a.Offset+n)
	default:
		return a
	}
}

func (a Address) String() string {
	switch a.Kind {
	case Null:
		return "<null>"
	case Absolute:
		return fmt.Sprintf("0x%x", a.Raw)
	case Virtual:
		return fmt.Sprintf("%s+0x%x", a.Section, a.Offset)
	default:
		return "<invalid address>"
	}
}

// Equal reports whether a and b denote the same address. Two addresses of
// different Kind are never equal, even if they happen to refer to the
// same byte (callers that need that comparison must resolve both to the
// same Kind first, e.g. via AddressSpace.Virtualize).
func (a Address) Equal(b Address) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case Null:
		return true
	case Absolute:
		return a.Raw == b.Raw
	case Virtual:
		return a.Section == b.Section && a.Offset == b.Offset
	default:
		return false
	}
}

// errInvalidAddress is the sentinel spec.md's InvalidAddress error kind
// wraps; callers can test for it with errors.Is after unwrapping through
// pkg/errors' Cause.
var errInvalidAddress = errors.New("invalid address")

// IsInvalidAddress reports whether err (or something it wraps) is the
// InvalidAddress error kind.
func IsInvalidAddress(err error) bool {
	return errors.Cause(err) == errInvalidAddress
}

func invalidAddressf(format string, args ...interface{}) error {
	return errors.Wrapf(errInvalidAddress, format, args...)
}

// InvalidAddressf builds an error satisfying IsInvalidAddress. It is
// exported so that other packages resolving addresses on this package's
// behalf (notably slot.View, whose resolve method is where a null
// dereference or an out-of-range address is actually first detected)
// can report spec.md §4.B's InvalidAddress kind rather than an
// unclassified error.
func InvalidAddressf(format string, args ...interface{}) error {
	return invalidAddressf(format, args...)
}

// errInvalidType is the sentinel spec.md §4.B's InvalidType error kind
// wraps: an operation was attempted against a type that cannot carry the
// value involved (e.g. reading a primitive of kind void).
var errInvalidType = errors.New("invalid type")

// IsInvalidType reports whether err (or something it wraps) is the
// InvalidType error kind.
func IsInvalidType(err error) bool {
	return errors.Cause(err) == errInvalidType
}

func invalidTypef(format string, args ...interface{}) error {
	return errors.Wrapf(errInvalidType, format, args...)
}
