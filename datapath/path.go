// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package datapath compiles a field/array/deref accessor chain into a
// flat sequence of address-computation Edges once, so that repeatedly
// reading or writing the same logical field (e.g. every frame, for
// every object in a list) does not re-walk field names or re-resolve
// symbols on every call (spec.md §5).
package datapath

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/wafel-tas/timeline/memory"
	"github.com/wafel-tas/timeline/typespec"
)

// EdgeKind is the two primitive steps a compiled path can take.
type EdgeKind uint8

const (
	// EdgeOffset adds a constant byte offset to the current address
	// (a struct field, or an array element at a known index).
	EdgeOffset EdgeKind = iota
	// EdgeDeref reads the pointer stored at the current address and
	// continues from wherever it points.
	EdgeDeref
)

// Edge is one step of a compiled DataPath.
type Edge struct {
	Kind   EdgeKind
	Offset int64
}

// DataPath is a compiled address expression: starting from an address of
// type Root, walking Edges yields an address holding a value of type
// Result.
type DataPath struct {
	Spec   *typespec.Spec
	Root   *typespec.Type
	Result *typespec.Type
	Edges  []Edge
}

// Address walks p's edges from base, returning the final address.
func (p *DataPath) Address(m *memory.Memory, base memory.Address) (memory.Address, error) {
	addr := base
	for i, e := range p.Edges {
		switch e.Kind {
		case EdgeOffset:
			addr = addr.Add(e.Offset)
		case EdgeDeref:
			next, err := m.ReadPointer(addr)
			if err != nil {
				return memory.NullAddress, errors.Wrapf(err, "dereferencing edge %d of path", i)
			}
			addr = next
		}
	}
	return addr, nil
}

// Get reads the scalar value p points to, starting from base.
func (p *DataPath) Get(m *memory.Memory, base memory.Address) (memory.Value, error) {
	addr, err := p.Address(m, base)
	if err != nil {
		return memory.Value{}, err
	}
	return m.Read(addr, p.Result)
}

// Set writes v to the location p points to, starting from base.
func (p *DataPath) Set(m *memory.Memory, base memory.Address, v memory.Value) error {
	addr, err := p.Address(m, base)
	if err != nil {
		return err
	}
	return m.Write(addr, p.Result, v)
}

// Concat composes a with b, provided a's result type matches b's root
// type: the combined path starts at a.Root and ends at b.Result.
func Concat(a, b *DataPath) (*DataPath, error) {
	if !typesCompatible(a.Result, b.Root) {
		return nil, errors.Errorf("cannot compose path ending in %s with path starting from %s", a.Result, b.Root)
	}
	edges := make([]Edge, 0, len(a.Edges)+len(b.Edges))
	edges = append(edges, a.Edges...)
	edges = append(edges, b.Edges...)
	return &DataPath{Spec: a.Spec, Root: a.Root, Result: b.Result, Edges: edges}, nil
}

// String renders the path for diagnostics as the root type followed by
// ".+N" for each offset edge and "->" for each dereference; field names
// and indices are not reproduced.
func (p *DataPath) String() string {
	var b strings.Builder
	b.WriteString(p.Root.String())
	for _, e := range p.Edges {
		switch e.Kind {
		case EdgeOffset:
			b.WriteString(".+")
			b.WriteString(itoa(e.Offset))
		case EdgeDeref:
			b.WriteString("->")
		}
	}
	return b.String()
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// typesCompatible reports whether two type nodes denote the same logical
// type, which for named aggregate/symbol types means the same
// Namespace+Name, and for structural types (pointer, array, primitive)
// means the same shape. Pointer identity is checked first since a Spec's
// type graph is not required to be interned.
func typesCompatible(a, b *typespec.Type) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case typespec.KindPrimitive:
		return a.Name == b.Name
	case typespec.KindPointer:
		return typesCompatible(a.Elem, b.Elem)
	case typespec.KindArray:
		return typesCompatible(a.Elem, b.Elem)
	case typespec.KindSymbol:
		return a.Namespace == b.Namespace && a.Name == b.Name
	case typespec.KindStruct, typespec.KindUnion:
		return a.Name == b.Name
	default:
		return a.Name == b.Name
	}
}
