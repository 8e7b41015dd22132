// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package typespec

import (
	"github.com/pkg/errors"
)

// maxSymbolHops bounds the number of Symbol indirections Resolve will
// follow before declaring a cycle (spec.md §3: "every symbol resolves in
// ≤ N hops").
const maxSymbolHops = 64

// Global describes a named global variable: its type and the address at
// which its value is stored in the hosting process (spec.md §3).
type Global struct {
	Name    string
	Type    *Type
	Address int64
}

// Spec is the immutable, namespaced description of a game binary's types,
// globals, and named constants, as derived from debug info. Nothing in
// this package mutates a Spec after construction.
type Spec struct {
	Structs  map[string]*Type
	Unions   map[string]*Type
	Typedefs map[string]*Type

	Globals   map[string]Global
	Constants map[string]int64
}

// New returns an empty Spec with its maps initialized, ready to be
// populated by a debug-info loader (out of scope for this package).
func New() *Spec {
	return &Spec{
		Structs:   map[string]*Type{},
		Unions:    map[string]*Type{},
		Typedefs:  map[string]*Type{},
		Globals:   map[string]Global{},
		Constants: map[string]int64{},
	}
}

func (s *Spec) namespace(ns Namespace) map[string]*Type {
	switch ns {
	case NamespaceStruct:
		return s.Structs
	case NamespaceUnion:
		return s.Unions
	case NamespaceTypedef:
		return s.Typedefs
	default:
		return nil
	}
}

// Lookup returns the type node registered under (ns, name), without
// resolving any Symbol indirection.
func (s *Spec) Lookup(ns Namespace, name string) (*Type, error) {
	m := s.namespace(ns)
	if m == nil {
		return nil, errors.Errorf("invalid namespace %v", ns)
	}
	t, ok := m[name]
	if !ok {
		return nil, errors.Errorf("undefined type: %s %s", ns, name)
	}
	return t, nil
}

// Resolve follows Symbol indirections until a concrete Kind is reached.
// Non-symbol types are returned unchanged.
func (s *Spec) Resolve(t *Type) (*Type, error) {
	for hops := 0; t.Kind == KindSymbol; hops++ {
		if hops >= maxSymbolHops {
			return nil, errors.Errorf("symbol %s %s did not resolve within %d hops (cycle?)", t.Namespace, t.Name, maxSymbolHops)
		}
		next, err := s.Lookup(t.Namespace, t.Name)
		if err != nil {
			return nil, errors.Wrapf(err, "resolving symbol %s %s", t.Namespace, t.Name)
		}
		t = next
	}
	return t, nil
}

// Field returns the {type, offset} of a named field on a struct/union
// type, auto-resolving Symbol indirection first.
func (s *Spec) Field(t *Type, name string) (*Field, error) {
	ct, err := s.Resolve(t)
	if err != nil {
		return nil, err
	}
	if ct.Kind != KindStruct && ct.Kind != KindUnion {
		return nil, errors.Errorf("asking for field %q of non-struct type %s", name, ct)
	}
	f := ct.field(name)
	if f == nil {
		return nil, errors.Errorf("field not defined: %s in %s", name, ct)
	}
	return f, nil
}

// Size returns the resolved size, in bytes, of t.
func (s *Spec) Size(t *Type) (int64, error) {
	ct, err := s.Resolve(t)
	if err != nil {
		return 0, err
	}
	return ct.Size, nil
}

// Align returns the resolved alignment, in bytes, of t.
func (s *Spec) Align(t *Type) (int64, error) {
	ct, err := s.Resolve(t)
	if err != nil {
		return 0, err
	}
	return ct.Align, nil
}

// Global looks up a named global variable.
func (s *Spec) Global(name string) (Global, error) {
	g, ok := s.Globals[name]
	if !ok {
		return Global{}, errors.Errorf("global variable not defined: %s", name)
	}
	return g, nil
}

// Constant looks up a named integer constant.
func (s *Spec) Constant(name string) (int64, error) {
	c, ok := s.Constants[name]
	if !ok {
		return 0, errors.Errorf("constant not defined: %s", name)
	}
	return c, nil
}

// AlignUp rounds off up to the next multiple of align (which must be a
// positive power of two), the same rule spec.md §4.A gives for computing
// a struct field's offset from declaration order when debug info omits
// it: offset = align_up(running_offset, field.type.align).
func AlignUp(off, align int64) int64 {
	if align <= 0 {
		return off
	}
	return (off + align - 1) &^ (align - 1)
}

// LayoutFields computes offsets (and the struct's own size/align) for a
// struct/union whose fields are given in declaration order but without
// explicit offsets, per spec.md §4.A. Fields with Offset already set
// (>= 0) are left alone; a Field with Offset == -1 gets
// align_up(running, field.type.align).
func LayoutFields(s *Spec, fields []Field, isUnion bool) (laidOut []Field, size, align int64, err error) {
	laidOut = make([]Field, len(fields))
	var running int64
	var maxAlign int64 = 1
	for i, f := range fields {
		fAlign, err := s.Align(f.Type)
		if err != nil {
			return nil, 0, 0, err
		}
		fSize, err := s.Size(f.Type)
		if err != nil {
			return nil, 0, 0, err
		}
		if fAlign > maxAlign {
			maxAlign = fAlign
		}
		off := f.Offset
		if off < 0 {
			if isUnion {
				off = 0
			} else {
				off = AlignUp(running, fAlign)
			}
		}
		laidOut[i] = Field{Name: f.Name, Offset: off, Type: f.Type}
		if isUnion {
			if fSize > running {
				running = fSize
			}
		} else {
			running = off + fSize
		}
	}
	size = AlignUp(running, maxAlign)
	return laidOut, size, maxAlign, nil
}

// Validate checks the structural invariants spec.md §4.A requires of a
// Spec before it is used: every field fits within its struct (after
// alignment), array sizes agree with length × stride when the length is
// known, and every Symbol resolves within the hop bound.
func (s *Spec) Validate() error {
	check := func(ns Namespace, name string, t *Type) error {
		switch t.Kind {
		case KindStruct, KindUnion:
			for _, f := range t.Fields {
				fSize, err := s.Size(f.Type)
				if err != nil {
					return errors.Wrapf(err, "%s %s field %s", ns, name, f.Name)
				}
				if f.Offset+fSize > t.Size {
					return errors.Errorf("%s %s: field %s (offset %d, size %d) exceeds type size %d", ns, name, f.Name, f.Offset, fSize, t.Size)
				}
			}
		case KindArray:
			if t.Count != UnknownLength && t.Count*t.Stride != t.Size {
				return errors.Errorf("%s %s: array size %d != length %d * stride %d", ns, name, t.Size, t.Count, t.Stride)
			}
		case KindSymbol:
			if _, err := s.Resolve(t); err != nil {
				return errors.Wrapf(err, "%s %s", ns, name)
			}
		}
		return nil
	}
	for name, t := range s.Structs {
		if err := check(NamespaceStruct, name, t); err != nil {
			return err
		}
	}
	for name, t := range s.Unions {
		if err := check(NamespaceUnion, name, t); err != nil {
			return err
		}
	}
	for name, t := range s.Typedefs {
		if err := check(NamespaceTypedef, name, t); err != nil {
			return err
		}
	}
	for name, g := range s.Globals {
		if g.Type.Kind == KindSymbol {
			if _, err := s.Resolve(g.Type); err != nil {
				return errors.Wrapf(err, "global %s", name)
			}
		}
	}
	return nil
}
