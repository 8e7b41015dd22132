// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package typespec is the read-only description of named types, fields,
// offsets, and globals derived from a game binary's debug info. Building
// a Spec (parsing debug info) is an external concern; this package only
// describes the structural shape and the accessors the rest of the core
// (memory, datapath, game) use to interpret bytes in a slot.
package typespec

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind is the coarse classification of a Type.
type Kind uint8

const (
	KindPrimitive Kind = iota
	KindPointer
	KindArray
	KindStruct
	KindUnion
	KindSymbol
	KindFunction
)

func (k Kind) String() string {
	switch k {
	case KindPrimitive:
		return "primitive"
	case KindPointer:
		return "pointer"
	case KindArray:
		return "array"
	case KindStruct:
		return "struct"
	case KindUnion:
		return "union"
	case KindSymbol:
		return "symbol"
	case KindFunction:
		return "function"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Namespace distinguishes the three symbol tables a Symbol type can be
// looked up in.
type Namespace uint8

const (
	NamespaceStruct Namespace = iota
	NamespaceUnion
	NamespaceTypedef
)

func (n Namespace) String() string {
	switch n {
	case NamespaceStruct:
		return "struct"
	case NamespaceUnion:
		return "union"
	case NamespaceTypedef:
		return "typedef"
	default:
		return fmt.Sprintf("Namespace(%d)", uint8(n))
	}
}

// UnknownLength marks an array Type whose element count is not known
// statically (spec.md §3: "length may be unknown").
const UnknownLength = -1

// Type is a node in the type graph: a primitive, pointer, array, struct,
// union, symbol indirection, or function. Size and Align are in bytes.
//
// Not every field is meaningful for every Kind:
//   - KindPrimitive: Name (one of the PrimitiveNames), Size, Align.
//   - KindPointer, KindArray: Elem. Array additionally carries Count
//     (UnknownLength if not statically known) and Stride.
//   - KindStruct, KindUnion: Fields, in declaration order.
//   - KindSymbol: Namespace + Name identify the type to resolve via a Spec.
//   - KindFunction: no further structure; only used as a pointer target.
type Type struct {
	Kind  Kind
	Name  string
	Size  int64
	Align int64

	Elem   *Type
	Count  int64
	Stride int64

	Fields []Field

	Namespace Namespace
}

// Field is one member of a struct or union Type.
type Field struct {
	Name   string
	Offset int64
	Type   *Type
}

func (t *Type) String() string {
	if t == nil {
		return "<nil type>"
	}
	switch t.Kind {
	case KindPrimitive:
		return t.Name
	case KindPointer:
		return "*" + t.Elem.String()
	case KindArray:
		if t.Count == UnknownLength {
			return "[]" + t.Elem.String()
		}
		return fmt.Sprintf("[%d]%s", t.Count, t.Elem.String())
	case KindSymbol:
		return t.Namespace.String() + " " + t.Name
	default:
		return t.Kind.String() + " " + t.Name
	}
}

// field looks up a member by name; it does not auto-deref or resolve
// symbols, callers (typically Spec.Field) do that.
func (t *Type) field(name string) *Field {
	for i := range t.Fields {
		if t.Fields[i].Name == name {
			return &t.Fields[i]
		}
	}
	return nil
}

// HasField reports whether a concrete struct/union Type directly defines
// a field with the given name.
func (t *Type) HasField(name string) bool {
	return t.field(name) != nil
}

// PrimitiveNames are the primitive type names a Spec may reference,
// mirroring the fixed-width C ABI types backing a game's state struct.
var PrimitiveNames = map[string]struct {
	Size  int64
	Align int64
	Float bool
	Unsig bool
}{
	"void": {0, 1, false, false},
	"u8":   {1, 1, false, true},
	"s8":   {1, 1, false, false},
	"u16":  {2, 2, false, true},
	"s16":  {2, 2, false, false},
	"u32":  {4, 4, false, true},
	"s32":  {4, 4, false, false},
	"u64":  {8, 8, false, true},
	"s64":  {8, 8, false, false},
	"f32":  {4, 4, true, false},
	"f64":  {8, 8, true, false},
}

// NewPrimitive returns the canonical Type for a primitive name, or an
// error if the name is not one of PrimitiveNames.
func NewPrimitive(name string) (*Type, error) {
	p, ok := PrimitiveNames[name]
	if !ok {
		return nil, errors.Errorf("unknown primitive type %q", name)
	}
	return &Type{Kind: KindPrimitive, Name: name, Size: p.Size, Align: p.Align}, nil
}
