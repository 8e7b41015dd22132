// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memory

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/wafel-tas/timeline/typespec"
)

// Value is the decoded form of a primitive or pointer read out of a slot:
// a typespec.Type tag plus the Go-native representation appropriate to
// its Kind. Struct, union, and array reads do not produce a Value; callers
// navigate into them with a datapath.DataPath instead (spec.md §5).
type Value struct {
	Type *typespec.Type
	raw  interface{} // int64, uint64, float64, or Address
}

func intValue(t *typespec.Type, v int64) Value     { return Value{Type: t, raw: v} }
func uintValue(t *typespec.Type, v uint64) Value   { return Value{Type: t, raw: v} }
func floatValue(t *typespec.Type, v float64) Value { return Value{Type: t, raw: v} }
func addrValue(t *typespec.Type, v Address) Value  { return Value{Type: t, raw: v} }

// NewInt constructs a Value holding a signed integer, for Memory.Write.
func NewInt(t *typespec.Type, v int64) Value { return intValue(t, v) }

// NewUint constructs a Value holding an unsigned integer, for Memory.Write.
func NewUint(t *typespec.Type, v uint64) Value { return uintValue(t, v) }

// NewFloat constructs a Value holding a float, for Memory.Write.
func NewFloat(t *typespec.Type, v float64) Value { return floatValue(t, v) }

// NewAddr constructs a Value holding an Address, for Memory.Write of a
// pointer field.
func NewAddr(t *typespec.Type, v Address) Value { return addrValue(t, v) }

// Int returns v's value as a signed integer. It panics if v does not hold
// a signed-integer primitive; callers that aren't sure should check
// v.Type.Kind first.
func (v Value) Int() int64 {
	i, ok := v.raw.(int64)
	if !ok {
		panic(errors.Errorf("value of type %s is not a signed integer", v.Type))
	}
	return i
}

// Uint returns v's value as an unsigned integer.
func (v Value) Uint() uint64 {
	u, ok := v.raw.(uint64)
	if !ok {
		panic(errors.Errorf("value of type %s is not an unsigned integer", v.Type))
	}
	return u
}

// Float returns v's value as a float64, widening f32 as needed.
func (v Value) Float() float64 {
	f, ok := v.raw.(float64)
	if !ok {
		panic(errors.Errorf("value of type %s is not a float", v.Type))
	}
	return f
}

// Addr returns v's value as an Address.
func (v Value) Addr() Address {
	a, ok := v.raw.(Address)
	if !ok {
		panic(errors.Errorf("value of type %s is not a pointer", v.Type))
	}
	return a
}

func (v Value) String() string {
	switch r := v.raw.(type) {
	case int64:
		return fmt.Sprintf("%d", r)
	case uint64:
		return fmt.Sprintf("%d", r)
	case float64:
		return fmt.Sprintf("%g", r)
	case Address:
		return r.String()
	default:
		return "<invalid value>"
	}
}
