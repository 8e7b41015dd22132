// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package datapath

import (
	"strconv"

	"github.com/pkg/errors"
	"github.com/wafel-tas/timeline/typespec"
)

// Compiler turns the informal dotted/bracketed source syntax
// ("name.field[3].ptr[].sub") into a compiled DataPath, resolving field
// names and array strides against a typespec.Spec as it goes.
type Compiler struct {
	Spec *typespec.Spec
}

// NewCompiler returns a Compiler resolving names against spec.
func NewCompiler(spec *typespec.Spec) *Compiler {
	return &Compiler{Spec: spec}
}

// Compile parses source — optionally beginning with a leading anchor
// name documenting what root denotes, e.g. "marioState.pos[0]" — and
// returns the DataPath it describes, starting from root.
//
// "." and "->" are accepted interchangeably: whichever is used, a field
// access through a pointer auto-dereferences first (typed/auto-deref
// compilation), so "a.b" and "a->b" compile identically when a is a
// pointer. "[n]" indexes an array in place, or auto-dereferences and
// indexes through a pointer; bare "[]" is an explicit pointer deref with
// no offset.
func (c *Compiler) Compile(root *typespec.Type, source string) (*DataPath, error) {
	toks, err := tokenize(source)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing data path %q", source)
	}
	p := &parser{c: c, toks: toks, cur: root}
	if err := p.parse(); err != nil {
		return nil, errors.Wrapf(err, "compiling data path %q", source)
	}
	return &DataPath{Spec: c.Spec, Root: root, Result: p.cur, Edges: p.edges}, nil
}

type tokKind uint8

const (
	tokIdent tokKind = iota
	tokDot
	tokArrow
	tokLBracket
	tokRBracket
	tokNumber
)

type token struct {
	kind tokKind
	text string
}

func tokenize(s string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == '.':
			toks = append(toks, token{kind: tokDot})
			i++
		case c == '-' && i+1 < len(s) && s[i+1] == '>':
			toks = append(toks, token{kind: tokArrow})
			i += 2
		case c == '[':
			toks = append(toks, token{kind: tokLBracket})
			i++
		case c == ']':
			toks = append(toks, token{kind: tokRBracket})
			i++
		case isDigit(c):
			j := i
			for j < len(s) && isDigit(s[j]) {
				j++
			}
			toks = append(toks, token{kind: tokNumber, text: s[i:j]})
			i = j
		case isIdentStart(c):
			j := i
			for j < len(s) && isIdentPart(s[j]) {
				j++
			}
			toks = append(toks, token{kind: tokIdent, text: s[i:j]})
			i = j
		default:
			return nil, errors.Errorf("unexpected character %q at offset %d", c, i)
		}
	}
	return toks, nil
}

func isDigit(c byte) bool      { return c >= '0' && c <= '9' }
func isIdentStart(c byte) bool { return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
func isIdentPart(c byte) bool  { return isIdentStart(c) || isDigit(c) }

type parser struct {
	c    *Compiler
	toks []token
	pos  int
	cur  *typespec.Type
	edges []Edge
}

func (p *parser) peek() (token, bool) {
	if p.pos >= len(p.toks) {
		return token{}, false
	}
	return p.toks[p.pos], true
}

func (p *parser) next() (token, bool) {
	t, ok := p.peek()
	if ok {
		p.pos++
	}
	return t, ok
}

// parse consumes an optional leading bare identifier (a documentation-
// only anchor for the root), then a sequence of field/index selectors.
func (p *parser) parse() error {
	if t, ok := p.peek(); ok && t.kind == tokIdent {
		p.pos++
	}
	for {
		t, ok := p.next()
		if !ok {
			return nil
		}
		switch t.kind {
		case tokDot, tokArrow:
			name, ok := p.next()
			if !ok || name.kind != tokIdent {
				return errors.New("expected field name after '.' or '->'")
			}
			if err := p.field(name.text); err != nil {
				return err
			}
		case tokLBracket:
			if err := p.index(); err != nil {
				return err
			}
		default:
			return errors.Errorf("unexpected token in data path")
		}
	}
}

// field auto-derefs p.cur if it is a pointer, then resolves name as a
// field of the (now struct/union) type, advancing p.cur to the field's
// type and appending the corresponding edges.
func (p *parser) field(name string) error {
	resolved, err := p.c.Spec.Resolve(p.cur)
	if err != nil {
		return err
	}
	if resolved.Kind == typespec.KindPointer {
		p.edges = append(p.edges, Edge{Kind: EdgeDeref})
		resolved, err = p.c.Spec.Resolve(resolved.Elem)
		if err != nil {
			return err
		}
	}
	f, err := p.c.Spec.Field(resolved, name)
	if err != nil {
		return err
	}
	p.edges = append(p.edges, Edge{Kind: EdgeOffset, Offset: f.Offset})
	p.cur = f.Type
	return nil
}

// index handles "[n]" and the bare "[]" deref sugar.
func (p *parser) index() error {
	t, ok := p.next()
	if !ok {
		return errors.New("unterminated '['")
	}
	if t.kind == tokRBracket {
		resolved, err := p.c.Spec.Resolve(p.cur)
		if err != nil {
			return err
		}
		if resolved.Kind != typespec.KindPointer {
			return errors.Errorf("'[]' requires a pointer, got %s", resolved)
		}
		p.edges = append(p.edges, Edge{Kind: EdgeDeref})
		p.cur = resolved.Elem
		return nil
	}
	if t.kind != tokNumber {
		return errors.New("expected a number or ']' inside '['")
	}
	n, err := strconv.ParseInt(t.text, 10, 64)
	if err != nil {
		return errors.Wrapf(err, "parsing array index %q", t.text)
	}
	close, ok := p.next()
	if !ok || close.kind != tokRBracket {
		return errors.New("expected closing ']'")
	}

	resolved, err := p.c.Spec.Resolve(p.cur)
	if err != nil {
		return err
	}
	switch resolved.Kind {
	case typespec.KindArray:
		if resolved.Count != typespec.UnknownLength && n >= resolved.Count {
			return errors.Errorf("index %d out of range for array of length %d", n, resolved.Count)
		}
		p.edges = append(p.edges, Edge{Kind: EdgeOffset, Offset: n * resolved.Stride})
		p.cur = resolved.Elem
	case typespec.KindPointer:
		elemSize, err := p.c.Spec.Size(resolved.Elem)
		if err != nil {
			return err
		}
		p.edges = append(p.edges, Edge{Kind: EdgeDeref})
		p.edges = append(p.edges, Edge{Kind: EdgeOffset, Offset: n * elemSize})
		p.cur = resolved.Elem
	default:
		return errors.Errorf("cannot index into %s", resolved)
	}
	return nil
}
