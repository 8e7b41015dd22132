// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package editlog

import (
	"github.com/pkg/errors"
	"github.com/wafel-tas/timeline/memory"
)

// EditRange is a half-open frame interval [Start, End) over which Key is
// held at Value by repeatedly invoking Mutate (e.g. "hold A frames
// 10-20"). Value is kept alongside Mutate purely for display/inspection;
// applying the range always runs Mutate, the same as a point Edit.
type EditRange struct {
	Key        Key
	Start, End int64
	Value      memory.Value
	Mutate     func(m *memory.Memory) error
}

func (r EditRange) Len() int64 { return r.End - r.Start }

// overlaps reports whether r and o share any frame.
func (r EditRange) overlaps(o EditRange) bool {
	return r.Start < o.End && o.Start < r.End
}

// RangeSet is a sorted, disjoint collection of EditRanges over a single
// variable, the structure a range edit track maintains so that setting
// or clearing a span automatically splits or shrinks its neighbors;
// ranges are never merged (spec.md §4.F's range-edit set algebra).
type RangeSet struct {
	ranges []EditRange
}

// Ranges returns the set's current disjoint ranges, in ascending order.
func (s *RangeSet) Ranges() []EditRange {
	out := make([]EditRange, len(s.ranges))
	copy(out, s.ranges)
	return out
}

// Add inserts r into the set. Any existing range r overlaps is trimmed to
// make room for r rather than merged with it: a later-added range always
// wins over the frames it covers, whatever its value (concrete
// scenario 5: R1=[10,20)=A then R2=[15,25)=B leaves {[10,15)=A,
// [15,25)=B}, not one merged range).
func (s *RangeSet) Add(r EditRange) {
	if r.Len() <= 0 {
		return
	}
	var out []EditRange
	for _, e := range s.ranges {
		if !e.overlaps(r) {
			out = append(out, e)
			continue
		}
		if e.Start < r.Start {
			head := e
			head.End = r.Start
			out = append(out, head)
		}
		if e.End > r.End {
			tail := e
			tail.Start = r.End
			out = append(out, tail)
		}
	}
	out = append(out, r)
	s.ranges = sortRanges(out)
}

// Remove clears [start,end) from the set for every range it touches,
// regardless of key, splitting any range that straddles one of the
// interval's endpoints and shrinking or dropping any range fully or
// partially covered.
func (s *RangeSet) Remove(clear EditRange) {
	if clear.Len() <= 0 {
		return
	}
	var out []EditRange
	for _, e := range s.ranges {
		if !e.overlaps(clear) {
			out = append(out, e)
			continue
		}
		if e.Start < clear.Start {
			head := e
			head.End = clear.Start
			out = append(out, head)
		}
		if e.End > clear.End {
			tail := e
			tail.Start = clear.End
			out = append(out, tail)
		}
	}
	s.ranges = sortRanges(out)
}

// Covers reports whether frame falls within some range in the set, and
// returns that range if so.
func (s *RangeSet) Covers(frame int64) (EditRange, bool) {
	for _, e := range s.ranges {
		if frame >= e.Start && frame < e.End {
			return e, true
		}
	}
	return EditRange{}, false
}

// insertFrame implements spec.md §4.F's frame-insertion shift: a range
// entirely at or after f shifts forward by one frame; a range that
// straddles f (started before it, ends at or after it) stretches by one
// frame instead, since the newly inserted frame falls inside it.
func (s *RangeSet) insertFrame(f int64) {
	for i, e := range s.ranges {
		switch {
		case e.Start >= f:
			e.Start++
			e.End++
		case f <= e.End-1:
			e.End++
		}
		s.ranges[i] = e
	}
}

// deleteFrame is insertFrame's inverse: a range entirely after f shifts
// back by one; a range straddling f shrinks by one instead. A range
// shrunk to empty is dropped.
func (s *RangeSet) deleteFrame(f int64) {
	var out []EditRange
	for _, e := range s.ranges {
		switch {
		case e.Start > f:
			e.Start--
			e.End--
		case e.Start <= f && f < e.End:
			e.End--
		}
		if e.Len() > 0 {
			out = append(out, e)
		}
	}
	s.ranges = out
}

func sortRanges(rs []EditRange) []EditRange {
	for i := 1; i < len(rs); i++ {
		for j := i; j > 0 && rs[j-1].Start > rs[j].Start; j-- {
			rs[j-1], rs[j] = rs[j], rs[j-1]
		}
	}
	return rs
}

// OpKind classifies an OpAtom's effect on a frame sequence.
type OpKind uint8

const (
	OpInsert OpKind = iota
	OpDelete
	OpOverwrite
)

// OpAtom is one primitive, invertible edit to a frame sequence: insert
// Length frames at Start, delete Length frames starting at Start, or
// overwrite Length frames starting at Start (carrying the prior
// contents in Prior so the edit can be undone exactly).
type OpAtom struct {
	Kind   OpKind
	Start  int64
	Length int64
	Prior  []byte // only meaningful for OpOverwrite; the bytes it replaced
	Data   []byte // only meaningful for OpOverwrite; the bytes it wrote
}

// Invert returns the atom that undoes a. Insert and Delete are exact
// inverses of each other by construction; Overwrite inverts to writing
// Prior back over Data.
func (a OpAtom) Invert() OpAtom {
	switch a.Kind {
	case OpInsert:
		return OpAtom{Kind: OpDelete, Start: a.Start, Length: a.Length}
	case OpDelete:
		return OpAtom{Kind: OpInsert, Start: a.Start, Length: a.Length}
	case OpOverwrite:
		return OpAtom{Kind: OpOverwrite, Start: a.Start, Length: a.Length, Prior: a.Data, Data: a.Prior}
	default:
		return a
	}
}

// OpSequence is an ordered, invertible composition of OpAtoms, applied
// left to right; a drag-preview edit builds one of these as a tentative
// operation and only commits it to an editlog.Log once the drag ends.
type OpSequence struct {
	Atoms []OpAtom
}

// Invert reverses and inverts every atom, so that applying Invert()
// after Atoms restores the original sequence exactly.
func (s OpSequence) Invert() OpSequence {
	inv := make([]OpAtom, len(s.Atoms))
	for i, a := range s.Atoms {
		inv[len(s.Atoms)-1-i] = a.Invert()
	}
	return OpSequence{Atoms: inv}
}

// Tentative is a drag-preview operation: a sequence that has not yet
// been committed. Commit freezes it into an immutable OpSequence;
// Cancel discards it. Neither mutates an editlog.Log directly — that is
// the caller's responsibility once Commit returns the final sequence.
type Tentative struct {
	seq       OpSequence
	committed bool
}

// NewTentative starts a new drag-preview operation.
func NewTentative() *Tentative {
	return &Tentative{}
}

// Extend appends an atom to the in-progress operation, replacing any
// previously appended atom at the same Start (so that dragging further
// updates the preview in place rather than accumulating one atom per
// mouse-move event).
func (t *Tentative) Extend(a OpAtom) {
	for i, existing := range t.seq.Atoms {
		if existing.Start == a.Start {
			t.seq.Atoms[i] = a
			return
		}
	}
	t.seq.Atoms = append(t.seq.Atoms, a)
}

// Preview returns the operation as it stands, for rendering a live
// preview without committing it.
func (t *Tentative) Preview() OpSequence {
	return t.seq
}

// Commit finalizes the tentative operation and returns it. A Tentative
// can only be committed once.
func (t *Tentative) Commit() (OpSequence, error) {
	if t.committed {
		return OpSequence{}, errors.New("editlog: tentative operation already committed")
	}
	t.committed = true
	return t.seq, nil
}

// Cancel discards the tentative operation; its atoms are never applied.
func (t *Tentative) Cancel() {
	t.seq = OpSequence{}
	t.committed = true
}
