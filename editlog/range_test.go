// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package editlog_test

import (
	"reflect"
	"testing"

	"github.com/wafel-tas/timeline/editlog"
	"github.com/wafel-tas/timeline/memory"
)

var rangeKey = editlog.Key{Symbol: "gControllerPads", Path: "[0].button"}

// TestRangeSetAddShrinksOverlap is concrete scenario 5: inserting R2
// over part of R1 shrinks R1 rather than merging the two.
func TestRangeSetAddShrinksOverlap(t *testing.T) {
	var s editlog.RangeSet
	s.Add(editlog.EditRange{Key: rangeKey, Start: 10, End: 20, Value: memory.NewUint(nil, 1)})
	s.Add(editlog.EditRange{Key: rangeKey, Start: 15, End: 25, Value: memory.NewUint(nil, 2)})

	got := s.Ranges()
	want := []editlog.EditRange{
		{Key: rangeKey, Start: 10, End: 15, Value: memory.NewUint(nil, 1)},
		{Key: rangeKey, Start: 15, End: 25, Value: memory.NewUint(nil, 2)},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Ranges() = %+v, want %+v", got, want)
	}
}

func TestRangeSetRemoveSplits(t *testing.T) {
	var s editlog.RangeSet
	s.Add(editlog.EditRange{Key: rangeKey, Start: 0, End: 20})
	s.Remove(editlog.EditRange{Start: 8, End: 12})

	got := s.Ranges()
	want := []editlog.EditRange{
		{Key: rangeKey, Start: 0, End: 8},
		{Key: rangeKey, Start: 12, End: 20},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Ranges() = %+v, want %+v", got, want)
	}
}

func TestRangeSetCovers(t *testing.T) {
	var s editlog.RangeSet
	s.Add(editlog.EditRange{Key: rangeKey, Start: 5, End: 15})

	for _, f := range []int64{5, 10, 14} {
		if _, ok := s.Covers(f); !ok {
			t.Errorf("Covers(%d) = false, want true", f)
		}
	}
	for _, f := range []int64{4, 15, 100} {
		if _, ok := s.Covers(f); ok {
			t.Errorf("Covers(%d) = true, want false", f)
		}
	}
}

// TestLogInsertFrameShiftsRange is concrete scenario 6.
func TestLogInsertFrameShiftsRange(t *testing.T) {
	log := editlog.New(editlog.NoOp())
	log.SetRange(rangeKey, 10, 20, memory.Value{}, func(m *memory.Memory) error { return nil })

	log.InsertFrame(5)
	want := []editlog.EditRange{{Key: rangeKey, Start: 11, End: 21}}
	if got := log.Ranges(rangeKey); !rangesEqualIgnoringMutate(got, want) {
		t.Fatalf("after insert_frame(5): Ranges() = %+v, want %+v", got, want)
	}

	log.InsertFrame(15)
	want = []editlog.EditRange{{Key: rangeKey, Start: 11, End: 22}}
	if got := log.Ranges(rangeKey); !rangesEqualIgnoringMutate(got, want) {
		t.Fatalf("after insert_frame(15): Ranges() = %+v, want %+v", got, want)
	}
}

func rangesEqualIgnoringMutate(got, want []editlog.EditRange) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		g, w := got[i], want[i]
		g.Mutate, w.Mutate = nil, nil
		if !reflect.DeepEqual(g, w) {
			return false
		}
	}
	return true
}

func TestOpSequenceInvertRoundTrips(t *testing.T) {
	seq := editlog.OpSequence{Atoms: []editlog.OpAtom{
		{Kind: editlog.OpInsert, Start: 0, Length: 5},
		{Kind: editlog.OpOverwrite, Start: 5, Length: 2, Prior: []byte{1, 2}, Data: []byte{9, 9}},
	}}
	inv := seq.Invert()
	back := inv.Invert()

	if !reflect.DeepEqual(seq, back) {
		t.Fatalf("double invert = %+v, want %+v", back, seq)
	}
	if inv.Atoms[0].Kind != editlog.OpOverwrite || !reflect.DeepEqual(inv.Atoms[0].Data, []byte{1, 2}) {
		t.Fatalf("inverted overwrite atom = %+v", inv.Atoms[0])
	}
	if inv.Atoms[1].Kind != editlog.OpDelete {
		t.Fatalf("inverted insert should be delete, got %+v", inv.Atoms[1])
	}
}

func TestTentativeExtendReplacesSameStart(t *testing.T) {
	tent := editlog.NewTentative()
	tent.Extend(editlog.OpAtom{Kind: editlog.OpOverwrite, Start: 3, Length: 1})
	tent.Extend(editlog.OpAtom{Kind: editlog.OpOverwrite, Start: 3, Length: 2})

	preview := tent.Preview()
	if len(preview.Atoms) != 1 || preview.Atoms[0].Length != 2 {
		t.Fatalf("preview = %+v, want one atom of length 2", preview)
	}
}

func TestTentativeCommitOnlyOnce(t *testing.T) {
	tent := editlog.NewTentative()
	tent.Extend(editlog.OpAtom{Kind: editlog.OpInsert, Start: 0, Length: 1})

	if _, err := tent.Commit(); err != nil {
		t.Fatalf("first Commit: %v", err)
	}
	if _, err := tent.Commit(); err == nil {
		t.Fatalf("second Commit should fail")
	}
}
