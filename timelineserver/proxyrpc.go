// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package timelineserver exposes a Timeline over net/rpc, so a frontend
// (a GUI, a script) can drive the timeline engine out of process. For
// regularity every method has its own Request and Response type, even
// when not strictly necessary, the same convention program/proxyrpc
// uses.
package timelineserver

// GetRequest asks for the value at a compiled data path, rooted at a
// named global, at a specific frame.
type GetRequest struct {
	Frame  int64
	Symbol string
	Path   string
}

// GetResponse carries back the decoded value's string representation;
// the RPC boundary does not round-trip a typed memory.Value, only its
// rendering (clients needing the raw bits should use SetRequest's typed
// fields on a corresponding write instead).
type GetResponse struct {
	Value string
}

// SetRequest writes a value at a compiled data path, rooted at a named
// global, applied as a durable edit at Frame (not a transient poke of a
// cached slot). Exactly one of the XxxValue fields should be set,
// matching the field's primitive kind.
type SetRequest struct {
	Frame  int64
	Symbol string
	Path   string

	IntValue   *int64
	UintValue  *uint64
	FloatValue *float64
}

// SetResponse is empty; a non-nil RPC error indicates failure.
type SetResponse struct{}

// ClearRequest removes every edit previously recorded at Frame, if any.
type ClearRequest struct {
	Frame int64
}

// ClearResponse is empty.
type ClearResponse struct{}

// BalanceRequest asks the server to rebalance its slot cache around
// every registered hotspot, spending up to BudgetMillis milliseconds
// (0 runs to completion instead of stopping early).
type BalanceRequest struct {
	BudgetMillis int64
}

// BalanceResponse is empty.
type BalanceResponse struct{}

// SetHotspotRequest records (or updates) a named frame hint that
// Balance surrounds with checkpoints.
type SetHotspotRequest struct {
	Name  string
	Frame int64
}

// SetHotspotResponse is empty.
type SetHotspotResponse struct{}

// DeleteHotspotRequest removes a previously registered named hotspot.
type DeleteHotspotRequest struct {
	Name string
}

// DeleteHotspotResponse is empty.
type DeleteHotspotResponse struct{}
