// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slot

// Game is the contract a Pool drives: something that owns a single,
// live, single-threaded simulation advancing one frame at a time, and
// exposes its writable memory sections directly. Grounded on
// program.Program's Open/Run/Stop/Kill shape, narrowed to what a TAS
// frame-advance loop actually needs; game/dll implements Game over a
// dlopen'd native library, game/synthetic implements it in pure Go for
// tests.
type Game interface {
	// Layout reports the sections this Game divides its memory into.
	// It is called once, immediately after the Game is constructed, and
	// must not change afterward.
	Layout() Layout

	// Base returns a slice aliasing the live, current bytes of the named
	// section. The returned slice's backing array is allocated once and
	// does not move for the lifetime of the Game: callers may hold onto
	// it across calls to Advance and observe it mutate in place.
	Base(name string) ([]byte, error)

	// Advance runs the simulation forward exactly one frame, mutating
	// the bytes returned by Base in place.
	Advance() error

	// Close releases whatever resources back this Game (a loaded shared
	// library, a subprocess, an open file).
	Close() error
}
