// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memory

import "encoding/binary"

// Arch carries the few machine-dependent facts a Memory needs: the
// pointer width and the byte order debug info's primitive values were
// written in. Grounded on arch.Architecture's Int/Uint/Uintptr pattern,
// narrowed to the widths a game's state struct actually uses.
type Arch struct {
	PointerSize int
	ByteOrder   binary.ByteOrder
}

// AMD64 is the Arch of a 64-bit little-endian target, the only
// architecture a native SM64 build realistically runs on.
var AMD64 = Arch{PointerSize: 8, ByteOrder: binary.LittleEndian}

// X86 is the Arch of a 32-bit little-endian target.
var X86 = Arch{PointerSize: 4, ByteOrder: binary.LittleEndian}

func (a Arch) readUint(buf []byte, width int) uint64 {
	switch width {
	case 1:
		return uint64(buf[0])
	case 2:
		return uint64(a.ByteOrder.Uint16(buf))
	case 4:
		return uint64(a.ByteOrder.Uint32(buf))
	case 8:
		return a.ByteOrder.Uint64(buf)
	default:
		panic("unsupported integer width")
	}
}

func (a Arch) putUint(buf []byte, width int, v uint64) {
	switch width {
	case 1:
		buf[0] = byte(v)
	case 2:
		a.ByteOrder.PutUint16(buf, uint16(v))
	case 4:
		a.ByteOrder.PutUint32(buf, uint32(v))
	case 8:
		a.ByteOrder.PutUint64(buf, v)
	default:
		panic("unsupported integer width")
	}
}

func (a Arch) readUintptr(buf []byte) uintptr {
	return uintptr(a.readUint(buf, a.PointerSize))
}

func (a Arch) putUintptr(buf []byte, v uintptr) {
	a.putUint(buf, a.PointerSize, uint64(v))
}
