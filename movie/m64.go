// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package movie reads and writes the .m64 binary input-movie format: a
// fixed 0x400-byte header followed by one 4-byte input record per frame
// (spec.md §8's external wire formats).
package movie

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

const (
	headerSize = 0x400
	signature  = "M64\x1a"
)

// Header is the fixed-size metadata block at the start of an .m64 file.
// Field offsets follow the format long established by the Mupen64
// movie-recording community and consumed by every TAS tool that reads
// .m64 files.
type Header struct {
	Version          uint32
	MovieUID         uint32
	RerecordCount    uint32
	VIsPerFrame      uint8
	NumControllers   uint8
	StartType        uint16
	ControllerFlags  uint32
	RomName          string
	RomCRC           uint32
	RomCountry       uint16
	VideoPlugin      string
	InputPlugin      string
	AudioPlugin      string
	RSPPlugin        string
	Author           string
	Description      string
}

// Input is one frame's controller state.
type Input struct {
	Buttons uint16
	StickX  int8
	StickY  int8
}

// Movie is a parsed .m64 file: its header plus one Input per frame.
type Movie struct {
	Header Header
	Inputs []Input
}

func putFixedString(buf []byte, s string) {
	n := copy(buf, s)
	for i := n; i < len(buf); i++ {
		buf[i] = 0
	}
}

func getFixedString(buf []byte) string {
	i := bytes.IndexByte(buf, 0)
	if i < 0 {
		i = len(buf)
	}
	return string(buf[:i])
}

// Read parses an .m64 file from r.
func Read(r io.Reader) (*Movie, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "movie: reading m64 data")
	}
	if len(raw) < headerSize {
		return nil, errors.Errorf("movie: file is %d bytes, shorter than the %d-byte m64 header", len(raw), headerSize)
	}
	if string(raw[:4]) != signature {
		return nil, errors.Errorf("movie: bad signature %q, not an m64 file", raw[:4])
	}

	le := binary.LittleEndian
	h := Header{
		Version:         le.Uint32(raw[0x004:]),
		MovieUID:        le.Uint32(raw[0x008:]),
		RerecordCount:   le.Uint32(raw[0x010:]),
		VIsPerFrame:     raw[0x014],
		NumControllers:  raw[0x015],
		StartType:       le.Uint16(raw[0x01C:]),
		ControllerFlags: le.Uint32(raw[0x020:]),
		RomName:         getFixedString(raw[0x0C4:0x0E4]),
		RomCRC:          le.Uint32(raw[0x0E4:]),
		RomCountry:      le.Uint16(raw[0x0E8:]),
		VideoPlugin:     getFixedString(raw[0x122:0x162]),
		InputPlugin:     getFixedString(raw[0x162:0x1A2]),
		AudioPlugin:     getFixedString(raw[0x1A2:0x1E2]),
		RSPPlugin:       getFixedString(raw[0x1E2:0x222]),
		Author:          getFixedString(raw[0x222:0x300]),
		Description:     getFixedString(raw[0x300:0x400]),
	}
	numSamples := le.Uint32(raw[0x018:])

	body := raw[headerSize:]
	if len(body)%4 != 0 {
		return nil, errors.Errorf("movie: input data length %d is not a multiple of 4", len(body))
	}
	count := len(body) / 4
	if uint32(count) != numSamples {
		return nil, errors.Errorf("movie: header declares %d input samples but file contains %d", numSamples, count)
	}

	inputs := make([]Input, count)
	for i := 0; i < count; i++ {
		rec := body[i*4:]
		inputs[i] = Input{
			Buttons: le.Uint16(rec[0:2]),
			StickX:  int8(rec[2]),
			StickY:  int8(rec[3]),
		}
	}
	return &Movie{Header: h, Inputs: inputs}, nil
}

// Write serializes m as an .m64 file to w.
func Write(w io.Writer, m *Movie) error {
	buf := make([]byte, headerSize+4*len(m.Inputs))
	le := binary.LittleEndian
	copy(buf[0:4], signature)
	le.PutUint32(buf[0x004:], m.Header.Version)
	le.PutUint32(buf[0x008:], m.Header.MovieUID)
	le.PutUint32(buf[0x00C:], uint32(len(m.Inputs)))
	le.PutUint32(buf[0x010:], m.Header.RerecordCount)
	buf[0x014] = m.Header.VIsPerFrame
	buf[0x015] = m.Header.NumControllers
	le.PutUint32(buf[0x018:], uint32(len(m.Inputs)))
	le.PutUint16(buf[0x01C:], m.Header.StartType)
	le.PutUint32(buf[0x020:], m.Header.ControllerFlags)
	putFixedString(buf[0x0C4:0x0E4], m.Header.RomName)
	le.PutUint32(buf[0x0E4:], m.Header.RomCRC)
	le.PutUint16(buf[0x0E8:], m.Header.RomCountry)
	putFixedString(buf[0x122:0x162], m.Header.VideoPlugin)
	putFixedString(buf[0x162:0x1A2], m.Header.InputPlugin)
	putFixedString(buf[0x1A2:0x1E2], m.Header.AudioPlugin)
	putFixedString(buf[0x1E2:0x222], m.Header.RSPPlugin)
	putFixedString(buf[0x222:0x300], m.Header.Author)
	putFixedString(buf[0x300:0x400], m.Header.Description)

	for i, in := range m.Inputs {
		rec := buf[headerSize+i*4:]
		le.PutUint16(rec[0:2], in.Buttons)
		rec[2] = byte(in.StickX)
		rec[3] = byte(in.StickY)
	}
	_, err := w.Write(buf)
	return errors.Wrap(err, "movie: writing m64 data")
}
