// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package wafi reads and writes the .wafi format: a version-tagged JSON
// document whose per-frame inputs may be encoded either as a compact
// 3-element array (buttons, stick X, stick Y) or as a full object
// carrying additional named fields, chosen independently for each frame
// (spec.md §8's external wire formats).
package wafi

import (
	"encoding/json"
	"io"

	"github.com/pkg/errors"
)

// CurrentVersion is written by Write; Read accepts any positive version
// without comparing it to CurrentVersion.
const CurrentVersion = 2

// Input is one frame's recorded controller state, plus any additional
// named fields an editor has attached to it (e.g. an annotation). Extra
// is nil for an array-encoded frame, since the array form has no room
// for additional fields.
type Input struct {
	Buttons uint16
	StickX  int8
	StickY  int8
	Extra   map[string]json.RawMessage
}

// arrayForm is Input's compact [buttons, x, y] encoding.
type arrayForm [3]int

// objectForm is Input's full encoding, inlined into the same JSON object
// as any Extra fields via a second unmarshal pass.
type objectForm struct {
	Buttons uint16 `json:"buttons"`
	StickX  int8   `json:"stick_x"`
	StickY  int8   `json:"stick_y"`
}

var reservedKeys = map[string]bool{"buttons": true, "stick_x": true, "stick_y": true}

// UnmarshalJSON implements the alternating encoding: a '[' token decodes
// as the compact array form, a '{' token decodes as the object form.
func (in *Input) UnmarshalJSON(data []byte) error {
	trimmed := trimLeadingSpace(data)
	if len(trimmed) == 0 {
		return errors.New("wafi: empty input record")
	}
	switch trimmed[0] {
	case '[':
		var a arrayForm
		if err := json.Unmarshal(data, &a); err != nil {
			return errors.Wrap(err, "wafi: decoding array-form input")
		}
		in.Buttons = uint16(a[0])
		in.StickX = int8(a[1])
		in.StickY = int8(a[2])
		in.Extra = nil
		return nil
	case '{':
		var o objectForm
		if err := json.Unmarshal(data, &o); err != nil {
			return errors.Wrap(err, "wafi: decoding object-form input")
		}
		var raw map[string]json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return errors.Wrap(err, "wafi: decoding object-form input fields")
		}
		for k := range reservedKeys {
			delete(raw, k)
		}
		in.Buttons, in.StickX, in.StickY = o.Buttons, o.StickX, o.StickY
		if len(raw) > 0 {
			in.Extra = raw
		} else {
			in.Extra = nil
		}
		return nil
	default:
		return errors.Errorf("wafi: input record must be a JSON array or object, got %q", trimmed[:1])
	}
}

// MarshalJSON uses the compact array form when there are no Extra
// fields, and the object form otherwise.
func (in Input) MarshalJSON() ([]byte, error) {
	if len(in.Extra) == 0 {
		return json.Marshal(arrayForm{int(in.Buttons), int(in.StickX), int(in.StickY)})
	}
	m := make(map[string]json.RawMessage, len(in.Extra)+3)
	for k, v := range in.Extra {
		m[k] = v
	}
	buttons, _ := json.Marshal(in.Buttons)
	stickX, _ := json.Marshal(in.StickX)
	stickY, _ := json.Marshal(in.StickY)
	m["buttons"] = buttons
	m["stick_x"] = stickX
	m["stick_y"] = stickY
	return json.Marshal(m)
}

func trimLeadingSpace(b []byte) []byte {
	i := 0
	for i < len(b) {
		switch b[i] {
		case ' ', '\t', '\n', '\r':
			i++
		default:
			return b[i:]
		}
	}
	return b[i:]
}

// Metadata is the document-level information stored alongside inputs.
type Metadata struct {
	RomName     string `json:"rom_name,omitempty"`
	Author      string `json:"author,omitempty"`
	Description string `json:"description,omitempty"`
}

// Document is the full contents of a .wafi file.
type Document struct {
	Version  int      `json:"version"`
	Metadata Metadata `json:"metadata"`
	Inputs   []Input  `json:"inputs"`
}

// Read parses a .wafi document from r.
func Read(r io.Reader) (*Document, error) {
	var d Document
	dec := json.NewDecoder(r)
	if err := dec.Decode(&d); err != nil {
		return nil, errors.Wrap(err, "wafi: decoding document")
	}
	if d.Version <= 0 {
		return nil, errors.Errorf("wafi: missing or invalid version %d", d.Version)
	}
	return &d, nil
}

// Write serializes d as indented JSON to w. d.Version is overwritten
// with CurrentVersion.
func Write(w io.Writer, d *Document) error {
	d.Version = CurrentVersion
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(d), "wafi: encoding document")
}
