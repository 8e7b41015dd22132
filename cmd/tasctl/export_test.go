// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wafel-tas/timeline/movie"
	"github.com/wafel-tas/timeline/wafi"
)

func TestReadInputsM64(t *testing.T) {
	var buf bytes.Buffer
	m := &movie.Movie{
		Inputs: []movie.Input{
			{Buttons: 0x8000, StickX: -10, StickY: 20},
			{Buttons: 0x0040, StickX: 0, StickY: 0},
		},
	}
	require.NoError(t, movie.Write(&buf, m))

	inputs, err := readInputs("run.m64", &buf)
	require.NoError(t, err)
	require.Len(t, inputs, 2)
	assert.Equal(t, uint16(0x8000), inputs[0].Buttons)
	assert.Equal(t, int8(-10), inputs[0].StickX)
	assert.Equal(t, uint16(0x0040), inputs[1].Buttons)
}

func TestReadInputsWafi(t *testing.T) {
	var buf bytes.Buffer
	doc := &wafi.Document{Inputs: []wafi.Input{{Buttons: 7, StickX: 1, StickY: 2}}}
	require.NoError(t, wafi.Write(&buf, doc))

	inputs, err := readInputs("run.wafi", &buf)
	require.NoError(t, err)
	require.Len(t, inputs, 1)
	assert.Equal(t, uint16(7), inputs[0].Buttons)
}

func TestWriteInputsRoundTripsThroughBothFormats(t *testing.T) {
	inputs := []wafi.Input{
		{Buttons: 0x8000, StickX: -128, StickY: 127},
		{Buttons: 0, StickX: 0, StickY: 0},
	}

	var wafiBuf bytes.Buffer
	require.NoError(t, writeInputs("wafi", inputs, &wafiBuf))
	got, err := readInputs("out.wafi", &wafiBuf)
	require.NoError(t, err)
	assert.Equal(t, inputs, got)

	var m64Buf bytes.Buffer
	require.NoError(t, writeInputs("m64", inputs, &m64Buf))
	got, err = readInputs("out.m64", &m64Buf)
	require.NoError(t, err)
	assert.Equal(t, inputs, got)
}

func TestWriteInputsRejectsUnknownFormat(t *testing.T) {
	err := writeInputs("bk2", nil, &bytes.Buffer{})
	assert.Error(t, err)
}
