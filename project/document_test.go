// go-fpgaboard
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-fpgaboard.
//
// go-fpgaboard is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-fpgaboard is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-fpgaboard; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package project

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZaparooProject/go-fpgaboard"
)

func TestNewDocument_Encode(t *testing.T) {
	t.Parallel()

	ports, err := NewPortMap(PortEntry{Name: "A", Position: "1"}, PortEntry{Name: "B", Position: "2"})
	require.NoError(t, err)

	data, err := NewDocument("clock", ports).Encode()
	require.NoError(t, err)

	want := `{
  "subscribedInstances": {},
  "hardwarePortsMap": {},
  "inputPortsMap": {},
  "projectInstancePortsMap": {},
  "layout": [],
  "projectPortsMap": {
    "A": "1",
    "B": "2"
  },
  "bitfile": "",
  "projectName": "clock"
}`
	assert.Equal(t, want, string(data))
}

func TestNewDocument_NilPorts(t *testing.T) {
	t.Parallel()

	doc := NewDocument("empty", nil)
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"subscribedInstances": {}, "hardwarePortsMap": {}, "inputPortsMap": {},
		"projectInstancePortsMap": {}, "layout": [], "projectPortsMap": {},
		"bitfile": "", "projectName": "empty"
	}`, string(data))
}

func TestDocument_RoundTripPreservesEverything(t *testing.T) {
	t.Parallel()

	input := `{
		"projectName": "alarm",
		"bitfile": "C:\\bits\\alarm.bit",
		"projectPortsMap": {"sec_out": "P3", "min_out": "P4"},
		"hardwarePortsMap": {"led0": {"kind": "led", "index": 0}},
		"inputPortsMap": {},
		"projectInstancePortsMap": {"u1": ["sec_out"]},
		"subscribedInstances": {"u1": true},
		"layout": [{"i": "u1", "x": 0, "y": 2, "w": 4, "h": 3}],
		"theme": "dark",
		"zoom": 1.5
	}`

	doc, err := ParseDocument([]byte(input))
	require.NoError(t, err)
	assert.Equal(t, "alarm", doc.ProjectName)
	assert.Equal(t, `C:\bits\alarm.bit`, doc.Bitfile)
	assert.Equal(t, []string{"sec_out", "min_out"}, doc.ProjectPorts.Names())
	assert.Len(t, doc.Layout, 1)
	assert.Len(t, doc.Extra, 2)

	out, err := doc.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, input, string(out))

	again, err := ParseDocument(out)
	require.NoError(t, err)
	assert.Equal(t, doc.ProjectPorts.Entries(), again.ProjectPorts.Entries())
}

func TestDocument_UnmarshalFillsMissing(t *testing.T) {
	t.Parallel()

	var doc Document
	require.NoError(t, json.Unmarshal([]byte(`{"projectName":"p"}`), &doc))
	assert.Equal(t, "p", doc.ProjectName)
	assert.Zero(t, doc.ProjectPorts.Len())
	assert.NotNil(t, doc.Layout)

	data, err := doc.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"subscribedInstances": {}, "hardwarePortsMap": {}, "inputPortsMap": {},
		"projectInstancePortsMap": {}, "layout": [], "projectPortsMap": {},
		"bitfile": "", "projectName": "p"
	}`, string(data))
}

func TestParseDocument_Invalid(t *testing.T) {
	t.Parallel()

	valid := map[string]any{
		KeySubscribedInstances:     map[string]any{},
		KeyHardwarePortsMap:        map[string]any{},
		KeyInputPortsMap:           map[string]any{},
		KeyProjectInstancePortsMap: map[string]any{},
		KeyLayout:                  []any{},
		KeyProjectPortsMap:         map[string]any{"a": "1"},
		KeyBitfile:                 "",
		KeyProjectName:             "p",
	}

	mutate := func(key string, value any, remove bool) []byte {
		m := make(map[string]any, len(valid))
		for k, v := range valid {
			m[k] = v
		}
		if remove {
			delete(m, key)
		} else {
			m[key] = value
		}
		data, err := json.Marshal(m)
		require.NoError(t, err)
		return data
	}

	tests := []struct {
		name  string
		input []byte
	}{
		{name: "not json", input: []byte(`{`)},
		{name: "array", input: []byte(`[]`)},
		{name: "null", input: []byte(`null`)},
		{name: "missing layout", input: mutate(KeyLayout, nil, true)},
		{name: "missing hardware map", input: mutate(KeyHardwarePortsMap, nil, true)},
		{name: "layout object", input: mutate(KeyLayout, map[string]any{}, false)},
		{name: "input map array", input: mutate(KeyInputPortsMap, []any{}, false)},
		{name: "name number", input: mutate(KeyProjectName, 3, false)},
		{name: "bitfile null", input: mutate(KeyBitfile, nil, false)},
		{name: "port position number", input: mutate(KeyProjectPortsMap, map[string]any{"a": 1}, false)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseDocument(tt.input)
			require.ErrorIs(t, err, fpgaboard.ErrMalformedProject)
			require.ErrorIs(t, err, ErrInvalidDocument)
		})
	}

	_, err := ParseDocument(mutate("", nil, true))
	require.NoError(t, err)
}
