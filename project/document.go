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
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/ZaparooProject/go-fpgaboard"
)

// FileExtension is the extension of project files.
const FileExtension = ".hwproj"

// Top-level keys of a project file.
const (
	KeySubscribedInstances     = "subscribedInstances"
	KeyHardwarePortsMap        = "hardwarePortsMap"
	KeyInputPortsMap           = "inputPortsMap"
	KeyProjectInstancePortsMap = "projectInstancePortsMap"
	KeyLayout                  = "layout"
	KeyProjectPortsMap         = "projectPortsMap"
	KeyBitfile                 = "bitfile"
	KeyProjectName             = "projectName"
)

// ErrInvalidDocument is the detail error of a structurally invalid project.
var ErrInvalidDocument = errors.New("invalid project document")

var (
	emptyObject = json.RawMessage(`{}`)
	emptyArray  = json.RawMessage(`[]`)
)

// Document is the content of a .hwproj file. The reserved maps hold
// whatever a UI has stored there; they are carried through untouched.
// Top-level keys this package does not know are kept in Extra.
type Document struct {
	ProjectPorts         *PortMap
	Extra                map[string]json.RawMessage
	ProjectName          string
	Bitfile              string
	SubscribedInstances  json.RawMessage
	HardwarePorts        json.RawMessage
	InputPorts           json.RawMessage
	ProjectInstancePorts json.RawMessage
	Layout               []json.RawMessage
}

// NewDocument returns a fresh project with the given ports, an empty
// bitfile and every reserved collection present but empty.
func NewDocument(name string, ports *PortMap) *Document {
	if ports == nil {
		ports = &PortMap{}
	}
	return &Document{
		ProjectName:          name,
		ProjectPorts:         ports,
		SubscribedInstances:  emptyObject,
		HardwarePorts:        emptyObject,
		InputPorts:           emptyObject,
		ProjectInstancePorts: emptyObject,
		Layout:               []json.RawMessage{},
	}
}

func orEmpty(raw json.RawMessage, empty json.RawMessage) json.RawMessage {
	if len(bytes.TrimSpace(raw)) == 0 {
		return empty
	}
	return raw
}

// MarshalJSON writes compact JSON with the reserved keys first, in the
// order the desktop tool writes them, followed by Extra in key order.
func (d *Document) MarshalJSON() ([]byte, error) {
	ports, err := d.ProjectPorts.MarshalJSON()
	if err != nil {
		return nil, err
	}
	layout := emptyArray
	if len(d.Layout) > 0 {
		if layout, err = json.Marshal(d.Layout); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	field := func(key string, raw []byte) {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		writeString(&buf, key)
		buf.WriteByte(':')
		buf.Write(raw)
	}

	field(KeySubscribedInstances, orEmpty(d.SubscribedInstances, emptyObject))
	field(KeyHardwarePortsMap, orEmpty(d.HardwarePorts, emptyObject))
	field(KeyInputPortsMap, orEmpty(d.InputPorts, emptyObject))
	field(KeyProjectInstancePortsMap, orEmpty(d.ProjectInstancePorts, emptyObject))
	field(KeyLayout, layout)
	field(KeyProjectPortsMap, ports)

	var s bytes.Buffer
	writeString(&s, d.Bitfile)
	field(KeyBitfile, bytes.Clone(s.Bytes()))
	s.Reset()
	writeString(&s, d.ProjectName)
	field(KeyProjectName, s.Bytes())

	keys := make([]string, 0, len(d.Extra))
	for k := range d.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		field(k, orEmpty(d.Extra[k], json.RawMessage("null")))
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Encode returns the document as it is written to disk: indented with two
// spaces.
func (d *Document) Encode() ([]byte, error) {
	compact, err := d.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, compact, "", "  "); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// UnmarshalJSON decodes a project object. Missing reserved fields are
// filled with empty values; use ParseDocument to reject them instead.
func (d *Document) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if fields == nil {
		return fmt.Errorf("%w: not a JSON object", ErrInvalidDocument)
	}

	doc := NewDocument("", nil)
	take := func(key string) (json.RawMessage, bool) {
		raw, ok := fields[key]
		delete(fields, key)
		return raw, ok
	}

	if raw, ok := take(KeyProjectName); ok {
		if err := json.Unmarshal(raw, &doc.ProjectName); err != nil {
			return fmt.Errorf("%s: %w", KeyProjectName, err)
		}
	}
	if raw, ok := take(KeyBitfile); ok {
		if err := json.Unmarshal(raw, &doc.Bitfile); err != nil {
			return fmt.Errorf("%s: %w", KeyBitfile, err)
		}
	}
	if raw, ok := take(KeyProjectPortsMap); ok {
		if err := doc.ProjectPorts.UnmarshalJSON(raw); err != nil {
			return fmt.Errorf("%s: %w", KeyProjectPortsMap, err)
		}
	}
	if raw, ok := take(KeyLayout); ok {
		if err := json.Unmarshal(raw, &doc.Layout); err != nil {
			return fmt.Errorf("%s: %w", KeyLayout, err)
		}
		if doc.Layout == nil {
			doc.Layout = []json.RawMessage{}
		}
	}
	for key, dst := range map[string]*json.RawMessage{
		KeySubscribedInstances:     &doc.SubscribedInstances,
		KeyHardwarePortsMap:        &doc.HardwarePorts,
		KeyInputPortsMap:           &doc.InputPorts,
		KeyProjectInstancePortsMap: &doc.ProjectInstancePorts,
	} {
		if raw, ok := take(key); ok {
			*dst = bytes.Clone(raw)
		}
	}

	if len(fields) > 0 {
		doc.Extra = fields
	}
	*d = *doc
	return nil
}

// reservedKinds lists the fields a valid project must contain and the JSON
// kind each must have.
var reservedKinds = []struct {
	key  string
	kind byte
}{
	{KeySubscribedInstances, '{'},
	{KeyHardwarePortsMap, '{'},
	{KeyInputPortsMap, '{'},
	{KeyProjectInstancePortsMap, '{'},
	{KeyLayout, '['},
	{KeyProjectPortsMap, '{'},
	{KeyBitfile, '"'},
	{KeyProjectName, '"'},
}

func jsonKind(raw json.RawMessage) byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}

func kindName(kind byte) string {
	switch kind {
	case '{':
		return "an object"
	case '[':
		return "an array"
	case '"':
		return "a string"
	default:
		return "a value"
	}
}

func validateDocument(data []byte) (*Document, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: not a JSON object", ErrInvalidDocument)
	}

	for _, rk := range reservedKinds {
		raw, ok := fields[rk.key]
		if !ok {
			return nil, fmt.Errorf("%w: missing %q", ErrInvalidDocument, rk.key)
		}
		if jsonKind(raw) != rk.kind {
			return nil, fmt.Errorf("%w: %q must be %s", ErrInvalidDocument, rk.key, kindName(rk.kind))
		}
	}

	doc := &Document{}
	if err := doc.UnmarshalJSON(data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	return doc, nil
}

// ParseDocument decodes a project file and checks its structure: every
// reserved field is present with the right JSON kind and port positions are
// strings.
func ParseDocument(data []byte) (*Document, error) {
	doc, err := validateDocument(data)
	if err != nil {
		return nil, fpgaboard.NewOpError("ParseDocument", fpgaboard.KindMalformedProject, err)
	}
	return doc, nil
}
