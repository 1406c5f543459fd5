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
)

// ErrDuplicatePort is returned when a design names the same port twice.
var ErrDuplicatePort = errors.New("duplicate port name")

// PortEntry is one named design signal and its physical board position.
type PortEntry struct {
	Name     string `json:"name"`
	Position string `json:"position"`
}

// PortMap maps port names to positions, preserving insertion order. The zero
// value is an empty map ready to use.
type PortMap struct {
	index   map[string]int
	entries []PortEntry
}

// NewPortMap builds a map from entries, rejecting duplicate names.
func NewPortMap(entries ...PortEntry) (*PortMap, error) {
	m := &PortMap{}
	for _, e := range entries {
		if err := m.Add(e.Name, e.Position); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Add appends name→position. A name already present is an error.
func (m *PortMap) Add(name, position string) error {
	if m.index == nil {
		m.index = make(map[string]int)
	}
	if _, ok := m.index[name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicatePort, name)
	}
	m.index[name] = len(m.entries)
	m.entries = append(m.entries, PortEntry{Name: name, Position: position})
	return nil
}

// Get returns the position of name.
func (m *PortMap) Get(name string) (string, bool) {
	if m == nil {
		return "", false
	}
	i, ok := m.index[name]
	if !ok {
		return "", false
	}
	return m.entries[i].Position, true
}

// Len returns the number of ports.
func (m *PortMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// Names returns the port names in order.
func (m *PortMap) Names() []string {
	if m == nil {
		return nil
	}
	names := make([]string, len(m.entries))
	for i, e := range m.entries {
		names[i] = e.Name
	}
	return names
}

// Entries returns a copy of the entries in order.
func (m *PortMap) Entries() []PortEntry {
	if m == nil {
		return nil
	}
	out := make([]PortEntry, len(m.entries))
	copy(out, m.entries)
	return out
}

// MarshalJSON writes a JSON object whose keys follow insertion order.
func (m *PortMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range m.Entries() {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeKeyValue(&buf, e.Name, e.Position)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object of string values, keeping key order.
// null yields an empty map.
func (m *PortMap) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*m = PortMap{}
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("port map must be a JSON object, got %v", tok)
	}

	fresh := PortMap{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, _ := tok.(string)

		var position string
		if err := dec.Decode(&position); err != nil {
			return fmt.Errorf("port %q: %w", name, err)
		}
		if err := fresh.Add(name, position); err != nil {
			return err
		}
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*m = fresh
	return nil
}

func writeKeyValue(buf *bytes.Buffer, key, value string) {
	writeString(buf, key)
	buf.WriteByte(':')
	writeString(buf, value)
}

// writeString appends s as a JSON string without HTML escaping.
func writeString(buf *bytes.Buffer, s string) {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	buf.Truncate(buf.Len() - 1)
}
