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
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ZaparooProject/go-fpgaboard"
	"github.com/spf13/afero"
)

// DesignElement is the required root element of a design file.
const DesignElement = "design"

var (
	// ErrNoDesignRoot means the document root is not a design element.
	ErrNoDesignRoot = errors.New("design element not found")
	// ErrMissingAttribute means a port has no name, or no position attribute.
	ErrMissingAttribute = errors.New("port is missing a required attribute")
)

const cdataOpen = "<![CDATA["

type xmlNode struct {
	name  string
	attrs []xml.Attr
	items []xmlItem
}

// xmlItem is either a child element or a run of text. CDATA sections are
// kept apart from plain text.
type xmlItem struct {
	elem  *xmlNode
	text  string
	cdata bool
}

func (it xmlItem) key() string {
	switch {
	case it.elem != nil:
		return it.elem.name
	case it.cdata:
		return "#cdata-section"
	default:
		return "#text"
	}
}

// qualifiedName renders a raw token name with its prefix, as written.
func qualifiedName(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}

func (n *xmlNode) attr(name string) (string, bool) {
	for _, a := range n.attrs {
		if a.Name.Space == "" && a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

func (n *xmlNode) hasElements() bool {
	for _, it := range n.items {
		if it.elem != nil {
			return true
		}
	}
	return false
}

// parseDesign reads an XML document and returns its root, which must be a
// design element. Names keep their prefixes as written. Comments, processing
// instructions and whitespace-only text are dropped; CDATA sections are kept.
func parseDesign(r io.Reader) (*xmlNode, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read design: %w", err)
	}
	dec := xml.NewDecoder(bytes.NewReader(data))

	var root *xmlNode
	var stack []*xmlNode
	for {
		start := dec.InputOffset()
		tok, err := dec.RawToken()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse design: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			n := &xmlNode{name: qualifiedName(t.Name), attrs: append([]xml.Attr(nil), t.Attr...)}
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("parse design: second root element <%s>", n.name)
				}
				root = n
			} else {
				parent := stack[len(stack)-1]
				parent.items = append(parent.items, xmlItem{elem: n})
			}
			stack = append(stack, n)
		case xml.EndElement:
			name := qualifiedName(t.Name)
			if len(stack) == 0 || stack[len(stack)-1].name != name {
				return nil, fmt.Errorf("parse design: unexpected </%s>", name)
			}
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) == 0 {
				continue
			}
			cdata := bytes.HasPrefix(data[start:dec.InputOffset()], []byte(cdataOpen))
			if !cdata && strings.TrimSpace(string(t)) == "" {
				continue
			}
			parent := stack[len(stack)-1]
			if last := len(parent.items) - 1; !cdata && last >= 0 &&
				parent.items[last].elem == nil && !parent.items[last].cdata {
				parent.items[last].text += string(t)
				continue
			}
			parent.items = append(parent.items, xmlItem{text: string(t), cdata: cdata})
		}
	}

	if len(stack) > 0 {
		return nil, fmt.Errorf("parse design: unclosed <%s>", stack[len(stack)-1].name)
	}
	if root == nil || root.name != DesignElement {
		return nil, ErrNoDesignRoot
	}
	return root, nil
}

func extractPorts(r io.Reader) (*PortMap, error) {
	root, err := parseDesign(r)
	if err != nil {
		return nil, err
	}

	ports := &PortMap{}
	idx := 0
	for _, it := range root.items {
		if it.elem == nil {
			continue
		}
		name, ok := it.elem.attr("name")
		if !ok || name == "" {
			return nil, fmt.Errorf("%w: port %d <%s> has no name", ErrMissingAttribute, idx, it.elem.name)
		}
		position, ok := it.elem.attr("position")
		if !ok {
			return nil, fmt.Errorf("%w: port %q has no position", ErrMissingAttribute, name)
		}
		if err := ports.Add(name, position); err != nil {
			return nil, err
		}
		idx++
	}
	return ports, nil
}

// ExtractPorts reads a design and returns its ports in document order.
// Every child element of the design root must carry a non-empty name and a
// position attribute, and names must be unique. Positions are opaque and may
// be empty.
func ExtractPorts(r io.Reader) (*PortMap, error) {
	ports, err := extractPorts(r)
	if err != nil {
		return nil, fpgaboard.NewOpError("ExtractPorts", fpgaboard.KindMalformedDesign, err)
	}
	return ports, nil
}

// ExtractPortsFile is ExtractPorts on a file of fs.
func ExtractPortsFile(fs afero.Fs, path string) (*PortMap, error) {
	const op = "ExtractPorts"

	f, err := fs.Open(path)
	if err != nil {
		return nil, fpgaboard.NewPathError(op, fpgaboard.KindIO, path, err)
	}
	defer func() { _ = f.Close() }()

	ports, err := extractPorts(f)
	if err != nil {
		return nil, fpgaboard.NewPathError(op, fpgaboard.KindMalformedDesign, path, err)
	}
	return ports, nil
}

// DesignJSON converts a design document to compact JSON of the form
// {"design": ...}. Attributes become "@name" fields, child elements become
// fields named after the element and repeated names become arrays. An
// element with only text becomes a string, an empty one null, and text
// alongside attributes or children is stored under "#text". CDATA sections
// are stored under "#cdata-section". Prefixed names keep their prefix.
func DesignJSON(r io.Reader) ([]byte, error) {
	root, err := parseDesign(r)
	if err != nil {
		return nil, fpgaboard.NewOpError("DesignJSON", fpgaboard.KindMalformedDesign, err)
	}
	return encodeDesign(root), nil
}

// DesignJSONFile is DesignJSON on a file of fs.
func DesignJSONFile(fs afero.Fs, path string) ([]byte, error) {
	const op = "DesignJSON"

	f, err := fs.Open(path)
	if err != nil {
		return nil, fpgaboard.NewPathError(op, fpgaboard.KindIO, path, err)
	}
	defer func() { _ = f.Close() }()

	root, err := parseDesign(f)
	if err != nil {
		return nil, fpgaboard.NewPathError(op, fpgaboard.KindMalformedDesign, path, err)
	}
	return encodeDesign(root), nil
}

func encodeDesign(root *xmlNode) []byte {
	var buf bytes.Buffer
	buf.WriteByte('{')
	writeString(&buf, root.name)
	buf.WriteByte(':')
	writeNode(&buf, root)
	buf.WriteByte('}')
	return buf.Bytes()
}

func attrKey(a xml.Attr) string {
	return "@" + qualifiedName(a.Name)
}

// group collects same-named children under the position of the first one.
type group struct {
	key   string
	items []xmlItem
}

func writeNode(buf *bytes.Buffer, n *xmlNode) {
	if len(n.attrs) == 0 && !n.hasElements() {
		switch {
		case len(n.items) == 0:
			buf.WriteString("null")
			return
		case len(n.items) == 1 && !n.items[0].cdata:
			writeString(buf, n.items[0].text)
			return
		}
	}

	buf.WriteByte('{')
	first := true
	sep := func() {
		if !first {
			buf.WriteByte(',')
		}
		first = false
	}

	for _, a := range n.attrs {
		sep()
		writeKeyValue(buf, attrKey(a), a.Value)
	}

	var groups []*group
	byKey := make(map[string]*group)
	for _, it := range n.items {
		key := it.key()
		g, ok := byKey[key]
		if !ok {
			g = &group{key: key}
			byKey[key] = g
			groups = append(groups, g)
		}
		g.items = append(g.items, it)
	}

	for _, g := range groups {
		sep()
		writeString(buf, g.key)
		buf.WriteByte(':')
		if len(g.items) == 1 {
			writeItem(buf, g.items[0])
			continue
		}
		buf.WriteByte('[')
		for i, it := range g.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeItem(buf, it)
		}
		buf.WriteByte(']')
	}
	buf.WriteByte('}')
}

func writeItem(buf *bytes.Buffer, it xmlItem) {
	if it.elem == nil {
		writeString(buf, it.text)
		return
	}
	writeNode(buf, it.elem)
}
