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

// Package project implements the .hwproj project model: port extraction
// from design files, the project document and the per-process project
// session.
package project

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ZaparooProject/go-fpgaboard"
	"github.com/ZaparooProject/go-fpgaboard/internal/syncutil"
	"github.com/spf13/afero"
)

// ErrInvalidName is returned for project names that cannot be a file name.
var ErrInvalidName = errors.New("invalid project name")

// Option configures a Session.
type Option func(*Session)

// WithFs sets the filesystem. The default is the OS filesystem.
func WithFs(fs afero.Fs) Option {
	return func(s *Session) {
		if fs != nil {
			s.fs = fs
		}
	}
}

// WithValidation makes Load reject structurally invalid project files.
func WithValidation(enabled bool) Option {
	return func(s *Session) {
		s.validate = enabled
	}
}

// Session tracks the active project file. It is safe for concurrent use;
// file writes themselves are unlocked whole-file overwrites.
type Session struct {
	fs       afero.Fs
	current  string
	mu       syncutil.Mutex
	validate bool
}

// NewSession creates a session with no active project.
func NewSession(opts ...Option) *Session {
	s := &Session{fs: afero.NewOsFs()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fs returns the session's filesystem.
func (s *Session) Fs() afero.Fs {
	return s.fs
}

// SetFile records path as the active project without reading it.
func (s *Session) SetFile(path string) {
	s.mu.Lock()
	s.current = path
	s.mu.Unlock()
	fpgaboard.Debugf("project: active file set to %q", path)
}

// CurrentFile returns the active project path, if any.
func (s *Session) CurrentFile() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.current != ""
}

// ProjectPath returns <dir>/<name>.hwproj.
func ProjectPath(dir, name string) string {
	return filepath.Join(dir, name+FileExtension)
}

func checkName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("%w: empty", ErrInvalidName)
	case name == "." || name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, name)
	}
	return nil
}

// NewProject extracts the ports of designPath, writes a fresh project to
// <dir>/<name>.hwproj and makes it the active file. Nothing is written if
// the design cannot be read.
func (s *Session) NewProject(dir, name, designPath string) (string, error) {
	const op = "NewProject"

	if err := checkName(name); err != nil {
		return "", fpgaboard.NewOpError(op, fpgaboard.KindConfiguration, err)
	}

	ports, err := ExtractPortsFile(s.fs, designPath)
	if err != nil {
		return "", err
	}

	data, err := NewDocument(name, ports).Encode()
	if err != nil {
		return "", fpgaboard.NewOpError(op, fpgaboard.KindIO, err)
	}

	path := ProjectPath(dir, name)
	if err := afero.WriteFile(s.fs, path, data, 0o644); err != nil {
		return "", fpgaboard.NewPathError(op, fpgaboard.KindIO, path, err)
	}

	s.SetFile(path)
	fpgaboard.Debugf("project: created %s with %d ports", path, ports.Len())
	return path, nil
}

// Load returns the active project path and its raw contents. With no active
// project it returns a not-found error, which callers should treat as
// "nothing to show yet".
func (s *Session) Load() (path, content string, err error) {
	const op = "Load"

	path, ok := s.CurrentFile()
	if !ok {
		return "", "", fpgaboard.NewOpError(op, fpgaboard.KindNotFound, fpgaboard.ErrNoProject)
	}

	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return path, "", fpgaboard.NewPathError(op, fpgaboard.KindIO, path, err)
	}

	if s.validate {
		if _, err := validateDocument(data); err != nil {
			return path, "", fpgaboard.NewPathError(op, fpgaboard.KindMalformedProject, path, err)
		}
	}
	return path, string(data), nil
}

// LoadDocument loads and parses the active project.
func (s *Session) LoadDocument() (string, *Document, error) {
	path, content, err := s.Load()
	if err != nil {
		return path, nil, err
	}
	doc, err := validateDocument([]byte(content))
	if err != nil {
		return path, nil, fpgaboard.NewPathError("LoadDocument", fpgaboard.KindMalformedProject, path, err)
	}
	return path, doc, nil
}

// Save overwrites path with content.
func (s *Session) Save(path, content string) error {
	const op = "Save"

	if path == "" {
		return fpgaboard.NewOpError(op, fpgaboard.KindConfiguration, errors.New("empty file name"))
	}
	if err := afero.WriteFile(s.fs, path, []byte(content), 0o644); err != nil {
		return fpgaboard.NewPathError(op, fpgaboard.KindIO, path, err)
	}
	fpgaboard.Debugf("project: saved %d bytes to %s", len(content), path)
	return nil
}

// DesignJSON converts the design file at path to JSON.
func (s *Session) DesignJSON(path string) ([]byte, error) {
	return DesignJSONFile(s.fs, path)
}
