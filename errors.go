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

package fpgaboard

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by a board or project operation matches
// exactly one of these through errors.Is.
var (
	ErrConfiguration    = errors.New("configuration error")
	ErrProgramming      = errors.New("programming error")
	ErrChannel          = errors.New("channel error")
	ErrIO               = errors.New("i/o error")
	ErrMalformedDesign  = errors.New("malformed design")
	ErrMalformedProject = errors.New("malformed project")
	ErrNotFound         = errors.New("not found")
)

// Detail errors carried inside an *OpError.
var (
	ErrInvalidBufferSize = errors.New("buffer word count out of range")
	ErrNotConfigured     = errors.New("board is not configured")
	ErrNotProgrammed     = errors.New("board is not programmed")
	ErrChannelOpen       = errors.New("I/O channel is already open")
	ErrChannelNotOpen    = errors.New("I/O channel is not open")
	ErrPayloadTooLarge   = errors.New("write payload exceeds write buffer")
	ErrShortResponse     = errors.New("board returned wrong number of words")
	ErrInvalidBitfile    = errors.New("invalid bitstream path")
	ErrNoProject         = errors.New("no active project file")
	ErrDriverClosed      = errors.New("driver is closed")
	ErrResponseTimeout   = errors.New("board response timeout")
)

// ErrorKind classifies an error for the response envelope.
type ErrorKind int

const (
	// KindUnknown is any error not produced by this module.
	KindUnknown ErrorKind = iota
	// KindConfiguration covers invalid buffer sizes and arguments.
	KindConfiguration
	// KindProgramming covers bitstream load failures.
	KindProgramming
	// KindChannel covers open/close called out of order.
	KindChannel
	// KindIO covers transfer and file failures.
	KindIO
	// KindMalformedDesign covers design files missing required structure.
	KindMalformedDesign
	// KindMalformedProject covers project files failing validation.
	KindMalformedProject
	// KindNotFound is the expected "no active project" outcome.
	KindNotFound
)

var kindSentinels = map[ErrorKind]error{
	KindConfiguration:    ErrConfiguration,
	KindProgramming:      ErrProgramming,
	KindChannel:          ErrChannel,
	KindIO:               ErrIO,
	KindMalformedDesign:  ErrMalformedDesign,
	KindMalformedProject: ErrMalformedProject,
	KindNotFound:         ErrNotFound,
}

func (k ErrorKind) String() string {
	if sentinel, ok := kindSentinels[k]; ok {
		return sentinel.Error()
	}
	return "unknown error"
}

// OpError records the operation, kind and cause of a failure.
type OpError struct {
	Err  error     // Underlying error, kept verbatim
	Op   string    // Operation that failed, e.g. "Program"
	Path string    // File involved, if any
	Kind ErrorKind // Error category
}

// NewOpError wraps err as a failure of op with the given kind.
func NewOpError(op string, kind ErrorKind, err error) *OpError {
	return &OpError{Op: op, Kind: kind, Err: err}
}

// NewPathError wraps err as a failure of op on path.
func NewPathError(op string, kind ErrorKind, path string, err error) *OpError {
	return &OpError{Op: op, Kind: kind, Path: path, Err: err}
}

func (e *OpError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind, so callers can test
// errors.Is(err, ErrChannel) without knowing the detail error.
func (e *OpError) Is(target error) bool {
	sentinel, ok := kindSentinels[e.Kind]
	return ok && target == sentinel
}

// KindOf returns the kind of err, or KindUnknown.
func KindOf(err error) ErrorKind {
	var oe *OpError
	if errors.As(err, &oe) {
		return oe.Kind
	}
	for kind, sentinel := range kindSentinels {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return KindUnknown
}

// Message returns the text a caller should see for err: the message of the
// underlying driver or filesystem error, without the operation prefix.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var oe *OpError
	if errors.As(err, &oe) && oe.Err != nil {
		return oe.Err.Error()
	}
	return err.Error()
}

// IsNotFound reports whether err is the recoverable "nothing to load" case.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
