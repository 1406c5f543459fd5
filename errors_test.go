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
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpError_Error(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  *OpError
		name string
		want string
	}{
		{
			name: "op only",
			err:  NewOpError("IoOpen", KindChannel, ErrChannelOpen),
			want: "IoOpen: I/O channel is already open",
		},
		{
			name: "with path",
			err:  NewPathError("Program", KindProgramming, "/tmp/top.bit", errors.New("CRC error")),
			want: "Program /tmp/top.bit: CRC error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestOpError_IsMatchesKindOnly(t *testing.T) {
	t.Parallel()

	err := NewOpError("WriteReadData", KindIO, ErrChannelNotOpen)
	require.ErrorIs(t, err, ErrIO)
	require.ErrorIs(t, err, ErrChannelNotOpen)
	assert.NotErrorIs(t, err, ErrChannel)
	assert.NotErrorIs(t, err, ErrNotFound)

	wrapped := fmt.Errorf("handler: %w", err)
	require.ErrorIs(t, wrapped, ErrIO)
	assert.Equal(t, KindIO, KindOf(wrapped))
}

func TestKindOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		name string
		want ErrorKind
	}{
		{name: "nil", err: nil, want: KindUnknown},
		{name: "foreign", err: errors.New("boom"), want: KindUnknown},
		{name: "op error", err: NewOpError("x", KindMalformedDesign, errors.New("y")), want: KindMalformedDesign},
		{name: "bare sentinel", err: ErrNotFound, want: KindNotFound},
		{name: "wrapped sentinel", err: fmt.Errorf("load: %w", ErrMalformedProject), want: KindMalformedProject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestErrorKind_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "configuration error", KindConfiguration.String())
	assert.Equal(t, "not found", KindNotFound.String())
	assert.Equal(t, "unknown error", KindUnknown.String())
	assert.Equal(t, "unknown error", ErrorKind(99).String())
}

func TestMessage(t *testing.T) {
	t.Parallel()

	pathErr := &fs.PathError{Op: "open", Path: "/x.hwproj", Err: fs.ErrPermission}
	assert.Empty(t, Message(nil))
	assert.Equal(t, "plain", Message(errors.New("plain")))
	assert.Equal(t, "open /x.hwproj: permission denied",
		Message(NewPathError("Load", KindIO, "/x.hwproj", pathErr)))
	assert.Equal(t, "CRC error",
		Message(fmt.Errorf("outer: %w", NewOpError("Program", KindProgramming, errors.New("CRC error")))))
}

func TestIsNotFound(t *testing.T) {
	t.Parallel()
	assert.True(t, IsNotFound(NewOpError("Load", KindNotFound, ErrNoProject)))
	assert.False(t, IsNotFound(NewOpError("Load", KindIO, ErrNoProject)))
	assert.False(t, IsNotFound(nil))
}

func TestState_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		want  string
		state State
	}{
		{state: StateUnconfigured, want: "unconfigured"},
		{state: StateConfigured, want: "configured"},
		{state: StateProgrammed, want: "programmed"},
		{state: StateIoOpen, want: "io-open"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.state.String())
		text, err := tt.state.MarshalText()
		require.NoError(t, err)
		assert.Equal(t, tt.want, string(text))
	}
}
