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

package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZaparooProject/go-fpgaboard/internal/frame"
)

func send(t *testing.T, vb *VirtualBoard, cmd byte, payload []byte) ([]byte, error) {
	t.Helper()
	req, err := frame.Encode(cmd, payload)
	require.NoError(t, err)
	n, err := vb.Write(req)
	require.NoError(t, err)
	require.Equal(t, len(req), n)

	buf := make([]byte, 1024)
	n, err = vb.Read(buf)
	require.NoError(t, err)
	got, body, consumed, err := frame.Decode(buf[:n])
	require.NoError(t, err)
	require.Equal(t, n, consumed)
	require.Equal(t, cmd|frame.ResponseFlag, got)
	return frame.SplitStatus(body)
}

func TestVirtualBoard_FullSession(t *testing.T) {
	t.Parallel()
	vb := NewVirtualBoard()

	_, err := send(t, vb, frame.CmdConfigure, frame.ConfigurePayload(2, 3))
	require.NoError(t, err)

	_, err = send(t, vb, frame.CmdProgramBegin, []byte{4, 0, 0, 0})
	require.NoError(t, err)
	_, err = send(t, vb, frame.CmdProgramData, []byte{1, 2})
	require.NoError(t, err)
	_, err = send(t, vb, frame.CmdProgramData, []byte{3, 4})
	require.NoError(t, err)
	_, err = send(t, vb, frame.CmdProgramEnd, nil)
	require.NoError(t, err)

	_, err = send(t, vb, frame.CmdOpen, nil)
	require.NoError(t, err)

	data, err := send(t, vb, frame.CmdTransfer, frame.PackWords([]uint16{7, 8}))
	require.NoError(t, err)
	words, err := frame.UnpackWords(data)
	require.NoError(t, err)
	assert.Equal(t, []uint16{7, 8, 0}, words)

	_, err = send(t, vb, frame.CmdClose, nil)
	require.NoError(t, err)

	st := vb.State()
	assert.True(t, st.Configured)
	assert.True(t, st.Programmed)
	assert.False(t, st.Open)
	assert.Equal(t, 4, st.Bitstream)
	assert.Equal(t, []byte{
		frame.CmdConfigure, frame.CmdProgramBegin, frame.CmdProgramData, frame.CmdProgramData,
		frame.CmdProgramEnd, frame.CmdOpen, frame.CmdTransfer, frame.CmdClose,
	}, vb.CommandLog())
}

func TestVirtualBoard_Rejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		setup   func(t *testing.T, vb *VirtualBoard)
		name    string
		message string
		payload []byte
		cmd     byte
	}{
		{
			name:    "transfer before open",
			cmd:     frame.CmdTransfer,
			payload: frame.PackWords([]uint16{1}),
			message: "channel not open",
		},
		{
			name:    "close before open",
			cmd:     frame.CmdClose,
			message: "channel not open",
		},
		{
			name:    "program before configure",
			cmd:     frame.CmdProgramBegin,
			payload: []byte{1, 0, 0, 0},
			message: "not configured",
		},
		{
			name:    "open before program",
			cmd:     frame.CmdOpen,
			message: "not programmed",
		},
		{
			name: "short bitstream",
			setup: func(t *testing.T, vb *VirtualBoard) {
				t.Helper()
				_, err := send(t, vb, frame.CmdConfigure, frame.ConfigurePayload(1, 1))
				require.NoError(t, err)
				_, err = send(t, vb, frame.CmdProgramBegin, []byte{8, 0, 0, 0})
				require.NoError(t, err)
				_, err = send(t, vb, frame.CmdProgramData, []byte{1})
				require.NoError(t, err)
			},
			cmd:     frame.CmdProgramEnd,
			message: "bitstream incomplete: 1 of 8 bytes",
		},
		{
			name:    "unknown command",
			cmd:     0x3F,
			message: "unknown command 0x3F",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			vb := NewVirtualBoard()
			if tt.setup != nil {
				tt.setup(t, vb)
			}
			_, err := send(t, vb, tt.cmd, tt.payload)
			var be *frame.BoardError
			require.ErrorAs(t, err, &be)
			assert.Equal(t, tt.message, be.Message)
		})
	}
}

func TestVirtualBoard_SplitWrites(t *testing.T) {
	t.Parallel()
	vb := NewVirtualBoard()

	req, err := frame.Encode(frame.CmdConfigure, frame.ConfigurePayload(1, 1))
	require.NoError(t, err)

	_, err = vb.Write(req[:3])
	require.NoError(t, err)
	buf := make([]byte, 64)
	n, err := vb.Read(buf)
	require.NoError(t, err)
	assert.Zero(t, n, "no response until the frame is complete")

	_, err = vb.Write(req[3:])
	require.NoError(t, err)
	n, err = vb.Read(buf)
	require.NoError(t, err)
	assert.Positive(t, n)
	assert.True(t, vb.State().Configured)
}

func TestVirtualBoard_Injection(t *testing.T) {
	t.Parallel()

	t.Run("fail command", func(t *testing.T) {
		t.Parallel()
		vb := NewVirtualBoard()
		vb.FailCommand(frame.CmdConfigure, "fabric busy")
		_, err := send(t, vb, frame.CmdConfigure, frame.ConfigurePayload(1, 1))
		require.EqualError(t, err, "fabric busy")

		vb.FailCommand(0, "")
		_, err = send(t, vb, frame.CmdConfigure, frame.ConfigurePayload(1, 1))
		require.NoError(t, err)
	})

	t.Run("silent", func(t *testing.T) {
		t.Parallel()
		vb := NewVirtualBoard()
		vb.SetSilent(true)
		req, err := frame.Encode(frame.CmdOpen, nil)
		require.NoError(t, err)
		_, err = vb.Write(req)
		require.NoError(t, err)
		n, err := vb.Read(make([]byte, 16))
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Equal(t, []byte{frame.CmdOpen}, vb.CommandLog())
	})

	t.Run("corrupt", func(t *testing.T) {
		t.Parallel()
		vb := NewVirtualBoard()
		vb.CorruptNextResponse()
		req, err := frame.Encode(frame.CmdOpen, nil)
		require.NoError(t, err)
		_, err = vb.Write(req)
		require.NoError(t, err)
		buf := make([]byte, 16)
		n, err := vb.Read(buf)
		require.NoError(t, err)
		_, _, _, err = frame.Decode(buf[:n])
		require.ErrorIs(t, err, frame.ErrChecksumMismatch)
	})
}

func TestVirtualBoard_Closed(t *testing.T) {
	t.Parallel()
	vb := NewVirtualBoard()
	require.NoError(t, vb.Close())

	_, err := vb.Write([]byte{frame.Sync1})
	require.ErrorIs(t, err, ErrClosed)
	_, err = vb.Read(make([]byte, 1))
	require.ErrorIs(t, err, ErrClosed)
}

func TestInvert(t *testing.T) {
	t.Parallel()
	read := make([]uint16, 3)
	Invert([]uint16{0x0000, 0x00FF}, read)
	assert.Equal(t, []uint16{0xFFFF, 0xFF00, 0}, read)
}
