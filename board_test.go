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
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempBitfile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "top.bit")
	require.NoError(t, os.WriteFile(path, []byte{0xFF, 0x00, 0xAA, 0x99}, 0o600))
	return path
}

// openBoard returns a board driven to StateIoOpen with the given sizes.
func openBoard(t *testing.T, writeWords, readWords int) (*Board, *MockDriver) {
	t.Helper()
	mock := NewMockDriver()
	board, err := NewBoard(mock)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, board.InitIO(ctx, writeWords, readWords))
	require.NoError(t, board.Program(ctx, tempBitfile(t)))
	require.NoError(t, board.IoOpen(ctx))
	return board, mock
}

func TestNewBoard(t *testing.T) {
	t.Parallel()

	_, err := NewBoard(nil)
	require.Error(t, err)

	_, err = NewBoard(NewMockDriver(), WithMaxWords(-1))
	require.Error(t, err)

	board, err := NewBoard(NewMockDriver(), WithBoardName("bench"), WithMaxWords(16))
	require.NoError(t, err)
	assert.Equal(t, StateUnconfigured, board.State())
	assert.Equal(t, "bench", board.name)
	assert.Equal(t, 16, board.maxWords)
}

func TestBoard_InitIOAllocatesZeroedBuffers(t *testing.T) {
	t.Parallel()

	sizes := []struct{ write, read int }{
		{0, 0}, {1, 0}, {0, 1}, {4, 4}, {7, 3}, {1024, 2048},
	}

	for _, sz := range sizes {
		board, err := NewBoard(NewMockDriver())
		require.NoError(t, err)

		require.NoError(t, board.InitIO(context.Background(), sz.write, sz.read))
		assert.Equal(t, StateConfigured, board.State())

		w, r := board.Sizes()
		assert.Equal(t, sz.write, w)
		assert.Equal(t, sz.read, r)
		assert.Equal(t, make([]uint16, sz.write), board.WriteBuffer())
		assert.Equal(t, make([]uint16, sz.read), board.ReadBuffer())
	}
}

func TestBoard_InitIORejectsBadSizes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		write int
		read  int
	}{
		{name: "negative write", write: -1, read: 4},
		{name: "negative read", write: 4, read: -1},
		{name: "write over cap", write: 9, read: 1},
		{name: "read over cap", write: 1, read: 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			mock := NewMockDriver()
			board, err := NewBoard(mock, WithMaxWords(8))
			require.NoError(t, err)

			err = board.InitIO(context.Background(), tt.write, tt.read)
			require.ErrorIs(t, err, ErrConfiguration)
			require.ErrorIs(t, err, ErrInvalidBufferSize)
			assert.Equal(t, KindConfiguration, KindOf(err))
			assert.Equal(t, StateUnconfigured, board.State())
			assert.Zero(t, mock.CallCount(OpConfigure))
		})
	}
}

func TestBoard_InitIODriverFailure(t *testing.T) {
	t.Parallel()
	mock := NewMockDriver()
	mock.SetError(OpConfigure, errors.New("fabric not responding"))
	board, err := NewBoard(mock)
	require.NoError(t, err)

	err = board.InitIO(context.Background(), 2, 2)
	require.ErrorIs(t, err, ErrConfiguration)
	assert.Equal(t, "fabric not responding", Message(err))
	assert.Equal(t, StateUnconfigured, board.State())
}

func TestBoard_InitIOResetsProgramming(t *testing.T) {
	t.Parallel()
	mock := NewMockDriver()
	board, err := NewBoard(mock)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, board.InitIO(ctx, 2, 2))
	require.NoError(t, board.Program(ctx, tempBitfile(t)))
	require.Equal(t, StateProgrammed, board.State())

	require.NoError(t, board.InitIO(ctx, 3, 5))
	assert.Equal(t, StateConfigured, board.State())
	w, r := board.Sizes()
	assert.Equal(t, 3, w)
	assert.Equal(t, 5, r)

	err = board.IoOpen(ctx)
	require.ErrorIs(t, err, ErrChannel)
	require.ErrorIs(t, err, ErrNotProgrammed)
}

func TestBoard_InitIORefusedWhileOpen(t *testing.T) {
	t.Parallel()
	board, mock := openBoard(t, 4, 4)

	err := board.InitIO(context.Background(), 8, 8)
	require.ErrorIs(t, err, ErrChannel)
	require.ErrorIs(t, err, ErrChannelOpen)
	assert.Equal(t, StateIoOpen, board.State())
	assert.Equal(t, 1, mock.CallCount(OpConfigure))

	w, r := board.Sizes()
	assert.Equal(t, 4, w)
	assert.Equal(t, 4, r)
}

func TestBoard_Program(t *testing.T) {
	t.Parallel()

	t.Run("unconfigured", func(t *testing.T) {
		t.Parallel()
		board, err := NewBoard(NewMockDriver())
		require.NoError(t, err)
		err = board.Program(context.Background(), tempBitfile(t))
		require.ErrorIs(t, err, ErrConfiguration)
		require.ErrorIs(t, err, ErrNotConfigured)
		assert.Equal(t, StateUnconfigured, board.State())
	})

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		mock := NewMockDriver()
		board, err := NewBoard(mock)
		require.NoError(t, err)
		path := tempBitfile(t)
		require.NoError(t, board.InitIO(context.Background(), 1, 1))
		require.NoError(t, board.Program(context.Background(), path))
		assert.Equal(t, StateProgrammed, board.State())
		assert.Equal(t, path, mock.ProgrammedPath())

		require.NoError(t, board.Program(context.Background(), path), "reprogramming is allowed")
		assert.Equal(t, 2, mock.CallCount(OpProgram))
	})

	t.Run("open channel", func(t *testing.T) {
		t.Parallel()
		board, _ := openBoard(t, 1, 1)
		err := board.Program(context.Background(), tempBitfile(t))
		require.ErrorIs(t, err, ErrChannel)
		assert.Equal(t, StateIoOpen, board.State())
	})
}

func TestBoard_ProgramFailureDropsToConfigured(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tests := []struct {
		driverErr error
		name      string
		path      string
		wantIs    error
	}{
		{name: "empty path", path: "", wantIs: ErrInvalidBitfile},
		{name: "missing file", path: filepath.Join(dir, "absent.bit"), wantIs: os.ErrNotExist},
		{name: "directory", path: dir, wantIs: ErrInvalidBitfile},
		{name: "driver rejects", driverErr: errors.New("CRC error in bitstream")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			mock := NewMockDriver()
			board, err := NewBoard(mock)
			require.NoError(t, err)

			ctx := context.Background()
			require.NoError(t, board.InitIO(ctx, 2, 2))
			require.NoError(t, board.Program(ctx, tempBitfile(t)))

			path := tt.path
			if tt.driverErr != nil {
				mock.SetError(OpProgram, tt.driverErr)
				path = tempBitfile(t)
			}

			err = board.Program(ctx, path)
			require.ErrorIs(t, err, ErrProgramming)
			if tt.wantIs != nil {
				require.ErrorIs(t, err, tt.wantIs)
			}
			if tt.driverErr != nil {
				assert.Equal(t, tt.driverErr.Error(), Message(err))
			}
			assert.Equal(t, StateConfigured, board.State())
		})
	}
}

func TestBoard_IoOpen(t *testing.T) {
	t.Parallel()

	t.Run("before program", func(t *testing.T) {
		t.Parallel()
		mock := NewMockDriver()
		board, err := NewBoard(mock)
		require.NoError(t, err)

		err = board.IoOpen(context.Background())
		require.ErrorIs(t, err, ErrChannel)

		require.NoError(t, board.InitIO(context.Background(), 1, 1))
		err = board.IoOpen(context.Background())
		require.ErrorIs(t, err, ErrNotProgrammed)
		assert.Zero(t, mock.CallCount(OpOpenChannel))
	})

	t.Run("double open keeps first channel", func(t *testing.T) {
		t.Parallel()
		board, mock := openBoard(t, 2, 2)

		err := board.IoOpen(context.Background())
		require.ErrorIs(t, err, ErrChannel)
		require.ErrorIs(t, err, ErrChannelOpen)
		assert.Equal(t, StateIoOpen, board.State())
		assert.Equal(t, 1, mock.CallCount(OpOpenChannel))
		assert.Zero(t, mock.CallCount(OpCloseChannel))

		_, err = board.WriteReadData(context.Background(), []uint16{1})
		require.NoError(t, err)
	})

	t.Run("driver failure", func(t *testing.T) {
		t.Parallel()
		mock := NewMockDriver()
		mock.SetError(OpOpenChannel, errors.New("link down"))
		board, err := NewBoard(mock)
		require.NoError(t, err)
		require.NoError(t, board.InitIO(context.Background(), 1, 1))
		require.NoError(t, board.Program(context.Background(), tempBitfile(t)))

		err = board.IoOpen(context.Background())
		require.ErrorIs(t, err, ErrChannel)
		assert.Equal(t, "link down", Message(err))
		assert.Equal(t, StateProgrammed, board.State())
	})
}

func TestBoard_IoClose(t *testing.T) {
	t.Parallel()

	t.Run("not open", func(t *testing.T) {
		t.Parallel()
		board, err := NewBoard(NewMockDriver())
		require.NoError(t, err)
		err = board.IoClose(context.Background())
		require.ErrorIs(t, err, ErrChannel)
		require.ErrorIs(t, err, ErrChannelNotOpen)
	})

	t.Run("closes to programmed", func(t *testing.T) {
		t.Parallel()
		board, _ := openBoard(t, 1, 1)
		require.NoError(t, board.IoClose(context.Background()))
		assert.Equal(t, StateProgrammed, board.State())
		require.NoError(t, board.IoOpen(context.Background()))
	})

	t.Run("driver failure keeps channel open", func(t *testing.T) {
		t.Parallel()
		board, mock := openBoard(t, 1, 1)
		mock.SetError(OpCloseChannel, errors.New("busy"))
		err := board.IoClose(context.Background())
		require.ErrorIs(t, err, ErrChannel)
		assert.Equal(t, StateIoOpen, board.State())
	})
}

func TestBoard_WriteReadDataBeforeOpen(t *testing.T) {
	t.Parallel()
	mock := NewMockDriver()
	board, err := NewBoard(mock)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = board.WriteReadData(ctx, []uint16{1})
	require.ErrorIs(t, err, ErrIO)
	require.ErrorIs(t, err, ErrChannelNotOpen)

	require.NoError(t, board.InitIO(ctx, 2, 2))
	require.NoError(t, board.Program(ctx, tempBitfile(t)))
	_, err = board.WriteReadData(ctx, []uint16{1, 2})
	require.ErrorIs(t, err, ErrIO)

	assert.Equal(t, []uint16{0, 0}, board.ReadBuffer())
	assert.Equal(t, []uint16{0, 0}, board.WriteBuffer())
	assert.Zero(t, mock.CallCount(OpTransfer))
}

func TestBoard_WriteReadDataZeroThenCopy(t *testing.T) {
	t.Parallel()
	board, mock := openBoard(t, 6, 6)
	ctx := context.Background()

	_, err := board.WriteReadData(ctx, []uint16{9, 9, 9, 9, 9, 9})
	require.NoError(t, err)

	out, err := board.WriteReadData(ctx, []uint16{1, 2})
	require.NoError(t, err)

	assert.Equal(t, []uint16{1, 2, 0, 0, 0, 0}, board.WriteBuffer())
	assert.Equal(t, []uint16{1, 2, 0, 0, 0, 0}, mock.LastWrite())
	assert.Equal(t, []uint16{1, 2, 0, 0, 0, 0}, out)

	out, err = board.WriteReadData(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, make([]uint16, 6), out)
}

func TestBoard_WriteReadDataSnapshot(t *testing.T) {
	t.Parallel()
	board, _ := openBoard(t, 3, 3)

	out, err := board.WriteReadData(context.Background(), []uint16{5, 6, 7})
	require.NoError(t, err)
	out[0] = 0xFFFF

	assert.Equal(t, []uint16{5, 6, 7}, board.ReadBuffer())
}

func TestBoard_WriteReadDataFailuresKeepReadBuffer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		transfer TransferFunc
		name     string
		wantIs   error
		payload  []uint16
	}{
		{
			name:    "payload too large",
			payload: []uint16{1, 2, 3, 4, 5},
			wantIs:  ErrPayloadTooLarge,
		},
		{
			name:    "board rejects",
			payload: []uint16{1},
			transfer: func([]uint16, int) ([]uint16, error) {
				return nil, errors.New("parity error")
			},
		},
		{
			name:    "short answer",
			payload: []uint16{1},
			transfer: func([]uint16, int) ([]uint16, error) {
				return []uint16{1}, nil
			},
			wantIs: ErrShortResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			board, mock := openBoard(t, 4, 4)
			ctx := context.Background()

			_, err := board.WriteReadData(ctx, []uint16{0xA, 0xB, 0xC, 0xD})
			require.NoError(t, err)

			if tt.transfer != nil {
				mock.SetTransfer(tt.transfer)
			}
			out, err := board.WriteReadData(ctx, tt.payload)
			require.ErrorIs(t, err, ErrIO)
			if tt.wantIs != nil {
				require.ErrorIs(t, err, tt.wantIs)
			}
			assert.Nil(t, out)
			assert.Equal(t, []uint16{0xA, 0xB, 0xC, 0xD}, board.ReadBuffer())
			assert.Equal(t, StateIoOpen, board.State())
		})
	}
}

func TestBoard_EndToEnd(t *testing.T) {
	t.Parallel()
	board, _ := openBoard(t, 4, 4)
	ctx := context.Background()

	out, err := board.WriteReadData(ctx, []uint16{0x01, 0x00, 0x00, 0x00})
	require.NoError(t, err)
	assert.Len(t, out, 4)
	require.NoError(t, board.IoClose(ctx))
	assert.Equal(t, StateProgrammed, board.State())
}

func TestBoard_Close(t *testing.T) {
	t.Parallel()
	board, mock := openBoard(t, 2, 2)

	require.NoError(t, board.Close())
	assert.Equal(t, StateUnconfigured, board.State())
	assert.Equal(t, 1, mock.CallCount(OpCloseChannel))
	assert.True(t, mock.IsClosed())

	w, r := board.Sizes()
	assert.Zero(t, w)
	assert.Zero(t, r)

	err := board.InitIO(context.Background(), 1, 1)
	require.ErrorIs(t, err, ErrDriverClosed)
}

func TestBoard_ConcurrentExchanges(t *testing.T) {
	t.Parallel()
	board, _ := openBoard(t, 8, 8)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func(v uint16) {
			defer wg.Done()
			out, err := board.WriteReadData(ctx, []uint16{v, v, v, v, v, v, v, v})
			assert.NoError(t, err)
			for _, w := range out {
				assert.Equal(t, v, w, "snapshot must not be torn")
			}
		}(uint16(i))
	}
	wg.Wait()
}
