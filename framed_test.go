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

package fpgaboard_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZaparooProject/go-fpgaboard"
	"github.com/ZaparooProject/go-fpgaboard/driver/sim"
	"github.com/ZaparooProject/go-fpgaboard/internal/frame"
	"github.com/ZaparooProject/go-fpgaboard/internal/linktest"
)

func bitfile(t *testing.T, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "design.bit")
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i)
	}
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func newSimDriver(opts ...sim.Option) (*fpgaboard.FramedDriver, *sim.VirtualBoard) {
	vb := sim.NewVirtualBoard(opts...)
	drv := fpgaboard.NewFramedDriver(vb, fpgaboard.DriverSim,
		fpgaboard.WithResponseTimeout(50*time.Millisecond))
	return drv, vb
}

func TestFramedDriver_BoardSession(t *testing.T) {
	t.Parallel()

	drv, vb := newSimDriver(sim.WithLogic(sim.Invert))
	board, err := fpgaboard.NewBoard(drv)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, board.InitIO(ctx, 4, 4))
	require.NoError(t, board.Program(ctx, bitfile(t, 3*frame.ProgramChunkSize+17)))
	require.NoError(t, board.IoOpen(ctx))

	out, err := board.WriteReadData(ctx, []uint16{0x01, 0x00, 0x00, 0x00})
	require.NoError(t, err)
	assert.Equal(t, []uint16{0xFFFE, 0xFFFF, 0xFFFF, 0xFFFF}, out)

	require.NoError(t, board.IoClose(ctx))
	require.NoError(t, board.Close())

	st := vb.State()
	assert.Equal(t, 3*frame.ProgramChunkSize+17, st.Bitstream)
	assert.False(t, st.Open)

	log := vb.CommandLog()
	assert.Equal(t, byte(frame.CmdConfigure), log[0])
	assert.Equal(t, byte(frame.CmdProgramBegin), log[1])
	dataFrames := 0
	for _, c := range log {
		if c == frame.CmdProgramData {
			dataFrames++
		}
	}
	assert.Equal(t, 4, dataFrames)
}

func TestFramedDriver_FragmentedLink(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		config linktest.JitterConfig
	}{
		{name: "random fragments", config: linktest.JitterConfig{Seed: 11, FragmentReads: true}},
		{name: "packet boundaries", config: linktest.JitterConfig{Seed: 12, PacketBoundaries: true}},
		{
			name: "stall mid response",
			config: linktest.JitterConfig{
				Seed:            13,
				FragmentReads:   true,
				StallAfterBytes: 5,
				StallDuration:   20 * time.Millisecond,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			vb := sim.NewVirtualBoard()
			link := linktest.NewJitteryLink(vb, tt.config)
			board, err := fpgaboard.NewBoard(fpgaboard.NewFramedDriver(link, fpgaboard.DriverUART,
				fpgaboard.WithResponseTimeout(time.Second)))
			require.NoError(t, err)
			ctx := context.Background()

			require.NoError(t, board.InitIO(ctx, 64, 64))
			require.NoError(t, board.Program(ctx, bitfile(t, 1000)))
			require.NoError(t, board.IoOpen(ctx))

			words := make([]uint16, 64)
			for i := range words {
				words[i] = uint16(i * 1021)
			}
			for range 3 {
				out, err := board.WriteReadData(ctx, words)
				require.NoError(t, err)
				assert.Equal(t, words, out)
			}
			require.NoError(t, board.Close())
			assert.Positive(t, link.Delivered())
		})
	}
}

func TestFramedDriver_ChunkSizeOption(t *testing.T) {
	t.Parallel()

	vb := sim.NewVirtualBoard()
	drv := fpgaboard.NewFramedDriver(vb, fpgaboard.DriverSim, fpgaboard.WithChunkSize(100))
	ctx := context.Background()
	require.NoError(t, drv.Configure(ctx, 1, 1))
	require.NoError(t, drv.Program(ctx, bitfile(t, 250)))

	count := 0
	for _, c := range vb.CommandLog() {
		if c == frame.CmdProgramData {
			count++
		}
	}
	assert.Equal(t, 3, count)
}

func TestFramedDriver_BoardMessagesVerbatim(t *testing.T) {
	t.Parallel()

	drv, vb := newSimDriver()
	board, err := fpgaboard.NewBoard(drv)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, board.InitIO(ctx, 2, 2))
	vb.FailCommand(frame.CmdProgramEnd, "DONE pin never went high")

	err = board.Program(ctx, bitfile(t, 64))
	require.ErrorIs(t, err, fpgaboard.ErrProgramming)
	assert.Equal(t, "DONE pin never went high", fpgaboard.Message(err))
	assert.Equal(t, fpgaboard.StateConfigured, board.State())

	var be *frame.BoardError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, byte(frame.StatusError), be.Status)
}

func TestFramedDriver_EmptyBitstreamRejected(t *testing.T) {
	t.Parallel()

	drv, _ := newSimDriver()
	board, err := fpgaboard.NewBoard(drv)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, board.InitIO(ctx, 1, 1))

	err = board.Program(ctx, bitfile(t, 0))
	require.ErrorIs(t, err, fpgaboard.ErrProgramming)
	assert.Contains(t, fpgaboard.Message(err), "bitstream incomplete")
}

func TestFramedDriver_Timeout(t *testing.T) {
	t.Parallel()

	drv, vb := newSimDriver()
	vb.SetSilent(true)

	start := time.Now()
	err := drv.Configure(context.Background(), 1, 1)
	require.ErrorIs(t, err, fpgaboard.ErrResponseTimeout)
	assert.Less(t, time.Since(start), time.Second)
}

func TestFramedDriver_ContextCancelled(t *testing.T) {
	t.Parallel()

	drv, vb := newSimDriver()
	vb.SetSilent(true)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := drv.OpenChannel(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, vb.CommandLog(), "nothing is sent once the context is done")
}

func TestFramedDriver_CorruptResponse(t *testing.T) {
	t.Parallel()

	drv, vb := newSimDriver()
	vb.CorruptNextResponse()

	err := drv.Configure(context.Background(), 1, 1)
	require.ErrorIs(t, err, frame.ErrChecksumMismatch)

	require.NoError(t, drv.Configure(context.Background(), 1, 1), "next exchange recovers")
}

func TestFramedDriver_TransferLengthChecked(t *testing.T) {
	t.Parallel()

	drv, _ := newSimDriver()
	ctx := context.Background()
	require.NoError(t, drv.Configure(ctx, 2, 3))
	require.NoError(t, drv.Program(ctx, bitfile(t, 8)))
	require.NoError(t, drv.OpenChannel(ctx))

	_, err := drv.Transfer(ctx, []uint16{1, 2}, 2)
	require.ErrorIs(t, err, fpgaboard.ErrShortResponse)

	out, err := drv.Transfer(ctx, []uint16{1, 2}, 3)
	require.NoError(t, err)
	assert.Equal(t, []uint16{1, 2, 0}, out)
}

func TestFramedDriver_ConfigureLimit(t *testing.T) {
	t.Parallel()

	drv, vb := newSimDriver()
	err := drv.Configure(context.Background(), frame.MaxWords+1, 1)
	require.ErrorIs(t, err, fpgaboard.ErrInvalidBufferSize)
	assert.Empty(t, vb.CommandLog())
}

func TestFramedDriver_Closed(t *testing.T) {
	t.Parallel()

	drv, _ := newSimDriver()
	require.NoError(t, drv.Close())
	require.NoError(t, drv.Close())

	err := drv.OpenChannel(context.Background())
	require.ErrorIs(t, err, fpgaboard.ErrDriverClosed)
	assert.Equal(t, fpgaboard.DriverSim, drv.Type())
}

func TestFramedDriver_ProgramMissingFile(t *testing.T) {
	t.Parallel()

	drv, _ := newSimDriver()
	err := drv.Program(context.Background(), filepath.Join(t.TempDir(), "nope.bit"))
	require.True(t, errors.Is(err, os.ErrNotExist))
}

func TestSimNew(t *testing.T) {
	t.Parallel()

	drv := sim.New()
	board, err := fpgaboard.NewBoard(drv)
	require.NoError(t, err)
	require.NoError(t, board.InitIO(context.Background(), 1, 1))
	assert.Equal(t, fpgaboard.DriverSim, board.Driver().Type())
	require.NoError(t, board.Close())
}
