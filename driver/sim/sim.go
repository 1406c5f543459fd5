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

// Package sim provides a wire-level FPGA board simulator. VirtualBoard speaks
// the same framed protocol as the real firmware, so a FramedDriver built on
// top of it exercises the full encode/decode path without hardware.
package sim

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ZaparooProject/go-fpgaboard"
	"github.com/ZaparooProject/go-fpgaboard/internal/frame"
	"github.com/ZaparooProject/go-fpgaboard/internal/syncutil"
)

// ErrClosed is returned by Read and Write after Close.
var ErrClosed = errors.New("virtual board closed")

// Logic computes the read words for one transfer. read is pre-zeroed and
// sized to the configured read length.
type Logic func(write, read []uint16)

// Echo copies the written words into the read buffer, truncating or leaving
// zero padding as needed.
func Echo(write, read []uint16) {
	copy(read, write)
}

// Invert returns the bitwise complement of each written word.
func Invert(write, read []uint16) {
	for i := range read {
		if i < len(write) {
			read[i] = ^write[i]
		}
	}
}

// Snapshot is the externally visible simulator state.
type Snapshot struct {
	WriteWords int
	ReadWords  int
	Bitstream  int
	Configured bool
	Programmed bool
	Open       bool
}

// VirtualBoard simulates board firmware at the frame level. It implements
// io.ReadWriteCloser.
type VirtualBoard struct {
	logic       Logic
	commandLog  []byte
	rxBuffer    bytes.Buffer
	txBuffer    bytes.Buffer
	writeWords  int
	readWords   int
	expected    int
	received    int
	mu          syncutil.Mutex
	configured  bool
	programming bool
	programmed  bool
	open        bool
	closed      bool
	corruptNext bool
	silent      bool
	failCommand byte
	failMessage string
}

// Option configures a VirtualBoard.
type Option func(*VirtualBoard)

// WithLogic replaces the default echo logic.
func WithLogic(logic Logic) Option {
	return func(v *VirtualBoard) {
		if logic != nil {
			v.logic = logic
		}
	}
}

// NewVirtualBoard creates an unconfigured simulator running echo logic.
func NewVirtualBoard(opts ...Option) *VirtualBoard {
	v := &VirtualBoard{logic: Echo}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// New returns a FramedDriver connected to a fresh VirtualBoard.
func New(opts ...Option) *fpgaboard.FramedDriver {
	drv, _ := NewWithBoard(opts...)
	return drv
}

// NewWithBoard is New but also returns the simulator for inspection.
func NewWithBoard(opts ...Option) (*fpgaboard.FramedDriver, *VirtualBoard) {
	vb := NewVirtualBoard(opts...)
	return fpgaboard.NewFramedDriver(vb, fpgaboard.DriverSim), vb
}

// Write receives host bytes and queues responses for complete frames.
func (v *VirtualBoard) Write(data []byte) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return 0, ErrClosed
	}
	v.rxBuffer.Write(data)
	v.process()
	return len(data), nil
}

// Read returns queued response bytes, or (0, nil) when nothing is pending.
func (v *VirtualBoard) Read(buf []byte) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return 0, ErrClosed
	}
	if v.txBuffer.Len() == 0 {
		return 0, nil
	}
	n, err := v.txBuffer.Read(buf)
	if err != nil {
		return n, fmt.Errorf("read from tx buffer: %w", err)
	}
	return n, nil
}

// Close marks the simulator closed.
func (v *VirtualBoard) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
	return nil
}

// CorruptNextResponse flips the checksum of the next response frame.
func (v *VirtualBoard) CorruptNextResponse() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.corruptNext = true
}

// SetSilent makes the simulator swallow commands without answering.
func (v *VirtualBoard) SetSilent(silent bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.silent = silent
}

// FailCommand makes every future cmd answer with an error status carrying
// message. A zero cmd clears the injection.
func (v *VirtualBoard) FailCommand(cmd byte, message string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.failCommand = cmd
	v.failMessage = message
}

// CommandLog returns the command bytes received so far, in order.
func (v *VirtualBoard) CommandLog() []byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]byte, len(v.commandLog))
	copy(out, v.commandLog)
	return out
}

// State returns a snapshot of the simulator state.
func (v *VirtualBoard) State() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return Snapshot{
		WriteWords: v.writeWords,
		ReadWords:  v.readWords,
		Bitstream:  v.received,
		Configured: v.configured,
		Programmed: v.programmed,
		Open:       v.open,
	}
}

func (v *VirtualBoard) process() {
	for v.rxBuffer.Len() > 0 {
		cmd, payload, consumed, err := frame.Decode(v.rxBuffer.Bytes())
		v.rxBuffer.Next(consumed)
		if errors.Is(err, frame.ErrIncomplete) {
			return
		}
		if err != nil {
			fpgaboard.Debugf("sim: discarding frame: %v", err)
			continue
		}

		v.commandLog = append(v.commandLog, cmd)
		if v.silent {
			continue
		}
		data, failure := v.dispatch(cmd, payload)
		v.respond(cmd, data, failure)
	}
}

func (v *VirtualBoard) respond(cmd byte, data []byte, failure string) {
	status := byte(frame.StatusOK)
	if failure != "" {
		status = frame.StatusError
		data = []byte(failure)
	}
	resp, err := frame.EncodeResponse(cmd, status, data)
	if err != nil {
		resp, _ = frame.EncodeResponse(cmd, frame.StatusError, []byte(err.Error()))
	}
	if v.corruptNext {
		resp[len(resp)-1] ^= 0xFF
		v.corruptNext = false
	}
	v.txBuffer.Write(resp)
}

//nolint:gocyclo,revive // one case per protocol command
func (v *VirtualBoard) dispatch(cmd byte, payload []byte) (data []byte, failure string) {
	if v.failCommand != 0 && cmd == v.failCommand {
		return nil, v.failMessage
	}

	switch cmd {
	case frame.CmdConfigure:
		if v.open {
			return nil, "channel open"
		}
		w, r, err := frame.ParseConfigurePayload(payload)
		if err != nil {
			return nil, err.Error()
		}
		v.writeWords, v.readWords = w, r
		v.configured = true
		return nil, ""

	case frame.CmdProgramBegin:
		if !v.configured {
			return nil, "not configured"
		}
		if len(payload) != 4 {
			return nil, "bad program header"
		}
		v.expected = int(binary.LittleEndian.Uint32(payload))
		v.received = 0
		v.programming = true
		v.programmed = false
		return nil, ""

	case frame.CmdProgramData:
		if !v.programming {
			return nil, "no program in progress"
		}
		v.received += len(payload)
		if v.received > v.expected {
			v.programming = false
			return nil, "bitstream overrun"
		}
		return nil, ""

	case frame.CmdProgramEnd:
		if !v.programming {
			return nil, "no program in progress"
		}
		v.programming = false
		if v.expected == 0 || v.received != v.expected {
			return nil, fmt.Sprintf("bitstream incomplete: %d of %d bytes", v.received, v.expected)
		}
		v.programmed = true
		return nil, ""

	case frame.CmdOpen:
		if !v.programmed {
			return nil, "not programmed"
		}
		if v.open {
			return nil, "channel already open"
		}
		v.open = true
		return nil, ""

	case frame.CmdClose:
		if !v.open {
			return nil, "channel not open"
		}
		v.open = false
		return nil, ""

	case frame.CmdTransfer:
		if !v.open {
			return nil, "channel not open"
		}
		write, err := frame.UnpackWords(payload)
		if err != nil {
			return nil, err.Error()
		}
		read := make([]uint16, v.readWords)
		v.logic(write, read)
		return frame.PackWords(read), ""
	}

	return nil, fmt.Sprintf("unknown command 0x%02X", cmd)
}
