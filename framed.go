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
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/ZaparooProject/go-fpgaboard/internal/frame"
	"github.com/ZaparooProject/go-fpgaboard/internal/syncutil"
)

// DefaultResponseTimeout bounds the wait for one board response.
const DefaultResponseTimeout = 2 * time.Second

// FramedOption configures a FramedDriver.
type FramedOption func(*FramedDriver)

// WithResponseTimeout overrides DefaultResponseTimeout.
func WithResponseTimeout(timeout time.Duration) FramedOption {
	return func(d *FramedDriver) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithChunkSize sets the bitstream bytes sent per ProgramData frame.
func WithChunkSize(n int) FramedOption {
	return func(d *FramedDriver) {
		if n > 0 && n <= frame.MaxPayload {
			d.chunkSize = n
		}
	}
}

// FramedDriver implements Driver by exchanging frames over a byte link.
// The link may return (0, nil) from Read when no data is pending, as a
// serial port with a read timeout does; the driver keeps polling until the
// response timeout.
type FramedDriver struct {
	link      io.ReadWriteCloser
	linkType  DriverType
	rx        []byte
	timeout   time.Duration
	chunkSize int
	mu        syncutil.Mutex
	closed    bool
}

// NewFramedDriver wraps link. linkType is reported by Type.
func NewFramedDriver(link io.ReadWriteCloser, linkType DriverType, opts ...FramedOption) *FramedDriver {
	d := &FramedDriver{
		link:      link,
		linkType:  linkType,
		timeout:   DefaultResponseTimeout,
		chunkSize: frame.ProgramChunkSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Configure implements Driver.
func (d *FramedDriver) Configure(ctx context.Context, writeWords, readWords int) error {
	if writeWords > frame.MaxWords || readWords > frame.MaxWords {
		return fmt.Errorf("%w: link carries at most %d words", ErrInvalidBufferSize, frame.MaxWords)
	}
	_, err := d.call(ctx, frame.CmdConfigure, frame.ConfigurePayload(writeWords, readWords))
	return err
}

// Program implements Driver. The file is streamed in chunks between a
// ProgramBegin announcing its length and a ProgramEnd the board answers
// once configuration is complete.
func (d *FramedDriver) Program(ctx context.Context, path string) error {
	f, err := os.Open(path) //nolint:gosec // bitstream path is chosen by the user
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.Size() > math.MaxUint32 {
		return fmt.Errorf("bitstream too large: %d bytes", info.Size())
	}

	begin := binary.LittleEndian.AppendUint32(nil, uint32(info.Size()))
	if _, err := d.call(ctx, frame.CmdProgramBegin, begin); err != nil {
		return err
	}

	chunk := make([]byte, d.chunkSize)
	sent := 0
	for {
		n, readErr := f.Read(chunk)
		if n > 0 {
			if _, err := d.call(ctx, frame.CmdProgramData, chunk[:n]); err != nil {
				return err
			}
			sent += n
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return fmt.Errorf("read bitstream: %w", readErr)
		}
	}
	Debugf("%s: streamed %d bitstream bytes", d.linkType, sent)

	_, err = d.call(ctx, frame.CmdProgramEnd, nil)
	return err
}

// OpenChannel implements Driver.
func (d *FramedDriver) OpenChannel(ctx context.Context) error {
	_, err := d.call(ctx, frame.CmdOpen, nil)
	return err
}

// CloseChannel implements Driver.
func (d *FramedDriver) CloseChannel(ctx context.Context) error {
	_, err := d.call(ctx, frame.CmdClose, nil)
	return err
}

// Transfer implements Driver.
func (d *FramedDriver) Transfer(ctx context.Context, write []uint16, readWords int) ([]uint16, error) {
	data, err := d.call(ctx, frame.CmdTransfer, frame.PackWords(write))
	if err != nil {
		return nil, err
	}
	words, err := frame.UnpackWords(data)
	if err != nil {
		return nil, err
	}
	if len(words) != readWords {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrShortResponse, len(words), readWords)
	}
	return words, nil
}

// Close implements Driver.
func (d *FramedDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	if err := d.link.Close(); err != nil {
		return fmt.Errorf("close %s link: %w", d.linkType, err)
	}
	return nil
}

// Type implements Driver.
func (d *FramedDriver) Type() DriverType {
	return d.linkType
}

// call sends one request and returns the data of its response. A non-OK
// board status comes back as *frame.BoardError carrying the board's text.
func (d *FramedDriver) call(ctx context.Context, cmd byte, payload []byte) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, ErrDriverClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	req, err := frame.Encode(cmd, payload)
	if err != nil {
		return nil, err
	}

	d.rx = d.rx[:0]
	if err := d.writeAll(req); err != nil {
		return nil, err
	}
	return d.readResponse(ctx, cmd)
}

func (d *FramedDriver) writeAll(data []byte) error {
	for len(data) > 0 {
		n, err := d.link.Write(data)
		if err != nil {
			return fmt.Errorf("%s write failed: %w", d.linkType, err)
		}
		if n == 0 {
			return fmt.Errorf("%s write made no progress", d.linkType)
		}
		data = data[n:]
	}
	return nil
}

func (d *FramedDriver) readResponse(ctx context.Context, cmd byte) ([]byte, error) {
	deadline := time.Now().Add(d.timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}

	buf := make([]byte, 512)
	for {
		if len(d.rx) > 0 {
			got, payload, consumed, err := frame.Decode(d.rx)
			d.rx = d.rx[consumed:]
			switch {
			case err == nil && got == cmd|frame.ResponseFlag:
				return frame.SplitStatus(payload)
			case err == nil:
				Debugf("%s: dropping unexpected frame 0x%02X while waiting for 0x%02X", d.linkType, got, cmd)
				continue
			case errors.Is(err, frame.ErrChecksumMismatch):
				d.rx = d.rx[:0]
				return nil, fmt.Errorf("%s response: %w", d.linkType, err)
			}
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w after %v (command 0x%02X)", ErrResponseTimeout, d.timeout, cmd)
		}

		n, err := d.link.Read(buf)
		if n > 0 {
			d.rx = append(d.rx, buf[:n]...)
		}
		if err != nil && !(errors.Is(err, io.EOF) && n > 0) {
			return nil, fmt.Errorf("%s read failed: %w", d.linkType, err)
		}
		if n == 0 {
			time.Sleep(time.Millisecond)
		}
	}
}
