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
	"fmt"
	"os"

	"github.com/ZaparooProject/go-fpgaboard/internal/syncutil"
)

// BoardOption configures a Board.
type BoardOption func(*Board) error

// WithMaxWords caps both buffer sizes. Zero means no cap.
func WithMaxWords(n int) BoardOption {
	return func(b *Board) error {
		if n < 0 {
			return fmt.Errorf("max words must not be negative, got %d", n)
		}
		b.maxWords = n
		return nil
	}
}

// WithBoardName sets the label used in debug output.
func WithBoardName(name string) BoardOption {
	return func(b *Board) error {
		b.name = name
		return nil
	}
}

// Board is the session state machine of one FPGA board. It owns the write
// and read buffers for its whole lifetime; callers only ever see copies.
//
// Operations must follow configure → program → open → exchange → close.
// All methods are safe for concurrent use: a single mutex is held for the
// duration of each driver call, so an exchange can never observe buffers
// being reallocated.
type Board struct {
	driver      Driver
	name        string
	writeBuffer []uint16
	readBuffer  []uint16
	mu          syncutil.Mutex
	state       State
	maxWords    int
}

// NewBoard creates an unconfigured board session over driver.
func NewBoard(driver Driver, opts ...BoardOption) (*Board, error) {
	if driver == nil {
		return nil, errors.New("board driver must not be nil")
	}

	b := &Board{
		driver: driver,
		name:   string(driver.Type()),
	}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Driver returns the driver the board was created with.
func (b *Board) Driver() Driver {
	return b.driver
}

// State returns the current lifecycle state.
func (b *Board) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Sizes returns the configured write and read word counts.
func (b *Board) Sizes() (writeWords, readWords int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.writeBuffer), len(b.readBuffer)
}

// WriteBuffer returns a copy of the write buffer.
func (b *Board) WriteBuffer() []uint16 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return cloneWords(b.writeBuffer)
}

// ReadBuffer returns a copy of the read buffer.
func (b *Board) ReadBuffer() []uint16 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return cloneWords(b.readBuffer)
}

// InitIO allocates zero-filled buffers of the given word counts and moves
// the board to StateConfigured. Called from StateProgrammed it discards the
// loaded bitstream state, so Program must run again. It is refused while
// the channel is open; close it first.
func (b *Board) InitIO(ctx context.Context, writeWords, readWords int) error {
	const op = "InitIO"

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateIoOpen {
		return NewOpError(op, KindChannel, ErrChannelOpen)
	}
	if err := b.checkSize(writeWords); err != nil {
		return NewOpError(op, KindConfiguration, err)
	}
	if err := b.checkSize(readWords); err != nil {
		return NewOpError(op, KindConfiguration, err)
	}

	if err := b.driver.Configure(ctx, writeWords, readWords); err != nil {
		return NewOpError(op, KindConfiguration, err)
	}

	b.writeBuffer = make([]uint16, writeWords)
	b.readBuffer = make([]uint16, readWords)
	prev := b.state
	b.state = StateConfigured
	Debugf("%s: configured write=%d read=%d words (was %s)", b.name, writeWords, readWords, prev)
	return nil
}

func (b *Board) checkSize(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidBufferSize, n)
	}
	if b.maxWords > 0 && n > b.maxWords {
		return fmt.Errorf("%w: %d exceeds limit %d", ErrInvalidBufferSize, n, b.maxWords)
	}
	return nil
}

// Program loads the bitstream at path. It is valid from StateConfigured and
// StateProgrammed. A failed load leaves the board in StateConfigured: a
// partially written FPGA is never treated as programmed.
func (b *Board) Program(ctx context.Context, path string) error {
	const op = "Program"

	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateUnconfigured:
		return NewPathError(op, KindConfiguration, path, ErrNotConfigured)
	case StateIoOpen:
		return NewPathError(op, KindChannel, path, ErrChannelOpen)
	case StateConfigured, StateProgrammed:
	}

	if err := checkBitfile(path); err != nil {
		b.state = StateConfigured
		return NewPathError(op, KindProgramming, path, err)
	}

	if err := b.driver.Program(ctx, path); err != nil {
		b.state = StateConfigured
		Debugf("%s: programming %s failed: %v", b.name, path, err)
		return NewPathError(op, KindProgramming, path, err)
	}

	b.state = StateProgrammed
	Debugf("%s: programmed %s", b.name, path)
	return nil
}

func checkBitfile(path string) error {
	if path == "" {
		return fmt.Errorf("%w: empty path", ErrInvalidBitfile)
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrInvalidBitfile, path)
	}
	return nil
}

// IoOpen opens the exchange channel. It fails without touching the driver
// when the board is not programmed or the channel is already open.
func (b *Board) IoOpen(ctx context.Context) error {
	const op = "IoOpen"

	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateIoOpen:
		return NewOpError(op, KindChannel, ErrChannelOpen)
	case StateUnconfigured, StateConfigured:
		return NewOpError(op, KindChannel, ErrNotProgrammed)
	case StateProgrammed:
	}

	if err := b.driver.OpenChannel(ctx); err != nil {
		return NewOpError(op, KindChannel, err)
	}

	b.state = StateIoOpen
	Debugln(b.name, ": channel open")
	return nil
}

// IoClose closes the exchange channel and returns to StateProgrammed. If
// the driver fails to close, the channel is still considered open.
func (b *Board) IoClose(ctx context.Context) error {
	const op = "IoClose"

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateIoOpen {
		return NewOpError(op, KindChannel, ErrChannelNotOpen)
	}

	if err := b.driver.CloseChannel(ctx); err != nil {
		return NewOpError(op, KindChannel, err)
	}

	b.state = StateProgrammed
	Debugln(b.name, ": channel closed")
	return nil
}

// WriteReadData performs one exchange. The write buffer is cleared, words is
// copied into its prefix, the whole buffer is sent and the board's answer
// replaces the read buffer. The returned slice is a snapshot of the read
// buffer. On any failure the read buffer keeps its previous contents.
func (b *Board) WriteReadData(ctx context.Context, words []uint16) ([]uint16, error) {
	const op = "WriteReadData"

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateIoOpen {
		return nil, NewOpError(op, KindIO, ErrChannelNotOpen)
	}
	if len(words) > len(b.writeBuffer) {
		return nil, NewOpError(op, KindIO,
			fmt.Errorf("%w: %d words, buffer holds %d", ErrPayloadTooLarge, len(words), len(b.writeBuffer)))
	}

	clear(b.writeBuffer)
	copy(b.writeBuffer, words)

	resp, err := b.driver.Transfer(ctx, cloneWords(b.writeBuffer), len(b.readBuffer))
	if err != nil {
		return nil, NewOpError(op, KindIO, err)
	}
	if len(resp) != len(b.readBuffer) {
		return nil, NewOpError(op, KindIO,
			fmt.Errorf("%w: got %d, want %d", ErrShortResponse, len(resp), len(b.readBuffer)))
	}

	copy(b.readBuffer, resp)
	return cloneWords(b.readBuffer), nil
}

// Close closes the channel if it is open and releases the driver. The board
// returns to StateUnconfigured.
func (b *Board) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var errs []error
	if b.state == StateIoOpen {
		if err := b.driver.CloseChannel(context.Background()); err != nil {
			errs = append(errs, fmt.Errorf("close channel: %w", err))
		}
	}
	if err := b.driver.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close driver: %w", err))
	}

	b.state = StateUnconfigured
	b.writeBuffer = nil
	b.readBuffer = nil
	return errors.Join(errs...)
}

func cloneWords(words []uint16) []uint16 {
	out := make([]uint16, len(words))
	copy(out, words)
	return out
}
