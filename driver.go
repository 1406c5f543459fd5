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
	"fmt"
	"sync"
)

// Driver is the physical board contract. Implementations are synchronous
// and must report failures as errors rather than silently doing nothing.
// Timeouts are the driver's business; the context is honoured where the
// underlying link allows it.
type Driver interface {
	// Configure tells the board the word counts of the two buffers.
	Configure(ctx context.Context, writeWords, readWords int) error

	// Program loads the bitstream file at path onto the FPGA.
	Program(ctx context.Context, path string) error

	// OpenChannel opens the data exchange channel.
	OpenChannel(ctx context.Context) error

	// CloseChannel closes the data exchange channel.
	CloseChannel(ctx context.Context) error

	// Transfer sends write to the board and returns exactly readWords words.
	Transfer(ctx context.Context, write []uint16, readWords int) ([]uint16, error)

	// Close releases the link.
	Close() error

	// Type returns the driver type
	Type() DriverType
}

// DriverType names the link a driver runs over.
type DriverType string

const (
	// DriverUART is a serial link.
	DriverUART DriverType = "uart"
	// DriverUSB is a USB bulk link.
	DriverUSB DriverType = "usb"
	// DriverSPI is an SPI bus link.
	DriverSPI DriverType = "spi"
	// DriverSim is the in-process simulator.
	DriverSim DriverType = "sim"
	// DriverMock is the test double.
	DriverMock DriverType = "mock"
)

// Driver operation names used by MockDriver for error injection.
const (
	OpConfigure    = "configure"
	OpProgram      = "program"
	OpOpenChannel  = "openChannel"
	OpCloseChannel = "closeChannel"
	OpTransfer     = "transfer"
)

// TransferFunc computes a board response in MockDriver.
type TransferFunc func(write []uint16, readWords int) ([]uint16, error)

// MockDriver provides a mock implementation of Driver for testing
type MockDriver struct {
	errors     map[string]error
	calls      map[string]int
	transfer   TransferFunc
	lastWrite  []uint16
	programmed string
	mu         sync.Mutex
	closed     bool
}

// NewMockDriver creates a mock whose transfers echo the write words into the
// read buffer, truncated or zero-padded to the read size.
func NewMockDriver() *MockDriver {
	return &MockDriver{
		errors:   make(map[string]error),
		calls:    make(map[string]int),
		transfer: EchoTransfer,
	}
}

// EchoTransfer copies write into a zeroed response of readWords words.
func EchoTransfer(write []uint16, readWords int) ([]uint16, error) {
	out := make([]uint16, readWords)
	copy(out, write)
	return out, nil
}

func (m *MockDriver) enter(op string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls[op]++
	if m.closed {
		return ErrDriverClosed
	}
	return m.errors[op]
}

// Configure implements Driver.
func (m *MockDriver) Configure(_ context.Context, _, _ int) error {
	return m.enter(OpConfigure)
}

// Program implements Driver.
func (m *MockDriver) Program(_ context.Context, path string) error {
	if err := m.enter(OpProgram); err != nil {
		return err
	}
	m.mu.Lock()
	m.programmed = path
	m.mu.Unlock()
	return nil
}

// OpenChannel implements Driver.
func (m *MockDriver) OpenChannel(_ context.Context) error {
	return m.enter(OpOpenChannel)
}

// CloseChannel implements Driver.
func (m *MockDriver) CloseChannel(_ context.Context) error {
	return m.enter(OpCloseChannel)
}

// Transfer implements Driver.
func (m *MockDriver) Transfer(_ context.Context, write []uint16, readWords int) ([]uint16, error) {
	if err := m.enter(OpTransfer); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.lastWrite = append([]uint16(nil), write...)
	fn := m.transfer
	m.mu.Unlock()

	resp, err := fn(write, readWords)
	if err != nil {
		return nil, fmt.Errorf("mock transfer: %w", err)
	}
	return resp, nil
}

// Close implements Driver.
func (m *MockDriver) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Type implements Driver.
func (*MockDriver) Type() DriverType {
	return DriverMock
}

// Test helper methods

// SetError makes every later call of op fail with err. A nil err clears it.
func (m *MockDriver) SetError(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.errors, op)
		return
	}
	m.errors[op] = err
}

// SetTransfer replaces the transfer behaviour.
func (m *MockDriver) SetTransfer(fn TransferFunc) {
	m.mu.Lock()
	m.transfer = fn
	m.mu.Unlock()
}

// CallCount returns how many times op was invoked.
func (m *MockDriver) CallCount(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// LastWrite returns a copy of the words passed to the most recent transfer.
func (m *MockDriver) LastWrite() []uint16 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]uint16(nil), m.lastWrite...)
}

// ProgrammedPath returns the path of the last successful Program call.
func (m *MockDriver) ProgrammedPath() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.programmed
}

// IsClosed reports whether Close was called.
func (m *MockDriver) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
