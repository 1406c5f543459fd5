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

// Package spi connects to an FPGA board on an SPI bus through periph.io.
package spi

import (
	"fmt"

	"github.com/ZaparooProject/go-fpgaboard"
	"github.com/ZaparooProject/go-fpgaboard/internal/syncutil"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

const (
	// DefaultFrequency is the bus clock used unless overridden.
	DefaultFrequency = 8 * physic.MegaHertz
	mode             = spi.Mode0

	// readChunk is how many idle bytes are clocked out per Read.
	readChunk = 64
)

type txer interface {
	Tx(w, r []byte) error
}

// Link turns a full-duplex SPI connection into a byte stream. Reads clock
// out zero bytes; the board's idle filler is skipped by frame decoding.
type Link struct {
	conn     txer
	closer   func() error
	portName string
	mu       syncutil.Mutex
}

// Read clocks up to readChunk bytes from the board.
func (l *Link) Read(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := min(len(p), readChunk)
	if n == 0 {
		return 0, nil
	}
	out := make([]byte, n)
	if err := l.conn.Tx(out, p[:n]); err != nil {
		return 0, fmt.Errorf("SPI read on %s: %w", l.portName, err)
	}
	return n, nil
}

// Write clocks p out to the board, discarding the simultaneous input.
func (l *Link) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.conn.Tx(p, nil); err != nil {
		return 0, fmt.Errorf("SPI write on %s: %w", l.portName, err)
	}
	return len(p), nil
}

// Close releases the SPI port.
func (l *Link) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closer == nil {
		return nil
	}
	closer := l.closer
	l.closer = nil
	if err := closer(); err != nil {
		return fmt.Errorf("SPI close %s: %w", l.portName, err)
	}
	return nil
}

// Open opens the named SPI port (an empty name picks the first one
// registered) at DefaultFrequency.
func Open(portName string, opts ...fpgaboard.FramedOption) (*fpgaboard.FramedDriver, error) {
	return OpenWithFrequency(portName, DefaultFrequency, opts...)
}

// OpenWithFrequency is Open with an explicit bus clock.
func OpenWithFrequency(
	portName string, freq physic.Frequency, opts ...fpgaboard.FramedOption,
) (*fpgaboard.FramedDriver, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	port, err := spireg.Open(portName)
	if err != nil {
		return nil, fmt.Errorf("failed to open SPI port %s: %w", portName, err)
	}

	conn, err := port.Connect(freq, mode, 8)
	if err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to connect SPI: %w", err)
	}

	fpgaboard.Debugf("SPI %s connected at %s", portName, freq)
	link := &Link{conn: conn, closer: port.Close, portName: portName}
	return fpgaboard.NewFramedDriver(link, fpgaboard.DriverSPI, opts...), nil
}
