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

// Package uart connects to an FPGA board over a serial port using
// go.bug.st/serial.
package uart

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/ZaparooProject/go-fpgaboard"
	"github.com/ZaparooProject/go-fpgaboard/internal/syncutil"
	"go.bug.st/serial"
)

// DefaultBaudRate is the firmware's default line rate.
const DefaultBaudRate = 921600

// Config describes how to open the serial port.
type Config struct {
	BaudRate        int
	ReadTimeout     time.Duration
	ResponseTimeout time.Duration
}

// DefaultConfig returns 921600 8N1 with a platform-appropriate read timeout.
func DefaultConfig() Config {
	return Config{
		BaudRate:    DefaultBaudRate,
		ReadTimeout: readTimeout(),
	}
}

// readTimeout returns the per-read poll interval. Windows serial drivers need
// a longer one.
func readTimeout() time.Duration {
	if runtime.GOOS == "windows" {
		return 100 * time.Millisecond
	}
	return 50 * time.Millisecond
}

// Link adapts a serial.Port to the byte stream a FramedDriver expects.
type Link struct {
	port     serial.Port
	portName string
	mu       syncutil.Mutex
}

// NewLink wraps an already opened port.
func NewLink(port serial.Port, portName string) *Link {
	return &Link{port: port, portName: portName}
}

// Read returns (0, nil) when the read timeout expires with no data.
func (l *Link) Read(p []byte) (int, error) {
	n, err := l.port.Read(p)
	if err != nil {
		return n, fmt.Errorf("UART read on %s: %w", l.portName, err)
	}
	return n, nil
}

// Write sends p and waits for the OS to flush it to the wire.
func (l *Link) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	n, err := l.port.Write(p)
	if err != nil {
		return n, fmt.Errorf("UART write on %s: %w", l.portName, err)
	}
	if err := l.drainWithRetry(); err != nil {
		return n, err
	}
	return n, nil
}

// Close releases the port.
func (l *Link) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.port.Close(); err != nil {
		return fmt.Errorf("UART close %s: %w", l.portName, err)
	}
	return nil
}

// isInterruptedSystemCall reports whether err came from an EINTR.
func isInterruptedSystemCall(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "interrupted system call") ||
		strings.Contains(errStr, "eintr")
}

func (l *Link) drainWithRetry() error {
	const maxRetries = 3
	baseDelay := 2 * time.Millisecond

	for attempt := range maxRetries {
		err := l.port.Drain()
		if err == nil {
			return nil
		}
		if isInterruptedSystemCall(err) && attempt < maxRetries-1 {
			time.Sleep(baseDelay * time.Duration(1<<attempt))
			continue
		}
		return fmt.Errorf("UART drain on %s failed: %w", l.portName, err)
	}
	return fmt.Errorf("UART drain on %s failed after %d retries", l.portName, maxRetries)
}

// Open opens portName with the default configuration.
func Open(portName string) (*fpgaboard.FramedDriver, error) {
	return OpenWithConfig(portName, DefaultConfig())
}

// OpenWithConfig opens portName as 8N1 at cfg.BaudRate and returns a driver
// speaking the framed protocol over it.
func OpenWithConfig(portName string, cfg Config) (*fpgaboard.FramedDriver, error) {
	if cfg.BaudRate <= 0 {
		cfg.BaudRate = DefaultBaudRate
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = readTimeout()
	}

	port, err := serial.Open(portName, &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open UART port %s: %w", portName, err)
	}
	if err := port.SetReadTimeout(cfg.ReadTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to set UART read timeout: %w", err)
	}
	if err := port.ResetInputBuffer(); err != nil {
		fpgaboard.Debugf("UART %s: reset input buffer: %v", portName, err)
	}

	fpgaboard.Debugf("UART %s opened at %d baud", portName, cfg.BaudRate)
	return fpgaboard.NewFramedDriver(NewLink(port, portName), fpgaboard.DriverUART, framedOptions(cfg)...), nil
}

func framedOptions(cfg Config) []fpgaboard.FramedOption {
	if cfg.ResponseTimeout <= 0 {
		return nil
	}
	return []fpgaboard.FramedOption{fpgaboard.WithResponseTimeout(cfg.ResponseTimeout)}
}
