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

// Package linktest provides link wrappers that reproduce the delivery
// patterns of real board links in tests.
package linktest

import (
	"io"
	"math/rand/v2"
	"time"
)

// usbPacketSize is the full-speed bulk packet size bridges deliver in.
const usbPacketSize = 64

// JitterConfig configures a JitteryLink.
type JitterConfig struct {
	MaxLatency       time.Duration
	StallDuration    time.Duration
	FragmentMinBytes int
	StallAfterBytes  int
	Seed             uint64
	FragmentReads    bool
	PacketBoundaries bool
}

// DefaultJitterConfig fragments every read with up to 2ms latency.
func DefaultJitterConfig() JitterConfig {
	return JitterConfig{
		MaxLatency:       2 * time.Millisecond,
		FragmentReads:    true,
		FragmentMinBytes: 1,
	}
}

// JitteryLink wraps a link and hands read data back in random fragments,
// the way USB-UART bridges deliver a response over several reads. Writes
// pass through untouched. Buffered bytes are never lost.
type JitteryLink struct {
	backend   io.ReadWriteCloser
	rng       *rand.Rand
	pending   []byte
	config    JitterConfig
	delivered int
	stalled   bool
}

// NewJitteryLink wraps backend. A zero Seed picks a random one.
func NewJitteryLink(backend io.ReadWriteCloser, config JitterConfig) *JitteryLink {
	seed := config.Seed
	if seed == 0 {
		seed = rand.Uint64() //nolint:gosec // test jitter
	}
	if config.FragmentMinBytes < 1 {
		config.FragmentMinBytes = 1
	}
	return &JitteryLink{
		backend: backend,
		config:  config,
		rng:     rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15)), //nolint:gosec // test jitter
		pending: make([]byte, 0, 1024),
	}
}

// Write passes data to the backend.
func (j *JitteryLink) Write(p []byte) (int, error) {
	return j.backend.Write(p) //nolint:wrapcheck // pass-through
}

// Close closes the backend.
func (j *JitteryLink) Close() error {
	return j.backend.Close() //nolint:wrapcheck // pass-through
}

// Read returns a fragment of the buffered backend data. Like a serial port
// with a read timeout it returns (0, nil) when nothing is pending.
func (j *JitteryLink) Read(p []byte) (int, error) {
	if j.config.MaxLatency > 0 {
		if delay := time.Duration(j.rng.Int64N(int64(j.config.MaxLatency) + 1)); delay > 0 {
			time.Sleep(delay)
		}
	}

	if len(j.pending) == 0 {
		tmp := make([]byte, 1024)
		n, err := j.backend.Read(tmp)
		if err != nil {
			return 0, err //nolint:wrapcheck // pass-through
		}
		if n == 0 {
			return 0, nil
		}
		j.pending = append(j.pending, tmp[:n]...)
	}

	n := min(len(j.pending), len(p))
	n = j.limitForStall(n)
	n = j.limitForPacket(n)
	if j.config.FragmentReads && n > j.config.FragmentMinBytes {
		n = j.config.FragmentMinBytes + j.rng.IntN(n-j.config.FragmentMinBytes+1)
	}

	copy(p, j.pending[:n])
	j.pending = j.pending[n:]
	j.delivered += n
	return n, nil
}

// limitForStall stops delivery at StallAfterBytes and sleeps once before
// delivering the rest.
func (j *JitteryLink) limitForStall(n int) int {
	if j.config.StallAfterBytes <= 0 || j.stalled {
		return n
	}
	if j.delivered >= j.config.StallAfterBytes {
		j.stalled = true
		time.Sleep(j.config.StallDuration)
		return n
	}
	return min(n, j.config.StallAfterBytes-j.delivered)
}

// limitForPacket never lets a read cross a 64-byte packet boundary.
func (j *JitteryLink) limitForPacket(n int) int {
	if !j.config.PacketBoundaries || n == 0 {
		return n
	}
	untilBoundary := usbPacketSize - j.delivered%usbPacketSize
	return min(n, untilBoundary)
}

// Delivered reports how many bytes have been read through the wrapper.
func (j *JitteryLink) Delivered() int {
	return j.delivered
}
