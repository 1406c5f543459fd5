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

package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrOddLength is returned when a word payload has a dangling byte.
var ErrOddLength = errors.New("word payload has odd length")

// PackWords encodes 16-bit words little-endian.
func PackWords(words []uint16) []byte {
	out := make([]byte, 2*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint16(out[2*i:], w)
	}
	return out
}

// UnpackWords decodes little-endian 16-bit words.
func UnpackWords(data []byte) ([]uint16, error) {
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrOddLength, len(data))
	}
	words := make([]uint16, len(data)/2)
	for i := range words {
		words[i] = binary.LittleEndian.Uint16(data[2*i:])
	}
	return words, nil
}

// ConfigurePayload encodes the word counts of a Configure request.
func ConfigurePayload(writeWords, readWords int) []byte {
	out := make([]byte, 4)
	binary.LittleEndian.PutUint16(out[0:], uint16(writeWords))
	binary.LittleEndian.PutUint16(out[2:], uint16(readWords))
	return out
}

// ParseConfigurePayload is the board-side inverse of ConfigurePayload.
func ParseConfigurePayload(payload []byte) (writeWords, readWords int, err error) {
	if len(payload) != 4 {
		return 0, 0, fmt.Errorf("configure payload must be 4 bytes, got %d", len(payload))
	}
	return int(binary.LittleEndian.Uint16(payload[0:])), int(binary.LittleEndian.Uint16(payload[2:])), nil
}
