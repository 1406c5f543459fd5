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

// Frame errors
var (
	ErrIncomplete       = errors.New("incomplete frame")
	ErrChecksumMismatch = errors.New("frame checksum mismatch")
	ErrPayloadTooLarge  = errors.New("frame payload too large")
	ErrMissingStatus    = errors.New("response payload missing status byte")
)

// BoardError is a non-OK status returned by the board. Message is the text
// the board sent after the status byte and is kept verbatim.
type BoardError struct {
	Message string
	Status  byte
}

func (e *BoardError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("board returned status 0x%02X", e.Status)
}

// Encode builds a complete frame for cmd carrying payload.
func Encode(cmd byte, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayload {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}

	out := make([]byte, 0, MinFrameLen+len(payload))
	out = append(out, Sync1, Sync2, cmd)
	out = binary.LittleEndian.AppendUint16(out, uint16(len(payload)))
	out = append(out, payload...)
	out = append(out, CalculateChecksum(out[2:]))
	return out, nil
}

// EncodeResponse builds the board's reply to cmd.
func EncodeResponse(cmd, status byte, data []byte) ([]byte, error) {
	payload := make([]byte, 0, 1+len(data))
	payload = append(payload, status)
	payload = append(payload, data...)
	return Encode(cmd|ResponseFlag, payload)
}

// Decode extracts the first complete frame from buf. Bytes preceding the
// sync pair are skipped. consumed is the number of bytes of buf the caller
// can drop, and is meaningful for ErrIncomplete and ErrChecksumMismatch as
// well: it discards garbage, or the sync pair of a corrupt frame so the next
// call resynchronises. The returned payload does not alias buf.
func Decode(buf []byte) (cmd byte, payload []byte, consumed int, err error) {
	start := findSync(buf)
	if start < 0 {
		keep := 0
		if len(buf) > 0 && buf[len(buf)-1] == Sync1 {
			keep = 1
		}
		return 0, nil, len(buf) - keep, ErrIncomplete
	}

	if len(buf)-start < HeaderLength {
		return 0, nil, start, ErrIncomplete
	}

	length := int(binary.LittleEndian.Uint16(buf[start+3 : start+5]))
	end := start + HeaderLength + length + TrailerLength
	if len(buf) < end {
		return 0, nil, start, ErrIncomplete
	}

	if !ValidateChecksum(buf, start+2, end) {
		return 0, nil, start + 2, ErrChecksumMismatch
	}

	cmd = buf[start+2]
	payload = make([]byte, length)
	copy(payload, buf[start+HeaderLength:end-TrailerLength])
	return cmd, payload, end, nil
}

// SplitStatus separates a response payload into its status and data. A
// non-OK status is returned as a *BoardError.
func SplitStatus(payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, ErrMissingStatus
	}
	if payload[0] != StatusOK {
		return nil, &BoardError{Status: payload[0], Message: string(payload[1:])}
	}
	return payload[1:], nil
}

func findSync(buf []byte) int {
	for i := 0; i+1 < len(buf); i++ {
		if buf[i] == Sync1 && buf[i+1] == Sync2 {
			return i
		}
	}
	return -1
}
