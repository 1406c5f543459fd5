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

// Package frame implements the byte framing spoken on every board link.
//
// A frame on the wire is
//
//	SYNC1 SYNC2 CMD LEN_LO LEN_HI PAYLOAD... CHK
//
// where CHK makes the sum of CMD, both length bytes, the payload and CHK
// itself zero modulo 256. Responses carry the request command with
// ResponseFlag set and a payload that begins with a status byte.
package frame

// Sync bytes that open every frame.
const (
	Sync1 = 0xAA
	Sync2 = 0x55
)

// Frame size limits
const (
	HeaderLength  = 5      // sync pair + command + 16-bit length
	TrailerLength = 1      // checksum
	MaxPayload    = 0xFFFF // 16-bit length field
	MinFrameLen   = HeaderLength + TrailerLength
)

// MaxWords is the largest word count that fits a Transfer request or a
// Transfer response (which spends one payload byte on the status).
const MaxWords = (MaxPayload - 1) / 2

// ResponseFlag is OR-ed into the command byte of a board response.
const ResponseFlag = 0x80

// Host to board commands.
const (
	CmdConfigure    = 0x01 // payload: write words u16, read words u16
	CmdProgramBegin = 0x02 // payload: bitstream length u32
	CmdProgramData  = 0x03 // payload: bitstream chunk
	CmdProgramEnd   = 0x04
	CmdOpen         = 0x05
	CmdClose        = 0x06
	CmdTransfer     = 0x07 // payload: packed write words
)

// Response status bytes.
const (
	StatusOK    = 0x00
	StatusError = 0x01
)

// ProgramChunkSize is the bitstream slice carried by one ProgramData frame.
const ProgramChunkSize = 4096
