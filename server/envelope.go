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

package server

import (
	"fmt"

	"github.com/ZaparooProject/go-fpgaboard"
)

// MessageSuccess is the message of a successful operation without payload.
const MessageSuccess = "success"

// Response is the envelope returned by every route. Data and ProjectPath
// are null when the operation has no such result.
type Response struct {
	Data        []uint16 `json:"data"`
	ProjectPath *string  `json:"projectPath"`
	Message     string   `json:"message"`
	Status      bool     `json:"status"`
}

// Success returns a successful envelope carrying message.
func Success(message string) Response {
	return Response{Message: message, Status: true}
}

// WithProjectPath returns a successful envelope carrying message and path.
func WithProjectPath(message, path string) Response {
	resp := Success(message)
	resp.ProjectPath = &path
	return resp
}

// WithData returns a successful envelope carrying the read words.
func WithData(words []uint16) Response {
	if words == nil {
		words = []uint16{}
	}
	resp := Success(MessageSuccess)
	resp.Data = words
	return resp
}

// FromError maps err to a failed envelope. The "no active project" case
// yields an empty message; every other error carries the underlying
// driver or filesystem text verbatim.
func FromError(err error) Response {
	if err == nil {
		return Success(MessageSuccess)
	}
	if fpgaboard.IsNotFound(err) {
		return Response{}
	}
	return Response{Message: fpgaboard.Message(err)}
}

// fromPanic maps a recovered handler panic to a failed envelope.
func fromPanic(v any) Response {
	return Response{Message: fmt.Sprintf("internal error: %v", v)}
}
