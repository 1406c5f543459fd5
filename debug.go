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
	"fmt"
	"os"
	"time"

	"github.com/ZaparooProject/go-fpgaboard/internal/syncutil"
)

// debugEnabled controls console debug output. Set FPGABOARD_DEBUG or DEBUG
// in the environment, or call SetDebugEnabled.
var debugEnabled = false

// logMu guards the session log writer, which may be a plain buffer in tests.
var logMu syncutil.Mutex

func init() {
	if os.Getenv("FPGABOARD_DEBUG") != "" || os.Getenv("DEBUG") != "" {
		debugEnabled = true
	}
}

// Debugf prints debug information.
// Always written to the session log (if one is open) with a timestamp;
// printed to the console only when debug output is enabled.
func Debugf(format string, args ...any) {
	emit(fmt.Sprintf(format, args...))
}

// Debugln prints debug information, formatting args like fmt.Sprint.
func Debugln(args ...any) {
	emit(fmt.Sprint(args...))
}

func emit(message string) {
	logMu.Lock()
	if sessionLogWriter != nil {
		timestamp := time.Now().Format("15:04:05.000")
		_, _ = fmt.Fprintf(sessionLogWriter, "%s DEBUG: %s\n", timestamp, message)
	}
	logMu.Unlock()

	if debugEnabled {
		_, _ = fmt.Fprintf(os.Stderr, "DEBUG: %s\n", message)
	}
}

// SetDebugEnabled turns console debug output on or off.
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// DebugEnabled reports whether console debug output is on.
func DebugEnabled() bool {
	return debugEnabled
}
