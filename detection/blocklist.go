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

package detection

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultBlocklist returns USB devices that are never boards.
// Format: VID:PID in hexadecimal (case-insensitive).
func DefaultBlocklist() []string {
	return []string{
		"1D6B:0001", // Linux USB 1.1 root hub
		"1D6B:0002", // Linux USB 2.0 root hub
		"1D6B:0003", // Linux USB 3.0 root hub
	}
}

// IsBlocked checks if a USB device is in the blocklist.
func IsBlocked(vidpid string, blocklist []string) bool {
	normalized, ok := NormalizeVIDPID(vidpid)
	if !ok {
		return false
	}

	for _, blocked := range blocklist {
		if b, ok := NormalizeVIDPID(blocked); ok && b == normalized {
			return true
		}
	}
	return false
}

// FormatVIDPID renders a vendor and product ID as "VVVV:PPPP".
func FormatVIDPID(vid, pid uint16) string {
	return fmt.Sprintf("%04X:%04X", vid, pid)
}

// NormalizeVIDPID parses "VID:PID" with optional 0x prefixes and returns it
// in FormatVIDPID form.
func NormalizeVIDPID(s string) (string, bool) {
	vidStr, pidStr, found := strings.Cut(strings.TrimSpace(s), ":")
	if !found {
		return "", false
	}
	vid, err := parseHex16(vidStr)
	if err != nil {
		return "", false
	}
	pid, err := parseHex16(pidStr)
	if err != nil {
		return "", false
	}
	return FormatVIDPID(vid, pid), true
}

func parseHex16(s string) (uint16, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", s, err)
	}
	return uint16(v), nil
}

// IsPathIgnored checks if a device path should be ignored.
// Supports exact path matching and normalized path comparison.
func IsPathIgnored(devicePath string, ignorePaths []string) bool {
	if devicePath == "" || len(ignorePaths) == 0 {
		return false
	}

	normalizedDevice := normalizedPath(devicePath)
	for _, ignorePath := range ignorePaths {
		if ignorePath == "" {
			continue
		}
		if devicePath == ignorePath || normalizedDevice == normalizedPath(ignorePath) {
			return true
		}
	}
	return false
}

// normalizedPath normalizes a device path for comparison. Windows port names
// are case-insensitive.
func normalizedPath(path string) string {
	return strings.ToLower(filepath.Clean(path))
}
