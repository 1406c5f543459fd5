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
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cleanupSessionLog(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		_ = CloseSessionLog()
	})
}

func TestInitSessionLog_CreatesFile(t *testing.T) {
	cleanupSessionLog(t)
	dir := t.TempDir()

	path, err := InitSessionLog(dir)
	require.NoError(t, err)

	assert.Equal(t, dir, filepath.Dir(path))
	_, err = os.Stat(path)
	require.NoError(t, err)

	matched, err := regexp.MatchString(`^fpgaboard_\d{8}_\d{6}\.log$`, filepath.Base(path))
	require.NoError(t, err)
	assert.True(t, matched, "unexpected log name %s", path)
}

func TestSessionLog_HeaderMessagesFooter(t *testing.T) {
	cleanupSessionLog(t)

	path, err := InitSessionLog(t.TempDir())
	require.NoError(t, err)

	Debugf("exchange %d done", 7)
	require.NoError(t, CloseSessionLog())

	content, err := os.ReadFile(path) //nolint:gosec // path comes from InitSessionLog
	require.NoError(t, err)

	text := string(content)
	assert.Contains(t, text, "=== FPGA Board Session Log ===")
	assert.Contains(t, text, "PID:")
	assert.Contains(t, text, "Go Version:")
	assert.Contains(t, text, "Command Line:")
	assert.Contains(t, text, "DEBUG: exchange 7 done")
	assert.Contains(t, text, "=== Session ended ===")
}

func TestCloseSessionLog_NoFile(t *testing.T) {
	cleanupSessionLog(t)
	require.NoError(t, CloseSessionLog())
	assert.NoError(t, CloseSessionLog())
}

func TestGetSessionLogPath(t *testing.T) {
	cleanupSessionLog(t)
	require.NoError(t, CloseSessionLog())

	assert.Empty(t, GetSessionLogPath())

	path, err := InitSessionLog(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, path, GetSessionLogPath())

	require.NoError(t, CloseSessionLog())
	assert.Empty(t, GetSessionLogPath())
}

func TestInitSessionLog_MissingDirectory(t *testing.T) {
	cleanupSessionLog(t)

	_, err := InitSessionLog(filepath.Join(t.TempDir(), "missing", "dir"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create session log")
	assert.Empty(t, GetSessionLogPath())
}
