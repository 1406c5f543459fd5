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

// Package history keeps a small SQLite index of recently opened projects.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// DefaultLimit is the number of entries Recent returns when asked for zero.
const DefaultLimit = 10

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

const createProjects = `CREATE TABLE IF NOT EXISTS projects (
    project_id TEXT PRIMARY KEY,
    path TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL,
    opened_at TEXT NOT NULL,
    seq INTEGER NOT NULL
);`

const upsertProject = `INSERT INTO projects (project_id, path, name, opened_at, seq)
VALUES (?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM projects))
ON CONFLICT(path) DO UPDATE SET
    name = excluded.name,
    opened_at = excluded.opened_at,
    seq = excluded.seq`

// ErrClosed is returned by queries on a closed Store.
var ErrClosed = errors.New("history store is closed")

// Entry is one remembered project.
type Entry struct {
	OpenedAt time.Time `json:"openedAt"`
	ID       string    `json:"id"`
	Path     string    `json:"path"`
	Name     string    `json:"name"`
}

// Store is the recent-projects index.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the database at path, creating parent directories.
func Open(path string) (*Store, error) {
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createProjects); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create history schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func generateID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// Record marks path as just opened. An empty name defaults to the file name
// without its extension.
func (s *Store) Record(ctx context.Context, path, name string) error {
	if s.db == nil {
		return ErrClosed
	}
	if path == "" {
		return errors.New("history: empty project path")
	}
	if name == "" {
		base := filepath.Base(path)
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}

	openedAt := s.now().UTC().Format(time.RFC3339)
	if _, err := s.db.ExecContext(ctx, upsertProject, generateID(), path, name, openedAt); err != nil {
		return fmt.Errorf("record %s: %w", path, err)
	}
	return nil
}

// Recent returns up to limit entries, most recently opened first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if s.db == nil {
		return nil, ErrClosed
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT project_id, path, name, opened_at FROM projects ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var openedAt string
		if err := rows.Scan(&e.ID, &e.Path, &e.Name, &openedAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		e.OpenedAt, err = time.Parse(time.RFC3339, openedAt)
		if err != nil {
			return nil, fmt.Errorf("parse opened_at %q: %w", openedAt, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Forget removes path. It reports whether an entry existed.
func (s *Store) Forget(ctx context.Context, path string) (bool, error) {
	if s.db == nil {
		return false, ErrClosed
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE path = ?`, path)
	if err != nil {
		return false, fmt.Errorf("forget %s: %w", path, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Close closes the database. Further calls return ErrClosed.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
