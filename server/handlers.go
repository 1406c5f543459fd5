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
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ZaparooProject/go-fpgaboard"
	"github.com/ZaparooProject/go-fpgaboard/internal/history"
)

// StateResponse reports the board lifecycle stage and buffer sizes.
type StateResponse struct {
	Response
	Driver     fpgaboard.DriverType `json:"driver"`
	State      fpgaboard.State      `json:"state"`
	WriteWords int                  `json:"writeWords"`
	ReadWords  int                  `json:"readWords"`
}

// RecentResponse lists recently opened projects, newest first.
type RecentResponse struct {
	Response
	Projects []history.Entry `json:"projects"`
}

type projectBody struct {
	Data string `json:"data"`
}

var (
	errHistoryDisabled = errors.New("project history is disabled")
	errNotRecorded     = errors.New("project is not in the history")
)

func queryInt(r *http.Request, op, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fpgaboard.NewOpError(op, fpgaboard.KindConfiguration,
			fmt.Errorf("invalid %s %q", name, raw))
	}
	return n, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, op string, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fpgaboard.NewOpError(op, fpgaboard.KindConfiguration,
			fmt.Errorf("invalid request body: %w", err))
	}
	return nil
}

func (s *Server) handleInitIO(w http.ResponseWriter, r *http.Request) {
	writeCount, err := queryInt(r, "InitIO", "writeCount")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	readCount, err := queryInt(r, "InitIO", "readCount")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.board.InitIO(r.Context(), writeCount, readCount); err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, Success(MessageSuccess))
}

func (s *Server) handleProgram(w http.ResponseWriter, r *http.Request) {
	if err := s.board.Program(r.Context(), r.URL.Query().Get("bitfile")); err != nil {
		s.notify(r.Context(), "Program failed")
		s.fail(w, r, err)
		return
	}
	s.notify(r.Context(), "Program succeeded")
	s.respond(w, Success(MessageSuccess))
}

func (s *Server) handleIoOpen(w http.ResponseWriter, r *http.Request) {
	if err := s.board.IoOpen(r.Context()); err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, Success(MessageSuccess))
}

func (s *Server) handleIoClose(w http.ResponseWriter, r *http.Request) {
	if err := s.board.IoClose(r.Context()); err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, Success(MessageSuccess))
}

func (s *Server) handleWriteRead(w http.ResponseWriter, r *http.Request) {
	var words []uint16
	if err := decodeBody(w, r, "WriteReadData", &words); err != nil {
		s.fail(w, r, err)
		return
	}
	data, err := s.board.WriteReadData(r.Context(), words)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, WithData(data))
}

func (s *Server) handleSetProjectFile(w http.ResponseWriter, r *http.Request) {
	filename := r.URL.Query().Get("filename")
	s.session.SetFile(filename)
	s.record(r.Context(), filename)
	s.respond(w, WithProjectPath(filename, filename))
}

func (s *Server) handleInit(w http.ResponseWriter, r *http.Request) {
	path, content, err := s.session.Load()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.record(r.Context(), path)
	s.respond(w, WithProjectPath(content, path))
}

func (s *Server) handleWriteJSON(w http.ResponseWriter, r *http.Request) {
	var body projectBody
	if err := decodeBody(w, r, "Save", &body); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.session.Save(r.URL.Query().Get("filename"), body.Data); err != nil {
		s.fail(w, r, err)
		return
	}
	s.notify(r.Context(), "Project saved")
	s.respond(w, Success(MessageSuccess))
}

func (s *Server) handleReadXMLToJSON(w http.ResponseWriter, r *http.Request) {
	out, err := s.session.DesignJSON(r.URL.Query().Get("filename"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, Success(string(out)))
}

func (s *Server) handleNewProject(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	path, err := s.session.NewProject(q.Get("projectdir"), q.Get("projectname"), q.Get("projectiofile"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.record(r.Context(), path)
	s.respond(w, WithProjectPath(path, path))
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeWords, readWords := s.board.Sizes()
	s.writeJSON(w, http.StatusOK, StateResponse{
		Response:   Success(MessageSuccess),
		Driver:     s.board.Driver().Type(),
		State:      s.board.State(),
		WriteWords: writeWords,
		ReadWords:  readWords,
	})
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.fail(w, r, errHistoryDisabled)
		return
	}

	limit := history.DefaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := queryInt(r, "Recent", "limit")
		if err != nil {
			s.fail(w, r, err)
			return
		}
		limit = n
	}

	entries, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, RecentResponse{
		Response: Success(MessageSuccess),
		Projects: entries,
	})
}

func (s *Server) handleForget(w http.ResponseWriter, r *http.Request) {
	const op = "Forget"

	if s.history == nil {
		s.fail(w, r, errHistoryDisabled)
		return
	}

	filename := r.URL.Query().Get("filename")
	removed, err := s.history.Forget(r.Context(), filename)
	if err != nil {
		s.fail(w, r, fpgaboard.NewPathError(op, fpgaboard.KindIO, filename, err))
		return
	}
	if !removed {
		s.fail(w, r, fpgaboard.NewPathError(op, fpgaboard.KindNotFound, filename, errNotRecorded))
		return
	}
	s.respond(w, Success(MessageSuccess))
}
