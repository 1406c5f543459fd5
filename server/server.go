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

// Package server exposes a board and a project session over HTTP under
// /api/fpga/. Every route answers with the Response envelope; failures are
// reported in the envelope, never as panics or transport errors.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/ZaparooProject/go-fpgaboard"
	"github.com/ZaparooProject/go-fpgaboard/internal/history"
	"github.com/ZaparooProject/go-fpgaboard/project"
)

// Prefix is the path prefix of every route.
const Prefix = "/api/fpga/"

const (
	// DefaultShutdownTimeout bounds graceful shutdown.
	DefaultShutdownTimeout = 5 * time.Second
	// maxBodyBytes bounds request bodies; project documents are small.
	maxBodyBytes = 32 << 20
)

// Option configures a Server.
type Option func(*Server)

// WithHistory records opened projects in store.
func WithHistory(store *history.Store) Option {
	return func(s *Server) {
		s.history = store
	}
}

// WithNotifier sets the notification sink. The default logs them.
func WithNotifier(n Notifier) Option {
	return func(s *Server) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Server serves the board and project routes.
type Server struct {
	board    *fpgaboard.Board
	session  *project.Session
	history  *history.Store
	notifier Notifier
	logger   *slog.Logger
	handler  http.Handler
}

// New creates a server for board and session.
func New(board *fpgaboard.Board, session *project.Session, opts ...Option) *Server {
	s := &Server{
		board:   board,
		session: session,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.notifier == nil {
		s.notifier = LogNotifier{Logger: s.logger}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+Prefix+"initio", s.handleInitIO)
	mux.HandleFunc("GET "+Prefix+"program", s.handleProgram)
	mux.HandleFunc("GET "+Prefix+"ioopen", s.handleIoOpen)
	mux.HandleFunc("GET "+Prefix+"ioclose", s.handleIoClose)
	mux.HandleFunc("POST "+Prefix+"writereadfpga", s.handleWriteRead)
	mux.HandleFunc("GET "+Prefix+"setprojectfile", s.handleSetProjectFile)
	mux.HandleFunc("GET "+Prefix+"init", s.handleInit)
	mux.HandleFunc("POST "+Prefix+"writejson", s.handleWriteJSON)
	mux.HandleFunc("GET "+Prefix+"readxmltojson", s.handleReadXMLToJSON)
	mux.HandleFunc("GET "+Prefix+"newproject", s.handleNewProject)
	mux.HandleFunc("GET "+Prefix+"state", s.handleState)
	mux.HandleFunc("GET "+Prefix+"recent", s.handleRecent)
	mux.HandleFunc("DELETE "+Prefix+"recent", s.handleForget)
	s.handler = s.recoverer(mux)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "address", "http://"+ln.Addr().String()+Prefix)
		errCh <- httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()

	s.logger.Info("shutting down server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("server shutdown failed", "error", err)
		return err
	}
	s.logger.Debug("server shut down gracefully")
	return nil
}

// recoverer turns a handler panic into a failed envelope.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				s.logger.Error("handler panic", "path", r.URL.Path, "panic", v)
				s.writeJSON(w, http.StatusInternalServerError, fromPanic(v))
			}
		}()
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "remote_addr", r.RemoteAddr)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to write response", "error", err)
	}
}

// respond writes resp with status 200; operation failures live in the
// envelope.
func (s *Server) respond(w http.ResponseWriter, resp Response) {
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	if !fpgaboard.IsNotFound(err) {
		s.logger.Warn("operation failed", "path", r.URL.Path,
			"kind", fpgaboard.KindOf(err).String(), "error", err)
	}
	s.respond(w, FromError(err))
}

func (s *Server) notify(ctx context.Context, body string) {
	s.notifier.Notify(ctx, NotificationTitle, body)
}

func (s *Server) record(ctx context.Context, path string) {
	if s.history == nil || path == "" {
		return
	}
	if err := s.history.Record(ctx, path, ""); err != nil {
		s.logger.Warn("failed to record project", "path", path, "error", err)
	}
}
