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

package main

import (
	"fmt"

	"github.com/ZaparooProject/go-fpgaboard/internal/history"
	"github.com/ZaparooProject/go-fpgaboard/project"
	"github.com/ZaparooProject/go-fpgaboard/server"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the board and project API over HTTP",
		Long: `serve opens the board and serves the /api/fpga/ routes until interrupted.
An optional argument sets the active project file.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd, args)
		},
	}
	cmd.Flags().String("listen", defaultListen, "HTTP listen address")
	cmd.Flags().Bool("validate-projects", false, "reject malformed project files on load")
	return cmd
}

func (a *app) serve(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	board, err := openBoard(ctx, a.cfg, a.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := board.Close(); err != nil {
			a.logger.Warn("failed to close board", "error", err)
		}
	}()

	store, err := history.Open(a.cfg.HistoryDB)
	if err != nil {
		return fmt.Errorf("open project history: %w", err)
	}
	defer func() { _ = store.Close() }()

	session := project.NewSession(project.WithValidation(a.cfg.ValidateProjects))
	if len(args) == 1 {
		session.SetFile(args[0])
	}

	srv := server.New(board, session,
		server.WithHistory(store),
		server.WithLogger(a.logger),
		server.WithNotifier(server.LogNotifier{Logger: a.logger}),
	)
	a.logger.Info("board ready", "driver", board.Driver().Type())
	return srv.ListenAndServe(ctx, a.cfg.Listen)
}
