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
	"io"
	"text/tabwriter"
	"time"

	"github.com/ZaparooProject/go-fpgaboard/internal/history"
	"github.com/ZaparooProject/go-fpgaboard/project"
	"github.com/spf13/cobra"
)

func newProjectCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Create and inspect .hwproj projects",
	}
	cmd.PersistentFlags().Bool("validate-projects", false, "reject malformed project files on load")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "new <dir> <name> <design.xml>",
			Short: "Create <dir>/<name>.hwproj from the ports of a design file",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				path, err := a.session().NewProject(args[0], args[1], args[2])
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), path)
				return nil
			},
		},
		&cobra.Command{
			Use:   "show <file.hwproj>",
			Short: "Print a project's name, bitstream and ports",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				session := a.session()
				session.SetFile(args[0])
				_, doc, err := session.LoadDocument()
				if err != nil {
					return err
				}
				return printDocument(cmd.OutOrStdout(), doc)
			},
		},
		&cobra.Command{
			Use:   "design <design.xml>",
			Short: "Print a design file converted to JSON",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				out, err := a.session().DesignJSON(args[0])
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(out))
				return nil
			},
		},
		newProjectRecentCmd(a),
		&cobra.Command{
			Use:   "forget <file.hwproj>",
			Short: "Remove a project from the recent projects list",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				store, err := history.Open(a.cfg.HistoryDB)
				if err != nil {
					return fmt.Errorf("open project history: %w", err)
				}
				defer func() { _ = store.Close() }()

				removed, err := store.Forget(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !removed {
					return fmt.Errorf("%s is not in the recent projects list", args[0])
				}
				return nil
			},
		},
	)
	return cmd
}

func newProjectRecentCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "List recently opened projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := history.Open(a.cfg.HistoryDB)
			if err != nil {
				return fmt.Errorf("open project history: %w", err)
			}
			defer func() { _ = store.Close() }()

			entries, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return printRecent(cmd.OutOrStdout(), entries)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", history.DefaultLimit, "maximum number of projects")
	return cmd
}

func printRecent(out io.Writer, entries []history.Entry) error {
	if len(entries) == 0 {
		_, _ = fmt.Fprintln(out, "No recent projects")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "NAME\tPATH\tOPENED")
	for _, e := range entries {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Name, e.Path, e.OpenedAt.Local().Format(time.DateTime))
	}
	return tw.Flush()
}

func (a *app) session() *project.Session {
	return project.NewSession(project.WithValidation(a.cfg.ValidateProjects))
}

func printDocument(out io.Writer, doc *project.Document) error {
	bitfile := doc.Bitfile
	if bitfile == "" {
		bitfile = "(none)"
	}
	_, _ = fmt.Fprintf(out, "Project: %s\nBitstream: %s\n", doc.ProjectName, bitfile)

	entries := doc.ProjectPorts.Entries()
	if len(entries) == 0 {
		_, _ = fmt.Fprintln(out, "Ports: (none)")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "PORT\tPOSITION")
	for _, e := range entries {
		_, _ = fmt.Fprintf(tw, "%s\t%s\n", e.Name, e.Position)
	}
	return tw.Flush()
}
