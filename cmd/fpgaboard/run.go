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
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ZaparooProject/go-fpgaboard"
	"github.com/spf13/cobra"
)

// runOptions describes one scripted board session.
type runOptions struct {
	Bitfile    string
	Words      []uint16
	WriteWords int
	ReadWords  int
	Count      int
}

func newRunCmd(a *app) *cobra.Command {
	var (
		opts  runOptions
		words string
	)

	cmd := &cobra.Command{
		Use:   "run <bitfile>",
		Short: "Program a bitstream and exchange data once or more",
		Long: `run configures the buffers, programs the bitstream, opens the channel,
performs --count exchanges of --words and prints each read buffer.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := parseWords(words)
			if err != nil {
				return err
			}
			opts.Bitfile = args[0]
			opts.Words = parsed

			board, err := openBoard(cmd.Context(), a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer func() { _ = board.Close() }()

			return runSession(cmd.Context(), board, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVar(&opts.WriteWords, "write-words", 1, "write buffer size in words")
	cmd.Flags().IntVar(&opts.ReadWords, "read-words", 1, "read buffer size in words")
	cmd.Flags().IntVar(&opts.Count, "count", 1, "number of exchanges")
	cmd.Flags().StringVar(&words, "words", "", "comma separated words to write (decimal or 0x hex)")
	return cmd
}

// parseWords parses "1,0x2,3" into words.
func parseWords(s string) ([]uint16, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	words := make([]uint16, 0, len(parts))
	for _, part := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(part), 0, 16)
		if err != nil {
			return nil, fmt.Errorf("invalid word %q: %w", part, err)
		}
		words = append(words, uint16(v))
	}
	return words, nil
}

// runSession drives board through configure, program, open, count
// exchanges and close.
func runSession(ctx context.Context, board *fpgaboard.Board, opts runOptions, out io.Writer) error {
	if opts.Count < 0 {
		return fmt.Errorf("count must not be negative, got %d", opts.Count)
	}

	if err := board.InitIO(ctx, opts.WriteWords, opts.ReadWords); err != nil {
		return err
	}
	if err := board.Program(ctx, opts.Bitfile); err != nil {
		return err
	}
	if err := board.IoOpen(ctx); err != nil {
		return err
	}

	var exchangeErr error
	for i := range opts.Count {
		read, err := board.WriteReadData(ctx, opts.Words)
		if err != nil {
			exchangeErr = err
			break
		}
		_, _ = fmt.Fprintf(out, "%d: %s\n", i+1, formatWords(read))
	}

	return errors.Join(exchangeErr, board.IoClose(ctx))
}

func formatWords(words []uint16) string {
	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = fmt.Sprintf("0x%04X", w)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
