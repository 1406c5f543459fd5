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
	"log/slog"

	"github.com/ZaparooProject/go-fpgaboard"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app carries the resolved configuration to subcommands.
type app struct {
	logger    *slog.Logger
	configDir string
	cfg       settings
}

// flagBindings maps config keys to the flags that override them.
var flagBindings = map[string]string{
	cfgKeyDevice:           "device",
	cfgKeyDebug:            "debug",
	cfgKeySessionLog:       "session-log",
	cfgKeyListen:           "listen",
	cfgKeyValidateProjects: "validate-projects",
}

func newRootCmd() *cobra.Command {
	a := &app{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	root := &cobra.Command{
		Use:   "fpgaboard",
		Short: "Configure, program and exchange data with FPGA boards",
		Long: `fpgaboard drives an FPGA board through its lifecycle (configure buffers,
program a bitstream, open the I/O channel, exchange words, close) and manages
.hwproj projects built from design port files.`,
		Version:           Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if path := fpgaboard.GetSessionLogPath(); path != "" {
				a.logger.Info("session log saved", "path", path)
			}
			return fpgaboard.CloseSessionLog()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configDir, "config-dir", "", "configuration directory (default: $XDG_CONFIG_HOME/fpgaboard)")
	flags.String("device", "", "board: sim, usb[:VID:PID], spi[:port] or a serial port (default: auto-detect)")
	flags.Bool("debug", false, "enable debug output")
	flags.String("session-log", "", "directory for a timestamped debug session log")

	root.AddCommand(
		newServeCmd(a),
		newRunCmd(a),
		newProjectCmd(a),
		newDetectCmd(a),
		newVersionCmd(),
	)
	return root
}

// setup loads configuration for every command except version.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == "version" {
		return nil
	}

	configDir, err := resolveConfigDir(a.configDir)
	if err != nil {
		return err
	}
	v, err := loadConfig(configDir)
	if err != nil {
		return err
	}
	if err := bindFlags(v, cmd); err != nil {
		return err
	}

	a.cfg, err = settingsFrom(v, configDir)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if a.cfg.Debug {
		fpgaboard.SetDebugEnabled(true)
	}
	level := slog.LevelInfo
	if fpgaboard.DebugEnabled() {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	if a.cfg.SessionLog != "" {
		path, err := fpgaboard.InitSessionLog(a.cfg.SessionLog)
		if err != nil {
			return fmt.Errorf("session log: %w", err)
		}
		a.logger.Debug("session log started", "path", path)
	}
	return nil
}

// bindFlags lets flags that were set on the command line override the file
// and environment.
func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	for key, name := range flagBindings {
		flag := cmd.Flags().Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}
