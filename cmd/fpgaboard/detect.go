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
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/ZaparooProject/go-fpgaboard"
	"github.com/ZaparooProject/go-fpgaboard/detection"
	"github.com/spf13/cobra"
)

func newDetectCmd(_ *app) *cobra.Command {
	var (
		asJSON     bool
		transports []string
		ignore     []string
	)

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "List attached boards",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := detection.DefaultOptions()
			opts.EnableCache = false
			opts.IgnorePaths = ignore
			for _, t := range transports {
				opts.Transports = append(opts.Transports, fpgaboard.DriverType(t))
			}

			devices, err := detection.DetectAll(cmd.Context(), &opts)
			if err != nil {
				return err
			}
			if asJSON {
				return writeDevicesJSON(cmd.OutOrStdout(), devices)
			}
			return writeDevicesTable(cmd.OutOrStdout(), devices)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	cmd.Flags().StringSliceVar(&transports, "transport", nil, "only check these transports (uart, usb)")
	cmd.Flags().StringSliceVar(&ignore, "ignore", nil, "device paths to skip")
	return cmd
}

type deviceJSON struct {
	Metadata   map[string]string `json:"metadata,omitempty"`
	Device     string            `json:"device"`
	Transport  string            `json:"transport"`
	Name       string            `json:"name"`
	Confidence string            `json:"confidence"`
}

func writeDevicesJSON(out io.Writer, devices []detection.DeviceInfo) error {
	list := make([]deviceJSON, 0, len(devices))
	for _, d := range devices {
		list = append(list, deviceJSON{
			Device:     d.Device(),
			Transport:  string(d.Transport),
			Name:       d.Name,
			Confidence: d.Confidence.String(),
			Metadata:   d.Metadata,
		})
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(list)
}

func writeDevicesTable(out io.Writer, devices []detection.DeviceInfo) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "DEVICE\tTRANSPORT\tNAME\tCONFIDENCE")
	for _, d := range devices {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.Device(), d.Transport, d.Name, d.Confidence)
	}
	return tw.Flush()
}
