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
	"log/slog"
	"strings"

	"github.com/ZaparooProject/go-fpgaboard"
	"github.com/ZaparooProject/go-fpgaboard/detection"
	_ "github.com/ZaparooProject/go-fpgaboard/detection/uart"
	_ "github.com/ZaparooProject/go-fpgaboard/detection/usb"
	"github.com/ZaparooProject/go-fpgaboard/driver/sim"
	"github.com/ZaparooProject/go-fpgaboard/driver/spi"
	"github.com/ZaparooProject/go-fpgaboard/driver/uart"
	"github.com/ZaparooProject/go-fpgaboard/driver/usb"
)

var errNoDevice = errors.New("no usable board detected")

// deviceSelection is a parsed device string.
type deviceSelection struct {
	Kind fpgaboard.DriverType
	Path string
	VID  uint16
	PID  uint16
}

// parseDevice parses "sim", "usb", "usb:VID:PID", "spi", "spi:<port>" or a
// serial port path.
func parseDevice(device string) (deviceSelection, error) {
	device = strings.TrimSpace(device)
	lower := strings.ToLower(device)

	switch {
	case device == "":
		return deviceSelection{}, errors.New("empty device")
	case lower == "sim":
		return deviceSelection{Kind: fpgaboard.DriverSim}, nil
	case lower == "usb":
		return deviceSelection{Kind: fpgaboard.DriverUSB, VID: usb.DefaultVendorID, PID: usb.DefaultProductID}, nil
	case strings.HasPrefix(lower, "usb:"):
		vid, pid, err := usb.ParseID(device[len("usb:"):])
		if err != nil {
			return deviceSelection{}, fmt.Errorf("device %q: %w", device, err)
		}
		return deviceSelection{Kind: fpgaboard.DriverUSB, VID: vid, PID: pid}, nil
	case lower == "spi":
		return deviceSelection{Kind: fpgaboard.DriverSPI}, nil
	case strings.HasPrefix(lower, "spi:"):
		return deviceSelection{Kind: fpgaboard.DriverSPI, Path: device[len("spi:"):]}, nil
	default:
		return deviceSelection{Kind: fpgaboard.DriverUART, Path: device}, nil
	}
}

// openSelection opens the driver described by sel.
func openSelection(sel deviceSelection, cfg settings) (fpgaboard.Driver, error) {
	framed := []fpgaboard.FramedOption{fpgaboard.WithResponseTimeout(cfg.ResponseTimeout)}

	switch sel.Kind {
	case fpgaboard.DriverSim:
		return sim.New(), nil
	case fpgaboard.DriverUSB:
		return usb.Open(sel.VID, sel.PID, framed...)
	case fpgaboard.DriverSPI:
		return spi.Open(sel.Path, framed...)
	case fpgaboard.DriverUART:
		uartCfg := uart.DefaultConfig()
		uartCfg.ResponseTimeout = cfg.ResponseTimeout
		return uart.OpenWithConfig(sel.Path, uartCfg)
	default:
		return nil, fmt.Errorf("unsupported driver type: %s", sel.Kind)
	}
}

// pickDevice prefers real hardware rated at least Medium and falls back to
// the simulator.
func pickDevice(devices []detection.DeviceInfo) (detection.DeviceInfo, error) {
	var simDevice *detection.DeviceInfo
	for i := range devices {
		d := devices[i]
		if d.Transport == fpgaboard.DriverSim {
			if simDevice == nil {
				simDevice = &devices[i]
			}
			continue
		}
		if d.Confidence >= detection.Medium {
			return d, nil
		}
	}
	if simDevice != nil {
		return *simDevice, nil
	}
	return detection.DeviceInfo{}, errNoDevice
}

// openDriver opens the configured device, auto-detecting when none is set.
func openDriver(ctx context.Context, cfg settings, logger *slog.Logger) (fpgaboard.Driver, error) {
	device := cfg.Device
	if device == "" {
		opts := detection.DefaultOptions()
		devices, err := detection.DetectAll(ctx, &opts)
		if err != nil {
			return nil, fmt.Errorf("detect board: %w", err)
		}
		picked, err := pickDevice(devices)
		if err != nil {
			return nil, err
		}
		logger.Info("auto-detected board", "device", picked.Device(), "name", picked.Name,
			"confidence", picked.Confidence.String())
		device = picked.Device()
	}

	sel, err := parseDevice(device)
	if err != nil {
		return nil, err
	}
	driver, err := openSelection(sel, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", device, err)
	}
	return driver, nil
}

// openBoard opens the configured device and wraps it in a Board.
func openBoard(ctx context.Context, cfg settings, logger *slog.Logger) (*fpgaboard.Board, error) {
	driver, err := openDriver(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	board, err := fpgaboard.NewBoard(driver, fpgaboard.WithMaxWords(cfg.MaxWords))
	if err != nil {
		_ = driver.Close()
		return nil, err
	}
	return board, nil
}
