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

// Package uart detects boards reachable through USB serial bridges.
package uart

import (
	"context"
	"fmt"
	"strings"

	"github.com/ZaparooProject/go-fpgaboard"
	"github.com/ZaparooProject/go-fpgaboard/detection"
	"go.bug.st/serial/enumerator"
)

// knownBridges are USB serial bridges commonly soldered onto FPGA boards.
var knownBridges = map[string]string{
	"0403:6001": "FTDI FT232R",
	"0403:6010": "FTDI FT2232H",
	"0403:6011": "FTDI FT4232H",
	"0403:6014": "FTDI FT232H",
	"10C4:EA60": "Silicon Labs CP210x",
	"1A86:7523": "QinHeng CH340",
	"067B:2303": "Prolific PL2303",
}

var boardKeywords = []string{"fpga", "ice40", "ecp5", "digilent", "jtag"}

// listPorts is replaced in tests.
var listPorts = enumerator.GetDetailedPortsList

// detector implements the Detector interface for serial ports.
type detector struct{}

// New creates a new UART detector
func New() detection.Detector {
	return &detector{}
}

func init() {
	detection.RegisterDetector(New())
}

// Transport returns the transport type
func (*detector) Transport() fpgaboard.DriverType {
	return fpgaboard.DriverUART
}

// Detect lists USB serial ports and rates each one. Built-in serial ports
// are skipped because boards enumerate as USB devices.
func (*detector) Detect(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	ports, err := listPorts()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}

	var devices []detection.DeviceInfo
	for _, port := range ports {
		if ctx.Err() != nil {
			return devices, nil
		}
		if port == nil || !port.IsUSB {
			continue
		}

		device := deviceFromPort(port)
		if vidpid, ok := device.Metadata["vidpid"]; ok && detection.IsBlocked(vidpid, opts.Blocklist) {
			continue
		}
		if detection.IsPathIgnored(device.Path, opts.IgnorePaths) {
			continue
		}
		devices = append(devices, device)
	}

	if len(devices) == 0 {
		return nil, detection.ErrNoDevicesFound
	}
	return devices, nil
}

func deviceFromPort(port *enumerator.PortDetails) detection.DeviceInfo {
	device := detection.DeviceInfo{
		Transport:  fpgaboard.DriverUART,
		Path:       port.Name,
		Name:       port.Name,
		Confidence: detection.Low,
		Metadata:   make(map[string]string),
	}

	if vidpid, ok := detection.NormalizeVIDPID(port.VID + ":" + port.PID); ok {
		device.Metadata["vidpid"] = vidpid
		if bridge, known := knownBridges[vidpid]; known {
			device.Name = bridge
			device.Confidence = detection.Medium
		}
	}
	if port.Product != "" {
		device.Metadata["product"] = port.Product
		device.Name = port.Product
		if hasBoardKeyword(port.Product) {
			device.Confidence = detection.Medium
		}
	}
	if port.SerialNumber != "" {
		device.Metadata["serial"] = port.SerialNumber
	}
	return device
}

func hasBoardKeyword(product string) bool {
	lower := strings.ToLower(product)
	for _, keyword := range boardKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}
