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

// Package usb detects boards that expose the framed protocol over vendor
// bulk endpoints.
package usb

import (
	"context"
	"errors"
	"fmt"

	"github.com/ZaparooProject/go-fpgaboard"
	"github.com/ZaparooProject/go-fpgaboard/detection"
	usbdriver "github.com/ZaparooProject/go-fpgaboard/driver/usb"
	"github.com/google/gousb"
)

type knownDevice struct {
	Description string
	VendorID    gousb.ID
	ProductID   gousb.ID
	Confidence  detection.Confidence
}

var knownDevices = []knownDevice{
	{
		VendorID:    usbdriver.DefaultVendorID,
		ProductID:   usbdriver.DefaultProductID,
		Description: "FPGA board firmware",
		Confidence:  detection.High,
	},
	{VendorID: 0x1d50, ProductID: 0x6130, Description: "OpenMoko TinyFPGA bootloader", Confidence: detection.Medium},
	{VendorID: 0x1d50, ProductID: 0x614b, Description: "OrangeCrab", Confidence: detection.Medium},
}

// listDescriptors is replaced in tests.
var listDescriptors = enumerateDescriptors

// enumerateDescriptors reads every device descriptor without opening the
// devices.
func enumerateDescriptors(ctx context.Context) (descs []*gousb.DeviceDesc, err error) {
	defer func() {
		// NewContext panics when libusb cannot initialize.
		if r := recover(); r != nil {
			err = fmt.Errorf("libusb unavailable: %v", r)
		}
	}()

	usb := gousb.NewContext()
	defer func() { _ = usb.Close() }()

	_, err = usb.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if ctx.Err() == nil {
			descs = append(descs, desc)
		}
		return false
	})
	if err != nil && !errors.Is(err, gousb.ErrorAccess) {
		return descs, fmt.Errorf("failed to enumerate usb devices: %w", err)
	}
	return descs, nil
}

// detector implements the Detector interface for USB bulk devices.
type detector struct{}

// New creates a new USB detector
func New() detection.Detector {
	return &detector{}
}

func init() {
	detection.RegisterDetector(New())
}

// Transport returns the transport type
func (*detector) Transport() fpgaboard.DriverType {
	return fpgaboard.DriverUSB
}

// Detect matches USB descriptors against known boards. The simulator entry
// is always reported so a session can run without hardware, even when USB
// enumeration fails.
func (*detector) Detect(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	descs, err := listDescriptors(ctx)
	if err != nil {
		fpgaboard.Debugf("detection: usb enumeration failed: %v", err)
	}

	var devices []detection.DeviceInfo
	for _, desc := range descs {
		device, ok := classify(desc)
		if !ok {
			continue
		}
		if detection.IsBlocked(device.Path, opts.Blocklist) {
			continue
		}
		devices = append(devices, device)
	}

	return append(devices, SimDevice()), nil
}

// SimDevice describes the built-in virtual board.
func SimDevice() detection.DeviceInfo {
	return detection.DeviceInfo{
		Transport:  fpgaboard.DriverSim,
		Path:       "sim",
		Name:       "Simulator (no hardware)",
		Confidence: detection.High,
		Metadata:   map[string]string{},
	}
}

func classify(desc *gousb.DeviceDesc) (detection.DeviceInfo, bool) {
	if desc == nil {
		return detection.DeviceInfo{}, false
	}
	for _, known := range knownDevices {
		if desc.Vendor != known.VendorID || desc.Product != known.ProductID {
			continue
		}
		vidpid := detection.FormatVIDPID(uint16(desc.Vendor), uint16(desc.Product))
		return detection.DeviceInfo{
			Transport:  fpgaboard.DriverUSB,
			Path:       vidpid,
			Name:       known.Description,
			Confidence: known.Confidence,
			Metadata: map[string]string{
				"vidpid":  vidpid,
				"bus":     fmt.Sprintf("%d", desc.Bus),
				"address": fmt.Sprintf("%d", desc.Address),
			},
		}, true
	}
	return detection.DeviceInfo{}, false
}
