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

// Package usb connects to an FPGA board exposing a vendor-class bulk
// interface, using github.com/google/gousb.
package usb

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ZaparooProject/go-fpgaboard"
	"github.com/google/gousb"
)

// Default USB identifiers of the board firmware.
const (
	DefaultVendorID  = 0x1209
	DefaultProductID = 0x5BF0
)

// pollInterval bounds each bulk IN read so the framed driver can check its
// own deadline between reads.
const pollInterval = 20 * time.Millisecond

var (
	// ErrDeviceNotFound is returned by Open when no attached device matches
	// the VID:PID.
	ErrDeviceNotFound = errors.New("USB device not found")
	// ErrNoBulkEndpoint is returned when the vendor interface lacks a bulk
	// IN or OUT endpoint.
	ErrNoBulkEndpoint = errors.New("bulk endpoint not found")
	// ErrInvalidID is returned by ParseID for malformed VID:PID strings.
	ErrInvalidID = errors.New("invalid USB VID:PID")
)

type inEndpoint interface {
	ReadContext(ctx context.Context, buf []byte) (int, error)
}

type outEndpoint interface {
	Write(buf []byte) (int, error)
}

// Link is a byte stream over a pair of bulk endpoints.
type Link struct {
	epIn    inEndpoint
	epOut   outEndpoint
	release func() error
	poll    time.Duration
}

// Read waits up to the poll interval for one bulk IN transfer. A timed out
// transfer reads as (0, nil).
func (l *Link) Read(p []byte) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), l.poll)
	defer cancel()

	n, err := l.epIn.ReadContext(ctx, p)
	if err != nil {
		if errors.Is(err, gousb.TransferCancelled) || errors.Is(err, gousb.TransferTimedOut) ||
			errors.Is(err, context.DeadlineExceeded) {
			return n, nil
		}
		return n, fmt.Errorf("USB read failed: %w", err)
	}
	return n, nil
}

// Write sends p as one bulk OUT transfer.
func (l *Link) Write(p []byte) (int, error) {
	n, err := l.epOut.Write(p)
	if err != nil {
		return n, fmt.Errorf("USB write failed: %w", err)
	}
	return n, nil
}

// Close releases the interface, device and libusb context.
func (l *Link) Close() error {
	if l.release == nil {
		return nil
	}
	release := l.release
	l.release = nil
	return release()
}

// ParseID parses "VID:PID" in hex, with or without a 0x prefix.
func ParseID(s string) (vid, pid uint16, err error) {
	v, p, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	vid, err = parseHex16(v)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	pid, err = parseHex16(p)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	return vid, pid, nil
}

func parseHex16(s string) (uint16, error) {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	n, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, err
	}
	return uint16(n), nil
}

// Open opens the first device matching vid:pid and returns a framed driver
// over its vendor-class bulk endpoints.
func Open(vid, pid uint16, opts ...fpgaboard.FramedOption) (*fpgaboard.FramedDriver, error) {
	usbCtx := gousb.NewContext()

	dev, err := usbCtx.OpenDeviceWithVIDPID(gousb.ID(vid), gousb.ID(pid))
	if err != nil {
		_ = usbCtx.Close()
		return nil, fmt.Errorf("USB error: %w", err)
	}
	if dev == nil {
		_ = usbCtx.Close()
		return nil, fmt.Errorf("%w (VID:0x%04X PID:0x%04X)", ErrDeviceNotFound, vid, pid)
	}

	if err := dev.SetAutoDetach(true); err != nil {
		fpgaboard.Debugf("USB %04X:%04X: auto-detach unavailable: %v", vid, pid, err)
	}

	link, err := claim(dev)
	if err != nil {
		_ = dev.Close()
		_ = usbCtx.Close()
		return nil, err
	}

	release := link.release
	link.release = func() error {
		return errors.Join(release(), dev.Close(), usbCtx.Close())
	}

	fpgaboard.Debugf("USB %04X:%04X opened", vid, pid)
	return fpgaboard.NewFramedDriver(link, fpgaboard.DriverUSB, opts...), nil
}

func claim(dev *gousb.Device) (*Link, error) {
	cfgNum, err := dev.ActiveConfigNum()
	if err != nil {
		cfgNum = 1
	}
	cfg, err := dev.Config(cfgNum)
	if err != nil {
		return nil, fmt.Errorf("failed to get config: %w", err)
	}

	intfNum := 0
	for _, desc := range cfg.Desc.Interfaces {
		if len(desc.AltSettings) > 0 && desc.AltSettings[0].Class == gousb.ClassVendorSpec {
			intfNum = desc.Number
			break
		}
	}

	intf, err := cfg.Interface(intfNum, 0)
	if err != nil {
		_ = cfg.Close()
		return nil, fmt.Errorf("failed to claim interface %d: %w", intfNum, err)
	}

	inAddr, outAddr := bulkEndpoints(intf.Setting)
	if inAddr == 0 || outAddr == 0 {
		intf.Close()
		_ = cfg.Close()
		return nil, fmt.Errorf("%w on interface %d", ErrNoBulkEndpoint, intfNum)
	}

	epOut, err := intf.OutEndpoint(outAddr)
	if err != nil {
		intf.Close()
		_ = cfg.Close()
		return nil, fmt.Errorf("failed to open OUT endpoint: %w", err)
	}
	epIn, err := intf.InEndpoint(inAddr)
	if err != nil {
		intf.Close()
		_ = cfg.Close()
		return nil, fmt.Errorf("failed to open IN endpoint: %w", err)
	}

	return &Link{
		epIn:  epIn,
		epOut: epOut,
		poll:  pollInterval,
		release: func() error {
			intf.Close()
			return cfg.Close()
		},
	}, nil
}

// bulkEndpoints returns the first bulk IN and OUT endpoint numbers, zero
// when absent.
func bulkEndpoints(setting gousb.InterfaceSetting) (inAddr, outAddr int) {
	for _, ep := range setting.Endpoints {
		if ep.TransferType != gousb.TransferTypeBulk {
			continue
		}
		switch {
		case ep.Direction == gousb.EndpointDirectionIn && inAddr == 0:
			inAddr = ep.Number
		case ep.Direction == gousb.EndpointDirectionOut && outAddr == 0:
			outAddr = ep.Number
		}
	}
	return inAddr, outAddr
}
