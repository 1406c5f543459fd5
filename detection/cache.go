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

package detection

import (
	"maps"
	"time"

	"github.com/ZaparooProject/go-fpgaboard"
	"github.com/ZaparooProject/go-fpgaboard/internal/syncutil"
)

type resultCache struct {
	entries map[fpgaboard.DriverType]cachedResult
	now     func() time.Time
	mu      syncutil.RWMutex
}

type cachedResult struct {
	storedAt time.Time
	devices  []DeviceInfo
}

var cache = newResultCache(time.Now)

func newResultCache(now func() time.Time) *resultCache {
	return &resultCache{
		entries: make(map[fpgaboard.DriverType]cachedResult),
		now:     now,
	}
}

// lookup returns a copy of the devices stored for transport if they are no
// older than ttl.
func (c *resultCache) lookup(transport fpgaboard.DriverType, ttl time.Duration) ([]DeviceInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	res, ok := c.entries[transport]
	if !ok || c.now().Sub(res.storedAt) > ttl {
		return nil, false
	}
	return cloneDevices(res.devices), true
}

func (c *resultCache) store(transport fpgaboard.DriverType, devices []DeviceInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[transport] = cachedResult{storedAt: c.now(), devices: cloneDevices(devices)}
}

// forget drops transport, or every transport when none is given.
func (c *resultCache) forget(transports ...fpgaboard.DriverType) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(transports) == 0 {
		clear(c.entries)
		return
	}
	for _, t := range transports {
		delete(c.entries, t)
	}
}

// cloneDevices copies devices including their metadata maps.
func cloneDevices(devices []DeviceInfo) []DeviceInfo {
	out := make([]DeviceInfo, len(devices))
	for i, d := range devices {
		d.Metadata = maps.Clone(d.Metadata)
		out[i] = d
	}
	return out
}

func getCached(transport fpgaboard.DriverType, ttl time.Duration) ([]DeviceInfo, bool) {
	return cache.lookup(transport, ttl)
}

func setCached(transport fpgaboard.DriverType, devices []DeviceInfo) {
	cache.store(transport, devices)
}

func clearCache() {
	cache.forget()
}

func clearCacheForTransport(transport fpgaboard.DriverType) {
	cache.forget(transport)
}
