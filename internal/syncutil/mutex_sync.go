//go:build !deadlock

// Package syncutil holds the mutex types used by the board and project
// sessions. Regular builds get the plain sync types; building with
// -tags=deadlock swaps in github.com/sasha-s/go-deadlock so lock-order
// mistakes between the HTTP handlers and the board session show up in tests.
package syncutil

import "sync"

// Mutex is a sync.Mutex unless built with -tags=deadlock.
//
//nolint:gocritic // embedding exposes Lock/Unlock directly
type Mutex struct {
	sync.Mutex
}

// RWMutex is a sync.RWMutex unless built with -tags=deadlock.
//
//nolint:gocritic // embedding exposes Lock/Unlock/RLock/RUnlock directly
type RWMutex struct {
	sync.RWMutex
}
