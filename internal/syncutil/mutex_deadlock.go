//go:build deadlock

// Package syncutil holds the mutex types used by the board and project
// sessions. This variant is compiled with -tags=deadlock and reports
// potential deadlocks through github.com/sasha-s/go-deadlock.
package syncutil

import deadlock "github.com/sasha-s/go-deadlock"

// Mutex is a deadlock-detecting mutex.
type Mutex struct {
	deadlock.Mutex
}

// RWMutex is a deadlock-detecting read/write mutex.
type RWMutex struct {
	deadlock.RWMutex
}
