// Hajk Presence - Collaborative editing awareness for the Hajk admin console
// Copyright 2026 The Hajk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hajkmap/hajk-presence

// Package clock abstracts wall time and timers so that reconnect backoff,
// staleness eviction and periodic sweeps can be driven deterministically in
// tests. Both the wall clock and the fake are backed by clockwork.
package clock

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Timer is a cancellable one-shot timer.
type Timer interface {
	// Stop prevents the timer from firing. It returns false if the timer
	// already fired or was already stopped.
	Stop() bool
}

// Ticker delivers ticks on C until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Clock provides the current time and schedules callbacks.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
	NewTicker(d time.Duration) Ticker
}

// New returns the wall clock.
func New() Clock {
	return wrap(clockwork.NewRealClock())
}

// wrap narrows a clockwork.Clock to Clock.
func wrap(c clockwork.Clock) Clock {
	return clockworkClock{c: c}
}

type clockworkClock struct {
	c clockwork.Clock
}

func (w clockworkClock) Now() time.Time {
	return w.c.Now()
}

func (w clockworkClock) AfterFunc(d time.Duration, f func()) Timer {
	return w.c.AfterFunc(d, f)
}

func (w clockworkClock) NewTicker(d time.Duration) Ticker {
	return ticker{t: w.c.NewTicker(d)}
}

type ticker struct {
	t clockwork.Ticker
}

func (t ticker) C() <-chan time.Time { return t.t.Chan() }
func (t ticker) Stop()               { t.t.Stop() }
