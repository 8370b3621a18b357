// Hajk Presence - Collaborative editing awareness for the Hajk admin console
// Copyright 2026 The Hajk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hajkmap/hajk-presence

package clock

import (
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Fake is a manually advanced Clock for tests, built on clockwork.FakeClock.
//
// clockwork runs AfterFunc callbacks on their own goroutines. Advance steps
// the underlying clock from one deadline to the next and waits for the
// callbacks due at each step, so when it returns every due callback has run,
// in deadline order. Every requested AfterFunc duration is recorded and can
// be inspected with Scheduled.
type Fake struct {
	fc *clockwork.FakeClock

	mu        sync.Mutex
	timers    []*fakeTimer
	scheduled []time.Duration
	seq       uint64
}

// NewFake returns a fake clock set to start.
func NewFake(start time.Time) *Fake {
	return &Fake{fc: clockwork.NewFakeClockAt(start)}
}

// Now returns the fake current time.
func (f *Fake) Now() time.Time {
	return f.fc.Now()
}

// AfterFunc schedules fn to run once the clock is advanced past d.
func (f *Fake) AfterFunc(d time.Duration, fn func()) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	t := &fakeTimer{
		clock: f,
		when:  f.fc.Now().Add(d),
		seq:   f.seq,
		done:  make(chan struct{}),
	}
	t.timer = f.fc.AfterFunc(d, func() {
		defer close(t.done)
		fn()
	})
	f.timers = append(f.timers, t)
	f.scheduled = append(f.scheduled, d)
	return t
}

// NewTicker returns a ticker that ticks each time Advance crosses a period.
func (f *Fake) NewTicker(d time.Duration) Ticker {
	return ticker{t: f.fc.NewTicker(d)}
}

// Scheduled returns every duration passed to AfterFunc, in call order.
func (f *Fake) Scheduled() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]time.Duration, len(f.scheduled))
	copy(out, f.scheduled)
	return out
}

// Pending returns the number of timers that have not fired or been stopped.
func (f *Fake) Pending() int {
	now := f.fc.Now()
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, t := range f.timers {
		if t.when.After(now) {
			n++
		}
	}
	return n
}

// Advance moves the clock forward by d, running due timers and ticking
// due tickers.
func (f *Fake) Advance(d time.Duration) {
	target := f.fc.Now().Add(d)
	for {
		due := f.claimNext(target)
		if len(due) == 0 {
			break
		}
		if step := due[0].when.Sub(f.fc.Now()); step > 0 {
			f.fc.Advance(step)
		}
		for _, t := range due {
			<-t.done
		}
	}
	if rest := target.Sub(f.fc.Now()); rest > 0 {
		f.fc.Advance(rest)
	}
}

// claimNext removes and returns the timers sharing the earliest deadline
// not after target. Claimed timers can no longer be stopped.
func (f *Fake) claimNext(target time.Time) []*fakeTimer {
	f.mu.Lock()
	defer f.mu.Unlock()
	sort.Slice(f.timers, func(i, j int) bool {
		if f.timers[i].when.Equal(f.timers[j].when) {
			return f.timers[i].seq < f.timers[j].seq
		}
		return f.timers[i].when.Before(f.timers[j].when)
	})
	if len(f.timers) == 0 || f.timers[0].when.After(target) {
		return nil
	}
	n := 1
	for n < len(f.timers) && f.timers[n].when.Equal(f.timers[0].when) {
		n++
	}
	due := append([]*fakeTimer(nil), f.timers[:n]...)
	f.timers = f.timers[n:]
	for _, t := range due {
		t.claimed = true
	}
	return due
}

type fakeTimer struct {
	clock *Fake
	timer clockwork.Timer
	when  time.Time
	seq   uint64
	done  chan struct{}

	// Guarded by clock.mu.
	claimed bool
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	f := t.clock
	f.mu.Lock()
	defer f.mu.Unlock()
	if t.claimed || t.stopped || !t.timer.Stop() {
		return false
	}
	t.stopped = true
	for i, ft := range f.timers {
		if ft == t {
			f.timers = append(f.timers[:i], f.timers[i+1:]...)
			break
		}
	}
	return true
}
