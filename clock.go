// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package vcpu

import (
	"sync/atomic"
	"time"
)

// clock caches the monotonic time in microseconds, refreshed once per
// scheduling decision. Reading it is a single atomic load instead of a
// syscall, which matters because it's consulted on every suspend/resume.
type clock struct {
	anchor   time.Time
	micros   atomic.Int64 // microseconds elapsed since anchor
}

func newClock() *clock {
	return &clock{anchor: time.Now()}
}

// advance refreshes the cached now and returns it in microseconds.
func (c *clock) advance() int64 {
	now := int64(time.Since(c.anchor) / time.Microsecond)
	c.micros.Store(now)
	return now
}

// nowMicros returns the last cached monotonic time in microseconds, without
// advancing it. Safe to call from any goroutine (e.g. cross-vcpu Interrupt).
func (c *clock) nowMicros() int64 {
	return c.micros.Load()
}

// deadlineNone marks "no deadline" in the clock's frame; equal to Infinite.
const deadlineNone int64 = -1

// deadlineFromDelta converts a relative microsecond delta, as passed to
// SleepUS/WaitForFD/WaitForEvents, into an absolute deadline in the clock's
// frame. A negative delta (including Infinite) means no deadline at all.
func (c *clock) deadlineFromDelta(deltaUS int64) int64 {
	if deltaUS < 0 {
		return deadlineNone
	}
	return c.nowMicros() + deltaUS
}
