// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package timerservice

import (
	"sync/atomic"

	"github.com/joeycumines/go-vcpu"
)

// Callback is invoked on its own dedicated fiber each time a timer fires.
// Returning 0 keeps the timer's current interval for the next tick; a
// non-zero value overrides it. The return value is ignored
// for one-shot timers.
type Callback func() (nextIntervalUS int64)

// cancelCode is the vcpu.InterruptError code Cancel delivers.
const cancelCode int32 = 1

// Timer is a handle to an armed timer.
type Timer struct {
	fiber     *vcpu.Fiber
	cancelled atomic.Bool
	done      chan struct{}
}

// Schedule arms a new timer on the calling fiber's vcpu, backed by a
// dedicated fiber running with stackSize bytes of pooled stack. Must be
// called from within a fiber.
//
// Cancellation is racy by design: a timer interrupted while still sleeping
// is removed before firing and its callback never runs; a timer that has
// already woken from its sleep (the interrupt arrived too late to matter)
// still delivers the in-flight callback — cancellation only prevents the
// *next* tick.
func Schedule(intervalUS int64, repeating bool, stackSize int, cb Callback) *Timer {
	t := &Timer{done: make(chan struct{})}
	t.fiber = vcpu.Spawn(func(any) {
		defer close(t.done)
		interval := intervalUS
		for {
			if t.cancelled.Load() {
				return
			}
			if err := vcpu.SleepUS(interval); err != nil {
				return
			}
			next := cb()
			if !repeating || t.cancelled.Load() {
				return
			}
			if next != 0 {
				interval = next
			}
		}
	}, nil, stackSize)
	return t
}

// Cancel requests the timer stop. See Schedule's doc comment for the
// cancellation race semantics.
func (t *Timer) Cancel() {
	t.cancelled.Store(true)
	vcpu.Interrupt(t.fiber, cancelCode)
}

// Done returns a channel closed once the timer's fiber has exited — either
// cancelled, or (for a one-shot timer) after firing once.
func (t *Timer) Done() <-chan struct{} {
	return t.done
}
