// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package vcpu

import (
	"errors"
	"sync"

	"github.com/joeycumines/go-vcpu/event"
)

// fdWait records the single fiber currently parked on an fd by a
// MasterEngine — registration is one-shot, so at most one fiber may be
// parked per fd at a time.
type fdWait struct {
	fiber     *Fiber
	interests event.IOEvents
}

// MasterEngine is the per-vcpu translator from fd-readiness and self-wake
// events into fiber wakeups. It lives in the root package,
// not the event package, because waking a fiber requires the suspension
// primitives (suspendSelf, wake) defined here — putting it in the leaf
// event package would create an import cycle.
type MasterEngine struct {
	v       *VCPU
	poller  event.Poller
	wakeSrc *event.WakeSource

	mu      sync.Mutex
	waiters map[int]*fdWait
}

func newMasterEngine(v *VCPU) (*MasterEngine, error) {
	p := event.NewPoller()
	if err := p.Init(); err != nil {
		return nil, err
	}
	me := &MasterEngine{v: v, poller: p, waiters: make(map[int]*fdWait)}
	ws, err := event.NewWakeSource(p, func(event.IOEvents) {})
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	me.wakeSrc = ws
	v.rt.registerEngine(me)
	return me, nil
}

// wake breaks a blocked poll out early — used by the cross-vcpu interrupt
// path to ensure a vcpu parked in poll notices a newly enqueued message
// without waiting for its timeout to elapse.
func (me *MasterEngine) wake() {
	_ = me.wakeSrc.Signal()
}

// poll blocks up to timeoutUS (negative meaning indefinitely) for readiness,
// translating each fd event into a wake of its parked fiber. Callbacks
// dispatched by the underlying Poller run synchronously within this call,
// on the owning vcpu's own scheduler goroutine — the same serialization
// suspendSelf's callers rely on.
func (me *MasterEngine) poll(timeoutUS int64) error {
	timeoutMs := -1
	if timeoutUS >= 0 {
		timeoutMs = int(timeoutUS / 1000)
		if timeoutUS%1000 != 0 {
			timeoutMs++
		}
	}
	_, err := me.poller.PollIO(timeoutMs)
	if err != nil && errors.Is(err, event.ErrPollerClosed) {
		return nil
	}
	return err
}

// waitForFD arms one-shot interest on fd for f, suspends f, and returns the
// result once the fd becomes ready, the deadline elapses, or f is
// interrupted. Registering a second interest for an fd already parked is
// rejected as BAD_STATE.
func (me *MasterEngine) waitForFD(f *Fiber, fd int, interests event.IOEvents, timeoutUS int64) error {
	me.mu.Lock()
	if _, exists := me.waiters[fd]; exists {
		me.mu.Unlock()
		return &StateError{Op: "WaitForFD", Message: "fd already has a parked waiter"}
	}
	me.waiters[fd] = &fdWait{fiber: f, interests: interests}
	me.mu.Unlock()

	clearWaiter := func() (wasRegistered bool) {
		me.mu.Lock()
		if _, ok := me.waiters[fd]; ok {
			delete(me.waiters, fd)
			wasRegistered = true
		}
		me.mu.Unlock()
		return wasRegistered
	}

	if err := me.poller.RegisterFD(fd, interests, func(event.IOEvents) {
		if clearWaiter() {
			_ = me.poller.UnregisterFD(fd)
			wake(f, nil)
		}
	}); err != nil {
		clearWaiter()
		return err
	}

	deadline := me.v.clk.deadlineFromDelta(timeoutUS)
	suspendSelf(f, func() {
		f.state.Store(FiberWaiting)
		if deadline != deadlineNone {
			me.v.timers.insert(f, deadline)
		}
	})

	if clearWaiter() {
		// woken by timeout or interrupt before the fd ever became ready.
		_ = me.poller.UnregisterFD(fd)
	}
	return f.Err()
}

// WaitForFD suspends the calling fiber until fd satisfies interests, the
// deadline (microseconds, Infinite for none) elapses, or the fiber is
// interrupted.
func WaitForFD(fd int, interests event.IOEvents, timeoutUS int64) error {
	self := Current()
	if self == nil {
		badState("WaitForFD", "no current fiber")
		return ErrBadState
	}
	return self.vcpu().master.waitForFD(self, fd, interests, timeoutUS)
}

// WaitForFDReadable is the convenience wrapper for the common
// single-interest case.
func WaitForFDReadable(fd int, timeoutUS int64) error {
	return WaitForFD(fd, event.EventRead, timeoutUS)
}

// WaitForFDWritable is the write-interest counterpart of WaitForFDReadable.
func WaitForFDWritable(fd int, timeoutUS int64) error {
	return WaitForFD(fd, event.EventWrite, timeoutUS)
}

// reset is the fork-hook entry point: the
// underlying fd is no longer valid in a freshly forked child, so the
// engine must close and rebuild it rather than attempt to reuse it.
func (me *MasterEngine) reset() error {
	me.mu.Lock()
	me.waiters = make(map[int]*fdWait)
	me.mu.Unlock()

	_ = me.poller.Close()
	p := event.NewPoller()
	if err := p.Init(); err != nil {
		return err
	}
	ws, err := event.NewWakeSource(p, func(event.IOEvents) {})
	if err != nil {
		_ = p.Close()
		return err
	}
	me.poller = p
	me.wakeSrc = ws
	return nil
}
