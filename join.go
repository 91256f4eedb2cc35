// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package vcpu

// JoinHandle is a reference-counted waiter ticket for a fiber's completion.
// Each call to JoinEnable must be balanced by exactly one Join; the fiber's
// stack is returned to the pool only once every issued handle has observed
// DONE.
type JoinHandle struct {
	target *Fiber
}

// JoinEnable registers interest in f's completion, incrementing its join
// refcount, and returns a handle to wait on. Calling JoinEnable on an
// already-DONE fiber is valid; the returned handle's Join call returns
// immediately.
func JoinEnable(f *Fiber) *JoinHandle {
	f.joinMu.Lock()
	f.joinRefs++
	f.joinMu.Unlock()
	return &JoinHandle{target: f}
}

// Join suspends the calling fiber until the target of h is DONE, then
// releases h. Calling Join a second time on the same handle is a programming
// error (BAD_STATE).
func Join(h *JoinHandle) {
	f := h.target
	if f == nil {
		badState("Join", "handle already consumed")
		return
	}
	h.target = nil

	f.joinMu.Lock()
	if f.done {
		f.joinRefs--
		releaseIfUnjoined(f)
		f.joinMu.Unlock()
		return
	}
	self := Current()
	if self == nil {
		// called from outside any fiber: busy-poll is the only option,
		// since there is no scheduler to suspend into.
		f.joinMu.Unlock()
		for {
			f.joinMu.Lock()
			done := f.done
			f.joinMu.Unlock()
			if done {
				f.joinMu.Lock()
				f.joinRefs--
				releaseIfUnjoined(f)
				f.joinMu.Unlock()
				return
			}
			osYield()
		}
	}
	f.joinWaiters = append(f.joinWaiters, self)
	f.joinMu.Unlock()

	suspendSelf(self, func() {
		// already recorded in joinWaiters above; no waitSet to link into.
		self.state.Store(FiberWaiting)
	})

	f.joinMu.Lock()
	f.joinRefs--
	releaseIfUnjoined(f)
	f.joinMu.Unlock()
}

// releaseIfUnjoined returns f's stack to the pool once it is DONE and every
// issued JoinHandle has been consumed. Must be called with f.joinMu held.
func releaseIfUnjoined(f *Fiber) {
	if f.done && f.joinRefs <= 0 && f.stack != nil {
		f.vcpu().rt.stacks.Put(f.stack, f.stackClass)
		f.stack = nil
	}
}

// fiberFinished marks f DONE, returns its stack if no JoinHandle is
// outstanding, and wakes every registered joiner in registration order.
func fiberFinished(f *Fiber) {
	f.state.Store(FiberDone)
	f.joinMu.Lock()
	f.done = true
	releaseIfUnjoined(f)
	waiters := f.joinWaiters
	f.joinWaiters = nil
	f.joinMu.Unlock()

	for _, w := range waiters {
		wake(w, nil)
	}
}
