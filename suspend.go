// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package vcpu

// Yield pushes the calling fiber to the tail of its vcpu's run-queue and
// switches to the next ready fiber. Must be called from within a fiber.
func Yield() {
	self := Current()
	if self == nil {
		badState("Yield", "no current fiber")
		return
	}
	v := self.vcpu()
	suspendSelf(self, func() { v.rq.pushTail(self) })
}

// YieldTo is a hint: if other is READY on the calling fiber's own vcpu, it
// runs next; otherwise this falls back to a plain Yield.
func YieldTo(other *Fiber) {
	self := Current()
	if self == nil {
		badState("YieldTo", "no current fiber")
		return
	}
	v := self.vcpu()
	if other == nil || other.vcpu() != v || other.State() != FiberReady {
		Yield()
		return
	}
	suspendSelf(self, func() {
		v.rq.pushTail(self)
		v.promoteToHead(other)
	})
}

// promoteToHead moves an already-enqueued ready fiber to the front of the
// run-queue so it is the very next fiber resumed — the only way YieldTo can
// honor its hint without introducing a second, parallel ready structure.
func (v *VCPU) promoteToHead(target *Fiber) {
	if v.rq.head == target {
		return
	}
	var prev *Fiber
	for cur := v.rq.head; cur != nil; cur = cur.runNext {
		if cur == target {
			if prev != nil {
				prev.runNext = cur.runNext
			} else {
				v.rq.head = cur.runNext
			}
			if v.rq.tail == cur {
				v.rq.tail = prev
			}
			cur.runNext = v.rq.head
			v.rq.head = cur
			if v.rq.tail == nil {
				v.rq.tail = cur
			}
			return
		}
		prev = cur
	}
}

// SleepUS suspends the calling fiber for at least deltaUS microseconds,
// returning nil on ordinary timeout or the interruption error if woken
// early by Interrupt. sleep_us(0) yields unconditionally without touching
// the timer heap.
func SleepUS(deltaUS int64) error {
	self := Current()
	if self == nil {
		badState("SleepUS", "no current fiber")
		return ErrBadState
	}
	return sleepUSDefer(self, deltaUS, nil)
}

// SleepUSDefer is identical to SleepUS but invokes cb after the fiber has
// been placed in its resumable structure (timer heap or run-queue) and
// before control returns to the scheduler — letting callers atomically
// install a "wake-me" registration elsewhere without a TOCTOU race against
// the sleep itself firing first.
func SleepUSDefer(deltaUS int64, cb func()) error {
	self := Current()
	if self == nil {
		badState("SleepUSDefer", "no current fiber")
		return ErrBadState
	}
	return sleepUSDefer(self, deltaUS, cb)
}

func sleepUSDefer(self *Fiber, deltaUS int64, cb func()) error {
	v := self.vcpu()
	if deltaUS == 0 {
		suspendSelf(self, func() {
			v.rq.pushTail(self)
			if cb != nil {
				cb()
			}
		})
		return self.Err()
	}

	deadline := v.clk.deadlineFromDelta(deltaUS)
	suspendSelf(self, func() {
		self.state.Store(FiberSleeping)
		if deadline != deadlineNone {
			v.timers.insert(self, deadline)
		}
		if cb != nil {
			cb()
		}
	})
	return self.Err()
}

// Interrupt makes target runnable with err recorded on its result slot. Safe
// to call from any vcpu or from a goroutine outside the runtime entirely.
// Delivery to an already-DONE fiber is silently dropped.
func Interrupt(target *Fiber, code int32) {
	wake(target, &InterruptError{Code: code})
}
