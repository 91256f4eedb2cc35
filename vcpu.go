// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package vcpu

import (
	"runtime"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/go-vcpu/ring"
)

// interruptRingCapacity bounds the per-vcpu cross-vcpu interrupt ring.
// Sized generously: under sustained overload the sender spins rather than
// losing a wake, a documented latency degradation, not a correctness bug.
const interruptRingCapacity = 4096

type wakeMsg struct {
	target *Fiber
	err    error
}

// VCPU is an OS thread running one independent instance of the cooperative
// scheduler. Its run-queue, timer heap, and master engine are
// vcpu-local and touched only by its own scheduler goroutine; the
// interrupt ring is the sole structure other vcpus and foreign goroutines
// may address concurrently.
type VCPU struct {
	idx int
	rt  *Runtime

	clk    *clock
	rq     runQueue
	timers timerQueue
	master *MasterEngine

	interruptRing *ring.MPSC[wakeMsg]

	stopRequested bool
	stopped       chan struct{}
}

func newVCPU(rt *Runtime, idx int) (*VCPU, error) {
	v := &VCPU{
		idx:           idx,
		rt:            rt,
		clk:           newClock(),
		interruptRing: ring.NewMPSC[wakeMsg](interruptRingCapacity, ring.Escalating),
		stopped:       make(chan struct{}),
	}
	me, err := newMasterEngine(v)
	if err != nil {
		return nil, err
	}
	v.master = me
	return v, nil
}

// Index is the vcpu's position in the runtime's vcpu registry, stable for
// its lifetime; used as the addressing scheme for the work pool and for
// diagnostics.
func (v *VCPU) Index() int { return v.idx }

// spawn creates a fiber owned by v and places it at the tail of v's
// run-queue. It always returns a fiber: the stack pool never fails to
// produce a buffer (sync.Pool allocates on a miss). It must run on v's own
// scheduler goroutine or a fiber of v.
func (v *VCPU) spawn(fn FiberFunc, arg any, stackSize int) *Fiber {
	f := newFiber(v, fn, arg, stackSize)
	v.rq.pushTail(f)
	return f
}

// Spawn creates a fiber on the vcpu the calling fiber is currently running
// on, placing it at the tail of that vcpu's run-queue. The caller remains
// on the CPU; a subsequent YieldTo may hand control directly to the new
// fiber.
func Spawn(fn FiberFunc, arg any, stackSize int) *Fiber {
	self := Current()
	if self == nil {
		badState("Spawn", "no current fiber; use Runtime.SpawnOn for bootstrap")
		return nil
	}
	return self.vcpu().spawn(fn, arg, stackSize)
}

func (v *VCPU) run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(v.stopped)

	for {
		now := v.clk.advance()

		v.drainInterrupts()

		v.timers.popExpired(now, func(f *Fiber) {
			// popExpired already removed f from the heap; route the rest
			// of the wake through the same state switch wakeLocal uses so
			// a fd-ready callback racing this exact tick stays idempotent.
			switch f.state.Load() {
			case FiberWaiting:
				// A timed-out WaitForFD/cascading wait is a failure: the
				// caller asked for readiness and didn't get it.
				if f.Err() == nil {
					f.setErr(ErrTimeout)
				}
				if f.waitList != nil {
					f.waitList.remove(f)
				}
				v.rq.pushTail(f)
			case FiberSleeping:
				// An ordinary SleepUS timeout is success, not an error —
				// leave f.Err() untouched unless an interrupt already set
				// one.
				v.rq.pushTail(f)
			default:
				// already readied by a concurrent interrupt; no-op.
			}
		})

		if !v.rq.empty() {
			v.resumeFiber(v.rq.popHead())
			continue
		}

		if v.stopRequested && v.timers.empty() {
			return
		}

		timeoutUS := int64(-1)
		if d, ok := v.timers.peekDeadline(); ok {
			t := d - now
			if t < 0 {
				t = 0
			}
			timeoutUS = t
		}
		if err := v.master.poll(timeoutUS); err != nil {
			componentLog(logiface.LevelError, "vcpu").Str("op", "poll").Err(err).Log("master engine poll failed")
		}
	}
}

func (v *VCPU) requestStop() {
	v.stopRequested = true
}

// resumeFiber hands control to f: starts its backing goroutine on first
// use, signals it to run, and blocks until f suspends again or finishes.
// Exactly one of {this scheduler goroutine, f's goroutine} executes at a
// time — the rendezvous channel pair is the "context switch".
func (v *VCPU) resumeFiber(f *Fiber) {
	f.state.Store(FiberRunning)
	if !f.started {
		f.started = true
		go runFiberBody(f)
	}
	f.resume <- struct{}{}
	<-f.handoff
}

func runFiberBody(f *Fiber) {
	registerFiberGoroutine(f)
	<-f.resume
	f.fn(f.arg)
	fiberFinished(f)
	unregisterFiberGoroutine()
	f.handoff <- struct{}{}
}

// suspendSelf is called from within a fiber's own goroutine at every
// suspension point. register runs before control returns to the scheduler
// and must leave f in exactly one resumable structure (run-queue, wait-list,
// or timer heap) — safe without locking because the owning vcpu's scheduler
// goroutine is blocked on <-f.handoff for the whole duration of register.
// f's result slot is cleared first, so Err afterwards holds only the outcome
// of this suspension.
func suspendSelf(f *Fiber, register func()) {
	f.resultErr.Store(nil)
	register()
	f.handoff <- struct{}{}
	<-f.resume
}

// drainInterrupts is scheduler step 2: drains this vcpu's
// cross-vcpu ring, applying each wake locally or forwarding it if the
// target's ownership changed since the message was sent.
func (v *VCPU) drainInterrupts() {
	v.interruptRing.DrainAll(func(msg wakeMsg) {
		f := msg.target
		if f.vcpu() != v {
			deliverWake(f, msg.err)
			return
		}
		v.wakeLocal(f, msg.err)
	})
}

// wakeLocal applies a wake to a fiber already known to be owned by v,
// running on v's own scheduler goroutine. Idempotent: a fiber already
// READY, RUNNING, or DONE is left untouched.
func (v *VCPU) wakeLocal(f *Fiber, err error) {
	switch f.state.Load() {
	case FiberWaiting:
		if f.waitList != nil {
			f.waitList.remove(f)
		}
		f.setErr(err)
		v.rq.pushTail(f)
	case FiberSleeping:
		v.timers.remove(f)
		f.setErr(err)
		v.rq.pushTail(f)
	default:
		// FiberReady, FiberRunning, FiberDone: already runnable, currently
		// executing, or finished — second wakeup is a no-op.
	}
}

// deliverWake is the cross-vcpu-safe entry point every wake path (timer
// expiry delivered locally aside) funnels through: push onto the target's
// owning vcpu ring and break it out of a blocking poll if parked there.
// Delivery to a DONE fiber is silently dropped: the message is still pushed
// and drained, and wakeLocal treats DONE as a no-op, so no special case is
// needed here.
func deliverWake(f *Fiber, err error) {
	owner := f.vcpu()
	if owner == nil {
		return
	}
	if pushErr := owner.interruptRing.Push(wakeMsg{target: f, err: err}); pushErr != nil {
		return
	}
	owner.master.wake()
}

// wake is the package-internal alias sync primitives and the timer service
// use to ready a fiber without distinguishing same-vcpu from cross-vcpu —
// correctness does not depend on the distinction, only latency does.
func wake(f *Fiber, err error) {
	deliverWake(f, err)
}
