// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package vcpu

import (
	"sync"
	"sync/atomic"
)

// Infinite is the timeout value meaning "block indefinitely" for sleep_us
// and every other blocking call in this package.
const Infinite int64 = -1

// FiberFunc is a fiber's entry point. arg is the value passed to Spawn.
type FiberFunc func(arg any)

// Fiber is a user-space cooperatively scheduled task with its own
// goroutine-backed "stack". Suspension happens only at explicit suspension
// points (Yield, sleep, sync-primitive waits, fd waits) — the goroutine
// underneath blocks on a rendezvous channel at those points, so arbitrary
// Go call depth in between never yields control to the scheduler.
type Fiber struct {
	id    uint64
	owner atomic.Pointer[VCPU] // sole cross-vcpu-mutable field

	state *fastState

	stack      []byte
	stackClass StackSizeClass

	resultErr atomic.Pointer[error] // errno slot, cleared at each suspension

	runNext *Fiber // run-queue intrusive singly-linked FIFO node

	waitPrev, waitNext *Fiber   // wait-list intrusive doubly-linked node
	waitList           *waitSet // list this fiber currently belongs to, if any
	waitData           any      // primitive-specific payload, e.g. semaphore's requested count

	heapIndex int   // timer-heap index; -1 when not present
	deadline  int64 // valid iff heapIndex >= 0

	resume  chan struct{} // scheduler -> fiber: you may run
	handoff chan struct{} // fiber -> scheduler: I have suspended or finished
	started bool          // whether the backing goroutine has been launched

	localsMu sync.Mutex
	locals   *fiberLocals

	joinMu      sync.Mutex
	joinRefs    int32
	joinWaiters []*Fiber
	done        bool

	fn  FiberFunc
	arg any
}

var fiberIDs atomic.Uint64

func newFiber(owner *VCPU, fn FiberFunc, arg any, stackSize int) *Fiber {
	buf, class := owner.rt.stacks.Get(stackSize)
	f := &Fiber{
		id:         fiberIDs.Add(1),
		state:      newFastState(FiberReady),
		stack:      buf,
		stackClass: class,
		heapIndex:  -1,
		resume:     make(chan struct{}),
		handoff:    make(chan struct{}),
		fn:         fn,
		arg:        arg,
	}
	f.owner.Store(owner)
	return f
}

// ID returns the fiber's process-wide unique identifier, stable for its
// lifetime — used as the address form the cross-vcpu interrupt ring carries.
func (f *Fiber) ID() uint64 { return f.id }

// State returns the fiber's current scheduling state.
func (f *Fiber) State() FiberState { return f.state.Load() }

// Err returns the result of the most recently completed blocking call on
// this fiber (nil on a clean wake, ErrTimeout, or an *InterruptError).
func (f *Fiber) Err() error {
	p := f.resultErr.Load()
	if p == nil {
		return nil
	}
	return *p
}

func (f *Fiber) setErr(err error) {
	f.resultErr.Store(&err)
}

func (f *Fiber) vcpu() *VCPU { return f.owner.Load() }

// Current returns the fiber currently executing on the calling goroutine, or
// nil if called from outside any fiber (e.g. the vcpu's own scheduler
// goroutine, or a foreign OS thread).
func Current() *Fiber {
	v, ok := fiberByGID.Load(goroutineID())
	if !ok {
		return nil
	}
	return v.(*Fiber)
}
