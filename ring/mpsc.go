// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package ring

import "sync/atomic"

// MPSC is a bounded multi-producer/single-consumer ring: producers CAS the
// head counter to claim a slot, the single consumer advances the tail
// counter with a plain load+store. This is the ring go-vcpu uses for
// cross-vcpu interrupt delivery — every other vcpu and any non-runtime OS
// thread is a producer, the owning vcpu's scheduler loop is the sole
// consumer, draining it on every scheduling decision.
type MPSC[T any] struct {
	buf    []cell[T]
	mask   uint64
	head   atomic.Uint64
	tail   uint64 // consumer-owned
	pause  Pause
	closed atomic.Bool
}

// NewMPSC constructs an MPSC ring of the given capacity (rounded to a power
// of two, minimum 2).
func NewMPSC[T any](capacity int, pause Pause) *MPSC[T] {
	capacity = nextPow2(capacity)
	if pause == nil {
		pause = Gosched
	}
	r := &MPSC[T]{buf: make([]cell[T], capacity), mask: uint64(capacity - 1), pause: pause}
	for i := range r.buf {
		r.buf[i].turn.Store(uint64(i) * 2)
	}
	return r
}

func (r *MPSC[T]) Close() { r.closed.Store(true) }

// TryPush is a producer's non-blocking attempt to enqueue.
func (r *MPSC[T]) TryPush(v T) bool {
	c := r.head.Load()
	idx := c & r.mask
	gen := c / uint64(len(r.buf))
	cell := &r.buf[idx]
	if cell.turn.Load() != gen*2 {
		return false
	}
	if !r.head.CompareAndSwap(c, c+1) {
		return false
	}
	cell.val = v
	cell.turn.Store(gen*2 + 1)
	return true
}

// Push busy-waits (via the configured Pause) until the value is enqueued or
// the ring is closed. Sustained overload here is a documented latency
// degradation, not a correctness bug.
func (r *MPSC[T]) Push(v T) error {
	n := 0
	for {
		if r.closed.Load() {
			return ErrClosed
		}
		if r.TryPush(v) {
			return nil
		}
		n++
		r.pause(n)
	}
}

// TryPop is the (sole) consumer's non-blocking attempt.
func (r *MPSC[T]) TryPop() (T, bool) {
	var zero T
	c := r.tail
	idx := c & r.mask
	gen := c / uint64(len(r.buf))
	cell := &r.buf[idx]
	if cell.turn.Load() != gen*2+1 {
		return zero, false
	}
	v := cell.val
	cell.val = zero
	cell.turn.Store(gen*2 + 2)
	r.tail = c + 1
	return v, true
}

// DrainAll pops every currently-available value without blocking, calling fn
// for each — the shape the scheduler loop's "drain the cross-vcpu ring on
// every scheduling decision" step actually uses.
func (r *MPSC[T]) DrainAll(fn func(T)) {
	for {
		v, ok := r.TryPop()
		if !ok {
			return
		}
		fn(v)
	}
}
