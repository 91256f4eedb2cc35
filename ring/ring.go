// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package ring

import (
	"errors"
	"sync/atomic"
)

// ErrClosed is returned by blocking Push/Pop calls on a ring that has been
// closed via Close.
var ErrClosed = errors.New("ring: closed")

type cell[T any] struct {
	turn atomic.Uint64
	val  T
}

// MPMC is a bounded, lock-free multi-producer/multi-consumer ring buffer.
// Capacity is rounded up to the next power of two. head/tail are
// free-running counters; cell index is the counter
// modulo capacity, generation is the counter divided by capacity, and each
// cell's turn field gates producer/consumer hand-off so that a producer at
// counter c only writes once the previous consumer of that slot has
// finished reading it.
type MPMC[T any] struct {
	buf    []cell[T]
	mask   uint64
	head   atomic.Uint64
	tail   atomic.Uint64
	pause  Pause
	closed atomic.Bool
}

// NewMPMC constructs an MPMC ring with the given capacity (rounded up to a
// power of two, minimum 2) and pause strategy (Gosched if nil).
func NewMPMC[T any](capacity int, pause Pause) *MPMC[T] {
	capacity = nextPow2(capacity)
	if pause == nil {
		pause = Gosched
	}
	r := &MPMC[T]{
		buf:   make([]cell[T], capacity),
		mask:  uint64(capacity - 1),
		pause: pause,
	}
	for i := range r.buf {
		r.buf[i].turn.Store(uint64(i) * 2)
	}
	return r
}

func nextPow2(n int) int {
	if n < 2 {
		return 2
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// Cap returns the ring's capacity.
func (r *MPMC[T]) Cap() int { return len(r.buf) }

// Close marks the ring closed. Push then returns ErrClosed; Pop keeps
// returning values still queued and returns ErrClosed once the ring is
// empty.
func (r *MPMC[T]) Close() { r.closed.Store(true) }

// TryPush attempts a single non-blocking push, returning false if the ring
// is momentarily full (the slot this producer would claim isn't free yet).
func (r *MPMC[T]) TryPush(v T) bool {
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

// Push blocks (busy-waiting via the configured Pause strategy) until the
// value can be enqueued, or the ring is closed.
func (r *MPMC[T]) Push(v T) error {
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

// TryPop attempts a single non-blocking pop.
func (r *MPMC[T]) TryPop() (T, bool) {
	var zero T
	c := r.tail.Load()
	idx := c & r.mask
	gen := c / uint64(len(r.buf))
	cell := &r.buf[idx]
	if cell.turn.Load() != gen*2+1 {
		return zero, false
	}
	if !r.tail.CompareAndSwap(c, c+1) {
		return zero, false
	}
	v := cell.val
	cell.val = zero
	cell.turn.Store(gen*2 + 2)
	return v, true
}

// Pop blocks until a value is available or the ring is closed and empty.
func (r *MPMC[T]) Pop() (T, error) {
	var zero T
	n := 0
	for {
		if v, ok := r.TryPop(); ok {
			return v, nil
		}
		if r.closed.Load() {
			// one last attempt: a concurrent Push may have landed just
			// before Close took effect.
			if v, ok := r.TryPop(); ok {
				return v, nil
			}
			return zero, ErrClosed
		}
		n++
		r.pause(n)
	}
}

// Len returns an instantaneous (racy under concurrent use) occupancy
// estimate, for metrics/diagnostics only — never for correctness decisions.
func (r *MPMC[T]) Len() int {
	h := r.head.Load()
	t := r.tail.Load()
	if h < t {
		return 0
	}
	return int(h - t)
}
