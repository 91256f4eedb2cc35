// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package ring

import "sync/atomic"

// SPSC is a bounded single-producer/single-consumer ring, using the same
// turn-counter cell layout as MPMC but skipping the CAS on both ends: with
// exactly one producer and one consumer, the head/tail counters are only
// ever advanced by their own side, so a plain load+store suffices.
type SPSC[T any] struct {
	buf    []cell[T]
	mask   uint64
	head   uint64 // producer-owned, no atomic needed for the counter itself
	tail   uint64 // consumer-owned
	pause  Pause
	closed atomic.Bool
}

// NewSPSC constructs an SPSC ring of the given capacity (rounded to a power
// of two, minimum 2).
func NewSPSC[T any](capacity int, pause Pause) *SPSC[T] {
	capacity = nextPow2(capacity)
	if pause == nil {
		pause = Gosched
	}
	r := &SPSC[T]{buf: make([]cell[T], capacity), mask: uint64(capacity - 1), pause: pause}
	for i := range r.buf {
		r.buf[i].turn.Store(uint64(i) * 2)
	}
	return r
}

func (r *SPSC[T]) Close() { r.closed.Store(true) }

// TryPush is the producer's non-blocking attempt.
func (r *SPSC[T]) TryPush(v T) bool {
	c := r.head
	idx := c & r.mask
	gen := c / uint64(len(r.buf))
	cell := &r.buf[idx]
	if cell.turn.Load() != gen*2 {
		return false
	}
	cell.val = v
	cell.turn.Store(gen*2 + 1)
	r.head = c + 1
	return true
}

// Push blocks until the value is enqueued or the ring is closed.
func (r *SPSC[T]) Push(v T) error {
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

// TryPop is the consumer's non-blocking attempt.
func (r *SPSC[T]) TryPop() (T, bool) {
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

// Pop blocks until a value is available or the ring is closed and drained.
func (r *SPSC[T]) Pop() (T, error) {
	var zero T
	n := 0
	for {
		if v, ok := r.TryPop(); ok {
			return v, nil
		}
		if r.closed.Load() {
			if v, ok := r.TryPop(); ok {
				return v, nil
			}
			return zero, ErrClosed
		}
		n++
		r.pause(n)
	}
}
