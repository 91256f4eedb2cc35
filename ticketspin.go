// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package vcpu

import (
	"sync/atomic"

	"github.com/joeycumines/go-vcpu/ring"
)

// TicketSpinlock is a strictly-FIFO, cross-vcpu-fair busy-wait lock: every
// caller draws a ticket and spins until it is the one being served,
// guaranteeing acquisition order regardless of which vcpu or OS thread is
// contending.
type TicketSpinlock struct {
	next    atomic.Uint64
	serving atomic.Uint64
}

func NewTicketSpinlock() *TicketSpinlock {
	return &TicketSpinlock{}
}

// Lock draws a ticket and busy-waits until it is served, returning the
// ticket number (useful for diagnostics; Unlock needs no argument since
// release always advances to the next ticket in order).
func (t *TicketSpinlock) Lock() uint64 {
	ticket := t.next.Add(1) - 1
	for i := 0; t.serving.Load() != ticket; i++ {
		ring.Escalating(i)
	}
	return ticket
}

func (t *TicketSpinlock) Unlock() {
	t.serving.Add(1)
}
