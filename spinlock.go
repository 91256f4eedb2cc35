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

// Spinlock is the unfair, cross-vcpu-safe lock: short
// critical sections, cheaper than suspending a fiber through the scheduler.
// It never suspends; Lock busy-waits the calling OS thread using the same
// escalating cooperative-pause strategy the cross-vcpu ring uses under
// saturation.
type Spinlock struct {
	held atomic.Bool
}

func NewSpinlock() *Spinlock {
	return &Spinlock{}
}

// Lock busy-waits until the lock is free. Safe to call from any goroutine,
// fiber-backed or not — it does not touch the scheduler.
func (s *Spinlock) Lock() {
	for i := 0; !s.held.CompareAndSwap(false, true); i++ {
		ring.Escalating(i)
	}
}

// TryLock attempts to acquire without waiting.
func (s *Spinlock) TryLock() bool {
	return s.held.CompareAndSwap(false, true)
}

func (s *Spinlock) Unlock() {
	s.held.Store(false)
}
