// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package vcpu

import "sync/atomic"

// FiberState is the state a Fiber occupies: it is linked into at most one
// of { run-queue, any wait-list } at a time, with timer-heap membership
// orthogonal to that.
type FiberState uint32

const (
	FiberRunning FiberState = iota
	FiberReady
	FiberSleeping
	FiberWaiting
	FiberDone
)

func (s FiberState) String() string {
	switch s {
	case FiberRunning:
		return "running"
	case FiberReady:
		return "ready"
	case FiberSleeping:
		return "sleeping"
	case FiberWaiting:
		return "waiting"
	case FiberDone:
		return "done"
	default:
		return "unknown"
	}
}

// fastState is a lock-free CAS state machine with cache-line padding to
// avoid false sharing between vcpus touching different fibers' state word.
type fastState struct {
	_ [64]byte
	v atomic.Uint32
	_ [60]byte
}

func newFastState(initial FiberState) *fastState {
	s := &fastState{}
	s.v.Store(uint32(initial))
	return s
}

func (s *fastState) Load() FiberState { return FiberState(s.v.Load()) }

func (s *fastState) Store(state FiberState) { s.v.Store(uint32(state)) }

func (s *fastState) CAS(from, to FiberState) bool {
	return s.v.CompareAndSwap(uint32(from), uint32(to))
}
