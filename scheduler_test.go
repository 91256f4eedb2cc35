// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package vcpu

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestPingPong is a ping-pong scenario: two fibers on one vcpu yield to
// each other N times via a shared counter.
func TestPingPong(t *testing.T) {
	rt, err := Init(WithVCPUCount(1))
	require.NoError(t, err)
	defer rt.Fini()

	const rounds = 1000
	var turn int
	done := make(chan struct{}, 2)

	var a, b *Fiber
	a = rt.SpawnOn(0, func(any) {
		for turn < rounds {
			if turn%2 == 0 {
				turn++
				YieldTo(b)
			} else {
				Yield()
			}
		}
		done <- struct{}{}
	}, nil, StackSize64K.Bytes())
	b = rt.SpawnOn(0, func(any) {
		for turn < rounds {
			if turn%2 == 1 {
				turn++
				YieldTo(a)
			} else {
				Yield()
			}
		}
		done <- struct{}{}
	}, nil, StackSize64K.Bytes())

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("ping-pong never completed")
		}
	}
	require.Equal(t, rounds, turn)
}

// TestCrossVCPUHandoff: a fiber on vcpu 0 waits, via
// Join, for a fiber bootstrapped directly on vcpu 1 — JoinHandle's refcount
// is an ordinary sync.Mutex specifically so Join works across vcpus, unlike
// the run-queue and wait-lists, which are vcpu-local by design.
func TestCrossVCPUHandoff(t *testing.T) {
	rt, err := Init(WithVCPUCount(2))
	require.NoError(t, err)
	defer rt.Fini()

	var ran bool
	worker := rt.SpawnOn(1, func(any) {
		ran = true
	}, nil, StackSize64K.Bytes())

	done := make(chan struct{})
	rt.SpawnOn(0, func(any) {
		Join(JoinEnable(worker))
		close(done)
	}, nil, StackSize64K.Bytes())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("cross-vcpu join never completed")
	}
	require.True(t, ran)
}

// TestSleepUS_InterruptDuringSleepReturnsError: a sleeping fiber interrupted
// before its deadline returns the interruption error, not a normal timeout.
func TestSleepUS_InterruptDuringSleepReturnsError(t *testing.T) {
	rt, err := Init(WithVCPUCount(1))
	require.NoError(t, err)
	defer rt.Fini()

	var sleepErr error
	var sleeper *Fiber
	ready := make(chan struct{})
	done := make(chan struct{})
	sleeper = rt.SpawnOn(0, func(any) {
		close(ready)
		sleepErr = SleepUS(Infinite)
		close(done)
	}, nil, StackSize64K.Bytes())

	<-ready
	time.Sleep(20 * time.Millisecond)
	rt.SpawnOn(0, func(any) {
		Interrupt(sleeper, 7)
	}, nil, StackSize64K.Bytes())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("interrupted sleeper never resumed")
	}
	var ie *InterruptError
	require.ErrorAs(t, sleepErr, &ie)
	require.EqualValues(t, 7, ie.Code)
}

// TestSleepUS_NaturalTimeoutReturnsNil covers the companion case: a sleep
// that runs to completion without interruption returns nil.
func TestSleepUS_NaturalTimeoutReturnsNil(t *testing.T) {
	rt, err := Init(WithVCPUCount(1))
	require.NoError(t, err)
	defer rt.Fini()

	var sleepErr error
	done := make(chan struct{})
	rt.SpawnOn(0, func(any) {
		sleepErr = SleepUS(1000)
		close(done)
	}, nil, StackSize64K.Bytes())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sleeper never woke")
	}
	require.NoError(t, sleepErr)
}

// TestTimerStorm: many fibers sleeping for varied durations on one vcpu all
// wake, exercising the timer heap under load.
func TestTimerStorm(t *testing.T) {
	rt, err := Init(WithVCPUCount(1))
	require.NoError(t, err)
	defer rt.Fini()

	const n = 200
	done := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		deltaUS := int64((i%50 + 1) * 100)
		rt.SpawnOn(0, func(any) {
			_ = SleepUS(deltaUS)
			done <- struct{}{}
		}, nil, StackSize64K.Bytes())
	}

	for i := 0; i < n; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatalf("timer storm: only %d/%d fibers woke", i, n)
		}
	}
}

func TestJoin_OnAlreadyDoneFiberReturnsImmediately(t *testing.T) {
	rt, err := Init(WithVCPUCount(1))
	require.NoError(t, err)
	defer rt.Fini()

	finished := make(chan struct{})
	var target *Fiber
	done := make(chan struct{})
	rt.SpawnOn(0, func(any) {
		target = Spawn(func(any) {}, nil, StackSize64K.Bytes())
		h := JoinEnable(target)
		close(finished)
		// give the spawned fiber a turn to actually finish before joining.
		Yield()
		Yield()
		Join(h)
		close(done)
	}, nil, StackSize64K.Bytes())

	<-finished
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("join on finished fiber never returned")
	}
}
