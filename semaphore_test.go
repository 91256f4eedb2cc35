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

func TestSemaphore_WaitBlocksUntilSignal(t *testing.T) {
	rt, err := Init(WithVCPUCount(1))
	require.NoError(t, err)
	defer rt.Fini()

	sem := NewSemaphore(0)
	done := make(chan struct{})
	rt.SpawnOn(0, func(any) {
		require.NoError(t, sem.Wait(1))
		close(done)
	}, nil, StackSize64K.Bytes())

	select {
	case <-done:
		t.Fatal("Wait returned before Signal")
	case <-time.After(30 * time.Millisecond):
	}

	rt.SpawnOn(0, func(any) {
		sem.Signal(1)
	}, nil, StackSize64K.Bytes())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Wait never returned after Signal")
	}
}

func TestSemaphore_NoOvertaking(t *testing.T) {
	rt, err := Init(WithVCPUCount(1))
	require.NoError(t, err)
	defer rt.Fini()

	sem := NewSemaphore(0)
	var order []int
	done := make(chan struct{}, 2)

	// waiter A needs 2 permits, queued first.
	rt.SpawnOn(0, func(any) {
		require.NoError(t, sem.Wait(2))
		order = append(order, 0)
		done <- struct{}{}
	}, nil, StackSize64K.Bytes())
	// waiter B needs only 1, queued second — must not overtake A even
	// though 1 permit alone would satisfy it.
	rt.SpawnOn(0, func(any) {
		require.NoError(t, sem.Wait(1))
		order = append(order, 1)
		done <- struct{}{}
	}, nil, StackSize64K.Bytes())

	rt.SpawnOn(0, func(any) {
		sem.Signal(1) // not enough for A; B must still wait behind it.
	}, nil, StackSize64K.Bytes())

	select {
	case <-done:
		t.Fatal("a waiter woke on a single insufficient permit")
	case <-time.After(30 * time.Millisecond):
	}

	rt.SpawnOn(0, func(any) {
		sem.Signal(2) // now 3 total: A takes 2, then B takes 1.
	}, nil, StackSize64K.Bytes())

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("waiter never woke")
		}
	}
	require.Equal(t, []int{0, 1}, order)
}

func TestSemaphore_TryWait(t *testing.T) {
	sem := NewSemaphore(1)
	require.True(t, sem.TryWait(1))
	require.False(t, sem.TryWait(1))
	sem.Signal(1)
	require.True(t, sem.TryWait(1))
}

func TestSharedSemaphore_CrossVCPU(t *testing.T) {
	rt, err := Init(WithVCPUCount(2))
	require.NoError(t, err)
	defer rt.Fini()

	sem := NewSharedSemaphore(0)
	done := make(chan struct{})
	rt.SpawnOn(0, func(any) {
		require.NoError(t, sem.Wait(1))
		close(done)
	}, nil, StackSize64K.Bytes())

	rt.SpawnOn(1, func(any) {
		_ = SleepUS(20000)
		sem.Signal(1)
	}, nil, StackSize64K.Bytes())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("cross-vcpu Signal never woke the waiter")
	}
}
