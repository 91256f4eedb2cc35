// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package vcpu

import (
	"testing"
	"time"

	"github.com/joeycumines/go-vcpu/event"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func socketpairForCascadeTest(t *testing.T) (a, b int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	require.NoError(t, unix.SetNonblock(fds[0], true))
	require.NoError(t, unix.SetNonblock(fds[1], true))
	t.Cleanup(func() {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func TestCascadingEngine_WaitForEventsWakesOnRegisteredFD(t *testing.T) {
	rt, err := Init(WithVCPUCount(1))
	require.NoError(t, err)
	defer rt.Fini()

	ce, err := NewCascadingEngine()
	require.NoError(t, err)
	defer ce.Close()

	a, b := socketpairForCascadeTest(t)
	require.NoError(t, ce.AddInterest(a, event.EventRead, "marker", false))

	var n int
	var waitErr error
	done := make(chan struct{})
	rt.SpawnOn(0, func(any) {
		out := make([]any, 4)
		n, waitErr = ce.WaitForEvents(out, Infinite)
		close(done)
	}, nil, StackSize64K.Bytes())

	_, err = unix.Write(b, []byte("x"))
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("WaitForEvents never woke on readiness")
	}
	require.NoError(t, waitErr)
	require.Equal(t, 1, n)

	require.NoError(t, ce.RmInterest(a))
}

func TestCascadingEngine_SecondConcurrentWaiterIsRejected(t *testing.T) {
	rt, err := Init(WithVCPUCount(1))
	require.NoError(t, err)
	defer rt.Fini()

	ce, err := NewCascadingEngine()
	require.NoError(t, err)
	defer ce.Close()

	a, _ := socketpairForCascadeTest(t)
	require.NoError(t, ce.AddInterest(a, event.EventRead, "marker", false))

	firstWaiting := make(chan struct{})
	releaseFirst := make(chan struct{})
	rt.SpawnOn(0, func(any) {
		close(firstWaiting)
		out := make([]any, 1)
		// Bounded, not Infinite: lets this fiber time out and exit on its
		// own once the test is done with it, rather than staying parked
		// forever on an fd nothing ever writes to.
		_, _ = ce.WaitForEvents(out, 300000)
		close(releaseFirst)
	}, nil, StackSize64K.Bytes())

	<-firstWaiting
	// Give the first fiber's suspend a chance to register as the waiter.
	time.Sleep(20 * time.Millisecond)

	var secondErr error
	done := make(chan struct{})
	rt.SpawnOn(0, func(any) {
		out := make([]any, 1)
		_, secondErr = ce.WaitForEvents(out, 0)
		close(done)
	}, nil, StackSize64K.Bytes())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("second WaitForEvents call never returned")
	}
	require.Error(t, secondErr)
}
