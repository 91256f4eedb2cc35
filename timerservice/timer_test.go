// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package timerservice

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/joeycumines/go-vcpu"
	"github.com/stretchr/testify/require"
)

func TestSchedule_OneShotFiresOnce(t *testing.T) {
	rt, err := vcpu.Init(vcpu.WithVCPUCount(1))
	require.NoError(t, err)
	defer rt.Fini()

	var fired atomic.Int32
	var tm *Timer
	scheduled := make(chan struct{})
	rt.SpawnOn(0, func(any) {
		tm = Schedule(1000, false, vcpu.StackSize64K.Bytes(), func() int64 {
			fired.Add(1)
			return 0
		})
		close(scheduled)
	}, nil, vcpu.StackSize64K.Bytes())
	<-scheduled

	// tm.Done() is a plain channel close, safe to await from outside any
	// fiber — only code running *inside* a fiber body must never block on
	// a raw channel receive, since that would freeze the owning vcpu's
	// single scheduler goroutine along with it.
	select {
	case <-tm.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("timer never fired")
	}
	require.EqualValues(t, 1, fired.Load())
}

func TestSchedule_RepeatingFiresMultipleTimes(t *testing.T) {
	rt, err := vcpu.Init(vcpu.WithVCPUCount(1))
	require.NoError(t, err)
	defer rt.Fini()

	var fired atomic.Int32
	var tm *Timer
	ready := make(chan struct{})
	rt.SpawnOn(0, func(any) {
		tm = Schedule(1000, true, vcpu.StackSize64K.Bytes(), func() int64 {
			fired.Add(1)
			return 0
		})
		close(ready)
	}, nil, vcpu.StackSize64K.Bytes())
	<-ready

	require.Eventually(t, func() bool {
		return fired.Load() >= 3
	}, 2*time.Second, 5*time.Millisecond)

	tm.Cancel()
}

func TestTimer_CancelBeforeFiringSkipsCallback(t *testing.T) {
	rt, err := vcpu.Init(vcpu.WithVCPUCount(1))
	require.NoError(t, err)
	defer rt.Fini()

	var fired atomic.Int32
	var tm *Timer
	ready := make(chan struct{})
	rt.SpawnOn(0, func(any) {
		tm = Schedule(vcpu.Infinite, false, vcpu.StackSize64K.Bytes(), func() int64 {
			fired.Add(1)
			return 0
		})
		close(ready)
	}, nil, vcpu.StackSize64K.Bytes())
	<-ready

	tm.Cancel()
	select {
	case <-tm.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled timer never exited")
	}
	require.EqualValues(t, 0, fired.Load())
}

func TestService_ScheduleNamedReplacesPrevious(t *testing.T) {
	rt, err := vcpu.Init(vcpu.WithVCPUCount(1))
	require.NoError(t, err)
	defer rt.Fini()

	svc := NewService()
	var firstDone, secondDone chan struct{}
	ready := make(chan struct{})
	rt.SpawnOn(0, func(any) {
		first := svc.ScheduleNamed("heartbeat", vcpu.Infinite, false, vcpu.StackSize64K.Bytes(), func() int64 { return 0 })
		firstDone = first.Done()

		second := svc.ScheduleNamed("heartbeat", 1000, false, vcpu.StackSize64K.Bytes(), func() int64 { return 0 })
		secondDone = second.Done()
		close(ready)
	}, nil, vcpu.StackSize64K.Bytes())
	<-ready

	select {
	case <-firstDone:
	case <-time.After(2 * time.Second):
		t.Fatal("replaced timer was never cancelled")
	}
	select {
	case <-secondDone:
	case <-time.After(2 * time.Second):
		t.Fatal("replacement timer never fired")
	}
}
