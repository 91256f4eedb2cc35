// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package rpcframe

import (
	"testing"
	"time"

	"github.com/joeycumines/go-vcpu"
	"github.com/stretchr/testify/require"
)

func TestEngine_SubmitCompleteRoundTrip(t *testing.T) {
	rt, err := vcpu.Init(vcpu.WithVCPUCount(1))
	require.NoError(t, err)
	defer rt.Fini()

	eng := NewEngine()
	done := make(chan struct{})
	var collected []byte
	var collectErr error

	rt.SpawnOn(0, func(any) {
		err := eng.Submit(1, func() error {
			return nil
		}, func(p []byte, e error) {
			collected = p
			collectErr = e
		})
		require.NoError(t, err)
		close(done)
	}, nil, vcpu.StackSize64K.Bytes())

	rt.SpawnOn(0, func(any) {
		eng.Complete(1, []byte("pong"), nil)
	}, nil, vcpu.StackSize64K.Bytes())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Submit never returned")
	}
	require.NoError(t, collectErr)
	require.Equal(t, []byte("pong"), collected)
}

func TestEngine_DuplicateTagRejected(t *testing.T) {
	rt, err := vcpu.Init(vcpu.WithVCPUCount(1))
	require.NoError(t, err)
	defer rt.Fini()

	eng := NewEngine()
	blockIssue := vcpu.NewSemaphore(0)
	firstStarted := make(chan struct{})
	done := make(chan struct{})

	rt.SpawnOn(0, func(any) {
		close(firstStarted)
		_ = eng.Submit(5, func() error {
			_ = blockIssue.Wait(1)
			return nil
		}, func([]byte, error) {})
	}, nil, vcpu.StackSize64K.Bytes())

	<-firstStarted
	time.Sleep(20 * time.Millisecond)

	rt.SpawnOn(0, func(any) {
		err := eng.Submit(5, func() error { return nil }, func([]byte, error) {})
		require.ErrorIs(t, err, ErrTagInUse)
		blockIssue.Signal(1)
		close(done)
	}, nil, vcpu.StackSize64K.Bytes())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("duplicate-tag submission never returned")
	}
}

func TestEngine_ShutdownCompletesPendingWithCause(t *testing.T) {
	rt, err := vcpu.Init(vcpu.WithVCPUCount(1))
	require.NoError(t, err)
	defer rt.Fini()

	eng := NewEngine()
	done := make(chan struct{})
	var callErr error

	rt.SpawnOn(0, func(any) {
		callErr = eng.Submit(9, func() error { return nil }, func([]byte, error) {})
		close(done)
	}, nil, vcpu.StackSize64K.Bytes())

	time.Sleep(20 * time.Millisecond)
	eng.Shutdown(vcpu.ErrConnReset)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Submit never unblocked after Shutdown")
	}
	require.ErrorIs(t, callErr, vcpu.ErrConnReset)
}
