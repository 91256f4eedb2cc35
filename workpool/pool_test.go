// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package workpool

import (
	"errors"
	"testing"
	"time"

	"github.com/joeycumines/go-vcpu"
	"github.com/stretchr/testify/require"
)

func TestPool_CallRunsOnWorkerAndReturnsResult(t *testing.T) {
	pool, err := NewPool(2)
	require.NoError(t, err)
	defer pool.Shutdown()

	rt, err := vcpu.Init(vcpu.WithVCPUCount(1))
	require.NoError(t, err)
	defer rt.Fini()

	done := make(chan struct{})
	var result any
	var callErr error
	rt.SpawnOn(0, func(any) {
		result, callErr = pool.Call(func() (any, error) {
			return 42, nil
		})
		close(done)
	}, nil, vcpu.StackSize64K.Bytes())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Call to complete")
	}
	require.NoError(t, callErr)
	require.Equal(t, 42, result)
}

func TestPool_CallPropagatesTaskError(t *testing.T) {
	pool, err := NewPool(1)
	require.NoError(t, err)
	defer pool.Shutdown()

	rt, err := vcpu.Init(vcpu.WithVCPUCount(1))
	require.NoError(t, err)
	defer rt.Fini()

	wantErr := errors.New("boom")
	done := make(chan struct{})
	var callErr error
	rt.SpawnOn(0, func(any) {
		_, callErr = pool.Call(func() (any, error) {
			return nil, wantErr
		})
		close(done)
	}, nil, vcpu.StackSize64K.Bytes())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Call to complete")
	}
	require.Equal(t, wantErr, callErr)
}

func TestPool_DoCallDoesNotBlockCaller(t *testing.T) {
	pool, err := NewPool(1)
	require.NoError(t, err)
	defer pool.Shutdown()

	executed := make(chan struct{})
	err = pool.DoCall(func() (any, error) {
		close(executed)
		return nil, nil
	})
	require.NoError(t, err)

	select {
	case <-executed:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for DoCall task to execute")
	}
}

func TestPool_ShutdownDrainsQueuedTasks(t *testing.T) {
	pool, err := NewPool(1)
	require.NoError(t, err)

	const n = 8
	executed := make(chan int, n)
	for i := 0; i < n; i++ {
		i := i
		require.NoError(t, pool.DoCall(func() (any, error) {
			executed <- i
			return nil, nil
		}))
	}

	require.NoError(t, pool.Shutdown())
	require.Len(t, executed, n)
}

func TestPool_CallAfterShutdownIsRejected(t *testing.T) {
	pool, err := NewPool(1)
	require.NoError(t, err)
	require.NoError(t, pool.Shutdown())

	err = pool.DoCall(func() (any, error) { return nil, nil })
	require.ErrorIs(t, err, ErrPoolClosed)
}
