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

func TestRWLock_MultipleReadersConcurrently(t *testing.T) {
	rt, err := Init(WithVCPUCount(1))
	require.NoError(t, err)
	defer rt.Fini()

	rw := NewRWLock()
	const n = 4
	entered := make(chan struct{}, n)
	release := make(chan struct{})
	done := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		rt.SpawnOn(0, func(any) {
			require.NoError(t, rw.RLock())
			entered <- struct{}{}
			<-release
			rw.RUnlock()
			done <- struct{}{}
		}, nil, StackSize64K.Bytes())
	}

	for i := 0; i < n; i++ {
		select {
		case <-entered:
		case <-time.After(2 * time.Second):
			t.Fatalf("reader %d never entered", i)
		}
	}
	close(release)
	for i := 0; i < n; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("reader never finished")
		}
	}
}

func TestRWLock_WriterExcludesReaders(t *testing.T) {
	rt, err := Init(WithVCPUCount(1))
	require.NoError(t, err)
	defer rt.Fini()

	rw := NewRWLock()
	var writerActive bool
	var sawOverlap bool
	writerDone := make(chan struct{})
	readerDone := make(chan struct{})

	rt.SpawnOn(0, func(any) {
		require.NoError(t, rw.Lock())
		writerActive = true
		Yield()
		Yield()
		writerActive = false
		rw.Unlock()
		close(writerDone)
	}, nil, StackSize64K.Bytes())

	rt.SpawnOn(0, func(any) {
		Yield()
		require.NoError(t, rw.RLock())
		if writerActive {
			sawOverlap = true
		}
		rw.RUnlock()
		close(readerDone)
	}, nil, StackSize64K.Bytes())

	for _, ch := range []chan struct{}{writerDone, readerDone} {
		select {
		case <-ch:
		case <-time.After(2 * time.Second):
			t.Fatal("writer/reader never finished")
		}
	}
	require.False(t, sawOverlap)
}
