// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package vcpu

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSpinlock_ExcludesConcurrentOSThreads(t *testing.T) {
	s := NewSpinlock()
	var counter int
	var wg sync.WaitGroup
	const goroutines, iters = 8, 1000
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < iters; j++ {
				s.Lock()
				counter++
				s.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, goroutines*iters, counter)
}

func TestSpinlock_TryLock(t *testing.T) {
	s := NewSpinlock()
	require.True(t, s.TryLock())
	require.False(t, s.TryLock())
	s.Unlock()
	require.True(t, s.TryLock())
}

func TestTicketSpinlock_FIFOAcrossGoroutines(t *testing.T) {
	ts := NewTicketSpinlock()
	var mu sync.Mutex
	var order []uint64
	var wg sync.WaitGroup
	const n = 50
	wg.Add(n)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			<-start
			ticket := ts.Lock()
			mu.Lock()
			order = append(order, ticket)
			mu.Unlock()
			ts.Unlock()
		}()
	}
	close(start)
	wg.Wait()

	require.Len(t, order, n)
	for i, ticket := range order {
		require.EqualValues(t, i, ticket, "tickets must be served in strict issue order")
	}
}
