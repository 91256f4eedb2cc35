// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package vcpu

import "sync"

// Go's runtime gives no safe general-purpose fork(): after a raw fork only
// the calling OS thread survives in the child, every other goroutine
// (including every vcpu's scheduler loop) simply vanishes without running
// deferred cleanup. There is no pthread_atfork equivalent to hook
// automatically. What this package CAN offer, and does, is a process-wide
// registry of live event engines, plus AfterFork, which a caller that
// forked via syscall.ForkExec, or a
// cgo bridge calling raw fork(2) and re-executing into a fresh Go runtime
// in the child, must invoke itself at the very start of that child process
// before touching any Runtime. Using this package across an os/exec-style
// fork+exec (the only fork path Go itself ever takes) needs no hook at all,
// since the child gets a brand new process image and re-runs Init.
var forkRegistry struct {
	mu       sync.Mutex
	runtimes []*Runtime
}

func registerForFork(rt *Runtime) {
	forkRegistry.mu.Lock()
	forkRegistry.runtimes = append(forkRegistry.runtimes, rt)
	forkRegistry.mu.Unlock()
}

func unregisterForFork(rt *Runtime) {
	forkRegistry.mu.Lock()
	defer forkRegistry.mu.Unlock()
	for i, r := range forkRegistry.runtimes {
		if r == rt {
			forkRegistry.runtimes = append(forkRegistry.runtimes[:i], forkRegistry.runtimes[i+1:]...)
			return
		}
	}
}

// AfterFork walks every live Runtime's registered event engines and resets
// each one (closing and rebuilding the underlying epoll/kqueue descriptor,
// which does not survive a fork in a usable state). Must be called, if at
// all, as the very first action in a freshly forked child — see the comment
// at the top of this file for why this cannot be wired up automatically in Go.
func AfterFork() error {
	forkRegistry.mu.Lock()
	runtimes := append([]*Runtime(nil), forkRegistry.runtimes...)
	forkRegistry.mu.Unlock()

	var firstErr error
	for _, rt := range runtimes {
		rt.forkMu.Lock()
		engines := append([]resettableEngine(nil), rt.engines...)
		rt.forkMu.Unlock()
		for _, e := range engines {
			if err := e.reset(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
