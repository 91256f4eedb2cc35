// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package vcpu

import (
	"sync/atomic"

	"github.com/joeycumines/logiface"
)

// debugChecks gates the expensive invariant assertions (run-queue/wait-list
// exclusivity, timer-heap membership). It defaults to off; enable it in
// tests with SetDebugChecks(true).
var debugChecks atomic.Bool

// SetDebugChecks toggles invariant checking. When enabled, a violated
// invariant panics with a *StateError; when disabled, the violation is
// logged at Error level and the call degrades to a no-op, matching the
// "fatal in debug, best-effort in release" policy.
func SetDebugChecks(enabled bool) { debugChecks.Store(enabled) }

// DebugChecksEnabled reports whether invariant checking is currently active.
func DebugChecksEnabled() bool { return debugChecks.Load() }

func badState(op, message string) {
	if debugChecks.Load() {
		panic(&StateError{Op: op, Message: message})
	}
	componentLog(logiface.LevelError, "vcpu").Str("op", op).Log(message)
}

// runtimeOptions holds configuration for Init.
type runtimeOptions struct {
	vcpuCount  int
	eventFlags EventFlags
	ioFlags    IOFlags
	miscFlags  MiscFlags
}

// RuntimeOption configures a Runtime via the functional-options pattern.
type RuntimeOption interface {
	apply(*runtimeOptions)
}

type runtimeOptionFunc func(*runtimeOptions)

func (f runtimeOptionFunc) apply(o *runtimeOptions) { f(o) }

// WithVCPUCount sets how many vcpus Init spins up. Defaults to
// runtime.GOMAXPROCS(0).
func WithVCPUCount(n int) RuntimeOption {
	return runtimeOptionFunc(func(o *runtimeOptions) {
		if n > 0 {
			o.vcpuCount = n
		}
	})
}

// EventFlags selects the master event engine backend.
type EventFlags uint32

const (
	// EventFlagsAuto picks epoll on Linux, kqueue on Darwin.
	EventFlagsAuto EventFlags = 0
)

// IOFlags selects optional I/O subsystems. None are implemented by this
// module (async disk and cURL integration are out of scope), but the flag
// type is kept so callers compile against a stable Init signature.
type IOFlags uint32

// MiscFlags selects miscellaneous subsystems, e.g. the signal multiplexer.
type MiscFlags uint32

const (
	// MiscFlagsSignals enables the signal multiplexer (Runtime.SyncSignal).
	MiscFlagsSignals MiscFlags = 1 << iota
)

// WithEventFlags sets the master event engine selection flags.
func WithEventFlags(f EventFlags) RuntimeOption {
	return runtimeOptionFunc(func(o *runtimeOptions) { o.eventFlags = f })
}

// WithIOFlags sets the optional I/O subsystem flags.
func WithIOFlags(f IOFlags) RuntimeOption {
	return runtimeOptionFunc(func(o *runtimeOptions) { o.ioFlags = f })
}

// WithMiscFlags sets the miscellaneous subsystem flags.
func WithMiscFlags(f MiscFlags) RuntimeOption {
	return runtimeOptionFunc(func(o *runtimeOptions) { o.miscFlags = f })
}

func resolveRuntimeOptions(opts []RuntimeOption) *runtimeOptions {
	cfg := &runtimeOptions{
		vcpuCount: defaultVCPUCount(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.apply(cfg)
	}
	if cfg.vcpuCount < 1 {
		cfg.vcpuCount = 1
	}
	return cfg
}
