// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package event

import "errors"

// IOEvents is a bitmask of readiness conditions reported by a Poller.
type IOEvents uint32

const (
	// EventRead indicates the file descriptor is ready for reading.
	EventRead IOEvents = 1 << iota
	// EventWrite indicates the file descriptor is ready for writing.
	EventWrite
	// EventError indicates an error condition on the file descriptor.
	EventError
	// EventHangup indicates the peer closed its end of the connection.
	EventHangup
)

// Callback is invoked with the observed events whenever a registered fd
// becomes ready. It runs on whatever goroutine called PollIO — callers
// needing fiber-resumption semantics do that wiring in the vcpu package.
type Callback func(IOEvents)

// Standard errors returned by Poller implementations.
var (
	ErrFDOutOfRange        = errors.New("event: fd out of range")
	ErrFDAlreadyRegistered = errors.New("event: fd already registered")
	ErrFDNotRegistered     = errors.New("event: fd not registered")
	ErrPollerClosed        = errors.New("event: poller closed")
)

// Poller is the readiness-multiplexer contract a master event engine drives:
// one instance per vcpu, single-threaded use (PollIO is called only from the
// owning vcpu's scheduler loop), registration may be called concurrently
// from other threads.
type Poller interface {
	// Init prepares the underlying OS facility (epoll_create1, kqueue, ...).
	Init() error
	// Close releases the underlying OS facility.
	Close() error
	// RegisterFD begins monitoring fd for events, invoking cb on readiness.
	RegisterFD(fd int, events IOEvents, cb Callback) error
	// UnregisterFD stops monitoring fd. In-flight callbacks already copied
	// out by a concurrent PollIO may still run after this returns; callers
	// must coordinate fd lifetime themselves).
	UnregisterFD(fd int) error
	// ModifyFD changes the event mask for an already-registered fd.
	ModifyFD(fd int, events IOEvents) error
	// PollIO blocks up to timeoutMs (negative means indefinitely) for
	// readiness, dispatching callbacks inline, and returns the number of
	// fds that became ready.
	PollIO(timeoutMs int) (int, error)
}

// NewPoller constructs the platform Poller implementation.
func NewPoller() Poller {
	return newPlatformPoller()
}
