// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package vcpu

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure kinds this module reports. WOULD_BLOCK/AGAIN
// is deliberately absent: it is handled internally by the event engines and
// never escapes the runtime.
var (
	// ErrTimeout is returned when a blocking call's deadline elapses.
	ErrTimeout = errors.New("vcpu: timeout")

	// ErrInterrupted is returned when a fiber was woken by an explicit
	// Interrupt call from another fiber or vcpu. The causer's subcode is
	// carried by InterruptError.
	ErrInterrupted = errors.New("vcpu: interrupted")

	// ErrConnReset is returned by transport-facing code (rpcframe) when the
	// peer closes or a frame is short/malformed.
	ErrConnReset = errors.New("vcpu: connection reset")

	// ErrOOM is returned when a stack/buffer allocation fails.
	ErrOOM = errors.New("vcpu: out of memory")

	// ErrBadState flags a programming error: duplicate fd interest,
	// double-join, interrupt to a fiber that was never spawned, etc. Fatal
	// in debug builds (see SetDebugChecks), best-effort (logged, swallowed) in
	// release builds.
	ErrBadState = errors.New("vcpu: bad state")

	// ErrClosed is returned by operations performed against a torn-down
	// Runtime, VCPU, or event engine.
	ErrClosed = errors.New("vcpu: closed")
)

// InterruptError wraps ErrInterrupted with the caller-supplied subcode from
// Interrupt, so callers can recover it via errors.As.
type InterruptError struct {
	Code int32
}

func (e *InterruptError) Error() string {
	return fmt.Sprintf("vcpu: interrupted (code=%d)", e.Code)
}

func (e *InterruptError) Unwrap() error { return ErrInterrupted }

// StateError reports a violated state invariant. The fiber-API checks
// panic with one only while debug checks are enabled (SetDebugChecks) and
// otherwise log the violation; the event engines return one as an ordinary
// error regardless of that setting.
type StateError struct {
	Op      string
	Message string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("vcpu: bad state in %s: %s", e.Op, e.Message)
}

func (e *StateError) Unwrap() error { return ErrBadState }

// WrapError wraps an error with a message and an explicit cause.
func WrapError(message string, cause error) error {
	return fmt.Errorf("%s: %w", message, cause)
}
