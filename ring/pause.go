// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package ring

import "runtime"

// Pause is an injectable spin strategy for a producer/consumer waiting on a
// cell's turn field: a CPU pause instruction, an OS yield, or a cooperative
// fiber yield. n is the number of consecutive failed attempts so far, for
// strategies that want to escalate.
type Pause func(n int)

// Gosched is the default Pause: a tight runtime.Gosched() loop, escalating
// to nothing else. Good enough for short, bounded critical sections.
func Gosched(n int) {
	runtime.Gosched()
}

// Busy never yields to the OS scheduler at all; suitable only for the
// shortest possible critical sections on a dedicated core.
func Busy(n int) {}

// Escalating spins tightly for the first few attempts, then falls back to
// Gosched, giving producers/consumers under heavier contention a chance to
// actually make progress instead of starving the core.
func Escalating(n int) {
	if n < 32 {
		return
	}
	runtime.Gosched()
}
