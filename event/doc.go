// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package event is the leaf readiness-poller abstraction backing the master
// event engine: a thin, fiber-unaware wrapper over epoll
// (Linux) and kqueue (Darwin), plus a self-wake mechanism so a vcpu blocked
// in PollIO can be woken from another thread. Nothing in this package knows
// about fibers, run-queues, or scheduling decisions — that wiring lives in
// the root vcpu package, which imports this one. Keeping it unaware avoids
// an import cycle, since suspension primitives live at the root.
package event
