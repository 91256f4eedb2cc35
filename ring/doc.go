// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package ring implements a lock-free ring buffer: fixed power-of-two
// capacity, free-running head/tail counters, per-cell turn fields, and
// CAS-based hand-off between producers and consumers. Three variants are
// exposed: MPMC, SPSC and MPSC — the latter is what go-vcpu's cross-vcpu
// interrupt delivery (see the root package's Interrupt) is built on.
//
// Waits are busy-loops driven by an injectable Pause strategy (see
// pause.go): a blocking Push or Pop keeps retrying until it succeeds or the
// ring is closed, so under sustained contention the ring degrades latency,
// never correctness.
package ring
