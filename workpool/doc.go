// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package workpool implements the work pool: a fixed set of
// OS threads, each running its own independent vcpu.Runtime, fanning out
// Callable tasks pulled from a shared lock-free ring.
package workpool
