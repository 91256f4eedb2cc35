// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package timerservice implements named, repeating, and one-shot timers
// layered directly on the vcpu package's sleep-queue: each timer is a
// dedicated fiber alternating between vcpu.SleepUS and invoking its
// callback, rather than a separate scheduler data structure.
package timerservice
