// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package vcpu

import (
	"runtime"
	"sync"
)

// goroutineID parses the numeric id out of runtime.Stack's header line. Each
// fiber keeps exactly one goroutine for its whole life (suspension blocks
// that goroutine on a channel rather than switching goroutines), so this id
// is a stable handle for "which fiber is this call running on" without
// threading a context parameter through every suspension point.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] < '0' || buf[i] > '9' {
			break
		}
		id = id*10 + uint64(buf[i]-'0')
	}
	return id
}

var fiberByGID sync.Map // uint64 -> *Fiber

func registerFiberGoroutine(f *Fiber) {
	fiberByGID.Store(goroutineID(), f)
}

func unregisterFiberGoroutine() {
	fiberByGID.Delete(goroutineID())
}

// osYield is the fallback used by callers that block on fiber state from
// outside any fiber (e.g. Join called from the goroutine that ran Init),
// where there is no scheduler to suspend into.
func osYield() {
	runtime.Gosched()
}
