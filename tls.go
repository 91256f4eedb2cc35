// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package vcpu

import "sync"

// TLSKey indexes into the process-wide fiber-local-storage key space.
type TLSKey int

type tlsRegistry struct {
	mu   sync.Mutex
	next TLSKey
}

func (r *tlsRegistry) create() TLSKey {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := r.next
	r.next++
	return k
}

// fiberLocals is lazily allocated per fiber the first time it sets a TLS
// value, so fibers that never touch TLS pay nothing for it.
type fiberLocals struct {
	values map[TLSKey]any
}

// processTLSKeys is the single TLS key space shared by every Runtime.
var processTLSKeys tlsRegistry

// KeyCreate allocates a new process-wide TLS key.
func (rt *Runtime) KeyCreate() TLSKey { return processTLSKeys.create() }

// KeySet stores a value under key for the currently running fiber. It
// panics (in debug) or logs (in release) if called outside any fiber — TLS
// is fiber-local by definition, see DebugChecksEnabled.
func KeySet(key TLSKey, value any) {
	f := Current()
	if f == nil {
		badState("KeySet", "no current fiber")
		return
	}
	f.localsMu.Lock()
	defer f.localsMu.Unlock()
	if f.locals == nil {
		f.locals = &fiberLocals{values: make(map[TLSKey]any)}
	}
	f.locals.values[key] = value
}

// KeyGet retrieves the value previously stored under key for the currently
// running fiber, or nil if never set.
func KeyGet(key TLSKey) any {
	f := Current()
	if f == nil {
		return nil
	}
	f.localsMu.Lock()
	defer f.localsMu.Unlock()
	if f.locals == nil {
		return nil
	}
	return f.locals.values[key]
}

// KeyDelete removes a value for the currently running fiber. A no-op if
// never set.
func KeyDelete(key TLSKey) {
	f := Current()
	if f == nil {
		return
	}
	f.localsMu.Lock()
	defer f.localsMu.Unlock()
	if f.locals != nil {
		delete(f.locals.values, key)
	}
}
