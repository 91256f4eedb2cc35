// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package vcpu

// RWLock is the writer-preferring reader/writer lock:
// separate reader and writer queues, and once a writer is waiting, new
// readers queue behind it rather than starving it. Lock upgrades (holding a
// read lock and attempting to acquire the write lock on the same fiber) are
// not supported and will deadlock.
type RWLock struct {
	readers        int
	writer         bool
	waitingWriters int

	readWaiters  waitSet
	writeWaiters waitSet
}

func NewRWLock() *RWLock {
	return &RWLock{}
}

// RLock acquires a shared (read) hold.
func (rw *RWLock) RLock() error {
	self := Current()
	if self == nil {
		badState("RWLock.RLock", "no current fiber")
		return ErrBadState
	}
	if !rw.writer && rw.waitingWriters == 0 {
		rw.readers++
		return nil
	}
	suspendSelf(self, func() { rw.readWaiters.pushBack(self) })
	return self.Err()
}

// RUnlock releases a shared hold.
func (rw *RWLock) RUnlock() {
	rw.readers--
	if rw.readers == 0 {
		rw.wakeNext()
	}
}

// Lock acquires an exclusive (write) hold.
func (rw *RWLock) Lock() error {
	self := Current()
	if self == nil {
		badState("RWLock.Lock", "no current fiber")
		return ErrBadState
	}
	if !rw.writer && rw.readers == 0 && rw.waitingWriters == 0 {
		rw.writer = true
		return nil
	}
	rw.waitingWriters++
	suspendSelf(self, func() { rw.writeWaiters.pushBack(self) })
	return self.Err()
}

// Unlock releases an exclusive hold.
func (rw *RWLock) Unlock() {
	rw.writer = false
	rw.wakeNext()
}

// wakeNext implements the writer-preferring handoff: a queued writer always
// goes first and is handed ownership directly; only once the writer queue is
// empty are every queued reader released together.
func (rw *RWLock) wakeNext() {
	if w := rw.writeWaiters.popFront(); w != nil {
		rw.writer = true
		rw.waitingWriters--
		wake(w, nil)
		return
	}
	for {
		r := rw.readWaiters.popFront()
		if r == nil {
			return
		}
		rw.readers++
		wake(r, nil)
	}
}
