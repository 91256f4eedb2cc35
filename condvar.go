// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package vcpu

// CondVar is the FIFO condition variable. Wait is paired
// with a Mutex the caller must already hold; WaitNoLock is for call sites
// that already serialize access some other way and want no mutex touched.
type CondVar struct {
	waiters waitSet
}

func NewCondVar() *CondVar {
	return &CondVar{}
}

// Wait atomically releases m and suspends the calling fiber until a Signal,
// Broadcast, or interruption, reacquiring m before returning. If both the
// wait and the reacquire fail, the wait's error takes precedence.
func (c *CondVar) Wait(m *Mutex) error {
	self := Current()
	if self == nil {
		badState("CondVar.Wait", "no current fiber")
		return ErrBadState
	}
	m.Unlock()
	suspendSelf(self, func() { c.waiters.pushBack(self) })
	err := self.Err()
	if lockErr := m.Lock(); err == nil {
		err = lockErr
	}
	return err
}

// WaitNoLock suspends until Signal, Broadcast, or interruption, without
// acquiring or releasing any mutex.
func (c *CondVar) WaitNoLock() error {
	self := Current()
	if self == nil {
		badState("CondVar.WaitNoLock", "no current fiber")
		return ErrBadState
	}
	suspendSelf(self, func() { c.waiters.pushBack(self) })
	return self.Err()
}

// Signal wakes the single longest-waiting fiber, if any.
func (c *CondVar) Signal() {
	if f := c.waiters.popFront(); f != nil {
		wake(f, nil)
	}
}

// Broadcast wakes every waiting fiber, in FIFO order.
func (c *CondVar) Broadcast() {
	for {
		f := c.waiters.popFront()
		if f == nil {
			return
		}
		wake(f, nil)
	}
}
