// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package vcpu

// Semaphore is the counting semaphore: wait(n) suspends
// until at least n permits are available, then subtracts n. signal(k) adds
// k and wakes waiters in strict FIFO order, each taking its own requested
// count, with no overtaking — if the head waiter's request exceeds what is
// available, later waiters are not satisfied even if their smaller request
// would fit.
//
// A plain Semaphore assumes every caller is on the same vcpu, like Mutex,
// RWLock and CondVar. The work pool's task-availability and
// result-cell signals are genuinely cross-vcpu — for those, NewSharedSemaphore
// adds a Spinlock guard as the carve-out for primitives that need cross-vcpu
// visibility.
type Semaphore struct {
	available int64
	waiters   waitSet
	guard     *Spinlock
}

func NewSemaphore(initial int64) *Semaphore {
	return &Semaphore{available: initial}
}

// NewSharedSemaphore returns a Semaphore safe to Wait/Signal from fibers on
// different vcpus, or different Runtimes entirely.
func NewSharedSemaphore(initial int64) *Semaphore {
	return &Semaphore{available: initial, guard: NewSpinlock()}
}

// Wait suspends the calling fiber until n permits are available, then
// subtracts n. Wait(0) returns immediately regardless of queue state.
func (s *Semaphore) Wait(n int64) error {
	self := Current()
	if self == nil {
		badState("Semaphore.Wait", "no current fiber")
		return ErrBadState
	}
	if n <= 0 {
		return nil
	}

	s.lock()
	if s.waiters.empty() && s.available >= n {
		s.available -= n
		s.unlock()
		return nil
	}
	self.waitData = n
	s.waiters.pushBack(self)
	s.unlock()

	suspendSelf(self, func() {})
	return self.Err()
}

// Signal adds k permits, then releases queued waiters in FIFO order until
// either the queue empties or the new head's requested count exceeds what
// remains available.
func (s *Semaphore) Signal(k int64) {
	if k <= 0 {
		return
	}
	s.lock()
	s.available += k
	var woken []*Fiber
	for {
		head := s.waiters.head
		if head == nil {
			break
		}
		need, _ := head.waitData.(int64)
		if need > s.available {
			break
		}
		s.waiters.popFront()
		s.available -= need
		head.waitData = nil
		woken = append(woken, head)
	}
	s.unlock()

	for _, f := range woken {
		wake(f, nil)
	}
}

// TryWait attempts to acquire n permits without suspending, honoring the
// same no-overtaking rule: it still fails if other fibers are already
// queued, even when the raw count would otherwise allow it.
func (s *Semaphore) TryWait(n int64) bool {
	if n <= 0 {
		return true
	}
	s.lock()
	defer s.unlock()
	if s.waiters.empty() && s.available >= n {
		s.available -= n
		return true
	}
	return false
}

func (s *Semaphore) lock() {
	if s.guard != nil {
		s.guard.Lock()
	}
}

func (s *Semaphore) unlock() {
	if s.guard != nil {
		s.guard.Unlock()
	}
}
