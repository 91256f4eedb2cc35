// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package vcpu

import (
	"errors"
	"sync"

	"github.com/joeycumines/go-vcpu/event"
)

// cascadeInterest is a persistent fd registration on a CascadingEngine.
type cascadeInterest struct {
	fd      int
	events  event.IOEvents
	userPtr any
	oneShot bool
}

// CascadingEngine is the user-facing event aggregator:
// unlike the per-vcpu MasterEngine, interest registration is persistent and
// readiness is collected in batches via WaitForEvents rather than as
// individual fiber wakeups. It runs its own background poll loop on a
// dedicated goroutine (not tied to any one vcpu's scheduler), since the
// reference design permits only a single waiting fiber at a time — not
// necessarily the same fiber, or the same vcpu, across calls.
type CascadingEngine struct {
	poller  event.Poller
	stopCh  chan struct{}
	stopped chan struct{}

	mu        sync.Mutex
	interests map[int]*cascadeInterest
	pending   []any
	waiter    *Fiber
}

// NewCascadingEngine constructs and starts a CascadingEngine. Callers must
// Close it to release the underlying poller and stop the background loop.
func NewCascadingEngine() (*CascadingEngine, error) {
	p := event.NewPoller()
	if err := p.Init(); err != nil {
		return nil, err
	}
	ce := &CascadingEngine{
		poller:    p,
		stopCh:    make(chan struct{}),
		stopped:   make(chan struct{}),
		interests: make(map[int]*cascadeInterest),
	}
	go ce.loop()
	return ce, nil
}

func (ce *CascadingEngine) loop() {
	defer close(ce.stopped)
	for {
		select {
		case <-ce.stopCh:
			return
		default:
		}
		// Bounded poll so shutdown is noticed promptly even with no fds
		// registered and no readiness to report.
		if _, err := ce.poller.PollIO(1000); err != nil {
			if errors.Is(err, event.ErrPollerClosed) {
				return
			}
		}
	}
}

// AddInterest registers a persistent interest. If oneShot, the interest is
// removed automatically after it fires once.
func (ce *CascadingEngine) AddInterest(fd int, events event.IOEvents, userPtr any, oneShot bool) error {
	ce.mu.Lock()
	if _, exists := ce.interests[fd]; exists {
		ce.mu.Unlock()
		return &StateError{Op: "AddInterest", Message: "fd already registered"}
	}
	ci := &cascadeInterest{fd: fd, events: events, userPtr: userPtr, oneShot: oneShot}
	ce.interests[fd] = ci
	ce.mu.Unlock()

	if err := ce.poller.RegisterFD(fd, events, func(ev event.IOEvents) { ce.onReady(ci) }); err != nil {
		ce.mu.Lock()
		delete(ce.interests, fd)
		ce.mu.Unlock()
		return err
	}
	return nil
}

// RmInterest removes a previously registered interest.
func (ce *CascadingEngine) RmInterest(fd int) error {
	ce.mu.Lock()
	_, exists := ce.interests[fd]
	delete(ce.interests, fd)
	ce.mu.Unlock()
	if !exists {
		return event.ErrFDNotRegistered
	}
	return ce.poller.UnregisterFD(fd)
}

func (ce *CascadingEngine) onReady(ci *cascadeInterest) {
	ce.mu.Lock()
	if ci.oneShot {
		delete(ce.interests, ci.fd)
	}
	ce.pending = append(ce.pending, ci.userPtr)
	waiter := ce.waiter
	ce.waiter = nil
	ce.mu.Unlock()

	if ci.oneShot {
		_ = ce.poller.UnregisterFD(ci.fd)
	}
	if waiter != nil {
		wake(waiter, nil)
	}
}

// WaitForEvents suspends the calling fiber until at least one registered
// interest fires, copying up to len(out) ready user pointers into out and
// returning the count. Only one fiber may wait on a given engine at a time;
// a second concurrent call returns BAD_STATE.
func (ce *CascadingEngine) WaitForEvents(out []any, timeoutUS int64) (int, error) {
	self := Current()
	if self == nil {
		return 0, ErrBadState
	}

	ce.mu.Lock()
	if len(ce.pending) > 0 {
		n := copy(out, ce.pending)
		ce.pending = ce.pending[n:]
		ce.mu.Unlock()
		return n, nil
	}
	if ce.waiter != nil {
		ce.mu.Unlock()
		return 0, &StateError{Op: "WaitForEvents", Message: "engine already has a waiter"}
	}
	ce.waiter = self
	ce.mu.Unlock()

	v := self.vcpu()
	deadline := v.clk.deadlineFromDelta(timeoutUS)
	suspendSelf(self, func() {
		self.state.Store(FiberWaiting)
		if deadline != deadlineNone {
			v.timers.insert(self, deadline)
		}
	})

	ce.mu.Lock()
	if ce.waiter == self {
		ce.waiter = nil // woken by timeout/interrupt, not a ready event
	}
	n := copy(out, ce.pending)
	ce.pending = ce.pending[n:]
	ce.mu.Unlock()

	if n == 0 && self.Err() != nil {
		return 0, self.Err()
	}
	return n, nil
}

// Close stops the background poll loop and releases the underlying poller.
func (ce *CascadingEngine) Close() error {
	close(ce.stopCh)
	err := ce.poller.Close()
	<-ce.stopped
	return err
}
