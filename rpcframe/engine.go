// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package rpcframe

import "github.com/joeycumines/go-vcpu"

// pendingOp tracks one in-flight tag between Submit's issue and the
// transport layer's matching Complete call.
type pendingOp struct {
	sem     *vcpu.Semaphore
	payload []byte
	err     error
}

// Engine is the out-of-order execution engine: it
// serializes issue across every submission sharing the engine (so the wire
// sees a total order of requests), then lets each issuing fiber block
// independently until its own tag completes. A single Engine is scoped to
// one connection and is only ever touched by fibers on one vcpu, matching
// the concurrency model of every other primitive in this module.
type Engine struct {
	issueLock *vcpu.Mutex
	mapLock   *vcpu.Mutex
	pending   map[uint64]*pendingOp
	closed    bool
	closeErr  error
}

// NewEngine constructs an Engine with no operations in flight.
func NewEngine() *Engine {
	return &Engine{
		issueLock: vcpu.NewMutex(),
		mapLock:   vcpu.NewMutex(),
		pending:   make(map[uint64]*pendingOp),
	}
}

// Submit registers tag, runs issue serialized against every other
// submission on this engine, then blocks the calling fiber until a matching
// Complete call arrives, at which point collect runs (still holding the
// issuing fiber, before the tag is released for reuse) and Submit returns
// whatever error the wait produced.
//
// Submitting a tag that is already in flight is a caller bug and returns
// ErrTagInUse without calling issue.
func (e *Engine) Submit(tag uint64, issue func() error, collect func(payload []byte, err error)) error {
	op := &pendingOp{sem: vcpu.NewSemaphore(0)}
	if err := e.register(tag, op); err != nil {
		return err
	}

	if err := e.issueLock.Lock(); err != nil {
		e.release(tag)
		return err
	}
	issueErr := issue()
	e.issueLock.Unlock()
	if issueErr != nil {
		e.release(tag)
		return issueErr
	}

	waitErr := op.sem.Wait(1)
	collect(op.payload, op.err)
	e.release(tag)
	if waitErr != nil {
		return waitErr
	}
	return op.err
}

// Complete hands the response for tag back to its issuing fiber, driven by
// the transport read loop. Called exactly once per tag; a
// completion for an unknown or already-released tag (a late response past
// a timeout, say) is silently dropped.
func (e *Engine) Complete(tag uint64, payload []byte, err error) {
	e.mapLock.Lock()
	op := e.pending[tag]
	e.mapLock.Unlock()
	if op == nil {
		return
	}
	op.payload = payload
	op.err = err
	op.sem.Signal(1)
}

func (e *Engine) register(tag uint64, op *pendingOp) error {
	if err := e.mapLock.Lock(); err != nil {
		return err
	}
	defer e.mapLock.Unlock()
	if e.closed {
		if e.closeErr != nil {
			return e.closeErr
		}
		return vcpu.ErrClosed
	}
	if _, exists := e.pending[tag]; exists {
		return ErrTagInUse
	}
	e.pending[tag] = op
	return nil
}

// Shutdown completes every operation currently in flight with cause and
// rejects all future Submit calls with it, driven by the transport layer
// when the stream fails.
func (e *Engine) Shutdown(cause error) {
	e.mapLock.Lock()
	if e.closed {
		e.mapLock.Unlock()
		return
	}
	e.closed = true
	e.closeErr = cause
	pending := e.pending
	e.pending = make(map[uint64]*pendingOp)
	e.mapLock.Unlock()

	for _, op := range pending {
		op.err = cause
		op.sem.Signal(1)
	}
}

func (e *Engine) release(tag uint64) {
	e.mapLock.Lock()
	delete(e.pending, tag)
	e.mapLock.Unlock()
}
