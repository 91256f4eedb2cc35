// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package vcpu

import (
	"os"
	"os/signal"
	"sync"

	"github.com/joeycumines/logiface"
)

// SignalHandler runs as an ordinary fiber and may block; it
// receives the signal it was registered for.
type SignalHandler func(sig os.Signal)

// signalMux is the dedicated fiber that serializes handler invocations for
// every signal registered via Runtime.SyncSignal. Default actions are
// blocked process-wide in the sense that matters here: no handler for a
// given signal runs until something calls SyncSignal for it, Go's
// os/signal.Notify equivalent of masking a default disposition.
//
// The Go runtime delivers signals on a channel from its own internal
// goroutine, which is not a fiber and cannot suspend through this package's
// rendezvous protocol. A small plain goroutine (pump) bridges that channel
// into a self-pipe; the dispatcher fiber suspends on the pipe's read end via
// the ordinary WaitForFDReadable path, so from the scheduler's point of view
// it is just another fiber parked on an fd.
type signalMux struct {
	rt *Runtime
	ch chan os.Signal

	mu       sync.Mutex
	handlers map[os.Signal]SignalHandler
	pending  []os.Signal

	pr, pw *os.File
	stopCh chan struct{}
}

func newSignalMux(rt *Runtime) *signalMux {
	pr, pw, err := os.Pipe()
	if err != nil {
		componentLog(logiface.LevelError, "signal").Err(err).Log("failed to create signal self-pipe; signals disabled")
		return nil
	}
	return &signalMux{
		rt:       rt,
		ch:       make(chan os.Signal, 64),
		handlers: make(map[os.Signal]SignalHandler),
		pr:       pr,
		pw:       pw,
		stopCh:   make(chan struct{}),
	}
}

func (m *signalMux) start() {
	if m == nil {
		return
	}
	go m.pump()
	m.rt.SpawnOn(0, m.dispatch, nil, StackSize64K.bytes())
}

func (m *signalMux) pump() {
	for {
		select {
		case sig := <-m.ch:
			m.mu.Lock()
			m.pending = append(m.pending, sig)
			m.mu.Unlock()
			_, _ = m.pw.Write([]byte{1})
		case <-m.stopCh:
			return
		}
	}
}

func (m *signalMux) dispatch(any) {
	fd := int(m.pr.Fd())
	var buf [64]byte
	for {
		if err := WaitForFDReadable(fd, Infinite); err != nil {
			return
		}
		_, _ = m.pr.Read(buf[:])
		for {
			m.mu.Lock()
			if len(m.pending) == 0 {
				m.mu.Unlock()
				break
			}
			sig := m.pending[0]
			m.pending = m.pending[1:]
			h := m.handlers[sig]
			m.mu.Unlock()
			if h != nil {
				h(sig)
			}
		}
	}
}

func (m *signalMux) stop() {
	if m == nil {
		return
	}
	signal.Stop(m.ch)
	close(m.stopCh)
	_ = m.pw.Close()
	_ = m.pr.Close()
}

// SyncSignal registers handler to run, as a normal fiber invocation
// serialized through the signal multiplexer, whenever sig is delivered to
// the process. Passing a nil handler removes sig's handler; sig stays
// registered with the multiplexer, so later deliveries are still
// intercepted and then dropped.
func (rt *Runtime) SyncSignal(sig os.Signal, handler SignalHandler) {
	if rt.signals == nil {
		badState("SyncSignal", "runtime was initialized without MiscFlagsSignals")
		return
	}
	rt.signals.mu.Lock()
	if handler == nil {
		delete(rt.signals.handlers, sig)
	} else {
		rt.signals.handlers[sig] = handler
	}
	rt.signals.mu.Unlock()
	signal.Notify(rt.signals.ch, sig)
}
