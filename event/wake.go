// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package event

// WakeSource is a self-wake fd registered with a Poller so that a vcpu
// blocked in PollIO can be interrupted from another thread — e.g. when a
// cross-vcpu interrupt lands in the ring buffer and the
// target vcpu is parked in its epoll_wait/kevent call. Signal is safe to
// call from any goroutine; the Poller callback runs on whichever goroutine
// called PollIO, same as any other registered fd.
type WakeSource struct {
	readFd, writeFd int
}

// NewWakeSource creates and registers a self-wake fd on p. The supplied
// callback runs (with zero IOEvents significance — readiness itself is the
// signal) whenever Signal has been called since the fd was last drained.
func NewWakeSource(p Poller, cb Callback) (*WakeSource, error) {
	rfd, wfd, err := createWakeFD()
	if err != nil {
		return nil, err
	}
	w := &WakeSource{readFd: rfd, writeFd: wfd}
	if err := p.RegisterFD(rfd, EventRead, func(events IOEvents) {
		drainWakeFD(rfd)
		cb(events)
	}); err != nil {
		closeFD(rfd)
		if wfd != rfd {
			closeFD(wfd)
		}
		return nil, err
	}
	return w, nil
}

// Signal wakes the poller blocked in PollIO. Safe for concurrent use and
// safe to call more times than the poller wakes — wake requests coalesce.
func (w *WakeSource) Signal() error {
	return signalWakeFD(w.writeFd)
}

// Close releases the wake fd(s). The caller must UnregisterFD first if the
// poller is still running.
func (w *WakeSource) Close() error {
	err := closeFD(w.readFd)
	if w.writeFd != w.readFd {
		if err2 := closeFD(w.writeFd); err == nil {
			err = err2
		}
	}
	return err
}
