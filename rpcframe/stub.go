// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package rpcframe

import (
	"errors"

	"github.com/joeycumines/go-vcpu"
	"github.com/joeycumines/go-vcpu/timerservice"
)

// timeoutCode is the Interrupt subcode a Stub's watchdog timer delivers;
// it is distinguished from any other interrupt the caller might deliver so
// a genuine external Interrupt is never misreported as a timeout.
const timeoutCode int32 = 0x7470 // "tp" - timeout

// Allocator allocates a payload buffer of size bytes for an inbound frame,
// letting a caller route frame payloads through its own pool instead of a
// bare make([]byte, size) per call.
type Allocator func(size int) []byte

func defaultAllocator(size int) []byte { return make([]byte, size) }

// Stub is the client side of the RPC framing core: requests
// are sent under the out-of-order engine's serialized issue path, and a
// dedicated read-loop fiber drives completions for every tag in flight.
type Stub struct {
	stream    *Stream
	engine    *Engine
	allocator Allocator
}

// NewStub wraps stream and spawns its read-loop fiber on the calling
// fiber's vcpu. Must be called from within a fiber.
func NewStub(stream *Stream, allocator Allocator) *Stub {
	if allocator == nil {
		allocator = defaultAllocator
	}
	s := &Stub{stream: stream, engine: NewEngine(), allocator: allocator}
	vcpu.Spawn(s.readLoop, nil, vcpu.StackSize64K.Bytes())
	return s
}

// Call sends a request for fn under tag with payload as its body, and
// blocks the calling fiber for the matching response. timeoutUS of
// vcpu.Infinite (or <= 0) waits forever; otherwise a watchdog fires
// vcpu.ErrTimeout if no response arrives in time, without closing the
// stream.
func (s *Stub) Call(fn FunctionID, tag uint64, payload []byte, timeoutUS int64) ([]byte, error) {
	self := vcpu.Current()
	if self == nil {
		return nil, vcpu.ErrBadState
	}

	var watchdog *timerservice.Timer
	if timeoutUS > 0 {
		watchdog = timerservice.Schedule(timeoutUS, false, vcpu.StackSize64K.Bytes(), func() int64 {
			vcpu.Interrupt(self, timeoutCode)
			return 0
		})
	}

	var resp []byte
	err := s.engine.Submit(tag, func() error {
		return s.writeFrame(fn, tag, payload)
	}, func(p []byte, _ error) {
		resp = p
	})

	if watchdog != nil {
		watchdog.Cancel()
	}

	if err != nil {
		var ie *vcpu.InterruptError
		if errors.As(err, &ie) && ie.Code == timeoutCode {
			return nil, vcpu.ErrTimeout
		}
		return nil, err
	}
	return resp, nil
}

func (s *Stub) writeFrame(fn FunctionID, tag uint64, payload []byte) error {
	h := Header{Version: Version, Size: uint32(len(payload)), Func: fn, Tag: tag}
	buf := h.Marshal(make([]byte, 0, HeaderSize))
	if err := s.stream.WriteFull(buf); err != nil {
		return err
	}
	if len(payload) > 0 {
		if err := s.stream.WriteFull(payload); err != nil {
			return err
		}
	}
	return nil
}

// readLoop is the transport layer that drives Complete.
func (s *Stub) readLoop(any) {
	var hdrBuf [HeaderSize]byte
	for {
		if err := s.stream.ReadFull(hdrBuf[:]); err != nil {
			s.engine.Shutdown(err)
			return
		}
		h, err := Unmarshal(hdrBuf[:])
		if err != nil {
			s.engine.Shutdown(err)
			return
		}
		var payload []byte
		if h.Size > 0 {
			payload = s.allocator(int(h.Size))
			if err := s.stream.ReadFull(payload); err != nil {
				s.engine.Shutdown(err)
				return
			}
		}
		s.engine.Complete(h.Tag, payload, nil)
	}
}

// Close tears down the underlying stream; the read loop then shuts the
// engine down, unblocking any calls still in flight with the resulting
// error.
func (s *Stub) Close() error {
	return s.stream.Close()
}
