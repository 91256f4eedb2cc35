// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package rpcframe

import (
	"github.com/joeycumines/logiface"

	"github.com/joeycumines/go-vcpu"
	"github.com/joeycumines/go-vcpu/workpool"
)

// Handler answers one RPC request's payload with a response payload or an
// error. There is no wire representation for an application-level error, so
// a Handler error is logged and an empty response is still sent with the
// original tag, leaving error semantics to the payload encoding above this
// package.
type Handler func(payload []byte) ([]byte, error)

// Skeleton is the server side of the RPC framing core: it
// reads frames off a Stream, dispatches by {iid,fid} through a service
// table, and replies under the original tag. With a Pool set, handlers run
// on a worker fiber so the read loop keeps accepting the next frame while
// one request is still being served.
type Skeleton struct {
	stream    *Stream
	allocator Allocator
	pool      *workpool.Pool
	writeLock *vcpu.Semaphore
	services  map[FunctionID]Handler
}

// NewSkeleton constructs a Skeleton over stream. pool may be nil, in which
// case every handler runs inline on the Serve loop's fiber.
//
// writeLock is a binary semaphore rather than a plain Mutex: with pool set,
// response writes for different requests happen from worker fibers on the
// pool's own vcpus, not the Serve loop's, so the response path needs the
// cross-vcpu-safe primitive.
func NewSkeleton(stream *Stream, allocator Allocator, pool *workpool.Pool) *Skeleton {
	if allocator == nil {
		allocator = defaultAllocator
	}
	return &Skeleton{
		stream:    stream,
		allocator: allocator,
		pool:      pool,
		writeLock: vcpu.NewSharedSemaphore(1),
		services:  make(map[FunctionID]Handler),
	}
}

// Register adds fn to the service table, replacing any existing handler.
func (sk *Skeleton) Register(fn FunctionID, h Handler) {
	sk.services[fn] = h
}

// Serve reads and dispatches frames until the stream fails, returning the
// resulting error (always wrapping vcpu.ErrConnReset for transport
// failures).
func (sk *Skeleton) Serve() error {
	var hdrBuf [HeaderSize]byte
	for {
		if err := sk.stream.ReadFull(hdrBuf[:]); err != nil {
			return err
		}
		h, err := Unmarshal(hdrBuf[:])
		if err != nil {
			return err
		}
		var payload []byte
		if h.Size > 0 {
			payload = sk.allocator(int(h.Size))
			if err := sk.stream.ReadFull(payload); err != nil {
				return err
			}
		}

		handler, ok := sk.services[h.Func]
		if !ok {
			if werr := sk.respond(h.Func, h.Tag, nil); werr != nil {
				return werr
			}
			continue
		}

		fn, tag := h.Func, h.Tag
		dispatch := func() {
			resp, herr := handler(payload)
			if herr != nil {
				vcpu.Log().Build(logiface.LevelError).Str("component", "rpcframe").Err(herr).Log("handler failed")
				resp = nil
			}
			_ = sk.respond(fn, tag, resp)
		}
		if sk.pool != nil {
			if err := sk.pool.DoCall(func() (any, error) { dispatch(); return nil, nil }); err != nil {
				dispatch()
			}
		} else {
			dispatch()
		}
	}
}

func (sk *Skeleton) respond(fn FunctionID, tag uint64, payload []byte) error {
	if err := sk.writeLock.Wait(1); err != nil {
		return err
	}
	defer sk.writeLock.Signal(1)
	h := Header{Version: Version, Size: uint32(len(payload)), Func: fn, Tag: tag}
	buf := h.Marshal(make([]byte, 0, HeaderSize+len(payload)))
	buf = append(buf, payload...)
	return sk.stream.WriteFull(buf)
}

// Close tears down the underlying stream, unblocking Serve with a
// connection-reset error.
func (sk *Skeleton) Close() error {
	return sk.stream.Close()
}
