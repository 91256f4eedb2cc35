// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package rpcframe

import (
	"errors"
	"fmt"

	"github.com/joeycumines/go-vcpu"
	"golang.org/x/sys/unix"
)

// Stream is a non-blocking byte stream over a raw fd, read and written from
// fiber code via the master event engine's readiness waits. A short read
// (EOF before the requested bytes arrive) or short write is reported as
// vcpu.ErrConnReset.
type Stream struct {
	fd int
}

// NewStream wraps fd, which must already be non-blocking (O_NONBLOCK).
func NewStream(fd int) *Stream {
	return &Stream{fd: fd}
}

func (s *Stream) Fd() int { return s.fd }

// ReadFull reads exactly len(buf) bytes, or returns ErrConnReset.
func (s *Stream) ReadFull(buf []byte) error {
	read := 0
	for read < len(buf) {
		n, err := unix.Read(s.fd, buf[read:])
		if err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
				if werr := vcpu.WaitForFDReadable(s.fd, vcpu.Infinite); werr != nil {
					return werr
				}
				continue
			}
			return fmt.Errorf("rpcframe: read: %w: %w", err, vcpu.ErrConnReset)
		}
		if n == 0 {
			return fmt.Errorf("rpcframe: peer closed mid-frame: %w", vcpu.ErrConnReset)
		}
		read += n
	}
	return nil
}

// WriteFull writes every byte of buf, or returns ErrConnReset.
func (s *Stream) WriteFull(buf []byte) error {
	written := 0
	for written < len(buf) {
		n, err := unix.Write(s.fd, buf[written:])
		if err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
				if werr := vcpu.WaitForFDWritable(s.fd, vcpu.Infinite); werr != nil {
					return werr
				}
				continue
			}
			return fmt.Errorf("rpcframe: write: %w: %w", err, vcpu.ErrConnReset)
		}
		if n == 0 {
			return fmt.Errorf("rpcframe: short write mid-frame: %w", vcpu.ErrConnReset)
		}
		written += n
	}
	return nil
}

// Close releases the underlying fd.
func (s *Stream) Close() error {
	return unix.Close(s.fd)
}
