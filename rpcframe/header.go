// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package rpcframe

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Magic is the fixed header magic number.
const Magic uint64 = 0x4962b4d24caa439e

// Version is the only header version this package emits or accepts.
const Version uint32 = 0

// HeaderSize is the wire size of Header in bytes.
const HeaderSize = 32

// FunctionID identifies a service (iid) and method (fid) pair.
type FunctionID struct {
	IID uint32
	FID uint32
}

// Header is the bit-exact 32-byte little-endian frame header.
// Payload bytes follow immediately, exactly Size of them.
type Header struct {
	Version uint32
	Size    uint32
	Func    FunctionID
	Tag     uint64
}

// Marshal appends the wire encoding of h to buf using protowire's
// fixed-width little-endian helpers (the same primitives the protobuf wire
// format uses for its own fixed32/fixed64 fields), and returns the result.
func (h Header) Marshal(buf []byte) []byte {
	buf = protowire.AppendFixed64(buf, Magic)
	buf = protowire.AppendFixed32(buf, h.Version)
	buf = protowire.AppendFixed32(buf, h.Size)
	buf = protowire.AppendFixed32(buf, h.Func.IID)
	buf = protowire.AppendFixed32(buf, h.Func.FID)
	buf = protowire.AppendFixed64(buf, h.Tag)
	return buf
}

// Unmarshal decodes a Header from the first HeaderSize bytes of buf,
// validating the magic number and version. A magic mismatch or truncated
// buffer is reported via ErrBadHeader.
func Unmarshal(buf []byte) (Header, error) {
	var h Header
	if len(buf) < HeaderSize {
		return h, fmt.Errorf("rpcframe: short header (%d bytes): %w", len(buf), ErrBadHeader)
	}
	magic, n := protowire.ConsumeFixed64(buf)
	if n < 0 {
		return h, ErrBadHeader
	}
	buf = buf[n:]
	if magic != Magic {
		return h, fmt.Errorf("rpcframe: magic mismatch (got %#x): %w", magic, ErrBadHeader)
	}
	version, n := protowire.ConsumeFixed32(buf)
	if n < 0 {
		return h, ErrBadHeader
	}
	buf = buf[n:]
	if version != Version {
		return h, fmt.Errorf("rpcframe: unsupported version %d: %w", version, ErrBadHeader)
	}
	h.Version = version
	size, n := protowire.ConsumeFixed32(buf)
	if n < 0 {
		return h, ErrBadHeader
	}
	buf = buf[n:]
	h.Size = size
	iid, n := protowire.ConsumeFixed32(buf)
	if n < 0 {
		return h, ErrBadHeader
	}
	buf = buf[n:]
	h.Func.IID = iid
	fid, n := protowire.ConsumeFixed32(buf)
	if n < 0 {
		return h, ErrBadHeader
	}
	buf = buf[n:]
	h.Func.FID = fid
	tag, n := protowire.ConsumeFixed64(buf)
	if n < 0 {
		return h, ErrBadHeader
	}
	h.Tag = tag
	return h, nil
}
