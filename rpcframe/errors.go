// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package rpcframe

import "errors"

var (
	// ErrBadHeader is returned for a short read, magic mismatch, or
	// unsupported version while decoding a Header.
	ErrBadHeader = errors.New("rpcframe: bad header")

	// ErrTagInUse is returned by the out-of-order engine when a caller
	// submits a tag that already has an operation in flight — this is a
	// caller bug.
	ErrTagInUse = errors.New("rpcframe: tag already in flight")

	// ErrUnknownMethod names the case of a header's {iid,fid} missing from
	// a skeleton's service table. Skeleton.Serve does not return it: it
	// answers such a request with an empty response under the original tag.
	ErrUnknownMethod = errors.New("rpcframe: unknown method")
)
