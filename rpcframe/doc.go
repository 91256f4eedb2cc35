// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package rpcframe implements the RPC framing core: a
// bit-exact 32-byte length-prefixed, tagged header over a raw byte stream,
// an out-of-order execution engine for multiplexing concurrent calls on one
// connection, and a client stub / server skeleton built on top of it.
package rpcframe
