// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package workpool

import "errors"

// ErrPoolClosed is returned by Call/DoCall once Shutdown has been called.
var ErrPoolClosed = errors.New("workpool: pool closed")

// ErrRateLimited is returned by Call/DoCall when WithAdmissionRate is
// configured and the calling category has exceeded its configured rate.
var ErrRateLimited = errors.New("workpool: admission rate exceeded")
