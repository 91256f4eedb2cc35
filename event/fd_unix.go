// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build linux || darwin

package event

import "golang.org/x/sys/unix"

func closeFD(fd int) error { return unix.Close(fd) }

func readFD(fd int, buf []byte) (int, error) { return unix.Read(fd, buf) }

func writeFD(fd int, buf []byte) (int, error) { return unix.Write(fd, buf) }
