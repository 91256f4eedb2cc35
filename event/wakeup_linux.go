// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build linux

package event

import "golang.org/x/sys/unix"

// createWakeFD creates an eventfd for self-wake notifications on Linux. The
// same fd serves as both read and write end.
func createWakeFD() (readFd, writeFd int, err error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return -1, -1, err
	}
	return fd, fd, nil
}

func drainWakeFD(readFd int) {
	var buf [8]byte
	for {
		if _, err := unix.Read(readFd, buf[:]); err != nil {
			return
		}
	}
}

func signalWakeFD(writeFd int) error {
	var buf [8]byte
	buf[0] = 1
	_, err := unix.Write(writeFd, buf[:])
	if err == unix.EAGAIN {
		// a wake is already pending in the eventfd counter; coalescing is
		// fine, the poller will wake at least once.
		return nil
	}
	return err
}
