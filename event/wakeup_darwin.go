// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build darwin

package event

import "golang.org/x/sys/unix"

// createWakeFD creates a self-pipe for self-wake notifications on Darwin,
// which has no eventfd equivalent.
func createWakeFD() (readFd, writeFd int, err error) {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return -1, -1, err
	}
	unix.CloseOnExec(fds[0])
	unix.CloseOnExec(fds[1])
	if err := unix.SetNonblock(fds[0], true); err != nil {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
		return -1, -1, err
	}
	if err := unix.SetNonblock(fds[1], true); err != nil {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
		return -1, -1, err
	}
	return fds[0], fds[1], nil
}

func drainWakeFD(readFd int) {
	var buf [64]byte
	for {
		if _, err := unix.Read(readFd, buf[:]); err != nil {
			return
		}
	}
}

func signalWakeFD(writeFd int) error {
	var buf [1]byte
	_, err := unix.Write(writeFd, buf[:])
	if err == unix.EAGAIN {
		// pipe buffer already carries a pending wake byte.
		return nil
	}
	return err
}
