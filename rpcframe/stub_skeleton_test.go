// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package rpcframe

import (
	"bytes"
	"testing"
	"time"

	"github.com/joeycumines/go-vcpu"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func newLoopback(t *testing.T) (clientFD, serverFD int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	require.NoError(t, unix.SetNonblock(fds[0], true))
	require.NoError(t, unix.SetNonblock(fds[1], true))
	return fds[0], fds[1]
}

// TestRPCEcho: a request of S bytes of pattern 0xAB against {iid=9527,
// fid=1} gets back a response with the same iid/fid/tag and an identical
// body.
func TestRPCEcho(t *testing.T) {
	clientFD, serverFD := newLoopback(t)

	rt, err := vcpu.Init(vcpu.WithVCPUCount(1))
	require.NoError(t, err)
	defer rt.Fini()

	echo := FunctionID{IID: 9527, FID: 1}
	pattern := bytes.Repeat([]byte{0xAB}, 256)

	var stub *Stub
	serverUp := make(chan struct{})
	rt.SpawnOn(0, func(any) {
		sk := NewSkeleton(NewStream(serverFD), nil, nil)
		sk.Register(echo, func(payload []byte) ([]byte, error) {
			out := make([]byte, len(payload))
			copy(out, payload)
			return out, nil
		})
		close(serverUp)
		_ = sk.Serve()
	}, nil, vcpu.StackSize64K.Bytes())
	<-serverUp

	done := make(chan struct{})
	var resp []byte
	var callErr error
	rt.SpawnOn(0, func(any) {
		stub = NewStub(NewStream(clientFD), nil)
		resp, callErr = stub.Call(echo, 0x1111, pattern, vcpu.Infinite)
		close(done)
	}, nil, vcpu.StackSize64K.Bytes())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RPC call never returned")
	}
	require.NoError(t, callErr)
	require.Equal(t, pattern, resp)
}

func TestRPCEcho_EmptyPayloadIsValid(t *testing.T) {
	clientFD, serverFD := newLoopback(t)

	rt, err := vcpu.Init(vcpu.WithVCPUCount(1))
	require.NoError(t, err)
	defer rt.Fini()

	echo := FunctionID{IID: 1, FID: 1}

	serverUp := make(chan struct{})
	rt.SpawnOn(0, func(any) {
		sk := NewSkeleton(NewStream(serverFD), nil, nil)
		sk.Register(echo, func(payload []byte) ([]byte, error) {
			return payload, nil
		})
		close(serverUp)
		_ = sk.Serve()
	}, nil, vcpu.StackSize64K.Bytes())
	<-serverUp

	done := make(chan struct{})
	var resp []byte
	var callErr error
	rt.SpawnOn(0, func(any) {
		stub := NewStub(NewStream(clientFD), nil)
		resp, callErr = stub.Call(echo, 1, nil, vcpu.Infinite)
		close(done)
	}, nil, vcpu.StackSize64K.Bytes())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RPC call never returned")
	}
	require.NoError(t, callErr)
	require.Empty(t, resp)
}

func TestStub_CallTimesOutWithoutClosingStream(t *testing.T) {
	clientFD, serverFD := newLoopback(t)
	defer unix.Close(serverFD)

	rt, err := vcpu.Init(vcpu.WithVCPUCount(1))
	require.NoError(t, err)
	defer rt.Fini()

	done := make(chan struct{})
	var callErr error
	rt.SpawnOn(0, func(any) {
		stub := NewStub(NewStream(clientFD), nil)
		// server never responds; expect a timeout, not a hang.
		_, callErr = stub.Call(FunctionID{IID: 1, FID: 1}, 1, nil, 50*1000)
		close(done)
	}, nil, vcpu.StackSize64K.Bytes())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Call never returned after its deadline")
	}
	require.ErrorIs(t, callErr, vcpu.ErrTimeout)
}
