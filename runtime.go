// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package vcpu

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/joeycumines/logiface"
)

// Runtime is the per-Init context: a vcpu registry for cross-vcpu
// addressing and the list of live event engines fork hooks must reset.
// Constructed explicitly by Init rather than kept as package-level globals,
// so a process can run more than one independent Runtime if it needs to;
// the TLS key space and the stack pool are process-wide and shared by every
// Runtime.
type Runtime struct {
	stacks *StackPool

	vcpus []*VCPU

	forkMu  sync.Mutex
	engines []resettableEngine

	signals *signalMux
}

type resettableEngine interface {
	reset() error
}

func defaultVCPUCount() int {
	n := runtime.GOMAXPROCS(0)
	if n < 1 {
		return 1
	}
	return n
}

// Init brings up a Runtime: one vcpu per WithVCPUCount (default
// GOMAXPROCS), each with its own master event engine, and — only when
// WithMiscFlags includes MiscFlagsSignals — a signal multiplexer fiber.
func Init(opts ...RuntimeOption) (*Runtime, error) {
	cfg := resolveRuntimeOptions(opts)

	rt := &Runtime{stacks: defaultStackPool}

	for i := 0; i < cfg.vcpuCount; i++ {
		v, err := newVCPU(rt, i)
		if err != nil {
			_ = rt.shutdownPartial()
			return nil, WrapError("vcpu init", err)
		}
		rt.vcpus = append(rt.vcpus, v)
	}

	for _, v := range rt.vcpus {
		go v.run()
	}

	if cfg.miscFlags&MiscFlagsSignals != 0 {
		rt.signals = newSignalMux(rt)
		rt.signals.start()
	}

	registerForFork(rt)

	componentLog(logiface.LevelInformational, "runtime").
		Int("vcpus", cfg.vcpuCount).
		Log("runtime initialized")

	return rt, nil
}

func (rt *Runtime) shutdownPartial() error {
	for _, v := range rt.vcpus {
		v.requestStop()
	}
	return nil
}

// Fini requests every vcpu's scheduler loop exit once its run-queue and
// timer heap drain, stops the signal multiplexer if running, and waits for
// each scheduler loop to return before closing its poller. Fibers still
// parked in a wait-list at that point are not resumed.
func (rt *Runtime) Fini() error {
	unregisterForFork(rt)

	if rt.signals != nil {
		rt.signals.stop()
	}

	for _, v := range rt.vcpus {
		v.requestStop()
		v.master.wake()
	}
	for _, v := range rt.vcpus {
		<-v.stopped
		_ = v.master.poller.Close()
	}

	componentLog(logiface.LevelInformational, "runtime").Log("runtime finalized")
	return nil
}

// VCPUCount returns the number of vcpus this Runtime manages.
func (rt *Runtime) VCPUCount() int { return len(rt.vcpus) }

// VCPU returns the vcpu at idx, for bootstrap spawns and the work pool's
// per-worker-thread addressing. Panics if idx is out of range.
func (rt *Runtime) VCPU(idx int) *VCPU { return rt.vcpus[idx] }

// SpawnOn creates a fiber on vcpu idx — the bootstrap entry point used
// where no fiber exists to call the package-level Spawn from. Called from a
// fiber already on that vcpu it is Spawn; from anywhere else the new fiber
// is handed to the vcpu through its interrupt ring, so the run-queue stays
// touched only by its own scheduler goroutine.
func (rt *Runtime) SpawnOn(idx int, fn FiberFunc, arg any, stackSize int) *Fiber {
	v := rt.vcpus[idx]
	if self := Current(); self != nil && self.vcpu() == v {
		return v.spawn(fn, arg, stackSize)
	}
	f := newFiber(v, fn, arg, stackSize)
	f.state.Store(FiberWaiting)
	deliverWake(f, nil)
	return f
}

func (rt *Runtime) registerEngine(e resettableEngine) {
	rt.forkMu.Lock()
	rt.engines = append(rt.engines, e)
	rt.forkMu.Unlock()
}

// String renders a short diagnostic identity, useful in log fields.
func (rt *Runtime) String() string {
	return fmt.Sprintf("vcpu.Runtime{vcpus=%d}", len(rt.vcpus))
}
