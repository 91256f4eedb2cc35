// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package workpool

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/go-vcpu"
	"github.com/joeycumines/go-vcpu/ring"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"golang.org/x/sync/errgroup"
)

// Callable is a unit of work submitted to a Pool.
type Callable func() (any, error)

type task struct {
	fn     Callable
	result *resultCell
}

// resultCell carries a task's return value back to Call, signaled by a
// semaphore so Call can block the submitting fiber for the result.
type resultCell struct {
	sem   *vcpu.Semaphore
	value any
	err   error
}

// Pool is the work pool: N OS threads, each running its own
// independent vcpu.Runtime (own scheduler, own master engine), fanning out
// Callable tasks pulled from a shared lock-free ring. Task availability and
// per-call result delivery are both signaled with a vcpu.NewSharedSemaphore,
// since both cross vcpu and Runtime boundaries.
type Pool struct {
	runtimes []*vcpu.Runtime
	tasks    *ring.MPMC[*task]
	avail    *vcpu.Semaphore
	queueCap int

	stopping atomic.Bool
	limiter  *catrate.Limiter
}

// Option configures a Pool at construction.
type Option func(*Pool)

// WithAdmissionRate gates Call/DoCall through a catrate.Limiter, rejecting
// bursts of calls before they ever reach the task queue. Call is keyed on
// the calling fiber; every DoCall shares one fixed key.
func WithAdmissionRate(rates map[time.Duration]int) Option {
	return func(p *Pool) { p.limiter = catrate.NewLimiter(rates) }
}

// WithQueueCapacity overrides the task ring's capacity (default 1024,
// rounded up to a power of two).
func WithQueueCapacity(n int) Option {
	return func(p *Pool) { p.queueCap = n }
}

// NewPool brings up a Pool of n worker Runtimes, each with a single vcpu,
// each running a dedicated dispatcher fiber that drains the shared task
// ring.
func NewPool(n int, opts ...Option) (*Pool, error) {
	if n < 1 {
		n = 1
	}
	p := &Pool{
		avail:    vcpu.NewSharedSemaphore(0),
		queueCap: 1024,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.tasks = ring.NewMPMC[*task](p.queueCap, nil)

	for i := 0; i < n; i++ {
		rt, err := vcpu.Init(vcpu.WithVCPUCount(1))
		if err != nil {
			_ = p.shutdownPartial()
			return nil, fmt.Errorf("workpool: starting worker %d: %w", i, err)
		}
		p.runtimes = append(p.runtimes, rt)
	}
	for _, rt := range p.runtimes {
		rt.SpawnOn(0, func(any) { p.workerLoop() }, nil, vcpu.StackSize64K.Bytes())
	}

	componentLog(logiface.LevelInformational).Int("workers", n).Log("work pool started")
	return p, nil
}

func componentLog(level logiface.Level) *logiface.Builder[*stumpy.Event] {
	return vcpu.Log().Build(level).Str("component", "workpool")
}

func (p *Pool) shutdownPartial() error {
	for _, rt := range p.runtimes {
		_ = rt.Fini()
	}
	return nil
}

// workerLoop is the body of each worker Runtime's single dispatcher fiber:
// wait for task availability, pop, execute, repeat. On shutdown it drains
// and executes whatever remains queued before returning.
func (p *Pool) workerLoop() {
	for {
		if err := p.avail.Wait(1); err != nil {
			return
		}
		if p.stopping.Load() {
			p.drain()
			return
		}
		if t, ok := p.tasks.TryPop(); ok {
			p.exec(t)
		}
	}
}

func (p *Pool) drain() {
	for {
		t, ok := p.tasks.TryPop()
		if !ok {
			return
		}
		p.exec(t)
	}
}

func (p *Pool) exec(t *task) {
	value, err := safeCall(t.fn)
	if t.result != nil {
		t.result.value = value
		t.result.err = err
		t.result.sem.Signal(1)
	}
}

func safeCall(fn Callable) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("workpool: task panicked: %v", r)
		}
	}()
	return fn()
}

// Call blocks the calling fiber until fn completes on some worker, returning
// its result.
func (p *Pool) Call(fn Callable) (any, error) {
	self := vcpu.Current()
	if self == nil {
		return nil, vcpu.ErrBadState
	}
	if p.limiter != nil {
		if _, ok := p.limiter.Allow(self); !ok {
			return nil, ErrRateLimited
		}
	}
	cell := &resultCell{sem: vcpu.NewSharedSemaphore(0)}
	if err := p.submit(&task{fn: fn, result: cell}); err != nil {
		return nil, err
	}
	if err := cell.sem.Wait(1); err != nil {
		return nil, err
	}
	return cell.value, cell.err
}

// DoCall is the fire-and-forget variant of Call: no result is collected.
func (p *Pool) DoCall(fn Callable) error {
	if p.limiter != nil {
		if _, ok := p.limiter.Allow("docall"); !ok {
			return ErrRateLimited
		}
	}
	return p.submit(&task{fn: fn})
}

func (p *Pool) submit(t *task) error {
	if p.stopping.Load() {
		return ErrPoolClosed
	}
	if err := p.tasks.Push(t); err != nil {
		return ErrPoolClosed
	}
	p.avail.Signal(1)
	return nil
}

// Shutdown sets the stop flag, signals every worker once, and waits for all
// worker runtimes to finish. Remaining queued tasks are drained and executed
// before Shutdown returns. Joining is fanned out across an errgroup.Group
// rather than a sequential loop, since each runtime's Fini blocks until its
// own vcpus exit and the runtimes are otherwise fully independent.
func (p *Pool) Shutdown() error {
	p.stopping.Store(true)
	p.avail.Signal(int64(len(p.runtimes)))
	p.tasks.Close()

	var g errgroup.Group
	for _, rt := range p.runtimes {
		rt := rt
		g.Go(rt.Fini)
	}
	return g.Wait()
}
