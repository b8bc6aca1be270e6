// Package workerpool provides a strictly bounded goroutine pool. At most
// Cap() tasks run at once; further submissions wait for a free worker.
// A panicking task is recovered and reported without taking its worker
// down, so one bad task never stops the others.
package workerpool

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
)

// PanicHandler receives the recovered value of a panicking task.
type PanicHandler func(recovered any)

// Option configures a Pool.
type Option func(*Pool)

// WithPanicHandler sets the callback invoked when a task panics.
func WithPanicHandler(h PanicHandler) Option {
	return func(p *Pool) { p.onPanic = h }
}

// Pool manages a fixed number of worker goroutines.
type Pool struct {
	workers int32
	tasks   chan func()

	running atomic.Int32 // workers started
	active  atomic.Int32 // tasks executing right now
	peak    atomic.Int32 // highest value active has reached

	// mu guards the tasks channel against close while a Submit is sending.
	mu      sync.RWMutex
	closed  bool
	wg      sync.WaitGroup // workers
	pending sync.WaitGroup // accepted tasks that have not finished

	onPanic PanicHandler
}

// New creates a pool with the given number of workers. Workers are
// started lazily as tasks arrive. workers <= 0 means GOMAXPROCS.
func New(workers int, opts ...Option) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	p := &Pool{
		workers: int32(workers),
		// Unbuffered: a task is only accepted once a worker takes it.
		tasks: make(chan func()),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Submit hands task to a worker, blocking until one is free.
// Returns false if the pool is closed.
func (p *Pool) Submit(task func()) bool {
	return p.SubmitCtx(context.Background(), task)
}

// SubmitCtx is Submit that gives up when ctx is done.
// Returns false if the task was not accepted.
func (p *Pool) SubmitCtx(ctx context.Context, task func()) bool {
	if task == nil {
		return false
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}

	p.spawn()

	p.pending.Add(1)
	select {
	case p.tasks <- task:
		return true
	case <-ctx.Done():
		p.pending.Done()
		return false
	}
}

// spawn starts a new worker if the pool is below capacity.
func (p *Pool) spawn() {
	for {
		running := p.running.Load()
		if running >= p.workers {
			return
		}
		if p.running.CompareAndSwap(running, running+1) {
			p.wg.Add(1)
			go p.worker()
			return
		}
	}
}

func (p *Pool) worker() {
	defer func() {
		p.running.Add(-1)
		p.wg.Done()
	}()
	for task := range p.tasks {
		p.run(task)
	}
}

// run executes one task, recovering any panic.
func (p *Pool) run(task func()) {
	n := p.active.Add(1)
	for {
		peak := p.peak.Load()
		if n <= peak || p.peak.CompareAndSwap(peak, n) {
			break
		}
	}

	defer func() {
		if r := recover(); r != nil && p.onPanic != nil {
			p.onPanic(r)
		}
		p.active.Add(-1)
		p.pending.Done()
	}()
	task()
}

// Wait blocks until every accepted task has finished. The pool stays
// open and can take more tasks afterwards.
func (p *Pool) Wait() {
	p.pending.Wait()
}

// Close stops accepting tasks, waits for accepted ones to finish and
// stops the workers. Safe to call more than once.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()
	p.wg.Wait()
}

// IsClosed returns true if the pool is closed.
func (p *Pool) IsClosed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.closed
}

// Running returns the number of started workers.
func (p *Pool) Running() int { return int(p.running.Load()) }

// Active returns the number of tasks executing right now.
func (p *Pool) Active() int { return int(p.active.Load()) }

// Peak returns the highest number of simultaneously executing tasks seen.
func (p *Pool) Peak() int { return int(p.peak.Load()) }

// Cap returns the worker capacity.
func (p *Pool) Cap() int { return int(p.workers) }

// String describes the pool state for debug logs.
func (p *Pool) String() string {
	return fmt.Sprintf("workerpool(cap=%d running=%d active=%d peak=%d)", p.Cap(), p.Running(), p.Active(), p.Peak())
}
