// Package workerpool runs submitted tasks on a fixed set of worker
// goroutines. Submission never blocks: tasks wait in an unbounded FIFO
// until a worker is free.
package workerpool

import (
	"errors"
	"fmt"
	"sync"
)

// ErrPoolClosed is returned by Submit after Close has been called.
var ErrPoolClosed = errors.New("worker pool is closed")

// Task is a unit of work. It runs to completion on one worker.
type Task func()

// Stats is a point-in-time snapshot of the pool.
type Stats struct {
	Workers int
	Queued  int
	Running int
}

type Pool struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []Task
	running int
	closed  bool
	workers int
	wg      sync.WaitGroup

	onPanic func(any)
}

type Option func(*Pool)

// WithPanicHandler installs a callback for panics raised by tasks. The
// worker survives the panic either way.
func WithPanicHandler(fn func(recovered any)) Option {
	return func(p *Pool) { p.onPanic = fn }
}

// New starts a pool with the given number of workers (at least one).
func New(workers int, opts ...Option) *Pool {
	if workers < 1 {
		workers = 1
	}
	p := &Pool{workers: workers}
	p.cond = sync.NewCond(&p.mu)
	for _, o := range opts {
		o(p)
	}

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

// Submit enqueues task. It never waits for a worker.
func (p *Pool) Submit(task Task) error {
	if task == nil {
		return fmt.Errorf("nil task")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPoolClosed
	}
	p.queue = append(p.queue, task)
	p.cond.Signal()
	return nil
}

// Close stops accepting tasks, lets the workers drain the queue and waits
// for them to exit. It is safe to call more than once.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{Workers: p.workers, Queued: len(p.queue), Running: p.running}
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.cond.Wait()
		}
		if len(p.queue) == 0 {
			p.mu.Unlock()
			return
		}
		task := p.queue[0]
		p.queue[0] = nil
		p.queue = p.queue[1:]
		p.running++
		p.mu.Unlock()

		p.run(task)

		p.mu.Lock()
		p.running--
		p.mu.Unlock()
	}
}

func (p *Pool) run(task Task) {
	defer func() {
		if r := recover(); r != nil && p.onPanic != nil {
			p.onPanic(r)
		}
	}()
	task()
}
