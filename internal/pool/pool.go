// Package pool provides a fixed-concurrency task pool. The chat sync
// pipeline creates one per synchronize call to bound in-flight detail
// resolutions against the provider.
package pool

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Submit after Wait has been called.
var ErrClosed = errors.New("pool is closed")

// Pool runs submitted tasks on a fixed number of worker goroutines.
// Completion order is not guaranteed.
type Pool struct {
	tasks  chan func()
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

// New creates a pool with n workers. n < 1 is treated as 1.
func New(n int) *Pool {
	if n < 1 {
		n = 1
	}

	p := &Pool{
		tasks: make(chan func()),
	}

	p.wg.Add(n)
	for i := 0; i < n; i++ {
		go p.worker()
	}

	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		task()
	}
}

// Submit hands fn to a worker, blocking while all workers are busy.
// Returns ctx.Err() if the context is cancelled before a worker is free,
// or ErrClosed if Wait has already been called.
func (p *Pool) Submit(ctx context.Context, fn func()) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.mu.Unlock()

	select {
	case p.tasks <- fn:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait closes the pool and blocks until all submitted tasks have finished.
func (p *Pool) Wait() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.wg.Wait()
		return
	}
	p.closed = true
	p.mu.Unlock()

	close(p.tasks)
	p.wg.Wait()
}
