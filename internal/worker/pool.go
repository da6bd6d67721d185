// Package worker bounds CPU- and memory-heavy credential work.
//
// Each Argon2id call holds its full memory cost for the duration of the
// derivation, so the number of concurrent calls is capped process-wide.
package worker

import (
	"context"
	"runtime"

	"golang.org/x/sync/semaphore"
)

// Pool limits how many jobs run at once.
type Pool struct {
	sem  *semaphore.Weighted
	size int
}

// NewPool returns a Pool running at most size jobs concurrently.
// size <= 0 means GOMAXPROCS.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size)), size: size}
}

// Size returns the concurrency limit.
func (p *Pool) Size() int { return p.size }

// Do waits for a free slot and runs fn on its own goroutine.
//
// If ctx ends first Do returns ctx.Err() right away. A job that already
// started is not interrupted: it runs to completion in the background and
// frees its slot when done, and its result is dropped.
func Do[T any](ctx context.Context, p *Pool, fn func() (T, error)) (T, error) {
	var zero T
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return zero, err
	}

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		defer p.sem.Release(1)
		v, err := fn()
		done <- result{v: v, err: err}
	}()

	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
