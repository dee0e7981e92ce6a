// Package ratelimit bounds in-flight provider calls per provider class.
// Admission is FIFO: queued work runs in arrival order as permits free up.
package ratelimit

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Limiter is a bounded-concurrency gate. At most limit operations run at
// once; the rest queue FIFO. Safe for concurrent use.
type Limiter struct {
	limit  int64
	sem    *semaphore.Weighted
	active atomic.Int64
	queued atomic.Int64
}

// Metrics is a point-in-time snapshot of limiter load.
type Metrics struct {
	Active int
	Queued int
	Limit  int
}

// New creates a Limiter admitting up to limit concurrent operations.
// Panics if limit < 1 (programmer error; config validation rejects it first).
func New(limit int) *Limiter {
	if limit < 1 {
		panic(fmt.Sprintf("ratelimit: limit must be >= 1, got %d", limit))
	}
	return &Limiter{
		limit: int64(limit),
		sem:   semaphore.NewWeighted(int64(limit)),
	}
}

// Do runs fn under a permit. If all permits are taken, the call queues until
// one is released. A cancelled context fails fast with the context's error,
// both before queueing and while queued, without running fn. Only callers
// that actually wait count toward the queued metric.
func (l *Limiter) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// TryAcquire fails when waiters exist, so the fast path cannot jump
	// the FIFO queue.
	if !l.sem.TryAcquire(1) {
		l.queued.Add(1)
		err := l.sem.Acquire(ctx, 1)
		l.queued.Add(-1)
		if err != nil {
			return err
		}
	}

	l.active.Add(1)
	defer func() {
		l.active.Add(-1)
		l.sem.Release(1)
	}()

	return fn(ctx)
}

// Metrics returns a snapshot of current load. Active never exceeds Limit.
func (l *Limiter) Metrics() Metrics {
	return Metrics{
		Active: int(l.active.Load()),
		Queued: int(l.queued.Load()),
		Limit:  int(l.limit),
	}
}
