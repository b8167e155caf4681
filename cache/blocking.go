package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/hupe1980/volcache/chunk"
)

// GetBlocking returns the samples of key, producing them if needed.
//
// It joins an attempt already in flight. Otherwise it queues the key at top
// priority and, if no worker has claimed it after the blocking wait,
// produces on the calling goroutine. A key that previously failed with a
// retryable error (see chunk.Retryable) is attempted exactly once more; if
// that attempt fails its error is returned. Permanent failures are
// returned without another attempt.
//
// If ctx is done first, ctx.Err() is returned and the entry is left for
// other requesters.
func (c *Cache) GetBlocking(ctx context.Context, key chunk.Key) (*chunk.Samples, error) {
	return c.get(ctx, key, false)
}

// Handle is a pinned chunk. The samples stay resident until Release.
type Handle struct {
	c        *Cache
	key      chunk.Key
	samples  *chunk.Samples
	released atomic.Bool
}

// Key returns the key of the pinned chunk.
func (h *Handle) Key() chunk.Key { return h.key }

// Samples returns the pinned samples.
func (h *Handle) Samples() *chunk.Samples { return h.samples }

// Release unpins the chunk. It is safe to call more than once.
func (h *Handle) Release() {
	if h.released.CompareAndSwap(false, true) {
		h.c.Unpin(h.key)
	}
}

// Acquire is GetBlocking followed by a pin taken atomically with the read.
func (c *Cache) Acquire(ctx context.Context, key chunk.Key) (*Handle, error) {
	s, err := c.get(ctx, key, true)
	if err != nil {
		return nil, err
	}
	return &Handle{c: c, key: key, samples: s}, nil
}

// minRecheck bounds how often a blocking caller polls a running load.
const minRecheck = time.Millisecond

func (c *Cache) get(ctx context.Context, key chunk.Key, pin bool) (*chunk.Samples, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}

	sh := c.shardFor(key)
	attempted := false
	counted := false

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		sh.mu.Lock()
		e := sh.lookupLocked(key)

		if e.state == StateReady {
			if pin {
				e.pins++
			}
			s := e.samples
			sh.mu.Unlock()
			c.touch(e)
			if !counted {
				c.hit(key.Level)
			}
			return s, nil
		}

		if e.state == StateFailed && (attempted || !chunk.Retryable(e.err)) {
			err := e.err
			sh.mu.Unlock()
			if !errors.Is(err, ErrClosed) {
				c.logger.Error("blocking load failed", "key", key.String(), "error", err)
			}
			return nil, err
		}

		if !counted {
			c.miss(key.Level)
			counted = true
		}

		attempted = true
		if e.state == StateLoading {
			c.raiseLocked(e, blockingPriority)
		} else if !c.startLocked(e, blockingPriority) {
			sh.mu.Unlock()
			return nil, ErrClosed
		}

		e.waiters++
		e.abandoned = time.Time{}
		done := e.done
		sh.mu.Unlock()

		if err := c.await(ctx, sh, e, done); err != nil {
			return nil, err
		}
	}
}

// await waits for the attempt of e to settle. Whenever the blocking wait
// elapses with the load queued, it is claimed and produced on the calling
// goroutine. A load requeued by a cancelled direct producer is therefore
// picked up again even when every worker is busy. The caller's waiter
// registration is consumed.
func (c *Cache) await(ctx context.Context, sh *shard, e *entry, done chan struct{}) error {
	wait := c.opts.blockingWait
	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		select {
		case <-done:
			c.dropWaiter(sh, e)
			return nil
		case <-ctx.Done():
			c.dropWaiter(sh, e)
			return ctx.Err()
		case <-timer.C:
		}

		sh.mu.Lock()
		if e.queued {
			e.queued = false
			c.queue.Remove(e.key)
			e.running = true
			e.waiters--
			sh.mu.Unlock()
			return c.produceDirect(ctx, e)
		}
		sh.mu.Unlock()

		timer.Reset(max(wait, minRecheck))
	}
}

func (c *Cache) dropWaiter(sh *shard, e *entry) {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e.waiters--
	c.abandonLocked(sh, e)
}

// produceDirect runs a claimed load on the calling goroutine.
func (c *Cache) produceDirect(ctx context.Context, e *entry) error {
	start := time.Now()
	s, err := c.producer.Produce(ctx, e.key)
	if err != nil && ctx.Err() != nil &&
		(errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		c.revert(e)
		return ctx.Err()
	}
	c.finish(e, s, err, start)
	return nil
}
