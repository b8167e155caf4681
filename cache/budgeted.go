package cache

import (
	"sync/atomic"
	"time"

	"github.com/hupe1980/volcache/chunk"
)

// View is the result of GetBudgeted.
//
// A Loading view holds interest in the pending load. Release drops it; a
// load still queued when its last interest is released is cancelled once
// the cancel grace period has passed without a new request.
type View struct {
	Samples *chunk.Samples
	State   State
	Err     error

	token *interest
}

// Ready reports whether Samples is available.
func (v View) Ready() bool {
	return v.State == StateReady
}

// Release drops the view's interest in a pending load. It is safe to call
// more than once and on views that hold no interest.
func (v View) Release() {
	if v.token != nil {
		v.token.release()
	}
}

type interest struct {
	c        *Cache
	e        *entry
	released atomic.Bool
}

func (i *interest) release() {
	if !i.released.CompareAndSwap(false, true) {
		return
	}
	sh := i.c.shardFor(i.e.key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if i.e.interest > 0 {
		i.e.interest--
	}
	i.c.abandonLocked(sh, i.e)
}

// GetBudgeted returns the samples of key if resident. Otherwise it queues
// a load at priority and returns a Loading view immediately. Lower
// priorities load first; among equal priorities the most recent request
// wins. A repeated request keeps the lower of both priorities.
//
// Failed keys are not retried; the view carries the recorded error.
// GetBudgeted never blocks on production.
func (c *Cache) GetBudgeted(key chunk.Key, priority int) View {
	if c.closed.Load() {
		return View{State: StateFailed, Err: ErrClosed}
	}

	sh := c.shardFor(key)
	sh.mu.Lock()
	e := sh.lookupLocked(key)

	switch e.state {
	case StateReady:
		s := e.samples
		sh.mu.Unlock()
		c.touch(e)
		c.hit(key.Level)
		return View{Samples: s, State: StateReady}
	case StateFailed:
		err := e.err
		sh.mu.Unlock()
		c.miss(key.Level)
		return View{State: StateFailed, Err: err}
	case StateLoading:
		c.raiseLocked(e, priority)
	default:
		if !c.startLocked(e, priority) {
			sh.mu.Unlock()
			return View{State: StateFailed, Err: ErrClosed}
		}
	}

	e.interest++
	e.abandoned = time.Time{}
	sh.mu.Unlock()
	c.miss(key.Level)
	return View{State: StateLoading, token: &interest{c: c, e: e}}
}
