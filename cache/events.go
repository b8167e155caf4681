package cache

import (
	"sync"
	"sync/atomic"

	"github.com/hupe1980/volcache/chunk"
)

// Event reports a state change of a key: StateReady or StateFailed when an
// attempt settles, StateEmpty when a resident chunk is evicted.
type Event struct {
	Key   chunk.Key
	State State
	Err   error
}

type subscriber struct {
	ch      chan Event
	dropped atomic.Int64
}

// Subscribe returns a channel of events and a function that ends the
// subscription. Events are sent without blocking; a full channel drops the
// event and counts it in Stats.DroppedEvents. The channel is closed by the
// returned function or by Close.
func (c *Cache) Subscribe() (<-chan Event, func()) {
	s := &subscriber{ch: make(chan Event, c.opts.eventBuffer)}

	c.subMu.Lock()
	if c.closed.Load() {
		c.subMu.Unlock()
		close(s.ch)
		return s.ch, func() {}
	}
	c.subs[s] = struct{}{}
	c.subMu.Unlock()

	var once sync.Once
	return s.ch, func() {
		once.Do(func() {
			c.subMu.Lock()
			defer c.subMu.Unlock()
			if _, ok := c.subs[s]; ok {
				delete(c.subs, s)
				close(s.ch)
			}
		})
	}
}

func (c *Cache) emit(ev Event) {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	for s := range c.subs {
		select {
		case s.ch <- ev:
		default:
			c.stats.droppedEvents.Add(1)
			if s.dropped.Add(1) == 1 {
				c.logger.Warn("subscriber too slow, dropping cache events", "key", ev.Key.String())
			}
		}
	}
}
