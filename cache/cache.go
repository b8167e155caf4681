package cache

import (
	"container/list"
	"context"
	"errors"
	"hash/maphash"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/volcache/chunk"
	"github.com/hupe1980/volcache/internal/queue"
)

// blockingPriority orders blocking requests ahead of every budgeted one.
const blockingPriority = math.MinInt32

// Stats is a snapshot of cache counters.
type Stats struct {
	Hits           int64
	Misses         int64
	Loads          int64
	Failures       int64
	Evictions      int64
	Cancellations  int64
	BudgetOverruns int64
	DroppedEvents  int64
	ResidentChunks int64
	ResidentBytes  int64
	Pending        int
}

type counters struct {
	hits           atomic.Int64
	misses         atomic.Int64
	loads          atomic.Int64
	failures       atomic.Int64
	evictions      atomic.Int64
	cancellations  atomic.Int64
	budgetOverruns atomic.Int64
	droppedEvents  atomic.Int64
}

// Cache is a bounded, concurrent chunk cache in front of a chunk.Producer.
type Cache struct {
	producer chunk.Producer
	opts     options
	logger   *slog.Logger

	seed   maphash.Seed
	shards [numShards]shard

	lruMu          sync.Mutex
	lru            *list.List
	residentChunks atomic.Int64
	residentBytes  atomic.Int64

	queue *queue.Queue[chunk.Key]

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed atomic.Bool

	subMu sync.RWMutex
	subs  map[*subscriber]struct{}

	stats counters
}

// New creates a cache in front of producer and starts its workers.
func New(producer chunk.Producer, optFns ...Option) (*Cache, error) {
	if producer == nil {
		return nil, errors.New("cache: nil producer")
	}
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	logger := opts.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Cache{
		producer: producer,
		opts:     opts,
		logger:   logger,
		seed:     maphash.MakeSeed(),
		lru:      list.New(),
		queue:    queue.New[chunk.Key](),
		ctx:      ctx,
		cancel:   cancel,
		subs:     make(map[*subscriber]struct{}),
	}
	for i := range c.shards {
		c.shards[i].entries = make(map[chunk.Key]*entry)
	}

	c.wg.Add(opts.workers)
	for range opts.workers {
		go c.worker()
	}

	logger.Debug("cache started",
		"workers", opts.workers,
		"max_resident_chunks", opts.maxChunks,
		"max_resident_bytes", opts.maxBytes)

	return c, nil
}

func (c *Cache) shardFor(key chunk.Key) *shard {
	return &c.shards[maphash.Comparable(c.seed, key)%numShards]
}

// lookupLocked returns the entry of key, creating an Empty one if needed.
func (sh *shard) lookupLocked(key chunk.Key) *entry {
	e := sh.entries[key]
	if e == nil {
		e = &entry{key: key}
		sh.entries[key] = e
	}
	return e
}

// startLocked moves e to Loading and queues it. It reports false, leaving e
// Failed with ErrClosed, once the cache is closed.
//
// The queue may still hold a stale item for a load claimed earlier; Push
// then refreshes that item instead of adding one.
func (c *Cache) startLocked(e *entry, priority int) bool {
	e.samples = nil
	e.done = make(chan struct{})
	e.priority = priority
	if !c.queue.Push(e.key, priority) && c.closed.Load() {
		e.state = StateFailed
		e.err = ErrClosed
		close(e.done)
		return false
	}
	e.state = StateLoading
	e.err = nil
	e.queued = true
	e.abandoned = time.Time{}
	c.opts.metrics.OnQueueDepth(c.queue.Len())
	return true
}

// raiseLocked lowers the queued priority of e and refreshes its recency.
func (c *Cache) raiseLocked(e *entry, priority int) {
	if !e.queued {
		return
	}
	e.priority = min(e.priority, priority)
	c.queue.Push(e.key, priority)
}

// abandonLocked handles a queued load that lost its last requester. Without
// a grace period it is cancelled at once; otherwise it is marked and left
// for run to drop.
func (c *Cache) abandonLocked(sh *shard, e *entry) {
	if !e.queued || e.interest > 0 || e.waiters > 0 {
		return
	}
	if c.opts.cancelGrace <= 0 {
		c.cancelLocked(sh, e)
		return
	}
	e.abandoned = time.Now()
}

// expiredLocked reports whether e was abandoned longer than the grace
// period ago and nobody asked for it since.
func (c *Cache) expiredLocked(e *entry) bool {
	return e.interest == 0 && e.waiters == 0 &&
		!e.abandoned.IsZero() && time.Since(e.abandoned) >= c.opts.cancelGrace
}

// cancelLocked drops a queued load nobody is interested in any more.
func (c *Cache) cancelLocked(sh *shard, e *entry) {
	if !e.queued || e.interest > 0 || e.waiters > 0 {
		return
	}
	e.queued = false
	c.queue.Remove(e.key)
	if sh.entries[e.key] == e {
		delete(sh.entries, e.key)
	}
	e.state = StateEmpty
	close(e.done)
	c.stats.cancellations.Add(1)
	c.logger.Debug("load cancelled", "key", e.key.String())
}

func (c *Cache) worker() {
	defer c.wg.Done()
	for {
		key, err := c.queue.Pop(c.ctx)
		if err != nil {
			return
		}
		c.opts.metrics.OnQueueDepth(c.queue.Len())
		c.run(key)
	}
}

// run claims and produces a key popped from the queue.
func (c *Cache) run(key chunk.Key) {
	sh := c.shardFor(key)
	sh.mu.Lock()
	e := sh.entries[key]
	if e == nil || !e.queued {
		sh.mu.Unlock()
		return
	}
	if c.expiredLocked(e) {
		c.cancelLocked(sh, e)
		sh.mu.Unlock()
		return
	}
	e.queued = false
	e.running = true
	sh.mu.Unlock()

	start := time.Now()
	s, err := c.producer.Produce(c.ctx, key)
	if err != nil && c.ctx.Err() != nil && errors.Is(err, context.Canceled) {
		err = ErrClosed
	}
	c.finish(e, s, err, start)
}

// finish records the outcome of a production attempt and publishes it.
func (c *Cache) finish(e *entry, s *chunk.Samples, err error, start time.Time) {
	d := time.Since(start)
	c.opts.metrics.OnLoad(e.key.Level, d, err)
	c.stats.loads.Add(1)
	if err != nil {
		c.stats.failures.Add(1)
		c.logger.Debug("load failed", "key", e.key.String(), "duration", d, "error", err)
	} else {
		c.logger.Debug("load completed", "key", e.key.String(), "duration", d)
	}
	c.settle(e, s, err)
}

// settle publishes the result of the running attempt of e. Waiters observe
// the new state after done is closed.
func (c *Cache) settle(e *entry, s *chunk.Samples, err error) {
	sh := c.shardFor(e.key)

	c.lruMu.Lock()
	sh.mu.Lock()
	e.running = false
	if err != nil {
		e.state = StateFailed
		e.err = err
	} else {
		e.state = StateReady
		e.samples = s
	}
	close(e.done)
	sh.mu.Unlock()

	var evicted []chunk.Key
	if err == nil && !c.closed.Load() {
		e.size = s.SizeBytes()
		e.elem = c.lru.PushFront(e)
		c.residentChunks.Add(1)
		c.residentBytes.Add(e.size)
		c.opts.rc.ForceAcquireMemory(e.size)
		evicted = c.evictLocked(e)
	}
	c.lruMu.Unlock()

	if err != nil {
		c.emit(Event{Key: e.key, State: StateFailed, Err: err})
	} else {
		c.emit(Event{Key: e.key, State: StateReady})
	}
	c.notifyEvicted(evicted)
}

// revert undoes a claim abandoned by a cancelled caller. The load is
// requeued if someone else still wants it.
func (c *Cache) revert(e *entry) {
	sh := c.shardFor(e.key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	e.running = false
	if e.waiters > 0 || e.interest > 0 {
		c.queue.Push(e.key, e.priority)
		if !c.closed.Load() {
			e.queued = true
			return
		}
	}
	if sh.entries[e.key] == e {
		delete(sh.entries, e.key)
	}
	e.state = StateEmpty
	close(e.done)
}

// State returns the load state of key.
func (c *Cache) State(key chunk.Key) State {
	sh := c.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if e := sh.entries[key]; e != nil {
		return e.state
	}
	return StateEmpty
}

// Err returns the error of a Failed key, or nil.
func (c *Cache) Err(key chunk.Key) error {
	sh := c.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if e := sh.entries[key]; e != nil && e.state == StateFailed {
		return e.err
	}
	return nil
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:           c.stats.hits.Load(),
		Misses:         c.stats.misses.Load(),
		Loads:          c.stats.loads.Load(),
		Failures:       c.stats.failures.Load(),
		Evictions:      c.stats.evictions.Load(),
		Cancellations:  c.stats.cancellations.Load(),
		BudgetOverruns: c.stats.budgetOverruns.Load(),
		DroppedEvents:  c.stats.droppedEvents.Load(),
		ResidentChunks: c.residentChunks.Load(),
		ResidentBytes:  c.residentBytes.Load(),
		Pending:        c.queue.Len(),
	}
}

func (c *Cache) hit(level int) {
	c.stats.hits.Add(1)
	c.opts.metrics.OnHit(level)
}

func (c *Cache) miss(level int) {
	c.stats.misses.Add(1)
	c.opts.metrics.OnMiss(level)
}

// Close stops the workers. Queued loads fail with ErrClosed, resident chunks
// are dropped and subscriptions are closed. Later calls return ErrClosed.
func (c *Cache) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	c.cancel()

	for _, key := range c.queue.Close() {
		sh := c.shardFor(key)
		sh.mu.Lock()
		if e := sh.entries[key]; e != nil && e.queued {
			e.queued = false
			e.state = StateFailed
			e.err = ErrClosed
			close(e.done)
		}
		sh.mu.Unlock()
	}
	c.wg.Wait()

	c.lruMu.Lock()
	for el := c.lru.Front(); el != nil; el = el.Next() {
		e := el.Value.(*entry)
		c.opts.rc.ReleaseMemory(e.size)
		e.elem = nil
	}
	c.lru.Init()
	c.residentChunks.Store(0)
	c.residentBytes.Store(0)
	for i := range c.shards {
		sh := &c.shards[i]
		sh.mu.Lock()
		for key, e := range sh.entries {
			if e.state == StateReady {
				e.state = StateEmpty
				e.samples = nil
				delete(sh.entries, key)
			}
		}
		sh.mu.Unlock()
	}
	c.lruMu.Unlock()

	c.subMu.Lock()
	for s := range c.subs {
		close(s.ch)
	}
	clear(c.subs)
	c.subMu.Unlock()

	c.logger.Debug("cache closed")
	return nil
}
