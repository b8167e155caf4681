package cache

import "github.com/hupe1980/volcache/chunk"

// touch marks e as most recently used.
func (c *Cache) touch(e *entry) {
	c.lruMu.Lock()
	if e.elem != nil {
		c.lru.MoveToFront(e.elem)
	}
	c.lruMu.Unlock()
}

func (c *Cache) overBudgetLocked() bool {
	n := c.residentChunks.Load()
	if n == 0 {
		return false
	}
	if c.opts.maxChunks > 0 && n > int64(c.opts.maxChunks) {
		return true
	}
	if c.opts.maxBytes > 0 && c.residentBytes.Load() > c.opts.maxBytes {
		return true
	}
	return c.opts.rc.OverLimit()
}

// evictLocked evicts least recently used entries until the cache is within
// budget. spare is never evicted. Requires lruMu.
func (c *Cache) evictLocked(spare *entry) []chunk.Key {
	var evicted []chunk.Key
	for c.overBudgetLocked() {
		victim := c.victimLocked(spare)
		if victim == nil {
			c.stats.budgetOverruns.Add(1)
			c.logger.Warn("resident budget exceeded and nothing is evictable",
				"resident_chunks", c.residentChunks.Load(),
				"resident_bytes", c.residentBytes.Load())
			break
		}
		evicted = append(evicted, victim.key)
	}
	return evicted
}

// victimLocked removes and returns the least recently used unpinned entry.
func (c *Cache) victimLocked(spare *entry) *entry {
	for el := c.lru.Back(); el != nil; el = el.Prev() {
		e := el.Value.(*entry)
		if e == spare {
			continue
		}
		sh := c.shardFor(e.key)
		sh.mu.Lock()
		if e.pins > 0 {
			sh.mu.Unlock()
			continue
		}
		if sh.entries[e.key] == e {
			delete(sh.entries, e.key)
		}
		e.state = StateEmpty
		e.samples = nil
		sh.mu.Unlock()

		c.unlinkLocked(e)
		c.stats.evictions.Add(1)
		return e
	}
	return nil
}

func (c *Cache) unlinkLocked(e *entry) {
	c.lru.Remove(e.elem)
	e.elem = nil
	c.residentChunks.Add(-1)
	c.residentBytes.Add(-e.size)
	c.opts.rc.ReleaseMemory(e.size)
}

func (c *Cache) notifyEvicted(keys []chunk.Key) {
	if len(keys) == 0 {
		return
	}
	c.opts.metrics.OnEviction(len(keys))
	for _, k := range keys {
		c.logger.Debug("chunk evicted", "key", k.String())
		c.emit(Event{Key: k, State: StateEmpty})
	}
}

// Pin keeps a Ready key resident until a matching Unpin. It reports
// whether the key was resident.
func (c *Cache) Pin(key chunk.Key) bool {
	sh := c.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e := sh.entries[key]
	if e == nil || e.state != StateReady {
		return false
	}
	e.pins++
	return true
}

// Unpin releases one pin of key. It reports whether key was pinned.
// Releasing the last pin lets a cache over budget evict again.
func (c *Cache) Unpin(key chunk.Key) bool {
	sh := c.shardFor(key)
	sh.mu.Lock()
	e := sh.entries[key]
	if e == nil || e.pins == 0 {
		sh.mu.Unlock()
		return false
	}
	e.pins--
	last := e.pins == 0
	sh.mu.Unlock()

	if last {
		c.lruMu.Lock()
		evicted := c.evictLocked(nil)
		c.lruMu.Unlock()
		c.notifyEvicted(evicted)
	}
	return true
}

// Pins returns the pin count of key.
func (c *Cache) Pins(key chunk.Key) int {
	sh := c.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if e := sh.entries[key]; e != nil {
		return e.pins
	}
	return 0
}

// Evict drops an unpinned Ready or Failed key. It reports whether the key
// was dropped.
func (c *Cache) Evict(key chunk.Key) bool {
	sh := c.shardFor(key)

	c.lruMu.Lock()
	sh.mu.Lock()
	e := sh.entries[key]
	if e == nil || e.pins > 0 || (e.state != StateReady && e.state != StateFailed) {
		sh.mu.Unlock()
		c.lruMu.Unlock()
		return false
	}
	delete(sh.entries, key)
	wasReady := e.state == StateReady
	e.state = StateEmpty
	e.samples = nil
	sh.mu.Unlock()

	if wasReady && e.elem != nil {
		c.unlinkLocked(e)
		c.stats.evictions.Add(1)
	}
	c.lruMu.Unlock()

	if wasReady {
		c.notifyEvicted([]chunk.Key{key})
	}
	return true
}
