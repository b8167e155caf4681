// Package cache implements the chunk cache engine.
//
// A Cache holds a bounded set of resident chunks keyed by chunk.Key and
// serves them under two loading strategies:
//
//   - GetBlocking returns the chunk or the error of its production. It waits
//     for an attempt already in flight, submits to the worker pool at top
//     priority and, if no worker picks the request up within the blocking
//     wait, produces on the calling goroutine.
//   - GetBudgeted never blocks. It returns the chunk if resident, otherwise
//     enqueues a load at the given priority and returns a pending View.
//
// Every key moves through Empty -> Loading -> Ready | Failed. At most one
// production attempt per key is in flight; concurrent requesters share it.
// Ready and Failed entries return to Empty only through eviction.
//
// Resident chunks are evicted least recently used first when the chunk or
// byte budget is exceeded. Pinned entries are never evicted.
//
// # Locking
//
// Entries live in a sharded map. A separate mutex guards the global LRU
// list of Ready entries. Locks are always taken in the order
// lru -> shard -> queue.
package cache
