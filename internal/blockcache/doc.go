// Package blockcache provides byte-budgeted LRU caches for immutable blobs,
// keyed by object key.
//
// ShardedLRU spreads keys over 64 shards to reduce lock contention. Memory is
// optionally accounted in a resource.Controller; a refused reservation means
// the value is simply not cached.
package blockcache
