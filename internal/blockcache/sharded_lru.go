package blockcache

import (
	"hash/maphash"

	"github.com/hupe1980/volcache/resource"
)

const numShards = 64

// ShardedLRU is a sharded LRU cache for high-concurrency workloads.
// The capacity is divided evenly across all shards.
type ShardedLRU struct {
	shards [numShards]*LRU
	seed   maphash.Seed
}

// NewShardedLRU creates a new sharded LRU cache.
func NewShardedLRU(capacity int64, rc *resource.Controller) *ShardedLRU {
	shardCapacity := max(capacity/numShards, 1)

	s := &ShardedLRU{
		seed: maphash.MakeSeed(),
	}
	for i := range numShards {
		s.shards[i] = NewLRU(shardCapacity, rc)
	}
	return s
}

func (s *ShardedLRU) shard(key string) *LRU {
	return s.shards[maphash.String(s.seed, key)%numShards]
}

// Get returns a cached value.
func (s *ShardedLRU) Get(key string) ([]byte, bool) {
	return s.shard(key).Get(key)
}

// Set caches a value. It reports whether the value was admitted.
func (s *ShardedLRU) Set(key string, b []byte) bool {
	return s.shard(key).Set(key, b)
}

// Delete removes key.
func (s *ShardedLRU) Delete(key string) bool {
	return s.shard(key).Delete(key)
}

// Purge empties every shard.
func (s *ShardedLRU) Purge() {
	for _, sh := range s.shards {
		sh.Purge()
	}
}

// Len returns the number of cached values across all shards.
func (s *ShardedLRU) Len() int {
	var n int
	for _, sh := range s.shards {
		n += sh.Len()
	}
	return n
}

// Size returns the total size across all shards.
func (s *ShardedLRU) Size() int64 {
	var total int64
	for _, sh := range s.shards {
		total += sh.Size()
	}
	return total
}

// Stats returns aggregated statistics.
func (s *ShardedLRU) Stats() Stats {
	var st Stats
	for _, sh := range s.shards {
		st.add(sh.Stats())
	}
	return st
}
