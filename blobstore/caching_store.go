package blobstore

import (
	"context"
	"slices"
	"time"

	"github.com/hupe1980/volcache/internal/blockcache"
	"github.com/hupe1980/volcache/resource"
	"golang.org/x/sync/singleflight"
)

// CacheStats are cumulative CachingStore counters.
type CacheStats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Bytes     int64
	Objects   int
}

// DefaultFetchTimeout bounds a shared fetch of the CachingStore.
const DefaultFetchTimeout = time.Minute

// CachingOption configures a CachingStore.
type CachingOption func(*CachingStore)

// WithFetchTimeout bounds each fetch from the wrapped store. The fetch is
// shared by every caller waiting for the key, so it does not end when one
// of them gives up.
func WithFetchTimeout(d time.Duration) CachingOption {
	return func(s *CachingStore) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// CachingStore wraps a Store with an in-memory LRU of whole objects.
//
// Concurrent misses for the same key share a single fetch. Cached bytes are
// accounted in the resource controller, if any; objects the controller
// refuses are served but not cached.
type CachingStore struct {
	inner   Store
	cache   *blockcache.ShardedLRU
	group   singleflight.Group
	timeout time.Duration
}

// NewCachingStore creates a new CachingStore holding up to capacity bytes.
func NewCachingStore(inner Store, capacity int64, rc *resource.Controller, opts ...CachingOption) *CachingStore {
	s := &CachingStore{
		inner:   inner,
		cache:   blockcache.NewShardedLRU(capacity, rc),
		timeout: DefaultFetchTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the cached object or fetches it from the wrapped store.
func (s *CachingStore) Get(ctx context.Context, key string) ([]byte, error) {
	if data, ok := s.cache.Get(key); ok {
		return slices.Clone(data), nil
	}

	ch := s.group.DoChan(key, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		data, err := s.inner.Get(fctx, key)
		if err != nil {
			return nil, err
		}
		s.cache.Set(key, data)
		return data, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return slices.Clone(res.Val.([]byte)), nil
	}
}

// Put writes through to the wrapped store and drops the cached copy. It fails
// with ErrNotWritable if the wrapped store is read-only.
func (s *CachingStore) Put(ctx context.Context, key string, data []byte) error {
	w, ok := s.inner.(WritableStore)
	if !ok {
		return ErrNotWritable
	}
	s.cache.Delete(key)
	return w.Put(ctx, key, data)
}

// Purge drops every cached object.
func (s *CachingStore) Purge() {
	s.cache.Purge()
}

// Stats returns cache statistics.
func (s *CachingStore) Stats() CacheStats {
	st := s.cache.Stats()
	return CacheStats{
		Hits:      st.Hits,
		Misses:    st.Misses,
		Evictions: st.Evictions,
		Bytes:     s.cache.Size(),
		Objects:   s.cache.Len(),
	}
}
