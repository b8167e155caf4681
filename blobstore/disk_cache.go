package blobstore

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// DefaultDiskCacheWrites bounds concurrent background writes when
// DiskCacheConfig.MaxConcurrentWrites is 0.
const DefaultDiskCacheWrites = 16

const diskTempPrefix = ".tmp-"

// DiskCacheConfig holds configuration for a DiskCachingStore.
type DiskCacheConfig struct {
	// RootDir is the directory where cached objects are stored.
	RootDir string
	// MaxSizeBytes is the maximum size of the cache in bytes.
	MaxSizeBytes int64
	// MaxConcurrentWrites limits background disk writes.
	// Defaults to DefaultDiskCacheWrites if <= 0.
	MaxConcurrentWrites int64
}

// DiskCacheStats are cumulative DiskCachingStore counters.
type DiskCacheStats struct {
	Hits    int64
	Misses  int64
	Bytes   int64
	Objects int
}

// DiskCachingStore keeps objects fetched from a slower Store on the local
// file system, evicting the least recently used ones beyond MaxSizeBytes.
//
// Objects are stored under RootDir by key, so a warm cache directory is
// itself readable with a LocalStore. Existing files are indexed on open.
// Misses are written in the background; writes that find no free slot are
// skipped.
type DiskCachingStore struct {
	inner Store

	mu      sync.Mutex
	root    string
	maxSize int64
	size    int64

	writeSem *semaphore.Weighted
	wg       sync.WaitGroup

	items map[string]*diskEntry
	head  *diskEntry
	tail  *diskEntry

	hits   atomic.Int64
	misses atomic.Int64
}

type diskEntry struct {
	key        string
	path       string
	size       int64
	next, prev *diskEntry
}

// NewDiskCachingStore creates the cache directory if needed and indexes the
// objects already in it.
func NewDiskCachingStore(inner Store, cfg DiskCacheConfig) (*DiskCachingStore, error) {
	if err := os.MkdirAll(cfg.RootDir, 0o755); err != nil {
		return nil, err
	}
	writes := cfg.MaxConcurrentWrites
	if writes <= 0 {
		writes = DefaultDiskCacheWrites
	}

	s := &DiskCachingStore{
		inner:    inner,
		root:     cfg.RootDir,
		maxSize:  cfg.MaxSizeBytes,
		writeSem: semaphore.NewWeighted(writes),
		items:    make(map[string]*diskEntry),
	}
	s.scan()
	return s, nil
}

func (s *DiskCachingStore) scan() {
	_ = filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil //nolint:nilerr // unreadable entries are not cached
		}
		if strings.HasPrefix(d.Name(), diskTempPrefix) {
			_ = os.Remove(path)
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return nil //nolint:nilerr
		}
		info, err := d.Info()
		if err != nil {
			return nil //nolint:nilerr
		}
		s.pushFront(filepath.ToSlash(rel), path, info.Size())
		return nil
	})

	s.mu.Lock()
	s.evictFor(0)
	s.mu.Unlock()
}

func (s *DiskCachingStore) path(key string) (string, error) {
	p := filepath.FromSlash(key)
	if !filepath.IsLocal(p) || strings.HasPrefix(filepath.Base(p), diskTempPrefix) {
		return "", fmt.Errorf("blobstore: invalid key %q", key)
	}
	return filepath.Join(s.root, p), nil
}

// Get returns the cached object or fetches it from the wrapped store.
func (s *DiskCachingStore) Get(ctx context.Context, key string) ([]byte, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	ent, ok := s.items[key]
	if ok {
		s.moveToFront(ent)
	}
	s.mu.Unlock()

	if ok {
		data, err := os.ReadFile(ent.path)
		if err == nil {
			s.hits.Add(1)
			return data, nil
		}
		s.mu.Lock()
		if s.items[key] == ent {
			s.remove(ent)
		}
		s.mu.Unlock()
	}

	s.misses.Add(1)
	data, err := s.inner.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	s.set(key, path, data)
	return data, nil
}

func (s *DiskCachingStore) set(key, path string, data []byte) {
	size := int64(len(data))
	if size > s.maxSize {
		return
	}
	if !s.writeSem.TryAcquire(1) {
		return
	}

	// The caller owns data once Get returns.
	buf := append([]byte(nil), data...)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.writeSem.Release(1)

		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return
		}
		f, err := os.CreateTemp(dir, diskTempPrefix+"*")
		if err != nil {
			return
		}
		tmp := f.Name()
		defer func() { _ = os.Remove(tmp) }()

		if _, err := f.Write(buf); err != nil {
			_ = f.Close()
			return
		}
		if err := f.Close(); err != nil {
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.items[key]; ok {
			return
		}
		if err := os.Rename(tmp, path); err != nil {
			return
		}
		s.evictFor(size)
		s.pushFront(key, path, size)
	}()
}

// Wait blocks until background writes have finished.
func (s *DiskCachingStore) Wait() {
	s.wg.Wait()
}

// Close waits for background writes. The store stays readable.
func (s *DiskCachingStore) Close() error {
	s.Wait()
	return nil
}

// Stats returns cache counters.
func (s *DiskCachingStore) Stats() DiskCacheStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return DiskCacheStats{
		Hits:    s.hits.Load(),
		Misses:  s.misses.Load(),
		Bytes:   s.size,
		Objects: len(s.items),
	}
}

// LRU helpers; callers hold mu.

func (s *DiskCachingStore) evictFor(incoming int64) {
	for s.size+incoming > s.maxSize && s.tail != nil {
		victim := s.tail
		_ = os.Remove(victim.path)
		s.remove(victim)
	}
}

func (s *DiskCachingStore) pushFront(key, path string, size int64) {
	ent := &diskEntry{key: key, path: path, size: size}
	s.items[key] = ent
	s.size += size

	if s.head == nil {
		s.head = ent
		s.tail = ent
		return
	}
	ent.next = s.head
	s.head.prev = ent
	s.head = ent
}

func (s *DiskCachingStore) moveToFront(ent *diskEntry) {
	if s.head == ent {
		return
	}
	if ent.prev != nil {
		ent.prev.next = ent.next
	}
	if ent.next != nil {
		ent.next.prev = ent.prev
	}
	if s.tail == ent {
		s.tail = ent.prev
	}

	ent.next = s.head
	ent.prev = nil
	if s.head != nil {
		s.head.prev = ent
	}
	s.head = ent
	if s.tail == nil {
		s.tail = ent
	}
}

func (s *DiskCachingStore) remove(ent *diskEntry) {
	if ent.prev != nil {
		ent.prev.next = ent.next
	} else {
		s.head = ent.next
	}
	if ent.next != nil {
		ent.next.prev = ent.prev
	} else {
		s.tail = ent.prev
	}
	ent.next, ent.prev = nil, nil
	delete(s.items, ent.key)
	s.size -= ent.size
}
