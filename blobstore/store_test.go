package blobstore

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hupe1980/volcache/internal/mmap"
	"github.com/hupe1980/volcache/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := t.Context()
	s := NewMemoryStore()

	data := []byte("chunk")
	require.NoError(t, s.Put(ctx, "0/0.0.0", data))
	data[0] = 'X' // Put copies

	got, err := s.Get(ctx, "0/0.0.0")
	require.NoError(t, err)
	assert.Equal(t, "chunk", string(got))

	got[0] = 'Y' // Get copies
	again, _ := s.Get(ctx, "0/0.0.0")
	assert.Equal(t, "chunk", string(again))

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Put(ctx, "1/.zarray", nil))
	assert.Equal(t, []string{"0/0.0.0", "1/.zarray"}, s.List(""))
	assert.Equal(t, []string{"1/.zarray"}, s.List("1/"))

	s.Delete("1/.zarray")
	assert.Equal(t, []string{"0/0.0.0"}, s.List(""))
}

func TestLocalStore(t *testing.T) {
	ctx := t.Context()
	root := t.TempDir()
	s := NewLocalStore(root)
	assert.Equal(t, root, s.Root())

	require.NoError(t, s.Put(ctx, "2/0/0/1/3/7", []byte("payload")))
	_, err := os.Stat(filepath.Join(root, "2", "0", "0", "1", "3", "7"))
	require.NoError(t, err)

	got, err := s.Get(ctx, "2/0/0/1/3/7")
	require.NoError(t, err)
	assert.Equal(t, "payload", string(got))

	// Overwrite is atomic and leaves no temp files behind.
	require.NoError(t, s.Put(ctx, "2/0/0/1/3/7", []byte("v2")))
	got, err = s.Get(ctx, "2/0/0/1/3/7")
	require.NoError(t, err)
	assert.Equal(t, "v2", string(got))
	entries, err := os.ReadDir(filepath.Join(root, "2", "0", "0", "1", "3"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	_, err = s.Get(ctx, "0/.zarray")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Get(ctx, "../escape")
	assert.Error(t, err)
	assert.Error(t, s.Put(ctx, "../escape", nil))
}

func TestLocalStore_View(t *testing.T) {
	ctx := t.Context()
	s := NewLocalStore(t.TempDir())
	var _ Viewer = s

	big := bytes.Repeat([]byte{7, 9}, mmap.MinMapSize)
	require.NoError(t, s.Put(ctx, "0/0/0/0/0", big))
	require.NoError(t, s.Put(ctx, "0/.zarray", []byte("{}")))

	for key, want := range map[string][]byte{"0/0/0/0/0": big, "0/.zarray": []byte("{}")} {
		var n int
		err := s.View(ctx, key, func(b []byte) error {
			assert.Equal(t, want, b)
			n = len(b)
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, len(want), n)
	}

	err := s.View(ctx, "1/.zarray", func([]byte) error { return nil })
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Error(t, s.View(ctx, "../escape", func([]byte) error { return nil }))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, s.View(cancelled, "0/.zarray", func([]byte) error { return nil }), context.Canceled)
}

func TestHTTPStore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/data/0/.zarray":
			assert.Equal(t, "secret", r.Header.Get("X-Token"))
			_, _ = w.Write([]byte(`{"zarr_format":2}`))
		case "/data/boom":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	rc := resource.NewController(resource.Config{IOLimitBytesPerSec: 1 << 20})
	s, err := NewHTTPStore(srv.URL+"/data/", WithHeader("X-Token", "secret"), WithReadLimit(rc), WithTimeout(time.Second))
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/data/0/.zarray", s.URL("0/.zarray"))

	got, err := s.Get(t.Context(), "0/.zarray")
	require.NoError(t, err)
	assert.JSONEq(t, `{"zarr_format":2}`, string(got))

	_, err = s.Get(t.Context(), "0/1.2.3")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Get(t.Context(), "boom")
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.Code)
}

func TestHTTPStore_InvalidURL(t *testing.T) {
	_, err := NewHTTPStore("ftp://example.com")
	assert.Error(t, err)
	_, err = NewHTTPStore("://")
	assert.Error(t, err)
}

func TestHTTPStore_ContextTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	s, err := NewHTTPStore(srv.URL)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	_, err = s.Get(ctx, "slow")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type countingStore struct {
	*MemoryStore
	gets  atomic.Int64
	delay time.Duration
}

func (c *countingStore) Get(ctx context.Context, key string) ([]byte, error) {
	c.gets.Add(1)
	time.Sleep(c.delay)
	return c.MemoryStore.Get(ctx, key)
}

func TestCachingStore(t *testing.T) {
	ctx := t.Context()
	mem := NewMemoryStore()
	require.NoError(t, mem.Put(ctx, "a", []byte("alpha")))
	inner := &countingStore{MemoryStore: mem}

	rc := resource.NewController(resource.Config{})
	s := NewCachingStore(inner, 1<<20, rc)

	for range 3 {
		got, err := s.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, "alpha", string(got))
	}
	assert.Equal(t, int64(1), inner.gets.Load())

	st := s.Stats()
	assert.Equal(t, int64(2), st.Hits)
	assert.Equal(t, 1, st.Objects)
	assert.Equal(t, int64(5), st.Bytes)
	assert.Equal(t, int64(5), rc.MemoryUsage())

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	// Writes invalidate.
	require.NoError(t, s.Put(ctx, "a", []byte("beta")))
	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "beta", string(got))

	s.Purge()
	assert.Equal(t, int64(0), rc.MemoryUsage())
}

func TestCachingStore_CoalescesMisses(t *testing.T) {
	ctx := t.Context()
	mem := NewMemoryStore()
	require.NoError(t, mem.Put(ctx, "k", []byte("v")))
	inner := &countingStore{MemoryStore: mem, delay: 50 * time.Millisecond}
	s := NewCachingStore(inner, 1<<20, nil)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := s.Get(ctx, "k")
			assert.NoError(t, err)
			assert.Equal(t, "v", string(got))
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), inner.gets.Load())
}

type readOnly struct{ Store }

func TestCachingStore_ReadOnly(t *testing.T) {
	s := NewCachingStore(readOnly{NewMemoryStore()}, 1024, nil)
	err := s.Put(t.Context(), "x", nil)
	assert.True(t, errors.Is(err, ErrNotWritable))
}

type blockingStore struct {
	*MemoryStore
	gets    atomic.Int64
	release chan struct{}
}

func (b *blockingStore) Get(ctx context.Context, key string) ([]byte, error) {
	b.gets.Add(1)
	select {
	case <-b.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return b.MemoryStore.Get(ctx, key)
}

func TestCachingStore_SharedFetchOutlivesCancelledCaller(t *testing.T) {
	mem := NewMemoryStore()
	require.NoError(t, mem.Put(t.Context(), "0/0/0/0/0/0", []byte("chunk")))
	inner := &blockingStore{MemoryStore: mem, release: make(chan struct{})}
	s := NewCachingStore(inner, 1<<20, nil)

	ctx, cancel := context.WithCancel(t.Context())
	first := make(chan error, 1)
	go func() {
		_, err := s.Get(ctx, "0/0/0/0/0/0")
		first <- err
	}()
	require.Eventually(t, func() bool { return inner.gets.Load() == 1 }, time.Second, time.Millisecond)

	second := make(chan error, 1)
	var got []byte
	go func() {
		data, err := s.Get(t.Context(), "0/0/0/0/0/0")
		got = data
		second <- err
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-first, context.Canceled)

	close(inner.release)
	require.NoError(t, <-second)
	assert.Equal(t, "chunk", string(got))
	assert.Equal(t, int64(1), inner.gets.Load())
}

func TestCachingStore_FetchTimeout(t *testing.T) {
	inner := &blockingStore{MemoryStore: NewMemoryStore(), release: make(chan struct{})}
	s := NewCachingStore(inner, 1<<20, nil, WithFetchTimeout(20*time.Millisecond))

	_, err := s.Get(t.Context(), "k")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
