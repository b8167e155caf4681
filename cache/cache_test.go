package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hupe1980/volcache/chunk"
	"github.com/hupe1980/volcache/pyramid"
	"github.com/hupe1980/volcache/resource"
	"github.com/hupe1980/volcache/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var chunkDims = pyramid.Cube(8)

func key(level int, x int64) chunk.Key {
	return chunk.NewKey(level, pyramid.ChunkCoord{X: x})
}

func newCache(t *testing.T, p chunk.Producer, opts ...Option) *Cache {
	t.Helper()
	c, err := New(p, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func waitEvent(t *testing.T, events <-chan Event, k chunk.Key, state State) Event {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Key == k && ev.State == state {
				return ev
			}
		case <-timeout:
			t.Fatalf("no %s event for %s", state, k)
		}
	}
}

func TestNew_NilProducer(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

func TestGetBlocking_ProducesAndHits(t *testing.T) {
	p := testutil.NewCounting(testutil.KeyValued(chunkDims))
	c := newCache(t, p)
	k := key(1, 3)

	s, err := c.GetBlocking(t.Context(), k)
	require.NoError(t, err)
	assert.Equal(t, uint16(1003), s.At(0, 0, 0))
	assert.Equal(t, StateReady, c.State(k))

	again, err := c.GetBlocking(t.Context(), k)
	require.NoError(t, err)
	assert.Same(t, s, again)
	assert.Equal(t, int64(1), p.Calls())

	st := c.Stats()
	assert.Equal(t, int64(1), st.Hits)
	assert.Equal(t, int64(1), st.Misses)
	assert.Equal(t, int64(1), st.Loads)
	assert.Equal(t, int64(1), st.ResidentChunks)
	assert.Equal(t, s.SizeBytes(), st.ResidentBytes)
}

func TestGetBlocking_Coalesces(t *testing.T) {
	gated := testutil.NewGated(testutil.KeyValued(chunkDims))
	p := testutil.NewCounting(gated)
	c := newCache(t, p, WithWorkers(4))
	k := key(0, 0)

	const n = 16
	var wg sync.WaitGroup
	results := make([]*chunk.Samples, n)
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = c.GetBlocking(context.Background(), k)
		}()
	}

	<-gated.Started()
	time.Sleep(20 * time.Millisecond)
	gated.Open()
	wg.Wait()

	for i := range n {
		require.NoError(t, errs[i])
		assert.Same(t, results[0], results[i])
	}
	assert.Equal(t, 1, p.CallsFor(k))
}

func TestGetBlocking_FallsBackWhenPoolSaturated(t *testing.T) {
	blocker := key(0, 0)
	gate := make(chan struct{})
	defer close(gate)

	base := testutil.KeyValued(chunkDims)
	p := testutil.FuncProducer(func(ctx context.Context, k chunk.Key) (*chunk.Samples, error) {
		if k == blocker {
			select {
			case <-gate:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		return base.Produce(ctx, k)
	})
	c := newCache(t, p, WithWorkers(1), WithBlockingWait(10*time.Millisecond))

	v := c.GetBudgeted(blocker, 0)
	defer v.Release()
	require.Eventually(t, func() bool { return c.Stats().Pending == 0 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(t.Context(), 2*time.Second)
	defer cancel()
	s, err := c.GetBlocking(ctx, key(0, 1))
	require.NoError(t, err)
	assert.Equal(t, uint16(1), s.At(0, 0, 0))
	assert.Equal(t, StateLoading, c.State(blocker))
}

func TestGetBlocking_RetriesFailedOnce(t *testing.T) {
	boom := chunk.ErrNetworkFailed
	counting := testutil.NewCounting(testutil.KeyValued(chunkDims))
	c := newCache(t, testutil.NewFailing(counting, boom, 1))
	events, unsubscribe := c.Subscribe()
	defer unsubscribe()
	k := key(2, 1)

	v := c.GetBudgeted(k, 0)
	assert.Equal(t, StateLoading, v.State)
	ev := waitEvent(t, events, k, StateFailed)
	assert.ErrorIs(t, ev.Err, boom)

	// Budgeted requests do not retry.
	v = c.GetBudgeted(k, 0)
	assert.Equal(t, StateFailed, v.State)
	assert.ErrorIs(t, v.Err, boom)
	assert.ErrorIs(t, c.Err(k), boom)

	s, err := c.GetBlocking(t.Context(), k)
	require.NoError(t, err)
	assert.Equal(t, uint16(2001), s.At(0, 0, 0))
	assert.Equal(t, 1, counting.CallsFor(k))
	assert.NoError(t, c.Err(k))
}

func TestGetBlocking_PropagatesAfterSingleRetry(t *testing.T) {
	boom := errors.New("corrupt")
	p := testutil.NewCounting(testutil.NewFailing(testutil.KeyValued(chunkDims), boom, -1))
	c := newCache(t, p)
	k := key(0, 0)

	_, err := c.GetBlocking(t.Context(), k)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, p.CallsFor(k))
	assert.Equal(t, StateFailed, c.State(k))

	_, err = c.GetBlocking(t.Context(), k)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 2, p.CallsFor(k))
	assert.Equal(t, int64(2), c.Stats().Failures)
}

func TestGetBlocking_PermanentFailureNotRetried(t *testing.T) {
	p := testutil.NewCounting(testutil.NewFailing(testutil.KeyValued(chunkDims), chunk.ErrDecompressionFailed, 1))
	c := newCache(t, p)
	k := key(1, 3)

	_, err := c.GetBlocking(t.Context(), k)
	require.ErrorIs(t, err, chunk.ErrDecompressionFailed)

	_, err = c.GetBlocking(t.Context(), k)
	require.ErrorIs(t, err, chunk.ErrDecompressionFailed)
	assert.Equal(t, 1, p.CallsFor(k))

	// Evict clears the failure; the next attempt succeeds.
	require.True(t, c.Evict(k))
	_, err = c.GetBlocking(t.Context(), k)
	require.NoError(t, err)
	assert.Equal(t, 2, p.CallsFor(k))
}

func TestGetBlocking_CallerCancellationDoesNotPoison(t *testing.T) {
	gated := testutil.NewGated(testutil.KeyValued(chunkDims))
	c := newCache(t, gated, WithWorkers(1))
	k := key(0, 0)

	ctx, cancel := context.WithTimeout(t.Context(), 30*time.Millisecond)
	defer cancel()
	_, err := c.GetBlocking(ctx, k)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotEqual(t, StateFailed, c.State(k))

	gated.Open()
	s, err := c.GetBlocking(t.Context(), k)
	require.NoError(t, err)
	assert.NotNil(t, s)
}

func TestGetBlocking_CancelledDirectProductionIsReverted(t *testing.T) {
	blocker := key(0, 0)
	gated := testutil.NewGated(testutil.KeyValued(chunkDims))
	c := newCache(t, gated, WithWorkers(1), WithBlockingWait(5*time.Millisecond))

	v := c.GetBudgeted(blocker, 0)
	defer v.Release()
	<-gated.Started()

	k := key(0, 1)
	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()
	_, err := c.GetBlocking(ctx, k)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StateEmpty, c.State(k))
	assert.Zero(t, c.Stats().Failures)

	gated.Open()
	_, err = c.GetBlocking(t.Context(), k)
	require.NoError(t, err)
}

func TestGetBudgeted_NeverBlocks(t *testing.T) {
	slow := testutil.NewSlow(testutil.KeyValued(chunkDims), time.Hour)
	c := newCache(t, slow, WithWorkers(2))

	start := time.Now()
	for i := range 200 {
		v := c.GetBudgeted(key(1, int64(i)), i)
		assert.False(t, v.Ready())
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestGetBudgeted_BecomesReady(t *testing.T) {
	c := newCache(t, testutil.KeyValued(chunkDims))
	events, unsubscribe := c.Subscribe()
	defer unsubscribe()
	k := key(1, 2)

	v := c.GetBudgeted(k, 3)
	defer v.Release()
	if !v.Ready() {
		assert.Equal(t, StateLoading, v.State)
		waitEvent(t, events, k, StateReady)
	}

	v = c.GetBudgeted(k, 3)
	require.True(t, v.Ready())
	assert.Equal(t, uint16(1002), v.Samples.At(7, 7, 7))
}

// startBlocked occupies the single worker with a gated load.
func startBlocked(t *testing.T, c *Cache, gated *testutil.GatedProducer) {
	t.Helper()
	v := c.GetBudgeted(key(9, 0), -1)
	t.Cleanup(v.Release)
	select {
	case <-gated.Started():
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not start")
	}
}

func drainStarted(t *testing.T, gated *testutil.GatedProducer, n int) []chunk.Key {
	t.Helper()
	keys := make([]chunk.Key, 0, n)
	for range n {
		select {
		case k := <-gated.Started():
			keys = append(keys, k)
		case <-time.After(5 * time.Second):
			t.Fatalf("only %d of %d loads started", len(keys), n)
		}
	}
	return keys
}

func TestGetBudgeted_PriorityOrder(t *testing.T) {
	gated := testutil.NewGated(testutil.KeyValued(chunkDims))
	c := newCache(t, gated, WithWorkers(1))
	startBlocked(t, c, gated)

	a, b, cc := key(0, 1), key(0, 2), key(0, 3)
	for _, req := range []struct {
		k    chunk.Key
		prio int
	}{{a, 5}, {b, 1}, {cc, 5}} {
		v := c.GetBudgeted(req.k, req.prio)
		defer v.Release()
	}

	gated.Open()
	// Lowest priority first; among equals the most recent request.
	assert.Equal(t, []chunk.Key{b, cc, a}, drainStarted(t, gated, 3))
}

func TestGetBudgeted_RerequestTakesMinimumPriority(t *testing.T) {
	gated := testutil.NewGated(testutil.KeyValued(chunkDims))
	c := newCache(t, gated, WithWorkers(1))
	startBlocked(t, c, gated)

	a, b := key(0, 1), key(0, 2)
	va := c.GetBudgeted(a, 9)
	vb := c.GetBudgeted(b, 5)
	va2 := c.GetBudgeted(a, 1)
	va3 := c.GetBudgeted(a, 20)
	for _, v := range []View{va, vb, va2, va3} {
		defer v.Release()
	}

	gated.Open()
	assert.Equal(t, []chunk.Key{a, b}, drainStarted(t, gated, 2))
}

func TestGetBudgeted_ReleaseCancelsQueuedLoad(t *testing.T) {
	gated := testutil.NewGated(testutil.KeyValued(chunkDims))
	p := testutil.NewCounting(gated)
	c := newCache(t, p, WithWorkers(1), WithCancelGrace(0))

	running := c.GetBudgeted(key(9, 0), 0)
	<-gated.Started()

	k := key(0, 1)
	v1 := c.GetBudgeted(k, 1)
	v2 := c.GetBudgeted(k, 1)
	assert.Equal(t, 1, c.Stats().Pending)

	v1.Release()
	v1.Release()
	assert.Equal(t, StateLoading, c.State(k))

	v2.Release()
	assert.Equal(t, StateEmpty, c.State(k))
	assert.Zero(t, c.Stats().Pending)
	assert.Equal(t, int64(1), c.Stats().Cancellations)

	// A load already running is completed and cached.
	running.Release()
	gated.Open()
	require.Eventually(t, func() bool { return c.State(key(9, 0)) == StateReady }, 5*time.Second, time.Millisecond)
	assert.Zero(t, p.CallsFor(k))
}

func TestGetBudgeted_ReleasedLoadSurvivesGrace(t *testing.T) {
	gated := testutil.NewGated(testutil.KeyValued(chunkDims))
	c := newCache(t, gated, WithWorkers(1), WithCancelGrace(time.Hour))
	startBlocked(t, c, gated)

	// A render loop requests and releases every frame.
	k := key(1, 1)
	for range 3 {
		v := c.GetBudgeted(k, 0)
		assert.Equal(t, StateLoading, v.State)
		v.Release()
	}
	assert.Equal(t, StateLoading, c.State(k))

	gated.Open()
	require.Eventually(t, func() bool { return c.State(k) == StateReady }, 5*time.Second, time.Millisecond)
	assert.Zero(t, c.Stats().Cancellations)
}

func TestGetBudgeted_ReleasedLoadDroppedAfterGrace(t *testing.T) {
	gated := testutil.NewGated(testutil.KeyValued(chunkDims))
	p := testutil.NewCounting(gated)
	c := newCache(t, p, WithWorkers(1), WithCancelGrace(10*time.Millisecond))
	startBlocked(t, c, gated)

	k := key(1, 1)
	c.GetBudgeted(k, 0).Release()
	time.Sleep(30 * time.Millisecond)

	gated.Open()
	require.Eventually(t, func() bool { return c.Stats().Cancellations == 1 }, 5*time.Second, time.Millisecond)
	assert.Equal(t, StateEmpty, c.State(k))
	assert.Zero(t, p.CallsFor(k))
}

func TestGetBudgeted_RerequestWithinGraceKeepsLoad(t *testing.T) {
	gated := testutil.NewGated(testutil.KeyValued(chunkDims))
	p := testutil.NewCounting(gated)
	c := newCache(t, p, WithWorkers(1), WithCancelGrace(10*time.Millisecond))
	startBlocked(t, c, gated)

	k := key(1, 1)
	c.GetBudgeted(k, 0).Release()
	v := c.GetBudgeted(k, 0)
	defer v.Release()
	time.Sleep(30 * time.Millisecond)

	gated.Open()
	require.Eventually(t, func() bool { return c.State(k) == StateReady }, 5*time.Second, time.Millisecond)
	assert.Equal(t, 1, p.CallsFor(k))
}

func TestGetBlocking_JoinerTakesOverCancelledDirectProduction(t *testing.T) {
	blocker := key(0, 0)
	k := key(0, 1)
	gate := make(chan struct{})
	defer close(gate)

	base := testutil.KeyValued(chunkDims)
	var kCalls atomic.Int32
	p := testutil.FuncProducer(func(ctx context.Context, pk chunk.Key) (*chunk.Samples, error) {
		switch {
		case pk == blocker:
			select {
			case <-gate:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		case pk == k && kCalls.Add(1) == 1:
			// The first attempt only ends when its caller gives up.
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return base.Produce(ctx, pk)
	})
	c := newCache(t, p, WithWorkers(1), WithBlockingWait(10*time.Millisecond))

	v := c.GetBudgeted(blocker, -1)
	defer v.Release()
	require.Eventually(t, func() bool { return c.Stats().Pending == 0 }, time.Second, time.Millisecond)

	first := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(t.Context(), 60*time.Millisecond)
		defer cancel()
		_, err := c.GetBlocking(ctx, k)
		first <- err
	}()

	time.Sleep(25 * time.Millisecond)
	ctx, cancel := context.WithTimeout(t.Context(), 2*time.Second)
	defer cancel()
	start := time.Now()
	s, err := c.GetBlocking(ctx, k)
	require.NoError(t, err)
	assert.Equal(t, uint16(1), s.At(0, 0, 0))
	assert.Less(t, time.Since(start), time.Second)
	assert.ErrorIs(t, <-first, context.DeadlineExceeded)
	assert.Equal(t, int32(2), kCalls.Load())
}

func TestEviction_LeastRecentlyUsed(t *testing.T) {
	c := newCache(t, testutil.KeyValued(chunkDims), WithMaxResidentChunks(3))
	ctx := t.Context()

	for i := range 3 {
		_, err := c.GetBlocking(ctx, key(0, int64(i)))
		require.NoError(t, err)
	}
	// Touch 0 so 1 becomes least recently used.
	_, err := c.GetBlocking(ctx, key(0, 0))
	require.NoError(t, err)

	_, err = c.GetBlocking(ctx, key(0, 3))
	require.NoError(t, err)

	assert.Equal(t, StateEmpty, c.State(key(0, 1)))
	for _, x := range []int64{0, 2, 3} {
		assert.Equal(t, StateReady, c.State(key(0, x)), x)
	}
	st := c.Stats()
	assert.Equal(t, int64(3), st.ResidentChunks)
	assert.Equal(t, int64(1), st.Evictions)
}

func TestEviction_NeverExceedsBudget(t *testing.T) {
	c := newCache(t, testutil.KeyValued(chunkDims), WithMaxResidentChunks(5))
	rng := testutil.NewRNG(7)

	for range 100 {
		_, err := c.GetBlocking(t.Context(), rng.Key(0, pyramid.Cube(4)))
		require.NoError(t, err)
		assert.LessOrEqual(t, c.Stats().ResidentChunks, int64(5))
	}
}

func TestEviction_ByteBudget(t *testing.T) {
	size := testutil.Fill(chunkDims, 0).SizeBytes()
	rc := resource.NewController(resource.Config{})
	c := newCache(t, testutil.KeyValued(chunkDims), WithMaxResidentBytes(2*size), WithResourceController(rc))

	for i := range 3 {
		_, err := c.GetBlocking(t.Context(), key(0, int64(i)))
		require.NoError(t, err)
	}
	assert.Equal(t, StateEmpty, c.State(key(0, 0)))
	assert.Equal(t, 2*size, c.Stats().ResidentBytes)
	assert.Equal(t, 2*size, rc.MemoryUsage())

	require.NoError(t, c.Close())
	assert.Zero(t, rc.MemoryUsage())
}

func TestEviction_GlobalMemoryLimit(t *testing.T) {
	size := testutil.Fill(chunkDims, 0).SizeBytes()
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 2 * size})
	c := newCache(t, testutil.KeyValued(chunkDims), WithResourceController(rc))

	for i := range 4 {
		_, err := c.GetBlocking(t.Context(), key(0, int64(i)))
		require.NoError(t, err)
	}
	assert.Equal(t, int64(2), c.Stats().ResidentChunks)
	assert.Equal(t, 2*size, rc.MemoryUsage())
}

func TestPinning_PreventsEviction(t *testing.T) {
	c := newCache(t, testutil.KeyValued(chunkDims), WithMaxResidentChunks(2))
	ctx := t.Context()

	h, err := c.Acquire(ctx, key(0, 0))
	require.NoError(t, err)
	assert.Equal(t, 1, c.Pins(key(0, 0)))

	for i := 1; i <= 3; i++ {
		_, err := c.GetBlocking(ctx, key(0, int64(i)))
		require.NoError(t, err)
		assert.Equal(t, StateReady, c.State(key(0, 0)))
	}
	assert.Equal(t, StateEmpty, c.State(key(0, 1)))
	assert.Equal(t, StateEmpty, c.State(key(0, 2)))

	h.Release()
	h.Release()
	assert.Zero(t, c.Pins(key(0, 0)))

	_, err = c.GetBlocking(ctx, key(0, 4))
	require.NoError(t, err)
	assert.Equal(t, StateEmpty, c.State(key(0, 0)))
}

func TestPinning_RefCounted(t *testing.T) {
	c := newCache(t, testutil.KeyValued(chunkDims), WithMaxResidentChunks(1))
	ctx := t.Context()
	k := key(0, 0)

	assert.False(t, c.Pin(k))
	_, err := c.GetBlocking(ctx, k)
	require.NoError(t, err)

	require.True(t, c.Pin(k))
	require.True(t, c.Pin(k))
	require.True(t, c.Unpin(k))

	_, err = c.GetBlocking(ctx, key(0, 1))
	require.NoError(t, err)
	assert.Equal(t, StateReady, c.State(k))
	assert.Equal(t, int64(1), c.Stats().BudgetOverruns)

	// Releasing the last pin evicts down to budget.
	require.True(t, c.Unpin(k))
	assert.False(t, c.Unpin(k))
	assert.Equal(t, int64(1), c.Stats().ResidentChunks)
	assert.Equal(t, StateEmpty, c.State(k))
}

func TestEvict(t *testing.T) {
	boom := errors.New("boom")
	c := newCache(t, testutil.NewFailing(testutil.KeyValued(chunkDims), boom, 1))
	ctx := t.Context()

	_, err := c.GetBlocking(ctx, key(0, 0))
	require.ErrorIs(t, err, boom)
	assert.True(t, c.Evict(key(0, 0)))
	assert.Equal(t, StateEmpty, c.State(key(0, 0)))

	_, err = c.GetBlocking(ctx, key(0, 1))
	require.NoError(t, err)
	require.True(t, c.Pin(key(0, 1)))
	assert.False(t, c.Evict(key(0, 1)))
	require.True(t, c.Unpin(key(0, 1)))
	assert.True(t, c.Evict(key(0, 1)))
	assert.Zero(t, c.Stats().ResidentChunks)
	assert.False(t, c.Evict(key(0, 1)))
}

func TestSubscribe_EvictionEvents(t *testing.T) {
	c := newCache(t, testutil.KeyValued(chunkDims), WithMaxResidentChunks(1))
	events, unsubscribe := c.Subscribe()

	_, err := c.GetBlocking(t.Context(), key(0, 0))
	require.NoError(t, err)
	_, err = c.GetBlocking(t.Context(), key(0, 1))
	require.NoError(t, err)

	waitEvent(t, events, key(0, 0), StateEmpty)

	unsubscribe()
	unsubscribe()
	for range events {
	}
}

func TestSubscribe_DropsWhenFull(t *testing.T) {
	c := newCache(t, testutil.KeyValued(chunkDims), WithEventBuffer(1))
	_, unsubscribe := c.Subscribe()
	defer unsubscribe()

	for i := range 3 {
		_, err := c.GetBlocking(t.Context(), key(0, int64(i)))
		require.NoError(t, err)
	}
	// Events are published after the waiters are released.
	require.Eventually(t, func() bool { return c.Stats().DroppedEvents == 2 }, 5*time.Second, time.Millisecond)
}

func TestResident(t *testing.T) {
	c := newCache(t, testutil.KeyValued(chunkDims))
	ctx := t.Context()

	coords := []pyramid.ChunkCoord{{X: 0}, {X: 1, Y: 2, Z: 3}}
	for _, coord := range coords {
		_, err := c.GetBlocking(ctx, chunk.NewKey(1, coord))
		require.NoError(t, err)
	}
	_, err := c.GetBlocking(ctx, chunk.Key{Timepoint: 1, Level: 1})
	require.NoError(t, err)

	bm := c.Resident(0, 0, 1)
	assert.Equal(t, uint64(2), bm.GetCardinality())
	for _, coord := range coords {
		code, ok := coord.Morton()
		require.True(t, ok)
		assert.True(t, bm.Contains(code))
	}
	assert.True(t, c.Resident(0, 0, 0).IsEmpty())
	assert.Equal(t, uint64(1), c.Resident(1, 0, 1).GetCardinality())
}

func TestClose(t *testing.T) {
	gated := testutil.NewGated(testutil.KeyValued(chunkDims))
	c, err := New(gated, WithWorkers(1), WithBlockingWait(time.Hour))
	require.NoError(t, err)
	events, _ := c.Subscribe()

	v := c.GetBudgeted(key(9, 0), 0)
	defer v.Release()
	<-gated.Started()

	errCh := make(chan error, 1)
	go func() {
		_, err := c.GetBlocking(context.Background(), key(0, 1))
		errCh <- err
	}()
	require.Eventually(t, func() bool { return c.Stats().Pending == 1 }, 5*time.Second, time.Millisecond)

	require.NoError(t, c.Close())
	assert.ErrorIs(t, <-errCh, ErrClosed)
	assert.ErrorIs(t, c.Close(), ErrClosed)

	_, err = c.GetBlocking(t.Context(), key(0, 2))
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, c.GetBudgeted(key(0, 2), 0).Err, ErrClosed)

	for range events {
	}
}

type recordingObserver struct {
	mu        sync.Mutex
	loads     int
	hits      int
	misses    int
	evictions int
}

func (o *recordingObserver) OnLoad(int, time.Duration, error) { o.mu.Lock(); o.loads++; o.mu.Unlock() }
func (o *recordingObserver) OnHit(int)                        { o.mu.Lock(); o.hits++; o.mu.Unlock() }
func (o *recordingObserver) OnMiss(int)                       { o.mu.Lock(); o.misses++; o.mu.Unlock() }
func (o *recordingObserver) OnEviction(n int)                 { o.mu.Lock(); o.evictions += n; o.mu.Unlock() }
func (o *recordingObserver) OnQueueDepth(int)                 {}

func TestMetricsObserver(t *testing.T) {
	obs := &recordingObserver{}
	c := newCache(t, testutil.KeyValued(chunkDims), WithMetricsObserver(obs), WithMaxResidentChunks(1))

	for _, x := range []int64{0, 0, 1} {
		_, err := c.GetBlocking(t.Context(), key(0, x))
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		obs.mu.Lock()
		defer obs.mu.Unlock()
		return obs.evictions == 1
	}, 5*time.Second, time.Millisecond)

	obs.mu.Lock()
	defer obs.mu.Unlock()
	assert.Equal(t, 2, obs.loads)
	assert.Equal(t, 1, obs.hits)
	assert.Equal(t, 2, obs.misses)
}

func TestConcurrentAccess(t *testing.T) {
	c := newCache(t, testutil.KeyValued(chunkDims), WithMaxResidentChunks(16), WithWorkers(4))
	rng := testutil.NewRNG(42)
	grid := pyramid.Cube(4)

	var wg sync.WaitGroup
	for g := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 200 {
				k := rng.Key(g%3, grid)
				if i%2 == 0 {
					s, err := c.GetBlocking(context.Background(), k)
					if assert.NoError(t, err) {
						co := k.Coord
						assert.Equal(t, uint16(int64(k.Level)*1000+co.X+10*co.Y+100*co.Z), s.At(0, 0, 0))
					}
				} else {
					v := c.GetBudgeted(k, i)
					v.Release()
				}
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Stats().ResidentChunks, int64(16))
}
