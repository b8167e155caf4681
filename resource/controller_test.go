package resource

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_Memory(t *testing.T) {
	c := NewController(Config{MemoryLimitBytes: 100})

	require.True(t, c.TryAcquireMemory(50))
	require.True(t, c.TryAcquireMemory(40))
	assert.Equal(t, int64(90), c.MemoryUsage())

	assert.False(t, c.TryAcquireMemory(20))
	assert.Equal(t, int64(90), c.MemoryUsage())

	c.ReleaseMemory(50)
	assert.True(t, c.TryAcquireMemory(20))
	assert.Equal(t, int64(60), c.MemoryUsage())
	assert.Equal(t, int64(100), c.MemoryLimit())
}

func TestController_ForceAcquireMemory(t *testing.T) {
	c := NewController(Config{MemoryLimitBytes: 100})

	assert.True(t, c.ForceAcquireMemory(80))
	assert.False(t, c.OverLimit())

	assert.False(t, c.ForceAcquireMemory(40))
	assert.True(t, c.OverLimit())
	assert.Equal(t, int64(120), c.MemoryUsage())

	c.ReleaseMemory(40)
	assert.False(t, c.OverLimit())
}

func TestController_Unlimited(t *testing.T) {
	c := NewController(Config{})
	assert.True(t, c.TryAcquireMemory(1<<40))
	assert.True(t, c.ForceAcquireMemory(1<<40))
	assert.False(t, c.OverLimit())
	assert.Equal(t, int64(0), c.MemoryLimit())
}

func TestController_NilChecks(t *testing.T) {
	var c *Controller
	assert.True(t, c.TryAcquireMemory(10))
	assert.True(t, c.ForceAcquireMemory(10))
	c.ReleaseMemory(10) // Should not panic
	assert.Equal(t, int64(0), c.MemoryUsage())
	assert.NoError(t, c.AcquireFetch(t.Context()))
	c.ReleaseFetch()
	assert.NoError(t, c.AcquireIO(t.Context(), 1<<20))
}

func TestController_Fetch(t *testing.T) {
	c := NewController(Config{MaxFetches: 1})
	require.NoError(t, c.AcquireFetch(t.Context()))

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.AcquireFetch(ctx), context.DeadlineExceeded)

	c.ReleaseFetch()
	require.NoError(t, c.AcquireFetch(t.Context()))
	c.ReleaseFetch()
}

func TestController_IO(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1000}) // 1KB/s
	ctx := t.Context()

	assert.NoError(t, c.AcquireIO(ctx, 100))
	assert.NoError(t, c.AcquireIO(ctx, 100))

	// Larger than the bucket: must wait rather than fail.
	ctx2, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	assert.Error(t, c.AcquireIO(ctx2, 5000))

	c2 := NewController(Config{})
	assert.NoError(t, c2.AcquireIO(ctx, 1000000))
}

func TestRateLimitedReader(t *testing.T) {
	payload := bytes.Repeat([]byte{1}, 512)
	c := NewController(Config{IOLimitBytesPerSec: 1 << 20})

	r := NewRateLimitedReader(t.Context(), bytes.NewReader(payload), c)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}
