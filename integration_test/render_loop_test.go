package integration_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/volcache"
	"github.com/hupe1980/volcache/producer/procedural"
	"github.com/hupe1980/volcache/pyramid"
)

// A render loop sampling budgeted regions while other goroutines issue
// blocking requests must converge to a complete region without deadlock.
func TestRenderLoop_WithBlockingRequests(t *testing.T) {
	src, err := volcache.NewProcedural(levelDims, pyramid.Cube(8), procedural.Config{MaxIterations: 16},
		volcache.WithWorkers(2),
		volcache.WithMaxResidentChunks(48),
		volcache.WithFocalLevel(1))
	require.NoError(t, err)
	defer src.Close()

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()

	view := pyramid.NewWorldBounds(r3.Vector{X: 2, Y: 2, Z: 2}, r3.Vector{X: 6, Y: 6, Z: 6})

	var wg sync.WaitGroup
	for i := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for l := range src.Geometry().NumLevels() {
				grid, _ := src.Geometry().GridDimensions(l)
				coord := pyramid.ChunkCoord{X: int64(i) % grid.X, Y: int64(i) % grid.Y}
				_, err := src.GetChunk(ctx, l, coord)
				assert.NoError(t, err)
			}
		}()
	}

	frames := 0
	err = src.Watch(ctx, 1, view, 5*time.Millisecond, func(r *volcache.Region) {
		frames++
		for _, c := range r.Chunks {
			assert.Equal(t, 1, c.Key.Level)
			assert.NotNil(t, c.Samples)
		}
	})
	require.NoError(t, err)
	wg.Wait()

	assert.Positive(t, frames)

	region, err := src.SampleRegion(1, view)
	require.NoError(t, err)
	defer region.Release()
	assert.True(t, region.Complete)
	assert.Len(t, region.Chunks, len(region.Keys))
}

func TestRenderLoop_FocalSwitch(t *testing.T) {
	src, err := volcache.NewProcedural(levelDims, pyramid.Cube(8), procedural.Config{MaxIterations: 16})
	require.NoError(t, err)
	defer src.Close()

	view := pyramid.NewWorldBounds(r3.Vector{}, r3.Vector{X: 8, Y: 8, Z: 8})
	for l := range src.Geometry().NumLevels() {
		require.NoError(t, src.SetFocalLevel(l))

		region, err := src.EnsureRegionBlocking(t.Context(), l, view)
		require.NoError(t, err)
		grid, _ := src.Geometry().GridDimensions(l)
		assert.Len(t, region.Chunks, int(grid.Elements()))
		region.Release()
	}
	assert.Zero(t, src.Stats().Failures)
}
