package volcache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/volcache/cache"
	"github.com/hupe1980/volcache/chunk"
	"github.com/hupe1980/volcache/pyramid"
)

// RegionChunk is one resident chunk of a region.
type RegionChunk struct {
	Key     chunk.Key
	Bounds  pyramid.Box
	Samples *chunk.Samples
}

// Region is the result of a region request. Release it when done: budgeted
// regions hold interest in pending loads, blocking regions hold pins.
type Region struct {
	// Level is the requested level.
	Level int
	// Keys lists every chunk overlapping the bounds.
	Keys []chunk.Key
	// Chunks holds the ready subset of Keys.
	Chunks []RegionChunk
	// Complete reports whether every overlapping chunk is ready.
	Complete bool
	// Failed lists the keys whose load failed. Budgeted requests do not
	// retry them.
	Failed []chunk.Key

	errs    []error
	once    sync.Once
	release func()
}

// Release drops the pins or pending interest held by the region. It is safe
// to call more than once.
func (r *Region) Release() {
	r.once.Do(func() {
		if r.release != nil {
			r.release()
		}
	})
}

// Settled reports whether every overlapping chunk is either ready or failed.
func (r *Region) Settled() bool {
	return len(r.Chunks)+len(r.Failed) == len(r.Keys)
}

// Err returns the failure of the first failed key as a *RegionError, or nil.
func (r *Region) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	return &RegionError{Level: r.Level, Key: r.Failed[0], cause: r.errs[0]}
}

// Chunk returns the ready chunk at coord.
func (r *Region) Chunk(coord pyramid.ChunkCoord) (RegionChunk, bool) {
	for _, c := range r.Chunks {
		if c.Key.Coord == coord {
			return c, true
		}
	}
	return RegionChunk{}, false
}

// SampleRegion requests every chunk of level overlapping bounds without
// blocking and returns the subset already resident.
//
// Priority is |level - focal| * FocalPriorityWeight plus the Chebyshev
// distance, in chunks, from the chunk containing the centre of bounds.
func (s *Source) SampleRegion(level int, bounds pyramid.WorldBounds) (*Region, error) {
	start := time.Now()
	coords, err := s.geom.ChunksOverlapping(level, bounds)
	if err != nil {
		return nil, err
	}
	centre, err := s.geom.ChunkAt(level, bounds.Center())
	if err != nil {
		return nil, err
	}

	base := abs(level-s.FocalLevel()) * FocalPriorityWeight
	r := &Region{Level: level, Keys: make([]chunk.Key, 0, len(coords))}
	var pending []cache.View

	for _, coord := range coords {
		key := s.Key(level, coord)
		r.Keys = append(r.Keys, key)

		v := s.cache.GetBudgeted(key, base+chebyshev(coord, centre))
		switch v.State {
		case cache.StateFailed:
			r.Failed = append(r.Failed, key)
			r.errs = append(r.errs, v.Err)
			continue
		case cache.StateLoading:
			pending = append(pending, v)
			continue
		}
		box, _ := s.geom.ChunkBounds(level, coord)
		r.Chunks = append(r.Chunks, RegionChunk{Key: key, Bounds: box, Samples: v.Samples})
	}

	r.Complete = len(r.Chunks) == len(r.Keys)
	r.release = func() {
		for _, v := range pending {
			v.Release()
		}
	}

	s.metrics.RecordRegion(level, len(r.Keys), len(r.Chunks), time.Since(start))
	s.logger.LogRegion(context.Background(), level, len(r.Keys), len(r.Chunks))
	return r, nil
}

// EnsureRegionBlocking resolves every chunk of level overlapping bounds.
// The chunks stay pinned until the region is released. On failure all pins
// taken so far are released and the first error is returned as a
// *RegionError.
func (s *Source) EnsureRegionBlocking(ctx context.Context, level int, bounds pyramid.WorldBounds) (*Region, error) {
	start := time.Now()
	coords, err := s.geom.ChunksOverlapping(level, bounds)
	if err != nil {
		return nil, err
	}

	r := &Region{Level: level, Keys: make([]chunk.Key, len(coords)), Complete: true}
	handles := make([]*cache.Handle, len(coords))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.regionConcurrency)
	for i, coord := range coords {
		key := s.Key(level, coord)
		r.Keys[i] = key
		g.Go(func() error {
			h, err := s.cache.Acquire(gctx, key)
			if err != nil {
				return &RegionError{Level: level, Key: key, cause: err}
			}
			handles[i] = h
			return nil
		})
	}

	releaseAll := func() {
		for _, h := range handles {
			if h != nil {
				h.Release()
			}
		}
	}

	if err := g.Wait(); err != nil {
		releaseAll()
		// Report the caller's cancellation rather than a sibling's.
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = ctxErr
		}
		s.logger.LogBlockingRegion(ctx, level, len(coords), err)
		return nil, err
	}

	r.Chunks = make([]RegionChunk, len(handles))
	for i, h := range handles {
		box, _ := s.geom.ChunkBounds(level, coords[i])
		r.Chunks[i] = RegionChunk{Key: h.Key(), Bounds: box, Samples: h.Samples()}
	}
	r.release = releaseAll

	s.metrics.RecordRegion(level, len(r.Keys), len(r.Chunks), time.Since(start))
	s.logger.LogBlockingRegion(ctx, level, len(coords), nil)
	return r, nil
}

// Watch samples a region repeatedly until it is settled or ctx is done.
// Each sample keeps its pending loads alive until the next one is taken, so
// fn may read a region only until it returns. A new sample is taken when one
// of the region's chunks changes state or, failing that, every interval.
//
// Watch returns nil once the region is complete, and the region's Err once
// every chunk is settled but some failed. interval must be positive.
func (s *Source) Watch(ctx context.Context, level int, bounds pyramid.WorldBounds, interval time.Duration, fn func(*Region)) error {
	if interval <= 0 {
		return fmt.Errorf("%w: watch interval %v", ErrInvalidArgument, interval)
	}
	if fn == nil {
		return fmt.Errorf("%w: nil watch callback", ErrInvalidArgument)
	}
	events, unsubscribe := s.Subscribe()
	defer unsubscribe()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var prev *Region
	defer func() {
		if prev != nil {
			prev.Release()
		}
	}()

	for {
		r, err := s.SampleRegion(level, bounds)
		if err != nil {
			return err
		}
		if prev != nil {
			prev.Release()
		}
		prev = r

		fn(r)
		if r.Settled() {
			return r.Err()
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		keys := make(map[chunk.Key]struct{}, len(r.Keys))
		for _, k := range r.Keys {
			keys[k] = struct{}{}
		}

	wait:
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				break wait
			case ev, ok := <-events:
				if !ok {
					return ErrClosed
				}
				if _, relevant := keys[ev.Key]; relevant {
					break wait
				}
			}
		}
	}
}

func chebyshev(a, b pyramid.ChunkCoord) int {
	return int(max(absInt64(a.X-b.X), absInt64(a.Y-b.Y), absInt64(a.Z-b.Z)))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
