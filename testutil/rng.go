package testutil

import (
	"math/rand"
	"sync"

	"github.com/hupe1980/volcache/chunk"
	"github.com/hupe1980/volcache/pyramid"
)

// RNG wraps a seeded random source. It is safe for concurrent use.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Coord returns a random coordinate within grid.
func (r *RNG) Coord(grid pyramid.Size3) pyramid.ChunkCoord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return pyramid.ChunkCoord{
		X: r.rand.Int63n(grid.X),
		Y: r.rand.Int63n(grid.Y),
		Z: r.rand.Int63n(grid.Z),
	}
}

// Key returns a random key at level within grid.
func (r *RNG) Key(level int, grid pyramid.Size3) chunk.Key {
	return chunk.NewKey(level, r.Coord(grid))
}

// Samples returns random samples of dims.
func (r *RNG) Samples(dims pyramid.Size3) *chunk.Samples {
	r.mu.Lock()
	data := make([]uint16, dims.Elements())
	for i := range data {
		data[i] = uint16(r.rand.Intn(chunk.MaxValue + 1))
	}
	r.mu.Unlock()

	s, err := chunk.NewSamples(dims, data)
	if err != nil {
		panic(err)
	}
	return s
}
