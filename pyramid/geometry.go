package pyramid

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
)

// LevelDescriptor describes one resolution level.
type LevelDescriptor struct {
	// Dimensions is the number of samples per axis.
	Dimensions Size3
	// ChunkSize is the number of samples per axis in one chunk.
	ChunkSize Size3
	// Transform maps sample indices to world coordinates. A zero value is
	// replaced by Scaling(LevelScale(level, DefaultMinScale)).
	Transform Affine3
}

// Geometry is an immutable multi-resolution pyramid description.
type Geometry struct {
	levels   []LevelDescriptor
	inverses []Affine3
}

// NewGeometry validates levels and returns a Geometry.
//
// Dimensions must be non-decreasing from one level to the next, and every
// dimension, chunk size and transform must be non-degenerate.
func NewGeometry(levels []LevelDescriptor) (*Geometry, error) {
	if len(levels) == 0 {
		return nil, fmt.Errorf("%w: no levels", ErrInvalidGeometry)
	}

	g := &Geometry{
		levels:   make([]LevelDescriptor, len(levels)),
		inverses: make([]Affine3, len(levels)),
	}
	copy(g.levels, levels)

	for l := range g.levels {
		d := &g.levels[l]
		if !d.Dimensions.Positive() {
			return nil, fmt.Errorf("%w: level %d dimensions %s", ErrInvalidGeometry, l, d.Dimensions)
		}
		if !d.ChunkSize.Positive() {
			return nil, fmt.Errorf("%w: level %d chunk size %s", ErrInvalidGeometry, l, d.ChunkSize)
		}
		if l > 0 {
			prev := g.levels[l-1].Dimensions
			if d.Dimensions.X < prev.X || d.Dimensions.Y < prev.Y || d.Dimensions.Z < prev.Z {
				return nil, fmt.Errorf("%w: level %d dimensions %s shrink below level %d %s",
					ErrInvalidGeometry, l, d.Dimensions, l-1, prev)
			}
		}
		if d.Transform.IsZero() {
			s := LevelScale(l, DefaultMinScale)
			d.Transform = Scaling(s, s, s)
		}
		inv, err := d.Transform.Inverse()
		if err != nil {
			return nil, fmt.Errorf("%w: level %d: %w", ErrInvalidGeometry, l, err)
		}
		g.inverses[l] = inv
	}

	return g, nil
}

// Uniform builds a cubic pyramid: level l has dims[l] samples per axis,
// the given chunk size and a transform scaling by LevelScale(l, minScale).
func Uniform(dims []int64, chunk Size3, minScale float64) (*Geometry, error) {
	levels := make([]LevelDescriptor, len(dims))
	for l, d := range dims {
		s := LevelScale(l, minScale)
		levels[l] = LevelDescriptor{
			Dimensions: Cube(d),
			ChunkSize:  chunk,
			Transform:  Scaling(s, s, s),
		}
	}
	return NewGeometry(levels)
}

// NumLevels returns the number of levels.
func (g *Geometry) NumLevels() int {
	return len(g.levels)
}

// Level returns the descriptor of level.
func (g *Geometry) Level(level int) (LevelDescriptor, error) {
	if err := g.checkLevel(level); err != nil {
		return LevelDescriptor{}, err
	}
	return g.levels[level], nil
}

// Dimensions returns the sample extents of level.
func (g *Geometry) Dimensions(level int) (Size3, error) {
	if err := g.checkLevel(level); err != nil {
		return Size3{}, err
	}
	return g.levels[level].Dimensions, nil
}

// ChunkSize returns the chunk extents of level.
func (g *Geometry) ChunkSize(level int) (Size3, error) {
	if err := g.checkLevel(level); err != nil {
		return Size3{}, err
	}
	return g.levels[level].ChunkSize, nil
}

// Finest returns the sample extents of the finest (last) level.
func (g *Geometry) Finest() Size3 {
	return g.levels[len(g.levels)-1].Dimensions
}

// GridDimensions returns the number of chunks per axis at level:
// ceil(dimension / chunk size).
func (g *Geometry) GridDimensions(level int) (Size3, error) {
	if err := g.checkLevel(level); err != nil {
		return Size3{}, err
	}
	d := g.levels[level]
	return Size3{
		X: ceilDiv(d.Dimensions.X, d.ChunkSize.X),
		Y: ceilDiv(d.Dimensions.Y, d.ChunkSize.Y),
		Z: ceilDiv(d.Dimensions.Z, d.ChunkSize.Z),
	}, nil
}

// WorldTransform returns the sample-index to world transform of level.
func (g *Geometry) WorldTransform(level int) (Affine3, error) {
	if err := g.checkLevel(level); err != nil {
		return Affine3{}, err
	}
	return g.levels[level].Transform, nil
}

// ChunkBounds returns the sample-index box covered by the chunk at coord.
// The box always has the full chunk size; edge chunks may extend past the
// level dimensions (see Box.Clip).
func (g *Geometry) ChunkBounds(level int, coord ChunkCoord) (Box, error) {
	grid, err := g.GridDimensions(level)
	if err != nil {
		return Box{}, err
	}
	if !coord.within(grid) {
		return Box{}, fmt.Errorf("%w: level %d coord %s grid %s", ErrChunkCoordOutOfRange, level, coord, grid)
	}
	cs := g.levels[level].ChunkSize
	return Box{
		Min:  Size3{X: coord.X * cs.X, Y: coord.Y * cs.Y, Z: coord.Z * cs.Z},
		Size: cs,
	}, nil
}

// CheckCoord validates level and coord without computing bounds.
func (g *Geometry) CheckCoord(level int, coord ChunkCoord) error {
	_, err := g.ChunkBounds(level, coord)
	return err
}

// ChunksOverlapping returns the coordinates of all chunks at level whose
// samples intersect bounds, ordered z-major then y then x. The result is
// empty when bounds lie entirely outside the volume.
func (g *Geometry) ChunksOverlapping(level int, bounds WorldBounds) ([]ChunkCoord, error) {
	grid, err := g.GridDimensions(level)
	if err != nil {
		return nil, err
	}
	d := g.levels[level]
	inv := g.inverses[level]

	lo := [3]float64{math.Inf(1), math.Inf(1), math.Inf(1)}
	hi := [3]float64{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
	for _, c := range bounds.corners() {
		p := inv.Apply(c)
		for i, v := range [3]float64{p.X, p.Y, p.Z} {
			lo[i] = math.Min(lo[i], v)
			hi[i] = math.Max(hi[i], v)
		}
	}

	dims := [3]int64{d.Dimensions.X, d.Dimensions.Y, d.Dimensions.Z}
	chunk := [3]int64{d.ChunkSize.X, d.ChunkSize.Y, d.ChunkSize.Z}
	cells := [3]int64{grid.X, grid.Y, grid.Z}
	var first, last [3]int64
	for i := range 3 {
		if math.IsNaN(lo[i]) || math.IsNaN(hi[i]) {
			return nil, nil
		}
		// Clamp in float space: converting huge or infinite values to
		// int64 is implementation-defined.
		f0 := math.Floor(lo[i])
		f1 := math.Ceil(hi[i]) // exclusive
		if f1 == f0 {
			f1++ // degenerate (planar) bounds still touch one sample layer
		}
		f0 = math.Max(f0, 0)
		f1 = math.Min(f1, float64(dims[i]))
		if f1 <= f0 {
			return nil, nil
		}
		s0, s1 := int64(f0), int64(f1)
		first[i] = s0 / chunk[i]
		last[i] = min((s1-1)/chunk[i], cells[i]-1)
	}

	n := (last[0] - first[0] + 1) * (last[1] - first[1] + 1) * (last[2] - first[2] + 1)
	out := make([]ChunkCoord, 0, n)
	for z := first[2]; z <= last[2]; z++ {
		for y := first[1]; y <= last[1]; y++ {
			for x := first[0]; x <= last[0]; x++ {
				out = append(out, ChunkCoord{X: x, Y: y, Z: z})
			}
		}
	}
	return out, nil
}

// ChunkAt returns the coordinate of the chunk at level whose samples
// contain the world point p. Points outside the volume map to the ring of
// chunks just outside the grid: -1 or the grid extent on that axis.
func (g *Geometry) ChunkAt(level int, p r3.Vector) (ChunkCoord, error) {
	grid, err := g.GridDimensions(level)
	if err != nil {
		return ChunkCoord{}, err
	}
	q := g.inverses[level].Apply(p)
	cs := g.levels[level].ChunkSize
	return ChunkCoord{
		X: cellOf(q.X, cs.X, grid.X),
		Y: cellOf(q.Y, cs.Y, grid.Y),
		Z: cellOf(q.Z, cs.Z, grid.Z),
	}, nil
}

// cellOf returns floor(v/size) clamped to [-1, cells].
func cellOf(v float64, size, cells int64) int64 {
	if math.IsNaN(v) {
		return 0
	}
	f := math.Floor(v / float64(size))
	return int64(math.Max(-1, math.Min(f, float64(cells))))
}

func (g *Geometry) checkLevel(level int) error {
	if g == nil || level < 0 || level >= len(g.levels) {
		n := 0
		if g != nil {
			n = len(g.levels)
		}
		return fmt.Errorf("%w: %d not in [0, %d)", ErrLevelOutOfRange, level, n)
	}
	return nil
}

func ceilDiv(a, b int64) int64 {
	return (a + b - 1) / b
}
