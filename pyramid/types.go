package pyramid

import (
	"fmt"

	"github.com/golang/geo/r3"
)

// Size3 is an integer extent (or position) along the x, y and z axes.
type Size3 struct {
	X, Y, Z int64
}

// Cube returns a Size3 with all three axes set to n.
func Cube(n int64) Size3 {
	return Size3{X: n, Y: n, Z: n}
}

// Elements returns X*Y*Z.
func (s Size3) Elements() int64 {
	return s.X * s.Y * s.Z
}

// Positive reports whether every axis is > 0.
func (s Size3) Positive() bool {
	return s.X > 0 && s.Y > 0 && s.Z > 0
}

func (s Size3) String() string {
	return fmt.Sprintf("(%d,%d,%d)", s.X, s.Y, s.Z)
}

// ChunkCoord identifies a chunk within the chunk grid of one level.
type ChunkCoord struct {
	X, Y, Z int64
}

func (c ChunkCoord) String() string {
	return fmt.Sprintf("(%d,%d,%d)", c.X, c.Y, c.Z)
}

// within reports whether c lies in [0, grid) on every axis.
func (c ChunkCoord) within(grid Size3) bool {
	return c.X >= 0 && c.Y >= 0 && c.Z >= 0 &&
		c.X < grid.X && c.Y < grid.Y && c.Z < grid.Z
}

const mortonBits = 21

// Morton interleaves the low 21 bits of each axis into a single z-order code.
// The second return value is false if any axis is negative or needs more
// than 21 bits.
func (c ChunkCoord) Morton() (uint64, bool) {
	const limit = 1 << mortonBits
	if c.X < 0 || c.Y < 0 || c.Z < 0 || c.X >= limit || c.Y >= limit || c.Z >= limit {
		return 0, false
	}
	return spread(uint64(c.X)) | spread(uint64(c.Y))<<1 | spread(uint64(c.Z))<<2, true
}

// CoordFromMorton is the inverse of ChunkCoord.Morton.
func CoordFromMorton(code uint64) ChunkCoord {
	return ChunkCoord{
		X: int64(compact(code)),
		Y: int64(compact(code >> 1)),
		Z: int64(compact(code >> 2)),
	}
}

func spread(v uint64) uint64 {
	v &= 0x1fffff
	v = (v | v<<32) & 0x1f00000000ffff
	v = (v | v<<16) & 0x1f0000ff0000ff
	v = (v | v<<8) & 0x100f00f00f00f00f
	v = (v | v<<4) & 0x10c30c30c30c30c3
	v = (v | v<<2) & 0x1249249249249249
	return v
}

func compact(v uint64) uint64 {
	v &= 0x1249249249249249
	v = (v ^ v>>2) & 0x10c30c30c30c30c3
	v = (v ^ v>>4) & 0x100f00f00f00f00f
	v = (v ^ v>>8) & 0x1f0000ff0000ff
	v = (v ^ v>>16) & 0x1f00000000ffff
	v = (v ^ v>>32) & 0x1fffff
	return v
}

// Box is an axis-aligned box in the sample-index space of one level.
// Min is inclusive, Min+Size is exclusive.
type Box struct {
	Min  Size3
	Size Size3
}

// Max returns the exclusive upper corner.
func (b Box) Max() Size3 {
	return Size3{X: b.Min.X + b.Size.X, Y: b.Min.Y + b.Size.Y, Z: b.Min.Z + b.Size.Z}
}

// Empty reports whether the box has no samples.
func (b Box) Empty() bool {
	return !b.Size.Positive()
}

// Contains reports whether the sample index p lies in the box.
func (b Box) Contains(p Size3) bool {
	m := b.Max()
	return p.X >= b.Min.X && p.Y >= b.Min.Y && p.Z >= b.Min.Z &&
		p.X < m.X && p.Y < m.Y && p.Z < m.Z
}

// Clip intersects the box with [0, dims).
func (b Box) Clip(dims Size3) Box {
	m := b.Max()
	lo := Size3{X: max(b.Min.X, 0), Y: max(b.Min.Y, 0), Z: max(b.Min.Z, 0)}
	hi := Size3{X: min(m.X, dims.X), Y: min(m.Y, dims.Y), Z: min(m.Z, dims.Z)}
	return Box{Min: lo, Size: Size3{X: max(hi.X-lo.X, 0), Y: max(hi.Y-lo.Y, 0), Z: max(hi.Z-lo.Z, 0)}}
}

// WorldBounds is an axis-aligned box in world space.
type WorldBounds struct {
	Min, Max r3.Vector
}

// NewWorldBounds returns the bounds spanned by two opposite corners in any order.
func NewWorldBounds(a, b r3.Vector) WorldBounds {
	return WorldBounds{
		Min: r3.Vector{X: min(a.X, b.X), Y: min(a.Y, b.Y), Z: min(a.Z, b.Z)},
		Max: r3.Vector{X: max(a.X, b.X), Y: max(a.Y, b.Y), Z: max(a.Z, b.Z)},
	}
}

// Center returns the midpoint of the bounds.
func (w WorldBounds) Center() r3.Vector {
	return w.Min.Add(w.Max).Mul(0.5)
}

// corners returns the eight corners of the bounds.
func (w WorldBounds) corners() [8]r3.Vector {
	var out [8]r3.Vector
	for i := range out {
		v := w.Min
		if i&1 != 0 {
			v.X = w.Max.X
		}
		if i&2 != 0 {
			v.Y = w.Max.Y
		}
		if i&4 != 0 {
			v.Z = w.Max.Z
		}
		out[i] = v
	}
	return out
}
