package pyramid

import (
	"math"

	"github.com/golang/geo/r3"
)

// DefaultMinScale is the scale floor applied by LevelScale when callers do
// not supply one. It keeps very deep levels from collapsing to a zero transform.
const DefaultMinScale = 1.0 / (1 << 24)

// LevelScale returns the resolution scale factor of level relative to level 0:
// 1/2^level, clamped below by floor.
func LevelScale(level int, floor float64) float64 {
	if level < 0 {
		level = 0
	}
	s := math.Ldexp(1, -level)
	if floor > 0 && s < floor {
		return floor
	}
	return s
}

// Affine3 is a 3D affine transform stored as a row-major 3x4 matrix
// [linear | translation].
type Affine3 struct {
	m [3][4]float64
}

// Identity returns the identity transform.
func Identity() Affine3 {
	return Scaling(1, 1, 1)
}

// Scaling returns a transform that scales each axis independently.
func Scaling(sx, sy, sz float64) Affine3 {
	var a Affine3
	a.m[0][0] = sx
	a.m[1][1] = sy
	a.m[2][2] = sz
	return a
}

// Translation returns a pure translation by t.
func Translation(t r3.Vector) Affine3 {
	a := Identity()
	a.m[0][3] = t.X
	a.m[1][3] = t.Y
	a.m[2][3] = t.Z
	return a
}

// FromMatrix builds a transform from a row-major 3x4 matrix.
func FromMatrix(m [3][4]float64) Affine3 {
	return Affine3{m: m}
}

// Matrix returns the row-major 3x4 matrix.
func (a Affine3) Matrix() [3][4]float64 {
	return a.m
}

// IsZero reports whether a is the zero value (not a usable transform).
func (a Affine3) IsZero() bool {
	return a.m == [3][4]float64{}
}

// Apply maps p through the transform.
func (a Affine3) Apply(p r3.Vector) r3.Vector {
	in := [3]float64{p.X, p.Y, p.Z}
	var out [3]float64
	for r := range 3 {
		v := a.m[r][3]
		for c, x := range in {
			// 0*Inf is NaN; zero terms must not poison other axes.
			if a.m[r][c] != 0 {
				v += a.m[r][c] * x
			}
		}
		out[r] = v
	}
	return r3.Vector{X: out[0], Y: out[1], Z: out[2]}
}

// Concat returns the transform that applies b first and then a.
func (a Affine3) Concat(b Affine3) Affine3 {
	var out Affine3
	for r := 0; r < 3; r++ {
		for c := 0; c < 4; c++ {
			v := a.m[r][0]*b.m[0][c] + a.m[r][1]*b.m[1][c] + a.m[r][2]*b.m[2][c]
			if c == 3 {
				v += a.m[r][3]
			}
			out.m[r][c] = v
		}
	}
	return out
}

// Determinant returns the determinant of the linear part.
func (a Affine3) Determinant() float64 {
	m := a.m
	return m[0][0]*(m[1][1]*m[2][2]-m[1][2]*m[2][1]) -
		m[0][1]*(m[1][0]*m[2][2]-m[1][2]*m[2][0]) +
		m[0][2]*(m[1][0]*m[2][1]-m[1][1]*m[2][0])
}

// Inverse returns the inverse transform, or ErrSingularTransform.
func (a Affine3) Inverse() (Affine3, error) {
	det := a.Determinant()
	if det == 0 || math.IsNaN(det) || math.IsInf(det, 0) {
		return Affine3{}, ErrSingularTransform
	}
	m := a.m
	inv := 1 / det

	var out Affine3
	out.m[0][0] = (m[1][1]*m[2][2] - m[1][2]*m[2][1]) * inv
	out.m[0][1] = (m[0][2]*m[2][1] - m[0][1]*m[2][2]) * inv
	out.m[0][2] = (m[0][1]*m[1][2] - m[0][2]*m[1][1]) * inv
	out.m[1][0] = (m[1][2]*m[2][0] - m[1][0]*m[2][2]) * inv
	out.m[1][1] = (m[0][0]*m[2][2] - m[0][2]*m[2][0]) * inv
	out.m[1][2] = (m[0][2]*m[1][0] - m[0][0]*m[1][2]) * inv
	out.m[2][0] = (m[1][0]*m[2][1] - m[1][1]*m[2][0]) * inv
	out.m[2][1] = (m[0][1]*m[2][0] - m[0][0]*m[2][1]) * inv
	out.m[2][2] = (m[0][0]*m[1][1] - m[0][1]*m[1][0]) * inv

	// t' = -L⁻¹ t
	for r := 0; r < 3; r++ {
		out.m[r][3] = -(out.m[r][0]*m[0][3] + out.m[r][1]*m[1][3] + out.m[r][2]*m[2][3])
	}
	return out, nil
}
