// Package procedural implements a chunk.Producer that computes samples from
// an escape-time Mandelbulb fractal.
//
// Every sample is a pure function of its level and absolute index, so any
// chunk can be produced independently, in any order, on any goroutine.
package procedural

import (
	"context"
	"fmt"
	"math"

	"github.com/hupe1980/volcache/chunk"
	"github.com/hupe1980/volcache/pyramid"
)

const (
	// DefaultMaxIterations is the iteration cap used when Config.MaxIterations is 0.
	DefaultMaxIterations = 32
	// DefaultOrder is the Mandelbulb power used when Config.Order is 0.
	DefaultOrder = 8

	bailout = 4.0
)

// Config controls the fractal evaluation.
type Config struct {
	// MaxIterations caps the escape-time loop.
	MaxIterations int
	// Order is the power of the Mandelbulb iteration.
	Order int
}

// Producer evaluates the Mandelbulb over the index space of a pyramid.
type Producer struct {
	geom    *pyramid.Geometry
	maxIter int
	order   float64
}

var _ chunk.Producer = (*Producer)(nil)

// New creates a producer for geom.
func New(geom *pyramid.Geometry, cfg Config) (*Producer, error) {
	if geom == nil {
		return nil, fmt.Errorf("%w: nil geometry", pyramid.ErrInvalidGeometry)
	}
	if cfg.MaxIterations == 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.Order == 0 {
		cfg.Order = DefaultOrder
	}
	if cfg.MaxIterations < 0 || cfg.Order < 0 {
		return nil, fmt.Errorf("procedural: invalid config %+v", cfg)
	}
	return &Producer{
		geom:    geom,
		maxIter: cfg.MaxIterations,
		order:   float64(cfg.Order),
	}, nil
}

// Geometry returns the pyramid the producer addresses.
func (p *Producer) Geometry() *pyramid.Geometry {
	return p.geom
}

// Produce computes the samples of key. Timepoint and channel are ignored.
func (p *Producer) Produce(ctx context.Context, key chunk.Key) (*chunk.Samples, error) {
	box, err := p.geom.ChunkBounds(key.Level, key.Coord)
	if err != nil {
		return nil, err
	}
	dims, _ := p.geom.Dimensions(key.Level)
	finest := p.geom.Finest()

	// Per axis: index -> [-1, 1] relative to the finest level.
	var scale, center [3]float64
	for i, pair := range [3][2]int64{{finest.X, dims.X}, {finest.Y, dims.Y}, {finest.Z, dims.Z}} {
		scale[i] = float64(pair[0]) / float64(pair[1])
		center[i] = float64(pair[0]) / 2
	}

	size := box.Size
	data := make([]uint16, size.Elements())
	i := 0
	for z := range size.Z {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cz := (float64(z+box.Min.Z)*scale[2] - center[2]) / center[2]
		for y := range size.Y {
			cy := (float64(y+box.Min.Y)*scale[1] - center[1]) / center[1]
			for x := range size.X {
				cx := (float64(x+box.Min.X)*scale[0] - center[0]) / center[0]
				n := p.iterate(cx, cy, cz)
				data[i] = uint16(float64(n) * chunk.MaxValue / float64(p.maxIter))
				i++
			}
		}
	}
	return chunk.NewSamples(size, data)
}

// iterate returns the escape count of the point c in spherical Mandelbulb
// coordinates.
func (p *Producer) iterate(cx, cy, cz float64) int {
	var x, y, z float64
	n := 0
	for n < p.maxIter && x*x+y*y+z*z < bailout {
		r := math.Sqrt(x*x + y*y + z*z)
		theta := math.Atan2(math.Sqrt(x*x+y*y), z) * p.order
		phi := math.Atan2(y, x) * p.order
		rn := math.Pow(r, p.order)

		sinTheta := math.Sin(theta)
		x = rn*sinTheta*math.Cos(phi) + cx
		y = rn*sinTheta*math.Sin(phi) + cy
		z = rn*math.Cos(theta) + cz
		n++
	}
	return n
}
