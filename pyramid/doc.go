// Package pyramid describes the shape of a multi-resolution chunked volume.
//
// A Geometry is an ordered list of levels. Level 0 is the coarsest; every
// following level has at least as many samples per axis as the one before
// it (monotonic refinement). Each level is split into a regular grid of
// equally sized chunks and carries an affine transform that maps sample
// indices into world space.
//
//	geom, _ := pyramid.Uniform([]int64{8, 16, 32}, pyramid.Cube(8), pyramid.DefaultMinScale)
//	grid, _ := geom.GridDimensions(2)            // {4 4 4}
//	box, _ := geom.ChunkBounds(2, pyramid.ChunkCoord{X: 1})
//
// Geometry values are immutable and safe for concurrent use.
package pyramid
