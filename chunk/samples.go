package chunk

import (
	"encoding/binary"
	"fmt"
	"slices"

	"github.com/hupe1980/volcache/pyramid"
)

// ElementSize is the size in bytes of one sample.
const ElementSize = 2

// MaxValue is the largest sample value.
const MaxValue = 65535

// Samples is the immutable data of one chunk: Dims.X*Dims.Y*Dims.Z unsigned
// 16-bit samples, x varying fastest.
//
// A Samples value is shared read-only between all readers; the slice returned
// by Data must never be modified.
type Samples struct {
	dims pyramid.Size3
	data []uint16
}

// NewSamples takes ownership of data. len(data) must equal dims.Elements().
func NewSamples(dims pyramid.Size3, data []uint16) (*Samples, error) {
	if !dims.Positive() {
		return nil, fmt.Errorf("%w: dims %s", ErrSizeMismatch, dims)
	}
	if int64(len(data)) != dims.Elements() {
		return nil, fmt.Errorf("%w: got %d samples, want %d", ErrSizeMismatch, len(data), dims.Elements())
	}
	return &Samples{dims: dims, data: data}, nil
}

// DecodeSamples decodes raw bytes in the given byte order. The payload must be
// exactly dims.Elements()*ElementSize bytes long.
func DecodeSamples(dims pyramid.Size3, raw []byte, order binary.ByteOrder) (*Samples, error) {
	want := dims.Elements() * ElementSize
	if int64(len(raw)) != want {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrSizeMismatch, len(raw), want)
	}
	data := make([]uint16, dims.Elements())
	for i := range data {
		data[i] = order.Uint16(raw[i*ElementSize:])
	}
	return NewSamples(dims, data)
}

// Dims returns the chunk extents.
func (s *Samples) Dims() pyramid.Size3 {
	return s.dims
}

// Len returns the number of samples.
func (s *Samples) Len() int {
	return len(s.data)
}

// SizeBytes returns the memory footprint of the sample buffer.
func (s *Samples) SizeBytes() int64 {
	return int64(len(s.data)) * ElementSize
}

// Index returns the linear index of the local position (x, y, z).
func (s *Samples) Index(x, y, z int64) int {
	return int(x + s.dims.X*(y+s.dims.Y*z))
}

// At returns the sample at local position (x, y, z).
func (s *Samples) At(x, y, z int64) uint16 {
	return s.data[s.Index(x, y, z)]
}

// Data returns the underlying buffer. Callers must treat it as read-only.
func (s *Samples) Data() []uint16 {
	return s.data
}

// AppendBytes appends the samples to dst in the given byte order.
func (s *Samples) AppendBytes(dst []byte, order binary.ByteOrder) []byte {
	n := len(dst)
	dst = slices.Grow(dst, len(s.data)*ElementSize)[:n+len(s.data)*ElementSize]
	for i, v := range s.data {
		order.PutUint16(dst[n+i*ElementSize:], v)
	}
	return dst
}
