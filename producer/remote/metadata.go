package remote

import (
	"bytes"
	_ "embed"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hupe1980/volcache/pyramid"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// MetadataKey is the name of the per-level array metadata document.
const MetadataKey = ".zarray"

//go:embed zarray.schema.json
var zarraySchema string

var arraySchema = jsonschema.MustCompileString("zarray.schema.json", zarraySchema)

// CompressorMeta identifies the block codec of an array.
type CompressorMeta struct {
	ID string `json:"id"`
}

// ArrayMeta is the Zarr v2 metadata of one pyramid level. Shapes are either
// five-dimensional (t, c, z, y, x) or three-dimensional (z, y, x).
type ArrayMeta struct {
	ZarrFormat         int               `json:"zarr_format"`
	Shape              []int64           `json:"shape"`
	Chunks             []int64           `json:"chunks"`
	Dtype              string            `json:"dtype"`
	Compressor         *CompressorMeta   `json:"compressor"`
	FillValue          any               `json:"fill_value"`
	Order              string            `json:"order,omitempty"`
	Filters            []json.RawMessage `json:"filters"`
	DimensionSeparator string            `json:"dimension_separator,omitempty"`
}

// NewArrayMeta describes a C-ordered uint16 array of the given spatial
// dimensions with timepoints*channels leading slices of one chunk each.
func NewArrayMeta(dims, chunk pyramid.Size3, timepoints, channels int64, compressor string) *ArrayMeta {
	m := &ArrayMeta{
		ZarrFormat:         2,
		Shape:              []int64{timepoints, channels, dims.Z, dims.Y, dims.X},
		Chunks:             []int64{1, 1, chunk.Z, chunk.Y, chunk.X},
		Dtype:              "<u2",
		FillValue:          0,
		Order:              "C",
		DimensionSeparator: "/",
	}
	if compressor != "" && compressor != "raw" {
		m.Compressor = &CompressorMeta{ID: compressor}
	}
	return m
}

// ParseArrayMeta validates and decodes a .zarray document.
func ParseArrayMeta(data []byte) (*ArrayMeta, error) {
	var doc any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := arraySchema.Validate(doc); err != nil {
		return nil, err
	}

	var m ArrayMeta
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *ArrayMeta) validate() error {
	if len(m.Shape) != len(m.Chunks) {
		return fmt.Errorf("shape has %d dimensions, chunks %d", len(m.Shape), len(m.Chunks))
	}
	if len(m.Shape) != 3 && len(m.Shape) != 5 {
		return fmt.Errorf("unsupported rank %d", len(m.Shape))
	}
	if m.Order == "F" {
		return errors.New("column-major order is not supported")
	}
	if len(m.Filters) > 0 {
		return errors.New("filters are not supported")
	}
	return nil
}

// Spatial returns the spatial array and chunk extents.
func (m *ArrayMeta) Spatial() (dims, chunk pyramid.Size3) {
	n := len(m.Shape)
	dims = pyramid.Size3{X: m.Shape[n-1], Y: m.Shape[n-2], Z: m.Shape[n-3]}
	chunk = pyramid.Size3{X: m.Chunks[n-1], Y: m.Chunks[n-2], Z: m.Chunks[n-3]}
	return dims, chunk
}

// Timepoints returns the extent of the time axis (1 for 3D arrays).
func (m *ArrayMeta) Timepoints() int64 {
	if len(m.Shape) == 5 {
		return m.Shape[0]
	}
	return 1
}

// Channels returns the extent of the channel axis (1 for 3D arrays).
func (m *ArrayMeta) Channels() int64 {
	if len(m.Shape) == 5 {
		return m.Shape[1]
	}
	return 1
}

// leading returns the on-disk chunk extents of the time and channel axes.
func (m *ArrayMeta) leading() (t, c int64) {
	if len(m.Chunks) == 5 {
		return m.Chunks[0], m.Chunks[1]
	}
	return 1, 1
}

// CodecID returns the compressor identifier, or "" for uncompressed arrays.
func (m *ArrayMeta) CodecID() string {
	if m.Compressor == nil {
		return ""
	}
	return m.Compressor.ID
}

// Separator returns the chunk key separator.
func (m *ArrayMeta) Separator() string {
	if m.DimensionSeparator == "" {
		return "."
	}
	return m.DimensionSeparator
}

// ByteOrder returns the sample byte order declared by dtype.
func (m *ArrayMeta) ByteOrder() binary.ByteOrder {
	if len(m.Dtype) > 0 && m.Dtype[0] == '>' {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// Marshal encodes the metadata as a .zarray document.
func (m *ArrayMeta) Marshal() ([]byte, error) {
	return json.MarshalIndent(m, "", "    ")
}
