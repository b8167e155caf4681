package remote

import (
	"context"
	"fmt"
	"strconv"

	"github.com/hupe1980/volcache/blobstore"
	"github.com/hupe1980/volcache/chunk"
	"github.com/hupe1980/volcache/codec"
	"github.com/hupe1980/volcache/pyramid"
)

// Writer stores chunks in the layout Producer reads. Arrays are written
// coarsest level first, one timepoint and channel per stored chunk.
type Writer struct {
	store blobstore.WritableStore
	codec codec.Codec
}

// NewWriter returns a Writer compressing chunks with c. A nil codec stores
// chunks uncompressed.
func NewWriter(store blobstore.WritableStore, c codec.Codec) *Writer {
	if c == nil {
		c = codec.Raw{}
	}
	return &Writer{store: store, codec: c}
}

// WriteMeta stores the metadata of level.
func (w *Writer) WriteMeta(ctx context.Context, l int, meta *ArrayMeta) error {
	data, err := meta.Marshal()
	if err != nil {
		return err
	}
	return w.store.Put(ctx, strconv.Itoa(l)+"/"+MetadataKey, data)
}

// WriteChunk encodes s and stores it as the chunk of key.
func (w *Writer) WriteChunk(ctx context.Context, meta *ArrayMeta, key chunk.Key, s *chunk.Samples) error {
	if ct, cc := meta.leading(); ct != 1 || cc != 1 {
		return fmt.Errorf("remote: cannot write chunks spanning %d timepoints and %d channels", ct, cc)
	}
	_, disk := meta.Spatial()
	if s.Dims() != disk {
		return fmt.Errorf("%w: samples %s, stored chunk %s", chunk.ErrSizeMismatch, s.Dims(), disk)
	}

	payload, err := w.codec.Encode(s.AppendBytes(nil, meta.ByteOrder()))
	if err != nil {
		return err
	}

	box := pyramid.Box{
		Min:  pyramid.Size3{X: key.Coord.X * disk.X, Y: key.Coord.Y * disk.Y, Z: key.Coord.Z * disk.Z},
		Size: disk,
	}
	lv := level{path: strconv.Itoa(key.Level), meta: meta}
	return w.store.Put(ctx, objectKey(lv, key, box), payload)
}
