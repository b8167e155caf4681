package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/volcache/blobstore"
	"github.com/hupe1980/volcache/chunk"
	"github.com/hupe1980/volcache/codec"
	"github.com/hupe1980/volcache/pyramid"
	"github.com/hupe1980/volcache/resource"
)

// maxDiscoveredLevels bounds level discovery against stores that never
// report a missing key.
const maxDiscoveredLevels = 32

// level is one array of the pyramid as stored.
type level struct {
	path  string
	meta  *ArrayMeta
	codec codec.Codec
}

// Producer fetches chunks of a Zarr v2 multiscale array from a blob store.
type Producer struct {
	store   blobstore.Store
	geom    *pyramid.Geometry
	levels  []level
	timeout time.Duration
	rc      *resource.Controller
	logger  *slog.Logger
}

var _ chunk.Producer = (*Producer)(nil)

// New loads the metadata of every level and returns a Producer.
//
// Levels are ordered coarsest first regardless of how the store numbers
// them. Any failure is reported as chunk.ErrMetadataFetchFailed.
func New(ctx context.Context, store blobstore.Store, optFns ...Option) (*Producer, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: nil store", chunk.ErrMetadataFetchFailed)
	}
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	logger := opts.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var (
		metas []*ArrayMeta
		err   error
	)
	if opts.levels > 0 {
		metas, err = fetchLevels(ctx, store, opts.levels)
	} else {
		metas, err = discoverLevels(ctx, store)
	}
	if err != nil {
		return nil, err
	}

	levels := make([]level, len(metas))
	for i, m := range metas {
		name := m.CodecID()
		if opts.codec != "" {
			name = opts.codec
		}
		c, err := codec.ByName(name)
		if err != nil {
			return nil, fmt.Errorf("%w: level %d: %w", chunk.ErrMetadataFetchFailed, i, err)
		}
		levels[i] = level{path: strconv.Itoa(i), meta: m, codec: c}
	}

	// Stores commonly number the finest array 0.
	first, _ := levels[0].meta.Spatial()
	last, _ := levels[len(levels)-1].meta.Spatial()
	if first.Elements() > last.Elements() {
		slices.Reverse(levels)
	}

	descs := make([]pyramid.LevelDescriptor, len(levels))
	for l, lv := range levels {
		dims, chunkSize := lv.meta.Spatial()
		s := pyramid.LevelScale(l, opts.minScale)
		descs[l] = pyramid.LevelDescriptor{
			Dimensions: dims,
			ChunkSize:  chunkSize,
			Transform:  pyramid.Scaling(s, s, s),
		}
	}
	geom, err := pyramid.NewGeometry(descs)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", chunk.ErrMetadataFetchFailed, err)
	}

	logger.Debug("remote pyramid loaded", "levels", len(levels), "finest", geom.Finest().String())

	return &Producer{
		store:   store,
		geom:    geom,
		levels:  levels,
		timeout: opts.timeout,
		rc:      opts.rc,
		logger:  logger,
	}, nil
}

func fetchMeta(ctx context.Context, store blobstore.Store, path string) (*ArrayMeta, error) {
	data, err := store.Get(ctx, path+"/"+MetadataKey)
	if err != nil {
		return nil, err
	}
	m, err := ParseArrayMeta(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", chunk.ErrMetadataFetchFailed, path, err)
	}
	return m, nil
}

func fetchLevels(ctx context.Context, store blobstore.Store, n int) ([]*ArrayMeta, error) {
	metas := make([]*ArrayMeta, n)
	g, gctx := errgroup.WithContext(ctx)
	for i := range n {
		g.Go(func() error {
			m, err := fetchMeta(gctx, store, strconv.Itoa(i))
			if err != nil {
				if errors.Is(err, chunk.ErrMetadataFetchFailed) {
					return err
				}
				return fmt.Errorf("%w: level %d: %w", chunk.ErrMetadataFetchFailed, i, err)
			}
			metas[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return metas, nil
}

func discoverLevels(ctx context.Context, store blobstore.Store) ([]*ArrayMeta, error) {
	var metas []*ArrayMeta
	for i := range maxDiscoveredLevels {
		m, err := fetchMeta(ctx, store, strconv.Itoa(i))
		if err != nil {
			if errors.Is(err, blobstore.ErrNotFound) && i > 0 {
				break
			}
			if errors.Is(err, chunk.ErrMetadataFetchFailed) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: level %d: %w", chunk.ErrMetadataFetchFailed, i, err)
		}
		metas = append(metas, m)
	}
	return metas, nil
}

// Geometry returns the pyramid described by the store.
func (p *Producer) Geometry() *pyramid.Geometry {
	return p.geom
}

// Meta returns the array metadata of level.
func (p *Producer) Meta(l int) (*ArrayMeta, error) {
	if l < 0 || l >= len(p.levels) {
		return nil, fmt.Errorf("%w: %d", pyramid.ErrLevelOutOfRange, l)
	}
	return p.levels[l].meta, nil
}

// ObjectKey returns the store key of the on-disk chunk holding key.
func (p *Producer) ObjectKey(key chunk.Key) (string, error) {
	lv, box, err := p.locate(key)
	if err != nil {
		return "", err
	}
	return objectKey(lv, key, box), nil
}

func (p *Producer) locate(key chunk.Key) (level, pyramid.Box, error) {
	box, err := p.geom.ChunkBounds(key.Level, key.Coord)
	if err != nil {
		return level{}, pyramid.Box{}, err
	}
	lv := p.levels[key.Level]
	if key.Timepoint < 0 || int64(key.Timepoint) >= lv.meta.Timepoints() {
		return level{}, pyramid.Box{}, fmt.Errorf("%w: timepoint %d", pyramid.ErrChunkCoordOutOfRange, key.Timepoint)
	}
	if key.Channel < 0 || int64(key.Channel) >= lv.meta.Channels() {
		return level{}, pyramid.Box{}, fmt.Errorf("%w: channel %d", pyramid.ErrChunkCoordOutOfRange, key.Channel)
	}
	return lv, box, nil
}

func objectKey(lv level, key chunk.Key, box pyramid.Box) string {
	_, disk := lv.meta.Spatial()
	ct, cc := lv.meta.leading()

	addr := make([]string, 0, 5)
	if len(lv.meta.Shape) == 5 {
		addr = append(addr,
			strconv.FormatInt(int64(key.Timepoint)/ct, 10),
			strconv.FormatInt(int64(key.Channel)/cc, 10))
	}
	addr = append(addr,
		strconv.FormatInt(box.Min.Z/disk.Z, 10),
		strconv.FormatInt(box.Min.Y/disk.Y, 10),
		strconv.FormatInt(box.Min.X/disk.X, 10))

	return lv.path + "/" + strings.Join(addr, lv.meta.Separator())
}

// Produce fetches, decompresses and validates the chunk of key.
func (p *Producer) Produce(ctx context.Context, key chunk.Key) (*chunk.Samples, error) {
	lv, box, err := p.locate(key)
	if err != nil {
		return nil, err
	}
	objKey := objectKey(lv, key, box)

	if err := p.rc.AcquireFetch(ctx); err != nil {
		return nil, err
	}
	var s *chunk.Samples
	err = p.fetch(ctx, objKey, func(payload []byte) error {
		if err := p.rc.AcquireIO(ctx, len(payload)); err != nil {
			return err
		}
		var derr error
		s, derr = p.decode(lv, key, box, objKey, payload)
		return derr
	})
	p.rc.ReleaseFetch()
	if err != nil {
		return nil, err
	}
	return s, nil
}

// decode turns one stored object into the samples of key. payload may be
// lent by the store and is not retained.
func (p *Producer) decode(lv level, key chunk.Key, box pyramid.Box, objKey string, payload []byte) (*chunk.Samples, error) {
	ct, cc := lv.meta.leading()
	slab := box.Size.Elements() * chunk.ElementSize
	want := int(ct * cc * slab)

	raw, err := lv.codec.Decode(payload, want)
	if err != nil {
		return nil, &chunk.ProduceError{Key: key, Err: fmt.Errorf("%w: %s: %w", chunk.ErrDecompressionFailed, lv.codec.Name(), err)}
	}
	if len(raw) != want {
		return nil, &chunk.ProduceError{Key: key, Err: fmt.Errorf("%w: %s decoded to %d bytes, want %d", chunk.ErrSizeMismatch, objKey, len(raw), want)}
	}

	// Stored chunks may span several timepoints or channels.
	off := ((int64(key.Timepoint)%ct)*cc + int64(key.Channel)%cc) * slab
	s, err := chunk.DecodeSamples(box.Size, raw[off:off+slab], lv.meta.ByteOrder())
	if err != nil {
		return nil, &chunk.ProduceError{Key: key, Err: err}
	}

	p.logger.Debug("chunk fetched", "key", key.String(), "object", objKey, "bytes", len(payload))
	return s, nil
}

// fetch hands the object at objKey to fn. Stores implementing
// blobstore.Viewer lend it without a copy. Errors from fn are returned
// unwrapped; store errors become network failures.
func (p *Producer) fetch(ctx context.Context, objKey string, fn func([]byte) error) error {
	fctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var fnErr error
	visit := func(b []byte) error {
		fnErr = fn(b)
		return nil
	}

	var err error
	if v, ok := p.store.(blobstore.Viewer); ok {
		err = v.View(fctx, objKey, visit)
	} else {
		var data []byte
		if data, err = p.store.Get(fctx, objKey); err == nil {
			err = visit(data)
		}
	}
	if err != nil {
		// The caller giving up is not a network failure.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s: %w", chunk.ErrNetworkFailed, objKey, err)
	}
	return fnErr
}
