package volcache

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/hupe1980/volcache/blobstore"
	"github.com/hupe1980/volcache/cache"
	"github.com/hupe1980/volcache/chunk"
	"github.com/hupe1980/volcache/producer/procedural"
	"github.com/hupe1980/volcache/producer/remote"
	"github.com/hupe1980/volcache/pyramid"
)

// Source binds a pyramid geometry and a chunk cache into the query surface
// consumed by a renderer.
//
// A Source is safe for concurrent use.
type Source struct {
	geom     *pyramid.Geometry
	producer chunk.Producer
	cache    *cache.Cache
	opts     options
	logger   *Logger
	metrics  MetricsCollector

	focal     atomic.Int64
	timepoint atomic.Int64
	channel   atomic.Int64
}

// New creates a Source serving chunks of geom from producer.
func New(geom *pyramid.Geometry, producer chunk.Producer, optFns ...Option) (*Source, error) {
	if geom == nil {
		return nil, fmt.Errorf("%w: nil geometry", ErrInvalidGeometry)
	}
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	cacheOpts := append([]cache.Option{
		cache.WithLogger(opts.logger.Logger),
		cache.WithMetricsObserver(opts.metricsCollector),
		cache.WithResourceController(opts.rc),
	}, opts.cacheOptions...)

	c, err := cache.New(producer, cacheOpts...)
	if err != nil {
		return nil, err
	}

	s := &Source{
		geom:     geom,
		producer: producer,
		cache:    c,
		opts:     opts,
		logger:   opts.logger,
		metrics:  opts.metricsCollector,
	}
	if err := s.SetFocalLevel(opts.focalLevel); err != nil {
		_ = c.Close()
		return nil, err
	}
	if err := s.SetTimepoint(opts.timepoint); err != nil {
		_ = c.Close()
		return nil, err
	}
	if err := s.SetChannel(opts.channel); err != nil {
		_ = c.Close()
		return nil, err
	}
	return s, nil
}

// NewProcedural creates a Source over a Mandelbulb with cubic levels of
// the given edge lengths, coarsest first.
func NewProcedural(dims []int64, chunkSize pyramid.Size3, cfg procedural.Config, optFns ...Option) (*Source, error) {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	geom, err := pyramid.Uniform(dims, chunkSize, opts.minScale)
	if err != nil {
		return nil, err
	}
	p, err := procedural.New(geom, cfg)
	if err != nil {
		return nil, err
	}
	return New(geom, p, optFns...)
}

// OpenRemote creates a Source over a Zarr v2 multiscale array in store.
// Metadata failures are reported as ErrMetadataFetchFailed.
func OpenRemote(ctx context.Context, store blobstore.Store, remoteOpts []remote.Option, optFns ...Option) (*Source, error) {
	p, err := remote.New(ctx, store, remoteOpts...)
	if err != nil {
		return nil, err
	}
	return New(p.Geometry(), p, optFns...)
}

// Geometry returns the pyramid the source serves.
func (s *Source) Geometry() *pyramid.Geometry { return s.geom }

// Producer returns the chunk producer behind the cache.
func (s *Source) Producer() chunk.Producer { return s.producer }

// Cache returns the underlying chunk cache.
func (s *Source) Cache() *cache.Cache { return s.cache }

// Logger returns the source logger.
func (s *Source) Logger() *Logger { return s.logger }

// FocalLevel returns the level currently displayed.
func (s *Source) FocalLevel() int { return int(s.focal.Load()) }

// SetFocalLevel sets the level currently displayed. Budgeted requests for
// levels closer to it load first.
func (s *Source) SetFocalLevel(level int) error {
	if level < 0 || level >= s.geom.NumLevels() {
		return fmt.Errorf("%w: focal level %d not in [0, %d)", ErrLevelOutOfRange, level, s.geom.NumLevels())
	}
	s.focal.Store(int64(level))
	return nil
}

// Timepoint returns the timepoint used for region requests.
func (s *Source) Timepoint() int { return int(s.timepoint.Load()) }

// SetTimepoint sets the timepoint used for region requests.
func (s *Source) SetTimepoint(t int) error {
	if t < 0 {
		return fmt.Errorf("%w: timepoint %d", ErrInvalidArgument, t)
	}
	s.timepoint.Store(int64(t))
	return nil
}

// Channel returns the channel used for region requests.
func (s *Source) Channel() int { return int(s.channel.Load()) }

// SetChannel sets the channel used for region requests.
func (s *Source) SetChannel(c int) error {
	if c < 0 {
		return fmt.Errorf("%w: channel %d", ErrInvalidArgument, c)
	}
	s.channel.Store(int64(c))
	return nil
}

// Key returns the key of coord at level for the current timepoint and channel.
func (s *Source) Key(level int, coord pyramid.ChunkCoord) chunk.Key {
	return chunk.Key{
		Timepoint: s.Timepoint(),
		Channel:   s.Channel(),
		Level:     level,
		Coord:     coord,
	}
}

// GetChunk returns one chunk, producing it if needed. Range errors are
// reported before the cache is consulted.
func (s *Source) GetChunk(ctx context.Context, level int, coord pyramid.ChunkCoord) (*chunk.Samples, error) {
	if err := s.geom.CheckCoord(level, coord); err != nil {
		return nil, err
	}
	key := s.Key(level, coord)
	samples, err := s.cache.GetBlocking(ctx, key)
	s.logger.LogLoad(ctx, key, err)
	return samples, err
}

// Subscribe returns cache events; see cache.Cache.Subscribe.
func (s *Source) Subscribe() (<-chan cache.Event, func()) {
	return s.cache.Subscribe()
}

// Stats returns the cache counters.
func (s *Source) Stats() cache.Stats {
	return s.cache.Stats()
}

// Close stops the cache. Later calls return ErrClosed.
func (s *Source) Close() error {
	return s.cache.Close()
}
