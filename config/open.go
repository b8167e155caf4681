package config

import (
	"context"
	"fmt"
	"os"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hupe1980/volcache"
	"github.com/hupe1980/volcache/blobstore"
	"github.com/hupe1980/volcache/blobstore/minio"
	"github.com/hupe1980/volcache/blobstore/s3"
	"github.com/hupe1980/volcache/producer/procedural"
	"github.com/hupe1980/volcache/producer/remote"
	"github.com/hupe1980/volcache/pyramid"
	"github.com/hupe1980/volcache/resource"
)

// Logger builds the logger described by the log section.
func (c Config) Logger() *volcache.Logger {
	lvl, err := c.Log.level()
	if err != nil {
		return volcache.NewTextLogger(lvl)
	}
	if c.Log.Format == "json" {
		return volcache.NewJSONLogger(lvl)
	}
	return volcache.NewTextLogger(lvl)
}

// ResourceController builds the controller shared by the cache, the object
// cache and the remote producer.
func (c Config) ResourceController() *resource.Controller {
	return resource.NewController(resource.Config{
		MemoryLimitBytes:   c.Cache.MemoryLimitBytes,
		MaxFetches:         c.Remote.FetchConcurrency,
		IOLimitBytesPerSec: c.Remote.IOLimitBytesPerSec,
	})
}

// SourceOptions translates the cache section and the initial view state into
// Source options.
func (c Config) SourceOptions(rc *resource.Controller, logger *volcache.Logger) []volcache.Option {
	opts := []volcache.Option{
		volcache.WithLogger(logger),
		volcache.WithResourceController(rc),
		volcache.WithFocalLevel(c.FocalLevel),
		volcache.WithTimepoint(c.Timepoint),
		volcache.WithChannel(c.Channel),
	}
	if c.Cache.Workers > 0 {
		opts = append(opts, volcache.WithWorkers(c.Cache.Workers))
	}
	if c.Cache.MaxResidentChunks > 0 {
		opts = append(opts, volcache.WithMaxResidentChunks(c.Cache.MaxResidentChunks))
	}
	if c.Cache.MaxResidentBytes > 0 {
		opts = append(opts, volcache.WithMaxResidentBytes(c.Cache.MaxResidentBytes))
	}
	if c.Cache.BlockingWait > 0 {
		opts = append(opts, volcache.WithBlockingWait(c.Cache.BlockingWait))
	}
	if c.Procedural.MinScale > 0 {
		opts = append(opts, volcache.WithMinScale(c.Procedural.MinScale))
	}
	return opts
}

// Open builds the Source described by c. extra options are applied last.
func (c Config) Open(ctx context.Context, extra ...volcache.Option) (*volcache.Source, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	logger := c.Logger()
	rc := c.ResourceController()
	opts := append(c.SourceOptions(rc, logger), extra...)

	switch c.Source.Kind {
	case KindProcedural:
		return volcache.NewProcedural(c.Procedural.Dimensions, pyramid.Cube(c.Procedural.ChunkSize), procedural.Config{
			MaxIterations: c.Procedural.MaxIterations,
			Order:         c.Procedural.Order,
		}, opts...)
	default:
		store, err := c.Remote.OpenStore(ctx, rc)
		if err != nil {
			return nil, err
		}
		return volcache.OpenRemote(ctx, store, c.Remote.producerOptions(rc, logger), opts...)
	}
}

func (r RemoteConfig) producerOptions(rc *resource.Controller, logger *volcache.Logger) []remote.Option {
	opts := []remote.Option{
		remote.WithResourceController(rc),
		remote.WithLogger(logger.Logger),
	}
	if r.Levels > 0 {
		opts = append(opts, remote.WithLevels(r.Levels))
	}
	if r.Codec != "" {
		opts = append(opts, remote.WithCodec(r.Codec))
	}
	if r.NetworkTimeout > 0 {
		opts = append(opts, remote.WithNetworkTimeout(r.NetworkTimeout))
	}
	if r.MinScale > 0 {
		opts = append(opts, remote.WithMinScale(r.MinScale))
	}
	return opts
}

// OpenStore connects to the configured blob store. With disk_cache_dir set,
// fetched objects are kept on local disk. With object_cache_bytes set, the
// store is wrapped in a CachingStore accounted in rc.
func (r RemoteConfig) OpenStore(ctx context.Context, rc *resource.Controller) (blobstore.Store, error) {
	var (
		store blobstore.Store
		err   error
	)
	switch r.Store {
	case StoreHTTP:
		store, err = blobstore.NewHTTPStore(r.URL)
	case StoreLocal:
		if _, statErr := os.Stat(r.Path); statErr != nil {
			return nil, fmt.Errorf("%w: %w", volcache.ErrMetadataFetchFailed, statErr)
		}
		store = blobstore.NewLocalStore(r.Path)
	case StoreS3:
		var opts []s3.Option
		if r.Prefix != "" {
			opts = append(opts, s3.WithPrefix(r.Prefix))
		}
		if r.Region != "" {
			opts = append(opts, s3.WithRegion(r.Region))
		}
		if r.Endpoint != "" {
			opts = append(opts, s3.WithEndpoint(r.Endpoint))
		}
		store, err = s3.New(ctx, r.Bucket, opts...)
	case StoreMinio:
		store, err = r.openMinio()
	default:
		return nil, fmt.Errorf("%w: remote.store %q", ErrInvalidConfig, r.Store)
	}
	if err != nil {
		return nil, err
	}

	if r.DiskCacheDir != "" {
		store, err = blobstore.NewDiskCachingStore(store, blobstore.DiskCacheConfig{
			RootDir:      r.DiskCacheDir,
			MaxSizeBytes: r.DiskCacheBytes,
		})
		if err != nil {
			return nil, err
		}
	}
	if r.ObjectCacheBytes > 0 {
		store = blobstore.NewCachingStore(store, r.ObjectCacheBytes, rc)
	}
	return store, nil
}

func (r RemoteConfig) openMinio() (*minio.Store, error) {
	creds := credentials.NewEnvMinio()
	if r.AccessKey != "" {
		creds = credentials.NewStaticV4(r.AccessKey, r.SecretKey, "")
	}
	client, err := miniogo.New(r.Endpoint, &miniogo.Options{
		Creds:  creds,
		Secure: !r.Insecure,
		Region: r.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio: %w", err)
	}
	return minio.NewStore(client, r.Bucket, r.Prefix), nil
}
