package volcache

import (
	"time"

	"github.com/hupe1980/volcache/cache"
	"github.com/hupe1980/volcache/pyramid"
	"github.com/hupe1980/volcache/resource"
)

// DefaultRegionConcurrency bounds the parallel chunk requests of
// EnsureRegionBlocking.
const DefaultRegionConcurrency = 8

// FocalPriorityWeight is the priority distance between adjacent levels.
// Chunks one level away from the focal level load after every chunk within
// FocalPriorityWeight chunks of the region centre on the focal level.
const FocalPriorityWeight = 1024

type options struct {
	logger            *Logger
	metricsCollector  MetricsCollector
	cacheOptions      []cache.Option
	rc                *resource.Controller
	focalLevel        int
	timepoint         int
	channel           int
	regionConcurrency int
	minScale          float64
}

// Option configures a Source.
type Option func(*options)

// WithLogger sets the logger. Defaults to NoopLogger.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetricsCollector sets the metrics collector. It also observes the
// cache engine.
func WithMetricsCollector(m MetricsCollector) Option {
	return func(o *options) {
		if m != nil {
			o.metricsCollector = m
		}
	}
}

// WithWorkers sets the size of the cache worker pool.
func WithWorkers(n int) Option {
	return WithCacheOptions(cache.WithWorkers(n))
}

// WithMaxResidentChunks bounds the number of resident chunks.
func WithMaxResidentChunks(n int) Option {
	return WithCacheOptions(cache.WithMaxResidentChunks(n))
}

// WithMaxResidentBytes bounds the sample bytes of resident chunks.
func WithMaxResidentBytes(b int64) Option {
	return WithCacheOptions(cache.WithMaxResidentBytes(b))
}

// WithBlockingWait sets how long a blocking request waits for a worker
// before producing on the calling goroutine.
func WithBlockingWait(d time.Duration) Option {
	return WithCacheOptions(cache.WithBlockingWait(d))
}

// WithCacheOptions passes options through to the cache engine.
func WithCacheOptions(opts ...cache.Option) Option {
	return func(o *options) {
		o.cacheOptions = append(o.cacheOptions, opts...)
	}
}

// WithResourceController accounts resident memory in rc. Share one
// controller between sources to enforce a process-wide soft limit.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.rc = rc
	}
}

// WithFocalLevel sets the initial focal level.
func WithFocalLevel(level int) Option {
	return func(o *options) {
		o.focalLevel = level
	}
}

// WithTimepoint sets the initial timepoint.
func WithTimepoint(t int) Option {
	return func(o *options) {
		o.timepoint = t
	}
}

// WithChannel sets the initial channel.
func WithChannel(c int) Option {
	return func(o *options) {
		o.channel = c
	}
}

// WithRegionConcurrency bounds the parallel chunk requests of
// EnsureRegionBlocking.
func WithRegionConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.regionConcurrency = n
		}
	}
}

// WithMinScale sets the scale floor of generated pyramids (NewProcedural).
func WithMinScale(s float64) Option {
	return func(o *options) {
		if s > 0 {
			o.minScale = s
		}
	}
}

func defaultOptions() options {
	return options{
		logger:            NoopLogger(),
		metricsCollector:  NoopMetricsCollector{},
		regionConcurrency: DefaultRegionConcurrency,
		minScale:          pyramid.DefaultMinScale,
	}
}
