package cache

import (
	"log/slog"
	"runtime"
	"time"

	"github.com/hupe1980/volcache/resource"
)

const (
	// DefaultBlockingWait is how long GetBlocking waits for a worker before
	// producing on the calling goroutine.
	DefaultBlockingWait = 50 * time.Millisecond

	// DefaultEventBuffer is the channel capacity of a subscription.
	DefaultEventBuffer = 256

	// DefaultCancelGrace is how long a queued load survives after its last
	// budgeted view is released.
	DefaultCancelGrace = 250 * time.Millisecond
)

type options struct {
	workers      int
	maxChunks    int
	maxBytes     int64
	blockingWait time.Duration
	logger       *slog.Logger
	metrics      MetricsObserver
	rc           *resource.Controller
	eventBuffer  int
	cancelGrace  time.Duration
}

// Option configures a Cache.
type Option func(*options)

// WithWorkers sets the worker pool size. Defaults to GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithMaxResidentChunks bounds the number of resident chunks. 0 means no bound.
func WithMaxResidentChunks(n int) Option {
	return func(o *options) {
		o.maxChunks = max(n, 0)
	}
}

// WithMaxResidentBytes bounds the sample bytes held by resident chunks.
// 0 means no bound.
func WithMaxResidentBytes(b int64) Option {
	return func(o *options) {
		o.maxBytes = max(b, 0)
	}
}

// WithBlockingWait sets the bounded wait of GetBlocking before it falls back
// to producing on the calling goroutine.
func WithBlockingWait(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.blockingWait = d
		}
	}
}

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMetricsObserver sets the metrics observer.
func WithMetricsObserver(m MetricsObserver) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithResourceController accounts resident memory in rc. While rc is over
// its memory limit the cache evicts down to its pinned set.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.rc = rc
	}
}

// WithCancelGrace sets how long a queued load nobody wants any more stays
// queued. A load requested again within the grace period is kept; one popped
// by a worker after it is dropped unproduced. 0 cancels on release.
func WithCancelGrace(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.cancelGrace = d
		}
	}
}

// WithEventBuffer sets the channel capacity of subscriptions.
func WithEventBuffer(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.eventBuffer = n
		}
	}
}

func defaultOptions() options {
	return options{
		workers:      runtime.GOMAXPROCS(0),
		blockingWait: DefaultBlockingWait,
		metrics:      NoopMetricsObserver{},
		eventBuffer:  DefaultEventBuffer,
		cancelGrace:  DefaultCancelGrace,
	}
}
