package remote

import (
	"log/slog"
	"time"

	"github.com/hupe1980/volcache/pyramid"
	"github.com/hupe1980/volcache/resource"
)

// DefaultNetworkTimeout bounds a single chunk fetch.
const DefaultNetworkTimeout = 30 * time.Second

type options struct {
	levels   int
	codec    string
	timeout  time.Duration
	rc       *resource.Controller
	minScale float64
	logger   *slog.Logger
}

// Option configures a Producer.
type Option func(*options)

// WithLevels fixes the number of pyramid levels. By default levels are
// discovered by probing "0/.zarray", "1/.zarray", ... until one is missing.
func WithLevels(n int) Option {
	return func(o *options) {
		o.levels = n
	}
}

// WithCodec overrides the compressor declared in the array metadata.
func WithCodec(name string) Option {
	return func(o *options) {
		o.codec = name
	}
}

// WithNetworkTimeout sets the per-request timeout. Expiry is reported as
// chunk.ErrNetworkFailed.
func WithNetworkTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithResourceController caps concurrent fetches and rate-limits read IO.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.rc = rc
	}
}

// WithMinScale sets the scale floor of the level transforms.
func WithMinScale(s float64) Option {
	return func(o *options) {
		o.minScale = s
	}
}

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

func defaultOptions() options {
	return options{
		timeout:  DefaultNetworkTimeout,
		minScale: pyramid.DefaultMinScale,
	}
}
