package cache

import "time"

// MetricsObserver receives cache events.
type MetricsObserver interface {
	// OnLoad is called when a production attempt completes.
	OnLoad(level int, duration time.Duration, err error)

	// OnHit is called when a request is served from a resident chunk.
	OnHit(level int)

	// OnMiss is called when a request finds no resident chunk.
	OnMiss(level int)

	// OnEviction reports evicted chunks.
	OnEviction(n int)

	// OnQueueDepth reports the number of pending loads.
	OnQueueDepth(depth int)
}

// NoopMetricsObserver is a no-op implementation of MetricsObserver.
type NoopMetricsObserver struct{}

func (NoopMetricsObserver) OnLoad(level int, duration time.Duration, err error) {}
func (NoopMetricsObserver) OnHit(level int)                                     {}
func (NoopMetricsObserver) OnMiss(level int)                                    {}
func (NoopMetricsObserver) OnEviction(n int)                                    {}
func (NoopMetricsObserver) OnQueueDepth(depth int)                              {}
