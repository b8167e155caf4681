package volcache

import (
	"sync/atomic"
	"time"

	"github.com/hupe1980/volcache/cache"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems; package
// metrics/prometheus provides a Prometheus implementation.
//
// The embedded cache.MetricsObserver receives chunk-level events from the
// cache engine.
type MetricsCollector interface {
	cache.MetricsObserver

	// RecordRegion is called after each region request. requested is the
	// number of overlapping chunks, ready the number served.
	RecordRegion(level, requested, ready int, duration time.Duration)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct {
	cache.NoopMetricsObserver
}

func (NoopMetricsCollector) RecordRegion(int, int, int, time.Duration) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	LoadCount        atomic.Int64
	LoadErrors       atomic.Int64
	LoadTotalNanos   atomic.Int64
	HitCount         atomic.Int64
	MissCount        atomic.Int64
	EvictionCount    atomic.Int64
	QueueDepth       atomic.Int64
	RegionCount      atomic.Int64
	RegionRequested  atomic.Int64
	RegionReady      atomic.Int64
	RegionTotalNanos atomic.Int64
}

// OnLoad implements cache.MetricsObserver.
func (b *BasicMetricsCollector) OnLoad(_ int, duration time.Duration, err error) {
	b.LoadCount.Add(1)
	b.LoadTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.LoadErrors.Add(1)
	}
}

// OnHit implements cache.MetricsObserver.
func (b *BasicMetricsCollector) OnHit(int) { b.HitCount.Add(1) }

// OnMiss implements cache.MetricsObserver.
func (b *BasicMetricsCollector) OnMiss(int) { b.MissCount.Add(1) }

// OnEviction implements cache.MetricsObserver.
func (b *BasicMetricsCollector) OnEviction(n int) { b.EvictionCount.Add(int64(n)) }

// OnQueueDepth implements cache.MetricsObserver.
func (b *BasicMetricsCollector) OnQueueDepth(depth int) { b.QueueDepth.Store(int64(depth)) }

// RecordRegion implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRegion(_, requested, ready int, duration time.Duration) {
	b.RegionCount.Add(1)
	b.RegionRequested.Add(int64(requested))
	b.RegionReady.Add(int64(ready))
	b.RegionTotalNanos.Add(duration.Nanoseconds())
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		LoadCount:       b.LoadCount.Load(),
		LoadErrors:      b.LoadErrors.Load(),
		LoadAvgNanos:    avg(b.LoadTotalNanos.Load(), b.LoadCount.Load()),
		HitCount:        b.HitCount.Load(),
		MissCount:       b.MissCount.Load(),
		EvictionCount:   b.EvictionCount.Load(),
		QueueDepth:      b.QueueDepth.Load(),
		RegionCount:     b.RegionCount.Load(),
		RegionRequested: b.RegionRequested.Load(),
		RegionReady:     b.RegionReady.Load(),
		RegionAvgNanos:  avg(b.RegionTotalNanos.Load(), b.RegionCount.Load()),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	LoadCount       int64
	LoadErrors      int64
	LoadAvgNanos    int64
	HitCount        int64
	MissCount       int64
	EvictionCount   int64
	QueueDepth      int64
	RegionCount     int64
	RegionRequested int64
	RegionReady     int64
	RegionAvgNanos  int64
}
