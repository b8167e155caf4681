// Package prometheus exports volcache metrics through client_golang.
//
//	c := prometheus.NewCollector(prom.DefaultRegisterer)
//	src, _ := volcache.NewProcedural(dims, chunk, cfg, volcache.WithMetricsCollector(c))
//	http.Handle("/metrics", promhttp.Handler())
package prometheus

import (
	"strconv"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/volcache"
)

// Namespace prefixes every metric name.
const Namespace = "volcache"

// Collector implements volcache.MetricsCollector with Prometheus metrics.
type Collector struct {
	loadLatency   *prom.HistogramVec
	requests      *prom.CounterVec
	evictions     prom.Counter
	queueDepth    prom.Gauge
	regionLatency *prom.HistogramVec
	regionChunks  *prom.CounterVec
}

var _ volcache.MetricsCollector = (*Collector)(nil)

// NewCollector creates a Collector and registers its metrics with reg.
// A nil reg leaves the metrics unregistered.
func NewCollector(reg prom.Registerer) *Collector {
	c := &Collector{
		loadLatency: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: Namespace,
			Name:      "chunk_load_duration_seconds",
			Help:      "Duration of chunk production attempts",
			Buckets:   prom.ExponentialBuckets(0.0005, 2, 16),
		}, []string{"level", "status"}),
		requests: prom.NewCounterVec(prom.CounterOpts{
			Namespace: Namespace,
			Name:      "chunk_requests_total",
			Help:      "Chunk requests by cache outcome",
		}, []string{"level", "result"}),
		evictions: prom.NewCounter(prom.CounterOpts{
			Namespace: Namespace,
			Name:      "chunk_evictions_total",
			Help:      "Chunks evicted from the cache",
		}),
		queueDepth: prom.NewGauge(prom.GaugeOpts{
			Namespace: Namespace,
			Name:      "load_queue_depth",
			Help:      "Loads waiting for a worker",
		}),
		regionLatency: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: Namespace,
			Name:      "region_duration_seconds",
			Help:      "Duration of region requests",
			Buckets:   prom.DefBuckets,
		}, []string{"level"}),
		regionChunks: prom.NewCounterVec(prom.CounterOpts{
			Namespace: Namespace,
			Name:      "region_chunks_total",
			Help:      "Chunks covered by region requests, by readiness",
		}, []string{"level", "state"}),
	}

	if reg != nil {
		reg.MustRegister(c.loadLatency, c.requests, c.evictions, c.queueDepth, c.regionLatency, c.regionChunks)
	}
	return c
}

func (c *Collector) OnLoad(level int, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	c.loadLatency.WithLabelValues(strconv.Itoa(level), status).Observe(duration.Seconds())
}

func (c *Collector) OnHit(level int) {
	c.requests.WithLabelValues(strconv.Itoa(level), "hit").Inc()
}

func (c *Collector) OnMiss(level int) {
	c.requests.WithLabelValues(strconv.Itoa(level), "miss").Inc()
}

func (c *Collector) OnEviction(n int) {
	c.evictions.Add(float64(n))
}

func (c *Collector) OnQueueDepth(depth int) {
	c.queueDepth.Set(float64(depth))
}

func (c *Collector) RecordRegion(level, requested, ready int, duration time.Duration) {
	l := strconv.Itoa(level)
	c.regionLatency.WithLabelValues(l).Observe(duration.Seconds())
	c.regionChunks.WithLabelValues(l, "ready").Add(float64(ready))
	c.regionChunks.WithLabelValues(l, "pending").Add(float64(requested - ready))
}
