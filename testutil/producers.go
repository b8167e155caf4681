package testutil

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/volcache/chunk"
	"github.com/hupe1980/volcache/pyramid"
)

// Fill returns samples of dims with every value set to v.
func Fill(dims pyramid.Size3, v uint16) *chunk.Samples {
	data := make([]uint16, dims.Elements())
	for i := range data {
		data[i] = v
	}
	s, err := chunk.NewSamples(dims, data)
	if err != nil {
		panic(err)
	}
	return s
}

// Constant returns a producer yielding Fill(dims, v) for every key.
func Constant(dims pyramid.Size3, v uint16) chunk.Producer {
	s := Fill(dims, v)
	return chunk.ProducerFunc(func(ctx context.Context, _ chunk.Key) (*chunk.Samples, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return s, nil
	})
}

// KeyValued returns a producer whose samples encode the chunk coordinate,
// so tests can tell chunks apart: value = level*1000 + x + 10*y + 100*z.
func KeyValued(dims pyramid.Size3) chunk.Producer {
	return chunk.ProducerFunc(func(ctx context.Context, key chunk.Key) (*chunk.Samples, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c := key.Coord
		return Fill(dims, uint16(int64(key.Level)*1000+c.X+10*c.Y+100*c.Z)), nil
	})
}

// FuncProducer adapts a function to chunk.Producer.
type FuncProducer = chunk.ProducerFunc

// CountingProducer counts Produce calls.
type CountingProducer struct {
	inner chunk.Producer
	calls atomic.Int64

	mu     sync.Mutex
	perKey map[chunk.Key]int
}

// NewCounting wraps inner.
func NewCounting(inner chunk.Producer) *CountingProducer {
	return &CountingProducer{inner: inner, perKey: make(map[chunk.Key]int)}
}

// Produce records the call and delegates.
func (p *CountingProducer) Produce(ctx context.Context, key chunk.Key) (*chunk.Samples, error) {
	p.calls.Add(1)
	p.mu.Lock()
	p.perKey[key]++
	p.mu.Unlock()
	return p.inner.Produce(ctx, key)
}

// Calls returns the total number of calls.
func (p *CountingProducer) Calls() int64 {
	return p.calls.Load()
}

// CallsFor returns the number of calls for key.
func (p *CountingProducer) CallsFor(key chunk.Key) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.perKey[key]
}

// SlowProducer delays every call.
type SlowProducer struct {
	inner chunk.Producer
	delay time.Duration
}

// NewSlow wraps inner with a fixed delay.
func NewSlow(inner chunk.Producer, delay time.Duration) *SlowProducer {
	return &SlowProducer{inner: inner, delay: delay}
}

// Produce waits for the delay or ctx, then delegates.
func (p *SlowProducer) Produce(ctx context.Context, key chunk.Key) (*chunk.Samples, error) {
	t := time.NewTimer(p.delay)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return p.inner.Produce(ctx, key)
}

// GatedProducer blocks every call until Open is called.
type GatedProducer struct {
	inner   chunk.Producer
	gate    chan struct{}
	once    sync.Once
	started chan chunk.Key
}

// NewGated wraps inner behind a closed gate.
func NewGated(inner chunk.Producer) *GatedProducer {
	return &GatedProducer{
		inner:   inner,
		gate:    make(chan struct{}),
		started: make(chan chunk.Key, 1024),
	}
}

// Started delivers the key of every call as it begins.
func (p *GatedProducer) Started() <-chan chunk.Key {
	return p.started
}

// Open releases all waiting and future calls.
func (p *GatedProducer) Open() {
	p.once.Do(func() { close(p.gate) })
}

// Produce waits for the gate or ctx, then delegates.
func (p *GatedProducer) Produce(ctx context.Context, key chunk.Key) (*chunk.Samples, error) {
	select {
	case p.started <- key:
	default:
	}
	select {
	case <-p.gate:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return p.inner.Produce(ctx, key)
}

// FailingProducer fails the first n calls with err, then delegates.
// A negative n fails every call.
type FailingProducer struct {
	inner  chunk.Producer
	err    error
	always bool
	left   atomic.Int64
}

// NewFailing wraps inner.
func NewFailing(inner chunk.Producer, err error, n int) *FailingProducer {
	p := &FailingProducer{inner: inner, err: err, always: n < 0}
	p.left.Store(int64(n))
	return p
}

// Produce fails or delegates.
func (p *FailingProducer) Produce(ctx context.Context, key chunk.Key) (*chunk.Samples, error) {
	if p.always || p.left.Add(-1) >= 0 {
		return nil, &chunk.ProduceError{Key: key, Err: p.err}
	}
	return p.inner.Produce(ctx, key)
}
