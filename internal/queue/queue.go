package queue

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Pop after Close.
var ErrClosed = errors.New("queue closed")

type item[K comparable] struct {
	key      K
	priority int
	seq      uint64
	index    int
}

// Queue is a keyed min-priority queue safe for concurrent use.
type Queue[K comparable] struct {
	mu     sync.Mutex
	items  []*item[K]
	byKey  map[K]*item[K]
	seq    uint64
	closed bool

	signal chan struct{}
	done   chan struct{}
}

// New creates an empty queue.
func New[K comparable]() *Queue[K] {
	return &Queue[K]{
		byKey:  make(map[K]*item[K]),
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Push enqueues key at priority. If key is already queued its priority
// becomes the minimum of both and its recency is refreshed. Push reports
// whether the key was newly added; it returns false after Close.
func (q *Queue[K]) Push(key K, priority int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.seq++
	if it, ok := q.byKey[key]; ok {
		it.priority = min(it.priority, priority)
		it.seq = q.seq
		q.siftUp(it.index)
		return false
	}

	it := &item[K]{key: key, priority: priority, seq: q.seq, index: len(q.items)}
	q.items = append(q.items, it)
	q.byKey[key] = it
	q.siftUp(it.index)
	q.notify()
	return true
}

// Remove drops key from the queue. It reports whether the key was queued.
func (q *Queue[K]) Remove(key K) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	it, ok := q.byKey[key]
	if !ok {
		return false
	}
	q.removeAt(it.index)
	return true
}

// Len returns the number of queued keys.
func (q *Queue[K]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Pop blocks until a key is available, ctx is done or the queue is closed.
func (q *Queue[K]) Pop(ctx context.Context) (K, error) {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			var zero K
			return zero, ErrClosed
		}
		key, ok := q.popLocked()
		q.mu.Unlock()
		if ok {
			return key, nil
		}

		select {
		case <-q.signal:
		case <-q.done:
		case <-ctx.Done():
			var zero K
			return zero, ctx.Err()
		}
	}
}

// Close wakes all blocked Pop calls and returns the keys that were still
// queued. Further pushes are ignored.
func (q *Queue[K]) Close() []K {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	close(q.done)

	keys := make([]K, 0, len(q.items))
	for _, it := range q.items {
		keys = append(keys, it.key)
	}
	q.items = nil
	clear(q.byKey)
	return keys
}

func (q *Queue[K]) popLocked() (K, bool) {
	if len(q.items) == 0 {
		var zero K
		return zero, false
	}
	key := q.items[0].key
	q.removeAt(0)
	if len(q.items) > 0 {
		q.notify()
	}
	return key, true
}

func (q *Queue[K]) notify() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *Queue[K]) removeAt(i int) {
	it := q.items[i]
	last := len(q.items) - 1
	if i != last {
		q.swap(i, last)
	}
	q.items[last] = nil
	q.items = q.items[:last]
	delete(q.byKey, it.key)

	if i < len(q.items) {
		q.siftDown(i)
		q.siftUp(i)
	}
}

func (q *Queue[K]) less(i, j int) bool {
	a, b := q.items[i], q.items[j]
	if a.priority != b.priority {
		return a.priority < b.priority
	}
	return a.seq > b.seq
}

func (q *Queue[K]) swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
	q.items[i].index = i
	q.items[j].index = j
}

func (q *Queue[K]) siftUp(i int) {
	for i > 0 {
		p := (i - 1) / 2
		if !q.less(i, p) {
			return
		}
		q.swap(i, p)
		i = p
	}
}

func (q *Queue[K]) siftDown(i int) {
	n := len(q.items)
	for {
		l := 2*i + 1
		if l >= n {
			return
		}
		best := l
		if r := l + 1; r < n && q.less(r, l) {
			best = r
		}
		if !q.less(best, i) {
			return
		}
		q.swap(i, best)
		i = best
	}
}
