package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/hupe1980/volcache/chunk"
)

// State is the load state of a key.
type State uint8

const (
	// StateEmpty means no data and no attempt in flight.
	StateEmpty State = iota
	// StateLoading means a production attempt is queued or running.
	StateLoading
	// StateReady means the samples are resident.
	StateReady
	// StateFailed means the last attempt failed.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

const numShards = 64

type entry struct {
	key chunk.Key

	// Guarded by the shard mutex.
	state    State
	samples  *chunk.Samples
	err      error
	done     chan struct{} // closed when the current attempt settles
	priority int
	queued   bool // waiting in the work queue, not yet claimed
	running  bool // claimed by a worker or a blocking caller
	pins     int
	interest int // pending budgeted views
	waiters  int // blocking callers waiting on done

	// abandoned is when the last requester of a queued load went away.
	abandoned time.Time

	// Guarded by Cache.lruMu.
	elem *list.Element
	size int64
}

type shard struct {
	mu      sync.Mutex
	entries map[chunk.Key]*entry
}
