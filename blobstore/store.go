package blobstore

import (
	"context"
	"errors"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies `errors.Is(err, ErrNotFound)`.
// The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// ErrNotWritable is returned when writing through a read-only store.
var ErrNotWritable = errors.New("blobstore: store is not writable")

// Store reads immutable blobs by key. Keys are slash-separated relative
// paths such as "0/.zarray" or "2/0/0/1/3/7".
//
// Implementations must be safe for concurrent use. The returned slice is owned
// by the caller.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// Viewer is implemented by stores that can lend a blob for the duration of
// a callback without copying it. fn must not retain the slice.
type Viewer interface {
	View(ctx context.Context, key string, fn func([]byte) error) error
}

// WritableStore is a Store that also accepts writes.
type WritableStore interface {
	Store
	// Put writes a blob atomically, replacing any previous content.
	Put(ctx context.Context, key string, data []byte) error
}
