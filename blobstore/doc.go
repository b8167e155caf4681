// Package blobstore provides storage abstraction for chunked array objects.
//
// A Store returns whole immutable objects by slash-separated key. Array
// metadata ("<level>/.zarray") and compressed chunks are both read this way.
// Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - HTTPStore: HTTP GET against a base URL
//   - LocalStore: Local filesystem with mmap-backed View and atomic writes
//   - MemoryStore: In-memory, for tests
//   - CachingStore: LRU of whole objects in front of any Store
//   - DiskCachingStore: persistent local-disk tier in front of any Store
//   - s3.Store: Amazon S3
//   - minio.Store: MinIO and other S3-compatible storage
//
// # Custom Implementations
//
// Implement Store (and optionally WritableStore) to support other backends:
//
//	type Store interface {
//	    Get(ctx, key) ([]byte, error)
//	}
//
// Missing objects should satisfy errors.Is(err, ErrNotFound).
package blobstore
