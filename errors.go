package volcache

import (
	"errors"
	"fmt"

	"github.com/hupe1980/volcache/cache"
	"github.com/hupe1980/volcache/chunk"
	"github.com/hupe1980/volcache/pyramid"
)

// Error taxonomy re-exported so callers can use errors.Is without importing
// the subpackages.
var (
	// ErrLevelOutOfRange is returned for levels outside [0, NumLevels).
	ErrLevelOutOfRange = pyramid.ErrLevelOutOfRange
	// ErrChunkCoordOutOfRange is returned for chunk coordinates outside a level's grid.
	ErrChunkCoordOutOfRange = pyramid.ErrChunkCoordOutOfRange
	// ErrInvalidGeometry is returned for malformed pyramids.
	ErrInvalidGeometry = pyramid.ErrInvalidGeometry
	// ErrMetadataFetchFailed is returned when a remote source cannot load its metadata.
	ErrMetadataFetchFailed = chunk.ErrMetadataFetchFailed
	// ErrNetworkFailed is returned when a chunk fetch fails. It is retryable.
	ErrNetworkFailed = chunk.ErrNetworkFailed
	// ErrDecompressionFailed is returned for payloads the codec rejects.
	ErrDecompressionFailed = chunk.ErrDecompressionFailed
	// ErrSizeMismatch is returned for payloads of the wrong decoded length.
	ErrSizeMismatch = chunk.ErrSizeMismatch
	// ErrClosed is returned by operations on a closed Source.
	ErrClosed = cache.ErrClosed
)

var (
	// ErrInvalidArgument is returned for negative timepoints, channels and
	// similar caller mistakes.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrDuplicateName is returned when registering a name twice.
	ErrDuplicateName = errors.New("name already registered")
)

// RegionError reports the chunk that failed a blocking region request.
//
// The original underlying error can be accessed via errors.Unwrap.
type RegionError struct {
	Level int
	Key   chunk.Key
	cause error
}

func (e *RegionError) Error() string {
	return fmt.Sprintf("region at level %d: chunk %s: %v", e.Level, e.Key, e.cause)
}

func (e *RegionError) Unwrap() error { return e.cause }
