package chunk

import (
	"errors"
	"fmt"

	"github.com/hupe1980/volcache/pyramid"
)

var (
	// ErrMetadataFetchFailed is returned when a producer cannot load the
	// metadata it needs. No chunk can be served by such a producer.
	ErrMetadataFetchFailed = errors.New("metadata fetch failed")

	// ErrNetworkFailed is returned when a chunk could not be fetched. It is
	// retryable.
	ErrNetworkFailed = errors.New("network fetch failed")

	// ErrDecompressionFailed is returned when a fetched payload cannot be
	// decoded by its codec.
	ErrDecompressionFailed = errors.New("decompression failed")

	// ErrSizeMismatch is returned when a payload does not decode to exactly
	// one chunk worth of samples.
	ErrSizeMismatch = errors.New("chunk size mismatch")
)

// ProduceError records the key a produce failure belongs to.
//
// The underlying error can be accessed via errors.Unwrap.
type ProduceError struct {
	Key Key
	Err error
}

func (e *ProduceError) Error() string {
	return fmt.Sprintf("produce %s: %v", e.Key, e.Err)
}

func (e *ProduceError) Unwrap() error { return e.Err }

// Retryable reports whether err is worth another attempt. Corrupt or
// incompatible data, missing metadata and out-of-range keys fail the same
// way every time; any other error, ErrNetworkFailed included, may not.
func Retryable(err error) bool {
	if err == nil || errors.Is(err, ErrNetworkFailed) {
		return err != nil
	}
	for _, permanent := range []error{
		ErrDecompressionFailed,
		ErrSizeMismatch,
		ErrMetadataFetchFailed,
		pyramid.ErrLevelOutOfRange,
		pyramid.ErrChunkCoordOutOfRange,
	} {
		if errors.Is(err, permanent) {
			return false
		}
	}
	return true
}
