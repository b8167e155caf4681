package chunk

import "context"

// Producer yields the samples of one chunk.
//
// Implementations must be safe for concurrent use and must keep no mutable
// state shared between calls: Produce is a pure function of the key. Calling
// it twice for the same key returns bit-identical samples, which lets callers
// treat production as retryable and coalesce concurrent requests.
//
// Errors are returned, never masked; a producer must not substitute
// zero-filled samples for a failure.
type Producer interface {
	Produce(ctx context.Context, key Key) (*Samples, error)
}

// ProducerFunc adapts a function to the Producer interface.
type ProducerFunc func(ctx context.Context, key Key) (*Samples, error)

// Produce calls f(ctx, key).
func (f ProducerFunc) Produce(ctx context.Context, key Key) (*Samples, error) {
	return f(ctx, key)
}
