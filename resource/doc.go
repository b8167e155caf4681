// Package resource implements the Controller for process-wide limits shared by
// caches and producers.
//
// The Controller governs three resource types:
//
//   - Memory: resident chunk and object bytes, accounted against a soft limit
//   - Fetch slots: concurrent remote reads (weighted semaphore)
//   - IO: byte rate of remote reads (token bucket)
//
// # Memory
//
// Memory is tracked with an atomic counter. TryAcquireMemory fails fast when
// the limit would be exceeded; ForceAcquireMemory always succeeds and is used
// by owners that enforce their own budget and only need global accounting:
//
//	rc := resource.NewController(resource.Config{
//	    MemoryLimitBytes: 1 << 30,
//	})
//
//	if !rc.TryAcquireMemory(n) {
//	    // over the global limit, skip caching
//	}
//	defer rc.ReleaseMemory(n)
//
// # Fetch Slots
//
//	if err := rc.AcquireFetch(ctx); err != nil {
//	    return err
//	}
//	defer rc.ReleaseFetch()
//
// # IO Rate Limiting
//
//	if err := rc.AcquireIO(ctx, len(payload)); err != nil {
//	    return err
//	}
//
//	reader := resource.NewRateLimitedReader(ctx, body, rc)
//
// # Nil Safety
//
// All methods handle a nil Controller gracefully; they become no-ops.
package resource
