// Package resource implements the Controller that governs memory, flush
// concurrency and storage bandwidth for an engine.
//
//   - Memory: tracks tile buffers held by write sessions and the tile cache
//     (non-blocking, fail-fast)
//   - Workers: bounds the number of tiles flushed in parallel on commit
//   - IO: token-bucket limit on tile bytes moved to and from storage
//
// Memory is reserved with AcquireMemory, which returns ErrMemoryLimitExceeded
// immediately instead of waiting:
//
//	rc := resource.NewController(resource.Config{
//	    MemoryLimitBytes: 1 << 30,
//	})
//
//	if err := rc.AcquireMemory(tileBytes); err != nil {
//	    // ErrMemoryLimitExceeded - caller decides retry/backoff
//	}
//	defer rc.ReleaseMemory(tileBytes)
//
// All methods handle a nil Controller gracefully; they become no-ops.
package resource
