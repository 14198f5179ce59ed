// Package resource implements the resource controller for engine-wide limits.
//
// The controller governs three resource types:
//
//   - Memory: track and cap the bytes held by page stores (non-blocking, fail-fast)
//   - Concurrency: bound the number of concurrent device teardowns
//   - IO: rate-limit bulk page release so huge teardowns stay cooperative
//
// # Memory Management
//
// Memory tracking uses a weighted semaphore for the hard limit and an atomic
// counter for usage reporting. AcquireMemory is non-blocking and returns
// ErrMemoryLimitExceeded immediately if the limit would be exceeded:
//
//	rc := resource.NewController(resource.Config{
//	    MemoryLimitBytes: 1 << 30, // 1GiB of page memory
//	})
//	if err := rc.AcquireMemory(pageSize); err != nil {
//	    // surface as a no-space condition; caller decides policy
//	}
//
// Allocation must never block behind reclaim: a blocked allocation inside the
// storage layer could re-enter the storage layer. Fail-fast keeps the page
// insert path free of that cycle.
package resource
