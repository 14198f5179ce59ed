package resource

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrMemoryLimitExceeded is returned when the memory limit would be exceeded.
var ErrMemoryLimitExceeded = errors.New("memory limit exceeded")

// Config holds resource limits.
type Config struct {
	// MemoryLimitBytes is the hard limit for page memory.
	// If 0, no hard limit is enforced (only tracking).
	MemoryLimitBytes int64

	// MaxTeardownWorkers is the maximum number of concurrent device teardowns.
	// If 0, defaults to 1.
	MaxTeardownWorkers int64

	// ReleaseLimitBytesPerSec paces bulk page release during teardown.
	// If 0, unlimited.
	ReleaseLimitBytesPerSec int64
}

// Controller manages engine-wide resources (memory, teardown concurrency, release pacing).
type Controller struct {
	cfg Config

	// Memory
	memSem  *semaphore.Weighted // nil if unlimited
	memUsed atomic.Int64

	// Teardown concurrency
	tdSem *semaphore.Weighted

	// Release pacing
	releaseLimiter *rate.Limiter
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxTeardownWorkers <= 0 {
		cfg.MaxTeardownWorkers = 1
	}

	c := &Controller{
		cfg:   cfg,
		tdSem: semaphore.NewWeighted(cfg.MaxTeardownWorkers),
	}

	if cfg.MemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}

	if cfg.ReleaseLimitBytesPerSec > 0 {
		c.releaseLimiter = rate.NewLimiter(rate.Limit(cfg.ReleaseLimitBytesPerSec), int(cfg.ReleaseLimitBytesPerSec))
	}

	return c
}

// AcquireMemory attempts to reserve memory for a page.
// Returns ErrMemoryLimitExceeded if the limit would be exceeded.
// Non-blocking - callers control retry/backoff policy.
func (c *Controller) AcquireMemory(bytes int64) error {
	if c == nil {
		return nil
	}
	if bytes <= 0 {
		return nil
	}

	if c.memSem != nil {
		if !c.memSem.TryAcquire(bytes) {
			return ErrMemoryLimitExceeded
		}
	}

	c.memUsed.Add(bytes)
	return nil
}

// ReleaseMemory releases reserved memory.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil {
		return
	}
	if bytes <= 0 {
		return
	}

	if c.memSem != nil {
		c.memSem.Release(bytes)
	}
	c.memUsed.Add(-bytes)
}

// MemoryUsage returns the current page memory usage in bytes.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// MemoryLimit returns the configured memory limit in bytes (0 if unlimited).
func (c *Controller) MemoryLimit() int64 {
	if c == nil {
		return 0
	}
	return c.cfg.MemoryLimitBytes
}

// AcquireTeardown reserves a teardown worker slot.
// Blocks if all slots are busy.
func (c *Controller) AcquireTeardown(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.tdSem.Acquire(ctx, 1)
}

// TryAcquireTeardown attempts to reserve a teardown worker slot without blocking.
func (c *Controller) TryAcquireTeardown() bool {
	if c == nil {
		return true
	}
	return c.tdSem.TryAcquire(1)
}

// ReleaseTeardown releases a teardown worker slot.
func (c *Controller) ReleaseTeardown() {
	if c == nil {
		return
	}
	c.tdSem.Release(1)
}

// PaceRelease waits until the release limiter allows the specified number of bytes.
// A nil controller or an unconfigured limiter imposes no delay.
func (c *Controller) PaceRelease(ctx context.Context, bytes int) error {
	if c == nil || c.releaseLimiter == nil {
		return nil
	}
	return c.releaseLimiter.WaitN(ctx, bytes)
}

// TryPaceRelease attempts to acquire release tokens without blocking.
// Returns true if tokens were acquired, false otherwise.
func (c *Controller) TryPaceRelease(bytes int) bool {
	if c == nil || c.releaseLimiter == nil {
		return true
	}
	return c.releaseLimiter.AllowN(time.Now(), bytes)
}
