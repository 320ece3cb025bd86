package resource

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds resource limits shared by one or more indexes.
type Config struct {
	// MemoryLimitBytes caps the decoded payload bytes held by every cache
	// attached to the controller. If 0, usage is only tracked.
	MemoryLimitBytes int64

	// MaxBackgroundWorkers bounds concurrent decode jobs of background
	// passes such as family grouping. If 0, defaults to 1.
	MaxBackgroundWorkers int64

	// IOLimitBytesPerSec throttles archive reads. If 0, unlimited.
	IOLimitBytesPerSec int64
}

// Controller hands out memory, background and IO budgets. A nil
// *Controller grants everything.
type Controller struct {
	mem  *semaphore.Weighted // nil when unlimited
	used atomic.Int64
	bg   *semaphore.Weighted
	io   *rate.Limiter // nil when unlimited
}

// NewController creates a controller enforcing cfg.
func NewController(cfg Config) *Controller {
	c := &Controller{bg: semaphore.NewWeighted(max(cfg.MaxBackgroundWorkers, 1))}
	if cfg.MemoryLimitBytes > 0 {
		c.mem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}
	if cfg.IOLimitBytesPerSec > 0 {
		c.io = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}
	return c
}

// TryAcquireMemory reserves bytes if the shared limit allows it.
func (c *Controller) TryAcquireMemory(bytes int64) bool {
	if c == nil || bytes <= 0 {
		return true
	}
	if c.mem != nil && !c.mem.TryAcquire(bytes) {
		return false
	}
	c.used.Add(bytes)
	return true
}

// ReleaseMemory returns bytes reserved by TryAcquireMemory.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}
	if c.mem != nil {
		c.mem.Release(bytes)
	}
	c.used.Add(-bytes)
}

// MemoryUsage returns the reserved bytes.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.used.Load()
}

// AcquireBackground blocks until a background slot is free or ctx ends.
func (c *Controller) AcquireBackground(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.bg.Acquire(ctx, 1)
}

// ReleaseBackground frees a slot taken by AcquireBackground.
func (c *Controller) ReleaseBackground() {
	if c != nil {
		c.bg.Release(1)
	}
}

// AcquireIO waits until the limiter admits bytes. Requests larger than the
// bucket are admitted in bucket sized steps.
func (c *Controller) AcquireIO(ctx context.Context, bytes int) error {
	if c == nil || c.io == nil {
		return nil
	}
	for burst := c.io.Burst(); bytes > 0; bytes -= burst {
		if err := c.io.WaitN(ctx, min(bytes, burst)); err != nil {
			return err
		}
	}
	return nil
}
