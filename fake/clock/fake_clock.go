package clock

import (
	"context"
	"sync"
	"time"
)

// FakeClock is a manually advanced clock. Sleeping advances it instantly, and
// every sleep is recorded.
type FakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration

	// Called on every sleep, before the clock advances. Lets a test cancel
	// the run at a particular point.
	OnSleep func(d time.Duration)
}

func New(now time.Time) *FakeClock {
	return &FakeClock{now: now}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) Sleep(ctx context.Context, d time.Duration) {
	if c.OnSleep != nil {
		c.OnSleep(d)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)

	if ctx.Err() != nil {
		return
	}
	c.now = c.now.Add(d)
}

// Advance moves the clock forward, as if work had been done.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Sleeps returns a copy of every duration passed to Sleep.
func (c *FakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}
