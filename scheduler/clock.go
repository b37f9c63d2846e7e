package scheduler

import (
	"context"
	"time"
)

// Clock is the source of time for the scheduler. It's an interface so that
// tests can run the loop without waiting.
type Clock interface {
	Now() time.Time

	// Sleep blocks for the given duration, or until the context is done,
	// whichever comes first.
	Sleep(ctx context.Context, d time.Duration)
}

// RealClock uses the system clock.
type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now()
}

func (RealClock) Sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
