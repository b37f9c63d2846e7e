package locomotion

import (
	"fmt"
	"math"
)

// PhaseClock tracks the time elapsed within the current gait cycle, using only
// the time between ticks. It never looks at the wall clock itself.
type PhaseClock struct {
	period float64

	// Position within the cycle, always in [0, period) between calls.
	phase float64

	// Total time driven. Never wraps.
	elapsed float64

	// The number of times a single advance skipped one or more whole cycles.
	overflows int
}

func NewPhaseClock(period float64) (*PhaseClock, error) {
	if !(period > 0) || math.IsInf(period, 0) {
		return nil, fmt.Errorf("period must be positive, got %v", period)
	}

	return &PhaseClock{period: period}, nil
}

// Advance moves the clock forwards by delta seconds and returns the new phase.
// At most one period is consumed by the wrap; the scheduler guarantees that a
// tick is much shorter than a period. If that doesn't hold and the phase is
// still past the end of the cycle, the skipped cycles are counted and logged,
// and the phase is folded back into the cycle.
func (c *PhaseClock) Advance(delta float64) float64 {
	if delta < 0 || math.IsNaN(delta) {
		panic(fmt.Sprintf("phase clock moved backwards: delta=%v", delta))
	}

	c.elapsed += delta
	c.phase += delta

	if c.phase >= c.period {
		c.phase -= c.period
	}

	if c.phase >= c.period {
		c.overflows += 1
		log.Warnf("tick of %.3fs skipped %d whole gait cycles", delta, int(c.phase/c.period))
		c.phase = math.Mod(c.phase, c.period)
	}

	return c.phase
}

func (c *PhaseClock) Phase() float64 {
	return c.phase
}

func (c *PhaseClock) Elapsed() float64 {
	return c.elapsed
}

func (c *PhaseClock) Period() float64 {
	return c.period
}

// Overflows returns the number of advances which were longer than a period.
func (c *PhaseClock) Overflows() int {
	return c.overflows
}

// Reset returns the clock to the start of the cycle, as at the start of a run.
func (c *PhaseClock) Reset() {
	c.phase = 0
	c.elapsed = 0
	c.overflows = 0
}
