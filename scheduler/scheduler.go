package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithFields(logrus.Fields{
	"pkg": "scheduler",
})

var ErrAlreadyRun = errors.New("scheduler has already run")

type State int

const (
	Idle State = iota
	Running
	Stopped
	Faulted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	case Faulted:
		return "faulted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Target is the thing being driven. ybot.Robot is one.
type Target interface {
	Boot() error
	Tick(now time.Time, delta time.Duration) error
	Close() error
}

// Overrun is reported when a tick took longer than the tick period. The next
// tick starts immediately; missed ticks are not made up.
type Overrun struct {
	Tick   int
	Work   time.Duration
	Budget time.Duration
	Excess time.Duration
}

type Options struct {

	// Ticks per second. Must be positive.
	Rate float64

	// Stop after this long. Zero means run until cancelled.
	MaxDuration time.Duration

	// Defaults to RealClock.
	Clock Clock

	// Called once for every overrun, after it's been logged.
	OnOverrun func(Overrun)
}

// Scheduler ticks a target at a fixed rate, from a single goroutine. Each
// scheduler runs once.
type Scheduler struct {
	opts   Options
	period time.Duration
	clock  Clock

	mu    sync.Mutex
	state State
	ticks int
	over  int
}

func New(opts Options) (*Scheduler, error) {
	if !(opts.Rate > 0) {
		return nil, fmt.Errorf("tick rate must be positive, got %v", opts.Rate)
	}
	if opts.MaxDuration < 0 {
		return nil, fmt.Errorf("max duration must not be negative, got %s", opts.MaxDuration)
	}

	clock := opts.Clock
	if clock == nil {
		clock = RealClock{}
	}

	return &Scheduler{
		opts:   opts,
		period: time.Duration(float64(time.Second) / opts.Rate),
		clock:  clock,
		state:  Idle,
	}, nil
}

func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Ticks returns the number of ticks completed or attempted.
func (s *Scheduler) Ticks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ticks
}

func (s *Scheduler) Overruns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.over
}

// Period returns the time allotted to each tick.
func (s *Scheduler) Period() time.Duration {
	return s.period
}

func (s *Scheduler) setState(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
}

// Run boots the target, then ticks it until the context is cancelled, the run
// duration elapses, or a tick fails. The target is closed before returning,
// however the run ends. A nil error means the run stopped cleanly.
func (s *Scheduler) Run(ctx context.Context, t Target) (err error) {
	s.mu.Lock()
	if s.state != Idle {
		s.mu.Unlock()
		return ErrAlreadyRun
	}
	s.state = Running
	s.mu.Unlock()

	defer func() {
		cerr := t.Close()
		if cerr != nil {
			log.Errorf("close: %s", cerr)
			err = errors.Join(err, fmt.Errorf("close: %w", cerr))
		}
	}()

	err = t.Boot()
	if err != nil {
		s.setState(Faulted)
		log.Errorf("boot failed: %s", err)
		return fmt.Errorf("boot: %w", err)
	}

	log.Infof("running at %.2fHz (period=%s)", s.opts.Rate, s.period)

	start := s.clock.Now()
	first := true
	var last time.Time

	for {
		if ctx.Err() != nil {
			log.Infof("stopped after %d ticks: %s", s.Ticks(), context.Cause(ctx))
			s.setState(Stopped)
			return nil
		}

		tickStart := s.clock.Now()
		if s.opts.MaxDuration > 0 && tickStart.Sub(start) >= s.opts.MaxDuration {
			log.Infof("stopped after %d ticks: run duration elapsed", s.Ticks())
			s.setState(Stopped)
			return nil
		}

		// The first tick has nothing to measure from.
		var delta time.Duration
		if !first {
			delta = tickStart.Sub(last)
		}
		first = false
		last = tickStart

		s.mu.Lock()
		s.ticks += 1
		n := s.ticks
		s.mu.Unlock()

		err = t.Tick(tickStart, delta)
		if err != nil {
			s.setState(Faulted)
			log.Errorf("tick %d failed: %s", n, err)
			return fmt.Errorf("tick %d: %w", n, err)
		}

		// Only a tick that leaves time over gets to sleep.
		work := s.clock.Now().Sub(tickStart)
		if work >= s.period {
			s.overrun(Overrun{
				Tick:   n,
				Work:   work,
				Budget: s.period,
				Excess: work - s.period,
			})
			continue
		}

		s.clock.Sleep(ctx, s.period-work)
	}
}

func (s *Scheduler) overrun(o Overrun) {
	s.mu.Lock()
	s.over += 1
	s.mu.Unlock()

	log.WithFields(logrus.Fields{
		"tick":   o.Tick,
		"work":   o.Work,
		"budget": o.Budget,
	}).Warnf("overrun by %s", o.Excess)

	if s.opts.OnOverrun != nil {
		s.opts.OnOverrun(o)
	}
}
