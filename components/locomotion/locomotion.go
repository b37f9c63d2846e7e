package locomotion

import (
	"errors"
	"time"

	"github.com/bioinspired/ybot"
	"github.com/bioinspired/ybot/components/locomotion/gait"
	"github.com/bioinspired/ybot/servos"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithFields(logrus.Fields{
	"pkg": "locomotion",
})

type Config struct {

	// The length of one gait cycle, in seconds.
	Period float64

	// Scales the amount of every command.
	AmplitudeGain float64
}

// Locomotion drives the actuators through the gait. Each tick it advances the
// phase clock by the time since the last tick, and evaluates the gait at the
// new phase.
type Locomotion struct {
	gait  *gait.Description
	clock *PhaseClock
	eval  *Evaluator

	// The number of commands skipped so far because of unknown actuators.
	skipped int
}

func New(desc *gait.Description, cfg Config, layout *servos.Layout) (*Locomotion, error) {
	clock, err := NewPhaseClock(cfg.Period)
	if err != nil {
		return nil, err
	}

	eval, err := NewEvaluator(desc, cfg.Period, cfg.AmplitudeGain, layout)
	if err != nil {
		return nil, err
	}

	return &Locomotion{
		gait:  desc,
		clock: clock,
		eval:  eval,
	}, nil
}

func (l *Locomotion) Boot() error {
	l.clock.Reset()
	log.Infof("gait=%q commands=%d period=%.3fs", l.gait.Name, l.gait.Len(), l.clock.Period())
	return nil
}

func (l *Locomotion) Tick(now time.Time, state *ybot.State) error {
	phase := l.clock.Advance(state.Delta.Seconds())

	positions, err := l.eval.Evaluate(phase)
	if err != nil {

		// One bad command must not stop the robot walking.
		var uae *UnknownActuatorError
		if !errors.As(err, &uae) {
			return err
		}
		l.skipped += 1
		log.Warnf("skipped commands at phase=%.4f: %s", phase, err)
	}

	state.Phase = phase
	state.Elapsed = l.clock.Elapsed()
	state.Positions = positions

	return nil
}

// Clock exposes the phase clock, mostly for tests and reporting.
func (l *Locomotion) Clock() *PhaseClock {
	return l.clock
}

// Skipped returns the number of ticks in which at least one command was
// skipped.
func (l *Locomotion) Skipped() int {
	return l.skipped
}
