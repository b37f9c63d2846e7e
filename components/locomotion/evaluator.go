package locomotion

import (
	"errors"
	"fmt"

	"github.com/bioinspired/ybot"
	"github.com/bioinspired/ybot/components/locomotion/gait"
	"github.com/bioinspired/ybot/servos"
	"github.com/sirupsen/logrus"
)

// Used in place of a zero-length window, to avoid dividing by zero. Validated
// descriptions never contain one.
const epsilon = 1e-9

// UnknownActuatorError is reported when a command refers to an actuator which
// isn't in the layout. The command is skipped for the tick.
type UnknownActuatorError struct {
	Index    int
	Actuator ybot.ActuatorID
}

func (e *UnknownActuatorError) Error() string {
	return fmt.Sprintf("command #%d refers to unknown actuator %d", e.Index, e.Actuator)
}

// actuatorState is the last computed position of one actuator. It persists
// across ticks and across the end of the gait cycle, so motion is continuous.
type actuatorState struct {
	position float64
}

// Evaluator computes the position of each actuator for a given phase.
type Evaluator struct {
	desc   *gait.Description
	period float64
	gain   float64
	layout *servos.Layout
	states map[ybot.ActuatorID]*actuatorState
}

// NewEvaluator creates an evaluator with every actuator in the layout at
// position zero.
func NewEvaluator(desc *gait.Description, period, gain float64, layout *servos.Layout) (*Evaluator, error) {
	if desc == nil {
		return nil, errors.New("gait description is required")
	}
	if layout == nil {
		return nil, errors.New("servo layout is required")
	}
	if !(period > 0) {
		return nil, fmt.Errorf("period must be positive, got %v", period)
	}

	e := &Evaluator{
		desc:   desc,
		period: period,
		gain:   gain,
		layout: layout,
		states: make(map[ybot.ActuatorID]*actuatorState, layout.Len()),
	}

	for _, id := range layout.IDs() {
		e.states[id] = &actuatorState{}
	}

	return e, nil
}

// Evaluate moves each actuator with an active command towards its target, and
// returns the position of every actuator. Actuators with no active command
// hold their last position.
//
// Each active command moves its actuator part of the way to the target, by
// the fraction of the window which has elapsed. This is re-applied every
// tick, so the position approaches the target over the window rather than
// following a straight line. If two active commands refer to the same
// actuator, the later one has the last word.
//
// Commands for unknown actuators are skipped; the returned error lists them,
// but the positions are still valid.
func (e *Evaluator) Evaluate(phase float64) (ybot.Positions, error) {
	var errs []error

	for i, c := range e.desc.Commands {
		start, end := c.Window(e.period)
		if phase < start || phase >= end {
			continue
		}

		s, ok := e.states[c.Actuator]
		if !ok {
			errs = append(errs, &UnknownActuatorError{Index: i, Actuator: c.Actuator})
			continue
		}

		span := end - start
		if span == 0 {
			span = epsilon
		}

		progress := (phase - start) / span
		target := c.Amount * e.gain
		s.position = approach(s.position, target, progress)

		log.WithFields(logrus.Fields{
			"actuator": e.layout.Name(c.Actuator),
			"command":  i,
			"progress": progress,
			"target":   target,
		}).Debugf("pos=%.4f", s.position)
	}

	positions := e.Positions()
	log.WithField("phase", phase).Debugf("positions=%s", positions)

	return positions, errors.Join(errs...)
}

// Positions returns a copy of the current position of every actuator.
func (e *Evaluator) Positions() ybot.Positions {
	p := make(ybot.Positions, len(e.states))
	for id, s := range e.states {
		p[id] = s.position
	}
	return p
}

// approach moves pos the given fraction of the way towards target. Once pos
// has reached the target, it stays there.
func approach(pos, target, progress float64) float64 {
	return pos + (target-pos)*progress
}
