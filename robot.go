package ybot

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithFields(logrus.Fields{
	"pkg": "ybot",
})

type Robot struct {
	Components []Component

	// The state shared by every component for the current tick. Components
	// earlier in the list write to it (e.g. positions), later ones read it.
	State *State
}

// Component is a part of the robot which is booted once, then ticked every
// frame by the scheduler.
type Component interface {
	Boot() error
	Tick(now time.Time, state *State) error
}

// NewRobot creates a Robot with no components.
func NewRobot() *Robot {
	return &Robot{
		Components: []Component{},
		State:      NewState(),
	}
}

// Add registers a component to receive ticks every frame. Components are
// ticked in the order they were added.
func (r *Robot) Add(c Component) {
	r.Components = append(r.Components, c)
}

// Boot calls Boot on each component.
func (r *Robot) Boot() error {
	for _, c := range r.Components {
		err := c.Boot()
		if err != nil {
			return fmt.Errorf("boot %T: %w", c, err)
		}
	}

	return nil
}

// Tick advances the shared state by one frame, then calls Tick on each
// component. The first error aborts the tick; components are expected to
// deal with recoverable problems themselves, so an error here is fatal.
func (r *Robot) Tick(now time.Time, delta time.Duration) error {
	r.State.Count += 1
	r.State.Now = now
	r.State.Delta = delta

	for _, c := range r.Components {
		err := c.Tick(now, r.State)
		if err != nil {
			return err
		}
	}

	return nil
}

// Close releases every component which holds a resource (anything which
// implements io.Closer), in reverse order. All components are closed even if
// some of them fail.
func (r *Robot) Close() error {
	var errs []error
	for i := len(r.Components) - 1; i >= 0; i-- {
		c, ok := r.Components[i].(io.Closer)
		if !ok {
			continue
		}

		err := c.Close()
		if err != nil {
			log.Errorf("error while closing %T: %s", r.Components[i], err)
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
