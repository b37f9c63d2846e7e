package ybot

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ActuatorID identifies one controllable output (a servo channel). The set of
// valid ids is closed and known at configuration time.
type ActuatorID int

// Positions maps each actuator to its normalized position, usually in [0, 1].
type Positions map[ActuatorID]float64

// IDs returns the actuator ids in ascending order.
func (p Positions) IDs() []ActuatorID {
	ids := make([]ActuatorID, 0, len(p))
	for id := range p {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (p Positions) String() string {
	parts := make([]string, 0, len(p))
	for _, id := range p.IDs() {
		parts = append(parts, fmt.Sprintf("%d=%.4f", id, p[id]))
	}
	return "{" + strings.Join(parts, " ") + "}"
}

// State is the per-run state which is handed to each component every tick.
type State struct {

	// The number of ticks so far, starting at one on the first tick.
	Count int

	// The time at which the current tick started, and the time since the
	// start of the previous tick. Delta is zero on the first tick.
	Now   time.Time
	Delta time.Duration

	// Position within the gait cycle and total time driven, in seconds.
	// Written by the locomotion component.
	Phase   float64
	Elapsed float64

	// The most recently evaluated position of each actuator.
	Positions Positions

	// The device values last sent over the link, in frame order.
	Outputs []int
}

func NewState() *State {
	return &State{
		Positions: Positions{},
	}
}
