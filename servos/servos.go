package servos

import (
	"fmt"

	"github.com/bioinspired/ybot"
)

// Servo is one channel driven by the microcontroller.
type Servo struct {
	ID   ybot.ActuatorID
	Name string
}

func (s Servo) String() string {
	if s.Name == "" {
		return fmt.Sprintf("#%d", s.ID)
	}
	return fmt.Sprintf("%s (#%d)", s.Name, s.ID)
}

// Layout is the fixed, pre-agreed order in which servos appear in each frame
// sent to the microcontroller. The firmware knows nothing but this order, so
// it must never change during a run.
type Layout struct {
	servos []Servo
	index  map[ybot.ActuatorID]int
}

// NewLayout returns a layout with the servos in the given order. Ids must be
// unique and there must be at least one servo.
func NewLayout(servos ...Servo) (*Layout, error) {
	if len(servos) == 0 {
		return nil, fmt.Errorf("layout needs at least one servo")
	}

	l := &Layout{
		servos: make([]Servo, len(servos)),
		index:  make(map[ybot.ActuatorID]int, len(servos)),
	}

	for i, s := range servos {
		if j, ok := l.index[s.ID]; ok {
			return nil, fmt.Errorf("duplicate servo id %d (at positions %d and %d)", s.ID, j, i)
		}
		l.servos[i] = s
		l.index[s.ID] = i
	}

	return l, nil
}

// Len returns the number of servos, which is also the size of each frame.
func (l *Layout) Len() int {
	return len(l.servos)
}

// Has returns true if the given id belongs to a servo in this layout.
func (l *Layout) Has(id ybot.ActuatorID) bool {
	_, ok := l.index[id]
	return ok
}

// Index returns the position of the given servo within each frame.
func (l *Layout) Index(id ybot.ActuatorID) (int, bool) {
	i, ok := l.index[id]
	return i, ok
}

// Servos returns a copy of the servos in frame order.
func (l *Layout) Servos() []Servo {
	out := make([]Servo, len(l.servos))
	copy(out, l.servos)
	return out
}

// IDs returns the servo ids in frame order.
func (l *Layout) IDs() []ybot.ActuatorID {
	ids := make([]ybot.ActuatorID, len(l.servos))
	for i, s := range l.servos {
		ids[i] = s.ID
	}
	return ids
}

// Name returns the human name of the servo, or its number if it has none.
func (l *Layout) Name(id ybot.ActuatorID) string {
	i, ok := l.index[id]
	if !ok {
		return fmt.Sprintf("#%d", id)
	}
	return l.servos[i].String()
}
