package gait

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/bioinspired/ybot"
	"gopkg.in/yaml.v3"
)

// Command moves one actuator towards Amount during a window of the gait
// cycle. Start and Duration are fractions of the gait period.
type Command struct {
	Actuator ybot.ActuatorID `yaml:"actuator"`
	Amount   float64         `yaml:"amount"`
	Start    float64         `yaml:"start"`
	Duration float64         `yaml:"duration"`
}

// End returns the end of the window, as a fraction of the period. It may be
// greater than one; the window is not split across the end of the cycle, so
// the part past the end is never reached.
func (c Command) End() float64 {
	return c.Start + c.Duration
}

// Window returns the [start, end) interval (in seconds) within a cycle of the
// given period during which this command is active.
func (c Command) Window(period float64) (float64, float64) {
	return c.Start * period, c.End() * period
}

// Contains returns true if the given phase (in seconds) is inside the window.
func (c Command) Contains(phase, period float64) bool {
	start, end := c.Window(period)
	return phase >= start && phase < end
}

func (c Command) String() string {
	return fmt.Sprintf("{actuator=%d amount=%.3f start=%.3f duration=%.3f}", c.Actuator, c.Amount, c.Start, c.Duration)
}

// Description is one repeating gait cycle. The order of the commands matters
// only when two windows for the same actuator overlap, in which case the
// later command wins.
type Description struct {
	Name     string    `yaml:"name"`
	Commands []Command `yaml:"commands"`
}

// Len returns the number of commands.
func (d *Description) Len() int {
	return len(d.Commands)
}

// Actuators returns the distinct actuators referenced by the description, in
// ascending order.
func (d *Description) Actuators() []ybot.ActuatorID {
	seen := map[ybot.ActuatorID]bool{}
	ids := []ybot.ActuatorID{}
	for _, c := range d.Commands {
		if !seen[c.Actuator] {
			seen[c.Actuator] = true
			ids = append(ids, c.Actuator)
		}
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// MaxAmount returns the largest target amount of any command, or zero if
// there are none.
func (d *Description) MaxAmount() float64 {
	max := 0.0
	for _, c := range d.Commands {
		if c.Amount > max {
			max = c.Amount
		}
	}
	return max
}

// Parse reads a YAML gait description. Unknown fields are rejected, to catch
// typos in hand-written files.
func Parse(r io.Reader) (*Description, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	d := &Description{}
	err := dec.Decode(d)
	if err == io.EOF {
		return nil, fmt.Errorf("empty gait description")
	}
	if err != nil {
		return nil, fmt.Errorf("error while decoding gait description: %w", err)
	}

	return d, nil
}

// Load reads a YAML gait description from the given path.
func Load(path string) (*Description, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error while opening gait %s: %w", path, err)
	}
	defer f.Close()

	d, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if d.Name == "" {
		d.Name = path
	}

	return d, nil
}
