package gait

import (
	"fmt"
	"strings"

	"github.com/bioinspired/ybot"
)

type ValidateOptions struct {

	// Known reports whether an actuator id exists. If nil, any id is accepted.
	Known func(ybot.ActuatorID) bool

	// Reject descriptions in which two windows for the same actuator
	// overlap. Otherwise the later command silently wins.
	RejectOverlaps bool
}

// CommandError describes one invalid command.
type CommandError struct {
	Index   int
	Command Command
	Reason  string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command #%d %s: %s", e.Index, e.Command, e.Reason)
}

// ValidationError collects every problem found in a description, so that all
// of them can be fixed at once.
type ValidationError struct {
	Problems []error
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.Error()
	}
	return fmt.Sprintf("invalid gait (%d problems): %s", len(e.Problems), strings.Join(msgs, "; "))
}

func (e *ValidationError) Unwrap() []error {
	return e.Problems
}

// Validate checks the description before a run. It returns nil or a
// *ValidationError.
func (d *Description) Validate(opts ValidateOptions) error {
	var problems []error
	bad := func(i int, c Command, format string, args ...any) {
		problems = append(problems, &CommandError{Index: i, Command: c, Reason: fmt.Sprintf(format, args...)})
	}

	if len(d.Commands) == 0 {
		problems = append(problems, fmt.Errorf("gait %q has no commands", d.Name))
	}

	for i, c := range d.Commands {
		if opts.Known != nil && !opts.Known(c.Actuator) {
			bad(i, c, "unknown actuator %d", c.Actuator)
		}
		if c.Amount < 0 || c.Amount > 1 {
			bad(i, c, "amount must be in [0, 1]")
		}
		if c.Start < 0 || c.Start > 1 {
			bad(i, c, "start must be in [0, 1]")
		}
		if c.Duration <= 0 || c.Duration > 1 {
			bad(i, c, "duration must be in (0, 1]")
		}
	}

	if opts.RejectOverlaps {
		for i, a := range d.Commands {
			for j := i + 1; j < len(d.Commands); j++ {
				b := d.Commands[j]
				if a.Actuator == b.Actuator && a.Start < b.End() && b.Start < a.End() {
					bad(j, b, "window overlaps command #%d for the same actuator", i)
				}
			}
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}

	return nil
}
