package recorder

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/bioinspired/ybot"
)

// Export writes the samples as semicolon-separated text, one line per tick:
// elapsed seconds, then the position of each actuator in run order. Two
// header lines come first, the same shape as the tracking files which
// analysis.ParseTrack reads.
func Export(w io.Writer, run Run, samples []Sample, names func(ybot.ActuatorID) string) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "run %d gait=%s period=%g status=%s\n", run.ID, run.Gait, run.Period, run.Status)

	cols := []string{"t"}
	for _, id := range run.Actuators {
		name := strconv.Itoa(int(id))
		if names != nil {
			name = names(id)
		}
		cols = append(cols, name)
	}
	fmt.Fprintln(bw, strings.Join(cols, ";"))

	for _, smp := range samples {
		fields := make([]string, 0, len(run.Actuators)+1)
		fields = append(fields, strconv.FormatFloat(smp.Elapsed, 'f', 4, 64))
		for _, id := range run.Actuators {
			fields = append(fields, strconv.FormatFloat(smp.Positions[id], 'f', 4, 64))
		}
		fmt.Fprintln(bw, strings.Join(fields, ";"))
	}

	return bw.Flush()
}
