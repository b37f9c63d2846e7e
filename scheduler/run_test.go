package scheduler_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bioinspired/ybot"
	"github.com/bioinspired/ybot/components/locomotion"
	"github.com/bioinspired/ybot/components/locomotion/gait"
	"github.com/bioinspired/ybot/components/output"
	fakeclock "github.com/bioinspired/ybot/fake/clock"
	fakeserial "github.com/bioinspired/ybot/fake/serial"
	"github.com/bioinspired/ybot/scheduler"
	"github.com/bioinspired/ybot/servos"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// robot builds a two-servo robot which walks a simple alternating gait, and
// sends its frames over port.
func robot(t *testing.T, port *fakeserial.FakeSerial) *ybot.Robot {
	t.Helper()

	desc := &gait.Description{Name: "alternate", Commands: []gait.Command{
		{Actuator: 1, Amount: 1.0, Start: 0.0, Duration: 0.5},
		{Actuator: 2, Amount: 0.5, Start: 0.5, Duration: 0.5},
	}}

	layout, err := servos.NewLayout(servos.Servo{ID: 1, Name: "front"}, servos.Servo{ID: 2, Name: "back"})
	require.NoError(t, err)

	loco, err := locomotion.New(desc, locomotion.Config{Period: 1.0, AmplitudeGain: 1.0}, layout)
	require.NoError(t, err)

	m, err := output.NewMapper(255)
	require.NoError(t, err)

	r := ybot.NewRobot()
	r.Add(loco)
	r.Add(output.New(port, output.RawCodec{}, m, layout))
	return r
}

// run drives the robot through one gait cycle at 10Hz, and returns every
// frame sent over the link.
func run(t *testing.T) [][]byte {
	t.Helper()

	port := fakeserial.New()
	r := robot(t, port)

	c := fakeclock.New(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	s, err := scheduler.New(scheduler.Options{Rate: 10, MaxDuration: time.Second, Clock: c})
	require.NoError(t, err)

	require.NoError(t, s.Run(context.Background(), r))
	assert.Equal(t, scheduler.Stopped, s.State())
	assert.Equal(t, 1, port.Closed())

	return port.Writes()
}

func TestRunIsDeterministic(t *testing.T) {
	a := run(t)
	b := run(t)

	require.Len(t, a, 10)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("frames differ between runs (-first +second):\n%s", diff)
	}

	// Nothing has moved yet on the first tick.
	assert.Equal(t, []byte{0, 0}, a[0])

	// The front servo rises during the first half of the cycle, then holds
	// while the back servo rises.
	assert.Equal(t, a[4][0], a[9][0])
	assert.Equal(t, byte(0), a[4][1])
	assert.Greater(t, a[9][1], byte(0))
	for i := 1; i < 5; i++ {
		assert.Greater(t, a[i][0], a[i-1][0], "frame %d", i)
	}
}

func TestRunFaultsWhenTheLinkFails(t *testing.T) {
	gone := errors.New("device unplugged")
	port := fakeserial.New()
	port.Err = gone
	port.FailAfter = 3

	c := fakeclock.New(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	s, err := scheduler.New(scheduler.Options{Rate: 10, MaxDuration: time.Second, Clock: c})
	require.NoError(t, err)

	err = s.Run(context.Background(), robot(t, port))
	require.Error(t, err)
	assert.ErrorIs(t, err, gone)

	var fault *output.FaultError
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, 4, fault.Tick)

	assert.Equal(t, scheduler.Faulted, s.State())
	assert.Equal(t, 4, s.Ticks())
	assert.Len(t, port.Writes(), 3)
	assert.Equal(t, 1, port.Closed())
}
