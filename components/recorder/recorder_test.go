package recorder

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bioinspired/ybot"
	"github.com/bioinspired/ybot/servos"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(filepath.Join(t.TempDir(), "ybot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(" ")
	assert.Error(t, err)
}

func TestOpenTwiceAppliesMigrationsOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ybot.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	var n int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM "+migrationTable).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestUpSection(t *testing.T) {
	assert.Equal(t, "\nA;\n", upSection("-- +migrate Up\nA;\n-- +migrate Down\nB;\n"))
	assert.Equal(t, "A;", upSection("A;"))
}

func TestRunRoundTrip(t *testing.T) {
	s := openTempStore(t)
	ctx := context.Background()
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	id, err := s.CreateRun(ctx, Run{
		Gait:      "crawl",
		Period:    2.0,
		TickRate:  10,
		Actuators: []ybot.ActuatorID{3, 1},
		StartedAt: start,
	})
	require.NoError(t, err)

	r, err := s.Run(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "crawl", r.Gait)
	assert.Equal(t, []ybot.ActuatorID{3, 1}, r.Actuators)
	assert.Equal(t, start, r.StartedAt)
	assert.True(t, r.EndedAt.IsZero())
	assert.Equal(t, StatusRunning, r.Status)

	require.NoError(t, s.FinishRun(ctx, id, start.Add(time.Minute), 600, StatusStopped))

	r, err = s.Run(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, start.Add(time.Minute), r.EndedAt)
	assert.Equal(t, 600, r.Ticks)
	assert.Equal(t, StatusStopped, r.Status)
}

func TestRunNotFound(t *testing.T) {
	s := openTempStore(t)

	_, err := s.Run(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.FinishRun(context.Background(), 42, time.Now(), 0, StatusStopped), ErrNotFound)
}

func TestRunsMostRecentFirst(t *testing.T) {
	s := openTempStore(t)
	ctx := context.Background()

	for _, g := range []string{"a", "b", "c"} {
		_, err := s.CreateRun(ctx, Run{Gait: g, Period: 1, TickRate: 1, Actuators: []ybot.ActuatorID{1}})
		require.NoError(t, err)
	}

	runs, err := s.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "c", runs[0].Gait)
	assert.Equal(t, "a", runs[2].Gait)
}

func TestSamples(t *testing.T) {
	s := openTempStore(t)
	ctx := context.Background()

	id, err := s.CreateRun(ctx, Run{Gait: "g", Period: 1, TickRate: 10, Actuators: []ybot.ActuatorID{1, 2}})
	require.NoError(t, err)

	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	in := []Sample{
		{Tick: 1, At: at, Positions: ybot.Positions{1: 0, 2: 0}, Outputs: map[ybot.ActuatorID]int{1: 0, 2: 0}},
		{Tick: 2, At: at.Add(100 * time.Millisecond), Elapsed: 0.1, Phase: 0.1,
			Positions: ybot.Positions{1: 0.2, 2: 0.5}, Outputs: map[ybot.ActuatorID]int{1: 51, 2: 128}},
	}
	require.NoError(t, s.AppendSamples(ctx, id, in))

	out, err := s.Samples(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	err = s.AppendSamples(ctx, id, in[1:])
	assert.True(t, errors.Is(err, ErrDuplicate), "got %v", err)
}

func layout(t *testing.T) *servos.Layout {
	t.Helper()
	l, err := servos.NewLayout(servos.Servo{ID: 1, Name: "tail"}, servos.Servo{ID: 2, Name: "head"})
	require.NoError(t, err)
	return l
}

func TestRecorder(t *testing.T) {
	s := openTempStore(t)
	status := StatusRunning
	r := New(s, layout(t), Config{
		Gait:      "wag",
		Period:    1,
		TickRate:  10,
		BatchSize: 3,
		Status:    func() string { return status },
	})
	require.NoError(t, r.Boot())
	id := r.RunID()
	require.NotZero(t, id)

	state := ybot.NewState()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 1; i <= 5; i++ {
		state.Count = i
		state.Elapsed = float64(i-1) * 0.1
		state.Phase = state.Elapsed
		state.Positions = ybot.Positions{1: float64(i) / 10, 2: 0}
		state.Outputs = []int{i, 0}
		require.NoError(t, r.Tick(now, state))
	}

	// One batch gets written, the rest is still buffered.
	require.Eventually(t, func() bool {
		smps, err := s.Samples(context.Background(), id)
		return err == nil && len(smps) == 3
	}, time.Second, time.Millisecond)

	status = StatusFaulted
	require.NoError(t, r.Close())
	assert.Zero(t, r.RunID())

	smps, err := s.Samples(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, smps, 5)
	assert.Equal(t, 5, smps[4].Outputs[1])
	assert.Equal(t, 0.5, smps[4].Positions[1])

	run, err := s.Run(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 5, run.Ticks)
	assert.Equal(t, StatusFaulted, run.Status)
	assert.Zero(t, r.Dropped())
}

func TestRecorderNeverFailsTheRun(t *testing.T) {
	s := openTempStore(t)
	r := New(s, layout(t), Config{Gait: "wag", Period: 1, TickRate: 1})

	// With the database gone, nothing can be stored, but the robot must
	// keep going.
	require.NoError(t, s.Close())
	require.NoError(t, r.Boot())

	state := ybot.NewState()
	state.Count = 1
	require.NoError(t, r.Tick(time.Now(), state))
	require.NoError(t, r.Close())
}

// stuckSink holds every write until it's released, like a disk which has
// stopped responding.
type stuckSink struct {
	release chan struct{}

	mu       sync.Mutex
	appended int
	ticks    int
	status   string
}

func (s *stuckSink) CreateRun(ctx context.Context, r Run) (int64, error) {
	return 1, nil
}

func (s *stuckSink) AppendSamples(ctx context.Context, run int64, samples []Sample) error {
	<-s.release

	s.mu.Lock()
	defer s.mu.Unlock()
	s.appended += len(samples)
	return nil
}

func (s *stuckSink) FinishRun(ctx context.Context, id int64, ended time.Time, ticks int, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticks = ticks
	s.status = status
	return nil
}

func TestRecorderDoesNotWaitForStorage(t *testing.T) {
	sink := &stuckSink{release: make(chan struct{})}
	r := New(sink, layout(t), Config{Gait: "wag", Period: 1, TickRate: 10, BatchSize: 1})
	require.NoError(t, r.Boot())

	// Every tick fills a batch, and nothing is being written, so the queue
	// fills up and the rest are dropped. None of this may block.
	state := ybot.NewState()
	for i := 1; i <= 20; i++ {
		state.Count = i
		state.Positions = ybot.Positions{1: 0.5, 2: 0.5}
		require.NoError(t, r.Tick(time.Now(), state))
	}
	assert.GreaterOrEqual(t, r.Dropped(), 20-queuedBatches-1)

	close(sink.release)
	require.NoError(t, r.Close())

	assert.Equal(t, 20, sink.appended+r.Dropped())
	assert.Equal(t, 20, sink.ticks)
	assert.Equal(t, StatusStopped, sink.status)
}

func TestExport(t *testing.T) {
	run := Run{ID: 7, Gait: "wag", Period: 1, Status: StatusStopped, Actuators: []ybot.ActuatorID{2, 1}}
	samples := []Sample{
		{Tick: 1, Elapsed: 0, Positions: ybot.Positions{1: 0, 2: 0}},
		{Tick: 2, Elapsed: 0.1, Positions: ybot.Positions{1: 0.25, 2: 0.5}},
	}

	var buf bytes.Buffer
	l := layout(t)
	require.NoError(t, Export(&buf, run, samples, l.Name))

	assert.Equal(t,
		"run 7 gait=wag period=1 status=stopped\n"+
			"t;head (#2);tail (#1)\n"+
			"0.0000;0.0000;0.0000\n"+
			"0.1000;0.5000;0.2500\n",
		buf.String())
}
