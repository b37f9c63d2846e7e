package recorder

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/bioinspired/ybot"
	"github.com/bioinspired/ybot/servos"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithFields(logrus.Fields{
	"pkg": "recorder",
})

// Sink is where recorded runs end up. *Store is the usual one.
type Sink interface {
	CreateRun(ctx context.Context, r Run) (int64, error)
	AppendSamples(ctx context.Context, run int64, samples []Sample) error
	FinishRun(ctx context.Context, id int64, ended time.Time, ticks int, status string) error
}

// How many full batches may wait for the writer before new ones are dropped.
const queuedBatches = 8

type Config struct {
	Gait     string
	Period   float64
	TickRate float64

	// Samples are written in batches of this size. Defaults to one second of
	// ticks.
	BatchSize int

	// Reports how the run ended, when the recorder is closed. Components
	// aren't told why they're being closed, so the caller must say.
	// Defaults to StatusStopped.
	Status func() string
}

// Recorder stores the trajectory of each run. It only observes: storage
// problems are logged, never returned, so they can't stop the robot. Batches
// are written by a separate goroutine, so a slow disk can't hold up a tick
// either; if the writer falls too far behind, batches are dropped.
type Recorder struct {
	sink   Sink
	layout *servos.Layout
	cfg    Config

	run   int64
	buf   []Sample
	ticks int

	batches chan []Sample
	done    chan struct{}
	dropped atomic.Int64
}

func New(sink Sink, layout *servos.Layout, cfg Config) *Recorder {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = int(cfg.TickRate)
		if cfg.BatchSize <= 0 {
			cfg.BatchSize = 1
		}
	}

	return &Recorder{
		sink:   sink,
		layout: layout,
		cfg:    cfg,
		buf:    make([]Sample, 0, cfg.BatchSize),
	}
}

func (r *Recorder) Boot() error {
	id, err := r.sink.CreateRun(context.Background(), Run{
		Gait:      r.cfg.Gait,
		Period:    r.cfg.Period,
		TickRate:  r.cfg.TickRate,
		Actuators: r.layout.IDs(),
		StartedAt: time.Now(),
	})
	if err != nil {
		log.Errorf("not recording: %s", err)
		return nil
	}

	r.run = id
	r.batches = make(chan []Sample, queuedBatches)
	r.done = make(chan struct{})
	go r.write(id)

	log.Infof("recording run %d", id)
	return nil
}

func (r *Recorder) Tick(now time.Time, state *ybot.State) error {
	r.ticks = state.Count
	if r.run == 0 {
		return nil
	}

	smp := Sample{
		Tick:      state.Count,
		At:        now,
		Elapsed:   state.Elapsed,
		Phase:     state.Phase,
		Positions: make(ybot.Positions, len(state.Positions)),
		Outputs:   make(map[ybot.ActuatorID]int, len(state.Outputs)),
	}
	for id, p := range state.Positions {
		smp.Positions[id] = p
	}
	for i, id := range r.layout.IDs() {
		if i < len(state.Outputs) {
			smp.Outputs[id] = state.Outputs[i]
		}
	}

	r.buf = append(r.buf, smp)
	if len(r.buf) >= r.cfg.BatchSize {
		r.hand()
	}

	return nil
}

// hand passes the buffered samples to the writer without waiting for it.
func (r *Recorder) hand() {
	select {
	case r.batches <- r.buf:
	default:
		r.dropped.Add(int64(len(r.buf)))
		log.Warnf("writer is behind, dropped %d samples", len(r.buf))
	}

	r.buf = make([]Sample, 0, r.cfg.BatchSize)
}

// write stores batches until the queue is closed.
func (r *Recorder) write(run int64) {
	defer close(r.done)

	for b := range r.batches {
		err := r.sink.AppendSamples(context.Background(), run, b)
		if err != nil {
			r.dropped.Add(int64(len(b)))
			log.Errorf("dropped %d samples: %s", len(b), err)
		}
	}
}

// Close writes any buffered samples and marks the run finished. The sink is
// not closed; it belongs to the caller.
func (r *Recorder) Close() error {
	if r.run == 0 {
		return nil
	}

	// The loop has stopped, so it's fine to wait for the writer now.
	if len(r.buf) > 0 {
		r.batches <- r.buf
		r.buf = nil
	}
	close(r.batches)
	<-r.done

	status := StatusStopped
	if r.cfg.Status != nil {
		status = r.cfg.Status()
	}

	err := r.sink.FinishRun(context.Background(), r.run, time.Now(), r.ticks, status)
	if err != nil {
		log.Errorf("finish run %d: %s", r.run, err)
	}

	log.Infof("recorded run %d: ticks=%d dropped=%d status=%s", r.run, r.ticks, r.Dropped(), status)
	r.run = 0
	return nil
}

// RunID returns the id of the run being recorded, or zero.
func (r *Recorder) RunID() int64 {
	return r.run
}

// Dropped returns the number of samples which were never stored.
func (r *Recorder) Dropped() int {
	return int(r.dropped.Load())
}
