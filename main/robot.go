package main

import (
	"fmt"

	"github.com/bioinspired/ybot"
	"github.com/bioinspired/ybot/components/locomotion"
	"github.com/bioinspired/ybot/components/locomotion/gait"
	"github.com/bioinspired/ybot/components/output"
	"github.com/bioinspired/ybot/components/recorder"
	"github.com/bioinspired/ybot/config"
	"github.com/bioinspired/ybot/scheduler"
	"github.com/bioinspired/ybot/transport"
)

// build wires the components together in tick order: locomotion works out
// the positions, output sends them, and the recorder (if any) stores both.
func build(cfg *config.Config, desc *gait.Description, port transport.Port, store *recorder.Store, s *scheduler.Scheduler) (*ybot.Robot, error) {
	layout, err := cfg.Layout()
	if err != nil {
		return nil, err
	}

	loco, err := locomotion.New(desc, locomotion.Config{
		Period:        cfg.Gait.Period,
		AmplitudeGain: cfg.Gait.AmplitudeGain,
	}, layout)
	if err != nil {
		return nil, fmt.Errorf("locomotion: %w", err)
	}

	mapper, err := output.NewMapper(cfg.Control.MaxOutput)
	if err != nil {
		return nil, err
	}

	codec, err := cfg.Codec()
	if err != nil {
		return nil, err
	}

	r := ybot.NewRobot()
	r.Add(loco)
	r.Add(output.New(port, codec, mapper, layout))

	if store != nil {
		r.Add(recorder.New(store, layout, recorder.Config{
			Gait:      desc.Name,
			Period:    cfg.Gait.Period,
			TickRate:  cfg.Control.TickRateHz,
			BatchSize: cfg.Recorder.BatchSize,
			Status: func() string {
				return s.State().String()
			},
		}))
	}

	return r, nil
}

func newScheduler(cfg *config.Config, clock scheduler.Clock) (*scheduler.Scheduler, error) {
	return scheduler.New(scheduler.Options{
		Rate:        cfg.Control.TickRateHz,
		MaxDuration: cfg.RunDuration(),
		Clock:       clock,
	})
}

// loadGait reads the configured gait, and checks it against the rest of the
// config.
func loadGait(cfg *config.Config) (*gait.Description, error) {
	desc, err := gait.Load(cfg.Gait.File)
	if err != nil {
		return nil, err
	}

	err = cfg.CheckGait(desc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cfg.Gait.File, err)
	}

	return desc, nil
}
