package main

import (
	"fmt"

	"github.com/bioinspired/ybot/components/recorder"
	fakeserial "github.com/bioinspired/ybot/fake/serial"
	"github.com/bioinspired/ybot/transport"
	"github.com/bioinspired/ybot/utils"
	"github.com/spf13/cobra"
)

func newRunCmd(a *app) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Walk the configured gait until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}

			desc, err := loadGait(cfg)
			if err != nil {
				return err
			}

			var store *recorder.Store
			if cfg.Recorder.Enabled {
				store, err = recorder.Open(cfg.Recorder.Path)
				if err != nil {
					return fmt.Errorf("recorder: %w", err)
				}
				defer store.Close()
			}

			s, err := newScheduler(cfg, nil)
			if err != nil {
				return err
			}

			var port transport.Port
			if dryRun {
				log.Info("dry run, frames will not be sent")
				port = fakeserial.New()
			} else {
				port, err = transport.Open(cfg.Transport())
				if err != nil {
					return err
				}
			}

			r, err := build(cfg, desc, port, store, s)
			if err != nil {
				_ = port.Close()
				return err
			}

			ctx, stop := utils.StopContext(cmd.Context())
			defer stop()

			log.Infof("walking %q: period=%.3fs gain=%.3f rate=%.1fHz", desc.Name, cfg.Gait.Period, cfg.Gait.AmplitudeGain, cfg.Control.TickRateHz)
			err = s.Run(ctx, r)

			fmt.Fprintf(cmd.OutOrStdout(), "%s after %d ticks (%d overruns)\n", s.State(), s.Ticks(), s.Overruns())
			return err
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "don't open the serial port, only log the frames")
	return cmd
}
