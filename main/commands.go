package main

import (
	"errors"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/bioinspired/ybot/analysis"
	"github.com/bioinspired/ybot/components/recorder"
	"github.com/bioinspired/ybot/transport"
	"github.com/spf13/cobra"
)

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the config and gait without moving anything",
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

			fmt.Fprintf(cmd.OutOrStdout(), "ok: gait %q has %d commands for %d actuators, peak amount %.3f\n",
				desc.Name, desc.Len(), len(desc.Actuators()), desc.MaxAmount()*cfg.Gait.AmplitudeGain)
			return nil
		},
	}
}

func newPortsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List the serial ports on this machine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ports, err := transport.ListPorts()
			if err != nil {
				return err
			}

			if len(ports) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no serial ports found")
				return nil
			}

			for _, p := range ports {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}
}

func newAnalyzeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze FILE...",
		Short: "Work out the walking speed from tracking data",
		Long: `Reads "time;x;y" tracking files (two header lines, then one sample per
line), and prints the average speed of each, and their mean.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var tracks []*analysis.Track
			for _, path := range args {
				t, err := analysis.LoadTrack(path)
				if err != nil {
					return err
				}
				tracks = append(tracks, t)
			}

			s, err := analysis.Analyze(tracks)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, r := range s.Results {
				fmt.Fprintf(out, "%s: %.4f cm/s (trend x=%.4f y=%.4f cm/s)\n", r.Name, r.Speed, r.Fit.X.Slope, r.Fit.Y.Slope)
			}
			fmt.Fprintf(out, "mean of %d: %.4f cm/s\n", len(s.Results), s.MeanSpeed)
			return nil
		},
	}
}

func newHistoryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "history [RUN]",
		Short: "List recorded runs, or export one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}

			store, err := recorder.Open(cfg.Recorder.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if len(args) == 0 {
				runs, err := store.Runs(ctx)
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "RUN\tGAIT\tSTARTED\tTICKS\tSTATUS")
				for _, r := range runs {
					fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n", r.ID, r.Gait, r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Ticks, r.Status)
				}
				return w.Flush()
			}

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("bad run id %q", args[0])
			}

			run, err := store.Run(ctx, id)
			if errors.Is(err, recorder.ErrNotFound) {
				return fmt.Errorf("no run %d in %s", id, cfg.Recorder.Path)
			}
			if err != nil {
				return err
			}

			samples, err := store.Samples(ctx, id)
			if err != nil {
				return err
			}

			layout, err := cfg.Layout()
			if err != nil {
				return err
			}

			return recorder.Export(out, run, samples, layout.Name)
		},
	}
}
