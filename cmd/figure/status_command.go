package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"actionfigure/internal/domain"
	"actionfigure/internal/pipeline"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "status <job-id>",
		Short: "Check a generation job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			components, err := ctx.ensure(cmd.Context())
			if err != nil {
				return err
			}
			interval := ctx.cfg.PollInterval
			if !watch {
				interval = 0
			}
			return watchJob(cmd.Context(), components.Poller, args[0], interval, cmd.OutOrStdout(), ctx.styles())
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Keep polling until the job finishes")
	return cmd
}

// watchJob checks jobID once, or every interval until a terminal status when
// interval is positive.
func watchJob(ctx context.Context, poller *pipeline.Poller, jobID string, interval time.Duration, out io.Writer, s styles) error {
	progress := 0
	for {
		snap, err := poller.Check(ctx, jobID, progress)
		if err != nil {
			return err
		}
		progress = snap.Progress
		fmt.Fprintf(out, "%s %-10s %s\n", s.Label.Render(jobID), snap.Status, renderProgress(snap.Progress))

		switch {
		case snap.Status == domain.JobStatusError:
			return fmt.Errorf("generation job failed: %s", snap.Message)
		case snap.Terminal:
			for _, res := range pipeline.DisplayResolutions {
				if u := snap.ImageVersions[res]; u != "" {
					fmt.Fprintf(out, "  %s %s\n", s.Dim.Render(fmt.Sprintf("%-10s", res)), u)
				}
			}
			fmt.Fprintln(out, "  "+s.OK.Render("final")+" "+snap.FinalImage)
			return nil
		case interval <= 0:
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}
