package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"actionfigure/internal/domain"
	"actionfigure/internal/export"
	"actionfigure/internal/pipeline"
	"actionfigure/internal/storage"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var outDir, instruction string
	var archive, showAnalysis bool

	cmd := &cobra.Command{
		Use:   "run <image>",
		Short: "Analyze a photo, generate the figure and save every version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			att, err := readImage(args[0])
			if err != nil {
				return err
			}
			components, err := ctx.ensure(cmd.Context())
			if err != nil {
				return err
			}
			o, err := components.NewOrchestrator("")
			if err != nil {
				return err
			}
			defer o.Close()

			sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			s := ctx.styles()
			final, err := follow(sigCtx, o, att, instruction, out, s, showAnalysis)
			if err != nil {
				return err
			}

			store, err := storage.NewFileStore(outDir)
			if err != nil {
				return err
			}
			exp := export.New(components.LetzAI, store, &ctx.logger)
			saveCtx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()
			files, err := exp.Save(saveCtx, final.RunID, final.Job.ImageVersions)
			for _, f := range files {
				fmt.Fprintf(out, "  %s %s\n", s.Label.Render(fmt.Sprintf("%-10s", f.Resolution)), filepath.Join(store.Root(), f.Key))
			}
			if err != nil {
				return err
			}
			if archive {
				key, err := exp.Archive(saveCtx, final.RunID, files)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "  %s %s\n", s.Label.Render(fmt.Sprintf("%-10s", "archive")), filepath.Join(store.Root(), key))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", "renders", "Directory receiving the downloaded versions")
	cmd.Flags().StringVar(&instruction, "instruction", "", "Custom analysis instruction")
	cmd.Flags().BoolVar(&archive, "archive", false, "Also bundle the versions into a zip archive")
	cmd.Flags().BoolVar(&showAnalysis, "show-analysis", true, "Echo the analysis as it streams")
	return cmd
}

// follow submits att and renders state changes until the run completes,
// fails, or ctx is cancelled. Cancellation asks the orchestrator to return to
// Idle before giving up.
func follow(ctx context.Context, o *pipeline.Orchestrator, att domain.Attachment, instruction string, out io.Writer, s styles, showAnalysis bool) (pipeline.State, error) {
	states, unsubscribe := o.Subscribe(64)
	defer unsubscribe()

	runID, err := o.Submit(ctx, att, instruction)
	if err != nil {
		return pipeline.State{}, err
	}

	var (
		seen      bool
		lastPhase pipeline.Phase
		printed   int
		progress  = -1
	)
	done := ctx.Done()
	for {
		select {
		case <-done:
			done = nil
			cancelCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = o.Cancel(cancelCtx)
			cancel()
		case st, ok := <-states:
			if !ok {
				return pipeline.State{}, pipeline.ErrClosed
			}
			if st.RunID != runID {
				if seen && st.Phase == pipeline.PhaseIdle {
					fmt.Fprintln(out, s.Dim.Render("Cancelled"))
					return st, context.Canceled
				}
				continue
			}
			seen = true
			if st.Phase != lastPhase {
				if lastPhase == pipeline.PhaseAwaitingAnalysis && showAnalysis {
					fmt.Fprintln(out)
				}
				lastPhase = st.Phase
				fmt.Fprintln(out, renderPhase(s, st))
				if st.Phase == pipeline.PhaseAwaitingGeneration {
					fmt.Fprint(out, renderTraits(s, st.Traits))
				}
			}
			switch st.Phase {
			case pipeline.PhaseAwaitingAnalysis:
				if showAnalysis && len(st.Analysis) > printed {
					fmt.Fprint(out, s.Dim.Render(st.Analysis[printed:]))
					printed = len(st.Analysis)
				}
			case pipeline.PhasePolling:
				if p := st.Progress(); p != progress {
					progress = p
					fmt.Fprintln(out, "  "+renderProgress(p))
				}
			case pipeline.PhaseComplete:
				fmt.Fprintln(out, "  "+s.Label.Render("final")+" "+st.FinalImage)
				return st, nil
			case pipeline.PhaseFailed:
				return st, fmt.Errorf("%s: %s", st.Failure.Kind, st.Failure.Message)
			}
		}
	}
}

// readImage loads a local photo. The media type comes from the extension and
// falls back to content sniffing.
func readImage(path string) (domain.Attachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.Attachment{}, fmt.Errorf("file does not exist: %s", path)
		}
		return domain.Attachment{}, fmt.Errorf("read image: %w", err)
	}
	mediaType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if !strings.HasPrefix(mediaType, "image/") {
		mediaType = http.DetectContentType(data)
	}
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		mediaType = mediaType[:i]
	}
	att := domain.NewAttachment(filepath.Base(path), mediaType, data)
	if err := att.Validate(); err != nil {
		return domain.Attachment{}, err
	}
	return att, nil
}
