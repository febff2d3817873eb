package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"actionfigure/internal/domain"
	"actionfigure/internal/meme"
	"actionfigure/internal/providers/letzai"
)

type memeSubmitter interface {
	Params() letzai.Params
	SubmitWith(ctx context.Context, prompt string, params letzai.Params) (domain.Submission, error)
}

type memeRequest struct {
	topic     string
	style     string
	prompt    string
	overrides letzai.Overrides
}

func newMemeCommand(ctx *commandContext) *cobra.Command {
	var (
		req         memeRequest
		width       int
		height      int
		quality     int
		creativity  int
		noWatermark bool
		list        bool
		watch       bool
	)
	cmd := &cobra.Command{
		Use:   "meme [prompt...]",
		Short: "Generate a meme from a topic model and a style",
		RunE: func(cmd *cobra.Command, args []string) error {
			components, err := ctx.ensure(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			s := ctx.styles()
			if list {
				printMemeCatalog(out, components.Memes, s)
				return nil
			}

			req.prompt = strings.Join(args, " ")
			flags := cmd.Flags()
			if flags.Changed("width") {
				req.overrides.Width = &width
			}
			if flags.Changed("height") {
				req.overrides.Height = &height
			}
			if flags.Changed("quality") {
				req.overrides.Quality = &quality
			}
			if flags.Changed("creativity") {
				req.overrides.Creativity = &creativity
			}
			if noWatermark {
				off := false
				req.overrides.HasWatermark = &off
			}

			sub, err := submitMeme(cmd.Context(), components.Memes, components.LetzAI, req, out, s)
			if err != nil {
				return err
			}
			if !watch {
				return nil
			}
			return watchJob(cmd.Context(), components.Poller, sub.JobID, ctx.cfg.PollInterval, out, s)
		},
	}
	cmd.Flags().StringVar(&req.topic, "topic", "", "Meme topic id (see --list)")
	cmd.Flags().StringVar(&req.style, "style", "", "Style id (see --list)")
	cmd.Flags().IntVar(&width, "width", 0, fmt.Sprintf("Image width (%d-%d)", letzai.MinDimension, letzai.MaxDimension))
	cmd.Flags().IntVar(&height, "height", 0, fmt.Sprintf("Image height (%d-%d)", letzai.MinDimension, letzai.MaxDimension))
	cmd.Flags().IntVar(&quality, "quality", 0, fmt.Sprintf("Quality (%d-%d)", letzai.MinLevel, letzai.MaxLevel))
	cmd.Flags().IntVar(&creativity, "creativity", 0, fmt.Sprintf("Creativity (%d-%d)", letzai.MinLevel, letzai.MaxLevel))
	cmd.Flags().BoolVar(&noWatermark, "no-watermark", false, "Ask for an image without watermark")
	cmd.Flags().BoolVar(&list, "list", false, "List topics and styles")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Poll the job until it finishes")
	return cmd
}

// submitMeme composes the prompt and starts the job, printing what was sent.
func submitMeme(ctx context.Context, catalog *meme.Catalog, submitter memeSubmitter, req memeRequest, out io.Writer, s styles) (domain.Submission, error) {
	prompt, err := catalog.Compose(req.topic, req.style, req.prompt)
	if err != nil {
		return domain.Submission{}, err
	}
	params, err := submitter.Params().Apply(req.overrides)
	if err != nil {
		return domain.Submission{}, err
	}
	sub, err := submitter.SubmitWith(ctx, prompt, params)
	if err != nil {
		return domain.Submission{}, err
	}
	fmt.Fprintf(out, "%s %s\n", s.Label.Render("prompt"), prompt)
	fmt.Fprintf(out, "%s %dx%d\n", s.Label.Render("size"), params.Width, params.Height)
	fmt.Fprintf(out, "%s %s (%s)\n", s.Label.Render("job"), sub.JobID, sub.Status)
	return sub, nil
}

func printMemeCatalog(out io.Writer, catalog *meme.Catalog, s styles) {
	fmt.Fprintln(out, s.Title.Render("Topics"))
	for _, t := range catalog.Topics() {
		fmt.Fprintf(out, "  %-22s %s %s\n", t.ID, t.Title, s.Dim.Render(t.Model))
	}
	fmt.Fprintln(out, s.Title.Render("Styles"))
	for _, st := range catalog.Styles() {
		fmt.Fprintf(out, "  %-22s %s\n", st.ID, st.Title)
	}
}
