package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"actionfigure/internal/domain"
	"actionfigure/internal/meme"
	"actionfigure/internal/providers/letzai"
)

type recordingMemeSubmitter struct {
	prompt string
	params letzai.Params
	calls  int
}

func (r *recordingMemeSubmitter) Params() letzai.Params { return letzai.DefaultParams() }

func (r *recordingMemeSubmitter) SubmitWith(ctx context.Context, prompt string, params letzai.Params) (domain.Submission, error) {
	r.calls++
	r.prompt, r.params = prompt, params
	return domain.Submission{JobID: "meme-1", Status: domain.JobStatusQueued}, nil
}

func TestSubmitMeme(t *testing.T) {
	sub := &recordingMemeSubmitter{}
	height := 1536
	req := memeRequest{topic: "hide-pain-harold", style: "watercolor", prompt: "code review", overrides: letzai.Overrides{Height: &height}}

	var out bytes.Buffer
	got, err := submitMeme(context.Background(), meme.DefaultCatalog(), sub, req, &out, newStyles(false))
	if err != nil {
		t.Fatalf("submitMeme error: %v", err)
	}
	if got.JobID != "meme-1" {
		t.Fatalf("job = %+v", got)
	}
	if sub.prompt != "@meme_hide_the_pain_harold code review, Watercolor style" {
		t.Fatalf("prompt = %q", sub.prompt)
	}
	if sub.params.Height != 1536 || sub.params.Width != 1024 {
		t.Fatalf("params = %+v", sub.params)
	}
	for _, want := range []string{"code review", "1024x1536", "meme-1 (queued)"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestSubmitMemeRejectsBeforeCalling(t *testing.T) {
	quality := 42
	cases := map[string]struct {
		req  memeRequest
		want error
	}{
		"unknown topic": {req: memeRequest{topic: "doge", prompt: "wow"}, want: meme.ErrUnknownTopic},
		"empty prompt":  {req: memeRequest{}, want: meme.ErrEmptyPrompt},
		"bad quality":   {req: memeRequest{prompt: "wow", overrides: letzai.Overrides{Quality: &quality}}, want: letzai.ErrInvalidParams},
	}
	for name, tt := range cases {
		t.Run(name, func(t *testing.T) {
			sub := &recordingMemeSubmitter{}
			_, err := submitMeme(context.Background(), meme.DefaultCatalog(), sub, tt.req, &bytes.Buffer{}, newStyles(false))
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if sub.calls != 0 {
				t.Fatal("provider must not be called")
			}
		})
	}
}

func TestPrintMemeCatalog(t *testing.T) {
	var out bytes.Buffer
	printMemeCatalog(&out, meme.DefaultCatalog(), newStyles(false))
	for _, want := range []string{"grumpy-cat", "@meme_grumpy_cat", "80s-synthwave", "Steampunk"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("catalog output missing %q", want)
		}
	}
}
