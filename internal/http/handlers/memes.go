package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"actionfigure/internal/domain"
	"actionfigure/internal/meme"
	"actionfigure/internal/providers/letzai"
)

// MemeSubmitter starts generation jobs with per-request params.
type MemeSubmitter interface {
	Params() letzai.Params
	SubmitWith(ctx context.Context, prompt string, params letzai.Params) (domain.Submission, error)
}

type memeRequest struct {
	Topic  string `json:"topic"`
	Style  string `json:"style"`
	Prompt string `json:"prompt"`
	letzai.Overrides
}

type memeResponse struct {
	JobID  string     `json:"job_id"`
	Status string     `json:"status"`
	Prompt string     `json:"prompt"`
	Topic  meme.Topic `json:"topic"`
	Style  meme.Style `json:"style"`
}

type memeCatalogResponse struct {
	Topics []meme.Topic `json:"topics"`
	Styles []meme.Style `json:"styles"`
}

// MemeCatalog lists the selectable topics and styles.
func (a *App) MemeCatalog(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, memeCatalogResponse{Topics: a.Memes.Topics(), Styles: a.Memes.Styles()})
}

// GenerateMeme composes a meme prompt and starts a generation job. Status is
// read through the job status endpoint like any other job.
func (a *App) GenerateMeme(w http.ResponseWriter, r *http.Request) {
	if a.MemeSubmitter == nil {
		a.error(w, http.StatusServiceUnavailable, "unavailable", "meme generation is not configured")
		return
	}
	var req memeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16<<10)).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}

	prompt, err := a.Memes.Compose(req.Topic, req.Style, req.Prompt)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	params, err := a.MemeSubmitter.Params().Apply(req.Overrides)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	// Compose already validated both ids.
	topic, _ := a.Memes.Topic(req.Topic)
	style, _ := a.Memes.Style(req.Style)

	sub, err := a.MemeSubmitter.SubmitWith(r.Context(), prompt, params)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, memeResponse{
		JobID:  sub.JobID,
		Status: string(sub.Status),
		Prompt: prompt,
		Topic:  topic,
		Style:  style,
	})
}
