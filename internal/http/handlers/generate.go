package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"actionfigure/internal/imagegen"
	"actionfigure/internal/traits"
)

type generateRequest struct {
	Traits string `json:"traits"`
}

type generateResponse struct {
	JobID  string         `json:"job_id"`
	Status string         `json:"status"`
	Prompt string         `json:"prompt"`
	Traits []traits.Entry `json:"traits"`
}

// Generate turns trait markdown into a prompt and starts a generation job.
func (a *App) Generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if strings.TrimSpace(req.Traits) == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "traits required")
		return
	}

	set := traits.Parse(req.Traits, a.Vocabulary)
	prompt := imagegen.BuildPrompt(set)
	sub, err := a.Submitter.Submit(r.Context(), prompt)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, generateResponse{
		JobID:  sub.JobID,
		Status: string(sub.Status),
		Prompt: prompt,
		Traits: set.Entries(),
	})
}
