package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"actionfigure/internal/domain"
)

type jobStatusResponse struct {
	JobID         string            `json:"job_id"`
	Status        string            `json:"status"`
	Progress      int               `json:"progress"`
	PreviewImage  string            `json:"preview_image,omitempty"`
	ImageVersions map[string]string `json:"image_versions,omitempty"`
	FinalImage    string            `json:"final_image,omitempty"`
	Complete      bool              `json:"complete"`
	Error         bool              `json:"error"`
	Message       string            `json:"message,omitempty"`
}

// JobStatus performs one status check. The optional "progress" query value is
// the caller's last seen progress and keeps reported progress monotonic.
func (a *App) JobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := strings.TrimSpace(chi.URLParam(r, "jobID"))
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job id required")
		return
	}
	previous := 0
	if raw := r.URL.Query().Get("progress"); raw != "" {
		p, err := strconv.Atoi(raw)
		if err != nil {
			a.error(w, http.StatusBadRequest, "bad_request", "progress must be an integer")
			return
		}
		previous = p
	}

	snap, err := a.Poller.Check(r.Context(), jobID, previous)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, jobStatusResponse{
		JobID:         jobID,
		Status:        string(snap.Status),
		Progress:      snap.Progress,
		PreviewImage:  snap.PreviewImage,
		ImageVersions: snap.ImageVersions,
		FinalImage:    snap.FinalImage,
		Complete:      snap.Status == domain.JobStatusComplete,
		Error:         snap.Status == domain.JobStatusError,
		Message:       snap.Message,
	})
}
