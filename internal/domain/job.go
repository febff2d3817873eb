package domain

import "strings"

// JobStatus enumerates provider job lifecycle states.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusComplete   JobStatus = "complete"
	JobStatusError      JobStatus = "error"
)

// ParseJobStatus normalizes a provider status string. ok is false for values
// outside the known set.
func ParseJobStatus(raw string) (JobStatus, bool) {
	switch JobStatus(strings.ToLower(strings.TrimSpace(raw))) {
	case JobStatusQueued:
		return JobStatusQueued, true
	case JobStatusProcessing:
		return JobStatusProcessing, true
	case JobStatusComplete:
		return JobStatusComplete, true
	case JobStatusError:
		return JobStatusError, true
	default:
		return "", false
	}
}

// Terminal reports whether no further polling is needed.
func (s JobStatus) Terminal() bool {
	return s == JobStatusComplete || s == JobStatusError
}

// Submission is the synchronous answer to a generation request.
type Submission struct {
	JobID  string    `json:"job_id"`
	Status JobStatus `json:"status"`
}

// StatusReport is one decoded status response from the generation provider.
// Progress is nil when the provider omitted it.
type StatusReport struct {
	Status        JobStatus         `json:"status"`
	Progress      *int              `json:"progress,omitempty"`
	PreviewImage  string            `json:"preview_image,omitempty"`
	ImageVersions map[string]string `json:"image_versions,omitempty"`
	Message       string            `json:"message,omitempty"`
}

// GenerationJob tracks one in-flight provider job. Only the status poller
// mutates it.
type GenerationJob struct {
	ID            string            `json:"id"`
	Status        JobStatus         `json:"status"`
	Progress      int               `json:"progress"`
	PreviewImage  string            `json:"preview_image,omitempty"`
	ImageVersions map[string]string `json:"image_versions,omitempty"`
}

// NewGenerationJob starts tracking a freshly submitted job at progress 0.
func NewGenerationJob(sub Submission) *GenerationJob {
	status := sub.Status
	if status == "" {
		status = JobStatusQueued
	}
	return &GenerationJob{ID: sub.JobID, Status: status}
}

// Clone returns a deep copy safe to hand to another goroutine.
func (j *GenerationJob) Clone() *GenerationJob {
	if j == nil {
		return nil
	}
	out := *j
	if j.ImageVersions != nil {
		out.ImageVersions = make(map[string]string, len(j.ImageVersions))
		for k, v := range j.ImageVersions {
			out.ImageVersions[k] = v
		}
	}
	return &out
}
