package pipeline

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"actionfigure/internal/domain"
	"actionfigure/internal/infra"
)

// DisplayResolutions is the preference order for the final image version.
var DisplayResolutions = []string{"640x640", "1920x1920", "original", "240x240", "96x96"}

// StatusFetcher retrieves one raw status report for a job.
type StatusFetcher interface {
	Status(ctx context.Context, jobID string) (domain.StatusReport, error)
}

// Snapshot is one interpreted status check.
type Snapshot struct {
	Status        domain.JobStatus  `json:"status"`
	Progress      int               `json:"progress"`
	PreviewImage  string            `json:"preview_image,omitempty"`
	ImageVersions map[string]string `json:"image_versions,omitempty"`
	FinalImage    string            `json:"final_image,omitempty"`
	Terminal      bool              `json:"terminal"`
	Message       string            `json:"message,omitempty"`
}

// Poller is the JobStatusPoller: it performs a single status request per
// call and never retries.
type Poller struct {
	fetcher StatusFetcher
	timeout time.Duration
	logger  *infra.Logger
}

func NewPoller(fetcher StatusFetcher, timeout time.Duration, logger *infra.Logger) (*Poller, error) {
	if fetcher == nil {
		return nil, errors.New("pipeline: status fetcher is required")
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	return &Poller{fetcher: fetcher, timeout: timeout, logger: logger}, nil
}

// Check fetches the status of jobID. previous is the last known progress;
// the returned progress never goes below it for a non-terminal job.
func (p *Poller) Check(ctx context.Context, jobID string, previous int) (Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	report, err := p.fetcher.Status(ctx, jobID)
	if err != nil {
		return Snapshot{}, domain.Classify(ctx, err, "status check failed")
	}
	snap, err := Interpret(report, previous)
	if err != nil {
		return Snapshot{}, err
	}
	p.logger.Debug().
		Str("job_id", jobID).
		Str("status", string(snap.Status)).
		Int("progress", snap.Progress).
		Msg("poller: status checked")
	return snap, nil
}

// Interpret applies the per-status rules to a raw report.
func Interpret(report domain.StatusReport, previous int) (Snapshot, error) {
	status, ok := domain.ParseJobStatus(string(report.Status))
	if !ok {
		return Snapshot{}, domain.Errorf(domain.KindMalformedResponse, "unknown job status %q", report.Status)
	}
	snap := Snapshot{
		Status:       status,
		Progress:     clampProgress(previous),
		PreviewImage: strings.TrimSpace(report.PreviewImage),
	}
	switch status {
	case domain.JobStatusComplete:
		final := FinalImage(report.ImageVersions)
		if final == "" {
			return Snapshot{}, domain.Errorf(domain.KindMalformedResponse, "job reported complete without image versions")
		}
		snap.ImageVersions = copyVersions(report.ImageVersions)
		snap.FinalImage = final
		snap.Progress = 100
		snap.Terminal = true
	case domain.JobStatusError:
		snap.Terminal = true
		snap.Message = strings.TrimSpace(report.Message)
		if snap.Message == "" {
			snap.Message = "provider reported an error"
		}
	default:
		if report.Progress != nil {
			snap.Progress = max(snap.Progress, clampProgress(*report.Progress))
		}
	}
	return snap, nil
}

// FinalImage picks the display version: the first of DisplayResolutions that
// is present, otherwise the lexically first key. Empty values are ignored.
func FinalImage(versions map[string]string) string {
	for _, key := range DisplayResolutions {
		if v := strings.TrimSpace(versions[key]); v != "" {
			return v
		}
	}
	keys := make([]string, 0, len(versions))
	for k, v := range versions {
		if strings.TrimSpace(v) != "" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)
	return strings.TrimSpace(versions[keys[0]])
}

// ApplyTo records snap on job.
func (s Snapshot) ApplyTo(job *domain.GenerationJob) {
	if job == nil {
		return
	}
	job.Status = s.Status
	job.Progress = s.Progress
	if s.PreviewImage != "" {
		job.PreviewImage = s.PreviewImage
	}
	if s.ImageVersions != nil {
		job.ImageVersions = copyVersions(s.ImageVersions)
	}
}

func clampProgress(p int) int {
	return min(max(p, 0), 100)
}

func copyVersions(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
