package pipeline

import (
	"time"

	"actionfigure/internal/domain"
	"actionfigure/internal/traits"
)

// Phase names a pipeline state.
type Phase string

const (
	PhaseIdle               Phase = "idle"
	PhaseAwaitingAnalysis   Phase = "awaiting_analysis"
	PhaseAwaitingGeneration Phase = "awaiting_generation"
	PhasePolling            Phase = "polling"
	PhaseComplete           Phase = "complete"
	PhaseFailed             Phase = "failed"
)

// Active reports whether a run is in progress.
func (p Phase) Active() bool {
	switch p {
	case PhaseAwaitingAnalysis, PhaseAwaitingGeneration, PhasePolling:
		return true
	}
	return false
}

// Terminal reports whether the phase waits for new user input.
func (p Phase) Terminal() bool {
	return p == PhaseComplete || p == PhaseFailed
}

// Failure explains a Failed state.
type Failure struct {
	Kind    domain.Kind `json:"kind"`
	Message string      `json:"message"`
}

// State is a snapshot of one orchestrator. Only the fields meaningful for
// Phase are set: Analysis while analysing, Job while polling, FinalImage when
// complete, Failure when failed. Traits and Prompt survive into later phases.
type State struct {
	Phase      Phase                 `json:"phase"`
	RunID      string                `json:"run_id,omitempty"`
	Analysis   string                `json:"analysis,omitempty"`
	Traits     []traits.Entry        `json:"traits,omitempty"`
	Prompt     string                `json:"prompt,omitempty"`
	Job        *domain.GenerationJob `json:"job,omitempty"`
	FinalImage string                `json:"final_image,omitempty"`
	Failure    *Failure              `json:"failure,omitempty"`
	UpdatedAt  time.Time             `json:"updated_at"`
}

// Clone returns a copy that shares nothing mutable with s.
func (s State) Clone() State {
	out := s
	if s.Traits != nil {
		out.Traits = append([]traits.Entry(nil), s.Traits...)
	}
	out.Job = s.Job.Clone()
	if s.Failure != nil {
		f := *s.Failure
		out.Failure = &f
	}
	return out
}

// Progress returns the job progress, or 0 without a job.
func (s State) Progress() int {
	if s.Job == nil {
		return 0
	}
	return s.Job.Progress
}
