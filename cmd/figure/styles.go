package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"actionfigure/internal/pipeline"
	"actionfigure/internal/traits"
)

type styles struct {
	Title lipgloss.Style
	Label lipgloss.Style
	Dim   lipgloss.Style
	OK    lipgloss.Style
	Error lipgloss.Style
}

func newStyles(color bool) styles {
	if !color {
		plain := lipgloss.NewStyle()
		return styles{Title: plain, Label: plain, Dim: plain, OK: plain, Error: plain}
	}
	return styles{
		Title: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ff9f")),
		Label: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#58a6ff")),
		Dim:   lipgloss.NewStyle().Foreground(lipgloss.Color("#6e7681")),
		OK:    lipgloss.NewStyle().Foreground(lipgloss.Color("#3fb950")),
		Error: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#f85149")),
	}
}

const progressWidth = 30

func renderProgress(progress int) string {
	progress = max(0, min(100, progress))
	filled := progress * progressWidth / 100
	return fmt.Sprintf("[%s%s] %3d%%", strings.Repeat("#", filled), strings.Repeat(".", progressWidth-filled), progress)
}

// renderPhase is the one-line headline printed on each phase change.
func renderPhase(s styles, st pipeline.State) string {
	switch st.Phase {
	case pipeline.PhaseAwaitingAnalysis:
		return s.Title.Render("Analyzing photo")
	case pipeline.PhaseAwaitingGeneration:
		return s.Title.Render("Submitting generation job")
	case pipeline.PhasePolling:
		id := ""
		if st.Job != nil {
			id = st.Job.ID
		}
		return s.Title.Render("Rendering") + " " + s.Dim.Render("job "+id)
	case pipeline.PhaseComplete:
		return s.OK.Render("Complete")
	case pipeline.PhaseFailed:
		if st.Failure == nil {
			return s.Error.Render("Failed")
		}
		return s.Error.Render("Failed") + " " + s.Dim.Render("("+string(st.Failure.Kind)+")") + " " + st.Failure.Message
	default:
		return s.Dim.Render("Idle")
	}
}

func renderTraits(s styles, entries []traits.Entry) string {
	width := 0
	for _, e := range entries {
		width = max(width, lipgloss.Width(e.Name))
	}
	var sb strings.Builder
	for _, e := range entries {
		value := e.Value
		if value == "" {
			value = s.Dim.Render("-")
		}
		sb.WriteString("  ")
		sb.WriteString(s.Label.Render(fmt.Sprintf("%-*s", width, e.Name)))
		sb.WriteString("  ")
		sb.WriteString(value)
		sb.WriteByte('\n')
	}
	return sb.String()
}
