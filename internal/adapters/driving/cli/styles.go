package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/ragline/internal/core/domain"
)

// Palette shared by status output.
var (
	colourPrimary = lipgloss.Color("#7C3AED")
	colourMuted   = lipgloss.Color("#6C7086")
	colourSuccess = lipgloss.Color("#A6E3A1")
	colourWarning = lipgloss.Color("#F9E2AF")
	colourError   = lipgloss.Color("#F38BA8")
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(colourPrimary)
	mutedStyle   = lipgloss.NewStyle().Foreground(colourMuted)
	successStyle = lipgloss.NewStyle().Foreground(colourSuccess)
	warningStyle = lipgloss.NewStyle().Foreground(colourWarning)
	errorStyle   = lipgloss.NewStyle().Foreground(colourError)
)

// progressWidth is the number of cells in a progress bar.
const progressWidth = 20

// statusLabel colours a job or document status.
func statusLabel(status string) string {
	switch status {
	case string(domain.JobCompleted):
		return successStyle.Render(status)
	case string(domain.JobFailed):
		return errorStyle.Render(status)
	case string(domain.JobProcessing):
		return warningStyle.Render(status)
	default:
		return mutedStyle.Render(status)
	}
}

// progressBar renders percent as a fixed-width bar.
func progressBar(percent int) string {
	percent = max(0, min(100, percent))
	filled := percent * progressWidth / 100
	bar := strings.Repeat("█", filled) + strings.Repeat("░", progressWidth-filled)
	return fmt.Sprintf("%s %3d%%", bar, percent)
}

// jobLine renders a one-line job summary.
func jobLine(j domain.ProcessingJob) string {
	name := j.DocumentName
	if name == "" {
		name = j.DocumentID
	}
	line := fmt.Sprintf("%-32s %s %s %d/%d", truncate(name, 32), progressBar(j.Progress),
		statusLabel(string(j.Status)), j.ProcessedChunks, j.TotalChunks)
	if j.Error != "" {
		line += " " + errorStyle.Render(j.Error)
	}
	return line
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
