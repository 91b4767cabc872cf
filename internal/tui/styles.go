package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/tinytelemetry/opsdeck/internal/countdown"
	"github.com/tinytelemetry/opsdeck/internal/jobs"
)

// Palette
var (
	ColorNavy   = lipgloss.Color("#1B2A49")
	ColorBlue   = lipgloss.Color("39")
	ColorGreen  = lipgloss.Color("42")
	ColorOrange = lipgloss.Color("208")
	ColorRed    = lipgloss.Color("196")
	ColorGray   = lipgloss.Color("244")
	ColorWhite  = lipgloss.Color("255")
)

var (
	sectionStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(ColorNavy).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Foreground(ColorBlue).
			Bold(true)

	dimStyle = lipgloss.NewStyle().Foreground(ColorGray)

	errorStyle = lipgloss.NewStyle().Foreground(ColorRed)

	okStyle = lipgloss.NewStyle().Foreground(ColorGreen)

	warnStyle = lipgloss.NewStyle().Foreground(ColorOrange)

	barStyle = lipgloss.NewStyle().
			Background(ColorNavy).
			Foreground(ColorWhite)
)

// bucketColor maps a countdown urgency bucket to its color.
func bucketColor(b countdown.Bucket) lipgloss.Color {
	switch b {
	case countdown.BucketWarning:
		return ColorOrange
	case countdown.BucketUrgent:
		return ColorRed
	case countdown.BucketTerminal:
		return ColorGray
	default:
		return ColorGreen
	}
}

func jobStateStyle(s jobs.State) lipgloss.Style {
	switch s {
	case jobs.StateRequested, jobs.StateRunning:
		return warnStyle
	case jobs.StateDone:
		return okStyle
	case jobs.StateFailed:
		return errorStyle
	default:
		return dimStyle
	}
}
