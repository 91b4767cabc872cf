package tui

import (
	"time"

	"github.com/charmbracelet/lipgloss"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// spinnerFrame picks a frame from the board clock so the indicator advances
// with every heartbeat repaint.
func spinnerFrame(now time.Time) string {
	return spinnerFrames[now.Unix()%int64(len(spinnerFrames))]
}

// renderLoadingPlaceholder renders the indicator shown before the first
// window size arrives.
func renderLoadingPlaceholder(width, height int, now time.Time) string {
	loadingStyle := lipgloss.NewStyle().
		Foreground(ColorGray).
		Italic(true)

	text := loadingStyle.Render(spinnerFrame(now) + " Loading...")

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, text)
}
