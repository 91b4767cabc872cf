package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// renderBranding renders "opsdeck" with a green to light blue gradient.
func renderBranding() string {
	colors := []string{"#49E209", "#35DD2F", "#21D955", "#0DD47B", "#00D0A1", "#00CAC7", "#00B4E0"}

	var b strings.Builder
	for i, char := range "opsdeck" {
		style := lipgloss.NewStyle().
			Background(ColorNavy).
			Foreground(lipgloss.Color(colors[i])).Bold(true)
		b.WriteString(style.Render(string(char)))
	}
	return b.String()
}

// renderHeader renders the context tabs on the left and the global
// countdowns on the right.
func (a *App) renderHeader() string {
	tabs := make([]string, 0, len(a.pages))
	for i, p := range a.pages {
		label := fmt.Sprintf(" %d %s ", i+1, p.Title())
		style := barStyle
		if p.ID() == a.board.Active() {
			style = barStyle.Foreground(ColorBlue).Bold(true).Underline(true)
		}
		tabs = append(tabs, style.Render(label))
	}
	left := barStyle.Render(" ") + renderBranding() + barStyle.Render("  ") + strings.Join(tabs, barStyle.Render("│"))

	var globals []string
	for _, d := range a.board.Countdowns("") {
		text := lipgloss.NewStyle().Background(ColorNavy).Foreground(bucketColor(d.Bucket)).Render(d.Text)
		globals = append(globals, barStyle.Render(countdownLabel(d)+" ")+text)
		if len(globals) == 3 {
			break
		}
	}
	right := strings.Join(globals, barStyle.Render("  ")) + barStyle.Render(" ")

	gap := a.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		return left + barStyle.Render(strings.Repeat(" ", max(a.width-lipgloss.Width(left), 0)))
	}
	return left + barStyle.Render(strings.Repeat(" ", gap)) + right
}

// renderStatusLine renders the footer: the active context's status text, its
// source count and the key hints.
func (a *App) renderStatusLine() string {
	var left string
	if view, ok := a.board.Context(a.board.Active()); ok {
		status := view.StatusLine
		switch {
		case view.Status.LastError != "":
			status = barStyle.Foreground(ColorRed).Render(truncate(status, a.width/2))
		default:
			status = barStyle.Render(status)
		}
		left = barStyle.Render(fmt.Sprintf(" [%s] ", view.Title)) + status +
			barStyle.Render(fmt.Sprintf("  %d sources", len(view.Sources)))
	}

	var hints []string
	for _, b := range a.keys.ShortHelp() {
		hints = append(hints, b.Help().Key+": "+b.Help().Desc)
	}
	right := strings.Join(hints, " • ") + " "
	if a.width < 100 {
		right = "?: Help • q: Quit "
	}
	right = barStyle.Foreground(ColorGray).Render(right)

	gap := a.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		return left
	}
	return left + barStyle.Render(strings.Repeat(" ", gap)) + right
}
