package tui

import tea "github.com/charmbracelet/bubbletea"

// Page represents a top-level screen in the TUI. There is one per context.
type Page interface {
	ID() string
	Title() string
	// Update handles a key the app did not consume. handled is false when
	// the page has no use for it.
	Update(msg tea.KeyMsg) (cmd tea.Cmd, handled bool)
	View(width, height int) string
}
