package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// HelpModal displays the key bindings and the board layout.
type HelpModal struct {
	keys     KeyMap
	viewport viewport.Model
	content  string
}

func NewHelpModal(keys KeyMap, content string) *HelpModal {
	return &HelpModal{
		keys:     keys,
		viewport: viewport.New(80, 20),
		content:  content,
	}
}

// Update scrolls the modal. It reports true when the modal should close.
func (h *HelpModal) Update(msg tea.Msg) (bool, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, h.keys.Help), key.Matches(msg, h.keys.Escape), key.Matches(msg, h.keys.Quit):
			return true, nil
		case key.Matches(msg, h.keys.Up):
			h.viewport.ScrollUp(1)
			return false, nil
		case key.Matches(msg, h.keys.Down):
			h.viewport.ScrollDown(1)
			return false, nil
		case key.Matches(msg, h.keys.PageUp):
			h.viewport.HalfPageUp()
			return false, nil
		case key.Matches(msg, h.keys.PageDown):
			h.viewport.HalfPageDown()
			return false, nil
		}
	}
	var cmd tea.Cmd
	h.viewport, cmd = h.viewport.Update(msg)
	return false, cmd
}

// View renders the modal centered in width x height.
func (h *HelpModal) View(width, height int) string {
	modalWidth := max(width-8, 20)   // 4 chars margin on each side
	modalHeight := max(height-4, 8)  // 2 lines margin top and bottom
	contentWidth := modalWidth - 4   // modal borders
	contentHeight := modalHeight - 4 // header + status

	h.viewport.Width = contentWidth
	h.viewport.Height = contentHeight
	h.viewport.SetContent(lipgloss.NewStyle().Width(contentWidth - 2).Render(h.content))

	contentPane := lipgloss.NewStyle().
		Width(contentWidth).
		Height(contentHeight).
		Border(lipgloss.NormalBorder()).
		BorderForeground(ColorGray).
		Render(h.viewport.View())

	header := lipgloss.NewStyle().
		Width(contentWidth).
		Foreground(ColorBlue).
		Bold(true).
		Render("Help")

	statusBar := dimStyle.Render("↑/↓: Scroll | PgUp/PgDn: Page | ?/ESC: Close")

	modal := lipgloss.JoinVertical(lipgloss.Left, header, contentPane, statusBar)

	finalModal := lipgloss.NewStyle().
		Width(modalWidth).
		Height(modalHeight).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBlue).
		Render(modal)

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, finalModal)
}

// helpContent lists the key bindings followed by every context and its
// sources.
func helpContent(keys KeyMap, pages []Page, sources func(id string) []string) string {
	var b strings.Builder
	b.WriteString("KEYS:\n")
	for _, group := range keys.FullHelp() {
		for _, k := range group {
			fmt.Fprintf(&b, "  %-12s %s\n", k.Help().Key, k.Help().Desc)
		}
		b.WriteString("\n")
	}

	b.WriteString("CONTEXTS:\n")
	for i, p := range pages {
		fmt.Fprintf(&b, "  %d  %-12s %s\n", i+1, p.Title(), strings.Join(sources(p.ID()), ", "))
	}
	b.WriteString("\nOnly the visible context refreshes. Countdowns in the header\n")
	b.WriteString("belong to no context and keep ticking across switches.\n")
	return b.String()
}
