// Package tui paints the board. It owns no orchestration state: every key
// that changes something is forwarded to the board as a message, and every
// other message is routed to the board unchanged.
package tui

import (
	"strconv"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/tinytelemetry/opsdeck/internal/board"
)

// App is the top-level Bubble Tea model. It routes keys between the context
// pages and drives the board.
type App struct {
	board *board.Board
	log   zerolog.Logger
	keys  KeyMap

	pages []Page
	index map[string]int
	help  *HelpModal

	width  int
	height int
}

// NewApp creates an App with one page per board context, in declaration
// order.
func NewApp(b *board.Board, log zerolog.Logger) *App {
	keys := DefaultKeyMap()
	a := &App{
		board: b,
		log:   log.With().Str("component", "tui").Logger(),
		keys:  keys,
		index: make(map[string]int),
	}
	for _, c := range b.Spec().Contexts {
		a.index[c.ID] = len(a.pages)
		a.pages = append(a.pages, NewContextPage(c, b, keys))
	}
	return a
}

func (a *App) Init() tea.Cmd {
	return a.board.Init()
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		return a, nil

	case tea.KeyMsg:
		return a, a.handleKey(msg)

	case tea.MouseMsg:
		if a.help != nil {
			_, cmd := a.help.Update(msg)
			return a, cmd
		}
		return a, nil
	}

	return a, a.board.Update(msg)
}

func (a *App) handleKey(msg tea.KeyMsg) tea.Cmd {
	if key.Matches(msg, a.keys.ForceQuit) {
		return tea.Quit
	}

	if a.help != nil {
		if done, cmd := a.help.Update(msg); !done {
			return cmd
		}
		a.help = nil
		return nil
	}

	switch {
	case key.Matches(msg, a.keys.Quit):
		return tea.Quit
	case key.Matches(msg, a.keys.Help):
		a.help = NewHelpModal(a.keys, helpContent(a.keys, a.pages, a.sourcesOf))
		return nil
	case key.Matches(msg, a.keys.NextPage):
		return a.step(1)
	case key.Matches(msg, a.keys.PrevPage):
		return a.step(-1)
	case key.Matches(msg, a.keys.GoTo):
		n, err := strconv.Atoi(msg.String())
		if err != nil || n < 1 || n > len(a.pages) {
			return nil
		}
		return a.activate(a.pages[n-1].ID())
	}

	if p := a.activePage(); p != nil {
		cmd, _ := p.Update(msg)
		return cmd
	}
	return nil
}

func (a *App) step(delta int) tea.Cmd {
	if len(a.pages) == 0 {
		return nil
	}
	i, ok := a.index[a.board.Active()]
	if !ok {
		i = 0
	}
	i = (i + delta + len(a.pages)) % len(a.pages)
	return a.activate(a.pages[i].ID())
}

// activate switches the board to id through the loop's message path so the
// snapshot is republished.
func (a *App) activate(id string) tea.Cmd {
	reply := make(chan error, 1)
	cmd := a.board.Update(board.ActivateMsg{Context: id, Reply: reply})
	if err := <-reply; err != nil {
		a.log.Warn().Err(err).Msg("switch failed")
		return nil
	}
	return cmd
}

func (a *App) activePage() Page {
	i, ok := a.index[a.board.Active()]
	if !ok {
		return nil
	}
	return a.pages[i]
}

func (a *App) sourcesOf(id string) []string {
	c, ok := a.board.Spec().Context(id)
	if !ok {
		return nil
	}
	return c.Sources
}

func (a *App) View() string {
	now := a.board.Snapshot().At
	if a.width == 0 || a.height == 0 {
		return renderLoadingPlaceholder(80, 24, now)
	}
	if a.help != nil {
		return a.help.View(a.width, a.height)
	}

	header := a.renderHeader()
	footer := a.renderStatusLine()
	bodyHeight := max(a.height-lipgloss.Height(header)-lipgloss.Height(footer), 1)

	body := "No contexts configured"
	if p := a.activePage(); p != nil {
		body = p.View(a.width, bodyHeight)
	}
	body = lipgloss.NewStyle().Height(bodyHeight).MaxHeight(bodyHeight).Render(body)

	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}
