package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/tidwall/gjson"

	"github.com/tinytelemetry/opsdeck/internal/board"
	"github.com/tinytelemetry/opsdeck/internal/countdown"
	"github.com/tinytelemetry/opsdeck/internal/jobs"
	"github.com/tinytelemetry/opsdeck/internal/model"
	"github.com/tinytelemetry/opsdeck/internal/source"
)

const chartHeight = 6

// ContextPage renders one context: its sources, the countdowns it owns and
// the jobs it can request.
type ContextPage struct {
	spec  model.ContextSpec
	board *board.Board
	keys  KeyMap

	selected int
	notice   string
}

// NewContextPage creates the page for spec.
func NewContextPage(spec model.ContextSpec, b *board.Board, keys KeyMap) *ContextPage {
	return &ContextPage{spec: spec, board: b, keys: keys}
}

func (p *ContextPage) ID() string    { return p.spec.ID }
func (p *ContextPage) Title() string { return p.spec.DisplayName() }

// Notice returns the last action feedback shown under the page.
func (p *ContextPage) Notice() string { return p.notice }

func (p *ContextPage) Update(msg tea.KeyMsg) (tea.Cmd, bool) {
	owned := p.board.JobsFor(p.spec.ID)

	switch {
	case key.Matches(msg, p.keys.Up):
		if p.selected > 0 {
			p.selected--
		}
		return nil, true

	case key.Matches(msg, p.keys.Down):
		if p.selected < len(owned)-1 {
			p.selected++
		}
		return nil, true

	case key.Matches(msg, p.keys.Refresh):
		reply := make(chan error, 1)
		cmd := p.board.Update(board.RefreshMsg{Context: p.spec.ID, Reply: reply})
		if err := <-reply; err != nil {
			p.notice = err.Error()
			return nil, true
		}
		p.notice = "Refreshing " + p.Title()
		return cmd, true

	case key.Matches(msg, p.keys.RequestJob):
		if len(owned) == 0 {
			p.notice = "No jobs in this context"
			return nil, true
		}
		p.selected = min(p.selected, len(owned)-1)
		reply := make(chan jobs.Result, 1)
		cmd := p.board.Update(board.RequestJobMsg{Kind: owned[p.selected].Kind, Reply: reply})
		p.notice = (<-reply).Message
		return cmd, true
	}
	return nil, false
}

func (p *ContextPage) View(width, height int) string {
	now := p.board.Snapshot().At
	states := p.board.Sources(p.spec.Sources)
	inner := max(width-4, 20)

	parts := []string{
		p.section("Sources", p.renderSources(states, now, inner), width),
	}
	if cds := p.board.Countdowns(p.spec.ID); len(cds) > 0 {
		parts = append(parts, p.section("Countdowns", renderCountdowns(cds, inner), width))
	}
	if owned := p.board.JobsFor(p.spec.ID); len(owned) > 0 {
		parts = append(parts, p.section("Jobs", p.renderJobs(owned, inner), width))
	}

	used := 0
	for _, s := range parts {
		used += lipgloss.Height(s)
	}
	if height-used >= chartHeight+2 {
		parts = append(parts, p.section("Fetch latency (ms)", renderLatencyChart(states, inner, chartHeight), width))
	}
	if p.notice != "" {
		parts = append(parts, dimStyle.Render(" "+p.notice))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (p *ContextPage) section(title, body string, width int) string {
	return sectionStyle.
		Width(max(width-2, 10)).
		Render(lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render(title), body))
}

func (p *ContextPage) renderSources(states []source.State, now time.Time, width int) string {
	nameWidth := 4
	for _, st := range states {
		nameWidth = max(nameWidth, lipgloss.Width(st.Title))
	}

	rows := make([]string, 0, len(states))
	for _, st := range states {
		name := lipgloss.NewStyle().Width(nameWidth + 2).Render(st.Title)
		badge := sourceBadge(st, now)

		avail := width - nameWidth - 30
		var detail string
		if payload, ok := p.board.Payload(st.ID); ok {
			detail = payloadSummary(payload.Raw, avail)
		}
		// The last good payload stays next to the error.
		if st.LastError != "" {
			if detail == "" {
				detail = errorStyle.Render(truncate(st.LastError, avail))
			} else {
				detail += "  " + errorStyle.Render(truncate(st.LastError, max(avail-lipgloss.Width(detail)-2, 10)))
			}
		}
		rows = append(rows, name+lipgloss.NewStyle().Width(28).Render(badge)+detail)
	}
	if len(rows) == 0 {
		return dimStyle.Render("No sources")
	}
	return strings.Join(rows, "\n")
}

// sourceBadge summarizes fetch state. A source with a prior payload is never
// shown as empty: a failed refresh only marks it stale.
func sourceBadge(st source.State, now time.Time) string {
	switch {
	case !st.HasData() && st.InFlight:
		return warnStyle.Render(spinnerFrame(now) + " loading")
	case !st.HasData() && st.LastError != "":
		return errorStyle.Render(st.LastErrorKind.String())
	case !st.HasData():
		return dimStyle.Render("waiting")
	}

	age := countdown.FormatRemaining(st.Age(now)) + " ago"
	lat := ""
	if n := len(st.Latencies); n > 0 {
		lat = fmt.Sprintf(" %dms", st.Latencies[n-1].Milliseconds())
	}
	if st.Stale() {
		return warnStyle.Render("stale "+age) + dimStyle.Render(lat)
	}
	return okStyle.Render("ok "+age) + dimStyle.Render(lat)
}

// payloadSummary lists the top-level fields of an object payload as
// key=value pairs; arrays show their length.
func payloadSummary(raw []byte, width int) string {
	if width < 10 || !gjson.ValidBytes(raw) {
		return ""
	}
	root := gjson.ParseBytes(raw)
	if root.IsArray() {
		return dimStyle.Render(fmt.Sprintf("[%d items]", len(root.Array())))
	}

	var fields []string
	root.ForEach(func(k, v gjson.Result) bool {
		switch {
		case v.IsArray():
			fields = append(fields, fmt.Sprintf("%s=[%d]", k.String(), len(v.Array())))
		case v.IsObject():
			fields = append(fields, k.String()+"={…}")
		default:
			fields = append(fields, k.String()+"="+v.String())
		}
		return true
	})
	return dimStyle.Render(truncate(strings.Join(fields, " "), width))
}

func renderCountdowns(cds []countdown.Display, width int) string {
	labelWidth := 6
	for _, d := range cds {
		labelWidth = max(labelWidth, lipgloss.Width(countdownLabel(d)))
	}
	barWidth := max(min(width-labelWidth-28, 30), 8)

	rows := make([]string, 0, len(cds))
	for _, d := range cds {
		color := bucketColor(d.Bucket)
		bar := progress.New(
			progress.WithSolidFill(string(color)),
			progress.WithWidth(barWidth),
			progress.WithoutPercentage(),
		)
		label := lipgloss.NewStyle().Width(labelWidth + 2).Render(countdownLabel(d))
		text := lipgloss.NewStyle().Foreground(color).Render(d.Text)
		rows = append(rows, label+bar.ViewAs(d.Progress)+"  "+text)
	}
	return strings.Join(rows, "\n")
}

func countdownLabel(d countdown.Display) string {
	label := d.Label
	if label == "" {
		label = d.ID
	}
	if d.Category != "" {
		label += " (" + d.Category + ")"
	}
	return label
}

func (p *ContextPage) renderJobs(owned []jobs.Job, width int) string {
	barWidth := max(min(width-40, 30), 8)

	rows := make([]string, 0, len(owned))
	for i, j := range owned {
		cursor := "  "
		if i == p.selected {
			cursor = titleStyle.Render("> ")
		}
		line := cursor + lipgloss.NewStyle().Width(16).Render(j.Title) +
			jobStateStyle(j.State).Render(j.State.String())

		if j.Visible {
			bar := progress.New(
				progress.WithDefaultGradient(),
				progress.WithWidth(barWidth),
			)
			line += "  " + bar.ViewAs(j.Progress.Fraction())
			if step := strings.TrimSpace(j.Progress.Step + " " + j.Progress.Detail); step != "" {
				line += "  " + dimStyle.Render(step)
			}
		}
		rows = append(rows, line)

		switch {
		case j.State == jobs.StateFailed && j.Message != "":
			rows = append(rows, "    "+errorStyle.Render(truncate(j.Message, width-4)))
		case j.LastPollError != "":
			rows = append(rows, "    "+warnStyle.Render("poll: "+truncate(j.LastPollError, width-10)))
		}
	}
	return strings.Join(rows, "\n")
}

func truncate(s string, width int) string {
	if width <= 1 || lipgloss.Width(s) <= width {
		return s
	}
	r := []rune(s)
	if len(r) > width-1 {
		r = r[:width-1]
	}
	return string(r) + "…"
}
