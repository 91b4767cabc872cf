package tui

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/tinytelemetry/opsdeck/internal/board"
	"github.com/tinytelemetry/opsdeck/internal/jobs"
	"github.com/tinytelemetry/opsdeck/internal/model"
	"github.com/tinytelemetry/opsdeck/internal/source"
)

var t0 = time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)

type fakeBackend struct {
	mu     sync.Mutex
	bodies map[string]string
	errs   map[string]error
}

func newFakeBackend() *fakeBackend {
	ts := func(d time.Duration) string { return t0.Add(d).Format(time.RFC3339) }
	return &fakeBackend{
		bodies: map[string]string{
			"market":   `{"open":true,"sessions":[{"exchange":"NYSE","closes_at":"` + ts(2*time.Hour) + `"}]}`,
			"trades":   `{"trades":[{"id":"t1","symbol":"AAPL","window":"15m","expires_at":"` + ts(125*time.Second) + `"}]}`,
			"engine":   `{"state":"running"}`,
			"pipeline": `{"stages":[]}`,
			"agents":   `{"agents":[{"name":"scout","schedule":"hourly","next_run":"` + ts(30*time.Minute) + `"}]}`,
		},
		errs: map[string]error{},
	}
}

func (f *fakeBackend) Fetch(_ context.Context, spec model.SourceSpec) (source.Payload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[spec.ID]; err != nil {
		return source.Payload{}, err
	}
	return source.Payload{Raw: json.RawMessage(f.bodies[spec.ID])}, nil
}

type fakeJobs struct{}

func (fakeJobs) Trigger(context.Context, model.JobSpec, string, map[string]any) (model.TriggerResponse, error) {
	return model.TriggerResponse{Success: true, Message: "queued"}, nil
}

func (fakeJobs) Status(context.Context, model.JobSpec) (model.StatusResponse, error) {
	return model.StatusResponse{Step: "scanning", Pct: 45}, nil
}

type testApp struct {
	t       *testing.T
	app     *App
	backend *fakeBackend
	pending []func(time.Time) tea.Msg
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	ta := &testApp{t: t, backend: newFakeBackend()}
	b := board.New(context.Background(), model.DefaultBoard(), board.Deps{
		Fetcher:   ta.backend,
		JobClient: fakeJobs{},
		Clock:     clockwork.NewFakeClockAt(t0),
		Tick: func(_ time.Duration, fn func(time.Time) tea.Msg) tea.Cmd {
			ta.pending = append(ta.pending, fn)
			return nil
		},
		Log: zerolog.Nop(),
	})
	ta.app = NewApp(b, zerolog.Nop())
	ta.send(tea.WindowSizeMsg{Width: 140, Height: 50})
	ta.run(ta.app.Init())
	return ta
}

// run executes cmd and feeds every resulting message back through the app,
// the way the program loop would. Quit is not delivered.
func (ta *testApp) run(cmd tea.Cmd) {
	for _, msg := range collect(cmd) {
		if _, ok := msg.(tea.QuitMsg); ok {
			continue
		}
		ta.send(msg)
	}
}

func (ta *testApp) send(msg tea.Msg) {
	_, cmd := ta.app.Update(msg)
	ta.run(cmd)
}

func (ta *testApp) press(k string) {
	switch k {
	case "tab":
		ta.send(tea.KeyMsg{Type: tea.KeyTab})
	case "shift+tab":
		ta.send(tea.KeyMsg{Type: tea.KeyShiftTab})
	case "esc":
		ta.send(tea.KeyMsg{Type: tea.KeyEscape})
	default:
		ta.send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)})
	}
}

func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, collect(c)...)
		}
		return out
	}
	if msg == nil {
		return nil
	}
	return []tea.Msg{msg}
}

func assertContains(t *testing.T, view string, wants ...string) {
	t.Helper()
	for _, want := range wants {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q:\n%s", want, view)
		}
	}
}

func TestApp_InitialView(t *testing.T) {
	ta := newTestApp(t)

	if got := ta.app.board.Active(); got != "trading" {
		t.Fatalf("active = %q, want trading", got)
	}
	assertContains(t, ta.app.View(),
		"1 Trading", "2 Content", "3 Research",
		"NYSE", "2h 00m to close",
		"AAPL (15m)", "2m 05s left",
		"state=running",
		"Updated 14:00:00", "3 sources",
	)
}

func TestApp_TabAndNumberKeysSwitchContexts(t *testing.T) {
	ta := newTestApp(t)

	ta.press("tab")
	if got := ta.app.board.Active(); got != "content" {
		t.Fatalf("after tab active = %q, want content", got)
	}
	assertContains(t, ta.app.View(), "Pipeline", "stages=[0]")

	ta.press("3")
	if got := ta.app.board.Active(); got != "research" {
		t.Fatalf("after 3 active = %q, want research", got)
	}
	assertContains(t, ta.app.View(), "scout (hourly)", "30m 00s to next cycle", "Backtest")

	ta.press("tab")
	if got := ta.app.board.Active(); got != "trading" {
		t.Fatalf("tab should wrap, active = %q", got)
	}

	ta.press("shift+tab")
	if got := ta.app.board.Active(); got != "research" {
		t.Fatalf("shift+tab should wrap, active = %q", got)
	}

	ta.press("9")
	if got := ta.app.board.Active(); got != "research" {
		t.Fatalf("out-of-range number switched to %q", got)
	}
}

func TestApp_SwitchKeepsOneLiveTimer(t *testing.T) {
	ta := newTestApp(t)
	for _, k := range []string{"tab", "tab", "1", "2"} {
		ta.press(k)
		if got := ta.app.board.LiveTimers(); got != 1 {
			t.Fatalf("after %q live timers = %d, want 1", k, got)
		}
	}
}

func TestApp_RequestJob(t *testing.T) {
	ta := newTestApp(t)

	ta.press("j")
	job, ok := ta.app.board.Job("scan")
	if !ok {
		t.Fatal("scan job missing")
	}
	if job.State != jobs.StateRunning {
		t.Fatalf("scan state = %s, want running", job.State)
	}
	assertContains(t, ta.app.View(), "Market scan requested", "running")

	ta.press("j")
	assertContains(t, ta.app.View(), "Market scan already running")
}

func TestApp_RequestJobWithoutJobs(t *testing.T) {
	ta := newTestApp(t)
	ta.press("2")
	ta.press("j")
	assertContains(t, ta.app.View(), "No jobs in this context")
}

func TestApp_SourceErrorShowsStatus(t *testing.T) {
	ta := newTestApp(t)
	ta.backend.mu.Lock()
	ta.backend.errs["engine"] = errors.New("connection refused")
	ta.backend.mu.Unlock()

	assertContains(t, ta.app.View(), "state=running")

	ta.press("r")
	view := ta.app.View()
	assertContains(t, view, "Error:", "stale", "connection refused")

	var engineRow string
	for _, line := range strings.Split(view, "\n") {
		if strings.Contains(line, "Engine") && strings.Contains(line, "stale") {
			engineRow = line
		}
	}
	if engineRow == "" {
		t.Fatalf("no stale engine row in view:\n%s", view)
	}
	if !strings.Contains(engineRow, "state=running") || !strings.Contains(engineRow, "connection refused") {
		t.Errorf("engine row should keep the last payload next to the error: %q", engineRow)
	}
}

func TestApp_HelpModal(t *testing.T) {
	ta := newTestApp(t)

	ta.press("?")
	assertContains(t, ta.app.View(), "Help", "next context", "CONTEXTS:")

	ta.press("tab")
	if got := ta.app.board.Active(); got != "trading" {
		t.Fatalf("keys leaked through the help modal, active = %q", got)
	}

	ta.press("esc")
	if ta.app.help != nil {
		t.Fatal("esc should close help")
	}
}

func TestApp_Quit(t *testing.T) {
	ta := newTestApp(t)
	_, cmd := ta.app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("q returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("q should quit")
	}
}

func TestApp_ViewBeforeWindowSize(t *testing.T) {
	b := board.New(context.Background(), model.DefaultBoard(), board.Deps{
		Fetcher:   newFakeBackend(),
		JobClient: fakeJobs{},
		Clock:     clockwork.NewFakeClockAt(t0),
		Tick:      func(time.Duration, func(time.Time) tea.Msg) tea.Cmd { return nil },
	})
	app := NewApp(b, zerolog.Nop())
	if !strings.Contains(app.View(), "Loading...") {
		t.Fatal("expected loading placeholder")
	}
}
