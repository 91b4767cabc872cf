package board

import (
	"time"

	"github.com/tinytelemetry/opsdeck/internal/cache"
	"github.com/tinytelemetry/opsdeck/internal/countdown"
	"github.com/tinytelemetry/opsdeck/internal/jobs"
	"github.com/tinytelemetry/opsdeck/internal/model"
	"github.com/tinytelemetry/opsdeck/internal/scheduler"
	"github.com/tinytelemetry/opsdeck/internal/source"
)

// ActivateMsg asks the loop to switch to Context. Reply, when set, receives
// nil or ErrUnknownContext and must be buffered.
type ActivateMsg struct {
	Context string
	Reply   chan<- error
}

// RefreshMsg asks the loop for one out-of-cadence batch of Context.
type RefreshMsg struct {
	Context string
	Reply   chan<- error
}

// RequestJobMsg asks the loop to request a job. Reply must be buffered.
type RequestJobMsg struct {
	Kind   string
	Params map[string]any
	Reply  chan<- jobs.Result
}

// ContextView is the read-side view of one context.
type ContextView struct {
	ID         string           `json:"id"`
	Title      string           `json:"title"`
	Active     bool             `json:"active"`
	Cadence    time.Duration    `json:"cadence"`
	Sources    []string         `json:"sources"`
	Kinds      []string         `json:"kinds,omitempty"`
	Status     scheduler.Status `json:"status"`
	StatusLine string           `json:"status_line"`
	LiveTimers int              `json:"live_timers"`
}

// Snapshot is an immutable copy of the board, safe to read from any
// goroutine.
type Snapshot struct {
	At         time.Time           `json:"at"`
	Active     string              `json:"active"`
	Switches   uint64              `json:"switches"`
	Contexts   []ContextView       `json:"contexts"`
	Sources    []source.State      `json:"sources"`
	Countdowns []countdown.Display `json:"countdowns"`
	Jobs       []jobs.Job          `json:"jobs"`
}

// Context returns the view for id.
func (s *Snapshot) Context(id string) (ContextView, bool) {
	for _, c := range s.Contexts {
		if c.ID == id {
			return c, true
		}
	}
	return ContextView{}, false
}

// Snapshot returns the latest published snapshot.
func (b *Board) Snapshot() *Snapshot {
	return b.snapshot.Load()
}

// Cache returns the shared cache. It is safe for concurrent reads.
func (b *Board) Cache() *cache.Cache { return b.cache }

// Spec returns the board declaration.
func (b *Board) Spec() model.Board { return b.spec }

// Active returns the active context id, or "" when none is active.
func (b *Board) Active() string { return b.active }

// Contexts returns every context in declaration order.
func (b *Board) Contexts() []ContextView {
	out := make([]ContextView, 0, len(b.order))
	for _, id := range b.order {
		v, _ := b.Context(id)
		out = append(out, v)
	}
	return out
}

// Context returns the view of context id.
func (b *Board) Context(id string) (ContextView, bool) {
	sched, ok := b.schedulers[id]
	if !ok {
		return ContextView{}, false
	}
	spec := sched.Spec()
	status := sched.Status()
	return ContextView{
		ID:         spec.ID,
		Title:      spec.DisplayName(),
		Active:     sched.Active(),
		Cadence:    sched.Cadence(),
		Sources:    append([]string(nil), spec.Sources...),
		Kinds:      append([]string(nil), spec.Kinds...),
		Status:     status,
		StatusLine: status.Line(),
		LiveTimers: sched.LiveTimers(),
	}, true
}

// LiveTimers sums the live repeat timers over every context.
func (b *Board) LiveTimers() int {
	n := 0
	for _, s := range b.schedulers {
		n += s.LiveTimers()
	}
	return n
}

// Sources returns the fetch state of ids, or of every source when ids is
// empty.
func (b *Board) Sources(ids []string) []source.State {
	return b.sources.States(ids)
}

// Payload returns the cached payload of a source.
func (b *Board) Payload(id string) (source.Payload, bool) {
	e, ok := b.cache.Get(id)
	if !ok {
		return source.Payload{}, false
	}
	p, ok := e.Value.(source.Payload)
	return p, ok
}

// Countdowns returns the countdowns owned by owner ("" for global), limited
// to the kinds in scope of that context.
func (b *Board) Countdowns(owner string) []countdown.Display {
	var kinds []string
	if sched, ok := b.schedulers[owner]; ok {
		kinds = sched.Spec().Kinds
	}
	return b.countdowns.Views(owner, kinds)
}

// Jobs returns every job.
func (b *Board) Jobs() []jobs.Job { return b.jobs.Jobs() }

// JobsFor returns the jobs owned by context id.
func (b *Board) JobsFor(id string) []jobs.Job { return b.jobs.JobsFor(id) }

// Job returns one job by kind.
func (b *Board) Job(kind string) (jobs.Job, bool) { return b.jobs.Job(kind) }

func (b *Board) publish() {
	b.snapshot.Store(&Snapshot{
		At:         b.clock.Now(),
		Active:     b.active,
		Switches:   b.switches,
		Contexts:   b.Contexts(),
		Sources:    b.sources.States(nil),
		Countdowns: b.countdowns.All(),
		Jobs:       b.jobs.Jobs(),
	})
}
