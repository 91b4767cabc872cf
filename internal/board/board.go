// Package board is the view context manager. It owns one scheduler per
// context, the shared cache, source state, countdown registry, heartbeat and
// job poller, and routes every event-loop message to them.
package board

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/tinytelemetry/opsdeck/internal/cache"
	"github.com/tinytelemetry/opsdeck/internal/countdown"
	"github.com/tinytelemetry/opsdeck/internal/heartbeat"
	"github.com/tinytelemetry/opsdeck/internal/jobs"
	"github.com/tinytelemetry/opsdeck/internal/model"
	"github.com/tinytelemetry/opsdeck/internal/scheduler"
	"github.com/tinytelemetry/opsdeck/internal/source"
	"github.com/tinytelemetry/opsdeck/internal/timestamp"
)

// ErrUnknownContext is returned for a context id that was never declared.
var ErrUnknownContext = errors.New("unknown context")

const globalBeat = "countdown"

// Deps are the board's outside collaborators. Nil fields get production
// defaults built from the board declaration.
type Deps struct {
	Fetcher   source.Fetcher
	JobClient jobs.Client
	Clock     clockwork.Clock
	Tick      heartbeat.TickFunc
	Log       zerolog.Logger
}

// Board holds all orchestration state. Every method except Snapshot and
// Cache must be called from the event loop.
type Board struct {
	spec model.Board
	log  zerolog.Logger

	clock      clockwork.Clock
	cache      *cache.Cache
	sources    *source.Registry
	countdowns *countdown.Registry
	beat       *heartbeat.Service
	jobs       *jobs.Poller
	parser     *timestamp.Parser

	schedulers map[string]*scheduler.Scheduler
	order      []string
	active     string
	switches   uint64

	snapshot atomic.Pointer[Snapshot]
}

// New builds a board for spec. ctx bounds every fetch; cancel it on
// shutdown.
func New(ctx context.Context, spec model.Board, deps Deps) *Board {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Tick == nil {
		deps.Tick = tea.Tick
	}
	if deps.Fetcher == nil || deps.JobClient == nil {
		client := source.NewClient(spec.BaseURL, spec.FetchTimeout)
		if deps.Fetcher == nil {
			deps.Fetcher = client
		}
		if deps.JobClient == nil {
			deps.JobClient = jobs.NewHTTPClient(client)
		}
	}
	thresholds := spec.Thresholds
	if thresholds.Urgent <= 0 {
		thresholds.Urgent = model.DefaultUrgent
	}
	if thresholds.Warning <= 0 {
		thresholds.Warning = model.DefaultWarning
	}

	b := &Board{
		spec:       spec,
		log:        deps.Log.With().Str("component", "board").Logger(),
		clock:      deps.Clock,
		cache:      cache.New(deps.Clock),
		sources:    source.NewRegistry(spec.Sources),
		countdowns: countdown.NewRegistry(spec.Kinds, thresholds, deps.Clock, deps.Log),
		beat:       heartbeat.New(spec.Heartbeat, deps.Clock, deps.Tick),
		parser:     timestamp.NewParser(),
		schedulers: make(map[string]*scheduler.Scheduler, len(spec.Contexts)),
	}

	for _, c := range spec.Contexts {
		b.schedulers[c.ID] = scheduler.New(c, scheduler.Deps{
			Context: ctx,
			Sources: b.sources,
			Fetcher: deps.Fetcher,
			Cache:   b.cache,
			Clock:   deps.Clock,
			Tick:    deps.Tick,
			Log:     deps.Log,
		})
		b.order = append(b.order, c.ID)
	}

	b.jobs = jobs.NewPoller(spec.Jobs, jobs.Deps{
		Context:   ctx,
		Client:    deps.JobClient,
		Refresher: b,
		Cache:     b.cache,
		Clock:     deps.Clock,
		Tick:      deps.Tick,
		Log:       deps.Log,
		Grace:     spec.Grace,
	})

	b.publish()
	return b
}

// Init starts the global countdown clock and activates the first context.
func (b *Board) Init() tea.Cmd {
	cmds := []tea.Cmd{b.beat.Subscribe(globalBeat, func(now time.Time) {
		b.countdowns.TickOwner("", now)
	})}
	if len(b.order) > 0 {
		cmds = append(cmds, b.Activate(b.order[0]))
	}
	b.publish()
	return tea.Batch(cmds...)
}

// Activate makes id the active context. The previously active context is
// deactivated first, so its timer is gone before id's starts. Activating
// the active context does nothing.
func (b *Board) Activate(id string) tea.Cmd {
	sched, ok := b.schedulers[id]
	if !ok {
		b.log.Warn().Str("context", id).Msg("activate: unknown context")
		return nil
	}
	if b.active == id {
		return nil
	}
	if b.active != "" {
		b.Deactivate(b.active)
	}

	b.active = id
	b.switches++
	b.log.Debug().Str("context", id).Msg("activated")

	beat := b.beat.Subscribe(beatName(id), func(now time.Time) {
		b.countdowns.TickOwner(id, now)
	})
	return tea.Batch(sched.Start(), beat)
}

// Switch is Activate under the navigation name.
func (b *Board) Switch(id string) tea.Cmd { return b.Activate(id) }

// Deactivate stops id's timer and drops the countdowns it owns. Global
// countdowns and the cache are untouched.
func (b *Board) Deactivate(id string) {
	sched, ok := b.schedulers[id]
	if !ok {
		return
	}
	sched.Stop()
	b.beat.Unsubscribe(beatName(id))
	dropped := b.countdowns.DropOwner(id)
	if b.active == id {
		b.active = ""
	}
	b.log.Debug().Str("context", id).Int("countdowns_dropped", dropped).Msg("deactivated")
}

// RefreshContext issues one out-of-cadence batch for id.
func (b *Board) RefreshContext(id string) tea.Cmd {
	sched, ok := b.schedulers[id]
	if !ok {
		return nil
	}
	return sched.Refresh()
}

// RequestJob forwards to the job poller.
func (b *Board) RequestJob(kind string, params map[string]any) (jobs.Result, tea.Cmd) {
	return b.jobs.Request(kind, params)
}

// Update routes msg to the component that owns it and republishes the
// snapshot.
func (b *Board) Update(msg tea.Msg) tea.Cmd {
	cmd := b.route(msg)
	b.publish()
	return cmd
}

func (b *Board) route(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case scheduler.TickMsg:
		if sched, ok := b.schedulers[msg.Context]; ok {
			return sched.HandleTick(msg)
		}
		return nil

	case scheduler.BatchMsg:
		b.applyBatch(msg)
		return b.resume()

	case heartbeat.BeatMsg:
		return b.beat.Update(msg)

	case ActivateMsg:
		if _, ok := b.schedulers[msg.Context]; !ok {
			reply(msg.Reply, fmt.Errorf("%w: %s", ErrUnknownContext, msg.Context))
			return nil
		}
		cmd := b.Activate(msg.Context)
		reply(msg.Reply, nil)
		return cmd

	case RefreshMsg:
		if _, ok := b.schedulers[msg.Context]; !ok {
			reply(msg.Reply, fmt.Errorf("%w: %s", ErrUnknownContext, msg.Context))
			return nil
		}
		cmd := b.RefreshContext(msg.Context)
		reply(msg.Reply, nil)
		return cmd

	case RequestJobMsg:
		res, cmd := b.RequestJob(msg.Kind, msg.Params)
		if msg.Reply != nil {
			msg.Reply <- res
		}
		return cmd
	}

	cmd, _ := b.jobs.Update(msg)
	return cmd
}

func (b *Board) applyBatch(msg scheduler.BatchMsg) {
	sched, ok := b.schedulers[msg.Context]
	if !ok {
		return
	}
	current := sched.Apply(msg)

	for _, res := range msg.Results {
		if res.Err != nil {
			continue
		}
		spec, ok := b.sources.Spec(res.Source)
		if !ok || spec.Countdowns == nil {
			continue
		}
		binding := *spec.Countdowns

		owner := ""
		if binding.Scope != model.ScopeGlobal {
			if !current {
				continue
			}
			owner = msg.Context
		}

		targets, skipped, err := countdown.Extract(res.Payload.Raw, binding, b.parser)
		if err != nil {
			b.log.Warn().Err(err).Str("source", res.Source).Msg("countdown extraction failed")
			continue
		}
		if skipped > 0 {
			b.log.Debug().Str("source", res.Source).Int("skipped", skipped).Msg("countdown items skipped")
		}
		if owner != "" {
			targets = filterKinds(targets, sched.Spec().Kinds)
		}
		b.countdowns.Reconcile(owner, res.Source, targets)
	}
}

// resume issues refreshes owed to sources released by the last batch. A
// source may be shared, so every context gets a look.
func (b *Board) resume() tea.Cmd {
	var cmds []tea.Cmd
	for _, c := range b.spec.Contexts {
		if sched, ok := b.schedulers[c.ID]; ok {
			cmds = append(cmds, sched.Resume())
		}
	}
	return tea.Batch(cmds...)
}

func filterKinds(targets []countdown.Target, kinds []string) []countdown.Target {
	if len(kinds) == 0 {
		return targets
	}
	allow := make(map[string]struct{}, len(kinds))
	for _, k := range kinds {
		allow[k] = struct{}{}
	}
	out := targets[:0]
	for _, t := range targets {
		if _, ok := allow[t.Kind]; ok {
			out = append(out, t)
		}
	}
	return out
}

func beatName(id string) string { return "countdown:" + id }

func reply(ch chan<- error, err error) {
	if ch != nil {
		ch <- err
	}
}
