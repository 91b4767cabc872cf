// Package jobs drives long-running server-side operations: trigger once,
// then poll the status endpoint until the job reports a terminal state.
package jobs

import (
	"context"
	"fmt"
	"sort"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/tinytelemetry/opsdeck/internal/cache"
	"github.com/tinytelemetry/opsdeck/internal/heartbeat"
	"github.com/tinytelemetry/opsdeck/internal/model"
)

// CacheKey returns the shared cache key holding a kind's last progress.
func CacheKey(kind string) string { return "job:" + kind }

// Client performs the two job requests.
type Client interface {
	Trigger(ctx context.Context, spec model.JobSpec, requestID string, params map[string]any) (model.TriggerResponse, error)
	Status(ctx context.Context, spec model.JobSpec) (model.StatusResponse, error)
}

// Refresher issues one out-of-cadence refresh of a context.
type Refresher interface {
	RefreshContext(id string) tea.Cmd
}

type triggerMsg struct {
	kind string
	run  int
	resp model.TriggerResponse
	err  error
}

type pollMsg struct {
	kind string
	run  int
}

type statusMsg struct {
	kind string
	run  int
	resp model.StatusResponse
	err  error
}

type graceMsg struct {
	kind string
	run  int
}

// Deps are the poller's collaborators.
type Deps struct {
	Context   context.Context
	Client    Client
	Refresher Refresher
	Cache     *cache.Cache // optional
	Clock     clockwork.Clock
	Tick      heartbeat.TickFunc
	Log       zerolog.Logger
	Grace     time.Duration
	NewID     func() string
}

// Poller owns one Job per declared kind. It is confined to the event loop.
type Poller struct {
	specs map[string]model.JobSpec
	jobs  map[string]*Job

	ctx       context.Context
	client    Client
	refresher Refresher
	cache     *cache.Cache
	clock     clockwork.Clock
	tick      heartbeat.TickFunc
	log       zerolog.Logger
	grace     time.Duration
	newID     func() string
}

// NewPoller creates an idle poller for specs.
func NewPoller(specs []model.JobSpec, deps Deps) *Poller {
	if deps.Context == nil {
		deps.Context = context.Background()
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Tick == nil {
		deps.Tick = tea.Tick
	}
	if deps.Grace <= 0 {
		deps.Grace = model.DefaultGrace
	}
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}

	p := &Poller{
		specs:     make(map[string]model.JobSpec, len(specs)),
		jobs:      make(map[string]*Job, len(specs)),
		ctx:       deps.Context,
		client:    deps.Client,
		refresher: deps.Refresher,
		cache:     deps.Cache,
		clock:     deps.Clock,
		tick:      deps.Tick,
		log:       deps.Log.With().Str("component", "jobs").Logger(),
		grace:     deps.Grace,
		newID:     deps.NewID,
	}
	for _, s := range specs {
		if s.Interval <= 0 {
			s.Interval = model.DefaultJobInterval
		}
		p.specs[s.Kind] = s
		p.jobs[s.Kind] = &Job{Kind: s.Kind, Title: s.DisplayName(), Owner: s.Owner}
	}
	return p
}

// Request starts kind. A busy kind is left untouched and the result carries
// a user-facing message instead.
func (p *Poller) Request(kind string, params map[string]any) (Result, tea.Cmd) {
	spec, ok := p.specs[kind]
	if !ok {
		return Result{Kind: kind, Message: fmt.Sprintf("unknown job %q", kind), Err: ErrUnknownJob}, nil
	}
	job := p.jobs[kind]

	if job.State.Busy() {
		p.log.Info().Str("kind", kind).Str("state", job.State.String()).Msg("duplicate job request ignored")
		return Result{
			Kind:      kind,
			Duplicate: true,
			RequestID: job.RequestID,
			Message:   fmt.Sprintf("%s already running", spec.DisplayName()),
		}, nil
	}
	if job.State.Terminal() {
		p.reset(job)
	}
	if err := job.advance(StateRequested); err != nil {
		return Result{Kind: kind, Message: err.Error(), Err: err}, nil
	}

	job.run++
	job.RequestID = p.newID()
	job.StartedAt = p.clock.Now()
	job.FinishedAt = time.Time{}
	job.Progress = Progress{Step: "Requested", At: job.StartedAt}
	job.History = nil
	job.Message = ""
	job.LastPollError = ""
	job.Polls = 0
	job.Visible = true
	p.log.Info().Str("kind", kind).Str("request_id", job.RequestID).Msg("job requested")

	return Result{Kind: kind, Accepted: true, RequestID: job.RequestID, Message: fmt.Sprintf("%s requested", spec.DisplayName())},
		p.triggerCmd(spec, job.run, job.RequestID, params)
}

// Update handles the poller's own messages. The bool reports whether msg
// belonged to the poller.
func (p *Poller) Update(msg tea.Msg) (tea.Cmd, bool) {
	switch msg := msg.(type) {
	case triggerMsg:
		return p.onTrigger(msg), true
	case pollMsg:
		return p.onPoll(msg), true
	case statusMsg:
		return p.onStatus(msg), true
	case graceMsg:
		p.onGrace(msg)
		return nil, true
	}
	return nil, false
}

// Job returns a copy of kind's state.
func (p *Poller) Job(kind string) (Job, bool) {
	j, ok := p.jobs[kind]
	if !ok {
		return Job{}, false
	}
	return j.clone(), true
}

// Jobs returns copies of every job ordered by kind.
func (p *Poller) Jobs() []Job {
	out := make([]Job, 0, len(p.jobs))
	for _, j := range p.jobs {
		out = append(out, j.clone())
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Kind < out[k].Kind })
	return out
}

// JobsFor returns the jobs owned by context id.
func (p *Poller) JobsFor(owner string) []Job {
	var out []Job
	for _, j := range p.Jobs() {
		if j.Owner == owner {
			out = append(out, j)
		}
	}
	return out
}

// Polling returns how many kinds have a live poll chain.
func (p *Poller) Polling() int {
	n := 0
	for _, j := range p.jobs {
		if j.State == StateRunning {
			n++
		}
	}
	return n
}

func (p *Poller) onTrigger(msg triggerMsg) tea.Cmd {
	job, ok := p.current(msg.kind, msg.run)
	if !ok || job.State != StateRequested {
		return nil
	}

	if msg.err != nil || !msg.resp.Success {
		text := msg.resp.Message
		if msg.err != nil {
			text = msg.err.Error()
		}
		if text == "" {
			text = "trigger rejected"
		}
		p.log.Warn().Str("kind", job.Kind).Str("request_id", job.RequestID).Str("reason", text).Msg("job trigger failed")
		return p.finish(job, StateFailed, text, false)
	}

	if err := job.advance(StateRunning); err != nil {
		p.log.Error().Err(err).Send()
		return nil
	}
	job.Message = msg.resp.Message
	job.Progress = Progress{Step: "Started", Detail: msg.resp.Message, At: p.clock.Now()}
	job.History = append(job.History, job.Progress)
	p.publish(job)
	p.log.Info().Str("kind", job.Kind).Str("request_id", job.RequestID).Msg("job running")
	return p.schedulePoll(job)
}

func (p *Poller) onPoll(msg pollMsg) tea.Cmd {
	job, ok := p.current(msg.kind, msg.run)
	if !ok || job.State != StateRunning {
		return nil
	}
	next := p.schedulePoll(job)
	if job.pollInFlight {
		return next
	}
	job.pollInFlight = true
	return tea.Batch(p.statusCmd(p.specs[job.Kind], job.run), next)
}

func (p *Poller) onStatus(msg statusMsg) tea.Cmd {
	job, ok := p.current(msg.kind, msg.run)
	if !ok {
		return nil
	}
	job.pollInFlight = false
	if job.State != StateRunning {
		return nil
	}

	if msg.err != nil {
		job.LastPollError = msg.err.Error()
		p.log.Warn().Err(msg.err).Str("kind", job.Kind).Msg("job status poll failed")
		return nil
	}

	job.LastPollError = ""
	job.Polls++
	job.Progress = Progress{Step: msg.resp.Step, Detail: msg.resp.Detail, Pct: msg.resp.Pct, At: p.clock.Now()}
	job.History = append(job.History, job.Progress)
	p.publish(job)

	if !msg.resp.Terminal() {
		return nil
	}
	if msg.resp.Error != "" {
		return p.finish(job, StateFailed, msg.resp.Error, true)
	}
	return p.finish(job, StateDone, msg.resp.Detail, true)
}

func (p *Poller) onGrace(msg graceMsg) {
	job, ok := p.current(msg.kind, msg.run)
	if !ok || !job.State.Terminal() {
		return
	}
	p.reset(job)
}

// finish moves job to a terminal state, optionally asks for the one
// follow-up refresh of its owner and arms the grace timer.
func (p *Poller) finish(job *Job, to State, message string, refresh bool) tea.Cmd {
	if err := job.advance(to); err != nil {
		p.log.Error().Err(err).Send()
		return nil
	}
	job.FinishedAt = p.clock.Now()
	if message != "" {
		job.Message = message
	}
	p.publish(job)
	p.log.Info().Str("kind", job.Kind).Str("state", to.String()).Dur("took", job.FinishedAt.Sub(job.StartedAt)).Msg("job finished")

	var cmds []tea.Cmd
	if refresh && p.refresher != nil && job.Owner != "" {
		cmds = append(cmds, p.refresher.RefreshContext(job.Owner))
	}
	kind, run := job.Kind, job.run
	cmds = append(cmds, p.tick(p.grace, func(time.Time) tea.Msg {
		return graceMsg{kind: kind, run: run}
	}))
	return tea.Batch(cmds...)
}

// reset consumes a terminal state.
func (p *Poller) reset(job *Job) {
	if err := job.advance(StateIdle); err != nil {
		p.log.Error().Err(err).Send()
		return
	}
	job.Visible = false
	job.pollInFlight = false
}

func (p *Poller) current(kind string, run int) (*Job, bool) {
	job, ok := p.jobs[kind]
	if !ok || job.run != run {
		return nil, false
	}
	return job, true
}

func (p *Poller) publish(job *Job) {
	if p.cache != nil {
		p.cache.Put(CacheKey(job.Kind), job.clone())
	}
}

func (p *Poller) schedulePoll(job *Job) tea.Cmd {
	kind, run := job.Kind, job.run
	return p.tick(p.specs[kind].Interval, func(time.Time) tea.Msg {
		return pollMsg{kind: kind, run: run}
	})
}

func (p *Poller) triggerCmd(spec model.JobSpec, run int, requestID string, params map[string]any) tea.Cmd {
	ctx, client := p.ctx, p.client
	return func() tea.Msg {
		resp, err := client.Trigger(ctx, spec, requestID, params)
		return triggerMsg{kind: spec.Kind, run: run, resp: resp, err: err}
	}
}

func (p *Poller) statusCmd(spec model.JobSpec, run int) tea.Cmd {
	ctx, client := p.ctx, p.client
	return func() tea.Msg {
		resp, err := client.Status(ctx, spec)
		return statusMsg{kind: spec.Kind, run: run, resp: resp, err: err}
	}
}
