// Package scheduler drives the periodic refresh of one view context: an
// immediate batch on start, then one batch per cadence tick while the
// context is active.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tinytelemetry/opsdeck/internal/cache"
	"github.com/tinytelemetry/opsdeck/internal/heartbeat"
	"github.com/tinytelemetry/opsdeck/internal/model"
	"github.com/tinytelemetry/opsdeck/internal/source"
)

// TickMsg fires a context's repeat timer. Timer identifies the chain that
// scheduled it.
type TickMsg struct {
	Context string
	Timer   int
}

// BatchMsg carries every result of one batch, delivered once all fetches in
// the batch have settled.
type BatchMsg struct {
	Context      string
	Epoch        int // activation that issued the batch
	Batch        uint64
	OutOfCadence bool
	Results      []source.Result
	Skipped      []string // sources left out because they were in flight
}

// Failed returns the results that carry an error.
func (m BatchMsg) Failed() []source.Result {
	var out []source.Result
	for _, r := range m.Results {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}

// Status is the context-level outcome of recent batches.
type Status struct {
	LastBatchAt   time.Time `json:"last_batch_at"`
	LastSuccessAt time.Time `json:"last_success_at"`
	LastError     string    `json:"last_error,omitempty"`
	Batches       uint64    `json:"batches"`
	FailedBatches uint64    `json:"failed_batches"`
	StaleWrites   uint64    `json:"stale_writes"`

	// PartialBatches counts batches that skipped an in-flight source. They
	// do not move LastSuccessAt.
	PartialBatches uint64 `json:"partial_batches"`
}

// Line renders the footer status text.
func (s Status) Line() string {
	switch {
	case s.LastError != "":
		return "Error: " + s.LastError
	case !s.LastSuccessAt.IsZero():
		return "Updated " + s.LastSuccessAt.Format("15:04:05")
	default:
		return "Waiting for first update"
	}
}

// Deps are the collaborators shared by every scheduler on a board.
type Deps struct {
	Context context.Context // root for every fetch; cancelled on shutdown
	Sources *source.Registry
	Fetcher source.Fetcher
	Cache   *cache.Cache
	Clock   clockwork.Clock
	Tick    heartbeat.TickFunc
	Log     zerolog.Logger
}

// Scheduler owns the repeat timer of one context. All methods run on the
// event loop.
type Scheduler struct {
	spec    model.ContextSpec
	cadence time.Duration

	ctx     context.Context
	sources *source.Registry
	fetcher source.Fetcher
	cache   *cache.Cache
	clock   clockwork.Clock
	tick    heartbeat.TickFunc
	log     zerolog.Logger

	timer     int // live timer id, 0 when stopped
	nextTimer int
	epoch     int // id of the latest activation
	batches   uint64
	status    Status

	// owed holds sources an out-of-cadence batch had to skip; Resume
	// fetches them once released.
	owed map[string]struct{}
}

// New creates a stopped scheduler for spec.
func New(spec model.ContextSpec, deps Deps) *Scheduler {
	cadence := spec.Cadence
	if cadence <= 0 {
		cadence = model.DefaultCadence
	}
	if deps.Context == nil {
		deps.Context = context.Background()
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Tick == nil {
		deps.Tick = tea.Tick
	}
	return &Scheduler{
		spec:    spec,
		cadence: cadence,
		ctx:     deps.Context,
		sources: deps.Sources,
		fetcher: deps.Fetcher,
		cache:   deps.Cache,
		clock:   deps.Clock,
		tick:    deps.Tick,
		log:     deps.Log.With().Str("component", "scheduler").Str("context", spec.ID).Logger(),
		owed:    make(map[string]struct{}),
	}
}

// ID returns the context id.
func (s *Scheduler) ID() string { return s.spec.ID }

// Spec returns the context declaration.
func (s *Scheduler) Spec() model.ContextSpec { return s.spec }

// Cadence returns the repeat interval.
func (s *Scheduler) Cadence() time.Duration { return s.cadence }

// Active reports whether the repeat timer is live.
func (s *Scheduler) Active() bool { return s.timer != 0 }

// LiveTimers returns the number of live repeat timers, 1 while active and
// 0 otherwise.
func (s *Scheduler) LiveTimers() int {
	if s.timer != 0 {
		return 1
	}
	return 0
}

// Epoch returns the current activation id.
func (s *Scheduler) Epoch() int { return s.epoch }

// Status returns the context status.
func (s *Scheduler) Status() Status { return s.status }

// Start issues an immediate batch and arms the repeat timer. Starting an
// active scheduler does nothing.
func (s *Scheduler) Start() tea.Cmd {
	if s.timer != 0 {
		return nil
	}
	s.nextTimer++
	s.timer = s.nextTimer
	s.epoch = s.timer
	s.log.Debug().Int("timer", s.timer).Dur("cadence", s.cadence).Msg("started")
	return tea.Batch(s.batch(s.spec.Sources, false), s.schedule())
}

// Stop invalidates the repeat timer. In-flight fetches are left to finish;
// their payloads still reach the cache.
func (s *Scheduler) Stop() {
	if s.timer == 0 {
		return
	}
	s.log.Debug().Int("timer", s.timer).Msg("stopped")
	s.timer = 0
	clear(s.owed)
}

// Refresh issues one batch outside the cadence. The timer is untouched.
// Sources still in flight are owed a fetch, issued by Resume.
func (s *Scheduler) Refresh() tea.Cmd {
	return s.batch(s.spec.Sources, true)
}

// Resume issues the refresh owed to sources that were in flight when
// Refresh ran and have since been released. It returns nil while the
// context is inactive or nothing owed is free yet.
func (s *Scheduler) Resume() tea.Cmd {
	if s.timer == 0 || len(s.owed) == 0 {
		return nil
	}
	var ids []string
	for _, id := range s.spec.Sources {
		if _, ok := s.owed[id]; ok && !s.sources.InFlight(id) {
			ids = append(ids, id)
			delete(s.owed, id)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	s.log.Debug().Strs("sources", ids).Msg("issuing owed refresh")
	return s.batch(ids, true)
}

// Owed returns the number of sources waiting for a deferred refresh.
func (s *Scheduler) Owed() int { return len(s.owed) }

// HandleTick runs a batch and re-arms the timer, unless msg comes from a
// cancelled chain, in which case it is dropped.
func (s *Scheduler) HandleTick(msg TickMsg) tea.Cmd {
	if s.timer == 0 || msg.Timer != s.timer {
		s.log.Debug().Int("timer", msg.Timer).Int("live", s.timer).Msg("dropping stale tick")
		return nil
	}
	return tea.Batch(s.batch(s.spec.Sources, false), s.schedule())
}

// Apply records a settled batch. Source state and cache are always written;
// the context status only changes when the batch belongs to the current
// activation. It reports whether the batch was current.
func (s *Scheduler) Apply(msg BatchMsg) bool {
	var failures []string
	for _, res := range msg.Results {
		s.sources.Release(res)
		if res.Err != nil {
			failures = append(failures, res.Err.Error())
			s.log.Warn().Err(res.Err).Str("source", res.Source).Str("kind", source.Classify(res.Err).String()).Msg("fetch failed")
			continue
		}
		s.cache.Put(res.Source, res.Payload)
	}

	if !s.Current(msg) {
		s.status.StaleWrites++
		s.log.Debug().Int("epoch", msg.Epoch).Int("live", s.epoch).Uint64("batch", msg.Batch).Msg("stale context write suppressed")
		return false
	}

	now := s.clock.Now()
	s.status.Batches++
	s.status.LastBatchAt = now
	if len(msg.Skipped) > 0 {
		s.status.PartialBatches++
	}
	switch {
	case len(failures) > 0:
		s.status.FailedBatches++
		s.status.LastError = strings.Join(failures, "; ")
	case len(msg.Skipped) > 0:
		s.status.LastError = ""
	default:
		s.status.LastError = ""
		s.status.LastSuccessAt = now
	}
	return true
}

// Current reports whether msg was issued by the live activation.
func (s *Scheduler) Current(msg BatchMsg) bool {
	return s.timer != 0 && msg.Epoch == s.epoch
}

func (s *Scheduler) schedule() tea.Cmd {
	id, ctxID := s.timer, s.spec.ID
	return s.tick(s.cadence, func(time.Time) tea.Msg {
		return TickMsg{Context: ctxID, Timer: id}
	})
}

// batch acquires every source in ids that is not already in flight and
// returns a command fetching them concurrently. It returns nil when nothing
// could be acquired.
func (s *Scheduler) batch(ids []string, outOfCadence bool) tea.Cmd {
	now := s.clock.Now()
	seen := make(map[string]struct{}, len(ids))
	var specs []model.SourceSpec
	var skipped []string
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if !s.sources.TryAcquire(id, now) {
			s.log.Debug().Str("source", id).Msg("skipping source in flight")
			skipped = append(skipped, id)
			if outOfCadence {
				s.owed[id] = struct{}{}
			}
			continue
		}
		delete(s.owed, id)
		spec, _ := s.sources.Spec(id)
		specs = append(specs, spec)
	}
	if len(specs) == 0 {
		return nil
	}

	s.batches++
	msg := BatchMsg{
		Context:      s.spec.ID,
		Epoch:        s.epoch,
		Batch:        s.batches,
		OutOfCadence: outOfCadence,
		Skipped:      skipped,
	}
	ctx, fetcher, clock := s.ctx, s.fetcher, s.clock

	return func() tea.Msg {
		results := make([]source.Result, len(specs))
		var g errgroup.Group
		for i, spec := range specs {
			g.Go(func() error {
				results[i] = fetchOne(ctx, fetcher, clock, spec)
				return nil
			})
		}
		_ = g.Wait()
		msg.Results = results
		return msg
	}
}

func fetchOne(ctx context.Context, fetcher source.Fetcher, clock clockwork.Clock, spec model.SourceSpec) (res source.Result) {
	res = source.Result{Source: spec.ID, StartedAt: clock.Now()}
	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("%s: fetch panicked: %v", spec.ID, r)
		}
		res.FinishedAt = clock.Now()
	}()
	res.Payload, res.Err = fetcher.Fetch(ctx, spec)
	return res
}
