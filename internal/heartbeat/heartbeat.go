// Package heartbeat is the one shared display clock. Components subscribe by
// name instead of arming their own repeating timers; the tick chain runs
// only while at least one subscriber exists.
package heartbeat

import (
	"sort"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jonboulle/clockwork"
)

// TickFunc schedules a message after d. Production code uses tea.Tick; tests
// substitute a recorder so timers can be fired by hand.
type TickFunc func(d time.Duration, fn func(time.Time) tea.Msg) tea.Cmd

// BeatMsg is one heartbeat. ID identifies the tick chain that produced it.
type BeatMsg struct {
	ID   int
	Time time.Time
}

// Func is called once per beat with the current clock time.
type Func func(now time.Time)

// Service fans one periodic tick out to named subscribers.
type Service struct {
	interval time.Duration
	clock    clockwork.Clock
	tick     TickFunc

	subs   map[string]Func
	live   int // id of the live tick chain, 0 when stopped
	nextID int
	beats  uint64
}

// New creates a stopped heartbeat. Nil clock and tick default to the real
// clock and tea.Tick.
func New(interval time.Duration, clock clockwork.Clock, tick TickFunc) *Service {
	if interval <= 0 {
		interval = time.Second
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if tick == nil {
		tick = tea.Tick
	}
	return &Service{
		interval: interval,
		clock:    clock,
		tick:     tick,
		subs:     make(map[string]Func),
	}
}

// Subscribe registers fn under name, replacing any previous subscriber with
// the same name. The returned command starts the tick chain when it was not
// running.
func (s *Service) Subscribe(name string, fn Func) tea.Cmd {
	s.subs[name] = fn
	if s.live != 0 {
		return nil
	}
	s.nextID++
	s.live = s.nextID
	return s.schedule()
}

// Unsubscribe removes name. The chain stops when nobody is left.
func (s *Service) Unsubscribe(name string) {
	delete(s.subs, name)
	if len(s.subs) == 0 {
		s.live = 0
	}
}

// Update handles BeatMsg. Beats from a dead chain are dropped and not
// rescheduled.
func (s *Service) Update(msg tea.Msg) tea.Cmd {
	beat, ok := msg.(BeatMsg)
	if !ok || s.live == 0 || beat.ID != s.live {
		return nil
	}

	now := s.clock.Now()
	for _, name := range s.Subscribers() {
		// A subscriber may have been removed by an earlier one in this beat.
		if fn, ok := s.subs[name]; ok {
			fn(now)
		}
	}
	s.beats++
	return s.schedule()
}

// Running reports whether a tick chain is live.
func (s *Service) Running() bool { return s.live != 0 }

// Beats returns how many beats were delivered.
func (s *Service) Beats() uint64 { return s.beats }

// Interval returns the beat interval.
func (s *Service) Interval() time.Duration { return s.interval }

// Subscribers returns subscriber names in sorted order.
func (s *Service) Subscribers() []string {
	names := make([]string, 0, len(s.subs))
	for name := range s.subs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Service) schedule() tea.Cmd {
	id := s.live
	return s.tick(s.interval, func(t time.Time) tea.Msg {
		return BeatMsg{ID: id, Time: t}
	})
}
