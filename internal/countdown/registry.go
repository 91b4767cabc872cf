// Package countdown keeps every displayed time-remaining entity. Entries are
// anchored to an absolute end time and recomputed from the clock on every
// heartbeat, so the display never drifts no matter how coarse the fetch
// cadence is.
package countdown

import (
	"sort"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/tinytelemetry/opsdeck/internal/model"
)

// Target is one countdown as extracted from a payload.
type Target struct {
	ID       string        `json:"id"`
	Kind     string        `json:"kind"`
	Category string        `json:"category,omitempty"`
	Label    string        `json:"label,omitempty"`
	End      time.Time     `json:"end"`
	Total    time.Duration `json:"total"`
	Owner    string        `json:"owner,omitempty"` // "" for global countdowns
	Source   string        `json:"source"`
}

// Display is a Target with its derived values at the last tick.
type Display struct {
	Target
	Remaining time.Duration `json:"remaining"`
	Text      string        `json:"text"`
	Bucket    Bucket        `json:"bucket"`
	Progress  float64       `json:"progress"`
}

// Terminal reports whether the countdown has reached its end.
func (d Display) Terminal() bool { return d.Bucket == BucketTerminal }

// Compute derives the display values of t at now.
func Compute(t Target, now time.Time, kinds Kinds, th model.Thresholds) Display {
	remaining := t.End.Sub(now)
	d := Display{
		Target:    t,
		Remaining: remaining,
		Bucket:    BucketFor(remaining, th),
		Progress:  Progress(remaining, t.Total),
	}
	if remaining <= 0 {
		d.Remaining = 0
		d.Text = kinds.TerminalLabel(t.Kind)
		return d
	}
	d.Text = FormatRemaining(remaining)
	if suffix := kinds.Suffix(t.Kind); suffix != "" {
		d.Text += " " + suffix
	}
	return d
}

// Registry holds live countdowns keyed by id. It is confined to the event
// loop and not safe for concurrent use.
type Registry struct {
	kinds      Kinds
	thresholds model.Thresholds
	clock      clockwork.Clock
	log        zerolog.Logger

	entries  map[string]Display
	lastTick time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry(kinds map[string]model.KindSpec, th model.Thresholds, clock clockwork.Clock, log zerolog.Logger) *Registry {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Registry{
		kinds:      Kinds(kinds),
		thresholds: th,
		clock:      clock,
		log:        log.With().Str("component", "countdown").Logger(),
		entries:    make(map[string]Display),
	}
}

// Kinds returns the kind table the registry resolves against.
func (r *Registry) Kinds() Kinds { return r.kinds }

// Register adds or replaces the countdown with t.ID. A zero Total is resolved
// from the kind table. The display is computed immediately.
func (r *Registry) Register(t Target) Display {
	if t.Total <= 0 {
		t.Total = r.kinds.Total(t.Kind, t.Category)
	}
	d := Compute(t, r.clock.Now(), r.kinds, r.thresholds)
	r.entries[t.ID] = d
	return d
}

// Remove deletes id and reports whether it existed.
func (r *Registry) Remove(id string) bool {
	if _, ok := r.entries[id]; !ok {
		return false
	}
	delete(r.entries, id)
	return true
}

// Reconcile registers targets for owner and source, then removes every entry
// of the same owner and source missing from targets. It returns how many
// entries were removed.
func (r *Registry) Reconcile(owner, source string, targets []Target) int {
	seen := make(map[string]struct{}, len(targets))
	for _, t := range targets {
		t.Owner = owner
		t.Source = source
		r.Register(t)
		seen[t.ID] = struct{}{}
	}

	removed := 0
	for id, d := range r.entries {
		if d.Owner != owner || d.Source != source {
			continue
		}
		if _, ok := seen[id]; !ok {
			delete(r.entries, id)
			removed++
		}
	}
	if removed > 0 {
		r.log.Debug().Str("owner", owner).Str("source", source).Int("removed", removed).Msg("countdowns collected")
	}
	return removed
}

// DropOwner removes every countdown owned by owner. Global countdowns cannot
// be dropped this way.
func (r *Registry) DropOwner(owner string) int {
	if owner == "" {
		return 0
	}
	removed := 0
	for id, d := range r.entries {
		if d.Owner == owner {
			delete(r.entries, id)
			removed++
		}
	}
	return removed
}

// Tick recomputes every entry at now.
func (r *Registry) Tick(now time.Time) {
	for id, d := range r.entries {
		r.entries[id] = Compute(d.Target, now, r.kinds, r.thresholds)
	}
	r.lastTick = now
}

// TickOwner recomputes only the entries owned by owner ("" for global).
func (r *Registry) TickOwner(owner string, now time.Time) {
	for id, d := range r.entries {
		if d.Owner == owner {
			r.entries[id] = Compute(d.Target, now, r.kinds, r.thresholds)
		}
	}
	r.lastTick = now
}

// LastTick returns the time of the most recent recompute.
func (r *Registry) LastTick() time.Time { return r.lastTick }

// Get returns the entry for id.
func (r *Registry) Get(id string) (Display, bool) {
	d, ok := r.entries[id]
	return d, ok
}

// Len returns the number of live entries.
func (r *Registry) Len() int { return len(r.entries) }

// Views returns the entries owned by owner, soonest first. A non-empty kinds
// list restricts the result to those kinds.
func (r *Registry) Views(owner string, kinds []string) []Display {
	var allow map[string]struct{}
	if len(kinds) > 0 {
		allow = make(map[string]struct{}, len(kinds))
		for _, k := range kinds {
			allow[k] = struct{}{}
		}
	}

	out := make([]Display, 0, len(r.entries))
	for _, d := range r.entries {
		if d.Owner != owner {
			continue
		}
		if allow != nil {
			if _, ok := allow[d.Kind]; !ok {
				continue
			}
		}
		out = append(out, d)
	}
	sortDisplays(out)
	return out
}

// All returns every entry, soonest first.
func (r *Registry) All() []Display {
	out := make([]Display, 0, len(r.entries))
	for _, d := range r.entries {
		out = append(out, d)
	}
	sortDisplays(out)
	return out
}

func sortDisplays(ds []Display) {
	sort.Slice(ds, func(i, j int) bool {
		if !ds[i].End.Equal(ds[j].End) {
			return ds[i].End.Before(ds[j].End)
		}
		return ds[i].ID < ds[j].ID
	})
}
