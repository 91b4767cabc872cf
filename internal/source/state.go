package source

import (
	"sort"
	"time"

	"github.com/tinytelemetry/opsdeck/internal/model"
)

const maxLatencies = 20

// Result is the outcome of one fetch.
type Result struct {
	Source     string
	Payload    Payload
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// OK reports whether the fetch succeeded.
func (r Result) OK() bool { return r.Err == nil }

// State is the fetch metadata of one source. The payload itself lives in
// the shared cache under the source id.
type State struct {
	ID                string          `json:"id"`
	Title             string          `json:"title"`
	InFlight          bool            `json:"in_flight"`
	LastFetchAt       time.Time       `json:"last_fetch_at"`
	LastSuccessAt     time.Time       `json:"last_success_at"`
	LastError         string          `json:"last_error,omitempty"`
	LastErrorKind     ErrorKind       `json:"last_error_kind"`
	ConsecutiveErrors int             `json:"consecutive_errors"`
	Fetches           uint64          `json:"fetches"`
	Failures          uint64          `json:"failures"`
	Skipped           uint64          `json:"skipped"` // requests dropped because a fetch was in flight
	Latencies         []time.Duration `json:"latencies,omitempty"`
}

// HasData reports whether the source ever produced a payload.
func (s State) HasData() bool { return !s.LastSuccessAt.IsZero() }

// Stale reports whether the source has a payload but its latest fetch failed.
func (s State) Stale() bool { return s.HasData() && s.LastError != "" }

// Age returns how old the last good payload is at now.
func (s State) Age(now time.Time) time.Duration {
	if !s.HasData() {
		return 0
	}
	return now.Sub(s.LastSuccessAt)
}

// Registry holds fetch state for every declared source. States are created
// lazily on first acquire. It is confined to the event loop.
type Registry struct {
	specs  map[string]model.SourceSpec
	states map[string]*State
}

// NewRegistry indexes specs by id.
func NewRegistry(specs []model.SourceSpec) *Registry {
	r := &Registry{
		specs:  make(map[string]model.SourceSpec, len(specs)),
		states: make(map[string]*State),
	}
	for _, s := range specs {
		r.specs[s.ID] = s
	}
	return r
}

// Spec returns the declaration for id.
func (r *Registry) Spec(id string) (model.SourceSpec, bool) {
	s, ok := r.specs[id]
	return s, ok
}

// TryAcquire marks id in flight. It returns false when id is unknown or
// a fetch for it has not resolved yet.
func (r *Registry) TryAcquire(id string, now time.Time) bool {
	spec, ok := r.specs[id]
	if !ok {
		return false
	}
	st := r.state(spec)
	if st.InFlight {
		st.Skipped++
		return false
	}
	st.InFlight = true
	st.LastFetchAt = now
	return true
}

// Release records res and clears the in-flight flag.
func (r *Registry) Release(res Result) {
	spec, ok := r.specs[res.Source]
	if !ok {
		return
	}
	st := r.state(spec)
	st.InFlight = false
	st.Fetches++

	if res.Err != nil {
		st.Failures++
		st.ConsecutiveErrors++
		st.LastError = res.Err.Error()
		st.LastErrorKind = Classify(res.Err)
		return
	}

	st.ConsecutiveErrors = 0
	st.LastError = ""
	st.LastErrorKind = KindNone
	st.LastSuccessAt = res.FinishedAt
	st.Latencies = append(st.Latencies, res.Payload.Latency)
	if len(st.Latencies) > maxLatencies {
		st.Latencies = st.Latencies[len(st.Latencies)-maxLatencies:]
	}
}

// InFlight reports whether a fetch for id is outstanding.
func (r *Registry) InFlight(id string) bool {
	st, ok := r.states[id]
	return ok && st.InFlight
}

// State returns a copy of id's state. Sources never fetched return a zero
// state carrying only id and title.
func (r *Registry) State(id string) State {
	if st, ok := r.states[id]; ok {
		return copyState(st)
	}
	spec := r.specs[id]
	return State{ID: id, Title: spec.DisplayName()}
}

// States returns copies for ids in the given order, or for every declared
// source sorted by id when ids is empty.
func (r *Registry) States(ids []string) []State {
	if len(ids) == 0 {
		for id := range r.specs {
			ids = append(ids, id)
		}
		sort.Strings(ids)
	}
	out := make([]State, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.State(id))
	}
	return out
}

func (r *Registry) state(spec model.SourceSpec) *State {
	st, ok := r.states[spec.ID]
	if !ok {
		st = &State{ID: spec.ID, Title: spec.DisplayName()}
		r.states[spec.ID] = st
	}
	return st
}

func copyState(st *State) State {
	out := *st
	out.Latencies = append([]time.Duration(nil), st.Latencies...)
	return out
}
