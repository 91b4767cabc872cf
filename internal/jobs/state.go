package jobs

import (
	"errors"
	"fmt"
	"time"
)

// State is the lifecycle state of one job kind.
type State int

const (
	StateIdle State = iota
	StateRequested
	StateRunning
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequested:
		return "requested"
	case StateRunning:
		return "running"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText renders the state name in JSON snapshots.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether s is Done or Failed.
func (s State) Terminal() bool { return s == StateDone || s == StateFailed }

// Busy reports whether a new request for the kind must be refused.
func (s State) Busy() bool { return s == StateRequested || s == StateRunning }

var transitions = map[State][]State{
	StateIdle:      {StateRequested},
	StateRequested: {StateRunning, StateFailed},
	StateRunning:   {StateDone, StateFailed},
	StateDone:      {StateIdle},
	StateFailed:    {StateIdle},
}

var (
	// ErrUnknownJob is returned for a kind that was never declared.
	ErrUnknownJob = errors.New("unknown job kind")
	// ErrDuplicateJob marks a request refused because the kind is busy. It is
	// reported through Result, never as a failure.
	ErrDuplicateJob = errors.New("job already running")

	errIllegalTransition = errors.New("illegal job transition")
)

func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Progress is the latest status reported by the backend.
type Progress struct {
	Step   string    `json:"step"`
	Detail string    `json:"detail,omitempty"`
	Pct    float64   `json:"pct"`
	At     time.Time `json:"at"`
}

// Fraction returns Pct scaled to [0, 1]. Backends report 0 to 100.
func (p Progress) Fraction() float64 {
	f := p.Pct / 100
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}

// Job is the state of one job kind. Values returned by the poller are
// copies.
type Job struct {
	Kind          string     `json:"kind"`
	Title         string     `json:"title"`
	Owner         string     `json:"owner"`
	State         State      `json:"state"`
	Progress      Progress   `json:"progress"`
	History       []Progress `json:"history,omitempty"`
	RequestID     string     `json:"request_id,omitempty"`
	Message       string     `json:"message,omitempty"`
	LastPollError string     `json:"last_poll_error,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    time.Time  `json:"finished_at"`
	Polls         int        `json:"polls"`
	Visible       bool       `json:"visible"` // progress UI shown

	run          int
	pollInFlight bool
}

func (j *Job) advance(to State) error {
	if !canTransition(j.State, to) {
		return fmt.Errorf("%w: %s %s -> %s", errIllegalTransition, j.Kind, j.State, to)
	}
	j.State = to
	return nil
}

func (j *Job) clone() Job {
	out := *j
	out.History = append([]Progress(nil), j.History...)
	return out
}

// Result is the answer to a job request.
type Result struct {
	Kind      string `json:"kind"`
	Accepted  bool   `json:"accepted"`
	Duplicate bool   `json:"duplicate,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	Message   string `json:"message"`
	Err       error  `json:"-"`
}
