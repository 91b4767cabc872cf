package model

import "time"

// Board is the full orchestration layout: which sources exist, how views
// group them, which countdown kinds are known and which async jobs can run.
type Board struct {
	BaseURL      string              `mapstructure:"base-url" yaml:"base-url"`
	FetchTimeout time.Duration       `mapstructure:"fetch-timeout" yaml:"fetch-timeout"`
	Heartbeat    time.Duration       `mapstructure:"heartbeat" yaml:"heartbeat"`
	Grace        time.Duration       `mapstructure:"grace" yaml:"grace"`
	Thresholds   Thresholds          `mapstructure:"thresholds" yaml:"thresholds"`
	Kinds        map[string]KindSpec `mapstructure:"kinds" yaml:"kinds"`
	Sources      []SourceSpec        `mapstructure:"sources" yaml:"sources"`
	Contexts     []ContextSpec       `mapstructure:"contexts" yaml:"contexts"`
	Jobs         []JobSpec           `mapstructure:"jobs" yaml:"jobs"`
}

// Source returns the declaration for id.
func (b Board) Source(id string) (SourceSpec, bool) {
	for _, s := range b.Sources {
		if s.ID == id {
			return s, true
		}
	}
	return SourceSpec{}, false
}

// Context returns the declaration for id.
func (b Board) Context(id string) (ContextSpec, bool) {
	for _, c := range b.Contexts {
		if c.ID == id {
			return c, true
		}
	}
	return ContextSpec{}, false
}

// SourceSpec declares one remote status endpoint. The contexts listing its
// id share a single fetch state and a single cache entry.
type SourceSpec struct {
	ID         string            `mapstructure:"id" yaml:"id"`
	Title      string            `mapstructure:"title" yaml:"title,omitempty"`
	Path       string            `mapstructure:"path" yaml:"path"`
	Method     string            `mapstructure:"method" yaml:"method,omitempty"`
	Shape      Shape             `mapstructure:"shape" yaml:"shape,omitempty"`
	Countdowns *CountdownBinding `mapstructure:"countdowns" yaml:"countdowns,omitempty"`
}

// DisplayName returns Title, falling back to ID.
func (s SourceSpec) DisplayName() string {
	if s.Title != "" {
		return s.Title
	}
	return s.ID
}

// Shape is the minimal structural contract a payload must satisfy.
type Shape struct {
	Type     string   `mapstructure:"type" yaml:"type,omitempty"` // "object", "array" or empty for any
	Required []string `mapstructure:"required" yaml:"required,omitempty"`
}

// CountdownScope controls who owns the countdowns extracted from a source.
type CountdownScope string

const (
	ScopeContext CountdownScope = "context" // torn down with the fetching context
	ScopeGlobal  CountdownScope = "global"  // survives navigation
)

// CountdownBinding describes how to turn a refreshed entity list into
// countdown targets.
type CountdownBinding struct {
	List          string         `mapstructure:"list" yaml:"list,omitempty"` // dotted path to the entity array; empty = payload root
	IDField       string         `mapstructure:"id-field" yaml:"id-field"`
	EndField      string         `mapstructure:"end-field" yaml:"end-field"`
	Kind          string         `mapstructure:"kind" yaml:"kind"`
	KindField     string         `mapstructure:"kind-field" yaml:"kind-field,omitempty"`
	CategoryField string         `mapstructure:"category-field" yaml:"category-field,omitempty"`
	LabelField    string         `mapstructure:"label-field" yaml:"label-field,omitempty"`
	Scope         CountdownScope `mapstructure:"scope" yaml:"scope,omitempty"`
}

// ContextSpec declares one navigable view.
type ContextSpec struct {
	ID      string        `mapstructure:"id" yaml:"id"`
	Title   string        `mapstructure:"title" yaml:"title,omitempty"`
	Cadence time.Duration `mapstructure:"cadence" yaml:"cadence"`
	Sources []string      `mapstructure:"sources" yaml:"sources"`
	Kinds   []string      `mapstructure:"kinds" yaml:"kinds,omitempty"` // countdown kinds in scope; empty = all
}

// DisplayName returns Title, falling back to ID.
func (c ContextSpec) DisplayName() string {
	if c.Title != "" {
		return c.Title
	}
	return c.ID
}

// JobSpec declares one async job kind and the two endpoints that drive it.
type JobSpec struct {
	Kind     string        `mapstructure:"kind" yaml:"kind"`
	Title    string        `mapstructure:"title" yaml:"title,omitempty"`
	Trigger  string        `mapstructure:"trigger" yaml:"trigger"`
	Status   string        `mapstructure:"status" yaml:"status"`
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
	Owner    string        `mapstructure:"owner" yaml:"owner"`
}

// DisplayName returns Title, falling back to Kind.
func (j JobSpec) DisplayName() string {
	if j.Title != "" {
		return j.Title
	}
	return j.Kind
}

// KindSpec describes one countdown kind: its terminal label, the phrase shown
// after the remaining time and the total-duration lookup used for progress.
type KindSpec struct {
	TerminalLabel string                   `mapstructure:"terminal-label" yaml:"terminal-label"`
	Suffix        string                   `mapstructure:"suffix" yaml:"suffix,omitempty"`
	DefaultTotal  time.Duration            `mapstructure:"default-total" yaml:"default-total"`
	Totals        map[string]time.Duration `mapstructure:"totals" yaml:"totals,omitempty"`
}

// Thresholds bucket a remaining duration into urgency levels.
type Thresholds struct {
	Urgent  time.Duration `mapstructure:"urgent" yaml:"urgent"`
	Warning time.Duration `mapstructure:"warning" yaml:"warning"`
}

// TriggerResponse is the body returned by a job trigger endpoint.
type TriggerResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// StatusResponse is the body returned by a job status endpoint.
// Scanning is a pointer so an absent field is not mistaken for false.
type StatusResponse struct {
	Step     string  `json:"step"`
	Detail   string  `json:"detail"`
	Pct      float64 `json:"pct"`
	Done     bool    `json:"done"`
	Scanning *bool   `json:"scanning,omitempty"`
	Error    string  `json:"error,omitempty"`
}

// Terminal reports whether the job behind this status has finished.
func (s StatusResponse) Terminal() bool {
	return s.Done || (s.Scanning != nil && !*s.Scanning)
}
