// Package config loads the board declaration from an optional YAML file,
// OPSDECK_* environment variables and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/tinytelemetry/opsdeck/internal/model"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "OPSDECK"

// Config is the full runtime configuration of both binaries.
type Config struct {
	model.Board `mapstructure:",squash" yaml:",inline"`

	LogLevel string `mapstructure:"log-level" yaml:"log-level"`
	LogFile  string `mapstructure:"log-file" yaml:"log-file,omitempty"`
	APIAddr  string `mapstructure:"api-addr" yaml:"api-addr"`
}

// DefaultPath returns $HOME/.config/opsdeck/config.yml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("finding home directory: %w", err)
	}
	return filepath.Join(home, ".config", "opsdeck", "config.yml"), nil
}

// Load reads configuration from path (or the default path when empty).
// A missing file is not an error. envFile, when non-empty, is loaded into
// the process environment first; a missing env file is ignored too.
func Load(path, envFile string) (Config, error) {
	var cfg Config

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return cfg, err
		}
		path = p
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	v.SetDefault("base-url", model.DefaultBaseURL)
	v.SetDefault("fetch-timeout", model.DefaultFetchTimeout)
	v.SetDefault("heartbeat", model.DefaultHeartbeat)
	v.SetDefault("grace", model.DefaultGrace)
	v.SetDefault("thresholds.urgent", model.DefaultUrgent)
	v.SetDefault("thresholds.warning", model.DefaultWarning)
	v.SetDefault("log-level", "info")
	v.SetDefault("log-file", "")
	v.SetDefault("api-addr", model.DefaultAPIAddr)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFound) && !errors.Is(err, fs.ErrNotExist) {
			return cfg, err
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}

	cfg.Board = Normalize(cfg.Board)
	if err := Validate(cfg.Board); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Normalize fills defaults: the built-in layout when no sources are
// declared, built-in kinds under configured ones, default cadences and
// intervals.
func Normalize(b model.Board) model.Board {
	if len(b.Sources) == 0 && len(b.Contexts) == 0 && len(b.Jobs) == 0 {
		def := model.DefaultBoard()
		b.Sources, b.Contexts, b.Jobs = def.Sources, def.Contexts, def.Jobs
	}
	if b.BaseURL == "" {
		b.BaseURL = model.DefaultBaseURL
	}
	if b.FetchTimeout <= 0 {
		b.FetchTimeout = model.DefaultFetchTimeout
	}
	if b.Heartbeat <= 0 {
		b.Heartbeat = model.DefaultHeartbeat
	}
	if b.Grace <= 0 {
		b.Grace = model.DefaultGrace
	}
	if b.Thresholds.Urgent == 0 {
		b.Thresholds.Urgent = model.DefaultUrgent
	}
	if b.Thresholds.Warning == 0 {
		b.Thresholds.Warning = model.DefaultWarning
	}

	b.Kinds = mergeKinds(model.DefaultKinds(), b.Kinds)

	for i := range b.Contexts {
		if b.Contexts[i].Cadence == 0 {
			b.Contexts[i].Cadence = model.DefaultCadence
		}
	}
	for i := range b.Jobs {
		if b.Jobs[i].Interval == 0 {
			b.Jobs[i].Interval = model.DefaultJobInterval
		}
	}
	for i := range b.Sources {
		b.Sources[i].Method = strings.ToUpper(b.Sources[i].Method)
	}
	return b
}

// mergeKinds overlays configured kinds on the built-in ones. Category keys
// are lowercased to match lookups.
func mergeKinds(base, over map[string]model.KindSpec) map[string]model.KindSpec {
	out := make(map[string]model.KindSpec, len(base)+len(over))
	for name, k := range base {
		out[name] = k
	}
	for name, k := range over {
		name = strings.ToLower(name)
		merged := out[name]
		if k.TerminalLabel != "" {
			merged.TerminalLabel = k.TerminalLabel
		}
		if k.Suffix != "" {
			merged.Suffix = k.Suffix
		}
		if k.DefaultTotal > 0 {
			merged.DefaultTotal = k.DefaultTotal
		}
		totals := make(map[string]time.Duration, len(merged.Totals)+len(k.Totals))
		for cat, d := range merged.Totals {
			totals[strings.ToLower(cat)] = d
		}
		for cat, d := range k.Totals {
			totals[strings.ToLower(cat)] = d
		}
		merged.Totals = totals
		out[name] = merged
	}
	return out
}

// Validate checks the board for structural errors and reports all of them.
func Validate(b model.Board) error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if u, err := url.Parse(b.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		add("base-url %q is not an absolute URL", b.BaseURL)
	}
	if b.Thresholds.Urgent < 0 || b.Thresholds.Warning < b.Thresholds.Urgent {
		add("thresholds: need 0 <= urgent (%s) <= warning (%s)", b.Thresholds.Urgent, b.Thresholds.Warning)
	}

	sources := make(map[string]bool, len(b.Sources))
	for i, s := range b.Sources {
		switch {
		case s.ID == "":
			add("sources[%d]: id is required", i)
			continue
		case sources[s.ID]:
			add("sources[%d]: duplicate id %q", i, s.ID)
		}
		sources[s.ID] = true
		if s.Path == "" {
			add("source %q: path is required", s.ID)
		}
		switch s.Shape.Type {
		case "", "object", "array":
		default:
			add("source %q: unknown shape type %q", s.ID, s.Shape.Type)
		}
		if cb := s.Countdowns; cb != nil {
			if cb.IDField == "" || cb.EndField == "" {
				add("source %q: countdowns need id-field and end-field", s.ID)
			}
			if cb.KindField == "" {
				if _, ok := b.Kinds[cb.Kind]; !ok {
					add("source %q: unknown countdown kind %q", s.ID, cb.Kind)
				}
			}
			switch cb.Scope {
			case "", model.ScopeContext, model.ScopeGlobal:
			default:
				add("source %q: unknown countdown scope %q", s.ID, cb.Scope)
			}
		}
	}

	if len(b.Contexts) == 0 {
		add("at least one context is required")
	}
	contexts := make(map[string]bool, len(b.Contexts))
	for i, c := range b.Contexts {
		switch {
		case c.ID == "":
			add("contexts[%d]: id is required", i)
			continue
		case contexts[c.ID]:
			add("contexts[%d]: duplicate id %q", i, c.ID)
		}
		contexts[c.ID] = true
		if c.Cadence <= 0 {
			add("context %q: cadence must be positive", c.ID)
		}
		if len(c.Sources) == 0 {
			add("context %q: no sources", c.ID)
		}
		for _, id := range c.Sources {
			if !sources[id] {
				add("context %q: unknown source %q", c.ID, id)
			}
		}
		for _, k := range c.Kinds {
			if _, ok := b.Kinds[k]; !ok {
				add("context %q: unknown countdown kind %q", c.ID, k)
			}
		}
	}

	jobs := make(map[string]bool, len(b.Jobs))
	for i, j := range b.Jobs {
		switch {
		case j.Kind == "":
			add("jobs[%d]: kind is required", i)
			continue
		case jobs[j.Kind]:
			add("jobs[%d]: duplicate kind %q", i, j.Kind)
		}
		jobs[j.Kind] = true
		if j.Trigger == "" || j.Status == "" {
			add("job %q: trigger and status are required", j.Kind)
		}
		if j.Interval <= 0 {
			add("job %q: interval must be positive", j.Kind)
		}
		if !contexts[j.Owner] {
			add("job %q: unknown owner context %q", j.Kind, j.Owner)
		}
	}

	return errors.Join(errs...)
}

// Dump renders cfg as YAML.
func Dump(cfg Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}
