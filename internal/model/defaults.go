package model

import "time"

// Shared defaults used by both the TUI and the headless binaries.
const (
	DefaultBaseURL      = "http://127.0.0.1:8000"
	DefaultFetchTimeout = 10 * time.Second
	DefaultHeartbeat    = time.Second
	DefaultGrace        = 3 * time.Second
	DefaultCadence      = 10 * time.Second
	DefaultJobInterval  = time.Second
	DefaultUrgent       = 2 * time.Minute
	DefaultWarning      = 10 * time.Minute
	DefaultAPIAddr      = "127.0.0.1:7070"
)

// Countdown kinds known out of the box.
const (
	KindTradeWindow = "trade_window"
	KindAgentCycle  = "agent_cycle"
	KindMarketClose = "market_close"
)

// DefaultKinds returns the built-in countdown kinds. Configuration may
// override or extend them.
func DefaultKinds() map[string]KindSpec {
	return map[string]KindSpec{
		KindTradeWindow: {
			TerminalLabel: "Expired",
			Suffix:        "left",
			DefaultTotal:  15 * time.Minute,
			Totals: map[string]time.Duration{
				"5m":  5 * time.Minute,
				"15m": 15 * time.Minute,
				"1h":  time.Hour,
			},
		},
		KindAgentCycle: {
			TerminalLabel: "Cycle due",
			Suffix:        "to next cycle",
			DefaultTotal:  time.Hour,
			Totals: map[string]time.Duration{
				"fast":   5 * time.Minute,
				"hourly": time.Hour,
				"daily":  24 * time.Hour,
			},
		},
		KindMarketClose: {
			TerminalLabel: "Market closed",
			Suffix:        "to close",
			DefaultTotal:  6*time.Hour + 30*time.Minute,
		},
	}
}

// DefaultBoard is used when no sources are configured. It mirrors the three
// subsystem families the dashboard was built for.
func DefaultBoard() Board {
	return Board{
		BaseURL:      DefaultBaseURL,
		FetchTimeout: DefaultFetchTimeout,
		Heartbeat:    DefaultHeartbeat,
		Grace:        DefaultGrace,
		Thresholds:   Thresholds{Urgent: DefaultUrgent, Warning: DefaultWarning},
		Kinds:        DefaultKinds(),
		Sources: []SourceSpec{
			{
				ID:    "market",
				Title: "Market",
				Path:  "/api/market/status",
				Shape: Shape{Type: "object", Required: []string{"open"}},
				Countdowns: &CountdownBinding{
					List:     "sessions",
					IDField:  "exchange",
					EndField: "closes_at",
					Kind:     KindMarketClose,
					Scope:    ScopeGlobal,
				},
			},
			{
				ID:    "trades",
				Title: "Open trades",
				Path:  "/api/trading/trades",
				Shape: Shape{Type: "object", Required: []string{"trades"}},
				Countdowns: &CountdownBinding{
					List:          "trades",
					IDField:       "id",
					EndField:      "expires_at",
					Kind:          KindTradeWindow,
					CategoryField: "window",
					LabelField:    "symbol",
					Scope:         ScopeContext,
				},
			},
			{
				ID:    "engine",
				Title: "Engine",
				Path:  "/api/trading/engine",
				Shape: Shape{Type: "object"},
			},
			{
				ID:    "pipeline",
				Title: "Pipeline",
				Path:  "/api/content/pipeline",
				Shape: Shape{Type: "object", Required: []string{"stages"}},
			},
			{
				ID:    "agents",
				Title: "Agents",
				Path:  "/api/research/agents",
				Shape: Shape{Type: "object", Required: []string{"agents"}},
				Countdowns: &CountdownBinding{
					List:          "agents",
					IDField:       "name",
					EndField:      "next_run",
					Kind:          KindAgentCycle,
					CategoryField: "schedule",
					LabelField:    "name",
					Scope:         ScopeContext,
				},
			},
		},
		Contexts: []ContextSpec{
			{ID: "trading", Title: "Trading", Cadence: 5 * time.Second, Sources: []string{"market", "trades", "engine"}},
			{ID: "content", Title: "Content", Cadence: 15 * time.Second, Sources: []string{"market", "pipeline"}},
			{ID: "research", Title: "Research", Cadence: 30 * time.Second, Sources: []string{"market", "agents"}},
		},
		Jobs: []JobSpec{
			{Kind: "scan", Title: "Market scan", Trigger: "/api/trading/scan", Status: "/api/trading/scan/status", Interval: DefaultJobInterval, Owner: "trading"},
			{Kind: "backtest", Title: "Backtest", Trigger: "/api/research/backtest", Status: "/api/research/backtest/status", Interval: 2 * time.Second, Owner: "research"},
		},
	}
}
