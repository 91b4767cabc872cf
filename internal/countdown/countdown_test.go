package countdown

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinytelemetry/opsdeck/internal/model"
)

var t0 = time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)

func defaultThresholds() model.Thresholds {
	return model.Thresholds{Urgent: model.DefaultUrgent, Warning: model.DefaultWarning}
}

func newRegistry(clock clockwork.Clock) *Registry {
	return NewRegistry(model.DefaultKinds(), defaultThresholds(), clock, zerolog.Nop())
}

func TestFormatRemaining(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   time.Duration
		want string
	}{
		{45 * time.Second, "45s"},
		{125 * time.Second, "2m 05s"},
		{124*time.Second + 400*time.Millisecond, "2m 05s"},
		{62 * time.Minute, "1h 02m"},
		{3*24*time.Hour + 4*time.Hour, "3d 04h"},
		{time.Second, "1s"},
		{0, "0s"},
		{-time.Minute, "0s"},
	}
	for _, tt := range tests {
		if got := FormatRemaining(tt.in); got != tt.want {
			t.Errorf("FormatRemaining(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBucketFor(t *testing.T) {
	t.Parallel()

	th := defaultThresholds()
	tests := []struct {
		in   time.Duration
		want Bucket
	}{
		{0, BucketTerminal},
		{-time.Second, BucketTerminal},
		{time.Minute, BucketUrgent},
		{2*time.Minute - time.Second, BucketUrgent},
		{2 * time.Minute, BucketWarning},
		{10*time.Minute - time.Second, BucketWarning},
		{10 * time.Minute, BucketNormal},
	}
	for _, tt := range tests {
		if got := BucketFor(tt.in, th); got != tt.want {
			t.Errorf("BucketFor(%v) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestProgress(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 0.8611, Progress(125*time.Second, 900*time.Second), 0.0001)
	assert.Equal(t, 0.0, Progress(2*time.Hour, time.Hour), "clamped at 0")
	assert.Equal(t, 1.0, Progress(0, time.Hour))
	assert.Equal(t, 0.0, Progress(time.Minute, 0), "unknown total")
}

func TestKinds_Total(t *testing.T) {
	t.Parallel()

	k := Kinds(model.DefaultKinds())
	assert.Equal(t, 15*time.Minute, k.Total(model.KindTradeWindow, "15M"))
	assert.Equal(t, 24*time.Hour, k.Total(model.KindAgentCycle, "daily"))
	assert.Equal(t, time.Hour, k.Total(model.KindAgentCycle, "weird"), "falls back to default total")
	assert.Equal(t, time.Duration(0), k.Total("unknown", "x"))
	assert.Equal(t, "Market closed", k.TerminalLabel(model.KindMarketClose))
	assert.Equal(t, "Done", k.TerminalLabel("unknown"))
}

func TestRegister_TradeWindowDisplay(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClockAt(t0)
	r := newRegistry(clock)

	d := r.Register(Target{
		ID:    "trade-1",
		Kind:  model.KindTradeWindow,
		End:   t0.Add(125 * time.Second),
		Total: 900 * time.Second,
	})

	assert.Equal(t, "2m 05s left", d.Text)
	assert.Equal(t, BucketWarning, d.Bucket)
	assert.InDelta(t, 0.861, d.Progress, 0.001)
}

func TestRegister_ResolvesTotalFromCategory(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClockAt(t0)
	r := newRegistry(clock)

	d := r.Register(Target{ID: "t", Kind: model.KindTradeWindow, Category: "5m", End: t0.Add(time.Minute)})
	assert.Equal(t, 5*time.Minute, d.Total)
	assert.InDelta(t, 0.8, d.Progress, 0.0001)
	assert.Equal(t, BucketUrgent, d.Bucket)
}

func TestRegister_TwiceKeepsOneEntry(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClockAt(t0)
	r := newRegistry(clock)

	r.Register(Target{ID: "x", Kind: model.KindTradeWindow, End: t0.Add(time.Minute)})
	r.Register(Target{ID: "x", Kind: model.KindTradeWindow, End: t0.Add(5 * time.Minute)})

	require.Equal(t, 1, r.Len())
	d, ok := r.Get("x")
	require.True(t, ok)
	assert.Equal(t, t0.Add(5*time.Minute), d.End)
}

func TestTick_DriftFree(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClockAt(t0)
	r := newRegistry(clock)
	end := t0.Add(10 * time.Minute)
	r.Register(Target{ID: "x", Kind: model.KindAgentCycle, End: end})

	// Irregular beats, including a long stall, must not accumulate error.
	for _, step := range []time.Duration{time.Second, 1300 * time.Millisecond, 45 * time.Second, 700 * time.Millisecond} {
		clock.Advance(step)
		r.Tick(clock.Now())
		d, _ := r.Get("x")
		if d.Remaining != end.Sub(clock.Now()) {
			t.Fatalf("remaining = %v, want %v", d.Remaining, end.Sub(clock.Now()))
		}
	}

	// A fresh registry ticked once at the same instant agrees.
	fresh := newRegistry(clock)
	fresh.Register(Target{ID: "x", Kind: model.KindAgentCycle, End: end})
	a, _ := r.Get("x")
	b, _ := fresh.Get("x")
	assert.Equal(t, b.Remaining, a.Remaining)
}

func TestTick_TerminalLabel(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClockAt(t0)
	r := newRegistry(clock)
	r.Register(Target{ID: "nyse", Kind: model.KindMarketClose, End: t0.Add(2 * time.Second)})

	clock.Advance(3 * time.Second)
	r.Tick(clock.Now())

	d, _ := r.Get("nyse")
	assert.Equal(t, "Market closed", d.Text)
	assert.Equal(t, time.Duration(0), d.Remaining)
	assert.True(t, d.Terminal())
	assert.Equal(t, 1.0, d.Progress)
}

func TestTickOwner_OnlyTouchesOwner(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClockAt(t0)
	r := newRegistry(clock)
	r.Reconcile("trading", "trades", []Target{{ID: "a", Kind: model.KindTradeWindow, End: t0.Add(time.Hour)}})
	r.Reconcile("", "market", []Target{{ID: "g", Kind: model.KindMarketClose, End: t0.Add(time.Hour)}})

	clock.Advance(time.Minute)
	r.TickOwner("trading", clock.Now())

	a, _ := r.Get("a")
	g, _ := r.Get("g")
	assert.Equal(t, 59*time.Minute, a.Remaining)
	assert.Equal(t, time.Hour, g.Remaining)
}

func TestReconcile_RemovesAbsent(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClockAt(t0)
	r := newRegistry(clock)
	end := t0.Add(time.Hour)

	r.Reconcile("trading", "trades", []Target{
		{ID: "a", Kind: model.KindTradeWindow, End: end},
		{ID: "b", Kind: model.KindTradeWindow, End: end},
	})
	r.Reconcile("research", "agents", []Target{{ID: "agent", Kind: model.KindAgentCycle, End: end}})
	r.Reconcile("", "market", []Target{{ID: "nyse", Kind: model.KindMarketClose, End: end}})

	removed := r.Reconcile("trading", "trades", []Target{
		{ID: "b", Kind: model.KindTradeWindow, End: end},
		{ID: "c", Kind: model.KindTradeWindow, End: end},
	})

	assert.Equal(t, 1, removed)
	_, ok := r.Get("a")
	assert.False(t, ok)
	for _, id := range []string{"b", "c", "agent", "nyse"} {
		_, ok := r.Get(id)
		assert.True(t, ok, id)
	}
}

func TestDropOwner(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClockAt(t0)
	r := newRegistry(clock)
	end := t0.Add(time.Hour)
	r.Reconcile("trading", "trades", []Target{{ID: "a", Kind: model.KindTradeWindow, End: end}})
	r.Reconcile("", "market", []Target{{ID: "nyse", Kind: model.KindMarketClose, End: end}})

	assert.Equal(t, 0, r.DropOwner(""), "global countdowns survive")
	assert.Equal(t, 1, r.DropOwner("trading"))
	assert.Equal(t, 1, r.Len())
}

func TestViews_FilterAndOrder(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClockAt(t0)
	r := newRegistry(clock)
	r.Reconcile("trading", "trades", []Target{
		{ID: "late", Kind: model.KindTradeWindow, End: t0.Add(time.Hour)},
		{ID: "soon", Kind: model.KindTradeWindow, End: t0.Add(time.Minute)},
		{ID: "cycle", Kind: model.KindAgentCycle, End: t0.Add(time.Second)},
	})

	views := r.Views("trading", []string{model.KindTradeWindow})
	require.Len(t, views, 2)
	assert.Equal(t, "soon", views[0].ID)
	assert.Equal(t, "late", views[1].ID)

	assert.Len(t, r.Views("trading", nil), 3)
	assert.Empty(t, r.Views("", nil))
}
