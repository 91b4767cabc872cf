package countdown

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinytelemetry/opsdeck/internal/model"
	"github.com/tinytelemetry/opsdeck/internal/timestamp"
)

var tradesBinding = model.CountdownBinding{
	List:          "data.trades",
	IDField:       "id",
	EndField:      "expires_at",
	Kind:          model.KindTradeWindow,
	KindField:     "countdown_kind",
	CategoryField: "window",
	LabelField:    "symbol",
}

func TestExtract(t *testing.T) {
	t.Parallel()

	raw := []byte(`{"data":{"trades":[
		{"id": 17, "symbol": "AAPL", "window": "15m", "expires_at": "2026-03-02T14:15:00Z"},
		{"id": "b", "symbol": "MSFT", "expires_at": 1600000000},
		{"id": "c", "countdown_kind": "agent_cycle", "expires_at": 1600000000000},
		{"symbol": "no id", "expires_at": 1600000000},
		{"id": "bad-end", "expires_at": "soon"},
		{"id": "no-end"}
	]}}`)

	targets, skipped, err := Extract(raw, tradesBinding, timestamp.NewParser())
	require.NoError(t, err)
	assert.Equal(t, 3, skipped)
	require.Len(t, targets, 3)

	assert.Equal(t, "17", targets[0].ID)
	assert.Equal(t, model.KindTradeWindow, targets[0].Kind)
	assert.Equal(t, "15m", targets[0].Category)
	assert.Equal(t, "AAPL", targets[0].Label)
	assert.True(t, targets[0].End.Equal(time.Date(2026, 3, 2, 14, 15, 0, 0, time.UTC)))

	epoch := time.Date(2020, 9, 13, 12, 26, 40, 0, time.UTC)
	assert.True(t, targets[1].End.Equal(epoch))
	assert.Equal(t, "MSFT", targets[1].Label)
	assert.Equal(t, model.KindAgentCycle, targets[2].Kind)
	assert.True(t, targets[2].End.Equal(epoch))
}

func TestExtract_RootArray(t *testing.T) {
	t.Parallel()

	b := model.CountdownBinding{IDField: "name", EndField: "next_run", Kind: model.KindAgentCycle}
	targets, _, err := Extract([]byte(`[{"name":"scout","next_run":"2026-03-02T15:00:00Z"}]`), b, timestamp.NewParser())
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, "scout", targets[0].ID)
}

func TestExtract_Errors(t *testing.T) {
	t.Parallel()

	p := timestamp.NewParser()
	tests := []struct {
		name string
		raw  string
	}{
		{"invalid json", `{"data":`},
		{"missing list", `{"data":{}}`},
		{"not an array", `{"data":{"trades":{"id":1}}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Extract([]byte(tt.raw), tradesBinding, p)
			assert.Error(t, err)
		})
	}
}

func TestExtract_EmptyList(t *testing.T) {
	t.Parallel()

	targets, skipped, err := Extract([]byte(`{"data":{"trades":[]}}`), tradesBinding, timestamp.NewParser())
	require.NoError(t, err)
	assert.Empty(t, targets)
	assert.Zero(t, skipped)
}
