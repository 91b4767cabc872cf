package tui

import (
	"time"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/lipgloss"

	"github.com/tinytelemetry/opsdeck/internal/source"
)

// renderLatencyChart draws one bar per source: the mean of its recent fetch
// latencies in milliseconds.
func renderLatencyChart(states []source.State, width, height int) string {
	var measured []source.State
	for _, st := range states {
		if len(st.Latencies) > 0 {
			measured = append(measured, st)
		}
	}
	if len(measured) == 0 {
		return dimStyle.Render("No fetches yet")
	}

	barWidth := max(min((width-len(measured))/len(measured), 10), 1)

	bc := barchart.New(width, height,
		barchart.WithBarGap(1),
		barchart.WithBarWidth(barWidth),
	)

	for _, st := range measured {
		style := lipgloss.NewStyle().Foreground(ColorBlue).Background(ColorBlue)
		if st.Stale() {
			style = lipgloss.NewStyle().Foreground(ColorOrange).Background(ColorOrange)
		}
		bc.Push(barchart.BarData{
			Label: truncate(st.ID, barWidth),
			Values: []barchart.BarValue{
				{Name: st.ID, Value: meanMillis(st.Latencies), Style: style},
			},
		})
	}

	bc.Draw()
	return bc.View()
}

func meanMillis(ds []time.Duration) float64 {
	if len(ds) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range ds {
		total += d
	}
	return float64(total.Microseconds()) / float64(len(ds)) / 1000
}
