package timestamp

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseTimestamp_Strings(t *testing.T) {
	p := NewParser()

	tests := []struct {
		name  string
		input string
	}{
		{"RFC3339", "2024-01-15T10:30:45Z"},
		{"RFC3339Nano", "2024-01-15T10:30:45.123456789Z"},
		{"RFC3339 offset", "2024-01-15T10:30:45+05:00"},
		{"naive T", "2024-01-15T10:30:45"},
		{"space separated", "2024-01-15 10:30:45"},
		{"millis", "2024-01-15 10:30:45.123"},
		{"comma decimal", "2024-01-15 10:30:45,123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, ok := p.ParseTimestamp(tt.input)
			if !ok {
				t.Fatalf("ParseTimestamp(%q) did not parse", tt.input)
			}
			if ts.Year() != 2024 || ts.Month() != time.January || ts.Day() != 15 {
				t.Errorf("ParseTimestamp(%q) date = %v, want 2024-01-15", tt.input, ts)
			}
		})
	}
}

func TestParseTimestamp_OffsetPreserved(t *testing.T) {
	p := NewParser()

	ts, ok := p.ParseTimestamp("2024-01-15T10:30:45+05:00")
	if !ok {
		t.Fatal("parse failed")
	}
	want := time.Date(2024, 1, 15, 5, 30, 45, 0, time.UTC)
	if !ts.Equal(want) {
		t.Errorf("ts = %v, want %v", ts, want)
	}
}

func TestParseTimestamp_EpochUnits(t *testing.T) {
	p := NewParser()
	want := time.Date(2020, 9, 13, 12, 26, 40, 0, time.UTC) // 1600000000

	tests := []struct {
		name  string
		input any
	}{
		{"seconds float", float64(1600000000)},
		{"seconds int64", int64(1600000000)},
		{"seconds int", 1600000000},
		{"millis", float64(1600000000000)},
		{"micros", float64(1600000000000000)},
		{"nanos", float64(1600000000000000000)},
		{"json number", json.Number("1600000000")},
		{"numeric string", "1600000000000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, ok := p.ParseTimestamp(tt.input)
			if !ok {
				t.Fatalf("ParseTimestamp(%v) failed", tt.input)
			}
			if d := ts.Sub(want); d > time.Microsecond || d < -time.Microsecond {
				t.Errorf("ParseTimestamp(%v) = %v, want %v", tt.input, ts, want)
			}
		})
	}
}

func TestParseTimestamp_FractionalSeconds(t *testing.T) {
	p := NewParser()

	ts, ok := p.ParseTimestamp(1600000000.5)
	if !ok {
		t.Fatal("parse failed")
	}
	if got := ts.Nanosecond(); got != 500000000 {
		t.Errorf("nanos = %d, want 500000000", got)
	}
}

func TestParseTimestamp_IntegerEpochsExact(t *testing.T) {
	p := NewParser()
	want := time.Date(2020, 9, 13, 12, 26, 40, 123456789, time.UTC)

	for _, v := range []any{
		json.Number("1600000000123456789"),
		"1600000000123456789",
		int64(1600000000123456789),
	} {
		ts, ok := p.ParseTimestamp(v)
		if !ok {
			t.Fatalf("ParseTimestamp(%v) failed", v)
		}
		if !ts.Equal(want) {
			t.Errorf("ParseTimestamp(%v) = %v, want %v", v, ts, want)
		}
	}

	ts, ok := p.ParseTimestamp(json.Number("1600000000123456"))
	if !ok || !ts.Equal(want.Truncate(time.Microsecond)) {
		t.Errorf("micros = %v, want %v", ts, want.Truncate(time.Microsecond))
	}
}

func TestParseTimestamp_Rejects(t *testing.T) {
	p := NewParser()

	for _, v := range []any{"", "   ", "not a time", float64(0), float64(-5), nil, true, map[string]any{}} {
		if _, ok := p.ParseTimestamp(v); ok {
			t.Errorf("ParseTimestamp(%v) should fail", v)
		}
	}
}
