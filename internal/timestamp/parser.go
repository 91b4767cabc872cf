// Package timestamp decodes the absolute end timestamps carried by status
// payloads. Backends are inconsistent: some send RFC3339 strings, some send
// unix epochs in seconds, milliseconds, microseconds or nanoseconds, and
// JSON decoding turns every number into a float64.
package timestamp

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// layouts tried in order for string values.
var layouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05,000",
	"2006-01-02",
}

// Parser decodes timestamp values. Naive layouts are interpreted in Location.
type Parser struct {
	Location *time.Location
}

// NewParser returns a parser that reads naive timestamps as UTC.
func NewParser() *Parser {
	return &Parser{Location: time.UTC}
}

// ParseTimestamp decodes v into an absolute time. It accepts strings (any of
// the supported layouts or a numeric string), json.Number, float64, int and
// int64 epochs.
func (p *Parser) ParseTimestamp(v any) (time.Time, bool) {
	switch val := v.(type) {
	case string:
		return p.parseString(val)
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return parseUnixInt(n)
		}
		f, err := val.Float64()
		if err != nil {
			return time.Time{}, false
		}
		return parseUnixTimestamp(f)
	case float64:
		return parseUnixTimestamp(val)
	case float32:
		return parseUnixTimestamp(float64(val))
	case int:
		return parseUnixInt(int64(val))
	case int64:
		return parseUnixInt(val)
	case time.Time:
		return val, !val.IsZero()
	}
	return time.Time{}, false
}

func (p *Parser) parseString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return parseUnixInt(n)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return parseUnixTimestamp(f)
	}

	loc := p.Location
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range layouts {
		if ts, err := time.ParseInLocation(layout, s, loc); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// parseUnixInt is parseUnixTimestamp for integer epochs, exact to the
// nanosecond.
func parseUnixInt(n int64) (time.Time, bool) {
	switch {
	case n <= 0:
		return time.Time{}, false
	case n < 1e11:
		return time.Unix(n, 0).UTC(), true
	case n < 1e14:
		return time.UnixMilli(n).UTC(), true
	case n < 1e17:
		return time.UnixMicro(n).UTC(), true
	default:
		return time.Unix(0, n).UTC(), true
	}
}

// parseUnixTimestamp picks the epoch unit from the magnitude of v.
// Anything below 1e11 is seconds (good until year 5138), below 1e14
// milliseconds, below 1e17 microseconds, otherwise nanoseconds.
func parseUnixTimestamp(v float64) (time.Time, bool) {
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return time.Time{}, false
	}

	var secs float64
	switch {
	case v < 1e11:
		secs = v
	case v < 1e14:
		secs = v / 1e3
	case v < 1e17:
		secs = v / 1e6
	default:
		secs = v / 1e9
	}
	sec, frac := math.Modf(secs)
	return time.Unix(int64(sec), int64(math.Round(frac*1e9))).UTC(), true
}
