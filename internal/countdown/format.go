package countdown

import (
	"fmt"
	"strings"
	"time"

	"github.com/tinytelemetry/opsdeck/internal/model"
)

// Bucket is the urgency class of a countdown.
type Bucket int

const (
	BucketNormal Bucket = iota
	BucketWarning
	BucketUrgent
	BucketTerminal
)

func (b Bucket) String() string {
	switch b {
	case BucketWarning:
		return "warning"
	case BucketUrgent:
		return "urgent"
	case BucketTerminal:
		return "terminal"
	default:
		return "normal"
	}
}

// MarshalText renders the bucket name in JSON snapshots.
func (b Bucket) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// FormatRemaining renders d at the two most significant units: "45s",
// "2m 05s", "1h 02m", "3d 04h". Partial seconds round up so the display
// only reaches "0s" when the deadline has actually passed.
func FormatRemaining(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	secs := int64((d + time.Second - 1) / time.Second)

	switch {
	case secs < 60:
		return fmt.Sprintf("%ds", secs)
	case secs < 3600:
		return fmt.Sprintf("%dm %02ds", secs/60, secs%60)
	case secs < 86400:
		return fmt.Sprintf("%dh %02dm", secs/3600, (secs%3600)/60)
	default:
		return fmt.Sprintf("%dd %02dh", secs/86400, (secs%86400)/3600)
	}
}

// BucketFor classifies remaining against th.
func BucketFor(remaining time.Duration, th model.Thresholds) Bucket {
	switch {
	case remaining <= 0:
		return BucketTerminal
	case remaining < th.Urgent:
		return BucketUrgent
	case remaining < th.Warning:
		return BucketWarning
	default:
		return BucketNormal
	}
}

// Progress returns 1 - remaining/total clamped to [0, 1]. An unknown total
// reports 0 until the deadline passes.
func Progress(remaining, total time.Duration) float64 {
	if remaining <= 0 {
		return 1
	}
	if total <= 0 {
		return 0
	}
	p := 1 - float64(remaining)/float64(total)
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	}
	return p
}

// Kinds resolves per-kind labels and totals.
type Kinds map[string]model.KindSpec

// Total returns the total duration for kind and category. Categories are
// matched case-insensitively; unknown categories fall back to the kind's
// default total.
func (k Kinds) Total(kind, category string) time.Duration {
	spec, ok := k[kind]
	if !ok {
		return 0
	}
	if category != "" {
		if d, ok := spec.Totals[strings.ToLower(category)]; ok {
			return d
		}
	}
	return spec.DefaultTotal
}

// TerminalLabel is what a finished countdown of kind shows instead of a time.
func (k Kinds) TerminalLabel(kind string) string {
	if spec, ok := k[kind]; ok && spec.TerminalLabel != "" {
		return spec.TerminalLabel
	}
	return "Done"
}

// Suffix follows the remaining time, e.g. "left" in "2m 05s left".
func (k Kinds) Suffix(kind string) string {
	return k[kind].Suffix
}
