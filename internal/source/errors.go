package source

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Sentinel errors for the fetch failure taxonomy. Every error returned by
// the client matches exactly one of them with errors.Is.
var (
	ErrNetwork          = errors.New("network failure")
	ErrTimeout          = errors.New("timeout")
	ErrMalformedPayload = errors.New("malformed payload")
)

// ErrorKind classifies a fetch failure.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindNetwork
	KindTimeout
	KindMalformed
)

func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindMalformed:
		return "malformed"
	default:
		return "none"
	}
}

// MarshalText renders the kind name in JSON snapshots.
func (k ErrorKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindTimeout:
		return ErrTimeout
	case KindMalformed:
		return ErrMalformedPayload
	default:
		return ErrNetwork
	}
}

// FetchError wraps the cause of a failed request with its classification.
type FetchError struct {
	Source string // source id or request path
	Kind   ErrorKind
	Status int // HTTP status for non-2xx responses
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s: HTTP %d: %v", e.Source, e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Source, e.Kind, e.Err)
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *FetchError) Unwrap() []error {
	return []error{e.Kind.sentinel(), e.Err}
}

// Classify maps any error to a kind. Unrecognised errors count as network
// failures.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	switch {
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, ErrMalformedPayload):
		return KindMalformed
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return KindTimeout
	}
	return KindNetwork
}

func wrap(source string, kind ErrorKind, err error) *FetchError {
	return &FetchError{Source: source, Kind: kind, Err: err}
}
