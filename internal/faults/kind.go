// internal/faults/kind.go
package faults

import (
	"context"
	"errors"
)

// Kind is the tagged classification of a fault. Retry routing is a decision over this
// value rather than over the concrete error type.
type Kind int

const (
	KindNone Kind = iota
	KindStale
	KindPrecondition
	KindNotFound
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindStale:
		return "stale"
	case KindPrecondition:
		return "precondition"
	case KindNotFound:
		return "not_found"
	default:
		return "other"
	}
}

// Classify maps an error onto its Kind. Context errors are always KindOther so that a
// cancelled call never looks like a retryable race.
func Classify(err error) Kind {
	if err == nil {
		return KindNone
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindOther
	}

	// Precondition is checked before NotFound: a selection miss unwraps to ErrNotFound
	// but a precondition never wraps a stale reference.
	switch {
	case errors.Is(err, ErrPrecondition):
		return KindPrecondition
	case errors.Is(err, ErrStale):
		return KindStale
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	}
	return KindOther
}

// IsStale reports whether err is classified as a stale reference.
func IsStale(err error) bool {
	return Classify(err) == KindStale
}
