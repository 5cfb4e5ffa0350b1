// Package fault classifies domain errors into the request-scoped kinds the
// transport layer maps to responses. Every kind is safe to retry after the
// caller corrects its input or re-fetches state.
package fault

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Kind enumerates the classes of recoverable domain errors.
type Kind int

const (
	// KindUnknown marks errors that carry no classification, typically
	// infrastructure failures surfaced as service-unavailable.
	KindUnknown Kind = iota
	// KindValidation marks malformed or missing input.
	KindValidation
	// KindNotFound marks a referenced entity that does not exist.
	KindNotFound
	// KindState marks an illegal workflow transition.
	KindState
	// KindConflict marks a concurrency conflict: double-booked table,
	// merge race, usage-limit race.
	KindConflict
	// KindNotApplicable marks a discount that fails an eligibility check.
	KindNotApplicable
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindState:
		return "state"
	case KindConflict:
		return "conflict"
	case KindNotApplicable:
		return "not_applicable"
	default:
		return "unknown"
	}
}

// Error is a classified domain error.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a classified error with a formatted message.
func New(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies an existing error, preserving it for errors.Is/As.
func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Validation is shorthand for New(KindValidation, ...).
func Validation(format string, args ...any) error {
	return New(KindValidation, format, args...)
}

// NotFound is shorthand for New(KindNotFound, ...).
func NotFound(format string, args ...any) error {
	return New(KindNotFound, format, args...)
}

// State is shorthand for New(KindState, ...).
func State(format string, args ...any) error {
	return New(KindState, format, args...)
}

// Conflict is shorthand for New(KindConflict, ...).
func Conflict(format string, args ...any) error {
	return New(KindConflict, format, args...)
}

// NotApplicable is shorthand for New(KindNotApplicable, ...).
func NotApplicable(format string, args ...any) error {
	return New(KindNotApplicable, format, args...)
}

// KindOf extracts the classification of err, or KindUnknown when err carries
// none anywhere in its chain.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

// IsKind reports whether err is classified as kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
