// Package perr classifies pipeline errors into the five classes spec.md §7
// names, so a stage's handle_error can convert any error into a clean
// StageResult without the orchestrator ever seeing a raw panic or an
// unclassified error type escape a stage boundary.
package perr

import "errors"

// Kind is the closed set of error classes.
type Kind string

const (
	KindTransient   Kind = "transient"    // network timeout, 5xx; retried inside the port already
	KindDataQuality Kind = "data_quality" // missing columns, negative values, gaps
	KindPrecondition Kind = "precondition" // insufficient history, ambiguous indicator
	KindPolicyVeto  Kind = "policy_veto"  // circuit breaker, position limit, frequency throttle
	KindFatal       Kind = "fatal"        // no exchange connectivity, corrupted config
)

// Error wraps an underlying cause with a classification and the stage it
// occurred in, the structured error object spec.md §7 asks every failure
// payload to carry.
type Error struct {
	Kind  Kind
	Stage string
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Stage + ": " + e.Msg + ": " + e.Cause.Error()
	}
	return e.Stage + ": " + e.Msg
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds a classified error.
func New(kind Kind, stage, msg string, cause error) *Error {
	return &Error{Kind: kind, Stage: stage, Msg: msg, Cause: cause}
}

// Transient classifies a retried-out I/O failure.
func Transient(stage, msg string, cause error) *Error { return New(KindTransient, stage, msg, cause) }

// DataQuality classifies an uncorrectable OHLCV validation issue.
func DataQuality(stage, msg string, cause error) *Error {
	return New(KindDataQuality, stage, msg, cause)
}

// Precondition classifies an insufficient-history/ambiguous-state skip.
func Precondition(stage, msg string, cause error) *Error {
	return New(KindPrecondition, stage, msg, cause)
}

// PolicyVeto classifies a deliberate risk/policy block — never a bug.
func PolicyVeto(stage, msg string, cause error) *Error {
	return New(KindPolicyVeto, stage, msg, cause)
}

// Fatal classifies an unrecoverable condition.
func Fatal(stage, msg string, cause error) *Error { return New(KindFatal, stage, msg, cause) }

// KindOf extracts the Kind of err if it (or something it wraps) is an *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
