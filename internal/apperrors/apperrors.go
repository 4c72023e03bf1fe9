package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies an engine error so transport layers can map it to a
// response without string matching.
type Kind int

const (
	KindUnknown Kind = iota
	// KindValidation covers bad input: invalid date range, non-positive
	// winner count, forbidden field edits for the current status.
	KindValidation
	// KindConflict marks a lost CAS race: the status changed under the
	// caller. Benign for the sweep, surfaced to manual operator actions.
	KindConflict
	KindNotFound
	// KindIllegalTransition covers operations undefined for the current
	// status, e.g. delete on a non-cancelled cycle.
	KindIllegalTransition
	// KindDependency marks an external collaborator failure (points ledger,
	// persistence) during completion; the claim has been rolled back and a
	// later sweep may retry.
	KindDependency
)

// Error carries a kind alongside the message and an optional wrapped cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Validation creates a validation error
func Validation(format string, args ...interface{}) error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

// Conflict creates a conflict error
func Conflict(format string, args ...interface{}) error {
	return &Error{Kind: KindConflict, Msg: fmt.Sprintf(format, args...)}
}

// NotFound creates a not-found error
func NotFound(format string, args ...interface{}) error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

// IllegalTransition creates an illegal-transition error
func IllegalTransition(format string, args ...interface{}) error {
	return &Error{Kind: KindIllegalTransition, Msg: fmt.Sprintf(format, args...)}
}

// Dependency wraps a collaborator failure
func Dependency(err error, format string, args ...interface{}) error {
	return &Error{Kind: KindDependency, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the kind from an error chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
