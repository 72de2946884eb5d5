// internal/faults/errors.go
package faults

import (
	"errors"
	"fmt"
)

// This file holds the typed errors raised by the synchronization engine. Consumers
// classify them with errors.As instead of matching on message text. Every error
// carries the logical label of the element it concerns so a failure can be read
// without knowing the locator behind it.

var (
	// ErrStale indicates a previously resolved element reference is no longer attached
	// to the live document, usually because an async update replaced it.
	ErrStale = errors.New("element reference is stale or detached from the document")

	// ErrNotFound indicates a locator resolved to nothing.
	ErrNotFound = errors.New("element not found")

	// ErrPrecondition is the root of all state/visibility precondition failures.
	ErrPrecondition = errors.New("element precondition violated")

	// ErrNoSuchOption is returned by drivers when a choice widget has no option
	// matching the requested criterion. It is a kind of ErrNotFound.
	ErrNoSuchOption = fmt.Errorf("%w: no such option", ErrNotFound)
)

// ActionNotCompleteError is raised when a completion wait ran out of time and the
// caller asked for a hard failure instead of a warning.
type ActionNotCompleteError struct {
	Label   string
	Timeout string
}

func (e *ActionNotCompleteError) Error() string {
	if e.Timeout == "" {
		return fmt.Sprintf("action on '%s' did not complete", e.Label)
	}
	return fmt.Sprintf("action on '%s' did not complete within %s", e.Label, e.Timeout)
}

// StaleReferenceExhaustedError is raised once the retry budget is spent and every
// failure seen was a stale reference.
type StaleReferenceExhaustedError struct {
	Label    string
	Locator  string
	Attempts int
	Err      error // last stale fault
}

func (e *StaleReferenceExhaustedError) Error() string {
	return fmt.Sprintf("could not complete action on '%s' (%s) after %d stale attempts", e.Label, e.Locator, e.Attempts)
}

func (e *StaleReferenceExhaustedError) Unwrap() error {
	return e.Err
}

// ScriptExecutionError reports that a marker insertion or removal script failed to run
// or reported failure. It is a setup error, not a synchronization timeout.
type ScriptExecutionError struct {
	Label  string
	Script string // short name of the script, e.g. "insert-marker"
	Err    error
}

func (e *ScriptExecutionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("script '%s' for '%s' reported failure", e.Script, e.Label)
	}
	return fmt.Sprintf("script '%s' for '%s' failed: %v", e.Script, e.Label, e.Err)
}

func (e *ScriptExecutionError) Unwrap() error {
	return e.Err
}

// ElementStateError is a precondition failure: the element is not enabled or not displayed.
type ElementStateError struct {
	Label string
	State string // "not enabled", "not displayed"
}

func (e *ElementStateError) Error() string {
	return fmt.Sprintf("element '%s' is %s", e.Label, e.State)
}

func (e *ElementStateError) Unwrap() error {
	return ErrPrecondition
}

// WrongInitialStateError is raised when a toggle already sits in the state the caller
// asserted it must not be in.
type WrongInitialStateError struct {
	Label   string
	Checked bool
}

func (e *WrongInitialStateError) Error() string {
	state := "unchecked"
	if e.Checked {
		state = "checked"
	}
	return fmt.Sprintf("toggle '%s' was already %s", e.Label, state)
}

func (e *WrongInitialStateError) Unwrap() error {
	return ErrPrecondition
}

// SelectionNotFoundError is raised when no option matches the requested criterion.
type SelectionNotFoundError struct {
	Label     string
	Mode      string
	Criterion string
	Reason    string
}

func (e *SelectionNotFoundError) Error() string {
	msg := fmt.Sprintf("no option in '%s' matches %s '%s'", e.Label, e.Mode, e.Criterion)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *SelectionNotFoundError) Unwrap() error {
	return ErrNotFound
}

// ElementActionError is the generic wrapper for faults that are neither stale
// references nor precondition failures. These are never retried.
type ElementActionError struct {
	Label   string
	Locator string
	Err     error
}

func (e *ElementActionError) Error() string {
	return fmt.Sprintf("could not locate or act on '%s' (%s): %v", e.Label, e.Locator, e.Err)
}

func (e *ElementActionError) Unwrap() error {
	return e.Err
}
