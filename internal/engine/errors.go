// File: internal/engine/errors.go
package engine

import (
	"errors"
)

var (
	// ErrConfigurationMissing marks a record whose subtask has no workflow.
	ErrConfigurationMissing = errors.New("subtask not found in the action configuration")
	// ErrInteractionFailure wraps any error raised while acting on the page.
	ErrInteractionFailure = errors.New("interaction failed")
	// ErrRunAborted ends a subtask run early. The batch continues.
	ErrRunAborted = errors.New("run aborted")

	errMissingInput      = errors.New("required input value is missing")
	errMissingLocator    = errors.New("locator value is missing")
	errUnsupportedAction = errors.New("unsupported action kind")
)

// Status is the result class of one action.
type Status int

const (
	Succeeded Status = iota + 1
	Skipped
	Failed
)

func (s Status) String() string {
	switch s {
	case Succeeded:
		return "succeeded"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is what executing one action produced. Skipped and Failed
// outcomes carry the reason in Err; neither stops the run.
type Outcome struct {
	Status Status
	// Changed is false when the action found the page already in the
	// requested state and did nothing.
	Changed bool
	Err     error
}

func succeeded(changed bool) Outcome { return Outcome{Status: Succeeded, Changed: changed} }
func skipped(err error) Outcome      { return Outcome{Status: Skipped, Err: err} }
func failed(err error) Outcome       { return Outcome{Status: Failed, Err: err} }
