package engine

import (
	"errors"
	"fmt"

	"github.com/mue864/solitude-sub000/internal/session"
)

// FlowNotFoundError is returned by StartFlow for a flow ID absent from
// the catalog. Rejected before any state mutation.
type FlowNotFoundError struct {
	FlowID string
}

// Error implements the error interface.
func (e *FlowNotFoundError) Error() string {
	return fmt.Sprintf("flow %q not found in catalog", e.FlowID)
}

// IsFlowNotFound reports whether err is a FlowNotFoundError.
// Uses errors.As to handle wrapped errors.
func IsFlowNotFound(err error) bool {
	var fe *FlowNotFoundError
	return errors.As(err, &fe)
}

// UnknownSessionTypeError is returned by Start for a session type
// absent from the catalog. Rejected before any state mutation.
type UnknownSessionTypeError struct {
	SessionType string
}

// Error implements the error interface.
func (e *UnknownSessionTypeError) Error() string {
	return fmt.Sprintf("session type %q not found in catalog", e.SessionType)
}

// IsUnknownSessionType reports whether err is an UnknownSessionTypeError.
func IsUnknownSessionType(err error) bool {
	var ue *UnknownSessionTypeError
	return errors.As(err, &ue)
}

// InvalidTransitionError is returned when a command does not apply to
// the current status, e.g. Resume while idle. The command never
// corrupts engine state; the one silent exception is Start while
// already running, which is an idempotent no-op by contract.
type InvalidTransitionError struct {
	Command string
	Status  session.Status
}

// Error implements the error interface.
func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s while %s", e.Command, e.Status)
}

// IsInvalidTransition reports whether err is an InvalidTransitionError.
func IsInvalidTransition(err error) bool {
	var te *InvalidTransitionError
	return errors.As(err, &te)
}

// InvalidRecordError is returned when a history record fails the
// data-quality guard: non-positive duration on a completed record, a
// timestamp in the future, or an out-of-range focus quality. The record
// is rejected and logged, never stored, and the streak is unaffected.
type InvalidRecordError struct {
	Reason    string
	SessionID string
}

// Error implements the error interface.
func (e *InvalidRecordError) Error() string {
	if e.SessionID != "" {
		return fmt.Sprintf("invalid session record: %s (session=%s)", e.Reason, e.SessionID)
	}
	return fmt.Sprintf("invalid session record: %s", e.Reason)
}

// IsInvalidRecord reports whether err is an InvalidRecordError.
func IsInvalidRecord(err error) bool {
	var re *InvalidRecordError
	return errors.As(err, &re)
}
