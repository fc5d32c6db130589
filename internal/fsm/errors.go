package fsm

import (
	"errors"
	"fmt"
)

// BuildError represents an error detected while building or finalizing a
// state machine.
//
// Build errors include:
//   - Construction after finalize: any mutating call once Finalize has run
//   - Empty machine: Finalize on a machine with zero registered states
//
// BuildError includes structured fields for diagnostics.
type BuildError struct {
	// Code identifies the error category.
	Code BuildErrorCode

	// Message is a human-readable description.
	Message string

	// Op names the API call that failed (for example "Act").
	Op string

	// State is the display name of the state involved, if any.
	State string
}

// BuildErrorCode categorizes build errors.
type BuildErrorCode string

const (
	// ErrCodeFinalized indicates a mutating call after Finalize.
	ErrCodeFinalized BuildErrorCode = "CONSTRUCT_AFTER_FINALIZE"

	// ErrCodeEmptyMachine indicates Finalize ran with zero states.
	ErrCodeEmptyMachine BuildErrorCode = "EMPTY_MACHINE"
)

// Error implements the error interface.
func (e *BuildError) Error() string {
	if e.Op != "" && e.State != "" {
		return fmt.Sprintf("%s: %s (op=%s, state=%s)", e.Code, e.Message, e.Op, e.State)
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s (op=%s)", e.Code, e.Message, e.Op)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsFinalizedError reports whether err is a construction-after-finalize
// error. Uses errors.As to handle wrapped errors.
func IsFinalizedError(err error) bool {
	var be *BuildError
	if errors.As(err, &be) {
		return be.Code == ErrCodeFinalized
	}
	return false
}

// IsEmptyMachineError reports whether err is an empty-machine error.
func IsEmptyMachineError(err error) bool {
	var be *BuildError
	if errors.As(err, &be) {
		return be.Code == ErrCodeEmptyMachine
	}
	return false
}

func newFinalizedError(op string, state State) *BuildError {
	e := &BuildError{
		Code:    ErrCodeFinalized,
		Message: "machine is finalized and can no longer be modified",
		Op:      op,
	}
	if state != nil {
		e.State = StateName(state)
	}
	return e
}
