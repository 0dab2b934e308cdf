package massflow

import (
	"errors"
	"fmt"
)

// SimulationError represents an error detected while simulating mass
// flow over a System.
//
// The taxonomy is small and fixed:
//   - STRUCTURAL: the system violates an internal invariant (a
//     connection referencing a technology absent from the system).
//     Indicates a synthesis bug, never bad caller input.
//   - PRECONDITION: the caller invoked an operation out of order, e.g.
//     scaling before any summary was computed.
//   - UNMATCHED_SOURCE: the input masses are missing an entry for a
//     source technology present in the system.
//   - CONSERVATION: a simulated draw violated mass conservation beyond
//     numerical tolerance. Like STRUCTURAL, this is an internal bug.
type SimulationError struct {
	// Code identifies the error category.
	Code SimulationErrorCode

	// Message is a human-readable description.
	Message string

	// SystemID identifies the affected system, if known.
	SystemID string

	// Technology identifies the technology involved, if any.
	Technology string

	// Substance identifies the substance involved, if any.
	Substance string

	// Details contains additional context.
	Details map[string]string
}

// SimulationErrorCode categorizes simulation errors.
type SimulationErrorCode string

const (
	// ErrCodeStructural indicates a broken system invariant.
	ErrCodeStructural SimulationErrorCode = "STRUCTURAL"

	// ErrCodePrecondition indicates an operation invoked before its
	// prerequisite was established.
	ErrCodePrecondition SimulationErrorCode = "PRECONDITION"

	// ErrCodeUnmatchedSource indicates input masses missing a source.
	ErrCodeUnmatchedSource SimulationErrorCode = "UNMATCHED_SOURCE"

	// ErrCodeConservation indicates a mass-conservation violation.
	ErrCodeConservation SimulationErrorCode = "CONSERVATION"
)

// Error implements the error interface.
func (e *SimulationError) Error() string {
	switch {
	case e.SystemID != "" && e.Technology != "":
		return fmt.Sprintf("%s: %s (system=%s, technology=%s)", e.Code, e.Message, e.SystemID, e.Technology)
	case e.SystemID != "":
		return fmt.Sprintf("%s: %s (system=%s)", e.Code, e.Message, e.SystemID)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// IsStructuralError reports whether err is a STRUCTURAL simulation
// error. Uses errors.As to handle wrapped errors.
func IsStructuralError(err error) bool {
	return hasCode(err, ErrCodeStructural)
}

// IsPreconditionError reports whether err is a PRECONDITION error.
func IsPreconditionError(err error) bool {
	return hasCode(err, ErrCodePrecondition)
}

// IsUnmatchedSourceError reports whether err is an UNMATCHED_SOURCE
// error.
func IsUnmatchedSourceError(err error) bool {
	return hasCode(err, ErrCodeUnmatchedSource)
}

// IsConservationError reports whether err is a CONSERVATION error.
func IsConservationError(err error) bool {
	return hasCode(err, ErrCodeConservation)
}

func hasCode(err error, code SimulationErrorCode) bool {
	var se *SimulationError
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// NewStructuralError wraps a broken-invariant report.
func NewStructuralError(systemID string, cause error) *SimulationError {
	return &SimulationError{
		Code:     ErrCodeStructural,
		Message:  cause.Error(),
		SystemID: systemID,
	}
}

// NewPreconditionError reports an out-of-order operation.
func NewPreconditionError(systemID, message string) *SimulationError {
	return &SimulationError{
		Code:     ErrCodePrecondition,
		Message:  message,
		SystemID: systemID,
	}
}

// NewUnmatchedSourceError reports input masses missing a source entry.
func NewUnmatchedSourceError(systemID, source string) *SimulationError {
	return &SimulationError{
		Code:       ErrCodeUnmatchedSource,
		Message:    "input masses missing an entry for source technology",
		SystemID:   systemID,
		Technology: source,
	}
}

// NewConservationError reports a conservation violation for a
// substance.
func NewConservationError(systemID, substance string, entered, recovered, lost float64) *SimulationError {
	return &SimulationError{
		Code:      ErrCodeConservation,
		Message:   "mass not conserved",
		SystemID:  systemID,
		Substance: substance,
		Details: map[string]string{
			"entered":   fmt.Sprintf("%g", entered),
			"recovered": fmt.Sprintf("%g", recovered),
			"lost":      fmt.Sprintf("%g", lost),
		},
	}
}
