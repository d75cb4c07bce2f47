package engine

import (
	"errors"
	"fmt"
)

// Phase identifies the step of a frame that failed.
type Phase string

const (
	PhaseCommands Phase = "commands"
	PhaseSystems  Phase = "systems"
	PhaseSinks    Phase = "sinks"
	PhaseRecord   Phase = "record"
)

// FrameError reports a failed frame.
//
// Frame errors include:
//   - Fatal lookups recovered from a phase (missing ledger, clock, node, record)
//   - A system returning an error
//   - The recorder failing to persist the frame
type FrameError struct {
	// Frame is the index of the failed frame.
	Frame uint64

	// Phase is the step that failed.
	Phase Phase

	// Name identifies the system, sink or command involved, if any.
	Name string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *FrameError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("frame %d %s (%s): %v", e.Frame, e.Phase, e.Name, e.Err)
	}
	return fmt.Sprintf("frame %d %s: %v", e.Frame, e.Phase, e.Err)
}

// Unwrap returns the underlying cause.
func (e *FrameError) Unwrap() error {
	return e.Err
}

// IsFrameError returns true if err is (or wraps) a FrameError.
func IsFrameError(err error) bool {
	var fe *FrameError
	return errors.As(err, &fe)
}

// FailedPhase returns the phase of a FrameError, or "" if err is not one.
func FailedPhase(err error) Phase {
	var fe *FrameError
	if errors.As(err, &fe) {
		return fe.Phase
	}
	return ""
}
