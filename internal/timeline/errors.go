package timeline

import (
	"errors"
	"fmt"
)

// FatalError is a programmer error detected during evaluation.
//
// Fatal errors include:
//   - Missing ledger: a node references a ledger that was never registered
//   - Missing clock: a timeline name has no clock
//   - Missing node: a handle or name resolves to nothing in the arena
//   - Type mismatch: a stored value is not of the expected kind
//   - Missing record: a sink targets a record that does not exist
//
// Fatal errors are raised with panic and never returned as values from
// evaluation. The engine recovers them at the frame boundary with Recover.
type FatalError struct {
	// Code identifies the error category.
	Code FatalErrorCode

	// Message is a human-readable description.
	Message string

	// Name identifies the offending ledger, timeline, node or record.
	Name string
}

// FatalErrorCode categorizes fatal errors.
type FatalErrorCode string

const (
	// ErrCodeMissingLedger indicates a ledger lookup failed.
	ErrCodeMissingLedger FatalErrorCode = "MISSING_LEDGER"

	// ErrCodeMissingClock indicates a timeline lookup failed.
	ErrCodeMissingClock FatalErrorCode = "MISSING_CLOCK"

	// ErrCodeMissingNode indicates a node handle or name did not resolve.
	ErrCodeMissingNode FatalErrorCode = "MISSING_NODE"

	// ErrCodeTypeMismatch indicates a value was not of the expected type.
	ErrCodeTypeMismatch FatalErrorCode = "TYPE_MISMATCH"

	// ErrCodeMissingRecord indicates a sink target record does not exist.
	ErrCodeMissingRecord FatalErrorCode = "MISSING_RECORD"
)

// Error implements the error interface.
func (e *FatalError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Name)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Fatal panics with a FatalError.
func Fatal(code FatalErrorCode, name, format string, args ...any) {
	panic(&FatalError{Code: code, Name: name, Message: fmt.Sprintf(format, args...)})
}

// IsFatal returns true if err is (or wraps) a FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

// IsFatalCode returns true if err is a FatalError with the given code.
func IsFatalCode(err error, code FatalErrorCode) bool {
	var fe *FatalError
	if errors.As(err, &fe) {
		return fe.Code == code
	}
	return false
}

// Recover converts a FatalError panic into an error stored in *errp.
// Other panics are re-raised. Use as:
//
//	defer timeline.Recover(&err)
func Recover(errp *error) {
	r := recover()
	if r == nil {
		return
	}
	if fe, ok := r.(*FatalError); ok {
		*errp = fe
		return
	}
	panic(r)
}
