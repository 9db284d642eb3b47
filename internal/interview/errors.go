package interview

import "fmt"

// CompletionError reports a failed completion exchange. The transcript is
// left untouched; a retry is a user-initiated resubmission.
type CompletionError struct {
	Err error
}

func (e *CompletionError) Error() string { return fmt.Sprintf("completion failed: %v", e.Err) }
func (e *CompletionError) Unwrap() error { return e.Err }

// PersistenceError reports a rejected or failed save. Local saved flags are
// never advanced speculatively; a retry is a new save invocation.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("persistence failed: %v", e.Err) }
func (e *PersistenceError) Unwrap() error { return e.Err }

// PreconditionError reports an operation invoked against invalid input or
// state. Fatal to that operation, no partial mutation.
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string { return "precondition failed: " + e.Reason }
