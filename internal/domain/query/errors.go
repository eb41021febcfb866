package query

import "fmt"

// ValidationError reports malformed or missing operation arguments.
// It is raised before any database call is made.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Reason
}

// ExecutionError reports that the database rejected or failed a statement.
// It wraps the driver error verbatim; executors never retry.
type ExecutionError struct {
	Op  string
	Err error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s execution failed: %v", e.Op, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
