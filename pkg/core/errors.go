package core

import (
	"errors"
	"fmt"
)

// PermissionError indicates the acting user has no eligible path to
// visibility or is missing an action right. It is fatal to the request
// and never retried.
type PermissionError struct {
	DocType string
	Detail  string
}

func (e *PermissionError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("insufficient permission for %s: %s", e.DocType, e.Detail)
	}
	return fmt.Sprintf("insufficient permission for %s", e.DocType)
}

// NewPermissionError returns a PermissionError for the given doctype.
func NewPermissionError(doctype string) *PermissionError {
	return &PermissionError{DocType: doctype}
}

// DataError indicates malformed or disallowed filter/field/order/group
// input. It is raised before any statement is constructed.
type DataError struct {
	Msg string
}

func (e *DataError) Error() string { return e.Msg }

// NewDataError returns a DataError with a formatted message.
func NewDataError(format string, args ...any) *DataError {
	return &DataError{Msg: fmt.Sprintf(format, args...)}
}

// RetryError signals that a job body hit a transient condition and wants
// the executor to roll back and re-run the whole job.
type RetryError struct {
	Cause error
}

func (e *RetryError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("job requested retry: %v", e.Cause)
	}
	return "job requested retry"
}

func (e *RetryError) Unwrap() error { return e.Cause }

// Transient storage failures a session implementation should map driver
// errors onto. Both are retryable during job execution.
var (
	ErrDeadlocked    = errors.New("transaction deadlocked")
	ErrLockWaitTimed = errors.New("lock wait timeout exceeded")
)

// ErrTableMissing is returned by Schema.TableColumns when the backing
// table does not exist.
var ErrTableMissing = errors.New("table missing")

// IsTransient reports whether err should trigger a job retry: an explicit
// RetryError, a deadlock, or a lock-wait timeout.
func IsTransient(err error) bool {
	var r *RetryError
	if errors.As(err, &r) {
		return true
	}
	return errors.Is(err, ErrDeadlocked) || errors.Is(err, ErrLockWaitTimed)
}
