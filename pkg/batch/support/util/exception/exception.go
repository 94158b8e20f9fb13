// Package exception provides the error types shared by the ingestion jobs.
// A BatchError records the module that failed and whether the failure may be
// skipped by a loop that tolerates partial results.
package exception

import (
	"errors"
	"fmt"
	"strings"
)

// ErrTypeCoercion marks a value that could not be converted to its declared column type.
var ErrTypeCoercion = errors.New("type coercion failed")

// ErrNoDataFetched is returned when every attempted download of a fetch failed.
var ErrNoDataFetched = errors.New("no data was successfully fetched")

// BatchError is a custom error type that occurs during batch processing.
type BatchError struct {
	// Module indicates the module where the error occurred (e.g., "reader", "writer", "fetcher").
	Module string
	// Message is a concise description of the error.
	Message string
	// OriginalErr is the wrapped original error.
	OriginalErr error
	// isSkippable indicates whether the current item may be dropped without failing the job.
	isSkippable bool
}

// NewBatchError creates a new BatchError instance.
//
// Parameters:
//
//	module: The module where the error occurred.
//	message: The error message.
//	originalErr: The original error to wrap. May be nil.
//	isSkippable: Whether this error is skippable.
func NewBatchError(module, message string, originalErr error, isSkippable bool) *BatchError {
	return &BatchError{
		Module:      module,
		Message:     message,
		OriginalErr: originalErr,
		isSkippable: isSkippable,
	}
}

// NewBatchErrorf creates a non-skippable BatchError using a format string.
// A trailing error argument is both formatted and wrapped.
func NewBatchErrorf(module, format string, a ...interface{}) *BatchError {
	var originalErr error
	if len(a) > 0 {
		if err, ok := a[len(a)-1].(error); ok {
			originalErr = err
		}
	}
	return &BatchError{
		Module:      module,
		Message:     fmt.Sprintf(format, a...),
		OriginalErr: originalErr,
	}
}

// NewCoercionError reports a value of column that could not be cast to the target type.
func NewCoercionError(module, column string, row int, target string, cause error) *BatchError {
	var wrapped error = ErrTypeCoercion
	if cause != nil {
		wrapped = errors.Join(ErrTypeCoercion, cause)
	}
	return NewBatchError(module, fmt.Sprintf("column %q row %d: cannot convert to %s", column, row, target), wrapped, false)
}

// Error implements the error interface.
func (e *BatchError) Error() string {
	if e.OriginalErr != nil && !strings.HasSuffix(e.Message, e.OriginalErr.Error()) {
		return fmt.Sprintf("[%s] %s: %v", e.Module, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("[%s] %s", e.Module, e.Message)
}

// Unwrap returns the original error for errors.Is and errors.As.
func (e *BatchError) Unwrap() error {
	return e.OriginalErr
}

// IsSkippable returns whether this error is skippable.
func (e *BatchError) IsSkippable() bool {
	return e.isSkippable
}

// IsSkippable reports whether err, or any BatchError it wraps, is marked skippable.
func IsSkippable(err error) bool {
	var be *BatchError
	if errors.As(err, &be) {
		return be.IsSkippable()
	}
	return false
}
