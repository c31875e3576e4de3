package worker

import (
	"errors"
	"fmt"
)

// Sentinel errors for worker calls.
var (
	// ErrUnexpectedStatus indicates the worker answered with a non-2xx status.
	ErrUnexpectedStatus = errors.New("unexpected status")

	// ErrMissingJobID indicates the submit response carried no job id.
	ErrMissingJobID = errors.New("missing job id")
)

// RequestError wraps a failed worker call with context.
type RequestError struct {
	// Op is the call that failed (e.g., "generate", "submit").
	Op string

	// Endpoint is the worker base address.
	Endpoint string

	// StatusCode is the HTTP status, zero when no response was received.
	StatusCode int

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("worker %s: %s: status %d: %v", e.Op, e.Endpoint, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("worker %s: %s: %v", e.Op, e.Endpoint, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *RequestError) Unwrap() error {
	return e.Err
}

// IsUnexpectedStatus returns true if the error is a non-2xx worker response.
func IsUnexpectedStatus(err error) bool {
	return errors.Is(err, ErrUnexpectedStatus)
}

// IsMissingJobID returns true if the submit response carried no job id.
func IsMissingJobID(err error) bool {
	return errors.Is(err, ErrMissingJobID)
}
