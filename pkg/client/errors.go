package client

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is returned when the server rejects the credentials.
	// Callers may refresh the token and retry.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrCancelled is returned when the request never produced a response:
	// transport failure or context cancellation.
	ErrCancelled = errors.New("cancelled")

	// ErrUnknown is returned for any other non-success status
	ErrUnknown = errors.New("unknown write error")
)

// maxErrorBody caps the response body kept on a WriteError
const maxErrorBody = 512

// WriteError describes a write the server answered with a non-success status.
// It matches ErrUnauthorized for 401 and ErrUnknown otherwise.
type WriteError struct {
	StatusCode int
	Body       string
}

func (e *WriteError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("write failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("write failed with status %d: %s", e.StatusCode, e.Body)
}

func (e *WriteError) Is(target error) bool {
	if e.StatusCode == 401 {
		return target == ErrUnauthorized
	}
	return target == ErrUnknown
}

// transportError wraps a failure that happened before any response
type transportError struct {
	err error
}

func (e *transportError) Error() string {
	return fmt.Sprintf("%s: %v", ErrCancelled, e.err)
}

func (e *transportError) Unwrap() []error {
	return []error{ErrCancelled, e.err}
}

// isEndpointFailure decides which write errors count against the circuit
// breaker. Rejected credentials say nothing about endpoint health.
func isEndpointFailure(err error) bool {
	return !errors.Is(err, ErrUnauthorized)
}
