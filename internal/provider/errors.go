package provider

import (
	"errors"
	"fmt"
)

// ErrAuthRequired indicates missing or expired hosting-service credentials.
// Surfaced to the user with a remediation hint.
var ErrAuthRequired = errors.New("hosting service authentication required")

// ErrNotFound indicates an issue, PR, or repository that is absent or
// inaccessible.
var ErrNotFound = errors.New("not found")

// ErrUnsupported is returned when a provider doesn't support an operation.
var ErrUnsupported = errors.New("operation not supported by this provider")

// ExternalError wraps a failed external call. Transient failures (timeout,
// rate limit, 5xx) are retried by the caller; permanent ones propagate.
type ExternalError struct {
	Op        string
	Transient bool
	Err       error
}

func (e *ExternalError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("%s: %s external call failed: %v", e.Op, kind, e.Err)
}

func (e *ExternalError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a transient external failure.
func IsTransient(err error) bool {
	var ee *ExternalError
	return errors.As(err, &ee) && ee.Transient
}
