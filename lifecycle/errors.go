package lifecycle

import (
	"errors"
	"fmt"
)

// ValidationError means the request itself is malformed (missing after-image,
// missing worker id on assignment, unknown category). Not retryable.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

// UnauthorizedError means the acting role or identity is not permitted to
// perform the requested transition. Not retryable.
type UnauthorizedError struct {
	Role   Role
	From   Status
	To     Status
	Reason string
}

func (e *UnauthorizedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s may not move issue from %s to %s: %s", e.Role, e.From, e.To, e.Reason)
	}
	return fmt.Sprintf("%s may not move issue from %s to %s", e.Role, e.From, e.To)
}

// InvalidTransitionError means the requested status is not reachable from the
// current one. The current and requested states are carried so callers can
// explain the rejection instead of just disabling a button.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %s to %s", e.From, e.To)
}

// NotFoundError means the issue id resolved to no record.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return "issue not found: " + e.ID
}

// TransientError wraps a store or network failure that is safe to retry with
// backoff. A lost compare-and-swap is also reported this way: the caller
// re-reads and retries.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return "transient failure: " + e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is safe to retry.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
