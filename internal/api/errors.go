package api

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the sync client. ErrNoAuthToken and
// ErrUnauthorized require re-authentication and must not be blindly
// retried; everything else is transient and eligible for
// scheduler-level retry.
var (
	ErrNoAuthToken  = errors.New("no auth token")
	ErrUnauthorized = errors.New("unauthorized (token expired)")
	ErrTimeout      = errors.New("request timeout")
)

// HTTPError is a non-2xx response other than 401. Message carries the
// server-provided error message when the body contained one.
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("HTTP %d", e.Status)
}

// Transient reports whether the scheduler may retry after err. Auth
// failures are terminal for the retry loop until a fresh token lands.
func Transient(err error) bool {
	return !errors.Is(err, ErrNoAuthToken) && !errors.Is(err, ErrUnauthorized)
}
