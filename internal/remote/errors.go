package remote

import (
	"errors"
	"fmt"
)

// Domain errors for backend calls.
var (
	// ErrRequestFailed means no HTTP response was received.
	ErrRequestFailed = errors.New("remote: request failed")

	// ErrUnexpectedStatus means the backend answered with a non-2xx status.
	// The concrete error is a *StatusError.
	ErrUnexpectedStatus = errors.New("remote: unexpected status")

	// ErrInvalidResponse means a 2xx body could not be decoded.
	ErrInvalidResponse = errors.New("remote: invalid response")

	// ErrNoToken means login returned no access token.
	ErrNoToken = errors.New("remote: no access token in login response")
)

// StatusError carries a non-2xx backend answer.
type StatusError struct {
	Method string
	Path   string
	Status int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %s %s: %d", ErrUnexpectedStatus, e.Method, e.Path, e.Status)
	}
	return fmt.Sprintf("%s: %s %s: %d: %s", ErrUnexpectedStatus, e.Method, e.Path, e.Status, e.Detail)
}

// Unwrap makes errors.Is(err, ErrUnexpectedStatus) hold.
func (e *StatusError) Unwrap() error {
	return ErrUnexpectedStatus
}
