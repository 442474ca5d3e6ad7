package session

import "errors"

// Domain errors for the session.
var (
	// ErrTokenMalformed means the bearer token is not a parseable JWT.
	ErrTokenMalformed = errors.New("session: malformed token")

	// ErrNoCredentials means Login was called without email and password.
	ErrNoCredentials = errors.New("session: no credentials configured")

	// ErrLoginFailed wraps a failed login exchange.
	ErrLoginFailed = errors.New("session: login failed")
)
