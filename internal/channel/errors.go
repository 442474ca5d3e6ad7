package channel

import "errors"

// Domain errors for push channels.
var (
	// ErrInvalidConfig is returned by NewSupervisor for an unusable Config.
	ErrInvalidConfig = errors.New("channel: invalid configuration")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("channel: supervisor already started")

	// ErrStopped is returned when Start is called after Close.
	ErrStopped = errors.New("channel: supervisor stopped")

	// ErrDialFailed wraps handshake and transport failures while connecting.
	ErrDialFailed = errors.New("channel: dial failed")

	// ErrClosed is returned by Receive once the connection has been closed
	// locally or by a clean close frame from the server.
	ErrClosed = errors.New("channel: connection closed")
)
