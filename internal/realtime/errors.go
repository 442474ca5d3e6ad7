package realtime

import "errors"

var (
	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("realtime: already started")

	// ErrClosed is returned by Start after Close.
	ErrClosed = errors.New("realtime: service closed")

	// ErrInvalidConfig is returned by New for an unusable configuration.
	ErrInvalidConfig = errors.New("realtime: invalid configuration")
)
