package mirror

import "errors"

var (
	// ErrInvalidCommand is returned for a command message that cannot be decoded.
	ErrInvalidCommand = errors.New("mirror: invalid command")

	// ErrCommandsDisabled is returned when a command arrives with no Toggler set.
	ErrCommandsDisabled = errors.New("mirror: commands disabled")
)
