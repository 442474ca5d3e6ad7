package control

import "errors"

// Domain errors for device commands.
var (
	// ErrCommandFailed wraps a rejected or undelivered command. No local
	// state is changed and the command is not retried.
	ErrCommandFailed = errors.New("control: command failed")
)
