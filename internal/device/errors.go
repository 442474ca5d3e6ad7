package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrInvalidEvent) {
//	    // drop the message
//	}
var (
	// ErrInvalidEvent is returned when a push payload does not match the
	// schema for its channel. Every decode failure wraps it.
	ErrInvalidEvent = errors.New("device: invalid event")

	// ErrUnknownCategory is returned for a category outside alert, light,
	// door and clothesline.
	ErrUnknownCategory = errors.New("device: unknown category")

	// ErrUnknownAction is returned when an action is not valid for its category.
	ErrUnknownAction = errors.New("device: unknown action")

	// ErrLightOutOfRange is returned when a light id is outside 1..LightCount.
	ErrLightOutOfRange = errors.New("device: light id out of range")

	// ErrInvalidTimestamp is returned when a timestamp cannot be parsed.
	ErrInvalidTimestamp = errors.New("device: invalid timestamp")

	// ErrStateUnknown is returned when state is read before any snapshot loaded.
	ErrStateUnknown = errors.New("device: state unknown")

	// ErrStoreClosed is returned when mutating a store after Close.
	ErrStoreClosed = errors.New("device: store closed")
)
