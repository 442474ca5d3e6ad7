package mqtt

import "errors"

var (
	// ErrConnectionFailed means the broker could not be reached at start-up.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrNotConnected is returned while the broker connection is down.
	// paho keeps reconnecting in the background.
	ErrNotConnected = errors.New("mqtt: not connected")

	// ErrClosed is returned by every call after Close.
	ErrClosed = errors.New("mqtt: client closed")

	ErrPublishFailed   = errors.New("mqtt: publish failed")
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	// ErrInvalidTopic is returned for an empty topic.
	ErrInvalidTopic = errors.New("mqtt: empty topic")

	// ErrInvalidQoS is returned for a QoS above 2.
	ErrInvalidQoS = errors.New("mqtt: QoS must be 0, 1 or 2")
)
