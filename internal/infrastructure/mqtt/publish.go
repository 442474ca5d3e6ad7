package mqtt

import (
	"errors"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// maxPayloadSize caps one message. Device state payloads are a few hundred
// bytes.
const maxPayloadSize = 64 << 10

var errTimeout = errors.New("timed out")

// Publish sends one message and waits for the broker's acknowledgement.
//
// The mirror calls it from a single worker: retained state for
// {prefix}/state/{group}, plain messages for {prefix}/alert.
//
// Returns:
//   - error: ErrClosed, ErrInvalidTopic, ErrInvalidQoS, ErrNotConnected,
//     or ErrPublishFailed wrapping the cause (including an oversized payload)
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if err := c.check(topic, qos); err != nil {
		return err
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: %s: payload of %d bytes exceeds %d", ErrPublishFailed, topic, len(payload), maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	if err := await(c.client.Publish(topic, qos, retained, payload), defaultPublishTimeout); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPublishFailed, topic, err)
	}
	return nil
}

// check validates the arguments shared by Publish and Subscribe.
func (c *Client) check(topic string, qos byte) error {
	switch {
	case c.closed.Load():
		return ErrClosed
	case topic == "":
		return ErrInvalidTopic
	case qos > maxQoS:
		return ErrInvalidQoS
	}
	return nil
}

// await waits for a paho token, giving up after timeout.
func await(token pahomqtt.Token, timeout time.Duration) error {
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("%w after %v", errTimeout, timeout)
	}
	return token.Error()
}
