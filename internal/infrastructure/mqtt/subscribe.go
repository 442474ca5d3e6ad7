package mqtt

import (
	"fmt"
	"maps"
	"slices"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// Subscribe registers handler for topic, which may hold + and #
// wildcards. The subscription is restored after every reconnect.
//
// The mirror uses it for {prefix}/command/+ when commands are enabled:
//
//	err := client.Subscribe(client.Topics().AllCommands(), client.QoS(), mir.HandleCommand)
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if err := c.check(topic, qos); err != nil {
		return err
	}
	if handler == nil {
		return fmt.Errorf("%w: %s: nil handler", ErrSubscribeFailed, topic)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.mu.Lock()
	c.subscriptions[topic] = subscription{qos: qos, handler: handler}
	c.mu.Unlock()

	if err := await(c.client.Subscribe(topic, qos, c.wrap(handler)), defaultPublishTimeout); err != nil {
		c.mu.Lock()
		delete(c.subscriptions, topic)
		c.mu.Unlock()
		return fmt.Errorf("%w: %s: %w", ErrSubscribeFailed, topic, err)
	}
	return nil
}

// Subscriptions returns the tracked topic patterns, sorted.
func (c *Client) Subscriptions() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Sorted(maps.Keys(c.subscriptions))
}

// restoreSubscriptions re-subscribes every tracked topic after a reconnect.
// Failures are logged; paho retries on the next reconnect.
func (c *Client) restoreSubscriptions() {
	c.mu.RLock()
	subs := maps.Clone(c.subscriptions)
	c.mu.RUnlock()

	for topic, sub := range subs {
		token := c.client.Subscribe(topic, sub.qos, c.wrap(sub.handler))
		go func() {
			if err := await(token, defaultPublishTimeout); err != nil {
				c.log().Warn("mqtt resubscribe failed", "topic", topic, "error", err)
			}
		}()
	}
}

// wrap adapts handler to paho, logging its errors and recovering panics so
// one bad command cannot take down the connection.
func (c *Client) wrap(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				c.log().Error("mqtt handler panic recovered", "topic", msg.Topic(), "panic", r)
			}
		}()
		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			c.log().Warn("mqtt handler failed", "topic", msg.Topic(), "error", err)
		}
	}
}
