package mqtt

import (
	"fmt"
	"sync"
	"sync/atomic"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/homytech-sync/internal/infrastructure/config"
)

// Logger is the logging interface used by the client.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Error(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// MessageHandler handles one inbound message. It runs on a paho goroutine
// and should return quickly; a returned error is logged.
type MessageHandler func(topic string, payload []byte) error

// Client is the mirror's broker connection.
//
// It announces itself on {prefix}/status (online, or offline through the
// Last Will), restores subscriptions after every reconnect and then runs
// the OnConnect callback so the mirror can republish its retained state.
// Close is idempotent; every call after it returns ErrClosed.
type Client struct {
	client pahomqtt.Client
	cfg    config.MQTTConfig
	topics Topics

	connected atomic.Bool
	closed    atomic.Bool
	closeOnce sync.Once

	mu            sync.RWMutex
	subscriptions map[string]subscription
	onConnect     func()
	onDisconnect  func(err error)
	logger        Logger
}

type subscription struct {
	qos     byte
	handler MessageHandler
}

// Connect dials the broker in cfg and waits up to ten seconds for the
// first connection.
//
// Returns:
//   - *Client: Connected client
//   - error: ErrConnectionFailed if the broker cannot be reached in time
func Connect(cfg config.MQTTConfig) (*Client, error) {
	c := &Client{
		cfg:           cfg,
		topics:        NewTopics(cfg.TopicPrefix),
		subscriptions: make(map[string]subscription),
		logger:        noopLogger{},
	}

	opts := buildClientOptions(cfg)
	configureLWT(opts, c.topics, cfg.Broker.ClientID)
	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.handleConnect() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.handleDisconnect(err) })

	c.client = pahomqtt.NewClient(opts)
	if err := await(c.client.Connect(), defaultConnectTimeout); err != nil {
		c.client.Disconnect(0)
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectionFailed, opts.Servers[0], err)
	}
	// The OnConnect handler runs asynchronously; don't wait for it.
	c.connected.Store(true)
	return c, nil
}

// Topics returns the topic builders for this client's prefix.
func (c *Client) Topics() Topics {
	return c.topics
}

// QoS returns the configured QoS.
func (c *Client) QoS() byte {
	return byte(c.cfg.QoS)
}

// IsConnected reports whether the broker connection is up.
func (c *Client) IsConnected() bool {
	return !c.closed.Load() && c.connected.Load() && c.client != nil && c.client.IsConnected()
}

// SetOnConnect sets a callback run after every reconnect, once
// subscriptions have been restored.
func (c *Client) SetOnConnect(callback func()) {
	c.mu.Lock()
	c.onConnect = callback
	c.mu.Unlock()
}

// SetOnDisconnect sets a callback run when the connection is lost.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.mu.Lock()
	c.onDisconnect = callback
	c.mu.Unlock()
}

// SetLogger sets the logger for connection and handler problems.
func (c *Client) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	c.mu.Lock()
	c.logger = logger
	c.mu.Unlock()
}

func (c *Client) log() Logger {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.logger == nil {
		return noopLogger{}
	}
	return c.logger
}

func (c *Client) handleConnect() {
	if c.closed.Load() {
		return
	}
	c.connected.Store(true)
	c.restoreSubscriptions()
	c.client.Publish(c.topics.Status(), c.QoS(), true, statusPayload("online", c.cfg.Broker.ClientID, ""))

	c.mu.RLock()
	callback := c.onConnect
	c.mu.RUnlock()
	if callback != nil {
		callback()
	}
}

func (c *Client) handleDisconnect(err error) {
	c.connected.Store(false)
	c.log().Warn("mqtt connection lost", "error", err)

	c.mu.RLock()
	callback := c.onDisconnect
	c.mu.RUnlock()
	if callback != nil {
		callback(err)
	}
}

// Close publishes an offline status and disconnects. Later calls do nothing.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		wasConnected := c.IsConnected()
		c.closed.Store(true)
		c.connected.Store(false)
		if c.client == nil {
			return
		}
		if wasConnected {
			token := c.client.Publish(c.topics.Status(), c.QoS(), true,
				statusPayload("offline", c.cfg.Broker.ClientID, "graceful_shutdown"))
			token.WaitTimeout(defaultPublishTimeout)
		}
		c.client.Disconnect(defaultDisconnectQuiesce)
	})
	return nil
}
