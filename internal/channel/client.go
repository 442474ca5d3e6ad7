package channel

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/homytech-sync/internal/device"
)

// controlWait bounds close and pong frames written by the client.
const controlWait = time.Second

// Handler receives each validated event of one channel, in receipt order.
type Handler func(ev device.Event)

// Dialer opens websocket connections. *websocket.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, urlStr string, requestHeader http.Header) (*websocket.Conn, *http.Response, error)
}

// Logger is the logging interface used by this package.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Observer is notified of channel lifecycle and traffic. Metrics hang off it.
type Observer interface {
	ChannelOpened(category device.Category)
	ChannelClosed(category device.Category, attempt int, delay time.Duration)
	EventReceived(category device.Category)
	EventDropped(category device.Category, err error)
}

type noopObserver struct{}

func (noopObserver) ChannelOpened(device.Category)                     {}
func (noopObserver) ChannelClosed(device.Category, int, time.Duration) {}
func (noopObserver) EventReceived(device.Category)                     {}
func (noopObserver) EventDropped(device.Category, error)               {}

// Options tune a single connection.
type Options struct {
	Header         http.Header
	MaxMessageSize int64
	ReadTimeout    time.Duration
	Logger         Logger
	Observer       Observer
}

// URL returns the push endpoint for category under base (ws:// or wss://).
func URL(base string, category device.Category) string {
	return strings.TrimRight(base, "/") + "/ws/" + string(category)
}

// Client is one live push connection for a single category.
//
// A Client is never reused: once Receive returns or Close is called the
// connection is gone and a new Client must be dialled.
type Client struct {
	category    device.Category
	url         string
	conn        *websocket.Conn
	readTimeout time.Duration
	logger      Logger
	observer    Observer

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// Dial opens a push connection for category.
//
// Parameters:
//   - ctx: Bounds the handshake only
//   - dialer: Connection factory; nil uses websocket.DefaultDialer
//   - category: Device category the messages belong to
//   - url: Full channel URL, see URL
//   - opts: Per-connection options
//
// Returns:
//   - *Client: Open connection, ready for Receive
//   - error: ErrDialFailed wrapping the cause
func Dial(ctx context.Context, dialer Dialer, category device.Category, url string, opts Options) (*Client, error) {
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	conn, resp, err := dialer.DialContext(ctx, url, opts.Header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close() //nolint:errcheck // handshake body is not used
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w: %s (status %d): %w", ErrDialFailed, url, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrDialFailed, url, err)
	}

	c := &Client{
		category:    category,
		url:         url,
		conn:        conn,
		readTimeout: opts.ReadTimeout,
		logger:      opts.Logger,
		observer:    opts.Observer,
	}
	if c.logger == nil {
		c.logger = noopLogger{}
	}
	if c.observer == nil {
		c.observer = noopObserver{}
	}
	if opts.MaxMessageSize > 0 {
		conn.SetReadLimit(opts.MaxMessageSize)
	}
	if c.readTimeout > 0 {
		conn.SetPingHandler(c.handlePing)
	}

	return c, nil
}

// Category returns the device category of this connection.
func (c *Client) Category() device.Category {
	return c.category
}

// Receive reads messages until the connection ends and calls handler once
// per valid event, synchronously and in order.
//
// Malformed or schema-invalid messages are logged, reported to the
// Observer and skipped; the connection stays open. A panicking handler is
// recovered and logged.
//
// Returns:
//   - error: ErrClosed after a local Close or clean close frame, otherwise
//     the read error that ended the connection
func (c *Client) Receive(handler Handler) error {
	for {
		if c.readTimeout > 0 {
			_ = c.conn.SetReadDeadline(time.Now().Add(c.readTimeout))
		}

		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if c.closed.Load() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return fmt.Errorf("%w: %w", ErrClosed, err)
			}
			c.logger.Warn("channel read failed", "category", c.category, "error", err)
			return fmt.Errorf("reading %s channel: %w", c.category, err)
		}

		ev, err := device.DecodeEvent(c.category, data)
		if err != nil {
			c.logger.Warn("dropping malformed channel message",
				"category", c.category,
				"error", err,
				"size", len(data),
			)
			c.observer.EventDropped(c.category, err)
			continue
		}

		c.observer.EventReceived(c.category)
		c.dispatch(handler, ev)
	}
}

func (c *Client) dispatch(handler Handler, ev device.Event) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("channel handler panic recovered",
				"category", c.category,
				"panic", r,
			)
		}
	}()
	handler(ev)
}

// handlePing answers server pings and pushes the silence deadline forward.
func (c *Client) handlePing(appData string) error {
	_ = c.conn.SetReadDeadline(time.Now().Add(c.readTimeout))
	err := c.conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(controlWait))
	if errors.Is(err, websocket.ErrCloseSent) {
		return nil
	}
	return err
}

// Close sends a close frame and releases the connection. It is idempotent
// and unblocks a pending Receive.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(controlWait))
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
