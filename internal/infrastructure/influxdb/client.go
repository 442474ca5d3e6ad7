package influxdb

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/homytech-sync/internal/infrastructure/config"
)

const (
	connectTimeout = 10 * time.Second

	defaultBatchSize     = 100
	defaultFlushInterval = 10 * time.Second
)

// Stats counts points handed to the write API and points refused because
// the client was already closed.
type Stats struct {
	Queued  uint64 `json:"queued"`
	Dropped uint64 `json:"dropped"`
}

// Client writes HomySync telemetry points to one InfluxDB bucket.
//
// Points go through the batched non-blocking write API; failures arrive
// asynchronously on the SetOnError callback. Close is idempotent, and
// writes or flushes after Close are dropped.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI

	// mu is held shared by writers and exclusively by Close, so the write
	// API is never used after it has been closed.
	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once

	onError atomic.Pointer[func(error)]
	queued  atomic.Uint64
	dropped atomic.Uint64
}

// Connect pings the server and prepares the batched write API for
// cfg.Org and cfg.Bucket. The ping is bounded by ctx and a 10s limit.
//
// Returns:
//   - *Client: Client ready for writes
//   - error: ErrDisabled, or ErrConnectionFailed if the ping fails
func Connect(ctx context.Context, cfg config.InfluxDBConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	batchSize := uint(defaultBatchSize)
	if cfg.BatchSize > 0 {
		batchSize = uint(cfg.BatchSize)
	}
	opts := influxdb2.DefaultOptions().
		SetBatchSize(batchSize).
		SetFlushInterval(uint(flushInterval(cfg).Milliseconds())) // #nosec G115 -- positive
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if healthy, err := client.Ping(pingCtx); err != nil || !healthy {
		client.Close()
		if err == nil {
			err = fmt.Errorf("server at %s not healthy", cfg.URL)
		}
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	c := &Client{
		client:   client,
		writeAPI: client.WriteAPI(cfg.Org, cfg.Bucket),
	}
	go c.forwardErrors(c.writeAPI.Errors())
	return c, nil
}

func flushInterval(cfg config.InfluxDBConfig) time.Duration {
	if cfg.FlushInterval <= 0 {
		return defaultFlushInterval
	}
	return time.Duration(cfg.FlushInterval) * time.Second
}

// forwardErrors runs until the write API closes its error channel.
func (c *Client) forwardErrors(errs <-chan error) {
	for err := range errs {
		if fn := c.onError.Load(); fn != nil {
			(*fn)(err)
		}
	}
}

// SetOnError sets the callback for asynchronous write errors.
func (c *Client) SetOnError(fn func(err error)) {
	c.onError.Store(&fn)
}

// writePoint queues p unless the client is closed.
func (c *Client) writePoint(p *write.Point) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed || c.writeAPI == nil {
		c.dropped.Add(1)
		return
	}
	c.writeAPI.WritePoint(p)
	c.queued.Add(1)
}

// Flush blocks until all queued points are sent. It is a no-op after Close.
func (c *Client) Flush() {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed || c.writeAPI == nil {
		return
	}
	c.writeAPI.Flush()
}

// Stats returns the write counters.
func (c *Client) Stats() Stats {
	return Stats{Queued: c.queued.Load(), Dropped: c.dropped.Load()}
}

// Close flushes queued points and releases the client. Calling it more
// than once is safe.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.closed = true
		if c.client == nil {
			return
		}
		c.writeAPI.Flush()
		c.client.Close()
	})
	return nil
}
