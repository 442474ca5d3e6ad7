package channel

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/homytech-sync/internal/device"
)

// ConnState is the lifecycle state of a supervised channel.
type ConnState string

// Supervisor states.
const (
	StateIdle       ConnState = "idle"
	StateConnecting ConnState = "connecting"
	StateOpen       ConnState = "open"
	StateClosed     ConnState = "closed" // waiting for the retry timer
	StateStopped    ConnState = "stopped"
)

// Config configures a Supervisor.
type Config struct {
	// Category is the device category of the channel (required).
	Category device.Category

	// URL is the full channel URL (required).
	URL string

	// Handler receives every valid event (required).
	Handler Handler

	// Dialer opens connections. Defaults to websocket.DefaultDialer.
	Dialer Dialer

	// Backoff controls reconnect delays. Zero fields use DefaultBackoff.
	Backoff Backoff

	// Clock schedules retry timers. Defaults to the wall clock.
	Clock Clock

	// Header is sent with every handshake (for example Authorization).
	Header http.Header

	MaxMessageSize int64
	ReadTimeout    time.Duration

	Logger   Logger
	Observer Observer
}

// Supervisor keeps one push channel connected.
//
// Every close, including a failed dial, schedules exactly one reconnect
// timer. The attempt counter grows by one per scheduled retry and resets to
// zero when a connection opens. Close is terminal.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - The Handler is called from one goroutine at a time and must not call
//     Close.
type Supervisor struct {
	cfg      Config
	logger   Logger
	observer Observer

	mu         sync.Mutex
	state      ConnState
	attempt    int
	reconnects int
	timer      Timer
	client     *Client
	lastError  error
	openedAt   time.Time
	started    bool
	stopped    bool
	ctx        context.Context //nolint:containedctx // lifetime of the supervisor
	cancel     context.CancelFunc

	// stopping is checked before every handler call so nothing is
	// delivered once Close has begun.
	stopping atomic.Bool
	wg       sync.WaitGroup
}

// NewSupervisor validates cfg and returns an idle supervisor.
func NewSupervisor(cfg Config) (*Supervisor, error) {
	if !cfg.Category.Valid() {
		return nil, fmt.Errorf("%w: unknown category %q", ErrInvalidConfig, cfg.Category)
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: url is required", ErrInvalidConfig)
	}
	if cfg.Handler == nil {
		return nil, fmt.Errorf("%w: handler is required", ErrInvalidConfig)
	}
	if cfg.Clock == nil {
		cfg.Clock = realClock{}
	}
	cfg.Backoff = cfg.Backoff.normalised()

	s := &Supervisor{
		cfg:      cfg,
		logger:   cfg.Logger,
		observer: cfg.Observer,
		state:    StateIdle,
	}
	if s.logger == nil {
		s.logger = noopLogger{}
	}
	if s.observer == nil {
		s.observer = noopObserver{}
	}
	return s, nil
}

// Start begins connecting in the background and returns immediately.
//
// Cancelling ctx stops reconnection the same way Close does, except that
// Close must still be called to wait for the worker to exit.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrStopped
	}
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	context.AfterFunc(s.ctx, s.cancelTimer)
	s.mu.Unlock()

	s.logger.Info("starting channel", "category", s.cfg.Category, "url", s.cfg.URL)
	s.fire()
	return nil
}

// fire moves to Connecting and dials on a new goroutine. It is the retry
// timer callback.
func (s *Supervisor) fire() {
	s.mu.Lock()
	s.timer = nil
	if s.stopped || s.ctx.Err() != nil {
		s.state = StateStopped
		s.mu.Unlock()
		return
	}
	s.state = StateConnecting
	s.wg.Add(1)
	s.mu.Unlock()

	go s.run()
}

// run owns one connection from dial to close.
func (s *Supervisor) run() {
	defer s.wg.Done()

	client, err := Dial(s.ctx, s.cfg.Dialer, s.cfg.Category, s.cfg.URL, Options{
		Header:         s.cfg.Header,
		MaxMessageSize: s.cfg.MaxMessageSize,
		ReadTimeout:    s.cfg.ReadTimeout,
		Logger:         s.logger,
		Observer:       s.observer,
	})
	if err != nil {
		s.logger.Warn("channel connect failed", "category", s.cfg.Category, "error", err)
		s.scheduleRetry(err)
		return
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		_ = client.Close()
		return
	}
	s.client = client
	s.attempt = 0
	s.state = StateOpen
	s.openedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("channel open", "category", s.cfg.Category)
	s.observer.ChannelOpened(s.cfg.Category)

	stop := context.AfterFunc(s.ctx, func() { _ = client.Close() })
	err = client.Receive(s.deliver)
	stop()
	_ = client.Close()

	s.mu.Lock()
	if s.client == client {
		s.client = nil
	}
	s.mu.Unlock()

	s.logger.Info("channel closed", "category", s.cfg.Category, "reason", err)
	s.scheduleRetry(err)
}

// deliver guards the handler against calls after teardown has begun.
func (s *Supervisor) deliver(ev device.Event) {
	if s.stopping.Load() {
		return
	}
	s.cfg.Handler(ev)
}

// scheduleRetry records a close and arms the single retry timer.
func (s *Supervisor) scheduleRetry(cause error) {
	s.mu.Lock()
	if s.stopped || s.ctx.Err() != nil {
		s.state = StateStopped
		s.mu.Unlock()
		return
	}

	delay := s.cfg.Backoff.Delay(s.attempt)
	s.attempt++
	s.reconnects++
	s.lastError = cause
	s.state = StateClosed
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = s.cfg.Clock.AfterFunc(delay, s.fire)
	attempt := s.attempt
	s.mu.Unlock()

	s.logger.Info("channel reconnect scheduled",
		"category", s.cfg.Category,
		"attempt", attempt,
		"delay", delay,
	)
	s.observer.ChannelClosed(s.cfg.Category, attempt, delay)
}

func (s *Supervisor) cancelTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.state == StateClosed {
		s.state = StateStopped
	}
}

// Close tears the channel down: it cancels any pending retry, closes the
// live connection and waits for the worker to exit. No handler call starts
// after Close begins and none is running when it returns. Close is
// idempotent.
func (s *Supervisor) Close() error {
	s.stopping.Store(true)

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		s.wg.Wait()
		return nil
	}
	s.stopped = true
	s.state = StateStopped
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	client := s.client
	s.client = nil
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if client != nil {
		_ = client.Close()
	}
	s.wg.Wait()

	s.logger.Info("channel stopped", "category", s.cfg.Category)
	return nil
}

// Stats is a point-in-time view of a supervised channel.
type Stats struct {
	Category   device.Category `json:"category"`
	URL        string          `json:"url"`
	State      ConnState       `json:"state"`
	Attempt    int             `json:"attempt"`
	Reconnects int             `json:"reconnects"`
	Uptime     time.Duration   `json:"uptime,omitempty"`
	LastError  string          `json:"last_error,omitempty"`
}

// Stats returns current statistics for the channel.
func (s *Supervisor) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := Stats{
		Category:   s.cfg.Category,
		URL:        s.cfg.URL,
		State:      s.state,
		Attempt:    s.attempt,
		Reconnects: s.reconnects,
	}
	if s.state == StateOpen {
		stats.Uptime = time.Since(s.openedAt)
	}
	if s.lastError != nil {
		stats.LastError = s.lastError.Error()
	}
	return stats
}

// Attempt returns the number of retries scheduled since the last open.
func (s *Supervisor) Attempt() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempt
}

// State returns the current lifecycle state.
func (s *Supervisor) State() ConnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}
