package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/homytech-sync/internal/channel"
	"github.com/nerrad567/homytech-sync/internal/device"
	"github.com/nerrad567/homytech-sync/internal/snapshot"
)

// Logger is the logging interface used by the Service.
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

// Loader loads the initial snapshot. *snapshot.Loader satisfies it.
type Loader interface {
	Load(ctx context.Context) (device.State, error)
	Close()
}

// Config configures a Service.
type Config struct {
	// ChannelBaseURL is the ws:// or wss:// root of the push channels.
	ChannelBaseURL string

	// Header is sent with every channel handshake.
	Header http.Header

	Backoff        channel.Backoff
	MaxMessageSize int64
	ReadTimeout    time.Duration

	// Dialer and Clock default to the websocket default dialer and the
	// wall clock.
	Dialer channel.Dialer
	Clock  channel.Clock

	Logger   Logger
	Observer channel.Observer
}

// Service runs one sync session: it loads the snapshot, then keeps the
// alert, light, door and clothesline channels connected and folds their
// events into the store.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Service struct {
	store  *device.Store
	loader Loader
	logger Logger

	supervisors []*channel.Supervisor

	mu          sync.Mutex
	started     bool
	closed      bool
	snapshotErr error
	startedAt   time.Time
	closeOnce   sync.Once
}

// New builds the supervisors for every channel. Nothing connects until Start.
func New(store *device.Store, loader Loader, cfg Config) (*Service, error) {
	if store == nil || loader == nil {
		return nil, fmt.Errorf("%w: store and loader are required", ErrInvalidConfig)
	}
	if cfg.ChannelBaseURL == "" {
		return nil, fmt.Errorf("%w: channel base URL is required", ErrInvalidConfig)
	}

	s := &Service{
		store:  store,
		loader: loader,
		logger: cfg.Logger,
	}
	if s.logger == nil {
		s.logger = noopLogger{}
	}

	for _, category := range device.Channels() {
		sup, err := channel.NewSupervisor(channel.Config{
			Category:       category,
			URL:            channel.URL(cfg.ChannelBaseURL, category),
			Handler:        s.apply,
			Dialer:         cfg.Dialer,
			Backoff:        cfg.Backoff,
			Clock:          cfg.Clock,
			Header:         cfg.Header,
			MaxMessageSize: cfg.MaxMessageSize,
			ReadTimeout:    cfg.ReadTimeout,
			Logger:         cfg.Logger,
			Observer:       cfg.Observer,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %s channel: %w", ErrInvalidConfig, category, err)
		}
		s.supervisors = append(s.supervisors, sup)
	}

	return s, nil
}

// Start loads the snapshot and then starts every channel.
//
// A failed snapshot does not stop the channels: the state stays unknown
// and the failure is available from SnapshotError. Start returns an error
// only when the channels cannot be started.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	if _, err := s.loader.Load(ctx); err != nil {
		s.logger.Warn("snapshot unavailable, device state unknown until the next load", "error", err)
		s.mu.Lock()
		s.snapshotErr = err
		s.mu.Unlock()
	} else {
		s.logger.Info("snapshot loaded")
	}

	var errs []error
	for _, sup := range s.supervisors {
		if err := sup.Start(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("starting channels: %w", err)
	}

	s.logger.Info("realtime channels started", "channels", len(s.supervisors))
	return nil
}

// apply is the Handler shared by all supervisors.
func (s *Service) apply(ev device.Event) {
	if _, err := s.store.Apply(ev); err != nil {
		if errors.Is(err, device.ErrStoreClosed) {
			return
		}
		s.logger.Warn("push event rejected", "category", ev.Category, "error", err)
	}
}

// Close stops every channel, the loader and the store. No event is
// applied once Close has returned. It is idempotent.
func (s *Service) Close() error {
	var errs []error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		for _, sup := range s.supervisors {
			if err := sup.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		s.loader.Close()
		s.store.Close()
		s.logger.Info("realtime service stopped")
	})
	return errors.Join(errs...)
}

// Store returns the device store the service feeds.
func (s *Service) Store() *device.Store {
	return s.store
}

// SnapshotError returns the error of the startup snapshot load, or nil.
func (s *Service) SnapshotError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotErr
}

// Channels reports every channel in alert, light, door, clothesline order.
func (s *Service) Channels() []channel.Stats {
	out := make([]channel.Stats, 0, len(s.supervisors))
	for _, sup := range s.supervisors {
		out = append(out, sup.Stats())
	}
	return out
}

// Uptime returns the time since Start, or zero before it.
func (s *Service) Uptime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return 0
	}
	return time.Since(s.startedAt)
}

var _ Loader = (*snapshot.Loader)(nil)
