package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/nerrad567/homytech-sync/internal/activity"
	"github.com/nerrad567/homytech-sync/internal/channel"
	"github.com/nerrad567/homytech-sync/internal/device"
	"github.com/nerrad567/homytech-sync/internal/infrastructure/config"
	"github.com/nerrad567/homytech-sync/internal/infrastructure/logging"
	"github.com/nerrad567/homytech-sync/internal/journal"
	"github.com/nerrad567/homytech-sync/internal/remote"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Commander sends the four toggle mutations. Satisfied by *control.Commander.
type Commander interface {
	ToggleLight(ctx context.Context, index int) (remote.Ack, error)
	ToggleDoor(ctx context.Context) (remote.Ack, error)
	ToggleClothesline(ctx context.Context) (remote.Ack, error)
	ToggleClotheslineMode(ctx context.Context) (remote.Ack, error)
}

// LogBrowser serves paginated logs and the hourly usage series.
// Satisfied by *activity.Browser.
type LogBrowser interface {
	FetchFiltered(ctx context.Context, category device.Category, index int, filter activity.Filter) (activity.Page, error)
	HourlyUsage(ctx context.Context) ([]activity.UsageBucket, error)
}

// JournalReader reads the local change journal. Satisfied by *journal.Journal.
type JournalReader interface {
	Recent(ctx context.Context, category device.Category, limit int) ([]journal.Entry, error)
}

// ChannelReporter reports the push channels. Satisfied by *realtime.Service.
type ChannelReporter interface {
	Channels() []channel.Stats
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	WS        config.WebSocketConfig
	Metrics   config.MetricsConfig
	Logger    *logging.Logger
	Store     *device.Store
	Commander Commander
	Logs      LogBrowser
	Journal   JournalReader   // optional: /journal answers 404 without it
	Channels  ChannelReporter // optional
	// MetricsHandler is mounted at Metrics.Path when metrics are enabled.
	MetricsHandler http.Handler
	Version        string
}

// Server is the local HTTP API for the synced device state.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	metCfg    config.MetricsConfig
	logger    *logging.Logger
	store     *device.Store
	commander Commander
	logs      LogBrowser
	journal   JournalReader
	channels  ChannelReporter
	metrics   http.Handler
	version   string
	hub       *Hub

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	cancel   context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The hub is created here and registered on the store, so WebSocket
// clients see every change applied after New returns.
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("device store is required")
	}
	if deps.Commander == nil {
		return nil, fmt.Errorf("commander is required")
	}
	if deps.Logs == nil {
		return nil, fmt.Errorf("log browser is required")
	}

	s := &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		metCfg:    deps.Metrics,
		logger:    deps.Logger,
		store:     deps.Store,
		commander: deps.Commander,
		logs:      deps.Logs,
		journal:   deps.Journal,
		channels:  deps.Channels,
		metrics:   deps.MetricsHandler,
		version:   deps.Version,
		hub:       NewHub(deps.WS, deps.Logger),
	}
	deps.Store.AddListener(s.hub)

	return s, nil
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the routed HTTP handler. It is built fresh on each call.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening for HTTP connections.
//
// The listener is bound synchronously so a port conflict is returned
// here. Serving continues in a background goroutine until Close.
//
// Returns:
//   - error: If the address cannot be bound
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server != nil {
		return fmt.Errorf("api server already started")
	}

	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	go s.hub.Run(srvCtx)

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.cancel()
		s.server = nil
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.listener = ln
	s.logger.Info("API server listening", "address", ln.Addr().String())

	srv := s.server
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listen address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	s.mu.Lock()
	srv := s.server
	cancel := s.cancel
	s.server = nil
	s.listener = nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	if cancel != nil {
		cancel()
	}

	ctx, done := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer done()

	s.logger.Info("API server shutting down")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
