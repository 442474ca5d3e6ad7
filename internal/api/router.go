package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/homytech-sync/internal/channel"
)

// defaultMetricsPath is used when metrics are enabled without a path.
const defaultMetricsPath = "/metrics"

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	if s.metCfg.Enabled && s.metrics != nil {
		path := s.metCfg.Path
		if path == "" {
			path = defaultMetricsPath
		}
		r.Handle(path, s.metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/state", s.handleGetState)
		r.Get("/channels", s.handleListChannels)

		r.Post("/lights/{index}/toggle", s.handleToggleLight)
		r.Post("/door/toggle", s.handleToggleDoor)
		r.Post("/clothesline/toggle", s.handleToggleClothesline)
		r.Post("/clothesline/mode/toggle", s.handleToggleClotheslineMode)

		r.Get("/logs/{category}", s.handleListLogs)
		r.Get("/usage/hourly", s.handleHourlyUsage)
		r.Get("/journal/{category}", s.handleListJournal)

		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth returns the server health status.
//
// Status is "ok" once a snapshot has loaded and every channel is open,
// otherwise "degraded". The endpoint always answers 200.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	known := s.store.Known()
	open, total := 0, 0
	if s.channels != nil {
		for _, st := range s.channels.Channels() {
			total++
			if st.State == channel.StateOpen {
				open++
			}
		}
	}

	status := "ok"
	if !known || open < total {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        status,
		"version":       s.version,
		"state_known":   known,
		"channels_open": open,
		"channels":      total,
		"ws_clients":    s.hub.ClientCount(),
	})
}

// handleListChannels returns per-channel connection state and attempt count.
func (s *Server) handleListChannels(w http.ResponseWriter, _ *http.Request) {
	stats := []channel.Stats{}
	if s.channels != nil {
		stats = s.channels.Channels()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"channels": stats,
		"count":    len(stats),
	})
}
