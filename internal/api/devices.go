package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/homytech-sync/internal/control"
	"github.com/nerrad567/homytech-sync/internal/device"
	"github.com/nerrad567/homytech-sync/internal/remote"
)

// stateResponse is the body of GET /state. State is null while unknown.
type stateResponse struct {
	Known bool          `json:"known"`
	State *device.State `json:"state"`
}

// toggleResponse is the body of a successful toggle.
type toggleResponse struct {
	Target  string `json:"target"`
	Message string `json:"message"`
}

// handleGetState returns the reconciled device state.
func (s *Server) handleGetState(w http.ResponseWriter, _ *http.Request) {
	state, known := s.store.State()
	resp := stateResponse{Known: known}
	if known {
		resp.State = &state
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleToggleLight toggles one light. The path index is the 1-based
// light id, matching the backend.
func (s *Server) handleToggleLight(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeBadRequest(w, "light index must be a number")
		return
	}
	if id < 1 || id > device.LightCount {
		writeNotFound(w, "light "+strconv.Itoa(id)+" does not exist")
		return
	}
	s.toggle(w, r, control.TargetLight, func(ctx context.Context) (remote.Ack, error) {
		return s.commander.ToggleLight(ctx, id-1)
	})
}

func (s *Server) handleToggleDoor(w http.ResponseWriter, r *http.Request) {
	s.toggle(w, r, control.TargetDoor, s.commander.ToggleDoor)
}

func (s *Server) handleToggleClothesline(w http.ResponseWriter, r *http.Request) {
	s.toggle(w, r, control.TargetClothesline, s.commander.ToggleClothesline)
}

func (s *Server) handleToggleClotheslineMode(w http.ResponseWriter, r *http.Request) {
	s.toggle(w, r, control.TargetClotheslineMode, s.commander.ToggleClotheslineMode)
}

// toggle runs one command and maps its error onto a status code.
//
// The response only acknowledges the command. The new state arrives
// later through the push channel and the WebSocket hub.
func (s *Server) toggle(w http.ResponseWriter, r *http.Request, target string, send func(context.Context) (remote.Ack, error)) {
	ack, err := send(r.Context())
	if err != nil {
		writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, toggleResponse{Target: target, Message: ack.Message})
}

// writeCommandError maps a command error to a response.
func writeCommandError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, device.ErrStateUnknown):
		writeConflict(w, "device state has not loaded yet")
	case errors.Is(err, device.ErrLightOutOfRange):
		writeNotFound(w, err.Error())
	case errors.Is(err, control.ErrCommandFailed):
		var statusErr *remote.StatusError
		if errors.As(err, &statusErr) && statusErr.Status < http.StatusInternalServerError {
			msg := statusErr.Detail
			if msg == "" {
				msg = err.Error()
			}
			writeError(w, statusErr.Status, ErrCodeUpstream, msg)
			return
		}
		writeUpstreamError(w, err.Error())
	case errors.Is(err, device.ErrStoreClosed):
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "shutting down")
	default:
		writeInternalError(w, err.Error())
	}
}
