package api

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/homytech-sync/internal/activity"
	"github.com/nerrad567/homytech-sync/internal/device"
)

// logCategories are the categories with a backend log.
var logCategories = map[device.Category]bool{
	device.CategoryLight:       true,
	device.CategoryDoor:        true,
	device.CategoryClothesline: true,
}

// handleListLogs returns one page of a category's backend log.
//
// Query parameters:
//   - page: 0-based page index (default 0)
//   - user, action, source: exact-match filters
//   - light_id: light filter, light log only
//   - from, to: timestamp bounds
func (s *Server) handleListLogs(w http.ResponseWriter, r *http.Request) {
	category := device.Category(chi.URLParam(r, "category"))
	if !logCategories[category] {
		writeNotFound(w, "no log for category "+string(category))
		return
	}

	q := r.URL.Query()
	page := 0
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeBadRequest(w, "page must be a non-negative integer")
			return
		}
		page = n
	}

	filter, err := parseFilter(q)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	result, err := s.logs.FetchFiltered(r.Context(), category, page, filter)
	if err != nil {
		switch {
		case errors.Is(err, activity.ErrInvalidPage):
			writeBadRequest(w, err.Error())
		case errors.Is(err, activity.ErrFetchFailed):
			writeUpstreamError(w, err.Error())
		default:
			writeInternalError(w, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"page":         result,
		"has_previous": result.HasPrevious(),
		"has_next":     result.HasNext(),
	})
}

// parseFilter reads the optional log filters from a query string.
func parseFilter(q url.Values) (activity.Filter, error) {
	filter := activity.Filter{
		User:   q.Get("user"),
		Action: q.Get("action"),
		Source: q.Get("source"),
	}
	if v := q.Get("light_id"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil || id < 1 || id > device.LightCount {
			return filter, errors.New("light_id must be between 1 and " + strconv.Itoa(device.LightCount))
		}
		filter.LightID = id
	}

	var err error
	if filter.From, err = parseBound(q.Get("from")); err != nil {
		return filter, errors.New("from: " + err.Error())
	}
	if filter.To, err = parseBound(q.Get("to")); err != nil {
		return filter, errors.New("to: " + err.Error())
	}
	return filter, nil
}

func parseBound(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return device.ParseTimestamp(v)
}

// handleHourlyUsage returns minutes-on per light for each hour.
// The series is fetched on every call; nothing is cached between requests.
func (s *Server) handleHourlyUsage(w http.ResponseWriter, r *http.Request) {
	series, err := s.logs.HourlyUsage(r.Context())
	if err != nil {
		writeUpstreamError(w, err.Error())
		return
	}
	if series == nil {
		series = []activity.UsageBucket{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  series,
		"count": len(series),
	})
}

// handleListJournal returns the newest local journal entries for a category.
func (s *Server) handleListJournal(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeNotFound(w, "journal is disabled")
		return
	}

	category := device.Category(chi.URLParam(r, "category"))
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := s.journal.Recent(r.Context(), category, limit)
	if err != nil {
		if errors.Is(err, device.ErrUnknownCategory) {
			writeNotFound(w, err.Error())
			return
		}
		writeInternalError(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}
