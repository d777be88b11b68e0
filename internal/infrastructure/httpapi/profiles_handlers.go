package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"request-profiler/internal/domain"
	"request-profiler/internal/usecase"
)

// handleProfiles serves GET /api/profiles (search) and DELETE /api/profiles
// (purge).
func (d *Deps) handleProfiles(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodDelete:
		if err := d.Profiler.Purge(r.Context()); err != nil {
			writeError(w, http.StatusInternalServerError, "PROFILES_PURGE_FAILED", err.Error(), nil)
			return
		}
		d.Metrics.PurgesTotal.Inc()
		d.Metrics.StoredProfiles.Set(0)
		if d.Monitor != nil {
			d.Monitor.Broadcast(MonitorEvent{Type: "purged"})
		}
		w.WriteHeader(http.StatusNoContent)
	case http.MethodGet:
		q := r.URL.Query()
		limit, _ := strconv.Atoi(q.Get("limit"))
		if limit <= 0 {
			limit = 50
		}
		status, _ := strconv.Atoi(q.Get("status"))
		// collector=<name> narrows to profiles carrying that snapshot.
		var filter func(*domain.Profile) bool
		if name := q.Get("collector"); name != "" {
			filter = func(p *domain.Profile) bool { return p.HasCollector(name) }
		}
		items, err := d.Profiler.Find(r.Context(), usecase.Query{
			IP:         q.Get("ip"),
			URL:        q.Get("url"),
			Method:     q.Get("method"),
			StatusCode: status,
			Limit:      limit,
			Start:      q.Get("start"),
			End:        q.Get("end"),
			Filter:     filter,
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, "PROFILES_FIND_FAILED", err.Error(), nil)
			return
		}
		d.Metrics.FindQueriesTotal.Inc()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"items": items, "count": len(items)})
	default:
		writeError(w, http.StatusMethodNotAllowed, "", "method not allowed", nil)
	}
}

// handleProfileByToken serves GET /api/profiles/{token}.
func (d *Deps) handleProfileByToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "", "method not allowed", nil)
		return
	}
	token := strings.TrimPrefix(r.URL.Path, "/api/profiles/")
	if token == "" || strings.Contains(token, "/") {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "resource not found", nil)
		return
	}
	p, ok, err := d.Profiler.Load(r.Context(), token)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "PROFILE_GET_FAILED", err.Error(), map[string]any{"token": token})
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "profile not found", map[string]any{"token": token})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(p)
}

// handleProfilerState serves GET /api/profiler (state) and POST
// /api/profiler with {"enabled": bool}.
func (d *Deps) handleProfilerState(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"enabled": d.Profiler.IsEnabled()})
	case http.MethodPost:
		var body struct {
			Enabled bool `json:"enabled"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid body", nil)
			return
		}
		if body.Enabled {
			d.Profiler.Enable()
		} else {
			d.Profiler.Disable()
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"enabled": d.Profiler.IsEnabled()})
	default:
		writeError(w, http.StatusMethodNotAllowed, "", "method not allowed", nil)
	}
}
