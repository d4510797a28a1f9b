package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/MeKo-Tech/crowdgauge/internal/common"
	"github.com/MeKo-Tech/crowdgauge/internal/contribution"
	"github.com/MeKo-Tech/crowdgauge/internal/version"
)

const defaultListLimit = 50

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeErrorResponse(w, "method_not_allowed", "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:     "healthy",
		Version:    version.Version,
		Time:       s.now().UTC().Format(time.RFC3339),
		QueueDepth: s.enqueuer.QueueDepth(),
		Memory:     common.GetMemoryStats(),
	})
}

// stationsHandler lists the station registry.
func (s *Server) stationsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeErrorResponse(w, "method_not_allowed", "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stations := s.registry.Stations()
	s.writeJSON(w, http.StatusOK, StationsResponse{Stations: stations, Count: len(stations)})
}

// contributionsHandler returns the newest contributions for one station.
func (s *Server) contributionsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeErrorResponse(w, "method_not_allowed", "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	st, ok := s.registry.Lookup(r.PathValue("id"))
	if !ok {
		s.writeErrorResponse(w, "unknown_station", "No station with id "+r.PathValue("id"), http.StatusNotFound)
		return
	}

	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.writeErrorResponse(w, "invalid_limit", "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, s.maxListed)
	}

	list, err := s.store.ListByStation(r.Context(), st.ID, limit)
	if err != nil {
		slog.Error("Failed to list contributions", "station", st.ID, "error", err)
		s.writeErrorResponse(w, "store_error", "Failed to list contributions", http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []contribution.Contribution{}
	}
	s.writeJSON(w, http.StatusOK, ContributionsResponse{StationID: st.ID, Contributions: list, Count: len(list)})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, kind, message string, statusCode int) {
	s.writeJSON(w, statusCode, ErrorResponse{Error: kind, Message: message, Code: statusCode})
}
