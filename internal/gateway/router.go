package gateway

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/quizarena/quiz-arena/internal/match"
	"github.com/quizarena/quiz-arena/internal/obslog"
)

// NewRouter assembles the HTTP surface: the WebSocket endpoint, a health
// probe, the presence bulk query and the Prometheus scrape endpoint.
func NewRouter(s *Server, wsPath string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get(wsPath, s.HandleWS)
	r.Get("/healthz", handleHealth)
	r.Get("/api/presence", s.handlePresence)
	r.Get("/api/matches", s.handleMatches)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handlePresence serves the point-in-time bulk presence snapshot:
// GET /api/presence?ids=u1,u2,u3
func (s *Server) handlePresence(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("ids"))
	if raw == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "ids query parameter is required"})
		return
	}
	ids := make([]string, 0, 8)
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"statuses": s.reg.BulkStatus(ids)})
}

// handleMatches serves a user's recent finished matches:
// GET /api/matches?user=u1
func (s *Server) handleMatches(w http.ResponseWriter, r *http.Request) {
	if s.results == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "match history is not configured"})
		return
	}
	userID := strings.TrimSpace(r.URL.Query().Get("user"))
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user query parameter is required"})
		return
	}
	results, err := s.results.ResultsByUser(r.Context(), userID)
	if err != nil {
		obslog.L().Error("match_history_error", zap.String("user_id", userID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "match history unavailable"})
		return
	}
	if results == nil {
		results = []*match.Result{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"matches": results})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
