package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"budgetbridge/internal/shared/logger"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// SessionCounter reports how many chat sessions are live.
type SessionCounter interface {
	Len() int
}

// HealthHandler reports liveness, database reachability and live sessions.
type HealthHandler struct {
	db       Pinger
	sessions SessionCounter
}

func NewHealthHandler(db Pinger, sessions SessionCounter) *HealthHandler {
	return &HealthHandler{db: db, sessions: sessions}
}

type healthResponse struct {
	Status   string `json:"status"`
	Sessions *int   `json:"sessions,omitempty"`
}

// HandleHealth returns a simple health check response.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	resp := healthResponse{Status: "ok"}
	if h.sessions != nil {
		n := h.sessions.Len()
		resp.Sessions = &n
	}

	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			logger.FromContext(r.Context()).Error().Err(err).Msg("Health check: database unreachable")
			resp.Status = "unavailable"
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}

	json.NewEncoder(w).Encode(resp)
}
