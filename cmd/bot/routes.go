package main

import (
	"net/http"

	"budgetbridge/internal/shared/config"
	"budgetbridge/internal/shared/middleware"

	"github.com/rs/zerolog"
)

// SetupRoutes configures all HTTP routes and returns the final handler with middleware.
func SetupRoutes(deps *Dependencies, cfg *config.Config, l zerolog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", deps.HealthHandler.HandleHealth)
	mux.HandleFunc("/oauth/callback", deps.AuthHandler.HandleCallback)

	handler := middleware.SecurityHeaders(mux)
	handler = middleware.Logging(l)(handler)

	if cfg.Telemetry.Enabled {
		handler = middleware.Telemetry(cfg.Telemetry.ServiceName)(handler)
	}

	if cfg.TLS.Enabled {
		handler = middleware.HSTS(handler)
		l.Info().Msg("TLS security middleware enabled (HSTS)")
	}

	return handler
}
