package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"budgetbridge/internal/interfaces/bot"
	"budgetbridge/internal/shared/config"
	"budgetbridge/internal/shared/logger"
)

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Handler http.Handler
	Addr    string
}

// NewServer creates the HTTP server for the OAuth landing page and health
// checks.
func NewServer(scfg ServerConfig) *http.Server {
	return &http.Server{
		Addr:         scfg.Addr,
		Handler:      scfg.Handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// Serve runs srv until it is shut down.
func Serve(ctx context.Context, srv *http.Server, tls config.TLSConfig) error {
	log := logger.FromContext(ctx)

	var err error
	if tls.Enabled {
		log.Info().Str("addr", srv.Addr).Msg("HTTPS server starting")
		err = srv.ListenAndServeTLS(tls.CertPath, tls.KeyPath)
	} else {
		log.Info().Str("addr", srv.Addr).Msg("HTTP server starting")
		err = srv.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// GracefulShutdown stops accepting HTTP requests, then drains the event
// pool.
func GracefulShutdown(ctx context.Context, srv *http.Server, pool *bot.WorkerPool, timeout time.Duration) error {
	log := logger.FromContext(ctx)
	log.Info().Msg("Server shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	err := srv.Shutdown(shutdownCtx)
	if err != nil {
		log.Error().Err(err).Msg("Error shutting down HTTP server")
	}

	pool.Shutdown(timeout)

	log.Info().Msg("Server stopped")
	return err
}

// NewServerConfigFromConfig creates ServerConfig from application config.
func NewServerConfigFromConfig(handler http.Handler, cfg *config.Config) ServerConfig {
	return ServerConfig{
		Handler: handler,
		Addr:    cfg.Server.Host + ":" + cfg.Server.Port,
	}
}
