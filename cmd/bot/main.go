package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"budgetbridge/internal/shared/config"
	"budgetbridge/internal/shared/logger"
	"budgetbridge/internal/shared/telemetry"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Application error")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.ValidateBot(); err != nil {
		return err
	}

	l := logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
	logger.SetGlobalLogger(l)

	ctx, stop := signal.NotifyContext(logger.WithContext(context.Background(), l), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.Init(ctx, telemetry.Config{
			ServiceName:  cfg.Telemetry.ServiceName,
			OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
			MetricsPort:  cfg.Telemetry.MetricsPort,
		})
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				l.Error().Err(err).Msg("Telemetry shutdown failed")
			}
		}()
	} else {
		l.Info().Msg("Telemetry is disabled")
	}

	deps, err := NewDependencies(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	srv := NewServer(NewServerConfigFromConfig(SetupRoutes(deps, cfg, l), cfg))

	// Jobs outlive the signal so queued events finish during shutdown.
	deps.Pool.Start(context.WithoutCancel(ctx))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return deps.Messenger.Start(gctx, deps.Dispatcher)
	})
	g.Go(func() error {
		return Serve(gctx, srv, cfg.TLS)
	})
	g.Go(func() error {
		<-gctx.Done()
		return GracefulShutdown(gctx, srv, deps.Pool, shutdownTimeout)
	})

	l.Info().Str("bot", deps.Messenger.Username()).Msg("Bot started")
	return g.Wait()
}
