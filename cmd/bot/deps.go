package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"budgetbridge/internal/domain/reconcile"
	"budgetbridge/internal/domain/session"
	"budgetbridge/internal/domain/statement"
	"budgetbridge/internal/infrastructure/crypto"
	"budgetbridge/internal/infrastructure/postgres"
	statementparsers "budgetbridge/internal/infrastructure/statement"
	"budgetbridge/internal/infrastructure/telegram"
	"budgetbridge/internal/infrastructure/ynab"
	"budgetbridge/internal/interfaces/bot"
	httphandlers "budgetbridge/internal/interfaces/http"
	"budgetbridge/internal/shared/config"
	"budgetbridge/internal/shared/logger"
	"budgetbridge/internal/shared/messages"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Dependencies holds all initialized application components.
type Dependencies struct {
	DB *postgres.DB

	Messenger  *telegram.Messenger
	Registry   *session.Registry
	Pool       *bot.WorkerPool
	Dispatcher *bot.Dispatcher

	// Handlers
	HealthHandler *httphandlers.HealthHandler
	AuthHandler   *httphandlers.AuthHandler
}

// NewDependencies initializes all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	log := logger.FromContext(ctx)

	texts, err := messages.Load(cfg.Bot.MessagesFile)
	if err != nil {
		return nil, err
	}

	db, err := postgres.New(ctx, cfg.Database.ConnectionString(), postgres.PoolConfig{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, err
	}
	log.Info().Msg("Connected to database")

	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	encryptor, err := crypto.NewEncryptor(cfg.Encryption.Key)
	if err != nil {
		db.Close()
		return nil, err
	}
	userRepo := postgres.NewUserRepository(db, encryptor)

	telegramClient, err := telegramHTTPClient(cfg.Telegram.ProxyURL)
	if err != nil {
		db.Close()
		return nil, err
	}
	messenger, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		APIEndpoint: cfg.Telegram.APIEndpoint,
		HTTPClient:  telegramClient,
		Texts:       texts,
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	log.Info().Str("bot", messenger.Username()).Msg("Connected to Telegram")

	scope, err := reconcile.ParseLockScope(cfg.Bot.MergeLockScope)
	if err != nil {
		db.Close()
		return nil, err
	}

	ledgerClient := ynab.NewClient(cfg.YNAB.APIURL)
	oauth := ynab.NewOAuth(ynab.OAuthConfig{
		ClientID:     cfg.YNAB.ClientID,
		ClientSecret: cfg.YNAB.ClientSecret,
		RedirectURL:  cfg.YNAB.RedirectURL,
		AuthBaseURL:  cfg.YNAB.AuthURL,
	}, ledgerClient.HTTPClient())

	registry := session.NewRegistry(&session.Deps{
		Users:   userRepo,
		Ledger:  ledgerClient,
		Auth:    oauth,
		Engine:  reconcile.NewEngine(ledgerClient, reconcile.NewLocker(scope)),
		Parsers: statement.NewRegistry(statementparsers.Parsers()...),
		Sender:  messenger,
		Texts:   texts,
	})

	pool := bot.NewWorkerPool(cfg.Bot.Workers, cfg.Bot.QueueSize, cfg.Bot.JobTimeout)

	return &Dependencies{
		DB:            db,
		Messenger:     messenger,
		Registry:      registry,
		Pool:          pool,
		Dispatcher:    bot.NewDispatcher(bot.FromRegistry(registry), pool, messenger, texts),
		HealthHandler: httphandlers.NewHealthHandler(db, registry),
		AuthHandler:   httphandlers.NewAuthHandler(messenger.Username(), texts),
	}, nil
}

// telegramHTTPClient builds the Bot API client, optionally through a proxy.
func telegramHTTPClient(proxyURL string) (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_PROXY_URL: %w", err)
		}
		transport.Proxy = http.ProxyURL(u)
	}
	return &http.Client{
		Timeout:   90 * time.Second,
		Transport: otelhttp.NewTransport(transport),
	}, nil
}

// Close releases all resources held by dependencies.
func (d *Dependencies) Close() {
	if d.DB != nil {
		d.DB.Close()
	}
}
