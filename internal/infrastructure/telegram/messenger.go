package telegram

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"strconv"
	"time"

	"budgetbridge/internal/domain/messaging"
	"budgetbridge/internal/shared/logger"
	"budgetbridge/internal/shared/messages"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	pollTimeout     = 60
	downloadTimeout = 30 * time.Second

	// DefaultMaxFileSize matches the Bot API getFile limit.
	DefaultMaxFileSize = 20 << 20
)

var ErrFileTooLarge = errors.New("file too large")

// botAPI is the subset of *tgbotapi.BotAPI the messenger uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	GetFileDirectURL(fileID string) (string, error)
}

// Config configures the Telegram messenger.
type Config struct {
	Token       string
	APIEndpoint string       // defaults to tgbotapi.APIEndpoint
	HTTPClient  *http.Client // defaults to an otelhttp-instrumented client
	MaxFileSize int64
	Texts       *messages.Messages
}

// Messenger implements messaging.Messenger over the Telegram Bot API using
// long polling.
type Messenger struct {
	api         botAPI
	httpClient  *http.Client
	username    string
	maxFileSize int64
	texts       *messages.Messages
}

var _ messaging.Messenger = (*Messenger)(nil)

// New connects to the Bot API and verifies the token.
func New(cfg Config) (*Messenger, error) {
	if cfg.Token == "" {
		return nil, errors.New("telegram token is required")
	}
	if cfg.APIEndpoint == "" {
		cfg.APIEndpoint = tgbotapi.APIEndpoint
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{
			Timeout:   (pollTimeout + 10) * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	api, err := tgbotapi.NewBotAPIWithClient(cfg.Token, cfg.APIEndpoint, cfg.HTTPClient)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to telegram: %w", err)
	}

	m := newMessenger(api, cfg)
	m.username = api.Self.UserName
	return m, nil
}

func newMessenger(api botAPI, cfg Config) *Messenger {
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	if cfg.Texts == nil {
		cfg.Texts = messages.Default()
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	return &Messenger{
		api:         api,
		httpClient:  cfg.HTTPClient,
		maxFileSize: cfg.MaxFileSize,
		texts:       cfg.Texts,
	}
}

// Username returns the bot's Telegram username.
func (m *Messenger) Username() string {
	return m.username
}

// Start polls for updates and hands them to handler until ctx is cancelled.
func (m *Messenger) Start(ctx context.Context, handler messaging.Handler) error {
	log := logger.FromContext(ctx)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeout
	updates := m.api.GetUpdatesChan(u)
	defer m.api.StopReceivingUpdates()

	log.Info().Str("bot", m.username).Msg("Telegram polling started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Telegram polling stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			m.dispatch(ctx, handler, update)
		}
	}
}

func (m *Messenger) dispatch(ctx context.Context, handler messaging.Handler, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return
	}

	target := messaging.ReplyTarget{
		UserID: strconv.FormatInt(msg.From.ID, 10),
		ChatID: msg.Chat.ID,
	}
	log := logger.FromContext(ctx).With().
		Str("user_id", target.UserID).
		Int64("chat_id", target.ChatID).
		Logger()

	if msg.Document == nil {
		if msg.Text == "" {
			return
		}
		log.Debug().Msg("Text message received")
		handler.OnTextMessage(ctx, target, msg.Text)
		return
	}

	doc := msg.Document
	log.Info().Str("file", doc.FileName).Int("size", doc.FileSize).Msg("Document received")

	content, err := m.download(ctx, doc)
	if err != nil {
		log.Error().Err(err).Str("file", doc.FileName).Msg("Failed to download document")
		text := m.texts.DownloadFailed
		if errors.Is(err, ErrFileTooLarge) {
			text = m.texts.FileTooLarge
		}
		if sendErr := m.SendMessage(ctx, target, fmt.Sprintf(text, html.EscapeString(doc.FileName))); sendErr != nil {
			log.Error().Err(sendErr).Msg("Failed to report download error")
		}
		return
	}
	handler.OnFileMessage(ctx, target, doc.FileName, content)
}

func (m *Messenger) download(ctx context.Context, doc *tgbotapi.Document) ([]byte, error) {
	if int64(doc.FileSize) > m.maxFileSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFileTooLarge, doc.FileSize)
	}

	url, err := m.api.GetFileDirectURL(doc.FileID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve file url: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download file: status %d", resp.StatusCode)
	}

	content, err := io.ReadAll(io.LimitReader(resp.Body, m.maxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if int64(len(content)) > m.maxFileSize {
		return nil, ErrFileTooLarge
	}
	return content, nil
}

// SendMessage sends an HTML message and removes any reply keyboard.
func (m *Messenger) SendMessage(ctx context.Context, target messaging.ReplyTarget, text string) error {
	if text == "" {
		return nil
	}
	msg := tgbotapi.NewMessage(target.ChatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	return m.send(ctx, target, msg)
}

// SendOptions sends text with a one-time keyboard, one option per row.
func (m *Messenger) SendOptions(ctx context.Context, target messaging.ReplyTarget, text string, options []string) error {
	rows := make([][]tgbotapi.KeyboardButton, 0, len(options))
	for _, o := range options {
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(o)))
	}
	keyboard := tgbotapi.NewReplyKeyboard(rows...)
	keyboard.OneTimeKeyboard = true

	msg := tgbotapi.NewMessage(target.ChatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = keyboard
	return m.send(ctx, target, msg)
}

func (m *Messenger) send(ctx context.Context, target messaging.ReplyTarget, msg tgbotapi.MessageConfig) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := m.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send message to chat %d: %w", target.ChatID, err)
	}
	logger.FromContext(ctx).Debug().Int64("chat_id", target.ChatID).Msg("Message sent")
	return nil
}
