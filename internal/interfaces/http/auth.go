package http

import (
	"bytes"
	"fmt"
	"net/http"
	"net/url"
	"regexp"

	"budgetbridge/internal/shared/logger"
	"budgetbridge/internal/shared/messages"
	"budgetbridge/internal/web"
)

// Telegram deep-link payloads are limited to this alphabet and length.
var startPayload = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// AuthHandler serves the OAuth redirect target. The authorization code is
// handed back to the bot as "/start <code>", either through a Telegram deep
// link or by showing the command for the user to paste.
type AuthHandler struct {
	botUsername string
	texts       *messages.Messages
}

func NewAuthHandler(botUsername string, texts *messages.Messages) *AuthHandler {
	return &AuthHandler{
		botUsername: botUsername,
		texts:       texts,
	}
}

type callbackPage struct {
	Message string
	Command string
	BotURL  string
}

// HandleCallback handles GET /oauth/callback?code=...
func (h *AuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	log := logger.FromContext(r.Context())
	query := r.URL.Query()

	if reason := query.Get("error"); reason != "" {
		if desc := query.Get("error_description"); desc != "" {
			reason = desc
		}
		log.Warn().Str("reason", reason).Msg("OAuth authorization denied")
		h.render(w, http.StatusBadRequest, callbackPage{Message: fmt.Sprintf(h.texts.AuthDenied, reason)})
		return
	}

	code := query.Get("code")
	if code == "" {
		http.Error(w, "Missing authorization code", http.StatusBadRequest)
		return
	}

	deepLink := h.deepLink(code)
	if deepLink != "" {
		log.Info().Msg("OAuth callback redirected to bot")
		http.Redirect(w, r, deepLink, http.StatusFound)
		return
	}

	page := callbackPage{
		Message: h.texts.AuthLanding,
		Command: "/start " + code,
	}
	if h.botUsername != "" {
		page.BotURL = "https://t.me/" + url.PathEscape(h.botUsername)
	}
	h.render(w, http.StatusOK, page)
}

// deepLink returns the t.me link that opens the bot with "/start <code>", or
// "" when the code cannot travel in a deep link.
func (h *AuthHandler) deepLink(code string) string {
	if h.botUsername == "" || !startPayload.MatchString(code) {
		return ""
	}
	return fmt.Sprintf("https://t.me/%s?start=%s", url.PathEscape(h.botUsername), code)
}

func (h *AuthHandler) render(w http.ResponseWriter, status int, page callbackPage) {
	var buf bytes.Buffer
	if err := web.OAuthCallback.Execute(&buf, page); err != nil {
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}
