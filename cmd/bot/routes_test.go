package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	httphandlers "budgetbridge/internal/interfaces/http"
	"budgetbridge/internal/shared/config"
	"budgetbridge/internal/shared/logger"
	"budgetbridge/internal/shared/messages"
)

func testDependencies() *Dependencies {
	return &Dependencies{
		HealthHandler: httphandlers.NewHealthHandler(nil, nil),
		AuthHandler:   httphandlers.NewAuthHandler("budget_bot", messages.Default()),
	}
}

func TestSetupRoutes(t *testing.T) {
	handler := SetupRoutes(testDependencies(), &config.Config{}, logger.NewWithWriter(&bytes.Buffer{}))

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodPost, "/health", http.StatusMethodNotAllowed},
		{http.MethodGet, "/oauth/callback?code=abc", http.StatusFound},
		{http.MethodGet, "/unknown", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, httptest.NewRequest(tt.method, tt.path, nil))

			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d", rr.Code, tt.want)
			}
			if rr.Header().Get("Referrer-Policy") != "no-referrer" {
				t.Error("security headers not applied")
			}
		})
	}
}

func TestSetupRoutes_HSTSWithTLS(t *testing.T) {
	cfg := &config.Config{TLS: config.TLSConfig{Enabled: true}}
	handler := SetupRoutes(testDependencies(), cfg, logger.NewWithWriter(&bytes.Buffer{}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Header().Get("Strict-Transport-Security") == "" {
		t.Error("HSTS header not set when TLS is enabled")
	}
}

func TestTelegramHTTPClient(t *testing.T) {
	if _, err := telegramHTTPClient("http://proxy.local:3128"); err != nil {
		t.Errorf("telegramHTTPClient() error = %v", err)
	}
	if _, err := telegramHTTPClient("://bad"); err == nil {
		t.Error("telegramHTTPClient() expected error for malformed proxy url")
	}
}
