package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func setRequiredEnvVars(t *testing.T) {
	t.Helper()
	t.Setenv("ENCRYPTION_KEY", "01234567890123456789012345678901") // 32 bytes
}

func TestLoad_Success(t *testing.T) {
	setRequiredEnvVars(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("Server.Port = %q, want %q", cfg.Server.Port, "8080")
	}
	if cfg.Database.Port != 5432 {
		t.Errorf("Database.Port = %d, want %d", cfg.Database.Port, 5432)
	}
	if cfg.YNAB.APIURL != "https://api.ynab.com/v1" {
		t.Errorf("YNAB.APIURL = %q", cfg.YNAB.APIURL)
	}
	if cfg.Bot.MergeLockScope != "account" {
		t.Errorf("Bot.MergeLockScope = %q, want %q", cfg.Bot.MergeLockScope, "account")
	}
	if cfg.Bot.JobTimeout != 2*time.Minute {
		t.Errorf("Bot.JobTimeout = %v, want 2m", cfg.Bot.JobTimeout)
	}
}

func TestLoad_MissingEncryptionKey(t *testing.T) {
	t.Setenv("ENCRYPTION_KEY", "")
	os.Unsetenv("ENCRYPTION_KEY")

	_, err := Load()
	if err == nil {
		t.Error("Load() expected error for missing ENCRYPTION_KEY, got nil")
	}
}

func TestLoad_InvalidEncryptionKeyLength(t *testing.T) {
	t.Setenv("ENCRYPTION_KEY", "too-short")

	_, err := Load()
	if err == nil {
		t.Error("Load() expected error for invalid ENCRYPTION_KEY length, got nil")
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"DB_PORT", "not-a-number"},
		{"DB_CONN_MAX_LIFETIME", "forever"},
		{"BOT_WORKERS", "many"},
		{"BOT_WORKERS", "0"},
		{"BOT_QUEUE_SIZE", "-1"},
		{"BOT_JOB_TIMEOUT", "soon"},
		{"MERGE_LOCK_SCOPE", "budget"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			setRequiredEnvVars(t)
			t.Setenv(tt.key, tt.value)

			if _, err := Load(); err == nil {
				t.Errorf("Load() expected error for %s=%q, got nil", tt.key, tt.value)
			}
		})
	}
}

func TestLoad_TLSValidation(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("TLS_ENABLED", "true")
	t.Setenv("TLS_CERT_PATH", "/path/to/cert")
	t.Setenv("TLS_KEY_PATH", "")

	_, err := Load()
	if err == nil {
		t.Error("Load() expected error for TLS enabled without key path, got nil")
	}
}

func TestLoad_BotConfig(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("BOT_WORKERS", "3")
	t.Setenv("BOT_QUEUE_SIZE", "7")
	t.Setenv("MERGE_LOCK_SCOPE", "global")
	t.Setenv("LOG_PRETTY", "yes")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Bot.Workers != 3 || cfg.Bot.QueueSize != 7 {
		t.Errorf("Bot = %+v", cfg.Bot)
	}
	if cfg.Bot.MergeLockScope != "global" {
		t.Errorf("Bot.MergeLockScope = %q, want global", cfg.Bot.MergeLockScope)
	}
	if !cfg.Log.Pretty {
		t.Error("Log.Pretty should be true")
	}
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	env := "ENCRYPTION_KEY=abcdefghijabcdefghijabcdefghij12\nTELEGRAM_TOKEN=from-dotenv\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)
	t.Setenv("TELEGRAM_TOKEN", "")
	os.Unsetenv("TELEGRAM_TOKEN")
	t.Setenv("ENCRYPTION_KEY", "")
	os.Unsetenv("ENCRYPTION_KEY")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Telegram.Token != "from-dotenv" {
		t.Errorf("Telegram.Token = %q, want %q", cfg.Telegram.Token, "from-dotenv")
	}
}

func TestConfig_ValidateBot(t *testing.T) {
	complete := func() *Config {
		return &Config{
			Telegram: TelegramConfig{Token: "t"},
			YNAB:     YNABConfig{ClientID: "id", ClientSecret: "secret", RedirectURL: "https://bot.example.com/oauth/callback"},
		}
	}

	if err := complete().ValidateBot(); err != nil {
		t.Errorf("ValidateBot() error = %v", err)
	}

	tests := map[string]func(c *Config){
		"token":         func(c *Config) { c.Telegram.Token = "" },
		"client id":     func(c *Config) { c.YNAB.ClientID = "" },
		"client secret": func(c *Config) { c.YNAB.ClientSecret = "" },
		"redirect":      func(c *Config) { c.YNAB.RedirectURL = "" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			c := complete()
			mutate(c)
			if err := c.ValidateBot(); err == nil {
				t.Error("ValidateBot() expected error, got nil")
			}
		})
	}
}

func TestGetBoolEnv(t *testing.T) {
	tests := []struct {
		value    string
		defVal   bool
		expected bool
	}{
		{"true", false, true},
		{"TRUE", false, true},
		{"1", false, true},
		{"yes", false, true},
		{"false", true, false},
		{"0", true, false},
		{"no", true, false},
		{"invalid", true, true},   // returns default
		{"invalid", false, false}, // returns default
		{"", true, true},          // empty returns default
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			key := "TEST_BOOL_ENV"
			if tt.value == "" {
				os.Unsetenv(key)
			} else {
				t.Setenv(key, tt.value)
			}

			got := getBoolEnv(key, tt.defVal)
			if got != tt.expected {
				t.Errorf("getBoolEnv(%q, %v) = %v, want %v", tt.value, tt.defVal, got, tt.expected)
			}
		})
	}
}

func TestDatabaseConfig_ConnectionString(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "testuser",
		Password: "testpass",
		DBName:   "testdb",
		SSLMode:  "disable",
	}

	expected := "host=localhost port=5432 user=testuser password=testpass dbname=testdb sslmode=disable"
	got := cfg.ConnectionString()
	if got != expected {
		t.Errorf("ConnectionString() = %q, want %q", got, expected)
	}
}
