package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	YNAB       YNABConfig
	Telegram   TelegramConfig
	Encryption EncryptionConfig
	Bot        BotConfig
	TLS        TLSConfig
	Telemetry  TelemetryConfig
	Log        LogConfig
}

type ServerConfig struct {
	Port string
	Host string
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type YNABConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	APIURL       string
	AuthURL      string
}

type TelegramConfig struct {
	Token       string
	APIEndpoint string
	ProxyURL    string
}

type EncryptionConfig struct {
	Key string
}

type BotConfig struct {
	Workers        int
	QueueSize      int
	JobTimeout     time.Duration
	MergeLockScope string
	MessagesFile   string
}

type TLSConfig struct {
	Enabled  bool
	CertPath string
	KeyPath  string
}

type TelemetryConfig struct {
	Enabled      bool
	ServiceName  string
	OTLPEndpoint string
	MetricsPort  string
}

type LogConfig struct {
	Level  string
	Pretty bool
}

// Load reads configuration from the environment. A .env file in the working
// directory, when present, fills variables that are not already set.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	dbPort, err := getIntEnv("DB_PORT", 5432)
	if err != nil {
		return nil, err
	}
	dbMaxOpen, err := getIntEnv("DB_MAX_OPEN_CONNS", 10)
	if err != nil {
		return nil, err
	}
	dbMaxIdle, err := getIntEnv("DB_MAX_IDLE_CONNS", 2)
	if err != nil {
		return nil, err
	}
	dbLifetime, err := getDurationEnv("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	botWorkers, err := getIntEnv("BOT_WORKERS", 8)
	if err != nil {
		return nil, err
	}
	botQueueSize, err := getIntEnv("BOT_QUEUE_SIZE", 100)
	if err != nil {
		return nil, err
	}
	botJobTimeout, err := getDurationEnv("BOT_JOB_TIMEOUT", 2*time.Minute)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Host: getEnv("HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            dbPort,
			User:            getEnv("DB_USER", "budgetbridge"),
			Password:        getEnv("DB_PASSWORD", ""),
			DBName:          getEnv("DB_NAME", "budgetbridge"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    dbMaxOpen,
			MaxIdleConns:    dbMaxIdle,
			ConnMaxLifetime: dbLifetime,
		},
		YNAB: YNABConfig{
			ClientID:     getEnv("YNAB_CLIENT_ID", ""),
			ClientSecret: getEnv("YNAB_CLIENT_SECRET", ""),
			RedirectURL:  getEnv("YNAB_REDIRECT_URI", ""),
			APIURL:       getEnv("YNAB_API_URL", "https://api.ynab.com/v1"),
			AuthURL:      getEnv("YNAB_AUTH_URL", "https://app.ynab.com"),
		},
		Telegram: TelegramConfig{
			Token:       getEnv("TELEGRAM_TOKEN", ""),
			APIEndpoint: getEnv("TELEGRAM_API_ENDPOINT", ""),
			ProxyURL:    getEnv("TELEGRAM_PROXY_URL", ""),
		},
		Encryption: EncryptionConfig{
			Key: getEnv("ENCRYPTION_KEY", ""),
		},
		Bot: BotConfig{
			Workers:        botWorkers,
			QueueSize:      botQueueSize,
			JobTimeout:     botJobTimeout,
			MergeLockScope: getEnv("MERGE_LOCK_SCOPE", "account"),
			MessagesFile:   getEnv("MESSAGES_FILE", ""),
		},
		TLS: TLSConfig{
			Enabled:  getBoolEnv("TLS_ENABLED", false),
			CertPath: getEnv("TLS_CERT_PATH", ""),
			KeyPath:  getEnv("TLS_KEY_PATH", ""),
		},
		Telemetry: TelemetryConfig{
			Enabled:      getBoolEnv("OTEL_ENABLED", false),
			ServiceName:  getEnv("OTEL_SERVICE_NAME", "budgetbridge"),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_ENDPOINT", "localhost:4317"),
			MetricsPort:  getEnv("METRICS_PORT", "9464"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Pretty: getBoolEnv("LOG_PRETTY", false),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Encryption.Key == "" {
		return fmt.Errorf("ENCRYPTION_KEY is required")
	}
	if len(c.Encryption.Key) != 32 {
		return fmt.Errorf("ENCRYPTION_KEY must be exactly 32 bytes")
	}

	switch c.Bot.MergeLockScope {
	case "account", "global":
	default:
		return fmt.Errorf("MERGE_LOCK_SCOPE must be \"account\" or \"global\", got %q", c.Bot.MergeLockScope)
	}
	if c.Bot.Workers < 1 {
		return fmt.Errorf("BOT_WORKERS must be positive")
	}
	if c.Bot.QueueSize < 1 {
		return fmt.Errorf("BOT_QUEUE_SIZE must be positive")
	}

	if c.TLS.Enabled {
		if c.TLS.CertPath == "" {
			return fmt.Errorf("TLS_CERT_PATH is required when TLS_ENABLED=true")
		}
		if c.TLS.KeyPath == "" {
			return fmt.Errorf("TLS_KEY_PATH is required when TLS_ENABLED=true")
		}
	}
	return nil
}

// ValidateBot checks the settings only the bot service needs; the admin CLI
// runs without them.
func (c *Config) ValidateBot() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("TELEGRAM_TOKEN is required")
	}
	if c.YNAB.ClientID == "" {
		return fmt.Errorf("YNAB_CLIENT_ID is required")
	}
	if c.YNAB.ClientSecret == "" {
		return fmt.Errorf("YNAB_CLIENT_SECRET is required")
	}
	if c.YNAB.RedirectURL == "" {
		return fmt.Errorf("YNAB_REDIRECT_URI is required")
	}
	return nil
}

func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	// Accept: true, false, 1, 0, yes, no (case-insensitive)
	switch strings.ToLower(value) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return defaultValue
	}
}
