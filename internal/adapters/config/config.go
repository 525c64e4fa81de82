package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"hermes/pkg/errors"
)

type Config struct {
	App           AppConfig
	Postgres      PostgresConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	Telegram      TelegramConfig
	Exchanges     ExchangesConfig
	Arbitrage     ArbitrageConfig
	Metrics       MetricsConfig
	ErrorTracking ErrorTrackingConfig
}

type AppConfig struct {
	Name          string `envconfig:"APP_NAME" default:"hermes"`
	Env           string `envconfig:"APP_ENV" default:"development"`
	LogLevel      string `envconfig:"LOG_LEVEL" default:"info"`
	Debug         bool   `envconfig:"DEBUG" default:"false"`
	EncryptionKey string `envconfig:"ENCRYPTION_KEY" required:"true"` // 32 bytes for AES-256
}

type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST" required:"true"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" required:"true"`
	Password string `envconfig:"POSTGRES_PASSWORD" required:"true"`
	Database string `envconfig:"POSTGRES_DB" required:"true"`
	SSLMode  string `envconfig:"POSTGRES_SSL_MODE" default:"disable"`
	MaxConns int    `envconfig:"POSTGRES_MAX_CONNS" default:"25"`
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" required:"true"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type KafkaConfig struct {
	Brokers []string `envconfig:"KAFKA_BROKERS" required:"true"`
	GroupID string   `envconfig:"KAFKA_GROUP_ID" default:"hermes"`
}

type TelegramConfig struct {
	Enabled  bool    `envconfig:"TELEGRAM_ENABLED" default:"false"`
	BotToken string  `envconfig:"TELEGRAM_BOT_TOKEN"`
	ChatIDs  []int64 `envconfig:"TELEGRAM_CHAT_IDS"`
}

// ExchangesConfig holds venue credentials. Binance credentials are resolved
// per subaccount from the database; Bybit and OKX use these central keys.
type ExchangesConfig struct {
	BybitAPIKey   string `envconfig:"BYBIT_API_KEY"`
	BybitSecret   string `envconfig:"BYBIT_API_SECRET"`
	OKXAPIKey     string `envconfig:"OKX_API_KEY"`
	OKXSecret     string `envconfig:"OKX_API_SECRET"`
	OKXPassphrase string `envconfig:"OKX_API_PASSPHRASE"`
}

// ArbitrageConfig tunes the dual-leg execution loop
type ArbitrageConfig struct {
	ParallelJobs      int           `envconfig:"ARBITRAGE_PARALLEL_JOBS" default:"5"`
	PollInterval      time.Duration `envconfig:"ARBITRAGE_POLL_INTERVAL" default:"2s"`
	RetryDelay        time.Duration `envconfig:"ARBITRAGE_RETRY_DELAY" default:"2s"`
	PlacementAttempts int           `envconfig:"ARBITRAGE_PLACEMENT_ATTEMPTS" default:"10"`
	ResolveAttempts   int           `envconfig:"ARBITRAGE_RESOLVE_ATTEMPTS" default:"5"`
	QuoteFreshness    time.Duration `envconfig:"ARBITRAGE_QUOTE_FRESHNESS" default:"5s"`
}

type MetricsConfig struct {
	Enabled bool   `envconfig:"METRICS_ENABLED" default:"true"`
	Addr    string `envconfig:"METRICS_ADDR" default:":9090"`
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"true"`
	Provider    string `envconfig:"ERROR_TRACKING_PROVIDER" default:"sentry"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

// Load reads configuration from environment variables
// It first tries to load .env file (useful for local development)
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not exists)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	return &cfg, nil
}
