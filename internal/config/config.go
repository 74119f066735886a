package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultAppName        = "FundsTransfer"
	defaultAppEnv         = "development"
	defaultPort           = "8080"
	defaultLogLevel       = "info"
	defaultShutdownDelay  = 10 * time.Second
	defaultIdempotencyTTL = 24 * time.Hour

	defaultNotifyTransport    = TransportLog
	defaultNotifyWorkers      = 4
	defaultNotifyQueueSize    = 1024
	defaultNotifyMaxAttempts  = 3
	defaultNotifyRetryBackoff = 500 * time.Millisecond
	defaultNotifyExchange     = "transfer_events"
	defaultNotifyStream       = "transfer:alerts"
	defaultTransferRateLimit  = 10
)

// Notification transports.
const (
	TransportLog   = "log"
	TransportAMQP  = "amqp"
	TransportRedis = "redis"
)

// NotifyConfig tunes the notification dispatcher.
type NotifyConfig struct {
	Transport    string
	Workers      int
	QueueSize    int
	MaxAttempts  int
	RetryBackoff time.Duration
	Exchange     string
	Stream       string
}

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	DatabaseURL    string
	RedisURL       string
	AMQPURL        string
	JWTSecret      string
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration

	// TransferAttemptsPerMinute caps send-funds calls per user.
	TransferAttemptsPerMinute int

	Notify NotifyConfig
}

// Load reads configuration values from the environment, after merging an
// optional .env file, and populates a Config instance.
func Load() (Config, error) {
	// a missing .env file is normal outside local development
	_ = godotenv.Load()

	cfg := Config{
		AppName:     getEnv("APP_NAME", defaultAppName),
		AppEnv:      getEnv("APP_ENV", defaultAppEnv),
		Port:        getEnv("PORT", defaultPort),
		LogLevel:    strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),
		AMQPURL:     os.Getenv("AMQP_URL"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		Notify: NotifyConfig{
			Transport: strings.ToLower(getEnv("NOTIFY_TRANSPORT", defaultNotifyTransport)),
			Exchange:  getEnv("NOTIFY_EXCHANGE", defaultNotifyExchange),
			Stream:    getEnv("NOTIFY_STREAM", defaultNotifyStream),
		},
	}

	var err error
	if cfg.ShutdownPeriod, err = durationEnv("SHUTDOWN_TIMEOUT", defaultShutdownDelay); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = durationEnv("IDEMPOTENCY_TTL", defaultIdempotencyTTL); err != nil {
		return Config{}, err
	}
	if cfg.Notify.RetryBackoff, err = durationEnv("NOTIFY_RETRY_BACKOFF", defaultNotifyRetryBackoff); err != nil {
		return Config{}, err
	}
	if cfg.Notify.Workers, err = intEnv("NOTIFY_WORKERS", defaultNotifyWorkers); err != nil {
		return Config{}, err
	}
	if cfg.Notify.QueueSize, err = intEnv("NOTIFY_QUEUE_SIZE", defaultNotifyQueueSize); err != nil {
		return Config{}, err
	}
	if cfg.Notify.MaxAttempts, err = intEnv("NOTIFY_MAX_ATTEMPTS", defaultNotifyMaxAttempts); err != nil {
		return Config{}, err
	}
	if cfg.TransferAttemptsPerMinute, err = intEnv("TRANSFER_ATTEMPTS_PER_MINUTE", defaultTransferRateLimit); err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must be set")
	}
	if !c.IsDevelopment() {
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL must be set when APP_ENV=%s", c.AppEnv)
		}
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL must be set when APP_ENV=%s", c.AppEnv)
		}
	}
	switch c.Notify.Transport {
	case TransportLog:
	case TransportRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL must be set when NOTIFY_TRANSPORT=redis")
		}
	case TransportAMQP:
		if c.AMQPURL == "" {
			return fmt.Errorf("AMQP_URL must be set when NOTIFY_TRANSPORT=amqp")
		}
	default:
		return fmt.Errorf("unknown NOTIFY_TRANSPORT %q", c.Notify.Transport)
	}
	if c.Notify.Workers <= 0 || c.Notify.QueueSize <= 0 || c.Notify.MaxAttempts <= 0 {
		return fmt.Errorf("notification workers, queue size and attempts must be positive")
	}
	return nil
}

// IsDevelopment reports whether the service runs in a local environment
// where Postgres and Redis are optional.
func (c Config) IsDevelopment() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// durationEnv reads KEY_SECONDS as whole seconds, falling back to KEY as a
// Go duration string.
func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	secondsKey := key + "_SECONDS"
	if v := os.Getenv(secondsKey); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", secondsKey, err)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", key, err)
		}
		return d, nil
	}
	return fallback, nil
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
