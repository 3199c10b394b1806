package config

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator"
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/providers/env"
)

type Config struct {
	Primary   Primary         `koanf:"primary"`
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	PayPal    PayPalConfig    `koanf:"paypal"`
	Retry     RetryConfig     `koanf:"retry"`
	Card      CardConfig      `koanf:"card"`
	Redis     RedisConfig     `koanf:"redis"`
	Kafka     KafkaConfig     `koanf:"kafka"`
	Webhook   WebhookConfig   `koanf:"webhook"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	Logger    LoggerConfig    `koanf:"logger"`
	Worker    WorkerConfig    `koanf:"worker"`
}

type WorkerConfig struct {
	Interval   time.Duration `koanf:"interval" validate:"required"`
	BatchSize  int           `koanf:"batch_size" validate:"required"`
	PendingTTL time.Duration `koanf:"pending_ttl" validate:"required"`
}

type Primary struct {
	Env string `koanf:"env" validate:"required"`
}

type ServerConfig struct {
	Port         string        `koanf:"port" validate:"required"`
	ReadTimeout  time.Duration `koanf:"read_timeout" validate:"required"`
	WriteTimeout time.Duration `koanf:"write_timeout" validate:"required"`
	IdleTimeout  time.Duration `koanf:"idle_timeout" validate:"required"`
}

type DatabaseConfig struct {
	Host            string        `koanf:"host" validate:"required"`
	Port            int           `koanf:"port" validate:"required"`
	User            string        `koanf:"user" validate:"required"`
	Password        string        `koanf:"password" validate:"required"`
	Name            string        `koanf:"name" validate:"required"`
	SSLMode         string        `koanf:"ssl_mode" validate:"required"`
	MaxOpenConns    int           `koanf:"max_open_conns" validate:"required"`
	MaxIdleConns    int           `koanf:"max_idle_conns" validate:"required"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime" validate:"required"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time" validate:"required"`
}

type PayPalConfig struct {
	BaseURL      string        `koanf:"base_url" validate:"required,url"`
	ClientID     string        `koanf:"client_id" validate:"required"`
	ClientSecret string        `koanf:"client_secret" validate:"required"`
	WebhookID    string        `koanf:"webhook_id"`
	Timeout      time.Duration `koanf:"timeout" validate:"required"`
	BrandName    string        `koanf:"brand_name"`
	ReturnURL    string        `koanf:"return_url" validate:"required,url"`
	CancelURL    string        `koanf:"cancel_url" validate:"required,url"`
}

// RetryConfig drives the PayPal retry decorator. BaseDelay is in milliseconds.
type RetryConfig struct {
	BaseDelay  int32 `koanf:"base_delay"`
	MaxRetries int32 `koanf:"max_retries"`
}

type CardConfig struct {
	ApprovalRate float64 `koanf:"approval_rate" validate:"gte=0,lte=1"`
}

// RedisConfig is optional; without an address Create is not idempotent.
type RedisConfig struct {
	Addr           string        `koanf:"addr"`
	Password       string        `koanf:"password"`
	DB             int           `koanf:"db"`
	KeyPrefix      string        `koanf:"key_prefix"`
	IdempotencyTTL time.Duration `koanf:"idempotency_ttl"`
}

// KafkaConfig is optional; without brokers lifecycle events are dropped.
type KafkaConfig struct {
	Brokers string `koanf:"brokers"`
	Topic   string `koanf:"topic"`
}

func (k KafkaConfig) BrokerList() []string {
	var brokers []string
	for _, b := range strings.Split(k.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

type WebhookConfig struct {
	VerifySignatures bool `koanf:"verify_signatures"`
}

type RateLimitConfig struct {
	RPS   float64 `koanf:"rps"`
	Burst int     `koanf:"burst"`
}

type LoggerConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

func LoadConfig() (*Config, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
	k := koanf.New(".")

	err := k.Load(env.Provider("PAYMENTS_", ".", func(s string) string {
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(s, "PAYMENTS_")),
			"__",
			".",
		)
	}), nil)
	if err != nil {
		logger.Error("failed to load environment variables", "error", err)
		return nil, err
	}

	mainConfig := &Config{
		Card:      CardConfig{ApprovalRate: 0.95},
		Redis:     RedisConfig{KeyPrefix: "payments:idempotency", IdempotencyTTL: 24 * time.Hour},
		Kafka:     KafkaConfig{Topic: "payments.lifecycle"},
		Webhook:   WebhookConfig{VerifySignatures: true},
		RateLimit: RateLimitConfig{RPS: 20, Burst: 40},
		Retry:     RetryConfig{BaseDelay: 200, MaxRetries: 3},
	}

	err = k.Unmarshal("", mainConfig)
	if err != nil {
		logger.Error("could not unmarshal main config", "error", err)
		return nil, err
	}

	validate := validator.New()

	err = validate.Struct(mainConfig)
	if err != nil {
		logger.Error("config validation failed", "error", err)
		return nil, err
	}

	return mainConfig, nil
}
