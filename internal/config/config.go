// Package config предоставляет структуры и функцию для парсинга и загрузки конфига.
//
// Значения читаются из YAML-файла (CONFIG_PATH), если он задан, и из переменных
// окружения. Локальный .env подхватывается перед чтением, если существует.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config общая структура для хранения настроек.
type Config struct {
	Env             string `yaml:"env" env:"APP_ENV" env-default:"local"`
	SessionSecret   string `yaml:"session_secret" env:"SESSION_SECRET"`
	DatabaseURL     string `yaml:"database_url" env:"DATABASE_URL"`
	MigrationsDir   string `yaml:"migrations_dir" env:"MIGRATIONS_DIR" env-default:"./migrations"`
	PDFDir          string `yaml:"pdf_dir" env:"PDF_DIR" env-default:"generated-pdfs"`
	HTTPServer      `yaml:"http_server"`
	JWTToken        `yaml:"jwttoken"`
	RedisConnection `yaml:"redis_connection"`
	RabbitMQ        `yaml:"rabbitmq"`
	Stripe          `yaml:"stripe"`
	OpenAI          `yaml:"openai"`
	Generation      `yaml:"generation"`
	SMTP            `yaml:"smtp"`
	Telemetry       `yaml:"telemetry"`
}

// HTTPServer структура для настройки сервера.
type HTTPServer struct {
	AddressHTTP       string        `yaml:"addresshttp" env:"HTTP_ADDRESS" env-default:":8080"`
	TimeoutHTTP       time.Duration `yaml:"timeouthttp" env:"HTTP_TIMEOUT" env-default:"60s"`
	IdleTimeout       time.Duration `yaml:"idle_timeout" env:"HTTP_IDLE_TIMEOUT" env-default:"120s"`
	GRPCHealthAddress string        `yaml:"grpc_health_address" env:"GRPC_HEALTH_ADDRESS" env-default:":50051"`
}

// JWTToken структура для работы с jwt-токеном.
type JWTToken struct {
	TokenTTL time.Duration `yaml:"token_ttl" env:"TOKEN_TTL" env-default:"168h"`
}

// RedisConnection структура для настройки подключения к redis.
// Пустой адрес отключает кеш.
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis" env:"REDIS_ADDR"`
	Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
	User         string        `yaml:"user" env:"REDIS_USER"`
	DB           int           `yaml:"db" env:"REDIS_DB"`
	MaxRetries   int           `yaml:"max_retries" env:"REDIS_MAX_RETRIES" env-default:"3"`
	DialTimeout  time.Duration `yaml:"dial_timeout" env:"REDIS_DIAL_TIMEOUT" env-default:"5s"`
	TimeoutRedis time.Duration `yaml:"timeoutredis" env:"REDIS_TIMEOUT" env-default:"3s"`
	PlansTTL     time.Duration `yaml:"plans_ttl" env:"REDIS_PLANS_TTL" env-default:"10m"`
}

// RabbitMQ настройки брокера. Пустой URL включает пул генерации внутри процесса.
type RabbitMQ struct {
	RabbitMQURL        string        `yaml:"url" env:"RABBITMQ_URL"`
	RabbitMQMaxRetries int           `yaml:"max_retries" env:"RABBITMQ_MAX_RETRIES" env-default:"5"`
	RabbitMQRetryDelay time.Duration `yaml:"retry_delay" env:"RABBITMQ_RETRY_DELAY" env-default:"2s"`
}

// Stripe ключи платёжного провайдера. Без SecretKey или WebhookSecret платежи недоступны.
type Stripe struct {
	StripeSecretKey      string `yaml:"secret_key" env:"STRIPE_SECRET_KEY"`
	StripePublishableKey string `yaml:"publishable_key" env:"STRIPE_PUBLISHABLE_KEY"`
	StripeWebhookSecret  string `yaml:"webhook_secret" env:"STRIPE_WEBHOOK_SECRET"`
}

// OpenAI настройки генератора содержимого. Без APIKey создание писем недоступно.
type OpenAI struct {
	OpenAIAPIKey  string `yaml:"api_key" env:"OPENAI_API_KEY"`
	OpenAIModel   string `yaml:"model" env:"OPENAI_MODEL" env-default:"gpt-4o"`
	OpenAIBaseURL string `yaml:"base_url" env:"OPENAI_BASE_URL" env-default:"https://api.openai.com/v1"`
}

// Generation настройки фоновой генерации писем.
type Generation struct {
	GenerationTimeout    time.Duration `yaml:"timeout" env:"GENERATION_TIMEOUT" env-default:"90s"`
	GenerationWorkers    int           `yaml:"workers" env:"GENERATION_WORKERS" env-default:"4"`
	StuckGenerationAfter time.Duration `yaml:"stuck_after" env:"STUCK_GENERATION_AFTER" env-default:"10m"`
	ReaperInterval       time.Duration `yaml:"reaper_interval" env:"REAPER_INTERVAL" env-default:"1m"`
}

// SMTP настройки отправки уведомлений.
type SMTP struct {
	SMTPHost string `yaml:"host" env:"SMTP_HOST"`
	SMTPPort string `yaml:"port" env:"SMTP_PORT" env-default:"587"`
	SMTPUser string `yaml:"user" env:"SMTP_USER"`
	SMTPPass string `yaml:"pass" env:"SMTP_PASS"`
}

// Telemetry настройки трассировки и отчётов об ошибках.
type Telemetry struct {
	OtelEnabled      bool    `yaml:"otel_enabled" env:"OTEL_ENABLED"`
	OtelEndpoint     string  `yaml:"otel_endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OtelInsecure     bool    `yaml:"otel_insecure" env:"OTEL_INSECURE" env-default:"true"`
	OtelSampleRate   float64 `yaml:"otel_sample_rate" env:"OTEL_SAMPLE_RATE" env-default:"0.1"`
	ServiceName      string  `yaml:"service_name" env:"OTEL_SERVICE_NAME" env-default:"legal-letters"`
	SentryDSN        string  `yaml:"sentry_dsn" env:"SENTRY_DSN"`
	SentrySampleRate float64 `yaml:"sentry_sample_rate" env:"SENTRY_TRACES_SAMPLE_RATE" env-default:"0.2"`
}

var (
	// ErrMissingSessionSecret возвращается, если не задан SESSION_SECRET.
	ErrMissingSessionSecret = errors.New("SESSION_SECRET is not set")
	// ErrStuckBeforeTimeout — письмо признаётся зависшим раньше, чем истекает таймаут генерации.
	ErrStuckBeforeTimeout = errors.New("STUCK_GENERATION_AFTER must be greater than GENERATION_TIMEOUT")
)

// Load читает конфигурацию и проверяет обязательные значения.
func Load() (*Config, error) {
	const op = "config.Load"
	_ = godotenv.Load()

	var cfg Config
	if configPath := os.Getenv("CONFIG_PATH"); configPath != "" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: file %s does not exist", op, configPath)
		}
		if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if cfg.SessionSecret == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrMissingSessionSecret)
	}
	if cfg.StuckGenerationAfter <= cfg.GenerationTimeout {
		return nil, fmt.Errorf("%s: %w (%s <= %s)", op, ErrStuckBeforeTimeout, cfg.StuckGenerationAfter, cfg.GenerationTimeout)
	}
	return &cfg, nil
}

// MustLoad загружает конфиг и завершает процесс при ошибке.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}

// PaymentsEnabled сообщает, настроен ли платёжный провайдер.
// Без секрета вебхука события оплаты нельзя проверить, поэтому нужны оба ключа.
func (c *Config) PaymentsEnabled() bool {
	return c.StripeSecretKey != "" && c.StripeWebhookSecret != ""
}

// GenerationEnabled сообщает, настроен ли генератор содержимого.
func (c *Config) GenerationEnabled() bool { return c.OpenAIAPIKey != "" }

func mask(s string) string {
	if s == "" {
		return "<unset>"
	}
	return "<set>"
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"DatabaseURL: %s\n"+
			"PDFDir: %s\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"  Timeout: %s\n"+
			"  IdleTimeout: %s\n"+
			"Redis: %s\n"+
			"RabbitMQ: %s\n"+
			"Stripe: %s\n"+
			"OpenAI: %s (model %s)\n"+
			"Generation:\n"+
			"  Timeout: %s\n"+
			"  Workers: %d\n"+
			"SessionSecret: %s\n",
		c.Env,
		mask(c.DatabaseURL),
		c.PDFDir,
		c.AddressHTTP,
		c.TimeoutHTTP,
		c.IdleTimeout,
		c.AddressRedis,
		mask(c.RabbitMQURL),
		mask(c.StripeSecretKey),
		mask(c.OpenAIAPIKey),
		c.OpenAIModel,
		c.GenerationTimeout,
		c.GenerationWorkers,
		mask(c.SessionSecret),
	)
}
