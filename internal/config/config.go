package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service. Process wiring
// only lives here; operational thresholds belong to the rules document.
type Config struct {
	App        AppConfig
	Postgres   PostgresConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
	Logger     LoggerConfig
	Worker     WorkerConfig
	Escalation EscalationConfig
	Ident      IdentConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// KafkaConfig holds broker addresses for the stream escalation channel.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// WorkerConfig paces the background engines.
type WorkerConfig struct {
	EvaluateIntervalSeconds     int
	PauseEnforceIntervalSeconds int
	RulesRefreshSeconds         int
	TickTimeoutSeconds          int
	DeliveryStream              string
	DeliveryGroup               string
	DeliveryConsumer            string
}

// EscalationConfig holds delivery channel endpoints and secrets.
type EscalationConfig struct {
	TelegramAPIBase        string
	TelegramBotToken       string
	TelegramChatID         int64
	WebhookURL             string
	WebhookSecret          string
	DeliveryTimeoutSeconds int
}

// IdentConfig seeds the snowflake ID generator. Every process needs a
// distinct node id so concurrently minted IDs never collide.
type IdentConfig struct {
	NodeID int64
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	chatID, err := strconv.ParseInt(getEnv("ESCALATION_TELEGRAM_CHAT_ID", "0"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid ESCALATION_TELEGRAM_CHAT_ID: %w", err)
	}
	nodeID, err := strconv.ParseInt(getEnv("IDENT_NODE_ID", "1"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid IDENT_NODE_ID: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "rmbot-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Kafka: KafkaConfig{
			Brokers: splitList(getEnv("KAFKA_BROKERS", "127.0.0.1:9092")),
			Topic:   getEnv("KAFKA_ESCALATION_TOPIC", "rmbot.escalations"),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Worker: WorkerConfig{
			EvaluateIntervalSeconds:     getEnvAsInt("WORKER_EVALUATE_INTERVAL_SECONDS", 60),
			PauseEnforceIntervalSeconds: getEnvAsInt("WORKER_PAUSE_ENFORCE_INTERVAL_SECONDS", 30),
			RulesRefreshSeconds:         getEnvAsInt("WORKER_RULES_REFRESH_SECONDS", 60),
			TickTimeoutSeconds:          getEnvAsInt("WORKER_TICK_TIMEOUT_SECONDS", 20),
			DeliveryStream:              getEnv("WORKER_DELIVERY_STREAM", "rmbot:deliveries"),
			DeliveryGroup:               getEnv("WORKER_DELIVERY_GROUP", "escalation-workers"),
			DeliveryConsumer:            getEnv("WORKER_DELIVERY_CONSUMER", defaultConsumerName()),
		},
		Escalation: EscalationConfig{
			TelegramAPIBase:        getEnv("ESCALATION_TELEGRAM_API_BASE", "https://api.telegram.org"),
			TelegramBotToken:       os.Getenv("ESCALATION_TELEGRAM_BOT_TOKEN"),
			TelegramChatID:         chatID,
			WebhookURL:             getEnv("ESCALATION_WEBHOOK_URL", ""),
			WebhookSecret:          getEnv("ESCALATION_WEBHOOK_SECRET", "dev-secret"),
			DeliveryTimeoutSeconds: getEnvAsInt("ESCALATION_DELIVERY_TIMEOUT_SECONDS", 10),
		},
		Ident: IdentConfig{
			NodeID: nodeID,
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// EvaluateInterval returns the SLA evaluator tick period.
func (w WorkerConfig) EvaluateInterval() time.Duration {
	return time.Duration(w.EvaluateIntervalSeconds) * time.Second
}

// PauseEnforceInterval returns the pause budget enforcer tick period.
func (w WorkerConfig) PauseEnforceInterval() time.Duration {
	return time.Duration(w.PauseEnforceIntervalSeconds) * time.Second
}

// RulesRefreshInterval returns the rules snapshot refresh period.
func (w WorkerConfig) RulesRefreshInterval() time.Duration {
	return time.Duration(w.RulesRefreshSeconds) * time.Second
}

// TickTimeout returns the per-tick context deadline.
func (w WorkerConfig) TickTimeout() time.Duration {
	return time.Duration(w.TickTimeoutSeconds) * time.Second
}

// DeliveryTimeout returns the per-channel delivery deadline.
func (e EscalationConfig) DeliveryTimeout() time.Duration {
	return time.Duration(e.DeliveryTimeoutSeconds) * time.Second
}

func defaultConsumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "worker-1"
	}
	return host
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
