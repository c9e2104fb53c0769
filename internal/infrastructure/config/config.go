package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	// Load a .env file from the working directory when one exists.
	_ "github.com/joho/godotenv/autoload"

	pkgkafka "github.com/bibbank/bib/services/loan-servicing/pkg/kafka"
	pgpkg "github.com/bibbank/bib/services/loan-servicing/pkg/postgres"
)

type DatabaseConfig struct {
	URL      string
	Host     string
	User     string
	Password string
	Name     string
	SSLMode  string
	Port     int
	MaxConns int
}

type KafkaConfig struct {
	ClientID           string
	ConsumerGroup      string
	LedgerTopic        string
	NotificationsTopic string
	AccountingDayTopic string
	SASLMechanism      string
	SASLUsername       string
	SASLPassword       string
	Brokers            []string
	TLS                bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	LockTTL  time.Duration
}

// OutboxConfig tunes the relay that delivers committed events the request
// path failed to publish.
type OutboxConfig struct {
	PollInterval time.Duration
	// Settle is how old an entry must be before the relay picks it up.
	Settle    time.Duration
	BatchSize int
}

type TelemetryConfig struct {
	OTLPEndpoint string
	LogLevel     string
	LogFormat    string
	OTLPInsecure bool
}

type Config struct {
	ServiceName        string
	ProductCatalogPath string
	// LockBackend is "redis" or "memory".
	LockBackend string
	DB          DatabaseConfig
	Kafka       KafkaConfig
	Redis       RedisConfig
	Outbox      OutboxConfig
	Telemetry   TelemetryConfig
	GRPCPort    int
	HTTPPort    int

	// GRPCReflection registers the reflection service for grpcurl.
	GRPCReflection bool
}

// Validate reports the first missing or inconsistent setting.
func (c Config) Validate() error {
	switch {
	case c.DB.URL == "" && c.DB.Password == "":
		return errors.New("DB_PASSWORD or DATABASE_URL environment variable is required")
	case c.ProductCatalogPath == "":
		return errors.New("PRODUCT_CATALOG_PATH environment variable is required")
	case len(c.Kafka.Brokers) == 0:
		return errors.New("KAFKA_BROKERS environment variable is required")
	case c.LockBackend != "redis" && c.LockBackend != "memory":
		return fmt.Errorf("LOCK_BACKEND must be redis or memory, got %q", c.LockBackend)
	case c.LockBackend == "redis" && c.Redis.Addr == "":
		return errors.New("REDIS_ADDR environment variable is required for the redis lock backend")
	case c.Outbox.BatchSize <= 0:
		return errors.New("OUTBOX_BATCH_SIZE must be positive")
	}
	return nil
}

func Load() Config {
	return Config{
		GRPCPort: getEnvInt("GRPC_PORT", 9091),
		HTTPPort: getEnvInt("HTTP_PORT", 8091),

		GRPCReflection: getEnvBool("GRPC_REFLECTION", false),
		DB: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "bib"),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", "bib_loan_servicing"),
			SSLMode:  getEnv("DB_SSLMODE", "require"),
			MaxConns: getEnvInt("DB_MAX_CONNS", 10),
		},
		Kafka: KafkaConfig{
			Brokers:            getEnvList("KAFKA_BROKERS", "localhost:9092"),
			ClientID:           getEnv("KAFKA_CLIENT_ID", "loan-servicing"),
			ConsumerGroup:      getEnv("KAFKA_CONSUMER_GROUP", "loan-servicing"),
			LedgerTopic:        getEnv("KAFKA_LEDGER_TOPIC", "loan-servicing.ledger"),
			NotificationsTopic: getEnv("KAFKA_NOTIFICATIONS_TOPIC", "loan-servicing.notifications"),
			AccountingDayTopic: getEnv("KAFKA_ACCOUNTING_DAY_TOPIC", "accounting.day-closed"),
			TLS:                getEnvBool("KAFKA_TLS", false),
			SASLMechanism:      getEnv("KAFKA_SASL_MECHANISM", ""),
			SASLUsername:       getEnv("KAFKA_SASL_USERNAME", ""),
			SASLPassword:       getEnv("KAFKA_SASL_PASSWORD", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			LockTTL:  getEnvDuration("LOAN_LOCK_TTL", 10*time.Second),
		},
		Outbox: OutboxConfig{
			PollInterval: getEnvDuration("OUTBOX_POLL_INTERVAL", time.Second),
			Settle:       getEnvDuration("OUTBOX_SETTLE", 5*time.Second),
			BatchSize:    getEnvInt("OUTBOX_BATCH_SIZE", 100),
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			OTLPInsecure: getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", false),
			LogLevel:     getEnv("LOG_LEVEL", "info"),
			LogFormat:    getEnv("LOG_FORMAT", "json"),
		},
		ProductCatalogPath: getEnv("PRODUCT_CATALOG_PATH", ""),
		LockBackend:        getEnv("LOCK_BACKEND", "redis"),
		ServiceName:        "loan-servicing",
	}
}

func (c Config) GRPCAddr() string {
	return fmt.Sprintf(":%d", c.GRPCPort)
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// Postgres maps the database settings onto pkg/postgres.
func (c Config) Postgres() pgpkg.Config {
	return pgpkg.Config{
		URL:      c.DB.URL,
		Host:     c.DB.Host,
		Port:     c.DB.Port,
		User:     c.DB.User,
		Password: c.DB.Password,
		Database: c.DB.Name,
		SSLMode:  c.DB.SSLMode,
		MaxConns: int32(c.DB.MaxConns),
	}
}

// KafkaClient maps the broker settings onto pkg/kafka.
func (c Config) KafkaClient() pkgkafka.Config {
	return pkgkafka.Config{
		Brokers:       c.Kafka.Brokers,
		ClientID:      c.Kafka.ClientID,
		ConsumerGroup: c.Kafka.ConsumerGroup,
		TLS:           c.Kafka.TLS,
		SASLEnabled:   c.Kafka.SASLMechanism != "",
		SASLMechanism: c.Kafka.SASLMechanism,
		SASLUsername:  c.Kafka.SASLUsername,
		SASLPassword:  c.Kafka.SASLPassword,
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// getEnvList splits a comma-separated value, dropping empty entries.
func getEnvList(key, fallback string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, fallback), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
