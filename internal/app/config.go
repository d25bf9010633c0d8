package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// StorageDriver выбирает реализацию хранилища продаж.
type StorageDriver string

const (
	StorageDriverMemory   StorageDriver = "memory"
	StorageDriverPostgres StorageDriver = "postgres"
)

const envPrefix = "SALES"

// Config описывает настройки запуска сервиса продаж.
type Config struct {
	HTTPAddr    string `mapstructure:"http_addr"`
	GRPCAddr    string `mapstructure:"grpc_addr"`
	MetricsAddr string `mapstructure:"metrics_addr"`

	StorageDriver       StorageDriver `mapstructure:"storage_driver"`
	PostgresDSN         string        `mapstructure:"postgres_dsn"`
	PostgresAutoMigrate bool          `mapstructure:"postgres_auto_migrate"`

	KafkaBrokers string `mapstructure:"kafka_brokers"`
	KafkaTopic   string `mapstructure:"kafka_topic"`

	OutboxPollInterval time.Duration `mapstructure:"outbox_poll_interval"`
	OutboxBatchSize    int           `mapstructure:"outbox_batch_size"`
	OutboxMaxAttempts  int           `mapstructure:"outbox_max_attempts"`
	OutboxRetryDelay   time.Duration `mapstructure:"outbox_retry_delay"`
	// OutboxMaxPending — порог backlog, после которого /healthz сообщает degraded.
	OutboxMaxPending int `mapstructure:"outbox_max_pending"`

	IdempotencyTTL              time.Duration `mapstructure:"idempotency_ttl"`
	IdempotencyCleanupInterval  time.Duration `mapstructure:"idempotency_cleanup_interval"`
	IdempotencyCleanupBatchSize int           `mapstructure:"idempotency_cleanup_batch_size"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// DefaultConfig возвращает настройки для локального запуска на in-memory хранилище.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:                    ":8080",
		GRPCAddr:                    ":50051",
		MetricsAddr:                 ":9090",
		StorageDriver:               StorageDriverMemory,
		PostgresAutoMigrate:         true,
		KafkaTopic:                  "sales.events",
		OutboxPollInterval:          time.Second,
		OutboxBatchSize:             100,
		OutboxMaxAttempts:           3,
		OutboxRetryDelay:            100 * time.Millisecond,
		OutboxMaxPending:            1000,
		IdempotencyTTL:              24 * time.Hour,
		IdempotencyCleanupInterval:  time.Minute,
		IdempotencyCleanupBatchSize: 500,
		LogLevel:                    "info",
		LogFormat:                   "text",
	}
}

// LoadConfig читает YAML-файл (если path не пуст) и переменные окружения SALES_*.
// Переменные окружения имеют приоритет над файлом.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	defaults := DefaultConfig()
	for key, value := range map[string]any{
		"http_addr":                      defaults.HTTPAddr,
		"grpc_addr":                      defaults.GRPCAddr,
		"metrics_addr":                   defaults.MetricsAddr,
		"storage_driver":                 string(defaults.StorageDriver),
		"postgres_dsn":                   defaults.PostgresDSN,
		"postgres_auto_migrate":          defaults.PostgresAutoMigrate,
		"kafka_brokers":                  defaults.KafkaBrokers,
		"kafka_topic":                    defaults.KafkaTopic,
		"outbox_poll_interval":           defaults.OutboxPollInterval,
		"outbox_batch_size":              defaults.OutboxBatchSize,
		"outbox_max_attempts":            defaults.OutboxMaxAttempts,
		"outbox_retry_delay":             defaults.OutboxRetryDelay,
		"outbox_max_pending":             defaults.OutboxMaxPending,
		"idempotency_ttl":                defaults.IdempotencyTTL,
		"idempotency_cleanup_interval":   defaults.IdempotencyCleanupInterval,
		"idempotency_cleanup_batch_size": defaults.IdempotencyCleanupBatchSize,
		"log_level":                      defaults.LogLevel,
		"log_format":                     defaults.LogFormat,
	} {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate проверяет согласованность настроек.
func (c Config) Validate() error {
	var errs []error
	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			errs = append(errs, errors.New("postgres_dsn is required for postgres storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported storage driver %q", c.StorageDriver))
	}
	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("http_addr must not be empty"))
	}
	if c.OutboxBatchSize <= 0 {
		errs = append(errs, errors.New("outbox_batch_size must be positive"))
	}
	if c.OutboxMaxPending <= 0 {
		errs = append(errs, errors.New("outbox_max_pending must be positive"))
	}
	return errors.Join(errs...)
}

// Brokers разбирает список Kafka-брокеров через запятую.
func (c Config) Brokers() []string {
	var brokers []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
