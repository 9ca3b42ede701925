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
	App      AppConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	JWT      JWTConfig
	Ledger   LedgerConfig
}

// AppConfig holds application configuration
type AppConfig struct {
	Port     int
	Env      string
	LogLevel string
}

// DatabaseConfig selects the store. Driver is sqlite3, pgx, mongo or memory.
type DatabaseConfig struct {
	Driver   string
	DSN      string
	MongoURI string
	MongoDB  string
}

// RedisConfig enables the distributed employee lock when Addr is set.
type RedisConfig struct {
	Addr string
}

// KafkaConfig enables event publishing when Brokers is non-empty.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type JWTConfig struct {
	Secret string
}

type LedgerConfig struct {
	AccrualInterval time.Duration
	MaxRetries      int
	// StrictFallback makes interactive approval fail, like backfill, when the
	// requested type cannot cover the leave and no fallback type was given.
	StrictFallback bool
	// MaxRangeDays caps the calendar days one request or query may span.
	MaxRangeDays int
}

// Load reads the given .env files (".env" when none are named) and then the
// process environment. A missing file is not an error.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	config := &Config{}

	appPort, err := strconv.Atoi(getEnv("APP_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid APP_PORT: %w", err)
	}
	config.App = AppConfig{
		Port:     appPort,
		Env:      getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	config.Database = DatabaseConfig{
		Driver:   strings.ToLower(getEnv("DB_DRIVER", "sqlite3")),
		DSN:      getEnv("DB_DSN", "leave.db"),
		MongoURI: getEnv("MONGO_URI", ""),
		MongoDB:  getEnv("MONGO_DB", "leave"),
	}

	config.Redis = RedisConfig{Addr: getEnv("REDIS_ADDR", "")}

	config.Kafka = KafkaConfig{
		Brokers: getEnvSlice("KAFKA_BROKERS"),
		Topic:   getEnv("KAFKA_TOPIC", "leave-events"),
	}

	config.JWT = JWTConfig{Secret: getEnv("JWT_SECRET", "")}

	interval, err := time.ParseDuration(getEnv("ACCRUAL_INTERVAL", "1h"))
	if err != nil {
		return nil, fmt.Errorf("invalid ACCRUAL_INTERVAL: %w", err)
	}
	retries, err := strconv.Atoi(getEnv("LEDGER_MAX_RETRIES", "3"))
	if err != nil {
		return nil, fmt.Errorf("invalid LEDGER_MAX_RETRIES: %w", err)
	}
	strict, err := strconv.ParseBool(getEnv("LEDGER_STRICT_FALLBACK", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid LEDGER_STRICT_FALLBACK: %w", err)
	}
	maxRange, err := strconv.Atoi(getEnv("LEDGER_MAX_RANGE_DAYS", "366"))
	if err != nil {
		return nil, fmt.Errorf("invalid LEDGER_MAX_RANGE_DAYS: %w", err)
	}
	config.Ledger = LedgerConfig{
		AccrualInterval: interval,
		MaxRetries:      retries,
		StrictFallback:  strict,
		MaxRangeDays:    maxRange,
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.App.Port <= 0 || c.App.Port > 65535 {
		return fmt.Errorf("APP_PORT out of range: %d", c.App.Port)
	}
	switch c.Database.Driver {
	case "sqlite", "sqlite3", "pgx", "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("DB_DSN is required for driver %s", c.Database.Driver)
		}
	case "memory":
	case "mongo":
		if c.Database.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required for driver mongo")
		}
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.Database.Driver)
	}
	if c.IsProduction() && c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Ledger.AccrualInterval <= 0 {
		return fmt.Errorf("ACCRUAL_INTERVAL must be positive")
	}
	if c.Ledger.MaxRetries < 1 {
		return fmt.Errorf("LEDGER_MAX_RETRIES must be at least 1")
	}
	if c.Ledger.MaxRangeDays < 1 {
		return fmt.Errorf("LEDGER_MAX_RANGE_DAYS must be at least 1")
	}
	return nil
}

func (c *Config) IsProduction() bool { return c.App.Env == "production" }

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string { return ":" + strconv.Itoa(c.App.Port) }

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvSlice(env string) []string {
	value := getEnv(env, "")
	if value == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
