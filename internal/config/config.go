// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"finflow-ledger/pkg/db" // Import db package for its Config struct
)

// AppConfig holds all application-wide configurations.
type AppConfig struct {
	ServerPort string
	LogLevel   string
	DB         db.Config

	// AutoMigrate applies the embedded schema on startup.
	AutoMigrate bool
	Transfer    TransferConfig
	Kafka       KafkaConfig

	// OperatorIDs are the callers allowed to deposit and to audit other users.
	OperatorIDs []uuid.UUID
}

// TransferConfig controls the transfer engine's conflict retry loop.
type TransferConfig struct {
	MaxAttempts  int           // Attempts per transfer before a conflict is surfaced
	RetryBackoff time.Duration // Multiplied by the attempt number between attempts
}

// KafkaConfig configures the TransferCompleted publisher. No brokers disables publishing.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// LoadConfig loads configuration from environment variables.
// A .env file in the working directory, when present, is loaded first; variables
// already set in the environment win.
// It returns an AppConfig instance or an error if any variable is invalid.
func LoadConfig() (*AppConfig, error) {
	_ = godotenv.Load() // Missing .env is the normal case outside local development

	dbPort, err := getEnvInt("DB_PORT", 5432)
	if err != nil {
		return nil, err
	}
	maxOpen, err := getEnvInt("DB_MAX_OPEN_CONNS", 25)
	if err != nil {
		return nil, err
	}
	maxIdle, err := getEnvInt("DB_MAX_IDLE_CONNS", 10)
	if err != nil {
		return nil, err
	}
	connLifetime, err := getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	if err != nil {
		return nil, err
	}
	autoMigrate, err := getEnvBool("DB_AUTO_MIGRATE", true)
	if err != nil {
		return nil, err
	}
	maxAttempts, err := getEnvInt("TRANSFER_MAX_ATTEMPTS", 3)
	if err != nil {
		return nil, err
	}
	if maxAttempts < 1 {
		return nil, fmt.Errorf("invalid TRANSFER_MAX_ATTEMPTS: must be at least 1, got %d", maxAttempts)
	}
	backoff, err := getEnvDuration("TRANSFER_RETRY_BACKOFF", 20*time.Millisecond)
	if err != nil {
		return nil, err
	}
	operatorIDs, err := getEnvUUIDs("LEDGER_OPERATOR_IDS")
	if err != nil {
		return nil, err
	}

	return &AppConfig{
		ServerPort: getEnv("SERVER_PORT", "8080"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		DB: db.Config{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            dbPort,
			User:            getEnv("DB_USER", "user"),
			Password:        getEnv("DB_PASSWORD", "password"),
			DBName:          getEnv("DB_NAME", "ledgerdb"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    maxOpen,
			MaxIdleConns:    maxIdle,
			ConnMaxLifetime: connLifetime,
		},
		AutoMigrate: autoMigrate,
		Transfer: TransferConfig{
			MaxAttempts:  maxAttempts,
			RetryBackoff: backoff,
		},
		Kafka: KafkaConfig{
			Brokers: splitList(os.Getenv("KAFKA_BROKERS")),
			Topic:   getEnv("KAFKA_TOPIC", "transfer_completed"),
		},
		OperatorIDs: operatorIDs,
	}, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getEnvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getEnvUUIDs(key string) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for _, v := range splitList(os.Getenv(key)) {
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", key, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// splitList parses a comma separated list, dropping empty items.
func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}
