package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageBackendPostgres = "postgres"
	StorageBackendMemory   = "memory"

	LiveFeedPostgres = "postgres"
	LiveFeedRedis    = "redis"
	LiveFeedLocal    = "local"

	DirectoryBackendGRPC      = "grpc"
	DirectoryBackendFirestore = "firestore"
)

type Config struct {
	Environment string
	Port        string
	ServiceName string

	StorageBackend string
	DBDSN          string

	LiveFeed     string
	LiveChannel  string
	RedisURL     string
	AuthGRPCAddr string

	DirectoryBackend   string
	DirectoryGRPCAddr  string
	FirestoreProjectID string

	AMQPURL         string
	AMQPExchange    string
	AuditRoutingKey string

	OTLPEndpoint string
	DebugRoutes  bool

	ReconcileInterval time.Duration
	ReconcileBatch    int
}

// Load reads the optional .env file and then the process environment.
// Variables already set in the environment win over .env values.
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds the config from the process environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Environment:        getEnv("ENV", "development"),
		Port:               getEnv("PORT", "8083"),
		ServiceName:        getEnv("SERVICE_NAME", "skill-exchange"),
		StorageBackend:     strings.ToLower(getEnv("STORAGE_BACKEND", StorageBackendPostgres)),
		DBDSN:              os.Getenv("DB_DSN"),
		LiveFeed:           strings.ToLower(getEnv("LIVE_FEED", LiveFeedPostgres)),
		LiveChannel:        getEnv("LIVE_CHANNEL", "skill_exchange_changes"),
		RedisURL:           os.Getenv("REDIS_URL"),
		AuthGRPCAddr:       getEnv("AUTH_GRPC_ADDR", "localhost:8084"),
		DirectoryBackend:   strings.ToLower(getEnv("DIRECTORY_BACKEND", DirectoryBackendGRPC)),
		DirectoryGRPCAddr:  getEnv("DIRECTORY_GRPC_ADDR", "localhost:8085"),
		FirestoreProjectID: os.Getenv("FIRESTORE_PROJECT_ID"),
		AMQPURL:            os.Getenv("AMQP_URL"),
		AMQPExchange:       getEnv("AMQP_EXCHANGE", "skill_exchange"),
		AuditRoutingKey:    getEnv("AUDIT_ROUTING_KEY", "audit.skill_exchange"),
		OTLPEndpoint:       os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	var err error
	if cfg.DebugRoutes, err = getBool("DEBUG_ROUTES", false); err != nil {
		return nil, err
	}
	if cfg.ReconcileInterval, err = getDuration("RECONCILE_INTERVAL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.ReconcileBatch, err = getInt("RECONCILE_BATCH", 100); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StorageBackend {
	case StorageBackendPostgres:
		if c.DBDSN == "" {
			return fmt.Errorf("DB_DSN is required when STORAGE_BACKEND=%s", StorageBackendPostgres)
		}
	case StorageBackendMemory:
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend)
	}

	switch c.LiveFeed {
	case LiveFeedPostgres:
		if c.StorageBackend != StorageBackendPostgres {
			return fmt.Errorf("LIVE_FEED=%s requires STORAGE_BACKEND=%s", LiveFeedPostgres, StorageBackendPostgres)
		}
	case LiveFeedRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when LIVE_FEED=%s", LiveFeedRedis)
		}
	case LiveFeedLocal:
	default:
		return fmt.Errorf("unknown LIVE_FEED %q", c.LiveFeed)
	}

	switch c.DirectoryBackend {
	case DirectoryBackendGRPC:
	case DirectoryBackendFirestore:
		if c.FirestoreProjectID == "" {
			return fmt.Errorf("FIRESTORE_PROJECT_ID is required when DIRECTORY_BACKEND=%s", DirectoryBackendFirestore)
		}
	default:
		return fmt.Errorf("unknown DIRECTORY_BACKEND %q", c.DirectoryBackend)
	}

	if c.ReconcileInterval <= 0 {
		return fmt.Errorf("RECONCILE_INTERVAL must be positive")
	}
	if c.ReconcileBatch <= 0 {
		return fmt.Errorf("RECONCILE_BATCH must be positive")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func getBool(key string, fallback bool) (bool, error) {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", key, err)
	}
	return b, nil
}

func getInt(key string, fallback int) (int, error) {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}
