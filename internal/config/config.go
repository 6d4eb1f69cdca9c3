package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	pkgerrors "github.com/bonjourjoel/lesechos-jabenhaim-backend/pkg/errors"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

const (
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

type JWTConfig struct {
	AccessSecret  string
	AccessTTL     time.Duration
	RefreshSecret string
	RefreshTTL    time.Duration
	HashSecret    string
}

type KafkaConfig struct {
	Brokers    []string
	AuthTopic  string
	AuditGroup string
}

type Config struct {
	HTTPAddr     string
	MetricsAddr  string
	PostgresDSN  string
	RefreshStore string
	RedisAddr    string
	Kafka        KafkaConfig
	JWT          JWTConfig
	BcryptCost   int
	OTLPEndpoint string
	LogLevel     string
}

// Load reads .env (if present) and the process environment. The returned
// config is validated; a missing secret yields an error wrapping ErrConfig.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Warn("failed to load .env file, using environment", "error", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function.
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		HTTPAddr:     getenv("HTTP_ADDR"),
		MetricsAddr:  getenv("METRICS_ADDR"),
		PostgresDSN:  getenv("POSTGRES_DSN"),
		RefreshStore: strings.ToLower(getenv("REFRESH_STORE")),
		RedisAddr:    getenv("REDIS_ADDR"),
		Kafka: KafkaConfig{
			Brokers:    splitList(getenv("KAFKA_BROKERS")),
			AuthTopic:  getenv("KAFKA_AUTH_TOPIC"),
			AuditGroup: getenv("KAFKA_AUDIT_GROUP"),
		},
		JWT: JWTConfig{
			AccessSecret:  getenv("JWT_SECRET"),
			RefreshSecret: getenv("JWT_REFRESH_SECRET"),
			HashSecret:    getenv("JWT_HASH_SECRET"),
		},
		OTLPEndpoint: getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		LogLevel:     getenv("LOG_LEVEL"),
	}

	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}
	switch cfg.MetricsAddr {
	case "":
		cfg.MetricsAddr = ":9090"
	case "off":
		cfg.MetricsAddr = ""
	}
	if cfg.PostgresDSN == "" {
		cfg.PostgresDSN = "host=localhost user=postgres password=postgres dbname=users sslmode=disable"
	}
	if cfg.RefreshStore == "" {
		cfg.RefreshStore = StorePostgres
	}
	if cfg.RedisAddr == "" {
		cfg.RedisAddr = "localhost:6379"
	}
	if cfg.Kafka.AuthTopic == "" {
		cfg.Kafka.AuthTopic = "auth-events"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	var err error
	if cfg.JWT.AccessTTL, err = durationOr(getenv("JWT_ACCESS_TTL"), time.Hour); err != nil {
		return nil, fmt.Errorf("%w: JWT_ACCESS_TTL: %v", pkgerrors.ErrConfig, err)
	}
	if cfg.JWT.RefreshTTL, err = durationOr(getenv("JWT_REFRESH_TTL"), 7*24*time.Hour); err != nil {
		return nil, fmt.Errorf("%w: JWT_REFRESH_TTL: %v", pkgerrors.ErrConfig, err)
	}

	cfg.BcryptCost = bcrypt.DefaultCost
	if raw := getenv("BCRYPT_COST"); raw != "" {
		if cfg.BcryptCost, err = strconv.Atoi(raw); err != nil {
			return nil, fmt.Errorf("%w: BCRYPT_COST: %v", pkgerrors.ErrConfig, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	slog.Info("config loaded",
		"http_addr", cfg.HTTPAddr,
		"refresh_store", cfg.RefreshStore,
		"redis_addr", cfg.RedisAddr,
		"kafka_brokers", cfg.Kafka.Brokers,
		"access_ttl", cfg.JWT.AccessTTL.String(),
		"refresh_ttl", cfg.JWT.RefreshTTL.String())
	return cfg, nil
}

func (c *Config) Validate() error {
	switch {
	case c.JWT.AccessSecret == "":
		return fmt.Errorf("%w: JWT_SECRET is required", pkgerrors.ErrConfig)
	case c.JWT.RefreshSecret == "":
		return fmt.Errorf("%w: JWT_REFRESH_SECRET is required", pkgerrors.ErrConfig)
	case c.JWT.HashSecret == "":
		return fmt.Errorf("%w: JWT_HASH_SECRET is required", pkgerrors.ErrConfig)
	case c.JWT.AccessSecret == c.JWT.RefreshSecret:
		return fmt.Errorf("%w: JWT_SECRET and JWT_REFRESH_SECRET must differ", pkgerrors.ErrConfig)
	case c.JWT.AccessTTL <= 0 || c.JWT.RefreshTTL <= 0:
		return fmt.Errorf("%w: token TTLs must be positive", pkgerrors.ErrConfig)
	case c.JWT.RefreshTTL <= c.JWT.AccessTTL:
		return fmt.Errorf("%w: JWT_REFRESH_TTL must be longer than JWT_ACCESS_TTL", pkgerrors.ErrConfig)
	case c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost:
		return fmt.Errorf("%w: BCRYPT_COST must be in [%d, %d]", pkgerrors.ErrConfig, bcrypt.MinCost, bcrypt.MaxCost)
	case c.RefreshStore != StorePostgres && c.RefreshStore != StoreRedis:
		return fmt.Errorf("%w: unknown REFRESH_STORE %q", pkgerrors.ErrConfig, c.RefreshStore)
	}
	return nil
}

func durationOr(raw string, def time.Duration) (time.Duration, error) {
	if raw == "" {
		return def, nil
	}
	return time.ParseDuration(raw)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
