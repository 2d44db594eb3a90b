package config

import (
	"os"
	"strings"
	"time"

	"attesta/internal/certificate/models"
)

// Config captures everything main needs to wire the service. Values come from
// the environment so deployments stay twelve-factor and main stays lean.
type Config struct {
	Addr    string
	BaseURL string

	PostgresURL string
	Redis       RedisConfig
	Kafka       KafkaConfig

	RendererURL     string
	RendererTimeout time.Duration

	ValidityDefault     time.Duration
	ValidityPerCategory map[models.Category]time.Duration

	CacheTTL time.Duration
}

// RedisConfig holds cache connection settings.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig holds audit publisher settings. Empty brokers disable Kafka and
// the audit trail stays in-process.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// FromEnv builds a Config from environment variables, with development-safe
// defaults everywhere a collaborator is optional.
func FromEnv() Config {
	cfg := Config{
		Addr:            envOr("ATTESTA_ADDR", ":8080"),
		BaseURL:         envOr("ATTESTA_BASE_URL", "http://localhost:8080"),
		PostgresURL:     os.Getenv("ATTESTA_POSTGRES_URL"),
		RendererURL:     os.Getenv("ATTESTA_RENDERER_URL"),
		RendererTimeout: durationOr("ATTESTA_RENDERER_TIMEOUT", 10*time.Second),
		ValidityDefault: durationOr("ATTESTA_VALIDITY_DEFAULT", 365*24*time.Hour),
		CacheTTL:        durationOr("ATTESTA_CACHE_TTL", 5*time.Minute),
		Redis: RedisConfig{
			URL:          os.Getenv("ATTESTA_REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers: splitNonEmpty(os.Getenv("ATTESTA_KAFKA_BROKERS")),
			Topic:   envOr("ATTESTA_KAFKA_AUDIT_TOPIC", "attesta.audit"),
		},
	}

	cfg.ValidityPerCategory = categoryOverrides()
	return cfg
}

// categoryOverrides reads per-category validity periods, e.g.
// ATTESTA_VALIDITY_FALL_PROTECTION=17520h.
func categoryOverrides() map[models.Category]time.Duration {
	overrides := make(map[models.Category]time.Duration)
	for _, category := range models.Categories() {
		key := "ATTESTA_VALIDITY_" + strings.ToUpper(strings.ReplaceAll(string(category), "-", "_"))
		if raw := os.Getenv(key); raw != "" {
			if d, err := time.ParseDuration(raw); err == nil && d > 0 {
				overrides[category] = d
			}
		}
	}
	if len(overrides) == 0 {
		return nil
	}
	return overrides
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) time.Duration {
	if raw := os.Getenv(key); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

func splitNonEmpty(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
