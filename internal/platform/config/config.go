// Package config builds runtime configuration from the environment so main
// stays lean. Unset optional backends (postgres, redis, kafka) degrade to
// in-process implementations.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures everything the server wires at startup.
type Config struct {
	Addr          string
	DatabaseURL   string
	RedisURL      string
	KafkaBrokers  []string
	KafkaTopic    string
	JWTSigningKey string
	CatalogPath   string

	// CertValidityMonths is how long an issued certificate remains valid.
	// Expiry is computed with calendar months, not a flat duration.
	CertValidityMonths int

	// ProgressCacheTTL bounds staleness of the cached progress snapshot.
	ProgressCacheTTL time.Duration

	ShutdownTimeout time.Duration
}

// FromEnv reads configuration from environment variables, applying
// development defaults.
func FromEnv() Config {
	cfg := Config{
		Addr:               getenv("CERTTRUST_ADDR", ":8080"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		RedisURL:           os.Getenv("REDIS_URL"),
		KafkaTopic:         getenv("KAFKA_TOPIC", "certtrust.events"),
		JWTSigningKey:      os.Getenv("JWT_SIGNING_KEY"),
		CatalogPath:        os.Getenv("CATALOG_PATH"),
		CertValidityMonths: getenvInt("CERT_VALIDITY_MONTHS", 24),
		ProgressCacheTTL:   getenvDuration("PROGRESS_CACHE_TTL", 30*time.Second),
		ShutdownTimeout:    10 * time.Second,
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}
	return cfg
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}
