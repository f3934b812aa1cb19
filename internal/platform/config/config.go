package config

import (
	"os"
	"strings"
	"time"
)

// Config captures process-level configuration so main stays lean.
type Config struct {
	Addr string

	MongoURI     string
	MongoDB      string
	MongoTimeout time.Duration

	// CrossBus selects the cross-process event bus implementation:
	// "kafka", "redis" or "none".
	CrossBus     string
	KafkaBrokers []string
	KafkaTopic   string
	RedisURL     string
	EventChannel string

	LogLevel string
}

// FromEnv builds a Config from environment variables with development
// defaults.
func FromEnv() Config {
	return Config{
		Addr:         envOr("LENDIT_ADDR", ":8080"),
		MongoURI:     envOr("LENDIT_MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:      envOr("LENDIT_MONGO_DB", "lendit"),
		MongoTimeout: 10 * time.Second,
		CrossBus:     envOr("LENDIT_CROSS_BUS", "none"),
		KafkaBrokers: splitList(envOr("LENDIT_KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   envOr("LENDIT_KAFKA_TOPIC", "lendit.domain-events"),
		RedisURL:     envOr("LENDIT_REDIS_URL", "redis://localhost:6379"),
		EventChannel: envOr("LENDIT_EVENT_CHANNEL", "lendit:domain-events"),
		LogLevel:     envOr("LENDIT_LOG_LEVEL", "info"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
