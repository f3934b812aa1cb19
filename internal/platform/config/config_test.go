package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv()
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "mongodb://localhost:27017", cfg.MongoURI)
	assert.Equal(t, "lendit", cfg.MongoDB)
	assert.Equal(t, "none", cfg.CrossBus)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("LENDIT_ADDR", ":9000")
	t.Setenv("LENDIT_CROSS_BUS", "kafka")
	t.Setenv("LENDIT_KAFKA_BROKERS", "b1:9092, b2:9092 ,")

	cfg := FromEnv()
	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, "kafka", cfg.CrossBus)
	assert.Equal(t, []string{"b1:9092", "b2:9092"}, cfg.KafkaBrokers)
}
