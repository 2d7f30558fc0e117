package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8083", cfg.HTTPAddr)
	assert.Equal(t, "badger", cfg.StoreDriver)
	assert.Equal(t, 128, cfg.SendQueueSize)
	assert.Equal(t, time.Minute, cfg.RateLimitWindow)
	assert.False(t, cfg.RedisEnabled())
	assert.False(t, cfg.KafkaEnabled())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", "9000")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("INSTANCE_ID", "inst-1")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.HTTPAddr)
	assert.Equal(t, "postgres", cfg.StoreDriver)
	assert.Equal(t, "inst-1", cfg.InstanceID)
	assert.True(t, cfg.RedisEnabled())
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
}

func TestFixPort(t *testing.T) {
	assert.Equal(t, ":8080", fixPort("8080"))
	assert.Equal(t, ":8080", fixPort(":8080"))
	assert.Equal(t, "0.0.0.0:8080", fixPort("0.0.0.0:8080"))
	assert.Equal(t, "", fixPort(""))
}
