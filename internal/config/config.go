package config

import (
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8083"`
	ObsHTTPAddr string `env:"OBS_HTTP_ADDR" envDefault:":8093"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"chat-service"`
	InstanceID  string `env:"INSTANCE_ID"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	StoreDriver string `env:"STORE_DRIVER" envDefault:"badger"`
	DatabaseURL string `env:"DATABASE_URL"`
	BadgerPath  string `env:"BADGER_PATH" envDefault:"./data"`

	RedisAddr    string   `env:"REDIS_ADDR"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"chat.message.sent"`

	JWTSecret string `env:"JWT_SECRET"`

	SendQueueSize     int           `env:"SEND_QUEUE_SIZE" envDefault:"128"`
	RateLimitRequests int           `env:"RATE_LIMIT_REQUESTS" envDefault:"100"`
	RateLimitWindow   time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`

	OutboxBatchSize int           `env:"OUTBOX_BATCH_SIZE" envDefault:"100"`
	OutboxPollDelay time.Duration `env:"OUTBOX_POLL_DELAY" envDefault:"2s"`

	TracingEnabled bool   `env:"TRACING_ENABLED" envDefault:"false"`
	JaegerURL      string `env:"JAEGER_URL" envDefault:"http://localhost:14268/api/traces"`
}

// Load reads an optional .env file, then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	cfg.HTTPAddr = fixPort(cfg.HTTPAddr)
	cfg.ObsHTTPAddr = fixPort(cfg.ObsHTTPAddr)
	if cfg.InstanceID == "" {
		cfg.InstanceID = os.Getenv("HOSTNAME")
	}
	return cfg, nil
}

func (c *Config) RedisEnabled() bool { return c.RedisAddr != "" }

func (c *Config) KafkaEnabled() bool { return len(c.KafkaBrokers) > 0 }

func fixPort(port string) string {
	if port != "" && !strings.Contains(port, ":") {
		return ":" + port
	}
	return port
}
