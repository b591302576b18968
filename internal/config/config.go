package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port               string   `mapstructure:"PORT"`
	Env                string   `mapstructure:"ENV"`
	DatabaseURL        string   `mapstructure:"DATABASE_URL"`
	DBMaxConns         int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns         int32    `mapstructure:"DB_MIN_CONNS"`
	DefaultTenant      string   `mapstructure:"DEFAULT_TENANT"`
	CORSOrigins        []string `mapstructure:"CORS_ORIGINS"`
	AuthSigningKey     string   `mapstructure:"AUTH_SIGNING_KEY"`
	AuthIssuer         string   `mapstructure:"AUTH_ISSUER"`
	AuthAudience       string   `mapstructure:"AUTH_AUDIENCE"`
	RateLimitRPS       float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst     int      `mapstructure:"RATE_LIMIT_BURST"`
	MaxAttachmentBytes int64    `mapstructure:"MAX_ATTACHMENT_BYTES"`
	KafkaBrokers       []string `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic         string   `mapstructure:"KAFKA_TOPIC"`

	RequestTimeout   time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	DBAcquireTimeout time.Duration `mapstructure:"DB_ACQUIRE_TIMEOUT"`
}

var keys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"DEFAULT_TENANT", "CORS_ORIGINS", "AUTH_SIGNING_KEY", "AUTH_ISSUER",
	"AUTH_AUDIENCE", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	"MAX_ATTACHMENT_BYTES", "KAFKA_BROKERS", "KAFKA_TOPIC",
	"REQUEST_TIMEOUT", "DB_ACQUIRE_TIMEOUT",
}

// Load reads configuration from the environment, with an optional .env file
// in the working directory.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("DEFAULT_TENANT", "default")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("MAX_ATTACHMENT_BYTES", 10<<20)
	v.SetDefault("KAFKA_TOPIC", "ordercapture.events")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("DB_ACQUIRE_TIMEOUT", "2s")

	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))
	cfg.KafkaBrokers = splitList(v.GetString("KAFKA_BROKERS"))

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// EventsEnabled reports whether lifecycle events go to Kafka.
func (c *Config) EventsEnabled() bool {
	return len(c.KafkaBrokers) > 0 && c.KafkaTopic != ""
}

// Validate checks that the configuration is safe to run. Outside development
// a signing key is required so bearer tokens are actually verified.
func (c *Config) Validate() error {
	if !c.IsDev() && c.AuthSigningKey == "" {
		return fmt.Errorf("AUTH_SIGNING_KEY is required when ENV=%q", c.Env)
	}
	if c.AuthSigningKey != "" && len(c.AuthSigningKey) < 32 {
		return fmt.Errorf("AUTH_SIGNING_KEY must be at least 32 bytes, got %d", len(c.AuthSigningKey))
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.MaxAttachmentBytes <= 0 {
		return fmt.Errorf("MAX_ATTACHMENT_BYTES must be positive")
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return fmt.Errorf("rate limit settings must not be negative")
	}
	if c.RequestTimeout <= 0 || c.DBAcquireTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT and DB_ACQUIRE_TIMEOUT must be positive")
	}
	return nil
}
