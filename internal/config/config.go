package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all runtime configuration for AccountPulse.
type Config struct {
	API      APIConfig      `yaml:"api"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	OpenAI   OpenAIConfig   `yaml:"openai"`
	Stripe   StripeConfig   `yaml:"stripe"`
	Monitor  MonitorConfig  `yaml:"monitor"`
}

// APIConfig configures the HTTP gateway.
type APIConfig struct {
	Port           int      `yaml:"port"`
	ReadTimeout    duration `yaml:"read_timeout"`
	WriteTimeout   duration `yaml:"write_timeout"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// DatabaseConfig configures the Postgres store.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// RedisConfig configures the score cache. Leave Addr empty to disable caching.
type RedisConfig struct {
	Addr     string   `yaml:"addr"`
	Password string   `yaml:"password"`
	DB       int      `yaml:"db"`
	TTL      duration `yaml:"ttl"`
}

// KafkaConfig configures event publishing. Leave Brokers empty to disable.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
}

// OpenAIConfig configures the narrative insights service.
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// StripeConfig configures billing signal collection.
type StripeConfig struct {
	APIKey string `yaml:"api_key"`
}

// MonitorConfig configures the periodic at-risk sweep.
type MonitorConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Interval duration `yaml:"interval"`
}

// duration unmarshals YAML strings like "30s" or "15m".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// Load reads configuration from the file named by CONFIG_PATH,
// falling back to config.yaml in the working directory.
func Load() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	return LoadFile(path)
}

// LoadFile reads and validates configuration from path.
func LoadFile(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		API: APIConfig{
			Port:           8080,
			ReadTimeout:    duration{15 * time.Second},
			WriteTimeout:   duration{30 * time.Second},
			AllowedOrigins: []string{"*"},
		},
		Redis: RedisConfig{
			DB:  0,
			TTL: duration{15 * time.Minute},
		},
		OpenAI: OpenAIConfig{
			Model: "gpt-4o-mini",
		},
		Monitor: MonitorConfig{
			Enabled:  true,
			Interval: duration{1 * time.Hour},
		},
	}
}

// Secrets come from the environment in deployed environments so the
// config file can be committed without them.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.OpenAI.APIKey = v
	}
	if v := os.Getenv("STRIPE_API_KEY"); v != "" {
		cfg.Stripe.APIKey = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
}
