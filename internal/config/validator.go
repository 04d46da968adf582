package config

import (
	"errors"
	"fmt"
)

// Validate checks the configuration for missing or inconsistent values.
func (c *Config) Validate() error {
	if c.API.Port <= 0 || c.API.Port > 65535 {
		return fmt.Errorf("api.port must be between 1 and 65535, got %d", c.API.Port)
	}
	if c.API.ReadTimeout.Duration <= 0 {
		return errors.New("api.read_timeout must be positive")
	}
	if c.API.WriteTimeout.Duration <= 0 {
		return errors.New("api.write_timeout must be positive")
	}
	if c.Redis.Addr != "" && c.Redis.TTL.Duration <= 0 {
		return errors.New("redis.ttl must be positive when redis is enabled")
	}
	if c.OpenAI.APIKey != "" && c.OpenAI.Model == "" {
		return errors.New("openai.model is required when openai is enabled")
	}
	if c.Monitor.Enabled && c.Monitor.Interval.Duration <= 0 {
		return errors.New("monitor.interval must be positive when the monitor is enabled")
	}
	return nil
}
