// Package config defines the application configuration, loaded from
// environment variables with github.com/caarlos0/env.
package config

import (
	"os"
	"strings"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files:
//   - database.go: Postgres and Redis configuration
//   - notify.go: push and sms gateway configuration
//   - dispatch.go: dispatch engine and matcher configuration
type AppConfig struct {
	// IsDev controls development mode behavior (debug logging, seed data).
	IsDev bool `env:"DEV" envDefault:"false"`

	// LogLevel sets the minimum slog level: debug, info, warn, error.
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Database configuration
	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`

	// Notification gateway configuration
	Push PushConfig `envPrefix:"PUSH_"`
	SMS  SMSConfig  `envPrefix:"SMS_"`

	// Dispatch engine configuration
	Dispatch DispatchConfig `envPrefix:"DISPATCH_"`
	Matcher  MatcherConfig  `envPrefix:"MATCHER_"`

	// MetricsAddr is the listen address for the Prometheus endpoint.
	// Empty disables the endpoint.
	MetricsAddr string `env:"METRICS_ADDR" envDefault:":9090"`
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.Dispatch.Sanitize()
	c.Matcher.Sanitize()
	c.Push.Sanitize()
	c.SMS.Sanitize()
	c.detectDevMode()

	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		c.LogLevel = "info"
	}
}

// detectDevMode checks both DEV and APP_ENV environment variables.
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		appEnv := strings.ToLower(os.Getenv("APP_ENV"))
		c.IsDev = appEnv == "development" || appEnv == "dev"
	}
}
