package config

import "time"

// PushConfig contains the mobile push gateway configuration.
type PushConfig struct {
	GatewayURL string        `env:"GATEWAY_URL" envDefault:""`
	AppID      string        `env:"APP_ID"      envDefault:""`
	APIKey     string        `env:"API_KEY"     envDefault:""`
	Timeout    time.Duration `env:"TIMEOUT"     envDefault:"5s"`
	RetryLimit int           `env:"RETRY_LIMIT" envDefault:"2"`
}

// Enabled returns true when a gateway URL is configured.
func (c PushConfig) Enabled() bool {
	return c.GatewayURL != ""
}

// Sanitize clamps out-of-range values.
func (c *PushConfig) Sanitize() {
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	if c.RetryLimit < 0 {
		c.RetryLimit = 0
	}
}

// SMSConfig contains the SMS gateway configuration.
type SMSConfig struct {
	GatewayURL string        `env:"GATEWAY_URL" envDefault:""`
	Sender     string        `env:"SENDER"      envDefault:"dispatchd"`
	AuthToken  string        `env:"AUTH_TOKEN"  envDefault:""`
	Timeout    time.Duration `env:"TIMEOUT"     envDefault:"5s"`
	RetryLimit int           `env:"RETRY_LIMIT" envDefault:"2"`
}

// Enabled returns true when a gateway URL is configured.
func (c SMSConfig) Enabled() bool {
	return c.GatewayURL != ""
}

// Sanitize clamps out-of-range values.
func (c *SMSConfig) Sanitize() {
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	if c.RetryLimit < 0 {
		c.RetryLimit = 0
	}
}
