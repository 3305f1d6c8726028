package config

import "time"

// DispatchConfig tunes the notification fan-out.
type DispatchConfig struct {
	// Concurrency bounds in-flight deliveries per channel per dispatch.
	Concurrency int `env:"CONCURRENCY" envDefault:"8"`
	// PerSendTimeout caps how long a single delivery may take.
	PerSendTimeout time.Duration `env:"PER_SEND_TIMEOUT" envDefault:"5s"`
	// PollInterval is how often the poller sweeps pending jobs.
	PollInterval time.Duration `env:"POLL_INTERVAL" envDefault:"15s"`
	// PollBatchSize is how many pending jobs one sweep picks up.
	PollBatchSize int `env:"POLL_BATCH_SIZE" envDefault:"50"`
}

// Sanitize clamps out-of-range values.
func (c *DispatchConfig) Sanitize() {
	if c.Concurrency <= 0 {
		c.Concurrency = 8
	}
	if c.PerSendTimeout <= 0 {
		c.PerSendTimeout = 5 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 15 * time.Second
	}
	if c.PollBatchSize <= 0 {
		c.PollBatchSize = 50
	}
}

// MatcherConfig contains the translator matching service configuration.
type MatcherConfig struct {
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:8081"`
	APIKey  string `env:"API_KEY"  envDefault:""`
	// FilterExpr is an optional JMESPath expression applied to candidate
	// responses, e.g. "[?available]".
	FilterExpr     string        `env:"FILTER_EXPR"     envDefault:""`
	CandidateLimit int           `env:"CANDIDATE_LIMIT" envDefault:"100"`
	Timeout        time.Duration `env:"TIMEOUT"         envDefault:"10s"`
}

// Sanitize clamps out-of-range values.
func (c *MatcherConfig) Sanitize() {
	if c.CandidateLimit <= 0 {
		c.CandidateLimit = 100
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
}
