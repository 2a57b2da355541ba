package dispatch

import "time"

// Defaults applied by Config.withDefaults.
const (
	DefaultMaxRetries = 2
	DefaultRetryDelay = 2 * time.Second
	DefaultTimeout    = 10 * time.Second
)

// Config controls the retry policy of a Dispatcher.
type Config struct {
	// MaxRetries is the number of attempts made after the first one.
	// Negative values select the default.
	MaxRetries int
	// RetryDelay is the fixed pause between attempts.
	RetryDelay time.Duration
	// Timeout bounds each individual call.
	Timeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxRetries < 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

// DefaultConfig returns the default retry policy.
func DefaultConfig() Config {
	return Config{MaxRetries: DefaultMaxRetries, RetryDelay: DefaultRetryDelay, Timeout: DefaultTimeout}
}
