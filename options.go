package headless

import "time"

// Option adjusts a Config.
type Option func(*Config)

// NewConfig returns DefaultConfig with opts applied.
func NewConfig(opts ...Option) Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Apply returns a copy of c with opts applied.
func (c Config) Apply(opts ...Option) Config {
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithConcurrency sets the maximum number of runs executing at once.
func WithConcurrency(n int) Option {
	return func(c *Config) { c.Concurrency = n }
}

// WithShutdownTimeout sets how long Stop waits before cancelling runs.
func WithShutdownTimeout(d time.Duration) Option {
	return func(c *Config) { c.ShutdownTimeout = d }
}

// WithMaxPayloadDepth bounds payload nesting accepted at submission.
func WithMaxPayloadDepth(n int) Option {
	return func(c *Config) { c.MaxPayloadDepth = n }
}

// WithDLQEnabled toggles the dead letter queue.
func WithDLQEnabled(enabled bool) Option {
	return func(c *Config) { c.DLQEnabled = enabled }
}

// WithRetainRuns toggles keeping finished run records.
func WithRetainRuns(retain bool) Option {
	return func(c *Config) { c.RetainRuns = retain }
}
