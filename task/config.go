package task

import (
	"fmt"
	"time"

	"github.com/xraph/headless/payload"
)

// Config holds the parameters needed to start one headless task.
// The zero value is a config with an empty key and no payload.
type Config struct {
	taskKey             string
	data                payload.Map
	timeout             time.Duration
	allowedInForeground bool
	numberOfRetries     int
	retryDelay          time.Duration
}

// Options are the execution policies of a Config. The zero value holds
// the defaults: no timeout, background only, no retries, no retry delay.
type Options struct {
	// Timeout bounds each attempt. Zero means no timeout.
	Timeout time.Duration

	// AllowedInForeground permits running while the host is visible.
	AllowedInForeground bool

	// NumberOfRetries is how many times a failed task is re-attempted.
	NumberOfRetries int

	// RetryDelay is the wait before each retry attempt.
	RetryDelay time.Duration
}

// Option is a functional option applied to Options.
type Option func(*Options)

// WithTimeout sets the per-attempt timeout. Zero means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) { o.Timeout = d }
}

// WithTimeoutMs sets the per-attempt timeout in milliseconds.
func WithTimeoutMs(ms int64) Option {
	return WithTimeout(time.Duration(ms) * time.Millisecond)
}

// WithAllowedInForeground sets whether the task may run while the host
// is in the foreground.
func WithAllowedInForeground(allowed bool) Option {
	return func(o *Options) { o.AllowedInForeground = allowed }
}

// WithRetries sets the retry count and the delay before each retry.
func WithRetries(n int, delay time.Duration) Option {
	return func(o *Options) {
		o.NumberOfRetries = n
		o.RetryDelay = delay
	}
}

// WithRetriesMs is WithRetries with the delay in milliseconds.
func WithRetriesMs(n int, delayMs int64) Option {
	return WithRetries(n, time.Duration(delayMs)*time.Millisecond)
}

// New creates a Config for taskKey with the given payload. Options not
// supplied keep their defaults. The payload is stored as given; the caller
// hands over ownership and must not mutate it afterwards.
func New(taskKey string, data payload.Map, opts ...Option) Config {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	return NewFromOptions(taskKey, data, o)
}

// NewFromOptions is the canonical constructor. Every other constructor
// delegates here. Values are stored verbatim.
func NewFromOptions(taskKey string, data payload.Map, o Options) Config {
	return Config{
		taskKey:             taskKey,
		data:                data,
		timeout:             o.Timeout,
		allowedInForeground: o.AllowedInForeground,
		numberOfRetries:     o.NumberOfRetries,
		retryDelay:          o.RetryDelay,
	}
}

// NewWithTimeout creates a background-only Config with no retries.
func NewWithTimeout(taskKey string, data payload.Map, timeoutMs int64) Config {
	return New(taskKey, data, WithTimeoutMs(timeoutMs))
}

// NewWithForeground creates a Config with no retries.
func NewWithForeground(taskKey string, data payload.Map, timeoutMs int64, allowedInForeground bool) Config {
	return New(taskKey, data,
		WithTimeoutMs(timeoutMs),
		WithAllowedInForeground(allowedInForeground),
	)
}

// NewWithRetries creates a Config with every field explicit.
func NewWithRetries(
	taskKey string,
	data payload.Map,
	timeoutMs int64,
	allowedInForeground bool,
	numberOfRetries int,
	retryDelayMs int64,
) Config {
	return New(taskKey, data,
		WithTimeoutMs(timeoutMs),
		WithAllowedInForeground(allowedInForeground),
		WithRetriesMs(numberOfRetries, retryDelayMs),
	)
}

// Copy returns an independent Config: scalars are copied by value and the
// payload is deep-copied. A payload that cannot be copied yields an error
// and no Config.
func (c Config) Copy() (Config, error) {
	data, err := c.data.Copy()
	if err != nil {
		return Config{}, fmt.Errorf("task %q: copy payload: %w", c.taskKey, err)
	}
	dup := c
	dup.data = data
	return dup, nil
}

// Derive returns a copy of c with opts applied on top of its current
// policies. The task key never changes.
func (c Config) Derive(opts ...Option) (Config, error) {
	data, err := c.data.Copy()
	if err != nil {
		return Config{}, fmt.Errorf("task %q: copy payload: %w", c.taskKey, err)
	}
	o := c.Options()
	for _, opt := range opts {
		opt(&o)
	}
	return NewFromOptions(c.taskKey, data, o), nil
}

// TaskKey returns the key of the handler that runs this task.
func (c Config) TaskKey() string { return c.taskKey }

// Data returns the payload. It is owned by this Config; handlers may
// mutate the payload of the attempt they were given.
func (c Config) Data() payload.Map { return c.data }

// Timeout returns the per-attempt timeout. Zero means unbounded.
func (c Config) Timeout() time.Duration { return c.timeout }

// TimeoutMs returns the timeout in milliseconds.
func (c Config) TimeoutMs() int64 { return c.timeout.Milliseconds() }

// HasTimeout reports whether attempts are bounded. The zero sentinel is
// unbounded, not expired.
func (c Config) HasTimeout() bool { return c.timeout > 0 }

// Deadline returns the instant an attempt started at start must end by.
// ok is false when the config has no timeout.
func (c Config) Deadline(start time.Time) (deadline time.Time, ok bool) {
	if !c.HasTimeout() {
		return time.Time{}, false
	}
	return start.Add(c.timeout), true
}

// AllowedInForeground reports whether the task may run while the host is
// in the foreground.
func (c Config) AllowedInForeground() bool { return c.allowedInForeground }

// NumberOfRetries returns how many re-attempts follow a failure.
func (c Config) NumberOfRetries() int { return c.numberOfRetries }

// RetryDelay returns the wait before each retry.
func (c Config) RetryDelay() time.Duration { return c.retryDelay }

// RetryDelayMs returns the retry delay in milliseconds.
func (c Config) RetryDelayMs() int64 { return c.retryDelay.Milliseconds() }

// Options returns the execution policies of c.
func (c Config) Options() Options {
	return Options{
		Timeout:             c.timeout,
		AllowedInForeground: c.allowedInForeground,
		NumberOfRetries:     c.numberOfRetries,
		RetryDelay:          c.retryDelay,
	}
}

// String implements fmt.Stringer. The payload is summarised by key count.
func (c Config) String() string {
	return fmt.Sprintf("task.Config{key=%q keys=%d timeout=%s foreground=%t retries=%d retry_delay=%s}",
		c.taskKey, len(c.data), c.timeout, c.allowedInForeground, c.numberOfRetries, c.retryDelay)
}
