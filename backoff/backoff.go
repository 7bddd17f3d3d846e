// Package backoff provides retry delay strategies for task runs and adapts
// them to the cenkalti/backoff retry loop used by the engine. All
// strategies are stateless and safe for concurrent use.
package backoff

import (
	"math"
	"math/rand/v2"
	"time"

	cbackoff "github.com/cenkalti/backoff/v4"

	"github.com/xraph/headless/task"
)

// Strategy computes the delay before a retry attempt.
type Strategy interface {
	// Delay returns how long to wait before retry n (1-indexed).
	// Retry 1 is the first retry after the initial failure.
	Delay(retry int) time.Duration
}

// ──────────────────────────────────────────────────
// Constant
// ──────────────────────────────────────────────────

// Constant always returns the same delay. It is what a task.Config's
// RetryDelay describes.
type Constant struct {
	Interval time.Duration
}

// NewConstant creates a constant backoff strategy.
func NewConstant(interval time.Duration) *Constant {
	return &Constant{Interval: interval}
}

// Delay returns the fixed interval.
func (c *Constant) Delay(_ int) time.Duration {
	return c.Interval
}

// ──────────────────────────────────────────────────
// Linear
// ──────────────────────────────────────────────────

// Linear grows the delay with the retry number.
// Delay = min(Initial * retry, Max).
type Linear struct {
	Initial time.Duration
	Max     time.Duration
}

// NewLinear creates a linear backoff strategy.
func NewLinear(initial, maxDelay time.Duration) *Linear {
	return &Linear{Initial: initial, Max: maxDelay}
}

// Delay returns Initial * retry, capped at Max.
func (l *Linear) Delay(retry int) time.Duration {
	d := l.Initial * time.Duration(retry)
	if l.Max > 0 && d > l.Max {
		return l.Max
	}
	return d
}

// ──────────────────────────────────────────────────
// Exponential
// ──────────────────────────────────────────────────

// Exponential doubles the delay each retry.
// Delay = min(Initial * 2^(retry-1), Max).
type Exponential struct {
	Initial time.Duration
	Max     time.Duration
}

// NewExponential creates an exponential backoff strategy.
func NewExponential(initial, maxDelay time.Duration) *Exponential {
	return &Exponential{Initial: initial, Max: maxDelay}
}

// Delay returns Initial * 2^(retry-1), capped at Max.
func (e *Exponential) Delay(retry int) time.Duration {
	d := time.Duration(float64(e.Initial) * math.Pow(2, float64(retry-1)))
	if e.Max > 0 && d > e.Max {
		return e.Max
	}
	return d
}

// ExponentialWithJitter applies full jitter to an exponential base.
// Delay = random value in [0, min(Initial * 2^(retry-1), Max)].
type ExponentialWithJitter struct {
	Initial time.Duration
	Max     time.Duration
}

// NewExponentialWithJitter creates an exponential backoff with full jitter.
func NewExponentialWithJitter(initial, maxDelay time.Duration) *ExponentialWithJitter {
	return &ExponentialWithJitter{Initial: initial, Max: maxDelay}
}

// Delay returns a random duration in [0, min(Initial * 2^(retry-1), Max)].
func (e *ExponentialWithJitter) Delay(retry int) time.Duration {
	base := float64(e.Initial) * math.Pow(2, float64(retry-1))
	if e.Max > 0 && base > float64(e.Max) {
		base = float64(e.Max)
	}
	return time.Duration(rand.Float64() * base) //nolint:gosec // jitter intentionally uses non-crypto rand
}

// ──────────────────────────────────────────────────
// Retry schedule
// ──────────────────────────────────────────────────

// schedule adapts a Strategy to cbackoff.BackOff.
type schedule struct {
	strategy Strategy
	retry    int
}

func (s *schedule) NextBackOff() time.Duration {
	s.retry++
	d := s.strategy.Delay(s.retry)
	if d < 0 {
		// Negative delays would collide with cbackoff.Stop.
		return 0
	}
	return d
}

func (s *schedule) Reset() { s.retry = 0 }

// FromStrategy adapts s to an unbounded cbackoff.BackOff.
func FromStrategy(s Strategy) cbackoff.BackOff {
	return &schedule{strategy: s}
}

// ForConfig returns the retry schedule for cfg: NumberOfRetries delays of
// RetryDelay, then cbackoff.Stop. A non-nil override replaces the constant
// delay but never the retry count. Negative counts mean no retries.
//
// The returned BackOff is stateful; build one per run.
func ForConfig(cfg task.Config, override Strategy) cbackoff.BackOff {
	s := override
	if s == nil {
		s = NewConstant(cfg.RetryDelay())
	}
	retries := cfg.NumberOfRetries()
	if retries < 0 {
		retries = 0
	}
	return cbackoff.WithMaxRetries(FromStrategy(s), uint64(retries))
}
