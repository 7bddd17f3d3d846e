package throttle

import (
	"sync"

	"golang.org/x/time/rate"
)

// Rule defines per-task-key admission limits.
type Rule struct {
	// TaskKey is the key the rule applies to.
	TaskKey string `json:"task_key" yaml:"task_key"`

	// MaxConcurrency limits how many runs of this key may be in flight.
	// Zero means no key-specific limit (engine concurrency still applies).
	MaxConcurrency int `json:"max_concurrency" yaml:"max_concurrency"`

	// RateLimit is the maximum sustained runs per second admitted for
	// this key. Zero disables rate limiting.
	RateLimit float64 `json:"rate_limit" yaml:"rate_limit"`

	// RateBurst is the burst size for the token-bucket limiter.
	// Defaults to 1 if RateLimit is set but RateBurst is zero.
	RateBurst int `json:"rate_burst" yaml:"rate_burst"`
}

type keyState struct {
	rule    Rule
	limiter *rate.Limiter
	active  int
}

func newKeyState(r Rule) *keyState {
	ks := &keyState{rule: r}
	if r.RateLimit > 0 {
		burst := r.RateBurst
		if burst <= 0 {
			burst = 1
		}
		ks.limiter = rate.NewLimiter(rate.Limit(r.RateLimit), burst)
	}
	return ks
}

// Manager enforces per-key concurrency and rate limits. It is safe for
// concurrent use.
type Manager struct {
	mu   sync.Mutex
	keys map[string]*keyState
}

// NewManager creates a Manager with the given rules. Keys not listed have
// no limits.
func NewManager(rules ...Rule) *Manager {
	m := &Manager{keys: make(map[string]*keyState, len(rules))}
	for _, r := range rules {
		m.keys[r.TaskKey] = newKeyState(r)
	}
	return m
}

// Acquire reports whether a new run of key may start now. On success the
// active count is incremented and the caller MUST call Release when the
// run finishes. A refused Acquire consumes no rate token when the
// concurrency cap is what refused it.
func (m *Manager) Acquire(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	ks := m.keys[key]
	if ks == nil {
		return true
	}
	if ks.rule.MaxConcurrency > 0 && ks.active >= ks.rule.MaxConcurrency {
		return false
	}
	if ks.limiter != nil && !ks.limiter.Allow() {
		return false
	}
	ks.active++
	return true
}

// Release decrements the active count for key.
func (m *Manager) Release(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ks := m.keys[key]; ks != nil && ks.active > 0 {
		ks.active--
	}
}

// SetRule updates (or creates) the rule for a key, keeping its current
// active count.
func (m *Manager) SetRule(r Rule) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ks := newKeyState(r)
	if existing := m.keys[r.TaskKey]; existing != nil {
		ks.active = existing.active
	}
	m.keys[r.TaskKey] = ks
}

// RemoveRule drops the rule for key. In-flight runs are unaffected.
func (m *Manager) RemoveRule(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
}

// ActiveCount returns the number of admitted, unreleased runs of key.
// Keys without a rule always report zero.
func (m *Manager) ActiveCount(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ks := m.keys[key]; ks != nil {
		return ks.active
	}
	return 0
}
