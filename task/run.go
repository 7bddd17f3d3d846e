package task

import (
	"time"

	"github.com/xraph/headless/id"
)

// State represents the lifecycle state of a task run.
type State string

const (
	// StatePending means the run was accepted but no attempt has started.
	StatePending State = "pending"
	// StateRunning means an attempt is executing.
	StateRunning State = "running"
	// StateRetrying means an attempt failed and the next one is waiting
	// out the retry delay.
	StateRetrying State = "retrying"
	// StateCompleted means an attempt succeeded.
	StateCompleted State = "completed"
	// StateFailed means the last attempt failed and no retries remain.
	StateFailed State = "failed"
	// StateTimedOut means an attempt exceeded the config timeout.
	StateTimedOut State = "timed_out"
	// StateCancelled means the run was cancelled or the engine stopped.
	StateCancelled State = "cancelled"
)

// Terminal reports whether no further attempts follow this state.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateTimedOut, StateCancelled:
		return true
	default:
		return false
	}
}

// Run records the execution of one submitted Config across its attempts.
type Run struct {
	ID                  id.RunID      `json:"id"`
	TaskKey             string        `json:"task_key"`
	State               State         `json:"state"`
	Attempts            int           `json:"attempts"`
	MaxRetries          int           `json:"max_retries"`
	Timeout             time.Duration `json:"timeout,omitempty"`
	RetryDelay          time.Duration `json:"retry_delay,omitempty"`
	AllowedInForeground bool          `json:"allowed_in_foreground"`
	LastError           string        `json:"last_error,omitempty"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
	StartedAt           *time.Time    `json:"started_at,omitempty"`
	FinishedAt          *time.Time    `json:"finished_at,omitempty"`
}

// NewRun creates a pending run record for cfg.
func NewRun(cfg Config) *Run {
	now := time.Now().UTC()
	return &Run{
		ID:                  id.NewRunID(),
		TaskKey:             cfg.TaskKey(),
		State:               StatePending,
		MaxRetries:          cfg.NumberOfRetries(),
		Timeout:             cfg.Timeout(),
		RetryDelay:          cfg.RetryDelay(),
		AllowedInForeground: cfg.AllowedInForeground(),
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

// Attempt is one invocation of a task handler within a run. Number starts
// at 1; attempts after the first are retries.
type Attempt struct {
	RunID     id.RunID
	Number    int
	Config    Config
	StartedAt time.Time
}

// IsRetry reports whether this attempt follows a failure.
func (a *Attempt) IsRetry() bool { return a.Number > 1 }
