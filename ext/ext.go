// Package ext defines the extension system for headless.
// Extensions are notified of task lifecycle events (attempt started,
// run completed, retry scheduled, etc.) and can react to them.
//
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
package ext

import (
	"context"
	"time"

	"github.com/xraph/headless/id"
	"github.com/xraph/headless/task"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// ──────────────────────────────────────────────────
// Task lifecycle hooks
// ──────────────────────────────────────────────────

// TaskStarted is called when an attempt begins executing.
type TaskStarted interface {
	OnTaskStarted(ctx context.Context, r *task.Run, a *task.Attempt) error
}

// TaskCompleted is called after a run finishes successfully.
type TaskCompleted interface {
	OnTaskCompleted(ctx context.Context, r *task.Run, elapsed time.Duration) error
}

// TaskRetrying is called when an attempt fails and another one is
// scheduled after the retry delay.
type TaskRetrying interface {
	OnTaskRetrying(ctx context.Context, r *task.Run, attempt int, nextAttemptAt time.Time) error
}

// TaskFailed is called when a run fails terminally (no more retries).
type TaskFailed interface {
	OnTaskFailed(ctx context.Context, r *task.Run, err error) error
}

// TaskTimedOut is called when an attempt exceeds its timeout. The run
// is terminal at that point.
type TaskTimedOut interface {
	OnTaskTimedOut(ctx context.Context, r *task.Run, timeout time.Duration) error
}

// TaskCancelled is called when a run is cancelled or the engine stops
// while it is in flight.
type TaskCancelled interface {
	OnTaskCancelled(ctx context.Context, r *task.Run) error
}

// TaskRejected is called when a config is refused before an attempt runs,
// for example because it may not run while the host is in the foreground.
// runID is nil when the refusal happened at submission.
type TaskRejected interface {
	OnTaskRejected(ctx context.Context, cfg task.Config, runID id.RunID, reason error) error
}

// TaskDLQ is called when a failed run is pushed to the dead letter queue.
type TaskDLQ interface {
	OnTaskDLQ(ctx context.Context, r *task.Run, err error) error
}

// ──────────────────────────────────────────────────
// Other lifecycle hooks
// ──────────────────────────────────────────────────

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
