package ext

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/headless/id"
	"github.com/xraph/headless/task"
)

// Named entry types pair a hook implementation with the extension name
// captured at registration time.
type taskStartedEntry struct {
	name string
	hook TaskStarted
}

type taskCompletedEntry struct {
	name string
	hook TaskCompleted
}

type taskRetryingEntry struct {
	name string
	hook TaskRetrying
}

type taskFailedEntry struct {
	name string
	hook TaskFailed
}

type taskTimedOutEntry struct {
	name string
	hook TaskTimedOut
}

type taskCancelledEntry struct {
	name string
	hook TaskCancelled
}

type taskRejectedEntry struct {
	name string
	hook TaskRejected
}

type taskDLQEntry struct {
	name string
	hook TaskDLQ
}

type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered extensions and dispatches lifecycle events
// to them. It type-caches extensions at registration time so emit calls
// iterate only over extensions that implement the relevant hook.
//
// Register must not be called concurrently with the emit methods; the
// engine registers everything before it starts.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	taskStarted   []taskStartedEntry
	taskCompleted []taskCompletedEntry
	taskRetrying  []taskRetryingEntry
	taskFailed    []taskFailedEntry
	taskTimedOut  []taskTimedOutEntry
	taskCancelled []taskCancelledEntry
	taskRejected  []taskRejectedEntry
	taskDLQ       []taskDLQEntry
	shutdown      []shutdownEntry
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds an extension and type-asserts it into all applicable
// hook caches. Extensions are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(TaskStarted); ok {
		r.taskStarted = append(r.taskStarted, taskStartedEntry{name, h})
	}
	if h, ok := e.(TaskCompleted); ok {
		r.taskCompleted = append(r.taskCompleted, taskCompletedEntry{name, h})
	}
	if h, ok := e.(TaskRetrying); ok {
		r.taskRetrying = append(r.taskRetrying, taskRetryingEntry{name, h})
	}
	if h, ok := e.(TaskFailed); ok {
		r.taskFailed = append(r.taskFailed, taskFailedEntry{name, h})
	}
	if h, ok := e.(TaskTimedOut); ok {
		r.taskTimedOut = append(r.taskTimedOut, taskTimedOutEntry{name, h})
	}
	if h, ok := e.(TaskCancelled); ok {
		r.taskCancelled = append(r.taskCancelled, taskCancelledEntry{name, h})
	}
	if h, ok := e.(TaskRejected); ok {
		r.taskRejected = append(r.taskRejected, taskRejectedEntry{name, h})
	}
	if h, ok := e.(TaskDLQ); ok {
		r.taskDLQ = append(r.taskDLQ, taskDLQEntry{name, h})
	}
	if h, ok := e.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension { return r.extensions }

// ──────────────────────────────────────────────────
// Task event emitters
// ──────────────────────────────────────────────────

// EmitTaskStarted notifies all extensions that implement TaskStarted.
func (r *Registry) EmitTaskStarted(ctx context.Context, run *task.Run, a *task.Attempt) {
	for _, e := range r.taskStarted {
		if err := e.hook.OnTaskStarted(ctx, run, a); err != nil {
			r.logHookError("OnTaskStarted", e.name, err)
		}
	}
}

// EmitTaskCompleted notifies all extensions that implement TaskCompleted.
func (r *Registry) EmitTaskCompleted(ctx context.Context, run *task.Run, elapsed time.Duration) {
	for _, e := range r.taskCompleted {
		if err := e.hook.OnTaskCompleted(ctx, run, elapsed); err != nil {
			r.logHookError("OnTaskCompleted", e.name, err)
		}
	}
}

// EmitTaskRetrying notifies all extensions that implement TaskRetrying.
func (r *Registry) EmitTaskRetrying(ctx context.Context, run *task.Run, attempt int, nextAttemptAt time.Time) {
	for _, e := range r.taskRetrying {
		if err := e.hook.OnTaskRetrying(ctx, run, attempt, nextAttemptAt); err != nil {
			r.logHookError("OnTaskRetrying", e.name, err)
		}
	}
}

// EmitTaskFailed notifies all extensions that implement TaskFailed.
func (r *Registry) EmitTaskFailed(ctx context.Context, run *task.Run, taskErr error) {
	for _, e := range r.taskFailed {
		if err := e.hook.OnTaskFailed(ctx, run, taskErr); err != nil {
			r.logHookError("OnTaskFailed", e.name, err)
		}
	}
}

// EmitTaskTimedOut notifies all extensions that implement TaskTimedOut.
func (r *Registry) EmitTaskTimedOut(ctx context.Context, run *task.Run, timeout time.Duration) {
	for _, e := range r.taskTimedOut {
		if err := e.hook.OnTaskTimedOut(ctx, run, timeout); err != nil {
			r.logHookError("OnTaskTimedOut", e.name, err)
		}
	}
}

// EmitTaskCancelled notifies all extensions that implement TaskCancelled.
func (r *Registry) EmitTaskCancelled(ctx context.Context, run *task.Run) {
	for _, e := range r.taskCancelled {
		if err := e.hook.OnTaskCancelled(ctx, run); err != nil {
			r.logHookError("OnTaskCancelled", e.name, err)
		}
	}
}

// EmitTaskRejected notifies all extensions that implement TaskRejected.
func (r *Registry) EmitTaskRejected(ctx context.Context, cfg task.Config, runID id.RunID, reason error) {
	for _, e := range r.taskRejected {
		if err := e.hook.OnTaskRejected(ctx, cfg, runID, reason); err != nil {
			r.logHookError("OnTaskRejected", e.name, err)
		}
	}
}

// EmitTaskDLQ notifies all extensions that implement TaskDLQ.
func (r *Registry) EmitTaskDLQ(ctx context.Context, run *task.Run, taskErr error) {
	for _, e := range r.taskDLQ {
		if err := e.hook.OnTaskDLQ(ctx, run, taskErr); err != nil {
			r.logHookError("OnTaskDLQ", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Other event emitters
// ──────────────────────────────────────────────────

// EmitShutdown notifies all extensions that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Hook errors are never propagated to the run.
func (r *Registry) logHookError(hook, extName string, err error) {
	r.logger.Warn("extension hook error",
		slog.String("hook", hook),
		slog.String("extension", extName),
		slog.String("error", err.Error()),
	)
}
