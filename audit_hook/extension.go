package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/headless/ext"
	"github.com/xraph/headless/id"
	"github.com/xraph/headless/task"
)

// Compile-time interface checks.
var (
	_ ext.Extension     = (*Extension)(nil)
	_ ext.TaskStarted   = (*Extension)(nil)
	_ ext.TaskCompleted = (*Extension)(nil)
	_ ext.TaskRetrying  = (*Extension)(nil)
	_ ext.TaskFailed    = (*Extension)(nil)
	_ ext.TaskTimedOut  = (*Extension)(nil)
	_ ext.TaskCancelled = (*Extension)(nil)
	_ ext.TaskRejected  = (*Extension)(nil)
	_ ext.TaskDLQ       = (*Extension)(nil)
	_ ext.Shutdown      = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	// Record persists a fully-formed audit event.
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is one audit trail entry.
type AuditEvent struct {
	// What happened
	Action   string `json:"action"`
	Resource string `json:"resource"`
	Category string `json:"category"`

	// Details
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Severity constants.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Outcome constants.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Extension bridges task lifecycle events to an audit trail backend.
// Each lifecycle hook emits a structured audit event through the [Recorder].
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements ext.Extension.
func (e *Extension) Name() string { return "audit-hook" }

// ── Task lifecycle hooks ────────────────────────────

// OnTaskStarted implements ext.TaskStarted.
func (e *Extension) OnTaskStarted(ctx context.Context, r *task.Run, a *task.Attempt) error {
	return e.record(ctx, ActionTaskStarted, SeverityInfo, OutcomeSuccess,
		ResourceRun, r.ID.String(), CategoryTask, nil,
		"task_key", r.TaskKey,
		"attempt", a.Number,
		"retry", a.IsRetry(),
	)
}

// OnTaskCompleted implements ext.TaskCompleted.
func (e *Extension) OnTaskCompleted(ctx context.Context, r *task.Run, elapsed time.Duration) error {
	return e.record(ctx, ActionTaskCompleted, SeverityInfo, OutcomeSuccess,
		ResourceRun, r.ID.String(), CategoryTask, nil,
		"task_key", r.TaskKey,
		"attempts", r.Attempts,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// OnTaskRetrying implements ext.TaskRetrying.
func (e *Extension) OnTaskRetrying(ctx context.Context, r *task.Run, attempt int, nextAttemptAt time.Time) error {
	return e.record(ctx, ActionTaskRetrying, SeverityWarning, OutcomeFailure,
		ResourceRun, r.ID.String(), CategoryTask, nil,
		"task_key", r.TaskKey,
		"attempt", attempt,
		"max_retries", r.MaxRetries,
		"next_attempt_at", nextAttemptAt.Format(time.RFC3339),
	)
}

// OnTaskFailed implements ext.TaskFailed.
func (e *Extension) OnTaskFailed(ctx context.Context, r *task.Run, taskErr error) error {
	return e.record(ctx, ActionTaskFailed, SeverityCritical, OutcomeFailure,
		ResourceRun, r.ID.String(), CategoryTask, taskErr,
		"task_key", r.TaskKey,
		"attempts", r.Attempts,
		"max_retries", r.MaxRetries,
	)
}

// OnTaskTimedOut implements ext.TaskTimedOut.
func (e *Extension) OnTaskTimedOut(ctx context.Context, r *task.Run, timeout time.Duration) error {
	return e.record(ctx, ActionTaskTimedOut, SeverityCritical, OutcomeFailure,
		ResourceRun, r.ID.String(), CategoryTask, nil,
		"task_key", r.TaskKey,
		"attempts", r.Attempts,
		"timeout_ms", timeout.Milliseconds(),
	)
}

// OnTaskCancelled implements ext.TaskCancelled.
func (e *Extension) OnTaskCancelled(ctx context.Context, r *task.Run) error {
	return e.record(ctx, ActionTaskCancelled, SeverityWarning, OutcomeFailure,
		ResourceRun, r.ID.String(), CategoryTask, nil,
		"task_key", r.TaskKey,
		"attempts", r.Attempts,
	)
}

// OnTaskRejected implements ext.TaskRejected. Refusals at submission have
// no run, so the event carries an empty ResourceID and the config as
// resource.
func (e *Extension) OnTaskRejected(ctx context.Context, cfg task.Config, runID id.RunID, reason error) error {
	resource, resourceID := ResourceConfig, ""
	if !runID.IsNil() {
		resource, resourceID = ResourceRun, runID.String()
	}
	return e.record(ctx, ActionTaskRejected, SeverityWarning, OutcomeFailure,
		resource, resourceID, CategoryTask, reason,
		"task_key", cfg.TaskKey(),
		"allowed_in_foreground", cfg.AllowedInForeground(),
	)
}

// OnTaskDLQ implements ext.TaskDLQ.
func (e *Extension) OnTaskDLQ(ctx context.Context, r *task.Run, taskErr error) error {
	return e.record(ctx, ActionTaskDLQ, SeverityCritical, OutcomeFailure,
		ResourceRun, r.ID.String(), CategoryTask, taskErr,
		"task_key", r.TaskKey,
		"attempts", r.Attempts,
	)
}

// ── Engine lifecycle hooks ──────────────────────────

// OnShutdown implements ext.Shutdown.
func (e *Extension) OnShutdown(ctx context.Context) error {
	return e.record(ctx, ActionShutdown, SeverityInfo, OutcomeSuccess,
		ResourceEngine, "", CategoryEngine, nil,
	)
}

// ── Internal helpers ────────────────────────────────

// record builds and sends an audit event if the action is enabled.
// The kvPairs argument is a list of key-value pairs added to Metadata.
// Recorder failures are logged, never returned.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			slog.String("action", action),
			slog.String("resource_id", resourceID),
			slog.String("error", recErr.Error()),
		)
	}
	return nil
}
