package audithook

// Audit event actions. Each constant corresponds to one ext lifecycle hook
// and becomes the Action field of the audit event.
const (
	ActionTaskStarted   = "task.started"
	ActionTaskCompleted = "task.completed"
	ActionTaskRetrying  = "task.retrying"
	ActionTaskFailed    = "task.failed"
	ActionTaskTimedOut  = "task.timed_out"
	ActionTaskCancelled = "task.cancelled"
	ActionTaskRejected  = "task.rejected"
	ActionTaskDLQ       = "task.dlq"
	ActionShutdown      = "engine.shutdown"
)

// Audit event categories group related actions.
const (
	CategoryTask   = "headless.task"
	CategoryEngine = "headless.engine"
)

// Resource types used as the Resource field in audit events.
const (
	ResourceRun    = "task_run"
	ResourceConfig = "task_config"
	ResourceEngine = "engine"
)

// AllActions returns every action this extension can emit.
func AllActions() []string {
	return []string{
		ActionTaskStarted,
		ActionTaskCompleted,
		ActionTaskRetrying,
		ActionTaskFailed,
		ActionTaskTimedOut,
		ActionTaskCancelled,
		ActionTaskRejected,
		ActionTaskDLQ,
		ActionShutdown,
	}
}
