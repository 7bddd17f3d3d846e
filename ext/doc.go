// Package ext defines the extension system for headless.
//
// Extensions are notified of task lifecycle events and can react to them,
// recording metrics or writing audit logs for example. Each lifecycle hook
// is a separate interface so extensions opt in only to the events they
// care about.
//
// # Implementing an Extension
//
//	type MyExtension struct{}
//
//	func (e *MyExtension) Name() string { return "my-extension" }
//
//	func (e *MyExtension) OnTaskCompleted(ctx context.Context, r *task.Run, elapsed time.Duration) error {
//	    log.Printf("task %s (%s) completed in %s", r.TaskKey, r.ID, elapsed)
//	    return nil
//	}
//
// # Task Lifecycle Hooks
//
//   - [TaskStarted]: an attempt began executing
//   - [TaskCompleted]: the run finished successfully
//   - [TaskRetrying]: an attempt failed and a retry is scheduled
//   - [TaskFailed]: the run failed with no retries remaining
//   - [TaskTimedOut]: an attempt exceeded the configured timeout
//   - [TaskCancelled]: the run was cancelled
//   - [TaskRejected]: a config was refused before running
//   - [TaskDLQ]: the run was moved to the dead letter queue
//
// # Other Hooks
//
//   - [Shutdown]: the engine is shutting down gracefully
//
// The [Registry] fans out each event to all registered extensions that
// implement the corresponding hook interface.
package ext
