// Package audithook is a headless extension that bridges task lifecycle
// events to an audit trail backend.
//
// Every task lifecycle hook emits a structured audit event through the
// [Recorder] interface. The extension assigns severity levels (info for
// normal operations, warning for retries, rejections and cancellations,
// critical for terminal failures) and metadata (task key, attempt,
// elapsed time, errors).
//
// # Usage
//
//	audithook.New(audithook.RecorderFunc(func(ctx context.Context, evt *audithook.AuditEvent) error {
//	    return auditLog.Write(ctx, evt.Action, evt.ResourceID, evt.Metadata)
//	}))
//
// # Selective filtering
//
//	audithook.New(recorder,
//	    audithook.WithActions(
//	        audithook.ActionTaskFailed,
//	        audithook.ActionTaskDLQ,
//	        audithook.ActionTaskRejected,
//	    ),
//	)
package audithook
