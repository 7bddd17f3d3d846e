// Package dlq provides the dead letter queue for runs that have exhausted
// their retry budget. It supports inspection, replay, and purging.
//
// When the last attempt of a run fails, the executor calls [Service.Push]
// to move it into the DLQ. The config the run was submitted with (encoded
// with [task.Encode]), the error message, and attempt counts are kept.
//
// # Entry
//
// A [Entry] captures:
//   - RunID / TaskKey: original run identity
//   - Config: the encoded task config as submitted
//   - Error: the final error message
//   - Attempts / MaxRetries: exhausted retry budget
//   - FailedAt: when the terminal failure occurred
//   - ReplayedAt: set when the entry is replayed (nil if not yet replayed)
//
// # Service
//
//	svc := dlq.NewService(store, eng)
//
//	// Push is called by the executor on terminal failure.
//	svc.Push(ctx, run, cfg, err)
//
//	// Access the underlying store for list/get/purge/count.
//	svc.DLQStore().ListDLQ(ctx, dlq.ListOpts{Limit: 50})
//
// # Replay
//
// [Service.Replay] decodes the stored config and starts a new run through
// the [Submitter], then sets ReplayedAt on the entry.
package dlq
