// Package task defines the headless task configuration, the handler
// registry, run records, and the run store interface.
//
// # Config
//
// A [Config] carries the launch parameters for one task invocation:
//
//   - TaskKey: which registered handler runs
//   - Data: the structured payload handed to the handler
//   - Timeout: wall-clock bound per attempt (zero = unbounded)
//   - AllowedInForeground: whether the task may run while the host is visible
//   - NumberOfRetries / RetryDelay: the retry policy after a failure
//
// Configs are values with unexported fields and no setters. A different
// configuration is always a new value, built with [New] or derived with
// [Config.Copy] or [Config.Derive]:
//
//	cfg := task.New("SyncData", payload.Map{},
//	    task.WithTimeout(5*time.Second),
//	    task.WithAllowedInForeground(true),
//	    task.WithRetries(3, time.Second),
//	)
//
// Construction performs no validation; the executor reports unusable
// values when it consumes the config.
//
// # Registry
//
// [Registry] maps task keys to [HandlerFunc] values. Typed handlers are
// registered through [Definition] and [RegisterDefinition], which decode
// the payload into T before calling the handler.
package task
