// Package observability provides an OpenTelemetry metrics extension for
// headless. The MetricsExtension implements the task lifecycle hooks to
// record run-level counters: attempts started, runs completed, failed,
// timed out, cancelled, rejected, retried, and dead-lettered.
//
// For per-attempt tracing and duration metrics, see the middleware
// package: middleware.Tracing() and middleware.Metrics().
package observability
