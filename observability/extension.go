package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/headless/ext"
	"github.com/xraph/headless/id"
	"github.com/xraph/headless/task"
)

// Compile-time interface checks.
var (
	_ ext.Extension     = (*MetricsExtension)(nil)
	_ ext.TaskStarted   = (*MetricsExtension)(nil)
	_ ext.TaskCompleted = (*MetricsExtension)(nil)
	_ ext.TaskRetrying  = (*MetricsExtension)(nil)
	_ ext.TaskFailed    = (*MetricsExtension)(nil)
	_ ext.TaskTimedOut  = (*MetricsExtension)(nil)
	_ ext.TaskCancelled = (*MetricsExtension)(nil)
	_ ext.TaskRejected  = (*MetricsExtension)(nil)
	_ ext.TaskDLQ       = (*MetricsExtension)(nil)
)

// meterName is the instrumentation scope of the extension.
const meterName = "github.com/xraph/headless/observability"

// MetricsExtension records system-wide task lifecycle counters. Every
// counter carries a task_key attribute.
type MetricsExtension struct {
	TaskStarted   metric.Int64Counter
	TaskCompleted metric.Int64Counter
	TaskFailed    metric.Int64Counter
	TaskRetried   metric.Int64Counter
	TaskTimedOut  metric.Int64Counter
	TaskCancelled metric.Int64Counter
	TaskRejected  metric.Int64Counter
	TaskDLQ       metric.Int64Counter
}

// NewMetricsExtension creates a MetricsExtension on the global
// MeterProvider.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter(meterName))
}

// NewMetricsExtensionWithMeter creates a MetricsExtension with the
// provided meter.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	return &MetricsExtension{
		TaskStarted:   counter(meter, "headless.task.started", "Task attempts started"),
		TaskCompleted: counter(meter, "headless.task.completed", "Task runs completed"),
		TaskFailed:    counter(meter, "headless.task.failed", "Task runs failed after their last attempt"),
		TaskRetried:   counter(meter, "headless.task.retried", "Task retries scheduled"),
		TaskTimedOut:  counter(meter, "headless.task.timed_out", "Task runs ended by their timeout"),
		TaskCancelled: counter(meter, "headless.task.cancelled", "Task runs cancelled"),
		TaskRejected:  counter(meter, "headless.task.rejected", "Task configs refused before an attempt"),
		TaskDLQ:       counter(meter, "headless.task.dlq", "Task runs pushed to the dead letter queue"),
	}
}

func counter(meter metric.Meter, name, desc string) metric.Int64Counter {
	// On error the OTel API returns a noop instrument.
	c, _ := meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit("{run}"))
	return c
}

func inc(ctx context.Context, c metric.Int64Counter, taskKey string) {
	c.Add(ctx, 1, metric.WithAttributes(attribute.String("task_key", taskKey)))
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// ── Task lifecycle hooks ────────────────────────────

// OnTaskStarted implements ext.TaskStarted.
func (m *MetricsExtension) OnTaskStarted(ctx context.Context, r *task.Run, _ *task.Attempt) error {
	inc(ctx, m.TaskStarted, r.TaskKey)
	return nil
}

// OnTaskCompleted implements ext.TaskCompleted.
func (m *MetricsExtension) OnTaskCompleted(ctx context.Context, r *task.Run, _ time.Duration) error {
	inc(ctx, m.TaskCompleted, r.TaskKey)
	return nil
}

// OnTaskRetrying implements ext.TaskRetrying.
func (m *MetricsExtension) OnTaskRetrying(ctx context.Context, r *task.Run, _ int, _ time.Time) error {
	inc(ctx, m.TaskRetried, r.TaskKey)
	return nil
}

// OnTaskFailed implements ext.TaskFailed.
func (m *MetricsExtension) OnTaskFailed(ctx context.Context, r *task.Run, _ error) error {
	inc(ctx, m.TaskFailed, r.TaskKey)
	return nil
}

// OnTaskTimedOut implements ext.TaskTimedOut.
func (m *MetricsExtension) OnTaskTimedOut(ctx context.Context, r *task.Run, _ time.Duration) error {
	inc(ctx, m.TaskTimedOut, r.TaskKey)
	return nil
}

// OnTaskCancelled implements ext.TaskCancelled.
func (m *MetricsExtension) OnTaskCancelled(ctx context.Context, r *task.Run) error {
	inc(ctx, m.TaskCancelled, r.TaskKey)
	return nil
}

// OnTaskRejected implements ext.TaskRejected.
func (m *MetricsExtension) OnTaskRejected(ctx context.Context, cfg task.Config, _ id.RunID, _ error) error {
	inc(ctx, m.TaskRejected, cfg.TaskKey())
	return nil
}

// OnTaskDLQ implements ext.TaskDLQ.
func (m *MetricsExtension) OnTaskDLQ(ctx context.Context, r *task.Run, _ error) error {
	inc(ctx, m.TaskDLQ, r.TaskKey)
	return nil
}
