package middleware

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/headless"
	"github.com/xraph/headless/task"
)

// meterName is the instrumentation scope name for headless metrics.
const meterName = "github.com/xraph/headless"

// Metrics returns middleware that records per-attempt metrics using the
// global MeterProvider.
//
// Instruments:
//   - headless.task.duration (Float64Histogram): attempt time in seconds
//   - headless.task.attempts (Int64Counter): attempts executed
//
// Both carry task_key, retry (true for attempts after the first), and
// status ("ok", "error", or "timeout").
func Metrics() Middleware {
	return MetricsWithMeter(otel.Meter(meterName))
}

// MetricsWithMeter returns metrics middleware using the provided meter.
func MetricsWithMeter(meter metric.Meter) Middleware {
	// On error the OTel API returns noop instruments.
	duration, _ := meter.Float64Histogram(
		"headless.task.duration",
		metric.WithDescription("Duration of task attempts in seconds"),
		metric.WithUnit("s"),
	)
	attempts, _ := meter.Int64Counter(
		"headless.task.attempts",
		metric.WithDescription("Total number of task attempts"),
		metric.WithUnit("{attempt}"),
	)

	return func(ctx context.Context, a *task.Attempt, next Handler) error {
		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start).Seconds()

		status := "ok"
		switch {
		case errors.Is(err, headless.ErrTaskTimeout):
			status = "timeout"
		case err != nil:
			status = "error"
		}

		attrs := metric.WithAttributes(
			attribute.String("task_key", a.Config.TaskKey()),
			attribute.Bool("retry", a.IsRetry()),
			attribute.String("status", status),
		)
		duration.Record(ctx, elapsed, attrs)
		attempts.Add(ctx, 1, attrs)

		return err
	}
}
