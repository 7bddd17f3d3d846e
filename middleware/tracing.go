package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/headless/task"
)

// tracerName is the instrumentation scope name for headless tracing.
const tracerName = "github.com/xraph/headless"

// Tracing returns middleware that wraps each attempt in an OpenTelemetry
// span using the global TracerProvider.
//
// Span attributes: headless.task.key, headless.run.id, headless.attempt,
// headless.retries, headless.timeout_ms, headless.allowed_in_foreground.
func Tracing() Middleware {
	return TracingWithTracer(otel.Tracer(tracerName))
}

// TracingWithTracer returns tracing middleware using the provided tracer.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, a *task.Attempt, next Handler) error {
		ctx, span := tracer.Start(ctx, "headless.task.attempt",
			trace.WithAttributes(
				attribute.String("headless.task.key", a.Config.TaskKey()),
				attribute.String("headless.run.id", a.RunID.String()),
				attribute.Int("headless.attempt", a.Number),
				attribute.Int("headless.retries", a.Config.NumberOfRetries()),
				attribute.Int64("headless.timeout_ms", a.Config.TimeoutMs()),
				attribute.Bool("headless.allowed_in_foreground", a.Config.AllowedInForeground()),
			),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}

		return err
	}
}
