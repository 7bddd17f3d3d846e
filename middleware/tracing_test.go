package middleware_test

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	mw "github.com/xraph/headless/middleware"
)

func setupTestTracer() (*tracetest.SpanRecorder, trace.Tracer) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	return sr, tp.Tracer("test")
}

func TestTracing_CreatesSpan(t *testing.T) {
	sr, tracer := setupTestTracer()
	m := mw.TracingWithTracer(tracer)

	if err := m(context.Background(), newTestAttempt(), func(_ context.Context) error { return nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name() != "headless.task.attempt" {
		t.Errorf("span name = %q, want %q", spans[0].Name(), "headless.task.attempt")
	}
	if spans[0].Status().Code != codes.Ok {
		t.Errorf("status = %v, want Ok", spans[0].Status().Code)
	}
}

func TestTracing_SpanAttributes(t *testing.T) {
	sr, tracer := setupTestTracer()
	m := mw.TracingWithTracer(tracer)
	a := newTestAttempt()

	_ = m(context.Background(), a, func(_ context.Context) error { return nil })

	attrs := make(map[attribute.Key]attribute.Value)
	for _, kv := range sr.Ended()[0].Attributes() {
		attrs[kv.Key] = kv.Value
	}

	if got := attrs["headless.task.key"].AsString(); got != "UploadLogs" {
		t.Errorf("headless.task.key = %q", got)
	}
	if got := attrs["headless.run.id"].AsString(); got != a.RunID.String() {
		t.Errorf("headless.run.id = %q, want %q", got, a.RunID.String())
	}
	if got := attrs["headless.attempt"].AsInt64(); got != 2 {
		t.Errorf("headless.attempt = %d, want 2", got)
	}
	if got := attrs["headless.retries"].AsInt64(); got != 2 {
		t.Errorf("headless.retries = %d, want 2", got)
	}
	if got := attrs["headless.timeout_ms"].AsInt64(); got != 5000 {
		t.Errorf("headless.timeout_ms = %d, want 5000", got)
	}
	if attrs["headless.allowed_in_foreground"].AsBool() {
		t.Error("headless.allowed_in_foreground = true, want false")
	}
}

func TestTracing_RecordsError(t *testing.T) {
	sr, tracer := setupTestTracer()
	m := mw.TracingWithTracer(tracer)
	want := errors.New("boom")

	err := m(context.Background(), newTestAttempt(), func(_ context.Context) error { return want })
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}

	span := sr.Ended()[0]
	if span.Status().Code != codes.Error {
		t.Errorf("status = %v, want Error", span.Status().Code)
	}
	if span.Status().Description != "boom" {
		t.Errorf("description = %q, want boom", span.Status().Description)
	}
	if len(span.Events()) == 0 {
		t.Error("expected the error to be recorded as a span event")
	}
}
