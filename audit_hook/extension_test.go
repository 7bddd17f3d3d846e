package audithook_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	ah "github.com/xraph/headless/audit_hook"
	"github.com/xraph/headless/ext"
	"github.com/xraph/headless/id"
	"github.com/xraph/headless/payload"
	"github.com/xraph/headless/task"
)

// ── Mock recorder ────────────────────────────────────

// mockRecorder captures audit events for verification.
type mockRecorder struct {
	mu     sync.Mutex
	events []*ah.AuditEvent
}

func (m *mockRecorder) Record(_ context.Context, evt *ah.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
	return nil
}

func (m *mockRecorder) last() *ah.AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.events) == 0 {
		return nil
	}
	return m.events[len(m.events)-1]
}

func (m *mockRecorder) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

func (m *mockRecorder) findByAction(action string) *ah.AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, evt := range m.events {
		if evt.Action == action {
			return evt
		}
	}
	return nil
}

// ── Test helpers ─────────────────────────────────────

func newTestConfig() task.Config {
	return task.NewWithRetries("upload-logs", payload.Map{"bucket": "b"}, 5000, false, 3, 100)
}

func newTestRun() *task.Run {
	r := task.NewRun(newTestConfig())
	r.Attempts = 2
	return r
}

func assertEvent(t *testing.T, evt *ah.AuditEvent, action, severity, outcome string) {
	t.Helper()
	if evt == nil {
		t.Fatal("no event recorded")
	}
	if evt.Action != action {
		t.Errorf("Action: want %q, got %q", action, evt.Action)
	}
	if evt.Severity != severity {
		t.Errorf("Severity: want %q, got %q", severity, evt.Severity)
	}
	if evt.Outcome != outcome {
		t.Errorf("Outcome: want %q, got %q", outcome, evt.Outcome)
	}
}

// ── Tests ────────────────────────────────────────────

func TestExtension_Name(t *testing.T) {
	e := ah.New(&mockRecorder{})
	if e.Name() != "audit-hook" {
		t.Errorf("expected name %q, got %q", "audit-hook", e.Name())
	}
}

func TestExtension_TaskStarted(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)
	r := newTestRun()

	if err := e.OnTaskStarted(context.Background(), r, &task.Attempt{RunID: r.ID, Number: 2}); err != nil {
		t.Fatalf("OnTaskStarted: %v", err)
	}

	evt := rec.last()
	assertEvent(t, evt, ah.ActionTaskStarted, ah.SeverityInfo, ah.OutcomeSuccess)
	if evt.Resource != ah.ResourceRun {
		t.Errorf("Resource: want %q, got %q", ah.ResourceRun, evt.Resource)
	}
	if evt.Category != ah.CategoryTask {
		t.Errorf("Category: want %q, got %q", ah.CategoryTask, evt.Category)
	}
	if evt.ResourceID != r.ID.String() {
		t.Errorf("ResourceID: want %q, got %q", r.ID.String(), evt.ResourceID)
	}
	if evt.Metadata["task_key"] != "upload-logs" {
		t.Errorf("task_key: want %q, got %v", "upload-logs", evt.Metadata["task_key"])
	}
	if evt.Metadata["retry"] != true {
		t.Errorf("retry: want true, got %v", evt.Metadata["retry"])
	}
}

func TestExtension_TaskCompleted(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)

	if err := e.OnTaskCompleted(context.Background(), newTestRun(), 1500*time.Millisecond); err != nil {
		t.Fatalf("OnTaskCompleted: %v", err)
	}

	evt := rec.last()
	assertEvent(t, evt, ah.ActionTaskCompleted, ah.SeverityInfo, ah.OutcomeSuccess)
	if evt.Metadata["elapsed_ms"] != int64(1500) {
		t.Errorf("elapsed_ms: want 1500, got %v", evt.Metadata["elapsed_ms"])
	}
}

func TestExtension_TaskFailed(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)

	if err := e.OnTaskFailed(context.Background(), newTestRun(), errors.New("upload refused")); err != nil {
		t.Fatalf("OnTaskFailed: %v", err)
	}

	evt := rec.last()
	assertEvent(t, evt, ah.ActionTaskFailed, ah.SeverityCritical, ah.OutcomeFailure)
	if evt.Reason != "upload refused" {
		t.Errorf("Reason: want %q, got %q", "upload refused", evt.Reason)
	}
	if evt.Metadata["error"] != "upload refused" {
		t.Errorf("error: want %q, got %v", "upload refused", evt.Metadata["error"])
	}
	if evt.Metadata["max_retries"] != 3 {
		t.Errorf("max_retries: want 3, got %v", evt.Metadata["max_retries"])
	}
}

func TestExtension_TaskRetrying(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)
	next := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	if err := e.OnTaskRetrying(context.Background(), newTestRun(), 3, next); err != nil {
		t.Fatalf("OnTaskRetrying: %v", err)
	}

	evt := rec.last()
	assertEvent(t, evt, ah.ActionTaskRetrying, ah.SeverityWarning, ah.OutcomeFailure)
	if evt.Metadata["attempt"] != 3 {
		t.Errorf("attempt: want 3, got %v", evt.Metadata["attempt"])
	}
	if evt.Metadata["next_attempt_at"] != "2026-01-02T03:04:05Z" {
		t.Errorf("next_attempt_at: got %v", evt.Metadata["next_attempt_at"])
	}
}

func TestExtension_TaskTimedOut(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)

	if err := e.OnTaskTimedOut(context.Background(), newTestRun(), 5*time.Second); err != nil {
		t.Fatalf("OnTaskTimedOut: %v", err)
	}

	evt := rec.last()
	assertEvent(t, evt, ah.ActionTaskTimedOut, ah.SeverityCritical, ah.OutcomeFailure)
	if evt.Metadata["timeout_ms"] != int64(5000) {
		t.Errorf("timeout_ms: want 5000, got %v", evt.Metadata["timeout_ms"])
	}
}

func TestExtension_TaskCancelled(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)

	if err := e.OnTaskCancelled(context.Background(), newTestRun()); err != nil {
		t.Fatalf("OnTaskCancelled: %v", err)
	}
	assertEvent(t, rec.last(), ah.ActionTaskCancelled, ah.SeverityWarning, ah.OutcomeFailure)
}

func TestExtension_TaskRejected(t *testing.T) {
	tests := []struct {
		name         string
		runID        id.RunID
		wantResource string
	}{
		{"at submission", id.RunID{}, ah.ResourceConfig},
		{"before an attempt", id.NewRunID(), ah.ResourceRun},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &mockRecorder{}
			e := ah.New(rec)

			if err := e.OnTaskRejected(context.Background(), newTestConfig(), tt.runID, errors.New("foreground")); err != nil {
				t.Fatalf("OnTaskRejected: %v", err)
			}

			evt := rec.last()
			assertEvent(t, evt, ah.ActionTaskRejected, ah.SeverityWarning, ah.OutcomeFailure)
			if evt.Resource != tt.wantResource {
				t.Errorf("Resource: want %q, got %q", tt.wantResource, evt.Resource)
			}
			if tt.runID.IsNil() && evt.ResourceID != "" {
				t.Errorf("ResourceID: want empty, got %q", evt.ResourceID)
			}
			if evt.Metadata["allowed_in_foreground"] != false {
				t.Errorf("allowed_in_foreground: want false, got %v", evt.Metadata["allowed_in_foreground"])
			}
		})
	}
}

func TestExtension_TaskDLQ(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)

	if err := e.OnTaskDLQ(context.Background(), newTestRun(), errors.New("terminal")); err != nil {
		t.Fatalf("OnTaskDLQ: %v", err)
	}
	assertEvent(t, rec.last(), ah.ActionTaskDLQ, ah.SeverityCritical, ah.OutcomeFailure)
}

func TestExtension_Shutdown(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)

	if err := e.OnShutdown(context.Background()); err != nil {
		t.Fatalf("OnShutdown: %v", err)
	}
	evt := rec.last()
	assertEvent(t, evt, ah.ActionShutdown, ah.SeverityInfo, ah.OutcomeSuccess)
	if evt.Category != ah.CategoryEngine {
		t.Errorf("Category: want %q, got %q", ah.CategoryEngine, evt.Category)
	}
}

// ── WithActions filter tests ─────────────────────────

func TestExtension_WithActions_FiltersDisabled(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec, ah.WithActions(ah.ActionTaskCompleted, ah.ActionTaskFailed))

	ctx := context.Background()
	r := newTestRun()

	// Started is NOT enabled.
	if err := e.OnTaskStarted(ctx, r, &task.Attempt{RunID: r.ID, Number: 1}); err != nil {
		t.Fatalf("OnTaskStarted: %v", err)
	}
	if rec.count() != 0 {
		t.Errorf("expected 0 events (started disabled), got %d", rec.count())
	}

	if err := e.OnTaskCompleted(ctx, r, 50*time.Millisecond); err != nil {
		t.Fatalf("OnTaskCompleted: %v", err)
	}
	if rec.count() != 1 {
		t.Errorf("expected 1 event (completed enabled), got %d", rec.count())
	}

	if err := e.OnTaskFailed(ctx, r, errors.New("boom")); err != nil {
		t.Fatalf("OnTaskFailed: %v", err)
	}
	if rec.count() != 2 {
		t.Errorf("expected 2 events, got %d", rec.count())
	}
}

// ── RecorderFunc adapter test ────────────────────────

func TestRecorderFunc(t *testing.T) {
	var captured *ah.AuditEvent
	fn := ah.RecorderFunc(func(_ context.Context, evt *ah.AuditEvent) error {
		captured = evt
		return nil
	})

	e := ah.New(fn)
	if err := e.OnTaskCancelled(context.Background(), newTestRun()); err != nil {
		t.Fatalf("OnTaskCancelled: %v", err)
	}
	if captured == nil {
		t.Fatal("RecorderFunc was not called")
	}
	if captured.Action != ah.ActionTaskCancelled {
		t.Errorf("Action: want %q, got %q", ah.ActionTaskCancelled, captured.Action)
	}
}

// ── Recorder error handling test ─────────────────────

func TestExtension_RecorderError_DoesNotPropagate(t *testing.T) {
	failingRecorder := ah.RecorderFunc(func(_ context.Context, _ *ah.AuditEvent) error {
		return errors.New("audit backend down")
	})

	e := ah.New(failingRecorder)
	if err := e.OnTaskFailed(context.Background(), newTestRun(), errors.New("boom")); err != nil {
		t.Fatalf("expected no error (audit failure swallowed), got: %v", err)
	}
}

// ── Registry integration test ────────────────────────

func TestExtension_ViaRegistry(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)

	reg := ext.NewRegistry(slog.Default())
	reg.Register(e)

	ctx := context.Background()
	r := newTestRun()

	reg.EmitTaskStarted(ctx, r, &task.Attempt{RunID: r.ID, Number: 1})
	reg.EmitTaskCompleted(ctx, r, 50*time.Millisecond)
	reg.EmitTaskRetrying(ctx, r, 2, time.Now())
	reg.EmitTaskFailed(ctx, r, errors.New("fail"))
	reg.EmitTaskTimedOut(ctx, r, time.Second)
	reg.EmitTaskCancelled(ctx, r)
	reg.EmitTaskRejected(ctx, newTestConfig(), id.RunID{}, errors.New("foreground"))
	reg.EmitTaskDLQ(ctx, r, errors.New("dead"))
	reg.EmitShutdown(ctx)

	allActions := ah.AllActions()
	if rec.count() != len(allActions) {
		t.Fatalf("expected %d events, got %d", len(allActions), rec.count())
	}
	for _, action := range allActions {
		if rec.findByAction(action) == nil {
			t.Errorf("missing event for action %q", action)
		}
	}
}

func TestAllActions(t *testing.T) {
	if n := len(ah.AllActions()); n != 9 {
		t.Errorf("expected 9 actions, got %d", n)
	}
}
