package task_test

import (
	"context"
	"errors"
	"testing"

	"github.com/xraph/headless/payload"
	"github.com/xraph/headless/task"
)

type uploadPayload struct {
	File string `json:"file"`
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := task.NewRegistry()

	var got uploadPayload
	task.RegisterDefinition(r, task.NewDefinition("UploadLogs", func(_ context.Context, p uploadPayload) error {
		got = p
		return nil
	}))

	h, ok := r.Get("UploadLogs")
	if !ok {
		t.Fatal("expected handler to be registered")
	}
	if err := h(context.Background(), task.New("UploadLogs", payload.Map{"file": "a.log"})); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.File != "a.log" {
		t.Errorf("File = %q, want %q", got.File, "a.log")
	}
}

func TestRegistry_GetUnknown(t *testing.T) {
	r := task.NewRegistry()
	if _, ok := r.Get("nonexistent"); ok {
		t.Fatal("expected no handler for unregistered key")
	}
	if r.Has("nonexistent") {
		t.Fatal("Has should report false")
	}
}

func TestRegistry_Keys(t *testing.T) {
	r := task.NewRegistry()
	noop := func(context.Context, task.Config) error { return nil }
	r.Register("c", noop)
	r.Register("a", noop)
	r.Register("b", noop)

	keys := r.Keys()
	want := []string{"a", "b", "c"}
	if len(keys) != len(want) {
		t.Fatalf("Keys() = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("keys[%d] = %q, want %q", i, keys[i], want[i])
		}
	}
}

func TestRegistry_NilPayload(t *testing.T) {
	r := task.NewRegistry()
	called := false
	task.RegisterDefinition(r, task.NewDefinition("no-payload", func(_ context.Context, p uploadPayload) error {
		called = true
		if p.File != "" {
			t.Errorf("expected zero payload, got %+v", p)
		}
		return nil
	}))

	h, _ := r.Get("no-payload")
	if err := h(context.Background(), task.New("no-payload", nil)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("handler not called with nil payload")
	}
}

func TestRegistry_DecodeError(t *testing.T) {
	r := task.NewRegistry()
	task.RegisterDefinition(r, task.NewDefinition("typed", func(_ context.Context, _ uploadPayload) error {
		t.Fatal("handler should not be called with a mismatched payload")
		return nil
	}))

	h, _ := r.Get("typed")
	if err := h(context.Background(), task.New("typed", payload.Map{"file": 42})); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestRegistry_HandlerError(t *testing.T) {
	r := task.NewRegistry()
	want := errors.New("handler failed")
	r.Register("failing", func(context.Context, task.Config) error { return want })

	h, _ := r.Get("failing")
	if err := h(context.Background(), task.New("failing", nil)); !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}

func TestRegistry_Overwrite(t *testing.T) {
	r := task.NewRegistry()
	r.Register("k", func(context.Context, task.Config) error { return errors.New("old") })
	r.Register("k", func(context.Context, task.Config) error { return errors.New("new") })

	h, _ := r.Get("k")
	if err := h(context.Background(), task.New("k", nil)); err == nil || err.Error() != "new" {
		t.Fatalf("expected 'new' error, got %v", err)
	}
}

func TestRunStateTerminal(t *testing.T) {
	terminal := map[task.State]bool{
		task.StatePending:   false,
		task.StateRunning:   false,
		task.StateRetrying:  false,
		task.StateCompleted: true,
		task.StateFailed:    true,
		task.StateTimedOut:  true,
		task.StateCancelled: true,
	}
	for s, want := range terminal {
		if s.Terminal() != want {
			t.Errorf("%s.Terminal() = %v, want %v", s, s.Terminal(), want)
		}
	}
}

func TestNewRun(t *testing.T) {
	cfg := task.NewWithRetries("SyncData", nil, 5000, true, 3, 1000)
	r := task.NewRun(cfg)
	if r.ID.IsNil() {
		t.Error("expected run ID")
	}
	if r.State != task.StatePending {
		t.Errorf("State = %q, want pending", r.State)
	}
	if r.TaskKey != "SyncData" || r.MaxRetries != 3 || !r.AllowedInForeground {
		t.Errorf("unexpected run %+v", r)
	}
}
