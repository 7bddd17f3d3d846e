package engine_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/xraph/headless"
	"github.com/xraph/headless/dlq"
	"github.com/xraph/headless/engine"
	"github.com/xraph/headless/id"
	"github.com/xraph/headless/lifecycle"
	"github.com/xraph/headless/payload"
	"github.com/xraph/headless/store/memory"
	"github.com/xraph/headless/task"
	"github.com/xraph/headless/throttle"
)

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

type uploadInput struct {
	File   string `json:"file"`
	Bucket string `json:"bucket"`
}

func newEngine(t *testing.T, opts ...engine.Option) (*engine.Engine, *memory.Store) {
	t.Helper()
	s := memory.New()
	eng, err := engine.New(s, opts...)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = eng.Stop(ctx)
	})
	return eng, s
}

func waitRun(t *testing.T, eng *engine.Engine, runID id.RunID) *task.Run {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r, err := eng.Wait(ctx, runID)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	return r
}

// rejections records TaskRejected events.
type rejections struct {
	mu     sync.Mutex
	runIDs []id.RunID
	errs   []error
}

func (r *rejections) Name() string { return "rejections" }

func (r *rejections) OnTaskRejected(_ context.Context, _ task.Config, runID id.RunID, reason error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runIDs = append(r.runIDs, runID)
	r.errs = append(r.errs, reason)
	return nil
}

func (r *rejections) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.runIDs)
}

// ──────────────────────────────────────────────────
// End-to-end
// ──────────────────────────────────────────────────

func TestEngine_New_NoStore(t *testing.T) {
	if _, err := engine.New(nil); !errors.Is(err, headless.ErrNoStore) {
		t.Errorf("err = %v, want ErrNoStore", err)
	}
}

func TestEngine_RegisterStartWait(t *testing.T) {
	eng, _ := newEngine(t)

	got := make(chan uploadInput, 1)
	engine.Register(eng, task.NewDefinition("UploadLogs", func(_ context.Context, in uploadInput) error {
		got <- in
		return nil
	}))

	runID, err := eng.Start(context.Background(), task.New("UploadLogs",
		payload.Map{"file": "a.log", "bucket": "logs"},
		task.WithTimeout(time.Second),
	))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if runID.IsNil() {
		t.Fatal("Start returned a nil run ID")
	}

	r := waitRun(t, eng, runID)
	if r.State != task.StateCompleted {
		t.Errorf("state = %q, want %q", r.State, task.StateCompleted)
	}
	if r.TaskKey != "UploadLogs" {
		t.Errorf("task key = %q", r.TaskKey)
	}
	in := <-got
	if in.File != "a.log" || in.Bucket != "logs" {
		t.Errorf("payload = %+v", in)
	}
	if eng.IsRunning(runID) {
		t.Error("finished run reported as running")
	}
}

func TestEngine_Submit(t *testing.T) {
	eng, _ := newEngine(t)

	var got atomic.Value
	engine.Register(eng, task.NewDefinition("UploadLogs", func(_ context.Context, in uploadInput) error {
		got.Store(in)
		return nil
	}))

	runID, err := engine.Submit(context.Background(), eng, "UploadLogs", uploadInput{File: "b.log"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitRun(t, eng, runID)

	in, _ := got.Load().(uploadInput)
	if in.File != "b.log" {
		t.Errorf("File = %q, want %q", in.File, "b.log")
	}
}

func TestEngine_RunSync(t *testing.T) {
	eng, _ := newEngine(t)
	engine.RegisterFunc(eng, "noop", func(context.Context, task.Config) error { return nil })

	r, err := eng.Run(context.Background(), task.New("noop", nil))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if r.State != task.StateCompleted || r.Attempts != 1 {
		t.Errorf("run = %s/%d attempts, want completed/1", r.State, r.Attempts)
	}
}

// ──────────────────────────────────────────────────
// Retries
// ──────────────────────────────────────────────────

func TestEngine_RetryUntilSuccess(t *testing.T) {
	eng, _ := newEngine(t)

	var (
		mu    sync.Mutex
		seen  []any
		calls int
	)
	engine.RegisterFunc(eng, "flaky", func(_ context.Context, cfg task.Config) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		seen = append(seen, cfg.Data()["n"])
		cfg.Data()["n"] = "mutated"
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	data := payload.Map{"n": "original"}
	r, err := eng.Run(context.Background(), task.NewWithRetries("flaky", data, 0, false, 2, 5))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
	for i, v := range seen {
		if v != "original" {
			t.Errorf("attempt %d saw %v, want original", i+1, v)
		}
	}
	if r.Attempts != 3 || r.State != task.StateCompleted {
		t.Errorf("run = %s/%d attempts, want completed/3", r.State, r.Attempts)
	}
}

func TestEngine_RetriesExhaustedGoesToDLQ(t *testing.T) {
	eng, s := newEngine(t)
	engine.RegisterFunc(eng, "broken", func(context.Context, task.Config) error {
		return errors.New("boom")
	})

	r, err := eng.Run(context.Background(), task.NewWithRetries("broken", payload.Map{"k": "v"}, 0, false, 1, 1))
	if !errors.Is(err, headless.ErrRetriesExhausted) {
		t.Fatalf("err = %v, want ErrRetriesExhausted", err)
	}
	if r.State != task.StateFailed || r.Attempts != 2 {
		t.Errorf("run = %s/%d attempts, want failed/2", r.State, r.Attempts)
	}

	entries, err := s.ListDLQ(context.Background(), dlq.ListOpts{})
	if err != nil {
		t.Fatalf("ListDLQ: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("dlq entries = %d, want 1", len(entries))
	}
	if entries[0].RunID != r.ID {
		t.Errorf("dlq run id = %s, want %s", entries[0].RunID, r.ID)
	}
}

func TestEngine_DLQDisabled(t *testing.T) {
	eng, s := newEngine(t, engine.WithDLQ(false))
	engine.RegisterFunc(eng, "broken", func(context.Context, task.Config) error {
		return errors.New("boom")
	})

	if _, err := eng.Run(context.Background(), task.New("broken", nil)); err == nil {
		t.Fatal("expected error")
	}
	n, err := s.CountDLQ(context.Background())
	if err != nil {
		t.Fatalf("CountDLQ: %v", err)
	}
	if n != 0 {
		t.Errorf("dlq count = %d, want 0", n)
	}
}

func TestEngine_DLQReplay(t *testing.T) {
	eng, s := newEngine(t)

	var healthy atomic.Bool
	engine.RegisterFunc(eng, "sync", func(_ context.Context, cfg task.Config) error {
		if v, _ := cfg.Data().String("account"); v != "a-1" {
			return errors.New("payload lost")
		}
		if !healthy.Load() {
			return errors.New("backend down")
		}
		return nil
	})

	if _, err := eng.Run(context.Background(), task.New("sync", payload.Map{"account": "a-1"})); err == nil {
		t.Fatal("expected first run to fail")
	}

	entries, err := s.ListDLQ(context.Background(), dlq.ListOpts{})
	if err != nil || len(entries) != 1 {
		t.Fatalf("ListDLQ = %d entries, err %v", len(entries), err)
	}

	healthy.Store(true)
	runID, err := eng.DLQService().Replay(context.Background(), entries[0].ID)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}

	r := waitRun(t, eng, runID)
	if r.State != task.StateCompleted {
		t.Errorf("replayed state = %q, want %q", r.State, task.StateCompleted)
	}

	entry, err := s.GetDLQ(context.Background(), entries[0].ID)
	if err != nil {
		t.Fatalf("GetDLQ: %v", err)
	}
	if entry.ReplayedAt == nil {
		t.Error("expected ReplayedAt to be set")
	}
}

// ──────────────────────────────────────────────────
// Refusals
// ──────────────────────────────────────────────────

func TestEngine_UnregisteredKeyRejected(t *testing.T) {
	rej := &rejections{}
	eng, s := newEngine(t, engine.WithExtension(rej))

	_, err := eng.Start(context.Background(), task.New("missing", nil))
	if !errors.Is(err, headless.ErrTaskNotRegistered) {
		t.Fatalf("err = %v, want ErrTaskNotRegistered", err)
	}
	if rej.count() != 1 || !rej.runIDs[0].IsNil() {
		t.Errorf("rejections = %v, want one with a nil run id", rej.runIDs)
	}

	runs, err := s.ListRuns(context.Background(), task.ListOpts{})
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("runs = %d, want 0", len(runs))
	}
}

func TestEngine_ForegroundRefusal(t *testing.T) {
	tracker := lifecycle.NewTracker(true)
	rej := &rejections{}
	eng, _ := newEngine(t, engine.WithHostState(tracker), engine.WithExtension(rej))

	var calls atomic.Int32
	engine.RegisterFunc(eng, "bg", func(context.Context, task.Config) error {
		calls.Add(1)
		return nil
	})

	_, err := eng.Start(context.Background(), task.NewWithForeground("bg", nil, 0, false))
	if !errors.Is(err, headless.ErrForegroundNotAllowed) {
		t.Fatalf("err = %v, want ErrForegroundNotAllowed", err)
	}
	if rej.count() != 1 {
		t.Errorf("rejections = %d, want 1", rej.count())
	}

	// Allowed configs run in the foreground.
	if _, err := eng.Run(context.Background(), task.NewWithForeground("bg", nil, 0, true)); err != nil {
		t.Fatalf("Run allowed: %v", err)
	}

	// Once the host is in the background, the disallowed config runs too.
	tracker.Pause()
	if _, err := eng.Run(context.Background(), task.NewWithForeground("bg", nil, 0, false)); err != nil {
		t.Fatalf("Run in background: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestEngine_PayloadTooDeep(t *testing.T) {
	eng, _ := newEngine(t, engine.WithConfig(headless.NewConfig(headless.WithMaxPayloadDepth(1))))
	engine.RegisterFunc(eng, "deep", func(context.Context, task.Config) error { return nil })

	_, err := eng.Start(context.Background(), task.New("deep", payload.Map{"a": payload.Map{"b": 1}}))
	if !errors.Is(err, payload.ErrTooDeep) {
		t.Errorf("err = %v, want ErrTooDeep", err)
	}
}

func nestedPayload(levels int) payload.Map {
	root := payload.Map{}
	cur := root
	for range levels - 1 {
		next := payload.Map{}
		cur["n"] = next
		cur = next
	}
	cur["leaf"] = true
	return root
}

func TestEngine_PayloadDepthClampedToCopyBound(t *testing.T) {
	eng, s := newEngine(t, engine.WithConfig(headless.NewConfig(headless.WithMaxPayloadDepth(100))))
	if got := eng.Config().MaxPayloadDepth; got != payload.MaxDepth {
		t.Fatalf("MaxPayloadDepth = %d, want %d", got, payload.MaxDepth)
	}

	var calls atomic.Int32
	engine.RegisterFunc(eng, "deep", func(context.Context, task.Config) error {
		calls.Add(1)
		return nil
	})

	// Deeper than any copy can reach: refused up front, never run.
	_, err := eng.Start(context.Background(), task.New("deep", nestedPayload(70), task.WithRetries(1, 0)))
	if !errors.Is(err, payload.ErrTooDeep) {
		t.Fatalf("Start err = %v, want ErrTooDeep", err)
	}
	if n, _ := s.CountDLQ(context.Background()); n != 0 {
		t.Errorf("dlq count = %d, want 0", n)
	}

	// Within the bound: the snapshot and retries succeed.
	r, err := eng.Run(context.Background(), task.New("deep", nestedPayload(60), task.WithRetries(1, 0)))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if r.State != task.StateCompleted || calls.Load() != 1 {
		t.Errorf("run = %s with %d calls, want completed with 1", r.State, calls.Load())
	}
}

func TestEngine_Throttle(t *testing.T) {
	eng, _ := newEngine(t, engine.WithThrottle(throttle.Rule{TaskKey: "single", MaxConcurrency: 1}))

	release := make(chan struct{})
	engine.RegisterFunc(eng, "single", func(context.Context, task.Config) error {
		<-release
		return nil
	})

	first, err := eng.Start(context.Background(), task.New("single", nil))
	if err != nil {
		t.Fatalf("first Start: %v", err)
	}

	if _, err := eng.Start(context.Background(), task.New("single", nil)); !errors.Is(err, headless.ErrThrottled) {
		t.Errorf("second Start = %v, want ErrThrottled", err)
	}

	close(release)
	waitRun(t, eng, first)

	if _, err := eng.Start(context.Background(), task.New("single", nil)); err != nil {
		t.Errorf("Start after release: %v", err)
	}
}

// ──────────────────────────────────────────────────
// Timeout and cancellation
// ──────────────────────────────────────────────────

func TestEngine_Timeout(t *testing.T) {
	eng, _ := newEngine(t)

	var calls atomic.Int32
	engine.RegisterFunc(eng, "slow", func(ctx context.Context, _ task.Config) error {
		calls.Add(1)
		<-ctx.Done()
		return ctx.Err()
	})

	r, err := eng.Run(context.Background(), task.NewWithRetries("slow", nil, 20, false, 2, 1))
	if !errors.Is(err, headless.ErrTaskTimeout) {
		t.Fatalf("err = %v, want ErrTaskTimeout", err)
	}
	if r.State != task.StateTimedOut {
		t.Errorf("state = %q, want %q", r.State, task.StateTimedOut)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestEngine_ZeroTimeoutIsUnbounded(t *testing.T) {
	eng, _ := newEngine(t)
	engine.RegisterFunc(eng, "short", func(context.Context, task.Config) error {
		time.Sleep(10 * time.Millisecond)
		return nil
	})

	r, err := eng.Run(context.Background(), task.NewWithTimeout("short", nil, 0))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if r.State != task.StateCompleted {
		t.Errorf("state = %q, want %q", r.State, task.StateCompleted)
	}
}

func TestEngine_Cancel(t *testing.T) {
	eng, _ := newEngine(t)

	started := make(chan struct{})
	engine.RegisterFunc(eng, "blocking", func(ctx context.Context, _ task.Config) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})

	runID, err := eng.Start(context.Background(), task.New("blocking", nil, task.WithRetries(3, time.Millisecond)))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-started
	if !eng.IsRunning(runID) {
		t.Error("expected run to be running")
	}

	if err := eng.Cancel(runID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	r := waitRun(t, eng, runID)
	if r.State != task.StateCancelled {
		t.Errorf("state = %q, want %q", r.State, task.StateCancelled)
	}
	if r.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", r.Attempts)
	}

	if err := eng.Cancel(runID); !errors.Is(err, headless.ErrRunNotFound) {
		t.Errorf("second Cancel = %v, want ErrRunNotFound", err)
	}
}

func TestEngine_RunCancelledByContext(t *testing.T) {
	eng, _ := newEngine(t)
	engine.RegisterFunc(eng, "blocking", func(ctx context.Context, _ task.Config) error {
		<-ctx.Done()
		return ctx.Err()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	r, err := eng.Run(ctx, task.New("blocking", nil))
	if !errors.Is(err, headless.ErrRunCancelled) {
		t.Fatalf("err = %v, want ErrRunCancelled", err)
	}
	if r.State != task.StateCancelled {
		t.Errorf("state = %q, want %q", r.State, task.StateCancelled)
	}
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

func TestEngine_StopRefusesNewRuns(t *testing.T) {
	eng, _ := newEngine(t)
	engine.RegisterFunc(eng, "noop", func(context.Context, task.Config) error { return nil })

	if err := eng.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if _, err := eng.Start(context.Background(), task.New("noop", nil)); !errors.Is(err, headless.ErrEngineStopped) {
		t.Errorf("Start after Stop = %v, want ErrEngineStopped", err)
	}
	if err := eng.Stop(context.Background()); err != nil {
		t.Errorf("second Stop: %v", err)
	}
}

func TestEngine_StopCancelsAfterDeadline(t *testing.T) {
	eng, s := newEngine(t)

	started := make(chan struct{})
	engine.RegisterFunc(eng, "forever", func(ctx context.Context, _ task.Config) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})

	runID, err := eng.Start(context.Background(), task.New("forever", nil))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := eng.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	r, err := s.GetRun(context.Background(), runID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if r.State != task.StateCancelled {
		t.Errorf("state = %q, want %q", r.State, task.StateCancelled)
	}
	if r.LastError == "" {
		t.Error("expected LastError to describe the shutdown")
	}
}

func TestEngine_RetainRunsDisabled(t *testing.T) {
	eng, _ := newEngine(t, engine.WithConfig(headless.NewConfig(headless.WithRetainRuns(false))))
	engine.RegisterFunc(eng, "noop", func(context.Context, task.Config) error { return nil })

	r, err := eng.Run(context.Background(), task.New("noop", nil))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := eng.Wait(context.Background(), r.ID); !errors.Is(err, headless.ErrRunNotFound) {
		t.Errorf("Wait after deletion = %v, want ErrRunNotFound", err)
	}
}

func TestEngine_ConcurrencyClamped(t *testing.T) {
	eng, _ := newEngine(t, engine.WithConfig(headless.NewConfig(headless.WithConcurrency(0))))
	engine.RegisterFunc(eng, "noop", func(context.Context, task.Config) error { return nil })

	if _, err := eng.Run(context.Background(), task.New("noop", nil)); err != nil {
		t.Fatalf("Run with zero concurrency: %v", err)
	}
}

// ──────────────────────────────────────────────────
// Telemetry
// ──────────────────────────────────────────────────

func TestEngine_Telemetry(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	eng, _ := newEngine(t, engine.WithMeterProvider(mp), engine.WithTracerProvider(tp))
	engine.RegisterFunc(eng, "traced", func(context.Context, task.Config) error { return nil })

	if _, err := eng.Run(context.Background(), task.New("traced", nil)); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if n := len(sr.Ended()); n != 1 {
		t.Errorf("ended spans = %d, want 1", n)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	want := map[string]bool{
		"headless.task.attempts":  false,
		"headless.task.duration":  false,
		"headless.task.completed": false,
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if _, ok := want[m.Name]; ok {
				want[m.Name] = true
			}
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("metric %s not recorded", name)
		}
	}
}
