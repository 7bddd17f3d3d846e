package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/headless"
	"github.com/xraph/headless/backoff"
	"github.com/xraph/headless/dlq"
	"github.com/xraph/headless/ext"
	"github.com/xraph/headless/id"
	"github.com/xraph/headless/lifecycle"
	mw "github.com/xraph/headless/middleware"
	"github.com/xraph/headless/observability"
	"github.com/xraph/headless/payload"
	"github.com/xraph/headless/store"
	"github.com/xraph/headless/task"
	"github.com/xraph/headless/throttle"
	"github.com/xraph/headless/worker"
)

// Compile-time interface check.
var _ dlq.Submitter = (*Engine)(nil)

// Engine accepts task configs, executes them on a bounded worker pool and
// records their runs in a store.
type Engine struct {
	store      store.Store
	config     headless.Config
	logger     *slog.Logger
	extensions *ext.Registry
	registry   *task.Registry
	dlqService *dlq.Service
	executor   *worker.Executor
	pool       *worker.Pool
	throttle   *throttle.Manager
	host       lifecycle.HostState
	bo         backoff.Strategy
	mws        []mw.Middleware

	// Collected by options, applied once the logger is final.
	exts          []ext.Extension
	throttleRules []throttle.Rule
	dlqEnabled    *bool

	// OpenTelemetry providers (optional; nil means use global).
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider

	stopped atomic.Bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig sets the engine-wide configuration.
func WithConfig(cfg headless.Config) Option {
	return func(eng *Engine) { eng.config = cfg }
}

// WithLogger sets the structured logger used by the engine and all of
// its subsystems.
func WithLogger(l *slog.Logger) Option {
	return func(eng *Engine) { eng.logger = l }
}

// WithExtension registers an extension with the engine. Extensions are
// notified in registration order.
func WithExtension(e ext.Extension) Option {
	return func(eng *Engine) { eng.exts = append(eng.exts, e) }
}

// WithMiddleware adds middleware to the attempt chain. It runs inside
// logging, tracing and metrics, and outside the timeout.
func WithMiddleware(m ...mw.Middleware) Option {
	return func(eng *Engine) { eng.mws = append(eng.mws, m...) }
}

// WithBackoff replaces the constant RetryDelay of every config with a
// computed schedule. The retry count still comes from the config.
func WithBackoff(b backoff.Strategy) Option {
	return func(eng *Engine) { eng.bo = b }
}

// WithHostState sets the source of host foreground state. The default
// reports the host as always in the background.
func WithHostState(h lifecycle.HostState) Option {
	return func(eng *Engine) { eng.host = h }
}

// WithThrottle registers per task key concurrency and rate limits.
func WithThrottle(rules ...throttle.Rule) Option {
	return func(eng *Engine) { eng.throttleRules = append(eng.throttleRules, rules...) }
}

// WithDLQ overrides Config.DLQEnabled.
func WithDLQ(enabled bool) Option {
	return func(eng *Engine) { eng.dlqEnabled = &enabled }
}

// WithTracerProvider sets a custom OTel TracerProvider for the engine.
// If not set, the global otel.GetTracerProvider() is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(eng *Engine) { eng.tracerProvider = tp }
}

// WithMeterProvider sets a custom OTel MeterProvider for the engine.
// Both the metrics middleware and the observability extension use it.
// If not set, the global otel.GetMeterProvider() is used.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(eng *Engine) { eng.meterProvider = mp }
}

// New creates an Engine backed by s.
func New(s store.Store, opts ...Option) (*Engine, error) {
	if s == nil {
		return nil, headless.ErrNoStore
	}

	eng := &Engine{
		store:    s,
		config:   headless.DefaultConfig(),
		logger:   slog.Default(),
		registry: task.NewRegistry(),
		host:     lifecycle.Background{},
	}
	for _, opt := range opts {
		opt(eng)
	}
	if eng.dlqEnabled != nil {
		eng.config.DLQEnabled = *eng.dlqEnabled
	}
	logger := eng.logger

	// Copies and decoding never nest beyond payload.MaxDepth, so a larger
	// submission bound would accept payloads no attempt can receive.
	if d := eng.config.MaxPayloadDepth; d <= 0 || d > payload.MaxDepth {
		if d > payload.MaxDepth {
			logger.Warn("max payload depth clamped",
				slog.Int("configured", d),
				slog.Int("max", payload.MaxDepth),
			)
		}
		eng.config.MaxPayloadDepth = payload.MaxDepth
	}

	// Register the observability metrics extension first.
	eng.extensions = ext.NewRegistry(logger)
	if eng.meterProvider != nil {
		meter := eng.meterProvider.Meter("github.com/xraph/headless/observability")
		eng.extensions.Register(observability.NewMetricsExtensionWithMeter(meter))
	} else {
		eng.extensions.Register(observability.NewMetricsExtension())
	}
	for _, e := range eng.exts {
		eng.extensions.Register(e)
	}

	eng.throttle = throttle.NewManager(eng.throttleRules...)
	eng.dlqService = dlq.NewService(s, eng)

	// Build tracing middleware (custom provider or global).
	var tracingMw mw.Middleware
	if eng.tracerProvider != nil {
		tracingMw = mw.TracingWithTracer(eng.tracerProvider.Tracer("github.com/xraph/headless"))
	} else {
		tracingMw = mw.Tracing()
	}

	// Build metrics middleware (custom provider or global).
	var metricsMw mw.Middleware
	if eng.meterProvider != nil {
		metricsMw = mw.MetricsWithMeter(eng.meterProvider.Meter("github.com/xraph/headless"))
	} else {
		metricsMw = mw.Metrics()
	}

	// logging → tracing → metrics → user → timeout → recover → handler.
	// Recover must sit below Timeout, which runs the rest on its own goroutine.
	chain := make([]mw.Middleware, 0, len(eng.mws)+5)
	chain = append(chain, mw.Logging(logger), tracingMw, metricsMw)
	chain = append(chain, eng.mws...)
	chain = append(chain, mw.Timeout(logger), mw.Recover(logger))

	execOpts := []worker.ExecutorOption{
		worker.WithExtensions(eng.extensions),
		worker.WithHostState(eng.host),
		worker.WithExecutorLogger(logger),
		worker.WithMiddleware(chain...),
	}
	if eng.config.DLQEnabled {
		execOpts = append(execOpts, worker.WithDLQ(eng.dlqService))
	}
	if eng.bo != nil {
		execOpts = append(execOpts, worker.WithBackoff(eng.bo))
	}
	eng.executor = worker.NewExecutor(eng.registry, s, execOpts...)

	eng.pool = worker.NewPool(
		worker.WithPoolConcurrency(eng.config.Concurrency),
		worker.WithPoolLogger(logger),
	)

	return eng, nil
}

// Register registers a typed task definition with the engine.
func Register[T any](eng *Engine, def *task.Definition[T]) {
	task.RegisterDefinition(eng.registry, def)
}

// RegisterFunc registers an untyped handler that receives the Config.
func RegisterFunc(eng *Engine, key string, h task.HandlerFunc) {
	eng.registry.Register(key, h)
}

// Submit converts input to a payload and starts a run of key with it.
func Submit[T any](ctx context.Context, eng *Engine, key string, input T, opts ...task.Option) (id.RunID, error) {
	data, err := payload.From(input)
	if err != nil {
		return id.RunID{}, fmt.Errorf("payload for task %q: %w", key, err)
	}
	return eng.Start(ctx, task.New(key, data, opts...))
}

// ──────────────────────────────────────────────────
// Submission
// ──────────────────────────────────────────────────

// Start submits cfg for asynchronous execution and returns the new run's
// ID. ctx bounds the submission only; the run outlives it.
//
// Configs for unregistered keys, configs not allowed in the foreground
// while the host is there, and throttled keys are refused with
// TaskRejected before any run is created.
func (eng *Engine) Start(ctx context.Context, cfg task.Config) (id.RunID, error) {
	_, run, err := eng.submit(ctx, cfg)
	if err != nil {
		return id.RunID{}, err
	}
	return run.ID, nil
}

// Run submits cfg and waits for the run to finish. If ctx is done first
// the run is cancelled and Run waits for it to stop. The returned error
// is nil only when the run completed.
func (eng *Engine) Run(ctx context.Context, cfg task.Config) (*task.Run, error) {
	h, run, err := eng.submit(ctx, cfg)
	if err != nil {
		return nil, err
	}

	select {
	case <-h.Done():
	case <-ctx.Done():
		h.Cancel(headless.ErrRunCancelled)
		<-h.Done()
	}
	return run, h.Err()
}

func (eng *Engine) submit(ctx context.Context, cfg task.Config) (*worker.Handle, *task.Run, error) {
	if eng.stopped.Load() {
		return nil, nil, headless.ErrEngineStopped
	}

	key := cfg.TaskKey()
	if !eng.registry.Has(key) {
		return nil, nil, eng.reject(ctx, cfg, fmt.Errorf("task %q: %w", key, headless.ErrTaskNotRegistered))
	}
	if !cfg.AllowedInForeground() && eng.host.InForeground() {
		return nil, nil, eng.reject(ctx, cfg, fmt.Errorf("task %q: %w", key, headless.ErrForegroundNotAllowed))
	}
	if _, err := cfg.Data().CopyDepth(eng.config.MaxPayloadDepth); err != nil {
		return nil, nil, eng.reject(ctx, cfg, fmt.Errorf("task %q: %w", key, err))
	}
	if !eng.throttle.Acquire(key) {
		return nil, nil, eng.reject(ctx, cfg, fmt.Errorf("task %q: %w", key, headless.ErrThrottled))
	}

	run := task.NewRun(cfg)
	if err := eng.store.CreateRun(ctx, run); err != nil {
		eng.throttle.Release(key)
		return nil, nil, fmt.Errorf("create run for task %q: %w", key, err)
	}

	h, err := eng.pool.Submit(run.ID, func(runCtx context.Context) error {
		defer eng.throttle.Release(key)
		runErr := eng.executor.Execute(runCtx, run, cfg)
		if !eng.config.RetainRuns {
			if delErr := eng.store.DeleteRun(context.Background(), run.ID); delErr != nil {
				eng.logger.Warn("failed to delete finished run",
					slog.String("run_id", run.ID.String()),
					slog.String("error", delErr.Error()),
				)
			}
		}
		return runErr
	})
	if err != nil {
		eng.throttle.Release(key)
		run.State = task.StateCancelled
		if updateErr := eng.store.UpdateRun(context.WithoutCancel(ctx), run); updateErr != nil {
			eng.logger.Warn("failed to record refused run",
				slog.String("run_id", run.ID.String()),
				slog.String("error", updateErr.Error()),
			)
		}
		return nil, nil, err
	}

	eng.logger.Debug("task run submitted",
		slog.String("task_key", key),
		slog.String("run_id", run.ID.String()),
		slog.Int("max_retries", cfg.NumberOfRetries()),
		slog.Duration("timeout", cfg.Timeout()),
	)
	return h, run, nil
}

// reject emits TaskRejected for a config refused at submission.
func (eng *Engine) reject(ctx context.Context, cfg task.Config, reason error) error {
	eng.extensions.EmitTaskRejected(ctx, cfg, id.RunID{}, reason)
	eng.logger.Warn("task rejected",
		slog.String("task_key", cfg.TaskKey()),
		slog.String("error", reason.Error()),
	)
	return reason
}

// ──────────────────────────────────────────────────
// Run control
// ──────────────────────────────────────────────────

// Cancel cancels an active run. It returns headless.ErrRunNotFound if the
// run is unknown or already finished.
func (eng *Engine) Cancel(runID id.RunID) error {
	if !eng.pool.Cancel(runID) {
		return fmt.Errorf("cancel %s: %w", runID, headless.ErrRunNotFound)
	}
	return nil
}

// IsRunning reports whether runID is submitted and not yet finished.
func (eng *Engine) IsRunning(runID id.RunID) bool {
	return eng.pool.IsRunning(runID)
}

// Wait blocks until runID finishes or ctx is done, then returns its run
// record. The outcome is in the record's State and LastError; the error
// reports only lookup or wait failures. With RetainRuns disabled a
// finished run is gone and Wait returns headless.ErrRunNotFound.
func (eng *Engine) Wait(ctx context.Context, runID id.RunID) (*task.Run, error) {
	if h, ok := eng.pool.Get(runID); ok {
		select {
		case <-h.Done():
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return eng.store.GetRun(ctx, runID)
}

// Stop refuses new submissions, waits for active runs and closes the
// store. When ctx has no deadline, Config.ShutdownTimeout bounds the
// wait; runs still active then are cancelled.
func (eng *Engine) Stop(ctx context.Context) error {
	if !eng.stopped.CompareAndSwap(false, true) {
		return nil
	}

	if _, ok := ctx.Deadline(); !ok && eng.config.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, eng.config.ShutdownTimeout)
		defer cancel()
	}

	var errs []error
	if err := eng.pool.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop pool: %w", err))
	}
	eng.extensions.EmitShutdown(context.WithoutCancel(ctx))
	if err := eng.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	return errors.Join(errs...)
}

// ──────────────────────────────────────────────────
// Accessors
// ──────────────────────────────────────────────────

// Config returns the engine configuration.
func (eng *Engine) Config() headless.Config { return eng.config }

// Extensions returns the extension registry.
func (eng *Engine) Extensions() *ext.Registry { return eng.extensions }

// Registry returns the task registry.
func (eng *Engine) Registry() *task.Registry { return eng.registry }

// Store returns the engine's store.
func (eng *Engine) Store() store.Store { return eng.store }

// DLQService returns the engine's DLQ service for replay and inspection.
func (eng *Engine) DLQService() *dlq.Service { return eng.dlqService }

// Throttle returns the per-key throttle manager. Rules may be changed at
// runtime.
func (eng *Engine) Throttle() *throttle.Manager { return eng.throttle }

// Executor returns the executor that drives runs.
func (eng *Engine) Executor() *worker.Executor { return eng.executor }
