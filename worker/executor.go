// Package worker provides the task execution engine: an Executor that
// invokes registered handlers through middleware and drives the retry
// loop of a run, and a Pool that bounds how many runs execute at once.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	cbackoff "github.com/cenkalti/backoff/v4"

	"github.com/xraph/headless"
	"github.com/xraph/headless/backoff"
	"github.com/xraph/headless/dlq"
	"github.com/xraph/headless/ext"
	"github.com/xraph/headless/lifecycle"
	"github.com/xraph/headless/middleware"
	"github.com/xraph/headless/task"
)

// Executor runs task attempts through middleware and the registered
// handler, then handles retries, DLQ push, state updates, and lifecycle
// events for the run.
type Executor struct {
	registry   *task.Registry
	store      task.Store
	extensions *ext.Registry
	dlqService *dlq.Service
	backoff    backoff.Strategy
	host       lifecycle.HostState
	mws        []middleware.Middleware
	mw         middleware.Middleware
	logger     *slog.Logger
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithExtensions sets the extension registry notified of run events.
func WithExtensions(r *ext.Registry) ExecutorOption {
	return func(e *Executor) { e.extensions = r }
}

// WithDLQ enables pushing failed runs to the dead letter queue.
func WithDLQ(s *dlq.Service) ExecutorOption {
	return func(e *Executor) { e.dlqService = s }
}

// WithBackoff replaces the constant retry delay of each config with s.
// The retry count still comes from the config.
func WithBackoff(s backoff.Strategy) ExecutorOption {
	return func(e *Executor) { e.backoff = s }
}

// WithHostState sets the source of host foreground state.
func WithHostState(h lifecycle.HostState) ExecutorOption {
	return func(e *Executor) { e.host = h }
}

// WithExecutorLogger sets the executor's logger.
func WithExecutorLogger(l *slog.Logger) ExecutorOption {
	return func(e *Executor) { e.logger = l }
}

// WithMiddleware appends middleware to the attempt chain. The first
// middleware is the outermost.
func WithMiddleware(mws ...middleware.Middleware) ExecutorOption {
	return func(e *Executor) { e.mws = append(e.mws, mws...) }
}

// NewExecutor creates an Executor that looks handlers up in registry and
// records run state in store.
func NewExecutor(registry *task.Registry, store task.Store, opts ...ExecutorOption) *Executor {
	e := &Executor{
		registry: registry,
		store:    store,
		host:     lifecycle.Background{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.extensions == nil {
		e.extensions = ext.NewRegistry(e.logger)
	}
	e.mw = middleware.Chain(e.mws...)
	return e
}

// Attempt runs one attempt through the middleware chain and the handler
// registered for its task key.
func (e *Executor) Attempt(ctx context.Context, a *task.Attempt) error {
	handler, ok := e.registry.Get(a.Config.TaskKey())
	if !ok {
		return fmt.Errorf("task %q: %w", a.Config.TaskKey(), headless.ErrTaskNotRegistered)
	}
	return e.mw(ctx, a, func(ctx context.Context) error {
		return handler(ctx, a.Config)
	})
}

// outcome classifies how a run ended.
type outcome int

const (
	outcomeCompleted outcome = iota
	outcomeFailed
	outcomeTimedOut
	outcomeCancelled
	outcomeRejected
)

// Execute drives run to a terminal state. Attempt 1 receives cfg itself.
// Before it starts, a pristine copy of cfg is taken; every retry receives
// a fresh copy of that snapshot, so payload mutations made by a failed
// attempt never leak into the next one.
//
// Failures are retried NumberOfRetries times after RetryDelay. Timeouts,
// cancellation, foreground refusals and unregistered keys end the run at
// once. The returned error is nil only when the run completed.
func (e *Executor) Execute(ctx context.Context, run *task.Run, cfg task.Config) error {
	start := time.Now()

	if ctx.Err() != nil {
		return e.finish(ctx, run, cfg, cfg, outcomeCancelled, context.Cause(ctx), false, start)
	}

	pristine := cfg
	if cfg.NumberOfRetries() > 0 || e.dlqService != nil {
		snap, err := cfg.Copy()
		switch {
		case err == nil:
			pristine = snap
		case cfg.NumberOfRetries() > 0:
			return e.finish(ctx, run, cfg, cfg, outcomeFailed, err, true, start)
		default:
			e.logger.Warn("cannot snapshot task config, dlq will hold the attempted payload",
				slog.String("task_key", cfg.TaskKey()),
				slog.String("run_id", run.ID.String()),
				slog.String("error", err.Error()),
			)
		}
	}

	var (
		number    int
		kind      outcome
		lastErr   error
		permanent bool
	)

	op := func() error {
		number++
		current := cfg
		if number > 1 {
			c, err := pristine.Copy()
			if err != nil {
				kind, lastErr, permanent = outcomeFailed, err, true
				return cbackoff.Permanent(err)
			}
			current = c
		}

		if !current.AllowedInForeground() && e.host.InForeground() {
			kind = outcomeRejected
			lastErr = fmt.Errorf("task %q attempt %d: %w", current.TaskKey(), number, headless.ErrForegroundNotAllowed)
			return cbackoff.Permanent(lastErr)
		}

		a := &task.Attempt{
			RunID:     run.ID,
			Number:    number,
			Config:    current,
			StartedAt: time.Now().UTC(),
		}
		e.markRunning(ctx, run, a)
		e.extensions.EmitTaskStarted(ctx, run, a)

		err := e.Attempt(ctx, a)
		if err == nil {
			kind, lastErr = outcomeCompleted, nil
			return nil
		}
		lastErr = err
		run.LastError = err.Error()

		switch {
		case errors.Is(err, headless.ErrTaskTimeout):
			kind = outcomeTimedOut
		case ctx.Err() != nil:
			kind = outcomeCancelled
		case errors.Is(err, headless.ErrTaskNotRegistered):
			kind, permanent = outcomeFailed, true
		default:
			kind = outcomeFailed
			return err
		}
		return cbackoff.Permanent(err)
	}

	notify := func(_ error, next time.Duration) {
		e.markRetrying(ctx, run, number+1, next)
	}

	bo := cbackoff.WithContext(backoff.ForConfig(cfg, e.backoff), ctx)
	_ = cbackoff.RetryNotify(op, bo, notify)

	if kind == outcomeFailed && !permanent && ctx.Err() != nil {
		// Cancelled while waiting out a retry delay.
		kind, lastErr = outcomeCancelled, context.Cause(ctx)
	}
	if kind == outcomeCancelled {
		lastErr = context.Cause(ctx)
	}

	return e.finish(ctx, run, cfg, pristine, kind, lastErr, permanent, start)
}

// ──────────────────────────────────────────────────
// State transitions
// ──────────────────────────────────────────────────

func (e *Executor) markRunning(ctx context.Context, run *task.Run, a *task.Attempt) {
	now := time.Now().UTC()
	run.State = task.StateRunning
	run.Attempts = a.Number
	run.UpdatedAt = now
	if run.StartedAt == nil {
		run.StartedAt = &now
	}
	e.save(ctx, run, "running")
}

func (e *Executor) markRetrying(ctx context.Context, run *task.Run, next int, delay time.Duration) {
	now := time.Now().UTC()
	nextAt := now.Add(delay)
	run.State = task.StateRetrying
	run.UpdatedAt = now
	e.save(ctx, run, "retrying")

	e.extensions.EmitTaskRetrying(ctx, run, next, nextAt)

	e.logger.Info("task scheduled for retry",
		slog.String("task_key", run.TaskKey),
		slog.String("run_id", run.ID.String()),
		slog.Int("attempt", next),
		slog.Int("max_retries", run.MaxRetries),
		slog.Duration("delay", delay),
	)
}

// finish records the terminal state of run and emits the matching events.
// dlqCfg is the config pushed to the DLQ on failure.
func (e *Executor) finish(
	ctx context.Context,
	run *task.Run,
	cfg, dlqCfg task.Config,
	kind outcome,
	runErr error,
	permanent bool,
	start time.Time,
) error {
	// Final bookkeeping must survive the cancellation that caused it.
	ctx = context.WithoutCancel(ctx)

	now := time.Now().UTC()
	run.UpdatedAt = now
	run.FinishedAt = &now
	if runErr != nil {
		run.LastError = runErr.Error()
	}

	switch kind {
	case outcomeCompleted:
		run.State = task.StateCompleted
		run.LastError = ""
		e.save(ctx, run, "completed")
		e.extensions.EmitTaskCompleted(ctx, run, time.Since(start))
		return nil

	case outcomeCancelled:
		run.State = task.StateCancelled
		e.save(ctx, run, "cancelled")
		e.extensions.EmitTaskCancelled(ctx, run)
		e.logger.Info("task run cancelled",
			slog.String("task_key", run.TaskKey),
			slog.String("run_id", run.ID.String()),
			slog.Int("attempts", run.Attempts),
		)
		if runErr == nil || errors.Is(runErr, headless.ErrRunCancelled) {
			return fmt.Errorf("task %q: %w", run.TaskKey, headless.ErrRunCancelled)
		}
		return fmt.Errorf("task %q: %w: %w", run.TaskKey, headless.ErrRunCancelled, runErr)

	case outcomeRejected:
		run.State = task.StateFailed
		e.save(ctx, run, "failed")
		e.extensions.EmitTaskRejected(ctx, cfg, run.ID, runErr)
		e.logger.Warn("task attempt refused in foreground",
			slog.String("task_key", run.TaskKey),
			slog.String("run_id", run.ID.String()),
			slog.Int("attempts", run.Attempts),
		)
		return runErr

	case outcomeTimedOut:
		run.State = task.StateTimedOut
		e.save(ctx, run, "timed_out")
		e.extensions.EmitTaskTimedOut(ctx, run, cfg.Timeout())
		e.pushDLQ(ctx, run, dlqCfg, runErr)
		return runErr
	}

	run.State = task.StateFailed
	e.save(ctx, run, "failed")
	e.extensions.EmitTaskFailed(ctx, run, runErr)
	e.pushDLQ(ctx, run, dlqCfg, runErr)

	if !permanent && run.MaxRetries > 0 {
		return fmt.Errorf("task %q: %w after %d attempts: %w", run.TaskKey, headless.ErrRetriesExhausted, run.Attempts, runErr)
	}
	return runErr
}

func (e *Executor) pushDLQ(ctx context.Context, run *task.Run, cfg task.Config, runErr error) {
	if e.dlqService == nil {
		return
	}
	if err := e.dlqService.Push(ctx, run, cfg, runErr); err != nil {
		e.logger.Error("failed to push task run to DLQ",
			slog.String("task_key", run.TaskKey),
			slog.String("run_id", run.ID.String()),
			slog.String("error", err.Error()),
		)
		return
	}

	e.extensions.EmitTaskDLQ(ctx, run, runErr)

	e.logger.Warn("task run moved to DLQ",
		slog.String("task_key", run.TaskKey),
		slog.String("run_id", run.ID.String()),
		slog.Int("attempts", run.Attempts),
		slog.String("error", runErr.Error()),
	)
}

// save persists run. Store failures are logged; the run continues.
func (e *Executor) save(ctx context.Context, run *task.Run, state string) {
	if err := e.store.UpdateRun(context.WithoutCancel(ctx), run); err != nil {
		e.logger.Error("failed to update task run",
			slog.String("task_key", run.TaskKey),
			slog.String("run_id", run.ID.String()),
			slog.String("state", state),
			slog.String("error", err.Error()),
		)
	}
}
