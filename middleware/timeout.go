package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/xraph/headless"
	"github.com/xraph/headless/task"
)

// Timeout returns middleware that enforces the config's per-attempt
// timeout. A zero timeout means no deadline.
//
// The rest of the chain runs on a separate goroutine so the attempt ends
// at the deadline even when the handler ignores ctx. The result is an error
// wrapping headless.ErrTaskTimeout. A handler that outlives its deadline
// keeps running in the background until it returns; its result is dropped.
func Timeout(logger *slog.Logger) Middleware {
	return func(ctx context.Context, a *task.Attempt, next Handler) error {
		if !a.Config.HasTimeout() {
			return next(ctx)
		}
		timeout := a.Config.Timeout()

		ctx, cancel := context.WithTimeoutCause(ctx, timeout, headless.ErrTaskTimeout)
		defer cancel()

		done := make(chan error, 1)
		go func() { done <- next(ctx) }()

		var err error
		select {
		case err = <-done:
			if err == nil || !errors.Is(context.Cause(ctx), headless.ErrTaskTimeout) {
				return err
			}
		case <-ctx.Done():
			if !errors.Is(context.Cause(ctx), headless.ErrTaskTimeout) {
				return context.Cause(ctx)
			}
		}

		logger.Warn("task attempt timed out",
			slog.String("task_key", a.Config.TaskKey()),
			slog.String("run_id", a.RunID.String()),
			slog.Int("attempt", a.Number),
			slog.Duration("timeout", timeout),
		)
		return fmt.Errorf("task %s attempt %d: %w after %s", a.Config.TaskKey(), a.Number, headless.ErrTaskTimeout, timeout)
	}
}
