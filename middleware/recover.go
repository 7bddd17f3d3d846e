package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/xraph/headless/task"
)

// Recover returns middleware that turns handler panics into errors and
// logs them with a stack trace. It must sit after Timeout in a chain,
// since Timeout runs the rest of the chain on its own goroutine.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, a *task.Attempt, next Handler) (retErr error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("task handler panicked",
					slog.String("task_key", a.Config.TaskKey()),
					slog.String("run_id", a.RunID.String()),
					slog.Int("attempt", a.Number),
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())),
				)
				retErr = fmt.Errorf("panic in task %s: %v", a.Config.TaskKey(), r)
			}
		}()
		return next(ctx)
	}
}
