package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/headless/task"
)

// Logging returns middleware that logs attempt start and completion.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, a *task.Attempt, next Handler) error {
		logger.Info("task attempt started",
			slog.String("task_key", a.Config.TaskKey()),
			slog.String("run_id", a.RunID.String()),
			slog.Int("attempt", a.Number),
		)

		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Error("task attempt failed",
				slog.String("task_key", a.Config.TaskKey()),
				slog.String("run_id", a.RunID.String()),
				slog.Int("attempt", a.Number),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("task attempt completed",
				slog.String("task_key", a.Config.TaskKey()),
				slog.String("run_id", a.RunID.String()),
				slog.Int("attempt", a.Number),
				slog.Duration("elapsed", elapsed),
			)
		}

		return err
	}
}
