package api

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/xraph/headless/task"
)

// RunCounts holds run counts grouped by state.
type RunCounts struct {
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Retrying  int `json:"retrying"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	TimedOut  int `json:"timed_out"`
	Cancelled int `json:"cancelled"`
}

// StatsResponse holds aggregate statistics.
type StatsResponse struct {
	Runs        RunCounts `json:"runs"`
	DLQCount    int64     `json:"dlq_count"`
	Tasks       int       `json:"tasks"`
	Concurrency int       `json:"concurrency"`
}

// TasksResponse lists the registered task keys.
type TasksResponse struct {
	Keys []string `json:"keys"`
}

func (a *API) listTasks(c *fiber.Ctx) error {
	keys := a.eng.Registry().Keys()
	if keys == nil {
		keys = []string{}
	}
	return c.JSON(TasksResponse{Keys: keys})
}

func (a *API) stats(c *fiber.Ctx) error {
	ctx := c.UserContext()

	runs, err := a.eng.Store().ListRuns(ctx, task.ListOpts{})
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}

	var counts RunCounts
	for _, r := range runs {
		switch r.State {
		case task.StatePending:
			counts.Pending++
		case task.StateRunning:
			counts.Running++
		case task.StateRetrying:
			counts.Retrying++
		case task.StateCompleted:
			counts.Completed++
		case task.StateFailed:
			counts.Failed++
		case task.StateTimedOut:
			counts.TimedOut++
		case task.StateCancelled:
			counts.Cancelled++
		}
	}

	dlqCount, err := a.eng.DLQService().DLQStore().CountDLQ(ctx)
	if err != nil {
		return fmt.Errorf("count dlq: %w", err)
	}

	return c.JSON(StatsResponse{
		Runs:        counts,
		DLQCount:    dlqCount,
		Tasks:       len(a.eng.Registry().Keys()),
		Concurrency: a.eng.Config().Concurrency,
	})
}
