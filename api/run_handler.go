package api

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/xraph/headless/id"
	"github.com/xraph/headless/task"
)

// StartRunResponse is returned when a config is accepted.
type StartRunResponse struct {
	RunID id.RunID `json:"run_id"`
}

func (a *API) listRuns(c *fiber.Ctx) error {
	limit, offset, err := page(c)
	if err != nil {
		return err
	}

	state := task.State(c.Query("state"))
	if state != "" && !validState(state) {
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("unknown run state %q", state))
	}

	runs, err := a.eng.Store().ListRuns(c.UserContext(), task.ListOpts{
		Limit:   limit,
		Offset:  offset,
		TaskKey: c.Query("task_key"),
		State:   state,
	})
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	if runs == nil {
		runs = []*task.Run{}
	}
	return c.JSON(runs)
}

func (a *API) getRun(c *fiber.Ctx) error {
	runID, err := id.ParseRunID(c.Params("runId"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("invalid run ID: %v", err))
	}

	r, err := a.eng.Store().GetRun(c.UserContext(), runID)
	if err != nil {
		return err
	}
	return c.JSON(r)
}

// startRun accepts a config in its encoded form and submits it.
func (a *API) startRun(c *fiber.Ctx) error {
	cfg, err := task.Decode(c.Body())
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if cfg.TaskKey() == "" {
		return fiber.NewError(fiber.StatusBadRequest, "task_key is required")
	}

	runID, err := a.eng.Start(c.UserContext(), cfg)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(StartRunResponse{RunID: runID})
}

func (a *API) cancelRun(c *fiber.Ctx) error {
	runID, err := id.ParseRunID(c.Params("runId"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("invalid run ID: %v", err))
	}

	if err := a.eng.Cancel(runID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func validState(s task.State) bool {
	switch s {
	case task.StatePending, task.StateRunning, task.StateRetrying,
		task.StateCompleted, task.StateFailed, task.StateTimedOut, task.StateCancelled:
		return true
	}
	return false
}
