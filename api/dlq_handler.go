package api

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/xraph/headless/dlq"
	"github.com/xraph/headless/id"
)

const defaultPurgeAge = 30 * 24 * time.Hour

// PurgeDLQResponse reports how many entries a purge removed.
type PurgeDLQResponse struct {
	Purged int64 `json:"purged"`
}

// DLQCountResponse carries the number of DLQ entries.
type DLQCountResponse struct {
	Count int64 `json:"count"`
}

// ReplayDLQResponse carries the run created by a replay.
type ReplayDLQResponse struct {
	RunID id.RunID `json:"run_id"`
}

func (a *API) listDLQ(c *fiber.Ctx) error {
	limit, offset, err := page(c)
	if err != nil {
		return err
	}

	entries, err := a.eng.DLQService().DLQStore().ListDLQ(c.UserContext(), dlq.ListOpts{
		Limit:   limit,
		Offset:  offset,
		TaskKey: c.Query("task_key"),
	})
	if err != nil {
		return fmt.Errorf("list dlq: %w", err)
	}
	if entries == nil {
		entries = []*dlq.Entry{}
	}
	return c.JSON(entries)
}

func (a *API) getDLQ(c *fiber.Ctx) error {
	entryID, err := id.ParseDLQID(c.Params("entryId"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("invalid DLQ entry ID: %v", err))
	}

	entry, err := a.eng.DLQService().DLQStore().GetDLQ(c.UserContext(), entryID)
	if err != nil {
		return err
	}
	return c.JSON(entry)
}

func (a *API) replayDLQ(c *fiber.Ctx) error {
	entryID, err := id.ParseDLQID(c.Params("entryId"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("invalid DLQ entry ID: %v", err))
	}

	runID, err := a.eng.DLQService().Replay(c.UserContext(), entryID)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(ReplayDLQResponse{RunID: runID})
}

// purgeDLQ removes entries older than the older_than duration, 30 days by
// default.
func (a *API) purgeDLQ(c *fiber.Ctx) error {
	age := defaultPurgeAge
	if raw := c.Query("older_than"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("invalid older_than %q", raw))
		}
		age = d
	}

	count, err := a.eng.DLQService().DLQStore().PurgeDLQ(c.UserContext(), time.Now().UTC().Add(-age))
	if err != nil {
		return fmt.Errorf("purge dlq: %w", err)
	}
	return c.JSON(PurgeDLQResponse{Purged: count})
}

func (a *API) dlqCount(c *fiber.Ctx) error {
	count, err := a.eng.DLQService().DLQStore().CountDLQ(c.UserContext())
	if err != nil {
		return fmt.Errorf("count dlq: %w", err)
	}
	return c.JSON(DLQCountResponse{Count: count})
}
