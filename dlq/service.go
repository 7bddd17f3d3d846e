package dlq

import (
	"context"
	"fmt"
	"time"

	"github.com/xraph/headless/id"
	"github.com/xraph/headless/task"
)

// Submitter starts a new run for a config. The engine implements it.
type Submitter interface {
	Start(ctx context.Context, cfg task.Config) (id.RunID, error)
}

// Service provides high-level DLQ operations over a Store.
type Service struct {
	store     Store
	submitter Submitter
}

// NewService creates a DLQ service. submitter may be nil, in which case
// Replay is unavailable.
func NewService(store Store, submitter Submitter) *Service {
	return &Service{store: store, submitter: submitter}
}

// Push builds a DLQ Entry from a failed run and the config it was
// submitted with, and persists it.
func (s *Service) Push(ctx context.Context, r *task.Run, cfg task.Config, runErr error) error {
	encoded, err := task.Encode(cfg)
	if err != nil {
		return fmt.Errorf("dlq push %s: %w", r.ID, err)
	}

	now := time.Now().UTC()
	entry := &Entry{
		ID:         id.NewDLQID(),
		RunID:      r.ID,
		TaskKey:    r.TaskKey,
		Config:     encoded,
		Error:      runErr.Error(),
		Attempts:   r.Attempts,
		MaxRetries: r.MaxRetries,
		FailedAt:   now,
		CreatedAt:  now,
	}
	return s.store.PushDLQ(ctx, entry)
}

// DLQStore returns the underlying DLQ store for direct access
// to List, Get, Purge, and Count operations.
func (s *Service) DLQStore() Store {
	return s.store
}
