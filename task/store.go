package task

import (
	"context"

	"github.com/xraph/headless/id"
)

// ListOpts controls pagination and filtering for run list queries.
type ListOpts struct {
	// Limit is the maximum number of runs to return. Zero means no limit.
	Limit int
	// Offset is the number of runs to skip.
	Offset int
	// TaskKey filters by task key. Empty means all keys.
	TaskKey string
	// State filters by state. Empty means all states.
	State State
}

// Store defines the persistence contract for run records. Runs are listed
// newest first.
type Store interface {
	// CreateRun persists a new run. It fails if the ID already exists.
	CreateRun(ctx context.Context, r *Run) error

	// UpdateRun persists changes to an existing run.
	UpdateRun(ctx context.Context, r *Run) error

	// GetRun retrieves a run by ID.
	GetRun(ctx context.Context, runID id.RunID) (*Run, error)

	// ListRuns returns runs matching opts.
	ListRuns(ctx context.Context, opts ListOpts) ([]*Run, error)

	// DeleteRun removes a run by ID.
	DeleteRun(ctx context.Context, runID id.RunID) error
}
