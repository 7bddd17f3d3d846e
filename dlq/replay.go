package dlq

import (
	"context"
	"errors"

	"github.com/xraph/headless/id"
)

// ErrNoSubmitter is returned by Replay when the service was built
// without a Submitter.
var ErrNoSubmitter = errors.New("dlq: no submitter configured")

// Replay resubmits a DLQ entry's config as a new run and marks the entry
// as replayed. The new run gets a fresh ID and the full retry budget of
// the original config.
func (s *Service) Replay(ctx context.Context, entryID id.DLQID) (id.RunID, error) {
	if s.submitter == nil {
		return id.RunID{}, ErrNoSubmitter
	}

	entry, err := s.store.GetDLQ(ctx, entryID)
	if err != nil {
		return id.RunID{}, err
	}

	cfg, err := entry.TaskConfig()
	if err != nil {
		return id.RunID{}, err
	}

	runID, err := s.submitter.Start(ctx, cfg)
	if err != nil {
		return id.RunID{}, err
	}

	if err := s.store.ReplayDLQ(ctx, entryID); err != nil {
		// The run has already started.
		return runID, err
	}

	return runID, nil
}
