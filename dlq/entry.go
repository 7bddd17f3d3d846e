package dlq

import (
	"fmt"
	"time"

	"github.com/xraph/headless/id"
	"github.com/xraph/headless/task"
)

// Entry represents a run that has exhausted its retry budget and been
// moved to the dead letter queue for inspection or replay.
type Entry struct {
	ID         id.DLQID   `json:"id"`
	RunID      id.RunID   `json:"run_id"`
	TaskKey    string     `json:"task_key"`
	Config     []byte     `json:"config"`
	Error      string     `json:"error"`
	Attempts   int        `json:"attempts"`
	MaxRetries int        `json:"max_retries"`
	FailedAt   time.Time  `json:"failed_at"`
	ReplayedAt *time.Time `json:"replayed_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// TaskConfig decodes the config captured when the entry was pushed.
func (e *Entry) TaskConfig() (task.Config, error) {
	cfg, err := task.Decode(e.Config)
	if err != nil {
		return task.Config{}, fmt.Errorf("dlq entry %s: %w", e.ID, err)
	}
	return cfg, nil
}
