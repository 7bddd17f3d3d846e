package redis

import (
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/xraph/headless/dlq"
	"github.com/xraph/headless/id"
	"github.com/xraph/headless/task"
)

// runRecord is the msgpack wire form of a task.Run.
type runRecord struct {
	ID                  string        `msgpack:"id"`
	TaskKey             string        `msgpack:"task_key"`
	State               string        `msgpack:"state"`
	Attempts            int           `msgpack:"attempts"`
	MaxRetries          int           `msgpack:"max_retries"`
	Timeout             time.Duration `msgpack:"timeout"`
	RetryDelay          time.Duration `msgpack:"retry_delay"`
	AllowedInForeground bool          `msgpack:"allowed_in_foreground"`
	LastError           string        `msgpack:"last_error,omitempty"`
	CreatedAt           time.Time     `msgpack:"created_at"`
	UpdatedAt           time.Time     `msgpack:"updated_at"`
	StartedAt           *time.Time    `msgpack:"started_at,omitempty"`
	FinishedAt          *time.Time    `msgpack:"finished_at,omitempty"`
}

func encodeRun(r *task.Run) ([]byte, error) {
	return msgpack.Marshal(&runRecord{
		ID:                  r.ID.String(),
		TaskKey:             r.TaskKey,
		State:               string(r.State),
		Attempts:            r.Attempts,
		MaxRetries:          r.MaxRetries,
		Timeout:             r.Timeout,
		RetryDelay:          r.RetryDelay,
		AllowedInForeground: r.AllowedInForeground,
		LastError:           r.LastError,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
		StartedAt:           r.StartedAt,
		FinishedAt:          r.FinishedAt,
	})
}

func decodeRun(b []byte) (*task.Run, error) {
	var rec runRecord
	if err := msgpack.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("headless/redis: decode run: %w", err)
	}
	runID, err := id.ParseRunID(rec.ID)
	if err != nil {
		return nil, fmt.Errorf("headless/redis: parse run id: %w", err)
	}
	return &task.Run{
		ID:                  runID,
		TaskKey:             rec.TaskKey,
		State:               task.State(rec.State),
		Attempts:            rec.Attempts,
		MaxRetries:          rec.MaxRetries,
		Timeout:             rec.Timeout,
		RetryDelay:          rec.RetryDelay,
		AllowedInForeground: rec.AllowedInForeground,
		LastError:           rec.LastError,
		CreatedAt:           rec.CreatedAt.UTC(),
		UpdatedAt:           rec.UpdatedAt.UTC(),
		StartedAt:           utcPtr(rec.StartedAt),
		FinishedAt:          utcPtr(rec.FinishedAt),
	}, nil
}

// dlqRecord is the msgpack wire form of a dlq.Entry.
type dlqRecord struct {
	ID         string     `msgpack:"id"`
	RunID      string     `msgpack:"run_id"`
	TaskKey    string     `msgpack:"task_key"`
	Config     []byte     `msgpack:"config"`
	Error      string     `msgpack:"error"`
	Attempts   int        `msgpack:"attempts"`
	MaxRetries int        `msgpack:"max_retries"`
	FailedAt   time.Time  `msgpack:"failed_at"`
	ReplayedAt *time.Time `msgpack:"replayed_at,omitempty"`
	CreatedAt  time.Time  `msgpack:"created_at"`
}

func encodeDLQ(e *dlq.Entry) ([]byte, error) {
	return msgpack.Marshal(&dlqRecord{
		ID:         e.ID.String(),
		RunID:      e.RunID.String(),
		TaskKey:    e.TaskKey,
		Config:     e.Config,
		Error:      e.Error,
		Attempts:   e.Attempts,
		MaxRetries: e.MaxRetries,
		FailedAt:   e.FailedAt,
		ReplayedAt: e.ReplayedAt,
		CreatedAt:  e.CreatedAt,
	})
}

func decodeDLQ(b []byte) (*dlq.Entry, error) {
	var rec dlqRecord
	if err := msgpack.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("headless/redis: decode dlq: %w", err)
	}
	entryID, err := id.ParseDLQID(rec.ID)
	if err != nil {
		return nil, fmt.Errorf("headless/redis: parse dlq id: %w", err)
	}
	runID, _ := id.ParseRunID(rec.RunID) //nolint:errcheck // best-effort parse from trusted Redis data
	return &dlq.Entry{
		ID:         entryID,
		RunID:      runID,
		TaskKey:    rec.TaskKey,
		Config:     rec.Config,
		Error:      rec.Error,
		Attempts:   rec.Attempts,
		MaxRetries: rec.MaxRetries,
		FailedAt:   rec.FailedAt.UTC(),
		ReplayedAt: utcPtr(rec.ReplayedAt),
		CreatedAt:  rec.CreatedAt.UTC(),
	}, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// score orders index members. Microseconds keep float64 scores exact.
func score(t time.Time) float64 { return float64(t.UnixMicro()) }
