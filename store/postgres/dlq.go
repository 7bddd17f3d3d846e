package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/xraph/headless"
	"github.com/xraph/headless/dlq"
	"github.com/xraph/headless/id"
)

const dlqColumns = `
	id, run_id, task_key, config, error, attempts, max_retries,
	failed_at, replayed_at, created_at`

// PushDLQ adds a failed run entry to the dead letter queue.
func (s *Store) PushDLQ(ctx context.Context, entry *dlq.Entry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO headless_dlq (`+dlqColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		entry.ID.String(), entry.RunID.String(), entry.TaskKey, entry.Config,
		entry.Error, entry.Attempts, entry.MaxRetries,
		entry.FailedAt, entry.ReplayedAt, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("headless/postgres: push dlq: %w", err)
	}
	return nil
}

// ListDLQ returns DLQ entries matching the given options, newest first.
func (s *Store) ListDLQ(ctx context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	b := &queryBuilder{query: `SELECT ` + dlqColumns + ` FROM headless_dlq WHERE 1=1`}
	if opts.TaskKey != "" {
		b.where("task_key = $%d", opts.TaskKey)
	}
	b.page("failed_at DESC, id DESC", opts.Limit, opts.Offset)

	rows, err := s.pool.Query(ctx, b.query, b.args...)
	if err != nil {
		return nil, fmt.Errorf("headless/postgres: list dlq: %w", err)
	}
	defer rows.Close()

	var entries []*dlq.Entry
	for rows.Next() {
		e, scanErr := scanDLQ(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("headless/postgres: scan dlq row: %w", scanErr)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("headless/postgres: iterate dlq rows: %w", err)
	}
	return entries, nil
}

// GetDLQ retrieves a DLQ entry by ID.
func (s *Store) GetDLQ(ctx context.Context, entryID id.DLQID) (*dlq.Entry, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+dlqColumns+` FROM headless_dlq WHERE id = $1`,
		entryID.String(),
	)
	e, err := scanDLQ(row)
	if err != nil {
		if isNoRows(err) {
			return nil, headless.ErrDLQNotFound
		}
		return nil, fmt.Errorf("headless/postgres: get dlq: %w", err)
	}
	return e, nil
}

// ReplayDLQ marks a DLQ entry as replayed.
func (s *Store) ReplayDLQ(ctx context.Context, entryID id.DLQID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE headless_dlq SET replayed_at = NOW() WHERE id = $1`,
		entryID.String(),
	)
	if err != nil {
		return fmt.Errorf("headless/postgres: replay dlq: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return headless.ErrDLQNotFound
	}
	return nil
}

// PurgeDLQ removes DLQ entries with FailedAt before the given time.
// Returns the number of entries removed.
func (s *Store) PurgeDLQ(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM headless_dlq WHERE failed_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("headless/postgres: purge dlq: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CountDLQ returns the total number of entries in the dead letter queue.
func (s *Store) CountDLQ(ctx context.Context) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM headless_dlq`).Scan(&count); err != nil {
		return 0, fmt.Errorf("headless/postgres: count dlq: %w", err)
	}
	return count, nil
}

// scanDLQ scans a single DLQ entry row.
func scanDLQ(row pgx.Row) (*dlq.Entry, error) {
	var (
		e        dlq.Entry
		idStr    string
		runIDStr string
	)
	err := row.Scan(
		&idStr, &runIDStr, &e.TaskKey, &e.Config, &e.Error, &e.Attempts, &e.MaxRetries,
		&e.FailedAt, &e.ReplayedAt, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	parsedID, parseErr := id.ParseDLQID(idStr)
	if parseErr != nil {
		return nil, fmt.Errorf("headless/postgres: parse dlq id %q: %w", idStr, parseErr)
	}
	e.ID = parsedID

	parsedRunID, runParseErr := id.ParseRunID(runIDStr)
	if runParseErr != nil {
		return nil, fmt.Errorf("headless/postgres: parse run id %q: %w", runIDStr, runParseErr)
	}
	e.RunID = parsedRunID

	return &e, nil
}
