package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/xraph/headless"
	"github.com/xraph/headless/id"
	"github.com/xraph/headless/task"
)

const runColumns = `
	id, task_key, state, attempts, max_retries, timeout_ns, retry_delay_ns,
	allowed_in_foreground, last_error, created_at, updated_at, started_at, finished_at`

// CreateRun persists a new run.
func (s *Store) CreateRun(ctx context.Context, r *task.Run) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO headless_runs (`+runColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		r.ID.String(), r.TaskKey, string(r.State), r.Attempts, r.MaxRetries,
		int64(r.Timeout), int64(r.RetryDelay), r.AllowedInForeground, r.LastError,
		r.CreatedAt, r.UpdatedAt, r.StartedAt, r.FinishedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return headless.ErrRunAlreadyExists
		}
		return fmt.Errorf("headless/postgres: create run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (s *Store) GetRun(ctx context.Context, runID id.RunID) (*task.Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+runColumns+` FROM headless_runs WHERE id = $1`,
		runID.String(),
	)
	r, err := scanRun(row)
	if err != nil {
		if isNoRows(err) {
			return nil, headless.ErrRunNotFound
		}
		return nil, fmt.Errorf("headless/postgres: get run: %w", err)
	}
	return r, nil
}

// UpdateRun persists changes to an existing run.
func (s *Store) UpdateRun(ctx context.Context, r *task.Run) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE headless_runs SET
			state = $2, attempts = $3, last_error = $4,
			started_at = $5, finished_at = $6, updated_at = $7
		WHERE id = $1`,
		r.ID.String(), string(r.State), r.Attempts, r.LastError,
		r.StartedAt, r.FinishedAt, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("headless/postgres: update run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return headless.ErrRunNotFound
	}
	return nil
}

// ListRuns returns runs matching the given options, newest first.
func (s *Store) ListRuns(ctx context.Context, opts task.ListOpts) ([]*task.Run, error) {
	b := &queryBuilder{query: `SELECT ` + runColumns + ` FROM headless_runs WHERE 1=1`}
	if opts.TaskKey != "" {
		b.where("task_key = $%d", opts.TaskKey)
	}
	if opts.State != "" {
		b.where("state = $%d", string(opts.State))
	}
	b.page("created_at DESC, id DESC", opts.Limit, opts.Offset)

	rows, err := s.pool.Query(ctx, b.query, b.args...)
	if err != nil {
		return nil, fmt.Errorf("headless/postgres: list runs: %w", err)
	}
	defer rows.Close()

	var runs []*task.Run
	for rows.Next() {
		r, scanErr := scanRun(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("headless/postgres: scan run row: %w", scanErr)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("headless/postgres: iterate run rows: %w", err)
	}
	return runs, nil
}

// DeleteRun removes a run by ID.
func (s *Store) DeleteRun(ctx context.Context, runID id.RunID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM headless_runs WHERE id = $1`, runID.String())
	if err != nil {
		return fmt.Errorf("headless/postgres: delete run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return headless.ErrRunNotFound
	}
	return nil
}

// scanRun scans a single run row.
func scanRun(row pgx.Row) (*task.Run, error) {
	var (
		r          task.Run
		idStr      string
		state      string
		timeoutNs  int64
		retryDelNs int64
	)
	err := row.Scan(
		&idStr, &r.TaskKey, &state, &r.Attempts, &r.MaxRetries, &timeoutNs, &retryDelNs,
		&r.AllowedInForeground, &r.LastError, &r.CreatedAt, &r.UpdatedAt, &r.StartedAt, &r.FinishedAt,
	)
	if err != nil {
		return nil, err
	}

	parsedID, parseErr := id.ParseRunID(idStr)
	if parseErr != nil {
		return nil, fmt.Errorf("headless/postgres: parse run id %q: %w", idStr, parseErr)
	}
	r.ID = parsedID
	r.State = task.State(state)
	r.Timeout = time.Duration(timeoutNs)
	r.RetryDelay = time.Duration(retryDelNs)
	return &r, nil
}
