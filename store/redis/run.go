package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/headless"
	"github.com/xraph/headless/id"
	"github.com/xraph/headless/task"
)

// CreateRun persists a new run. SETNX makes the duplicate check atomic.
func (s *Store) CreateRun(ctx context.Context, r *task.Run) error {
	rID := r.ID.String()
	b, err := encodeRun(r)
	if err != nil {
		return err
	}

	ok, err := s.client.SetNX(ctx, s.runKey(rID), b, 0).Result()
	if err != nil {
		return fmt.Errorf("headless/redis: create run: %w", err)
	}
	if !ok {
		return headless.ErrRunAlreadyExists
	}

	if err := s.client.ZAdd(ctx, s.runIndexKey(), goredis.Z{Score: score(r.CreatedAt), Member: rID}).Err(); err != nil {
		return fmt.Errorf("headless/redis: index run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (s *Store) GetRun(ctx context.Context, runID id.RunID) (*task.Run, error) {
	b, err := s.client.Get(ctx, s.runKey(runID.String())).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil, headless.ErrRunNotFound
		}
		return nil, fmt.Errorf("headless/redis: get run: %w", err)
	}
	return decodeRun(b)
}

// UpdateRun persists changes to an existing run.
func (s *Store) UpdateRun(ctx context.Context, r *task.Run) error {
	cp := *r
	cp.UpdatedAt = time.Now().UTC()
	b, err := encodeRun(&cp)
	if err != nil {
		return err
	}

	ok, err := s.client.SetXX(ctx, s.runKey(r.ID.String()), b, 0).Result()
	if err != nil {
		return fmt.Errorf("headless/redis: update run: %w", err)
	}
	if !ok {
		return headless.ErrRunNotFound
	}
	return nil
}

// ListRuns returns runs matching the given options, newest first.
func (s *Store) ListRuns(ctx context.Context, opts task.ListOpts) ([]*task.Run, error) {
	filtered := opts.TaskKey != "" || opts.State != ""

	start, stop := int64(0), int64(-1)
	if !filtered {
		start = int64(opts.Offset)
		if opts.Limit > 0 {
			stop = start + int64(opts.Limit) - 1
		}
	}

	ids, err := s.client.ZRevRange(ctx, s.runIndexKey(), start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("headless/redis: list runs: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, rID := range ids {
		keys[i] = s.runKey(rID)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("headless/redis: list runs mget: %w", err)
	}

	runs := make([]*task.Run, 0, len(vals))
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		r, decErr := decodeRun([]byte(str))
		if decErr != nil {
			s.logger.Warn("skipping undecodable run",
				slog.String("run_id", ids[i]),
				slog.String("error", decErr.Error()),
			)
			continue
		}
		if opts.TaskKey != "" && r.TaskKey != opts.TaskKey {
			continue
		}
		if opts.State != "" && r.State != opts.State {
			continue
		}
		runs = append(runs, r)
	}

	if !filtered {
		return runs, nil
	}
	return paginate(runs, opts.Offset, opts.Limit), nil
}

// DeleteRun removes a run by ID.
func (s *Store) DeleteRun(ctx context.Context, runID id.RunID) error {
	rID := runID.String()

	pipe := s.client.TxPipeline()
	del := pipe.Del(ctx, s.runKey(rID))
	pipe.ZRem(ctx, s.runIndexKey(), rID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("headless/redis: delete run: %w", err)
	}
	if del.Val() == 0 {
		return headless.ErrRunNotFound
	}
	return nil
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
