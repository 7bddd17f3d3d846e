package redis

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/headless"
	"github.com/xraph/headless/dlq"
	"github.com/xraph/headless/id"
)

// PushDLQ adds a failed run entry to the dead letter queue.
func (s *Store) PushDLQ(ctx context.Context, entry *dlq.Entry) error {
	eID := entry.ID.String()
	b, err := encodeDLQ(entry)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.dlqKey(eID), b, 0)
	pipe.ZAdd(ctx, s.dlqIndexKey(), goredis.Z{Score: score(entry.FailedAt), Member: eID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("headless/redis: push dlq: %w", err)
	}
	return nil
}

// ListDLQ returns DLQ entries matching the given options, newest first.
func (s *Store) ListDLQ(ctx context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	ids, err := s.client.ZRevRange(ctx, s.dlqIndexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("headless/redis: list dlq: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, eID := range ids {
		keys[i] = s.dlqKey(eID)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("headless/redis: list dlq mget: %w", err)
	}

	entries := make([]*dlq.Entry, 0, len(vals))
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		e, decErr := decodeDLQ([]byte(str))
		if decErr != nil {
			s.logger.Warn("skipping undecodable dlq entry",
				slog.String("dlq_id", ids[i]),
				slog.String("error", decErr.Error()),
			)
			continue
		}
		if opts.TaskKey != "" && e.TaskKey != opts.TaskKey {
			continue
		}
		entries = append(entries, e)
	}
	return paginate(entries, opts.Offset, opts.Limit), nil
}

// GetDLQ retrieves a DLQ entry by ID.
func (s *Store) GetDLQ(ctx context.Context, entryID id.DLQID) (*dlq.Entry, error) {
	b, err := s.client.Get(ctx, s.dlqKey(entryID.String())).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil, headless.ErrDLQNotFound
		}
		return nil, fmt.Errorf("headless/redis: get dlq: %w", err)
	}
	return decodeDLQ(b)
}

// ReplayDLQ marks a DLQ entry as replayed.
func (s *Store) ReplayDLQ(ctx context.Context, entryID id.DLQID) error {
	e, err := s.GetDLQ(ctx, entryID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	e.ReplayedAt = &now
	b, err := encodeDLQ(e)
	if err != nil {
		return err
	}

	ok, err := s.client.SetXX(ctx, s.dlqKey(entryID.String()), b, 0).Result()
	if err != nil {
		return fmt.Errorf("headless/redis: replay dlq: %w", err)
	}
	if !ok {
		return headless.ErrDLQNotFound
	}
	return nil
}

// PurgeDLQ removes DLQ entries with FailedAt before the given time.
func (s *Store) PurgeDLQ(ctx context.Context, before time.Time) (int64, error) {
	ids, err := s.client.ZRangeByScore(ctx, s.dlqIndexKey(), &goredis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(before.UnixMicro(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("headless/redis: purge dlq range: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	keys := make([]string, len(ids))
	members := make([]any, len(ids))
	for i, eID := range ids {
		keys[i] = s.dlqKey(eID)
		members[i] = eID
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, keys...)
	rem := pipe.ZRem(ctx, s.dlqIndexKey(), members...)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("headless/redis: purge dlq del: %w", err)
	}
	return rem.Val(), nil
}

// CountDLQ returns the total number of entries in the dead letter queue.
func (s *Store) CountDLQ(ctx context.Context) (int64, error) {
	count, err := s.client.ZCard(ctx, s.dlqIndexKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("headless/redis: count dlq: %w", err)
	}
	return count, nil
}
