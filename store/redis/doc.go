// Package redis implements store.Store on Redis.
//
// Run records and DLQ entries are encoded with msgpack and stored as plain
// string values. Sorted sets index them by creation and failure time so
// listings come back newest first without a scan:
//
//	headless:run:{id}   msgpack run record
//	headless:runs       ZSET of run IDs scored by CreatedAt (µs)
//	headless:dlq:{id}   msgpack DLQ entry
//	headless:dlqs       ZSET of entry IDs scored by FailedAt (µs)
//
// The caller owns the client lifecycle:
//
//	client := goredis.NewClient(&goredis.Options{Addr: "localhost:6379"})
//	s := redis.New(client, redis.WithPrefix("myapp:headless:"))
//	if err := s.Ping(ctx); err != nil { ... }
package redis
