package redis

// Redis key naming conventions. All keys carry the store prefix
// (default "headless:") to avoid collisions.

const defaultPrefix = "headless:"

// runKey returns the key for a run record: {prefix}run:{id}
func (s *Store) runKey(id string) string { return s.prefix + "run:" + id }

// runIndexKey is the sorted set of run IDs scored by creation time.
func (s *Store) runIndexKey() string { return s.prefix + "runs" }

// dlqKey returns the key for a DLQ entry: {prefix}dlq:{id}
func (s *Store) dlqKey(id string) string { return s.prefix + "dlq:" + id }

// dlqIndexKey is the sorted set of DLQ entry IDs scored by failure time.
func (s *Store) dlqIndexKey() string { return s.prefix + "dlqs" }
