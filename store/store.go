// Package store defines the aggregate persistence interface. Each subsystem
// (task runs, dlq) defines its own store interface. The composite Store
// composes them. Backends: Postgres, Redis, and Memory.
package store

import (
	"context"

	"github.com/xraph/headless/dlq"
	"github.com/xraph/headless/task"
)

// Store is the aggregate persistence interface.
// A single backend implements every subsystem store.
type Store interface {
	task.Store
	dlq.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
