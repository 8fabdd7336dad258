// Package store defines the aggregate persistence interface. Each
// subsystem (job, execution, lock, dlq, aggregation) defines its own store
// interface; the composite Store composes them all. Backends: Postgres and
// Memory, plus a Redis lock-only backend.
package store

import (
	"context"

	"github.com/carebridge/scheduler/aggregation"
	"github.com/carebridge/scheduler/dlq"
	"github.com/carebridge/scheduler/execution"
	"github.com/carebridge/scheduler/job"
	"github.com/carebridge/scheduler/lock"
)

// Store is the aggregate persistence interface. A single backend
// implements all of the subsystem contracts over one database so the
// lock-acquire-before-mutate discipline spans every table.
type Store interface {
	job.Store
	execution.Store
	lock.Store
	dlq.Store
	aggregation.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks database connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
