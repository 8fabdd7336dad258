// Package runner implements the tick-driven dispatcher: the single entry
// point that advances the engine by one tick. It selects due job
// definitions, arbitrates locks, writes the execution ledger, dispatches to
// the registered handler, reconciles success and failure (backoff, DLQ),
// and returns a structured summary.
package runner

import (
	"log/slog"
	"time"

	"github.com/carebridge/scheduler"
	"github.com/carebridge/scheduler/backoff"
	"github.com/carebridge/scheduler/dlq"
	"github.com/carebridge/scheduler/execution"
	"github.com/carebridge/scheduler/job"
	"github.com/carebridge/scheduler/lock"
	"github.com/carebridge/scheduler/middleware"
	"github.com/carebridge/scheduler/store"
)

// Runner owns a handle to the persistent store and drives one synchronous
// tick per invocation. It is safe to invoke concurrently from multiple
// processes: the lock table is the only thing preventing two instances
// from executing the same job simultaneously.
type Runner struct {
	jobs        job.Store
	executions  execution.Store
	locks       *lock.Manager
	deadLetters *dlq.Service
	registry    *job.Registry

	bo        backoff.Strategy
	mws       []middleware.Middleware
	chain     middleware.Middleware
	logger    *slog.Logger
	lockStore lock.Store

	batchSize          int
	lockTTL            time.Duration
	defaultMaxRetries  int
	rescheduleInterval time.Duration
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithBatchSize sets the maximum number of due jobs processed per tick.
func WithBatchSize(n int) Option {
	return func(r *Runner) { r.batchSize = n }
}

// WithLockTTL sets the per-job lock TTL. TTL expiry is the only recovery
// path for a crashed holder, so it must exceed the worst-case handler
// runtime.
func WithLockTTL(d time.Duration) Option {
	return func(r *Runner) { r.lockTTL = d }
}

// WithBackoff sets the retry backoff strategy. If not set,
// backoff.DefaultStrategy() (capped exponential, minutes) is used.
func WithBackoff(b backoff.Strategy) Option {
	return func(r *Runner) { r.bo = b }
}

// WithMiddleware appends middleware to the handler chain. Recover is
// always the outermost middleware regardless of what is added here.
func WithMiddleware(m middleware.Middleware) Option {
	return func(r *Runner) { r.mws = append(r.mws, m) }
}

// WithLockStore overrides where lock arbitration happens. By default the
// composite store's lock table is used; pass a Redis-backed lock store
// to take contention off the primary database.
func WithLockStore(ls lock.Store) Option {
	return func(r *Runner) { r.lockStore = ls }
}

// WithDefaultMaxRetries sets the retry budget for job definitions that do
// not specify one.
func WithDefaultMaxRetries(n int) Option {
	return func(r *Runner) { r.defaultMaxRetries = n }
}

// WithRescheduleInterval sets the fallback delay before a job becomes due
// again when its definition carries no cron schedule.
func WithRescheduleInterval(d time.Duration) Option {
	return func(r *Runner) { r.rescheduleInterval = d }
}

// New creates a Runner over the given composite store and handler registry.
func New(st store.Store, registry *job.Registry, opts ...Option) *Runner {
	cfg := scheduler.DefaultConfig()

	r := &Runner{
		jobs:               st,
		executions:         st,
		registry:           registry,
		bo:                 backoff.DefaultStrategy(),
		logger:             slog.Default(),
		batchSize:          cfg.BatchSize,
		lockTTL:            cfg.LockTTL,
		defaultMaxRetries:  cfg.DefaultMaxRetries,
		rescheduleInterval: cfg.RescheduleInterval,
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.lockStore == nil {
		r.lockStore = st
	}
	r.locks = lock.NewManager(r.lockStore, r.logger)
	r.deadLetters = dlq.NewService(st, st, r.logger)

	// Recover stays outermost so a panicking handler fails its own
	// execution instead of aborting the batch.
	r.chain = middleware.Chain(append([]middleware.Middleware{middleware.Recover(r.logger)}, r.mws...)...)

	return r
}

// DLQ returns the runner's dead letter queue service, for admin surfaces.
func (r *Runner) DLQ() *dlq.Service { return r.deadLetters }

// Locks returns the runner's lock manager, for admin surfaces and tests.
func (r *Runner) Locks() *lock.Manager { return r.locks }
