// Package scheduler is the background job scheduling and execution engine
// for the CareBridge coordination platform. It registers recurring jobs,
// guarantees single-runner execution per job via time-boxed database locks,
// tracks every attempt in a durable execution ledger, applies exponential
// backoff on failure, and moves permanently failing jobs into a dead letter
// queue for human triage.
//
// Scheduler is a library, not a service. Import it, configure a store,
// register handlers for the job types you run, and drive the runner from an
// external timer (cron, a systemd timer, or the bundled schedulerd daemon).
//
// # Quick Start
//
//	st := memory.New()
//	reg := job.NewRegistry()
//	_ = reg.Register(handlers.NewReports(sink, logger))
//
//	r := runner.New(st, reg,
//	    runner.WithLogger(logger),
//	    runner.WithBatchSize(10),
//	)
//	summary, err := r.RunScheduledJobs(ctx)
//
// # Architecture
//
// Scheduler follows a composable store pattern where each subsystem (job,
// execution, lock, dlq, aggregation) defines its own store interface.
// A single backend implements all of them; the lock store can additionally
// be served by Redis on its own.
//
// All entity IDs use TypeID — type-prefixed, K-sortable, UUIDv7-based,
// compile-time safe identifiers.
package scheduler
