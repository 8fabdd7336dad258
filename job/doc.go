// Package job defines job definitions, the handler contract, the typed
// handler registry, and the definition store interface.
//
// # Definition
//
// A [Definition] describes recurring work: a [Type], an owning tenant, an
// opaque JSON config, an optional cron schedule, an enabled flag, and the
// NextRunAt/LastRunAt bookkeeping the runner maintains. Definitions are
// durable and survive any number of executions.
//
// # Handlers
//
// A [Handler] is the pluggable unit of work for one job type. The runner
// resolves handlers through a [Registry] built at startup:
//
//	reg := job.NewRegistry()
//	if err := reg.Register(handlers.NewReminders(tasks, log, logger)); err != nil {
//	    return err
//	}
//
// Dispatch is by typed enum, not string matching: a definition whose type
// has no registered handler fails that job's execution with
// scheduler.ErrUnknownJobType and leaves the rest of the batch untouched.
package job
