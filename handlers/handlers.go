// Package handlers provides the four reference job handlers: recurring
// task generation, reminder/escalation, metric aggregation, and report
// scheduling. Each implements job.Handler and is registered with the
// runner's registry at startup.
//
// Handlers are re-invocation safe. Side effects are guarded by existence
// checks (recurring tasks), recent-log lookups (reminders), or are pure
// appends (aggregation artifacts), so a lock-expiry-driven re-run makes
// no duplicate writes.
package handlers

import (
	"log/slog"
	"time"
)

// options carries the ambient configuration shared by all handlers.
type options struct {
	logger *slog.Logger
	clock  func() time.Time
}

// Option configures a handler.
type Option func(*options)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithClock overrides the time source, for tests.
func WithClock(fn func() time.Time) Option {
	return func(o *options) { o.clock = fn }
}

func newOptions(opts ...Option) options {
	o := options{
		logger: slog.Default(),
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
