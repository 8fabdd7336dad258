package scheduler

import "time"

// Config holds engine-wide defaults shared by the runner and the daemon.
type Config struct {
	// BatchSize is the maximum number of due jobs processed per tick.
	BatchSize int

	// LockTTL is how long a job lock is held before it is considered
	// abandoned. TTL expiry is the only recovery path for a crashed
	// holder, so it must exceed the worst-case handler runtime.
	LockTTL time.Duration

	// DefaultMaxRetries is the retry budget for executions whose job
	// definition does not specify one.
	DefaultMaxRetries int

	// RescheduleInterval is the fallback delay before a job becomes due
	// again when its definition carries no cron schedule.
	RescheduleInterval time.Duration

	// TickInterval is how often the daemon's internal timer fires.
	// Library users driving the runner from an external cron can ignore it.
	TickInterval time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:          10,
		LockTTL:            5 * time.Minute,
		DefaultMaxRetries:  3,
		RescheduleInterval: 1 * time.Hour,
		TickInterval:       1 * time.Minute,
	}
}
