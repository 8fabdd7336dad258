package scheduler

import "errors"

var (
	// Store errors.
	ErrNoStore     = errors.New("scheduler: no store configured")
	ErrStoreClosed = errors.New("scheduler: store closed")

	// Not found errors.
	ErrJobNotFound         = errors.New("scheduler: job definition not found")
	ErrExecutionNotFound   = errors.New("scheduler: execution not found")
	ErrLockNotFound        = errors.New("scheduler: job lock not found")
	ErrDLQNotFound         = errors.New("scheduler: dlq entry not found")
	ErrAggregationNotFound = errors.New("scheduler: aggregation not found")

	// Conflict errors.
	ErrJobAlreadyExists  = errors.New("scheduler: job definition already exists")
	ErrDuplicateJobName  = errors.New("scheduler: duplicate job name")
	ErrDuplicateHandler  = errors.New("scheduler: handler already registered for job type")
	ErrExecutionConflict = errors.New("scheduler: execution already exists")

	// State errors.
	ErrInvalidState       = errors.New("scheduler: invalid execution state transition")
	ErrMaxRetriesExceeded = errors.New("scheduler: max retries exceeded")

	// Configuration errors.
	ErrUnknownJobType  = errors.New("scheduler: no handler registered for job type")
	ErrInvalidSchedule = errors.New("scheduler: invalid cron schedule expression")
)
