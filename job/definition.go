package job

import (
	"encoding/json"
	"time"

	"github.com/carebridge/scheduler"
	"github.com/carebridge/scheduler/id"
)

// Type identifies which handler a job definition dispatches to.
type Type string

const (
	// TypeRecurringTasks generates the day's operational care tasks.
	TypeRecurringTasks Type = "recurring_tasks"
	// TypeReminders sends due-task reminders and escalates overdue tasks.
	TypeReminders Type = "reminders"
	// TypeAggregation computes windowed operational metrics.
	TypeAggregation Type = "aggregation"
	// TypeReports schedules downstream report generation.
	TypeReports Type = "reports"
)

// Valid reports whether t is one of the known job types.
func (t Type) Valid() bool {
	switch t {
	case TypeRecurringTasks, TypeReminders, TypeAggregation, TypeReports:
		return true
	}
	return false
}

// Definition is a durable, enable/disable-able description of recurring
// work. Created by admin tooling; the runner mutates only the run
// bookkeeping (LastRunAt, NextRunAt). Definitions are never deleted while
// referenced by execution history.
type Definition struct {
	scheduler.Entity

	ID       id.JobID `json:"id"`
	TenantID string   `json:"tenant_id"`
	Name     string   `json:"name"`
	Type     Type     `json:"type"`

	// Config is the opaque JSON configuration handed to the handler via
	// the execution's input params.
	Config json.RawMessage `json:"config,omitempty"`

	// Schedule is an optional cron expression (five-field or "@every …")
	// used to advance NextRunAt after each attempt. When empty the runner
	// falls back to a fixed reschedule interval.
	Schedule string `json:"schedule,omitempty"`

	// MaxRetries is the per-execution retry budget. Zero means the engine
	// default applies.
	MaxRetries int `json:"max_retries,omitempty"`

	Enabled   bool       `json:"enabled"`
	NextRunAt *time.Time `json:"next_run_at,omitempty"`
	LastRunAt *time.Time `json:"last_run_at,omitempty"`
}
