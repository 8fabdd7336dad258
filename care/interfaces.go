package care

import (
	"context"
	"time"

	"github.com/carebridge/scheduler/id"
)

// Directory reads resident records for a tenant.
type Directory interface {
	// ListActiveResidents returns the tenant's active residents.
	ListActiveResidents(ctx context.Context, tenantID string) ([]*Resident, error)

	// HasActiveMedications reports whether the resident has at least one
	// active medication order. Residents without one get no medication
	// round task.
	HasActiveMedications(ctx context.Context, residentID string) (bool, error)
}

// TaskStore reads and writes operational care tasks.
type TaskStore interface {
	// CreateTask persists a new task.
	CreateTask(ctx context.Context, t *Task) error

	// TaskExistsForDay reports whether the resident already has a task of
	// the given category due on the given day. This is the idempotency
	// check behind recurring task generation.
	TaskExistsForDay(ctx context.Context, tenantID, residentID string, category TaskCategory, day time.Time) (bool, error)

	// ListTasksDueBetween returns pending tasks with DueAt in [from, to).
	ListTasksDueBetween(ctx context.Context, tenantID string, from, to time.Time) ([]*Task, error)

	// ListOverdueTasks returns pending tasks with DueAt before now.
	ListOverdueTasks(ctx context.Context, tenantID string, now time.Time) ([]*Task, error)

	// ListTasksCompletedBetween returns tasks completed in [from, to).
	ListTasksCompletedBetween(ctx context.Context, tenantID string, from, to time.Time) ([]*Task, error)

	// ListTasksCreatedBetween returns tasks created in [from, to),
	// regardless of status.
	ListTasksCreatedBetween(ctx context.Context, tenantID string, from, to time.Time) ([]*Task, error)

	// UpdateTaskPriority raises (or lowers) a task's priority.
	UpdateTaskPriority(ctx context.Context, taskID id.TaskID, p TaskPriority) error
}

// ReminderLog records reminder notifications so they can be deduplicated.
type ReminderLog interface {
	// RemindedSince reports whether a reminder for the task was logged at
	// or after the given time.
	RemindedSince(ctx context.Context, taskID id.TaskID, since time.Time) (bool, error)

	// LogReminder appends a reminder record for the task.
	LogReminder(ctx context.Context, taskID id.TaskID, at time.Time) error
}

// Staffing reads shift records (read-only, for aggregation).
type Staffing interface {
	// ListShiftsBetween returns shifts overlapping [from, to).
	ListShiftsBetween(ctx context.Context, tenantID string, from, to time.Time) ([]*Shift, error)
}

// ReportKind identifies a downstream report request.
type ReportKind string

const (
	ReportDaily   ReportKind = "daily"
	ReportWeekly  ReportKind = "weekly"
	ReportMonthly ReportKind = "monthly"
)

// ReportSink triggers downstream report generation (write-only). Actual
// rendering is an external collaborator.
type ReportSink interface {
	ScheduleReport(ctx context.Context, tenantID string, kind ReportKind, periodEnd time.Time) error
}
