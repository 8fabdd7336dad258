package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/carebridge/scheduler/care"
	"github.com/carebridge/scheduler/id"
	"github.com/carebridge/scheduler/job"
)

// Reminder and escalation windows.
const (
	// reminderWindow is how far ahead of the due time a reminder fires.
	reminderWindow = time.Hour
	// reminderDedup suppresses repeat reminders for the same task.
	reminderDedup = time.Hour
	// escalateHighAfter raises an overdue task to high priority.
	escalateHighAfter = 30 * time.Minute
	// escalateCriticalAfter raises an overdue task to critical priority.
	escalateCriticalAfter = 2 * time.Hour
)

// Reminders sends due-soon reminders and escalates overdue tasks. A
// reminder is logged at most once per task per hour; escalation only
// ever raises a task's priority, never lowers it.
type Reminders struct {
	tasks     care.TaskStore
	reminders care.ReminderLog
	opts      options
}

// NewReminders creates the reminder/escalation handler.
func NewReminders(tasks care.TaskStore, reminders care.ReminderLog, opts ...Option) *Reminders {
	return &Reminders{
		tasks:     tasks,
		reminders: reminders,
		opts:      newOptions(opts...),
	}
}

// Type returns the job type this handler serves.
func (h *Reminders) Type() job.Type { return job.TypeReminders }

// remindersResult is the JSON output recorded on the execution.
type remindersResult struct {
	RemindersSent  int `json:"reminders_sent"`
	TasksEscalated int `json:"tasks_escalated"`
}

// Execute scans the reminder and escalation windows for the tenant.
func (h *Reminders) Execute(ctx context.Context, executionID id.ExecutionID, tenantID string) (json.RawMessage, error) {
	now := h.opts.clock().UTC()
	var result remindersResult

	// Reminder pass: tasks coming due within the window, deduplicated
	// against the recent reminder log.
	dueSoon, err := h.tasks.ListTasksDueBetween(ctx, tenantID, now, now.Add(reminderWindow))
	if err != nil {
		return nil, fmt.Errorf("list due tasks: %w", err)
	}
	for _, task := range dueSoon {
		reminded, remErr := h.reminders.RemindedSince(ctx, task.ID, now.Add(-reminderDedup))
		if remErr != nil {
			return nil, fmt.Errorf("check reminder log for task %s: %w", task.ID, remErr)
		}
		if reminded {
			continue
		}
		if logErr := h.reminders.LogReminder(ctx, task.ID, now); logErr != nil {
			return nil, fmt.Errorf("log reminder for task %s: %w", task.ID, logErr)
		}
		result.RemindersSent++
	}

	// Escalation pass: overdue tasks are promoted by how late they are.
	overdue, err := h.tasks.ListOverdueTasks(ctx, tenantID, now)
	if err != nil {
		return nil, fmt.Errorf("list overdue tasks: %w", err)
	}
	for _, task := range overdue {
		target := escalationTarget(now.Sub(task.DueAt))
		if target == "" || !target.Above(task.Priority) {
			continue
		}
		if updErr := h.tasks.UpdateTaskPriority(ctx, task.ID, target); updErr != nil {
			return nil, fmt.Errorf("escalate task %s: %w", task.ID, updErr)
		}
		result.TasksEscalated++
	}

	h.opts.logger.Info("reminders processed",
		slog.String("execution_id", executionID.String()),
		slog.String("tenant_id", tenantID),
		slog.Int("reminders_sent", result.RemindersSent),
		slog.Int("tasks_escalated", result.TasksEscalated),
	)

	return json.Marshal(result)
}

// escalationTarget maps how overdue a task is to the priority it should
// be raised to. Returns "" below the first threshold.
func escalationTarget(overdueBy time.Duration) care.TaskPriority {
	switch {
	case overdueBy >= escalateCriticalAfter:
		return care.PriorityCritical
	case overdueBy >= escalateHighAfter:
		return care.PriorityHigh
	default:
		return ""
	}
}
