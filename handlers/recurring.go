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

// taskTemplate describes one category of daily operational task.
type taskTemplate struct {
	category care.TaskCategory
	title    string
	priority care.TaskPriority
	dueHour  int

	// requiresEvidence marks tasks that feed the compliance score.
	requiresEvidence bool
}

// dailyTemplates are the operational tasks generated for every active
// resident each day. Medication rounds are additionally gated on the
// resident having at least one active medication order.
var dailyTemplates = []taskTemplate{
	{category: care.CategoryMedication, title: "Medication round", priority: care.PriorityHigh, dueHour: 9, requiresEvidence: true},
	{category: care.CategoryMeal, title: "Meal delivery", priority: care.PriorityMedium, dueHour: 12},
	{category: care.CategoryWellness, title: "Wellness check", priority: care.PriorityLow, dueHour: 17},
}

// RecurringTasks generates the current day's operational tasks for every
// active resident of the tenant. Generation is idempotent: a task of the
// same category already due on the same day is never duplicated, so a
// partial failure leaves detectable progress for the next attempt
// instead of requiring a rollback.
type RecurringTasks struct {
	directory care.Directory
	tasks     care.TaskStore
	opts      options
}

// NewRecurringTasks creates the recurring task generation handler.
func NewRecurringTasks(directory care.Directory, tasks care.TaskStore, opts ...Option) *RecurringTasks {
	return &RecurringTasks{
		directory: directory,
		tasks:     tasks,
		opts:      newOptions(opts...),
	}
}

// Type returns the job type this handler serves.
func (h *RecurringTasks) Type() job.Type { return job.TypeRecurringTasks }

// recurringResult is the JSON output recorded on the execution.
type recurringResult struct {
	Residents    int `json:"residents"`
	TasksCreated int `json:"tasks_created"`
	TasksSkipped int `json:"tasks_skipped"`
}

// Execute creates today's tasks for each active resident.
func (h *RecurringTasks) Execute(ctx context.Context, executionID id.ExecutionID, tenantID string) (json.RawMessage, error) {
	now := h.opts.clock().UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	residents, err := h.directory.ListActiveResidents(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list active residents: %w", err)
	}

	result := recurringResult{Residents: len(residents)}

	for _, resident := range residents {
		for _, tmpl := range dailyTemplates {
			if tmpl.category == care.CategoryMedication {
				hasMeds, medErr := h.directory.HasActiveMedications(ctx, resident.ID)
				if medErr != nil {
					return nil, fmt.Errorf("check medications for resident %s: %w", resident.ID, medErr)
				}
				if !hasMeds {
					continue
				}
			}

			exists, exErr := h.tasks.TaskExistsForDay(ctx, tenantID, resident.ID, tmpl.category, day)
			if exErr != nil {
				return nil, fmt.Errorf("check existing %s task for resident %s: %w", tmpl.category, resident.ID, exErr)
			}
			if exists {
				result.TasksSkipped++
				continue
			}

			task := &care.Task{
				ID:               id.NewTaskID(),
				TenantID:         tenantID,
				ResidentID:       resident.ID,
				Category:         tmpl.category,
				Title:            tmpl.title,
				Priority:         tmpl.priority,
				Status:           care.TaskPending,
				DueAt:            day.Add(time.Duration(tmpl.dueHour) * time.Hour),
				CreatedAt:        now,
				RequiresEvidence: tmpl.requiresEvidence,
			}
			if createErr := h.tasks.CreateTask(ctx, task); createErr != nil {
				return nil, fmt.Errorf("create %s task for resident %s: %w", tmpl.category, resident.ID, createErr)
			}
			result.TasksCreated++
		}
	}

	h.opts.logger.Info("recurring tasks generated",
		slog.String("execution_id", executionID.String()),
		slog.String("tenant_id", tenantID),
		slog.Int("residents", result.Residents),
		slog.Int("tasks_created", result.TasksCreated),
		slog.Int("tasks_skipped", result.TasksSkipped),
	)

	return json.Marshal(result)
}
