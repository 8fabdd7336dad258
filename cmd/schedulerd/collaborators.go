package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/carebridge/scheduler/care"
	"github.com/carebridge/scheduler/id"
)

// The care collaborators (resident directory, task store, staffing,
// report sink) are owned by the platform's CRUD services and wired in at
// deploy time. The dev* implementations below are standalone stand-ins
// so the daemon runs end to end without those services: the task store
// and reminder log are memory-backed, the directory and staffing feeds
// are empty, and the report sink just logs.

type devDirectory struct{}

func (devDirectory) ListActiveResidents(context.Context, string) ([]*care.Resident, error) {
	return nil, nil
}

func (devDirectory) HasActiveMedications(context.Context, string) (bool, error) {
	return false, nil
}

type devTaskStore struct {
	mu    sync.RWMutex
	tasks map[string]*care.Task
}

func newDevTaskStore() *devTaskStore {
	return &devTaskStore{tasks: make(map[string]*care.Task)}
}

func (s *devTaskStore) CreateTask(_ context.Context, t *care.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	s.tasks[t.ID.String()] = &cp
	return nil
}

func (s *devTaskStore) TaskExistsForDay(_ context.Context, tenantID, residentID string, category care.TaskCategory, day time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tasks {
		if t.TenantID == tenantID && t.ResidentID == residentID && t.Category == category &&
			t.DueAt.Year() == day.Year() && t.DueAt.YearDay() == day.YearDay() {
			return true, nil
		}
	}
	return false, nil
}

func (s *devTaskStore) ListTasksDueBetween(_ context.Context, tenantID string, from, to time.Time) ([]*care.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*care.Task
	for _, t := range s.tasks {
		if t.TenantID == tenantID && t.Status == care.TaskPending &&
			!t.DueAt.Before(from) && t.DueAt.Before(to) {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *devTaskStore) ListOverdueTasks(_ context.Context, tenantID string, now time.Time) ([]*care.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*care.Task
	for _, t := range s.tasks {
		if t.TenantID == tenantID && t.Status == care.TaskPending && t.DueAt.Before(now) {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *devTaskStore) ListTasksCompletedBetween(_ context.Context, tenantID string, from, to time.Time) ([]*care.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*care.Task
	for _, t := range s.tasks {
		if t.TenantID == tenantID && t.CompletedAt != nil &&
			!t.CompletedAt.Before(from) && t.CompletedAt.Before(to) {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *devTaskStore) ListTasksCreatedBetween(_ context.Context, tenantID string, from, to time.Time) ([]*care.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*care.Task
	for _, t := range s.tasks {
		if t.TenantID == tenantID && !t.CreatedAt.Before(from) && t.CreatedAt.Before(to) {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *devTaskStore) UpdateTaskPriority(_ context.Context, taskID id.TaskID, p care.TaskPriority) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[taskID.String()]; ok {
		t.Priority = p
	}
	return nil
}

type devReminderLog struct {
	mu        sync.RWMutex
	reminders map[string][]time.Time
}

func newDevReminderLog() *devReminderLog {
	return &devReminderLog{reminders: make(map[string][]time.Time)}
}

func (l *devReminderLog) RemindedSince(_ context.Context, taskID id.TaskID, since time.Time) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, at := range l.reminders[taskID.String()] {
		if !at.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (l *devReminderLog) LogReminder(_ context.Context, taskID id.TaskID, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := taskID.String()
	l.reminders[key] = append(l.reminders[key], at)
	return nil
}

type devStaffing struct{}

func (devStaffing) ListShiftsBetween(context.Context, string, time.Time, time.Time) ([]*care.Shift, error) {
	return nil, nil
}

type logReportSink struct {
	logger *slog.Logger
}

func (s logReportSink) ScheduleReport(_ context.Context, tenantID string, kind care.ReportKind, periodEnd time.Time) error {
	s.logger.Info("report scheduled",
		slog.String("tenant_id", tenantID),
		slog.String("kind", string(kind)),
		slog.Time("period_end", periodEnd),
	)
	return nil
}
