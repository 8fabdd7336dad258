// Package care defines the collaborator contracts the job handlers consume:
// the resident/task data store owned by the platform's CRUD layer, the
// read-only staffing store, and the downstream report generation trigger.
// These are black boxes with their own schemas; the scheduler only needs
// the narrow read/write surface declared here.
package care

import (
	"time"

	"github.com/carebridge/scheduler/id"
)

// TaskCategory classifies an operational care task.
type TaskCategory string

const (
	CategoryMedication TaskCategory = "medication"
	CategoryMeal       TaskCategory = "meal"
	CategoryWellness   TaskCategory = "wellness"
)

// TaskPriority orders tasks for staff attention. Escalation only ever
// raises priority.
type TaskPriority string

const (
	PriorityLow      TaskPriority = "low"
	PriorityMedium   TaskPriority = "medium"
	PriorityHigh     TaskPriority = "high"
	PriorityCritical TaskPriority = "critical"
)

// rank orders priorities so escalation can compare them.
var rank = map[TaskPriority]int{
	PriorityLow:      0,
	PriorityMedium:   1,
	PriorityHigh:     2,
	PriorityCritical: 3,
}

// Above reports whether p outranks other.
func (p TaskPriority) Above(other TaskPriority) bool {
	return rank[p] > rank[other]
}

// TaskStatus is the lifecycle state of a care task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskCompleted TaskStatus = "completed"
	TaskCancelled TaskStatus = "cancelled"
)

// Resident is a resident record as seen by the scheduler.
type Resident struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`
	Name     string `json:"name"`
	Active   bool   `json:"active"`
}

// Task is an operational care task (medication round, meal delivery,
// wellness check) as seen by the scheduler.
type Task struct {
	ID         id.TaskID    `json:"id"`
	TenantID   string       `json:"tenant_id"`
	ResidentID string       `json:"resident_id"`
	Category   TaskCategory `json:"category"`
	Title      string       `json:"title"`
	Priority   TaskPriority `json:"priority"`
	Status     TaskStatus   `json:"status"`

	DueAt       time.Time  `json:"due_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`

	// RequiresEvidence and HasEvidence feed the compliance score.
	RequiresEvidence bool `json:"requires_evidence"`
	HasEvidence      bool `json:"has_evidence"`
}

// Shift is a staffing shift record (read-only input to aggregation).
type Shift struct {
	TenantID string    `json:"tenant_id"`
	StaffID  string    `json:"staff_id"`
	StartAt  time.Time `json:"start_at"`
	EndAt    time.Time `json:"end_at"`
}

// Hours returns the shift length in hours.
func (s Shift) Hours() float64 {
	return s.EndAt.Sub(s.StartAt).Hours()
}
