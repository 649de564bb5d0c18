// Package models defines the shared types for Maestro's task, queue,
// execution, and orchestration records.
package models

import "time"

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	// TaskStatusTodo indicates the task has not started.
	TaskStatusTodo TaskStatus = "todo"
	// TaskStatusInProgress indicates the task is being worked on.
	TaskStatusInProgress TaskStatus = "in_progress"
	// TaskStatusReview indicates the task is awaiting review.
	TaskStatusReview TaskStatus = "review"
	// TaskStatusDone indicates the task completed successfully.
	TaskStatusDone TaskStatus = "done"
	// TaskStatusBlocked indicates the task cannot proceed.
	TaskStatusBlocked TaskStatus = "blocked"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusReview, TaskStatusDone, TaskStatusBlocked:
		return true
	default:
		return false
	}
}

// TaskPriority represents the urgency of a task.
type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
	PriorityUrgent TaskPriority = "urgent"
)

// Valid returns true if the priority is a known value.
func (p TaskPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	default:
		return false
	}
}

// Task represents a unit of work in the system.
type Task struct {
	// ID is the unique identifier for this task.
	ID string `json:"id"`
	// ParentID is the ID of the parent task, if this is a subtask.
	ParentID string `json:"parent_id,omitempty"`
	// Title is the short description of the task.
	Title string `json:"title"`
	// Description provides detailed information about the task.
	Description string `json:"description,omitempty"`
	// Status is the current state of the task.
	Status TaskStatus `json:"status"`
	// Priority is the urgency of the task.
	Priority TaskPriority `json:"priority"`
	// AgentID is the ID of the agent assigned to this task, if any.
	AgentID string `json:"agent_id,omitempty"`
	// AgentName is the name of the assigned agent, denormalized for display.
	AgentName string `json:"agent_name,omitempty"`
	// OrchestrationID links the task to the orchestration that created it.
	OrchestrationID string `json:"orchestration_id,omitempty"`
	// ExecutionOrder is the phase ordering hint for orchestrated subtasks.
	ExecutionOrder int `json:"execution_order,omitempty"`
	// CreatedAt is when the task was created.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is when the task was last modified.
	UpdatedAt time.Time `json:"updated_at"`
	// CompletedAt is when the task reached done, if applicable.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// StatusChange is an append-only audit record of a task status transition.
type StatusChange struct {
	// ID is the auto-incremented record ID.
	ID int64 `json:"id"`
	// TaskID is the task that transitioned.
	TaskID string `json:"task_id"`
	// FromStatus is the prior status. Empty for the creation record.
	FromStatus TaskStatus `json:"from_status,omitempty"`
	// ToStatus is the status the task moved to.
	ToStatus TaskStatus `json:"to_status"`
	// Notes carries optional context for the transition.
	Notes string `json:"notes,omitempty"`
	// CreatedAt is when the transition happened.
	CreatedAt time.Time `json:"created_at"`
}
