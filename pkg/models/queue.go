package models

import "time"

// QueueStatus represents the state of an agent queue entry.
type QueueStatus string

const (
	// QueuePending indicates the entry is waiting to be claimed.
	QueuePending QueueStatus = "pending"
	// QueueProcessing indicates the entry has been claimed and work is underway.
	QueueProcessing QueueStatus = "processing"
	// QueueCompleted indicates the entry's work finished successfully.
	QueueCompleted QueueStatus = "completed"
	// QueueFailed indicates the entry exhausted its attempts.
	QueueFailed QueueStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s QueueStatus) Valid() bool {
	switch s {
	case QueuePending, QueueProcessing, QueueCompleted, QueueFailed:
		return true
	default:
		return false
	}
}

// Terminal returns true if no further transition is permitted from the status.
func (s QueueStatus) Terminal() bool {
	return s == QueueCompleted || s == QueueFailed
}

// QueueEntry is a durable record of one task's assignment to an agent.
// At most one live entry exists per task.
type QueueEntry struct {
	// ID is the unique identifier for this entry.
	ID string `json:"id"`
	// TaskID is the task awaiting or undergoing execution.
	TaskID string `json:"task_id"`
	// AgentID is the agent the task is queued for.
	AgentID string `json:"agent_id"`
	// Status is the current state of the entry.
	Status QueueStatus `json:"status"`
	// Attempts is the number of times the entry has been claimed.
	Attempts int `json:"attempts"`
	// MaxAttempts bounds how many claims are allowed before the entry
	// is pinned failed.
	MaxAttempts int `json:"max_attempts"`
	// CreatedAt is when the entry was enqueued. Claims are FIFO by this.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is when the entry last changed state.
	UpdatedAt time.Time `json:"updated_at"`
}
