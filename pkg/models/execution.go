package models

import "time"

// ExecutionStatus represents the state of one execution run.
type ExecutionStatus string

const (
	// ExecQueued indicates the execution was created but has not started.
	ExecQueued ExecutionStatus = "queued"
	// ExecRunning indicates work is in progress.
	ExecRunning ExecutionStatus = "running"
	// ExecPaused indicates work was suspended and can be resumed.
	ExecPaused ExecutionStatus = "paused"
	// ExecCompleted indicates the work finished successfully.
	ExecCompleted ExecutionStatus = "completed"
	// ExecFailed indicates the work failed.
	ExecFailed ExecutionStatus = "failed"
	// ExecCancelled indicates the execution was cancelled.
	ExecCancelled ExecutionStatus = "cancelled"
)

// Valid returns true if the status is a known value.
func (s ExecutionStatus) Valid() bool {
	switch s {
	case ExecQueued, ExecRunning, ExecPaused, ExecCompleted, ExecFailed, ExecCancelled:
		return true
	default:
		return false
	}
}

// Terminal returns true if no further transition is permitted from the status.
func (s ExecutionStatus) Terminal() bool {
	return s == ExecCompleted || s == ExecFailed || s == ExecCancelled
}

// Execution represents one concrete run of an agent's work against a task.
type Execution struct {
	// ID is the unique identifier for this execution.
	ID string `json:"id"`
	// TaskID is the task being executed.
	TaskID string `json:"task_id"`
	// AgentID is the agent performing the work.
	AgentID string `json:"agent_id"`
	// Status is the current state of the execution.
	Status ExecutionStatus `json:"status"`
	// Progress is the completion percentage, clamped to [0,100].
	Progress int `json:"progress"`
	// StartedAt is set on the first transition into running.
	StartedAt *time.Time `json:"started_at,omitempty"`
	// CompletedAt is set exactly once, on entering a terminal status.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	// Result is the opaque payload produced by the work function.
	Result string `json:"result,omitempty"`
	// Error is the failure message, if the execution failed.
	Error string `json:"error,omitempty"`
	// CreatedAt is when the execution record was created.
	CreatedAt time.Time `json:"created_at"`
}

// ClampProgress bounds a progress value to [0,100].
func ClampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// LogLevel represents the severity of an execution log entry.
type LogLevel string

const (
	LogInfo    LogLevel = "info"
	LogWarning LogLevel = "warning"
	LogError   LogLevel = "error"
	LogDebug   LogLevel = "debug"
)

// Valid returns true if the level is a known value.
func (l LogLevel) Valid() bool {
	switch l {
	case LogInfo, LogWarning, LogError, LogDebug:
		return true
	default:
		return false
	}
}

// LogEntry is one ordered log record attached to an execution.
type LogEntry struct {
	// ID is the auto-incremented record ID; ordering follows it.
	ID int64 `json:"id"`
	// ExecutionID is the execution this entry belongs to.
	ExecutionID string `json:"execution_id"`
	// Level is the severity of the entry.
	Level LogLevel `json:"level"`
	// Message is the human-readable log text.
	Message string `json:"message"`
	// Data carries optional structured context as JSON.
	Data map[string]any `json:"data,omitempty"`
	// CreatedAt is when the entry was recorded.
	CreatedAt time.Time `json:"created_at"`
}

// ExecutionResult is the outcome an execution reports to its caller.
type ExecutionResult struct {
	// Success indicates whether the work completed.
	Success bool `json:"success"`
	// ExecutionID identifies the execution that produced this result.
	ExecutionID string `json:"execution_id"`
	// Result is the work function's payload on success.
	Result string `json:"result,omitempty"`
	// Error is the failure message on failure.
	Error string `json:"error,omitempty"`
	// Paused indicates the run was parked by a pause request rather
	// than reaching a terminal status.
	Paused bool `json:"paused,omitempty"`
	// Cancelled indicates the run stopped because the execution was
	// cancelled mid-flight.
	Cancelled bool `json:"cancelled,omitempty"`
}
