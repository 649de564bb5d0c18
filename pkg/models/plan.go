package models

import "time"

// OrchestrationStatus represents the state of a multi-phase orchestration.
type OrchestrationStatus string

const (
	// OrchPlanning indicates the plan is being persisted.
	OrchPlanning OrchestrationStatus = "planning"
	// OrchExecuting indicates subtasks are queued and being worked.
	OrchExecuting OrchestrationStatus = "executing"
	// OrchCompleted indicates every subtask finished.
	OrchCompleted OrchestrationStatus = "completed"
	// OrchFailed indicates a subtask failed irrecoverably.
	OrchFailed OrchestrationStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s OrchestrationStatus) Valid() bool {
	switch s {
	case OrchPlanning, OrchExecuting, OrchCompleted, OrchFailed:
		return true
	default:
		return false
	}
}

// Terminal returns true if no further transition is permitted from the status.
func (s OrchestrationStatus) Terminal() bool {
	return s == OrchCompleted || s == OrchFailed
}

// SubtaskSpec describes one planned subtask before it is materialized.
type SubtaskSpec struct {
	// Title is the short description of the subtask.
	Title string `json:"title" yaml:"title"`
	// Description provides detail on what the subtask covers.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	// Role is the agent specialization the subtask targets.
	Role AgentRole `json:"role" yaml:"role"`
	// EstimatedHours is the planner's effort estimate.
	EstimatedHours float64 `json:"estimated_hours" yaml:"estimated_hours"`
}

// Phase is an ordered group of subtasks; phase order encodes dependency
// order (design before build before review).
type Phase struct {
	// Name labels the phase.
	Name string `json:"name" yaml:"name"`
	// Subtasks are the planned subtasks for this phase, in order.
	Subtasks []SubtaskSpec `json:"subtasks" yaml:"subtasks"`
}

// Plan is the result of decomposing a task into ordered phases.
type Plan struct {
	// Phases are the ordered phases of the plan.
	Phases []Phase `json:"phases" yaml:"phases"`
	// EstimatedTotalHours is the sum of subtask estimates across all phases.
	EstimatedTotalHours float64 `json:"estimated_total_hours" yaml:"estimated_total_hours"`
}

// SubtaskCount returns the total number of subtask specs across all phases.
func (p *Plan) SubtaskCount() int {
	n := 0
	for _, ph := range p.Phases {
		n += len(ph.Subtasks)
	}
	return n
}

// SumHours returns the sum of subtask hour estimates across all phases.
func (p *Plan) SumHours() float64 {
	var total float64
	for _, ph := range p.Phases {
		for _, st := range ph.Subtasks {
			total += st.EstimatedHours
		}
	}
	return total
}

// Orchestration is a persisted plan and its live execution state.
type Orchestration struct {
	// ID is the unique identifier for this orchestration.
	ID string `json:"id"`
	// TaskID is the root task being decomposed.
	TaskID string `json:"task_id"`
	// Status is the current state of the orchestration.
	Status OrchestrationStatus `json:"status"`
	// Plan is the committed decomposition.
	Plan Plan `json:"plan"`
	// CreatedAt is when the orchestration was created.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is when the orchestration last changed state.
	UpdatedAt time.Time `json:"updated_at"`
}
