package models

import "time"

// AgentRole represents the specialization of an agent.
type AgentRole string

const (
	// RoleMaestro plans and coordinates work across other agents.
	RoleMaestro AgentRole = "maestro"
	// RoleSentinel reviews and verifies completed work.
	RoleSentinel AgentRole = "sentinel"
	// RoleArchitecton designs and builds backend systems.
	RoleArchitecton AgentRole = "architecton"
	// RolePixel builds user interfaces.
	RolePixel AgentRole = "pixel"
)

// Valid returns true if the role is a known value.
func (r AgentRole) Valid() bool {
	switch r {
	case RoleMaestro, RoleSentinel, RoleArchitecton, RolePixel:
		return true
	default:
		return false
	}
}

// Agent represents a specialized automated worker.
type Agent struct {
	// ID is the unique identifier for this agent.
	ID string `json:"id"`
	// Name is the unique human-readable name of the agent.
	Name string `json:"name"`
	// Role is the agent's specialization.
	Role AgentRole `json:"role"`
	// IsActive indicates whether the agent accepts new work.
	IsActive bool `json:"is_active"`
	// Skills lists the agent's declared capabilities.
	Skills []string `json:"skills,omitempty"`
	// TasksCompleted is the number of tasks this agent has finished.
	TasksCompleted int `json:"tasks_completed"`
	// SuccessRate is the fraction of executions that succeeded, 0.0-1.0.
	SuccessRate float64 `json:"success_rate"`
	// CreatedAt is when the agent was registered.
	CreatedAt time.Time `json:"created_at"`
}
