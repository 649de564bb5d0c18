// Package engine runs single task executions to completion or failure,
// with pause/resume/cancel controls and durable progress and log recording.
package engine

import (
	"context"
	"sync"

	"github.com/maestrohq/maestro/pkg/models"
)

// Step is one unit of agent work. The engine checks for pause and cancel
// requests between steps, so steps are the granularity of cooperative
// interruption.
type Step struct {
	// Name labels the step in execution logs.
	Name string
	// Run performs the step and returns its output payload.
	Run func(ctx context.Context, task *models.Task) (string, error)
}

// Capability produces the work steps for one agent role.
type Capability interface {
	// Role is the agent specialization this capability serves.
	Role() models.AgentRole
	// Steps returns the ordered work steps for the given task.
	Steps(task *models.Task) []Step
}

// Registry maps agent roles to their work capabilities.
type Registry struct {
	mu   sync.RWMutex
	caps map[models.AgentRole]Capability
}

// NewRegistry creates an empty capability registry.
func NewRegistry() *Registry {
	return &Registry{caps: make(map[models.AgentRole]Capability)}
}

// DefaultRegistry returns a registry with the built-in capabilities for all
// four roles registered.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, c := range builtinCapabilities() {
		r.Register(c)
	}
	return r
}

// Register adds or replaces the capability for its role.
func (r *Registry) Register(c Capability) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.caps[c.Role()] = c
}

// Get returns the capability for a role.
func (r *Registry) Get(role models.AgentRole) (Capability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.caps[role]
	return c, ok
}
