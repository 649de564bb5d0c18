package engine

import (
	"context"
	"fmt"

	"github.com/maestrohq/maestro/pkg/models"
)

// roleCapability is the built-in capability shared by all roles. It walks a
// fixed sequence of work phases and reports a per-phase summary, standing in
// for the role's real toolchain.
type roleCapability struct {
	role   models.AgentRole
	phases []string
}

func (c *roleCapability) Role() models.AgentRole { return c.role }

func (c *roleCapability) Steps(task *models.Task) []Step {
	steps := make([]Step, len(c.phases))
	for i, phase := range c.phases {
		phase := phase
		steps[i] = Step{
			Name: phase,
			Run: func(ctx context.Context, task *models.Task) (string, error) {
				select {
				case <-ctx.Done():
					return "", ctx.Err()
				default:
				}
				return fmt.Sprintf("%s: %s for %q", c.role, phase, task.Title), nil
			},
		}
	}
	return steps
}

// builtinCapabilities returns the default work definitions for the four
// agent roles.
func builtinCapabilities() []Capability {
	return []Capability{
		&roleCapability{
			role:   models.RoleMaestro,
			phases: []string{"survey context", "coordinate plan", "summarize outcome"},
		},
		&roleCapability{
			role:   models.RoleSentinel,
			phases: []string{"collect artifacts", "run checks", "write review"},
		},
		&roleCapability{
			role:   models.RoleArchitecton,
			phases: []string{"analyze requirements", "design structure", "implement", "self-check"},
		},
		&roleCapability{
			role:   models.RolePixel,
			phases: []string{"sketch layout", "build components", "wire interactions", "polish"},
		},
	}
}
