// Package maestro plans tasks into ordered phases of agent-assigned
// subtasks, persists committed plans as orchestrations, and monitors their
// progress to a terminal state.
package maestro

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/maestrohq/maestro/pkg/faults"
	"github.com/maestrohq/maestro/pkg/models"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

// Planner decomposes a task into a plan of ordered phases. PlanTask must
// have zero side effects so the same call serves preview and commit.
type Planner interface {
	PlanTask(ctx context.Context, task *models.Task) (*models.Plan, error)
}

// Rules drive the rule-based planner's decomposition heuristics.
type Rules struct {
	// UIKeywords mark work that needs the pixel role.
	UIKeywords []string `yaml:"ui_keywords"`
	// BackendKeywords mark work that needs the architecton role.
	BackendKeywords []string `yaml:"backend_keywords"`
	// Hours holds the base effort estimates per phase kind.
	Hours struct {
		Design float64 `yaml:"design"`
		Build  float64 `yaml:"build"`
		Review float64 `yaml:"review"`
	} `yaml:"hours"`
}

// DefaultRules returns the embedded rule set.
func DefaultRules() (*Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(defaultRulesYAML, &r); err != nil {
		return nil, fmt.Errorf("parse embedded rules: %w", err)
	}
	return &r, nil
}

// LoadRules reads a rule file, falling back to the embedded defaults for
// an empty path.
func LoadRules(path string) (*Rules, error) {
	if path == "" {
		return DefaultRules()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse rules file %s: %w", path, err)
	}
	return &r, nil
}

// RulePlanner decomposes tasks with keyword heuristics: a design phase, a
// build phase split across roles by keyword match, and a review phase.
// Phase order encodes dependency order.
type RulePlanner struct {
	rules *Rules
}

// NewRulePlanner creates a planner with the given rules, or the embedded
// defaults when rules is nil.
func NewRulePlanner(rules *Rules) (*RulePlanner, error) {
	if rules == nil {
		var err error
		rules, err = DefaultRules()
		if err != nil {
			return nil, err
		}
	}
	return &RulePlanner{rules: rules}, nil
}

// PlanTask is pure: it reads the task and returns a plan without touching
// any store.
func (p *RulePlanner) PlanTask(_ context.Context, task *models.Task) (*models.Plan, error) {
	if task == nil || task.Title == "" {
		return nil, faults.NewValidation("title", "required for planning")
	}

	text := strings.ToLower(task.Title + " " + task.Description)
	needsUI := matchAny(text, p.rules.UIKeywords)
	needsBackend := matchAny(text, p.rules.BackendKeywords)
	if !needsUI && !needsBackend {
		// Nothing matched; treat it as backend work so every plan has a
		// build phase.
		needsBackend = true
	}

	buildHours := p.rules.Hours.Build
	if len(task.Description) > 200 {
		buildHours *= 2
	}

	design := models.Phase{
		Name: "Design",
		Subtasks: []models.SubtaskSpec{{
			Title:          fmt.Sprintf("Design approach for %q", task.Title),
			Description:    "Define structure, interfaces, and acceptance criteria before building.",
			Role:           models.RoleArchitecton,
			EstimatedHours: p.rules.Hours.Design,
		}},
	}

	build := models.Phase{Name: "Build"}
	if needsBackend {
		build.Subtasks = append(build.Subtasks, models.SubtaskSpec{
			Title:          fmt.Sprintf("Implement %q", task.Title),
			Description:    "Build the service-side behavior described by the task.",
			Role:           models.RoleArchitecton,
			EstimatedHours: buildHours,
		})
	}
	if needsUI {
		build.Subtasks = append(build.Subtasks, models.SubtaskSpec{
			Title:          fmt.Sprintf("Build interface for %q", task.Title),
			Description:    "Build the user-facing surface described by the task.",
			Role:           models.RolePixel,
			EstimatedHours: buildHours,
		})
	}

	review := models.Phase{
		Name: "Review",
		Subtasks: []models.SubtaskSpec{{
			Title:          fmt.Sprintf("Review %q", task.Title),
			Description:    "Verify the delivered work against the task description.",
			Role:           models.RoleSentinel,
			EstimatedHours: p.rules.Hours.Review,
		}},
	}

	plan := &models.Plan{Phases: []models.Phase{design, build, review}}
	plan.EstimatedTotalHours = plan.SumHours()
	return plan, nil
}

func matchAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
