package maestro

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/maestrohq/maestro/internal/lifecycle"
	"github.com/maestrohq/maestro/internal/queue"
	"github.com/maestrohq/maestro/internal/state"
	"github.com/maestrohq/maestro/pkg/faults"
	"github.com/maestrohq/maestro/pkg/models"
)

// Maestro persists plans as orchestrations, materializes their subtasks and
// queue entries, and monitors subtask progress to a terminal state.
type Maestro struct {
	store       *state.DB
	lifecycle   *lifecycle.Service
	queue       *queue.Service
	planner     Planner
	maxAttempts int
}

// New creates a Maestro service.
func New(store *state.DB, lc *lifecycle.Service, q *queue.Service, planner Planner) *Maestro {
	return &Maestro{
		store:       store,
		lifecycle:   lc,
		queue:       q,
		planner:     planner,
		maxAttempts: queue.DefaultMaxAttempts,
	}
}

// SetMaxAttempts overrides the retry bound used for materialized queue
// entries.
func (m *Maestro) SetMaxAttempts(n int) {
	if n > 0 {
		m.maxAttempts = n
	}
}

// PlanTask produces a preview plan for a task without persisting anything.
func (m *Maestro) PlanTask(ctx context.Context, taskID string) (*models.Plan, error) {
	task, err := m.store.GetTask(taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, faults.NewNotFound("task", taskID)
	}
	return m.planner.PlanTask(ctx, task)
}

// Orchestrate commits a plan: it persists the orchestration in planning
// status, materializes every subtask spec as a task row plus a queue entry
// for an active agent of the spec's role, then moves the orchestration to
// executing. Returns the orchestration ID.
func (m *Maestro) Orchestrate(ctx context.Context, taskID string) (string, error) {
	task, err := m.store.GetTask(taskID)
	if err != nil {
		return "", err
	}
	if task == nil {
		return "", faults.NewNotFound("task", taskID)
	}

	plan, err := m.planner.PlanTask(ctx, task)
	if err != nil {
		return "", err
	}
	if plan.SubtaskCount() == 0 {
		return "", faults.NewValidation("plan", "no subtasks produced")
	}

	// Resolve every role to an agent before persisting anything, so a
	// missing agent never leaves a half-materialized orchestration.
	agents := make(map[models.AgentRole]*models.Agent)
	for _, phase := range plan.Phases {
		for _, spec := range phase.Subtasks {
			if _, ok := agents[spec.Role]; ok {
				continue
			}
			agent, err := m.store.GetActiveAgentByRole(spec.Role)
			if err != nil {
				return "", err
			}
			if agent == nil {
				return "", faults.NewValidation("plan", fmt.Sprintf("no active agent for role %q", spec.Role))
			}
			agents[spec.Role] = agent
		}
	}

	now := time.Now()
	orch := &models.Orchestration{
		ID:        uuid.New().String(),
		TaskID:    taskID,
		Status:    models.OrchPlanning,
		Plan:      *plan,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.store.CreateOrchestration(orch); err != nil {
		return "", err
	}

	for phaseIdx, phase := range plan.Phases {
		for _, spec := range phase.Subtasks {
			agent := agents[spec.Role]
			subtask := &models.Task{
				ID:              uuid.New().String(),
				ParentID:        taskID,
				Title:           spec.Title,
				Description:     spec.Description,
				Status:          models.TaskStatusTodo,
				Priority:        task.Priority,
				AgentID:         agent.ID,
				AgentName:       agent.Name,
				OrchestrationID: orch.ID,
				ExecutionOrder:  phaseIdx + 1,
			}
			if err := m.lifecycle.Create(subtask); err != nil {
				return "", fmt.Errorf("materialize subtask %q: %w", spec.Title, err)
			}
			if _, err := m.queue.Enqueue(subtask.ID, agent.ID, m.maxAttempts); err != nil {
				return "", fmt.Errorf("enqueue subtask %q: %w", spec.Title, err)
			}
		}
	}

	if _, err := m.store.CompareAndSwapOrchestrationStatus(orch.ID, models.OrchPlanning, models.OrchExecuting); err != nil {
		return "", err
	}

	if _, err := m.lifecycle.Transition(taskID, models.TaskStatusInProgress, "orchestration started"); err != nil {
		log.Printf("[maestro] root task %s not moved to in_progress: %v", taskID, err)
	}

	return orch.ID, nil
}

// MonitorExecution inspects the orchestration's subtasks and advances the
// orchestration: all subtasks done completes it (and attempts the root
// task's done transition); any terminally failed subtask fails it. Callers
// poll this until a terminal status is observed.
func (m *Maestro) MonitorExecution(orchestrationID string) (*models.Orchestration, error) {
	orch, err := m.store.GetOrchestration(orchestrationID)
	if err != nil {
		return nil, err
	}
	if orch == nil {
		return nil, faults.NewNotFound("orchestration", orchestrationID)
	}
	if orch.Status.Terminal() {
		return orch, nil
	}

	subtasks, err := m.subtasks(orch)
	if err != nil {
		return nil, err
	}
	if len(subtasks) == 0 {
		return orch, nil
	}

	allDone := true
	for _, st := range subtasks {
		if st.Status == models.TaskStatusDone {
			continue
		}
		allDone = false

		entry, err := m.store.GetQueueEntryByTask(st.ID)
		if err != nil {
			return nil, err
		}
		if entry != nil && entry.Status == models.QueueFailed {
			if _, err := m.store.CompareAndSwapOrchestrationStatus(orch.ID, orch.Status, models.OrchFailed); err != nil {
				return nil, err
			}
			log.Printf("[maestro] orchestration %s failed: subtask %s exhausted attempts", orch.ID, st.ID)
			return m.store.GetOrchestration(orchestrationID)
		}
	}

	if allDone {
		if _, err := m.store.CompareAndSwapOrchestrationStatus(orch.ID, orch.Status, models.OrchCompleted); err != nil {
			return nil, err
		}
		if _, err := m.lifecycle.Transition(orch.TaskID, models.TaskStatusDone, "orchestration completed"); err != nil {
			log.Printf("[maestro] root task %s not moved to done: %v", orch.TaskID, err)
		}
	}

	return m.store.GetOrchestration(orchestrationID)
}

// MonitorFunc adapts MonitorExecution for the processor's background
// runner: done is reported once the orchestration reaches a terminal
// status.
func (m *Maestro) MonitorFunc(orchestrationID string) func(ctx context.Context) (bool, error) {
	return func(_ context.Context) (bool, error) {
		orch, err := m.MonitorExecution(orchestrationID)
		if err != nil {
			return false, err
		}
		return orch.Status.Terminal(), nil
	}
}

// subtasks returns the root task's subtasks that belong to this
// orchestration, in execution order.
func (m *Maestro) subtasks(orch *models.Orchestration) ([]models.Task, error) {
	all, err := m.store.ListSubtasks(orch.TaskID)
	if err != nil {
		return nil, err
	}
	var out []models.Task
	for _, t := range all {
		if t.OrchestrationID == orch.ID {
			out = append(out, t)
		}
	}
	return out, nil
}
