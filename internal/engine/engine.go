package engine

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/maestrohq/maestro/internal/lifecycle"
	"github.com/maestrohq/maestro/internal/state"
	"github.com/maestrohq/maestro/pkg/faults"
	"github.com/maestrohq/maestro/pkg/models"
)

// Engine executes tasks through registered capabilities. All execution state
// lives in the store; status moves are conditional updates so concurrent
// control calls cannot double-finalize a run.
type Engine struct {
	store     *state.DB
	lifecycle *lifecycle.Service
	registry  *Registry
	// stepDelay is the pause between work steps, giving control calls a
	// window to land. Tests set it to zero.
	stepDelay time.Duration
}

// New creates an execution engine.
func New(store *state.DB, lc *lifecycle.Service, registry *Registry) *Engine {
	return &Engine{
		store:     store,
		lifecycle: lc,
		registry:  registry,
		stepDelay: 50 * time.Millisecond,
	}
}

// SetStepDelay overrides the delay between work steps.
func (e *Engine) SetStepDelay(d time.Duration) {
	e.stepDelay = d
}

// ExecuteTask creates an execution for the task and drives it from queued
// through running to a terminal status. Work errors are captured on the
// execution record and reported in the result, never propagated as a crash;
// the returned error covers infrastructure failures only.
func (e *Engine) ExecuteTask(ctx context.Context, taskID, agentID string) (*models.ExecutionResult, error) {
	task, err := e.store.GetTask(taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, faults.NewNotFound("task", taskID)
	}

	agent, err := e.store.GetAgent(agentID)
	if err != nil {
		return nil, err
	}
	if agent == nil {
		return nil, faults.NewNotFound("agent", agentID)
	}

	capability, ok := e.registry.Get(agent.Role)
	if !ok {
		return nil, faults.NewValidation("role", fmt.Sprintf("no capability registered for role %q", agent.Role))
	}

	exec := &models.Execution{
		ID:        uuid.New().String(),
		TaskID:    taskID,
		AgentID:   agentID,
		Status:    models.ExecQueued,
		CreatedAt: time.Now(),
	}
	if err := e.store.CreateExecution(exec); err != nil {
		return nil, err
	}

	ok, err = e.store.CompareAndSwapExecutionStatus(exec.ID, models.ExecRunning, models.ExecQueued)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Cancelled between creation and start.
		return &models.ExecutionResult{ExecutionID: exec.ID, Cancelled: true}, nil
	}

	e.logEntry(exec.ID, models.LogInfo, fmt.Sprintf("execution started by agent %s", agent.Name), map[string]any{
		"agent_id": agentID,
		"role":     string(agent.Role),
	})

	if _, err := e.lifecycle.Transition(taskID, models.TaskStatusInProgress, "execution started"); err != nil {
		// A task already past in_progress is not a reason to abort the run.
		log.Printf("[engine] task %s not moved to in_progress: %v", taskID, err)
	}

	return e.run(ctx, exec.ID, task, capability)
}

// ResumeExecution continues a paused execution from its last recorded
// progress and returns the continuation result.
func (e *Engine) ResumeExecution(ctx context.Context, executionID string) (*models.ExecutionResult, error) {
	exec, err := e.store.GetExecution(executionID)
	if err != nil {
		return nil, err
	}
	if exec == nil {
		return nil, faults.NewNotFound("execution", executionID)
	}

	ok, err := e.store.CompareAndSwapExecutionStatus(executionID, models.ExecRunning, models.ExecPaused)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, faults.NewInvalidState("execution", string(exec.Status), string(models.ExecRunning), "resume requires paused")
	}

	task, err := e.store.GetTask(exec.TaskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, faults.NewNotFound("task", exec.TaskID)
	}

	agent, err := e.store.GetAgent(exec.AgentID)
	if err != nil {
		return nil, err
	}
	if agent == nil {
		return nil, faults.NewNotFound("agent", exec.AgentID)
	}

	capability, ok2 := e.registry.Get(agent.Role)
	if !ok2 {
		return nil, faults.NewValidation("role", fmt.Sprintf("no capability registered for role %q", agent.Role))
	}

	e.logEntry(executionID, models.LogInfo, fmt.Sprintf("execution resumed at %d%%", exec.Progress), nil)
	return e.run(ctx, executionID, task, capability)
}

// PauseExecution parks a running execution. Work stops at the next step
// boundary and the recorded progress is preserved.
func (e *Engine) PauseExecution(executionID string) error {
	exec, err := e.store.GetExecution(executionID)
	if err != nil {
		return err
	}
	if exec == nil {
		return faults.NewNotFound("execution", executionID)
	}

	ok, err := e.store.CompareAndSwapExecutionStatus(executionID, models.ExecPaused, models.ExecRunning)
	if err != nil {
		return err
	}
	if !ok {
		return faults.NewInvalidState("execution", string(exec.Status), string(models.ExecPaused), "pause requires running")
	}

	e.logEntry(executionID, models.LogInfo, "pause requested", nil)
	return nil
}

// CancelExecution cancels an execution from any non-terminal state and
// stamps completedAt. The work loop observes the cancellation before its
// next progress check. Irreversible.
func (e *Engine) CancelExecution(executionID string) error {
	exec, err := e.store.GetExecution(executionID)
	if err != nil {
		return err
	}
	if exec == nil {
		return faults.NewNotFound("execution", executionID)
	}

	ok, err := e.store.CompareAndSwapExecutionStatus(executionID, models.ExecCancelled,
		models.ExecQueued, models.ExecRunning, models.ExecPaused)
	if err != nil {
		return err
	}
	if !ok {
		return faults.NewInvalidState("execution", string(exec.Status), string(models.ExecCancelled), "already terminal")
	}

	e.logEntry(executionID, models.LogWarning, "execution cancelled", nil)
	return nil
}

// DeleteExecution removes an execution and its logs. Running executions are
// refused.
func (e *Engine) DeleteExecution(executionID string) error {
	exec, err := e.store.GetExecution(executionID)
	if err != nil {
		return err
	}
	if exec == nil {
		return faults.NewNotFound("execution", executionID)
	}
	if exec.Status == models.ExecRunning {
		return faults.NewInvalidState("execution", string(exec.Status), "deleted", "execution running")
	}
	return e.store.DeleteExecution(executionID)
}

// GetExecution returns an execution by ID.
func (e *Engine) GetExecution(executionID string) (*models.Execution, error) {
	exec, err := e.store.GetExecution(executionID)
	if err != nil {
		return nil, err
	}
	if exec == nil {
		return nil, faults.NewNotFound("execution", executionID)
	}
	return exec, nil
}

// Logs returns an execution's log entries in record order.
func (e *Engine) Logs(executionID string) ([]models.LogEntry, error) {
	exec, err := e.store.GetExecution(executionID)
	if err != nil {
		return nil, err
	}
	if exec == nil {
		return nil, faults.NewNotFound("execution", executionID)
	}
	return e.store.ListExecutionLogs(executionID)
}

// run drives the capability's steps from the execution's current progress.
// Between steps it reloads the execution row so cancel and pause requests
// take effect at step boundaries.
func (e *Engine) run(ctx context.Context, executionID string, task *models.Task, capability Capability) (*models.ExecutionResult, error) {
	steps := capability.Steps(task)
	if len(steps) == 0 {
		return e.finishFailed(executionID, task.ID, "capability produced no steps")
	}

	var outputs []string
	ran := false

	for i, step := range steps {
		exec, err := e.store.GetExecution(executionID)
		if err != nil {
			return nil, err
		}
		if exec == nil {
			return nil, faults.NewNotFound("execution", executionID)
		}

		switch exec.Status {
		case models.ExecCancelled:
			return &models.ExecutionResult{ExecutionID: executionID, Cancelled: true}, nil
		case models.ExecPaused:
			e.logEntry(executionID, models.LogInfo, fmt.Sprintf("paused at %d%%", exec.Progress), nil)
			return &models.ExecutionResult{ExecutionID: executionID, Paused: true}, nil
		case models.ExecRunning:
			// keep going
		default:
			return nil, faults.NewInvalidState("execution", string(exec.Status), string(models.ExecRunning), "run loop")
		}

		// Steps completed in an earlier run are not repeated after resume.
		stepEnd := (i + 1) * 100 / len(steps)
		if stepEnd <= exec.Progress {
			continue
		}

		if err := ctx.Err(); err != nil {
			return e.finishFailed(executionID, task.ID, fmt.Sprintf("context: %v", err))
		}

		out, err := func() (out string, err error) {
			// A panicking work function fails the execution, not the pass.
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("work function panicked: %v", r)
				}
			}()
			return step.Run(ctx, task)
		}()
		if err != nil {
			e.logEntry(executionID, models.LogError, fmt.Sprintf("step %q failed: %v", step.Name, err), nil)
			return e.finishFailed(executionID, task.ID, err.Error())
		}

		ran = true
		outputs = append(outputs, out)
		if err := e.store.UpdateExecutionProgress(executionID, stepEnd); err != nil {
			return nil, err
		}
		e.logEntry(executionID, models.LogDebug, fmt.Sprintf("step %q done (%d%%)", step.Name, stepEnd), nil)

		if e.stepDelay > 0 && i < len(steps)-1 {
			select {
			case <-time.After(e.stepDelay):
			case <-ctx.Done():
			}
		}
	}

	result := strings.Join(outputs, "\n")
	if ran {
		// A resume that found every step already done keeps the recorded
		// outcome instead of overwriting it with an empty one.
		if err := e.store.SetExecutionOutcome(executionID, result, ""); err != nil {
			return nil, err
		}
	}

	ok, err := e.store.CompareAndSwapExecutionStatus(executionID, models.ExecCompleted, models.ExecRunning)
	if err != nil {
		return nil, err
	}
	if !ok {
		// The run is no longer running: a control call landed during the
		// final step. Branch on what actually happened rather than
		// assuming cancellation, so a pause keeps its requeue path.
		exec, err := e.store.GetExecution(executionID)
		if err != nil {
			return nil, err
		}
		if exec != nil && exec.Status == models.ExecPaused {
			e.logEntry(executionID, models.LogInfo, "paused during final step", nil)
			return &models.ExecutionResult{ExecutionID: executionID, Paused: true}, nil
		}
		return &models.ExecutionResult{ExecutionID: executionID, Cancelled: true}, nil
	}

	e.logEntry(executionID, models.LogInfo, "execution completed", nil)

	if _, err := e.lifecycle.Transition(task.ID, models.TaskStatusDone, "execution completed"); err != nil {
		log.Printf("[engine] task %s not moved to done: %v", task.ID, err)
	}

	return &models.ExecutionResult{Success: true, ExecutionID: executionID, Result: result}, nil
}

// finishFailed finalizes an execution as failed with the given message.
func (e *Engine) finishFailed(executionID, taskID, errMsg string) (*models.ExecutionResult, error) {
	if err := e.store.SetExecutionOutcome(executionID, "", errMsg); err != nil {
		return nil, err
	}

	ok, err := e.store.CompareAndSwapExecutionStatus(executionID, models.ExecFailed,
		models.ExecRunning, models.ExecPaused)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &models.ExecutionResult{ExecutionID: executionID, Cancelled: true}, nil
	}

	e.logEntry(executionID, models.LogError, fmt.Sprintf("execution failed: %s", errMsg), nil)
	return &models.ExecutionResult{Success: false, ExecutionID: executionID, Error: errMsg}, nil
}

// logEntry appends a log row for an execution. Log writes never abort the
// run; failures go to the process log.
func (e *Engine) logEntry(executionID string, level models.LogLevel, msg string, data map[string]any) {
	entry := &models.LogEntry{
		ExecutionID: executionID,
		Level:       level,
		Message:     msg,
		Data:        data,
		CreatedAt:   time.Now(),
	}
	if err := e.store.AppendExecutionLog(entry); err != nil {
		log.Printf("[engine] append log for execution %s: %v", executionID, err)
	}
}
