// Package lifecycle owns the task status state machine and its completion
// business rules. Every accepted transition is recorded as an append-only
// StatusChange row.
package lifecycle

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/maestrohq/maestro/internal/cache"
	"github.com/maestrohq/maestro/internal/state"
	"github.com/maestrohq/maestro/pkg/faults"
	"github.com/maestrohq/maestro/pkg/models"
)

// validTransitions is the directed transition graph. A self-loop is always
// allowed and is not listed. The table uses the permissive variant: done may
// return to todo, and todo/in_progress may jump straight to done.
var validTransitions = map[models.TaskStatus][]models.TaskStatus{
	models.TaskStatusTodo:       {models.TaskStatusInProgress, models.TaskStatusBlocked, models.TaskStatusDone},
	models.TaskStatusInProgress: {models.TaskStatusReview, models.TaskStatusBlocked, models.TaskStatusTodo, models.TaskStatusDone},
	models.TaskStatusReview:     {models.TaskStatusDone, models.TaskStatusInProgress, models.TaskStatusBlocked},
	models.TaskStatusDone:       {models.TaskStatusTodo},
	models.TaskStatusBlocked:    {models.TaskStatusTodo, models.TaskStatusInProgress},
}

// CanTransition reports whether the status graph permits from -> to.
func CanTransition(from, to models.TaskStatus) bool {
	if from == to {
		return true
	}
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Service applies status transitions against the durable store. Task
// listings are served through a short-lived read cache; the store stays the
// source of truth and every task mutation drops the cached listings.
type Service struct {
	store    *state.DB
	listings *cache.Cache
}

// NewService creates a lifecycle service backed by the given store.
func NewService(store *state.DB) *Service {
	return &Service{
		store:    store,
		listings: cache.New(cache.DefaultTTL),
	}
}

// List returns tasks, optionally filtered by status, through the listing
// cache.
func (s *Service) List(status *models.TaskStatus) ([]models.Task, error) {
	key := "tasks/all"
	if status != nil {
		key = "tasks/" + string(*status)
	}
	if cached, ok := s.listings.Get(key); ok {
		return cached.([]models.Task), nil
	}
	tasks, err := s.store.ListTasks(status)
	if err != nil {
		return nil, err
	}
	s.listings.Set(key, tasks)
	return tasks, nil
}

// InvalidateListings drops all cached task listings. Callers that mutate
// queue entries outside this service use it to keep reads fresh.
func (s *Service) InvalidateListings() {
	s.listings.Invalidate("tasks/")
}

// Transition moves a task to the given status, enforcing the transition
// graph and the subtask-completion guard, and appends a StatusChange record.
// Entering done stamps completedAt; leaving done back to todo clears it.
func (s *Service) Transition(taskID string, to models.TaskStatus, notes string) (*models.Task, error) {
	if !to.Valid() {
		return nil, faults.NewValidation("status", fmt.Sprintf("unknown status %q", to))
	}

	task, err := s.store.GetTask(taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, faults.NewNotFound("task", taskID)
	}

	from := task.Status
	if !CanTransition(from, to) {
		return nil, faults.NewInvalidState("task", string(from), string(to), "")
	}

	if to == models.TaskStatusDone && from != models.TaskStatusDone {
		pending, err := s.store.CountPendingSubtasks(taskID)
		if err != nil {
			return nil, err
		}
		if pending > 0 {
			return nil, faults.NewInvalidState("task", string(from), string(to),
				fmt.Sprintf("%d subtasks incomplete", pending))
		}
	}

	if from == to {
		return task, nil
	}

	now := time.Now()
	task.Status = to
	task.UpdatedAt = now
	switch {
	case to == models.TaskStatusDone && task.CompletedAt == nil:
		task.CompletedAt = &now
	case from == models.TaskStatusDone && to == models.TaskStatusTodo:
		task.CompletedAt = nil
	}

	if err := s.store.UpdateTask(task); err != nil {
		return nil, err
	}
	s.listings.Invalidate("tasks/")

	change := &models.StatusChange{
		TaskID:     taskID,
		FromStatus: from,
		ToStatus:   to,
		Notes:      notes,
		CreatedAt:  now,
	}
	if err := s.store.AppendStatusChange(change); err != nil {
		return nil, err
	}

	return task, nil
}

// Create validates and persists a new task, recording its creation in the
// status history with an empty from-status.
func (s *Service) Create(task *models.Task) error {
	if task.Title == "" {
		return faults.NewValidation("title", "required")
	}
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	if task.Status == "" {
		task.Status = models.TaskStatusTodo
	}
	if !task.Status.Valid() {
		return faults.NewValidation("status", fmt.Sprintf("unknown status %q", task.Status))
	}
	if task.Priority == "" {
		task.Priority = models.PriorityMedium
	}
	if !task.Priority.Valid() {
		return faults.NewValidation("priority", fmt.Sprintf("unknown priority %q", task.Priority))
	}

	now := time.Now()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = task.CreatedAt

	if err := s.store.CreateTask(task); err != nil {
		return err
	}
	s.listings.Invalidate("tasks/")

	return s.store.AppendStatusChange(&models.StatusChange{
		TaskID:    task.ID,
		ToStatus:  task.Status,
		Notes:     "created",
		CreatedAt: now,
	})
}

// Delete removes a task, cascading to its subtasks.
func (s *Service) Delete(taskID string) error {
	task, err := s.store.GetTask(taskID)
	if err != nil {
		return err
	}
	if task == nil {
		return faults.NewNotFound("task", taskID)
	}
	if err := s.store.DeleteTask(taskID); err != nil {
		return err
	}
	s.listings.Invalidate("tasks/")
	return nil
}

// History returns the task's status transition records, oldest first.
func (s *Service) History(taskID string) ([]models.StatusChange, error) {
	task, err := s.store.GetTask(taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, faults.NewNotFound("task", taskID)
	}
	return s.store.ListStatusChanges(taskID)
}
