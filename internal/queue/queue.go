// Package queue manages the durable per-agent work list. Entries are
// claimed FIFO by creation order; the claim itself is a conditional update
// in the store, which keeps redundant callers from double-processing.
package queue

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/maestrohq/maestro/internal/state"
	"github.com/maestrohq/maestro/pkg/faults"
	"github.com/maestrohq/maestro/pkg/models"
)

// DefaultMaxAttempts bounds retries when the caller does not specify one.
const DefaultMaxAttempts = 3

// Service exposes queue operations over the durable store.
type Service struct {
	store    *state.DB
	onMutate func()
}

// NewService creates a queue service backed by the given store.
func NewService(store *state.DB) *Service {
	return &Service{store: store}
}

// OnMutate registers a callback fired after every successful queue write.
// The lifecycle service hooks this to drop its cached task listings.
func (s *Service) OnMutate(fn func()) {
	s.onMutate = fn
}

func (s *Service) mutated() {
	if s.onMutate != nil {
		s.onMutate()
	}
}

// Enqueue creates a pending entry for the task. A task can hold at most one
// live entry; a second enqueue reports a duplicate.
func (s *Service) Enqueue(taskID, agentID string, maxAttempts int) (*models.QueueEntry, error) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	task, err := s.store.GetTask(taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, faults.NewNotFound("task", taskID)
	}

	agent, err := s.store.GetAgent(agentID)
	if err != nil {
		return nil, err
	}
	if agent == nil {
		return nil, faults.NewNotFound("agent", agentID)
	}

	now := time.Now()
	entry := &models.QueueEntry{
		ID:          uuid.New().String(),
		TaskID:      taskID,
		AgentID:     agentID,
		Status:      models.QueuePending,
		Attempts:    0,
		MaxAttempts: maxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.store.CreateQueueEntry(entry); err != nil {
		if errors.Is(err, state.ErrDuplicateQueueEntry) {
			return nil, faults.NewDuplicate("queue entry", taskID)
		}
		return nil, err
	}
	s.mutated()
	return entry, nil
}

// NextInQueue returns the oldest pending entry for the agent, or nil when
// none is waiting. It does not mutate state; marking the entry processing is
// the caller's responsibility via the store's conditional claim.
func (s *Service) NextInQueue(agentID string) (*models.QueueEntry, error) {
	return s.store.NextPendingEntry(agentID)
}

// Remove deletes the entry for a task. Entries currently being processed
// cannot be removed.
func (s *Service) Remove(taskID string) error {
	entry, err := s.store.GetQueueEntryByTask(taskID)
	if err != nil {
		return err
	}
	if entry == nil {
		return faults.NewNotFound("queue entry", taskID)
	}
	if entry.Status == models.QueueProcessing {
		return faults.NewInvalidState("queue entry", string(entry.Status), "removed", "entry busy")
	}
	if err := s.store.DeleteQueueEntry(taskID); err != nil {
		return err
	}
	s.mutated()
	return nil
}

// Get returns the entry for a task, if any.
func (s *Service) Get(taskID string) (*models.QueueEntry, error) {
	return s.store.GetQueueEntryByTask(taskID)
}

// List returns queue entries, optionally filtered to one agent.
func (s *Service) List(agentID string) ([]models.QueueEntry, error) {
	return s.store.ListQueueEntries(agentID)
}
