package queue

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/maestrohq/maestro/internal/state"
	"github.com/maestrohq/maestro/pkg/faults"
	"github.com/maestrohq/maestro/pkg/models"
)

func setupService(t *testing.T) (*Service, *state.DB) {
	t.Helper()
	db, err := state.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := db.Migrate(); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return NewService(db), db
}

func seedTask(t *testing.T, db *state.DB, title string) *models.Task {
	t.Helper()
	task := &models.Task{
		ID:        uuid.New().String(),
		Title:     title,
		Status:    models.TaskStatusTodo,
		Priority:  models.PriorityMedium,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := db.CreateTask(task); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	return task
}

func seedAgent(t *testing.T, db *state.DB, name string) *models.Agent {
	t.Helper()
	agent := &models.Agent{
		ID:        uuid.New().String(),
		Name:      name,
		Role:      models.RoleArchitecton,
		IsActive:  true,
		CreatedAt: time.Now(),
	}
	if err := db.CreateAgent(agent); err != nil {
		t.Fatalf("CreateAgent failed: %v", err)
	}
	return agent
}

func TestEnqueue(t *testing.T) {
	s, db := setupService(t)
	task := seedTask(t, db, "work")
	agent := seedAgent(t, db, "worker")

	entry, err := s.Enqueue(task.ID, agent.ID, 0)
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if entry.Status != models.QueuePending {
		t.Errorf("Status = %q, want pending", entry.Status)
	}
	if entry.MaxAttempts != DefaultMaxAttempts {
		t.Errorf("MaxAttempts = %d, want default %d", entry.MaxAttempts, DefaultMaxAttempts)
	}
	if entry.Attempts != 0 {
		t.Errorf("Attempts = %d, want 0", entry.Attempts)
	}
}

func TestEnqueue_MissingTaskOrAgent(t *testing.T) {
	s, db := setupService(t)
	task := seedTask(t, db, "work")
	agent := seedAgent(t, db, "worker")

	if _, err := s.Enqueue("no-such-task", agent.ID, 0); !faults.IsNotFound(err) {
		t.Errorf("missing task err = %v, want not found", err)
	}
	if _, err := s.Enqueue(task.ID, "no-such-agent", 0); !faults.IsNotFound(err) {
		t.Errorf("missing agent err = %v, want not found", err)
	}
}

func TestEnqueue_Duplicate(t *testing.T) {
	s, db := setupService(t)
	task := seedTask(t, db, "work")
	agent := seedAgent(t, db, "worker")
	other := seedAgent(t, db, "other")

	if _, err := s.Enqueue(task.ID, agent.ID, 0); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	// One live entry per task, even for a different agent.
	if _, err := s.Enqueue(task.ID, other.ID, 0); !faults.IsDuplicate(err) {
		t.Errorf("second enqueue err = %v, want duplicate", err)
	}
}

func TestNextInQueue_FIFOAndEmpty(t *testing.T) {
	s, db := setupService(t)
	agent := seedAgent(t, db, "worker")

	next, err := s.NextInQueue(agent.ID)
	if err != nil {
		t.Fatalf("NextInQueue failed: %v", err)
	}
	if next != nil {
		t.Errorf("NextInQueue on empty queue = %+v, want nil", next)
	}

	first := seedTask(t, db, "first")
	second := seedTask(t, db, "second")
	if _, err := s.Enqueue(first.ID, agent.ID, 0); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if _, err := s.Enqueue(second.ID, agent.ID, 0); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	next, err = s.NextInQueue(agent.ID)
	if err != nil {
		t.Fatalf("NextInQueue failed: %v", err)
	}
	if next == nil || next.TaskID != first.ID {
		t.Errorf("NextInQueue = %+v, want entry for first task", next)
	}
}

func TestRemove(t *testing.T) {
	s, db := setupService(t)
	task := seedTask(t, db, "work")
	agent := seedAgent(t, db, "worker")

	if err := s.Remove(task.ID); !faults.IsNotFound(err) {
		t.Errorf("remove absent entry err = %v, want not found", err)
	}

	entry, err := s.Enqueue(task.ID, agent.ID, 0)
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	// A claimed entry is busy and cannot be removed.
	if _, err := db.ClaimQueueEntry(entry.ID); err != nil {
		t.Fatalf("ClaimQueueEntry failed: %v", err)
	}
	if err := s.Remove(task.ID); !faults.IsInvalidState(err) {
		t.Errorf("remove busy entry err = %v, want invalid state", err)
	}

	// Finalized entries can be removed.
	if _, err := db.FinishQueueEntry(entry.ID, models.QueueCompleted); err != nil {
		t.Fatalf("FinishQueueEntry failed: %v", err)
	}
	if err := s.Remove(task.ID); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if got, _ := s.Get(task.ID); got != nil {
		t.Error("entry survived removal")
	}
}

func TestList_FilterByAgent(t *testing.T) {
	s, db := setupService(t)
	a := seedAgent(t, db, "a")
	b := seedAgent(t, db, "b")

	for i, agent := range []*models.Agent{a, a, b} {
		task := seedTask(t, db, string(rune('x'+i)))
		if _, err := s.Enqueue(task.ID, agent.ID, 0); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}

	all, err := s.List("")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("len(List()) = %d, want 3", len(all))
	}

	mine, err := s.List(a.ID)
	if err != nil {
		t.Fatalf("List filtered failed: %v", err)
	}
	if len(mine) != 2 {
		t.Errorf("len(List(a)) = %d, want 2", len(mine))
	}
}

func TestOnMutate_FiresOnWrites(t *testing.T) {
	s, db := setupService(t)
	task := seedTask(t, db, "hooked")
	agent := seedAgent(t, db, "hook-agent")

	var fired int
	s.OnMutate(func() { fired++ })

	if _, err := s.Enqueue(task.ID, agent.ID, 0); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if fired != 1 {
		t.Fatalf("fired = %d after enqueue, want 1", fired)
	}

	if err := s.Remove(task.ID); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if fired != 2 {
		t.Errorf("fired = %d after remove, want 2", fired)
	}

	// Reads never fire the hook.
	if _, err := s.List(""); err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if fired != 2 {
		t.Errorf("fired = %d after read, want 2", fired)
	}
}
