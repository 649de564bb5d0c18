package lifecycle

import (
	"path/filepath"
	"testing"

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

func createTask(t *testing.T, s *Service, title string) *models.Task {
	t.Helper()
	task := &models.Task{Title: title}
	if err := s.Create(task); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return task
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to models.TaskStatus
		want     bool
	}{
		{models.TaskStatusTodo, models.TaskStatusInProgress, true},
		{models.TaskStatusTodo, models.TaskStatusDone, true},
		{models.TaskStatusTodo, models.TaskStatusReview, false},
		{models.TaskStatusInProgress, models.TaskStatusReview, true},
		{models.TaskStatusInProgress, models.TaskStatusDone, true},
		{models.TaskStatusReview, models.TaskStatusDone, true},
		{models.TaskStatusReview, models.TaskStatusTodo, false},
		{models.TaskStatusDone, models.TaskStatusTodo, true},
		{models.TaskStatusDone, models.TaskStatusInProgress, false},
		{models.TaskStatusBlocked, models.TaskStatusInProgress, true},
		{models.TaskStatusBlocked, models.TaskStatusDone, false},
		{models.TaskStatusDone, models.TaskStatusDone, true},
	}
	for _, c := range cases {
		if got := CanTransition(c.from, c.to); got != c.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestCreate_DefaultsAndHistory(t *testing.T) {
	s, _ := setupService(t)

	task := createTask(t, s, "first")
	if task.ID == "" {
		t.Error("Create did not assign an ID")
	}
	if task.Status != models.TaskStatusTodo {
		t.Errorf("Status = %q, want todo", task.Status)
	}
	if task.Priority != models.PriorityMedium {
		t.Errorf("Priority = %q, want medium", task.Priority)
	}

	history, err := s.History(task.ID)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("len(history) = %d, want 1 creation record", len(history))
	}
	if history[0].FromStatus != "" || history[0].ToStatus != models.TaskStatusTodo {
		t.Errorf("creation record = %q -> %q, want \"\" -> todo", history[0].FromStatus, history[0].ToStatus)
	}
}

func TestCreate_RequiresTitle(t *testing.T) {
	s, _ := setupService(t)

	err := s.Create(&models.Task{})
	if !faults.IsValidation(err) {
		t.Errorf("err = %v, want validation error", err)
	}
}

func TestTransition_RecordsHistory(t *testing.T) {
	s, _ := setupService(t)
	task := createTask(t, s, "worked")

	got, err := s.Transition(task.ID, models.TaskStatusInProgress, "picked up")
	if err != nil {
		t.Fatalf("Transition failed: %v", err)
	}
	if got.Status != models.TaskStatusInProgress {
		t.Errorf("Status = %q, want in_progress", got.Status)
	}

	history, _ := s.History(task.ID)
	last := history[len(history)-1]
	if last.Notes != "picked up" {
		t.Errorf("Notes = %q, want %q", last.Notes, "picked up")
	}
}

func TestTransition_RejectsInvalidEdge(t *testing.T) {
	s, _ := setupService(t)
	task := createTask(t, s, "stuck")

	_, err := s.Transition(task.ID, models.TaskStatusReview, "")
	if !faults.IsInvalidState(err) {
		t.Errorf("todo->review err = %v, want invalid state", err)
	}
}

func TestTransition_UnknownStatus(t *testing.T) {
	s, _ := setupService(t)
	task := createTask(t, s, "typo")

	_, err := s.Transition(task.ID, models.TaskStatus("doneish"), "")
	if !faults.IsValidation(err) {
		t.Errorf("err = %v, want validation error", err)
	}
}

func TestTransition_MissingTask(t *testing.T) {
	s, _ := setupService(t)

	_, err := s.Transition("no-such-task", models.TaskStatusDone, "")
	if !faults.IsNotFound(err) {
		t.Errorf("err = %v, want not found", err)
	}
}

func TestTransition_SelfLoopIsNoOp(t *testing.T) {
	s, _ := setupService(t)
	task := createTask(t, s, "idempotent")

	if _, err := s.Transition(task.ID, models.TaskStatusTodo, ""); err != nil {
		t.Fatalf("self transition failed: %v", err)
	}

	history, _ := s.History(task.ID)
	if len(history) != 1 {
		t.Errorf("self transition appended history: %d records", len(history))
	}
}

func TestTransition_DoneGuardedBySubtasks(t *testing.T) {
	s, db := setupService(t)
	root := createTask(t, s, "parent")

	sub := &models.Task{Title: "child", ParentID: root.ID}
	if err := s.Create(sub); err != nil {
		t.Fatalf("Create subtask failed: %v", err)
	}

	_, err := s.Transition(root.ID, models.TaskStatusDone, "")
	if !faults.IsInvalidState(err) {
		t.Fatalf("done with pending subtask err = %v, want invalid state", err)
	}

	if _, err := s.Transition(sub.ID, models.TaskStatusDone, ""); err != nil {
		t.Fatalf("complete subtask failed: %v", err)
	}

	got, err := s.Transition(root.ID, models.TaskStatusDone, "")
	if err != nil {
		t.Fatalf("done after subtasks complete failed: %v", err)
	}
	if got.CompletedAt == nil {
		t.Error("CompletedAt not stamped")
	}

	// Sanity: the guard counted only pending subtasks.
	pending, _ := db.CountPendingSubtasks(root.ID)
	if pending != 0 {
		t.Errorf("CountPendingSubtasks = %d, want 0", pending)
	}
}

func TestTransition_ReopenClearsCompletedAt(t *testing.T) {
	s, _ := setupService(t)
	task := createTask(t, s, "redo")

	if _, err := s.Transition(task.ID, models.TaskStatusDone, ""); err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	got, err := s.Transition(task.ID, models.TaskStatusTodo, "reopened")
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	if got.CompletedAt != nil {
		t.Errorf("CompletedAt = %v after reopen, want nil", got.CompletedAt)
	}
}

func TestDelete_Cascades(t *testing.T) {
	s, db := setupService(t)
	root := createTask(t, s, "doomed")
	sub := &models.Task{Title: "child", ParentID: root.ID}
	if err := s.Create(sub); err != nil {
		t.Fatalf("Create subtask failed: %v", err)
	}

	if err := s.Delete(root.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if got, _ := db.GetTask(sub.ID); got != nil {
		t.Error("subtask survived deletion")
	}
}

func TestDelete_Missing(t *testing.T) {
	s, _ := setupService(t)

	if err := s.Delete("no-such-task"); !faults.IsNotFound(err) {
		t.Errorf("err = %v, want not found", err)
	}
}

func TestList_CacheInvalidatedOnMutation(t *testing.T) {
	s, _ := setupService(t)
	createTask(t, s, "first")

	tasks, err := s.List(nil)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("len(tasks) = %d, want 1", len(tasks))
	}

	// Create drops the cached listing, so the new task is visible at once.
	createTask(t, s, "second")
	tasks, err = s.List(nil)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(tasks) != 2 {
		t.Errorf("len(tasks) after create = %d, want 2", len(tasks))
	}
}

func TestList_StatusFilterAndExternalInvalidation(t *testing.T) {
	s, _ := setupService(t)
	task := createTask(t, s, "work")

	todo := models.TaskStatusTodo
	tasks, err := s.List(&todo)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("len(todo tasks) = %d, want 1", len(tasks))
	}

	if _, err := s.Transition(task.ID, models.TaskStatusInProgress, ""); err != nil {
		t.Fatalf("Transition failed: %v", err)
	}
	tasks, err = s.List(&todo)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(tasks) != 0 {
		t.Errorf("len(todo tasks) after transition = %d, want 0", len(tasks))
	}

	// External collaborators drop listings the same way.
	s.InvalidateListings()
	if _, err := s.List(nil); err != nil {
		t.Fatalf("List after invalidation failed: %v", err)
	}
}
