package state

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/maestrohq/maestro/pkg/models"
)

const taskColumns = `id, parent_id, title, description, status, priority, agent_id, agent_name,
	orchestration_id, execution_order, created_at, updated_at, completed_at`

// CreateTask inserts a new task row.
func (db *DB) CreateTask(t *models.Task) error {
	var completedAt *string
	if t.CompletedAt != nil {
		s := formatTime(*t.CompletedAt)
		completedAt = &s
	}

	_, err := db.Exec(`
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, nullable(t.ParentID), t.Title, t.Description, string(t.Status), string(t.Priority),
		nullable(t.AgentID), nullable(t.AgentName), nullable(t.OrchestrationID), t.ExecutionOrder,
		formatTime(t.CreatedAt), formatTime(t.UpdatedAt), completedAt)
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// GetTask retrieves a task by ID. Returns (nil, nil) when absent.
func (db *DB) GetTask(id string) (*models.Task, error) {
	row := db.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// UpdateTask rewrites the mutable columns of a task.
func (db *DB) UpdateTask(t *models.Task) error {
	var completedAt *string
	if t.CompletedAt != nil {
		s := formatTime(*t.CompletedAt)
		completedAt = &s
	}

	_, err := db.Exec(`
		UPDATE tasks SET parent_id = ?, title = ?, description = ?, status = ?, priority = ?,
			agent_id = ?, agent_name = ?, orchestration_id = ?, execution_order = ?,
			updated_at = ?, completed_at = ?
		WHERE id = ?
	`, nullable(t.ParentID), t.Title, t.Description, string(t.Status), string(t.Priority),
		nullable(t.AgentID), nullable(t.AgentName), nullable(t.OrchestrationID), t.ExecutionOrder,
		formatTime(time.Now()), completedAt, t.ID)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return nil
}

// DeleteTask deletes a task and cascades to its direct subtasks and any
// queue entry referencing them.
func (db *DB) DeleteTask(id string) error {
	return db.Transaction(func(tx *sql.Tx) error {
		rows, err := tx.Query("SELECT id FROM tasks WHERE parent_id = ?", id)
		if err != nil {
			return fmt.Errorf("list subtasks: %w", err)
		}
		var subIDs []string
		for rows.Next() {
			var sid string
			if err := rows.Scan(&sid); err != nil {
				rows.Close()
				return fmt.Errorf("scan subtask id: %w", err)
			}
			subIDs = append(subIDs, sid)
		}
		rows.Close()

		for _, target := range append(subIDs, id) {
			if _, err := tx.Exec("DELETE FROM agent_queue WHERE task_id = ?", target); err != nil {
				return fmt.Errorf("delete queue entry for task %s: %w", target, err)
			}
			if _, err := tx.Exec("DELETE FROM status_changes WHERE task_id = ?", target); err != nil {
				return fmt.Errorf("delete status changes for task %s: %w", target, err)
			}
			if _, err := tx.Exec("DELETE FROM tasks WHERE id = ?", target); err != nil {
				return fmt.Errorf("delete task %s: %w", target, err)
			}
		}
		return nil
	})
}

// ListTasks lists all tasks, optionally filtered by status.
func (db *DB) ListTasks(status *models.TaskStatus) ([]models.Task, error) {
	var rows *sql.Rows
	var err error

	if status != nil {
		rows, err = db.Query(`SELECT `+taskColumns+` FROM tasks WHERE status = ? ORDER BY created_at, rowid`, string(*status))
	} else {
		rows, err = db.Query(`SELECT ` + taskColumns + ` FROM tasks ORDER BY created_at, rowid`)
	}
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	return scanTasks(rows)
}

// ListSubtasks lists the direct subtasks of a task in execution order.
func (db *DB) ListSubtasks(parentID string) ([]models.Task, error) {
	rows, err := db.Query(`SELECT `+taskColumns+` FROM tasks WHERE parent_id = ? ORDER BY execution_order, created_at, rowid`, parentID)
	if err != nil {
		return nil, fmt.Errorf("list subtasks: %w", err)
	}
	defer rows.Close()

	return scanTasks(rows)
}

// CountPendingSubtasks returns how many direct subtasks are not done.
func (db *DB) CountPendingSubtasks(parentID string) (int, error) {
	var n int
	row := db.QueryRow(`SELECT COUNT(*) FROM tasks WHERE parent_id = ? AND status != ?`,
		parentID, string(models.TaskStatusDone))
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("count pending subtasks: %w", err)
	}
	return n, nil
}

// AppendStatusChange records one task status transition.
func (db *DB) AppendStatusChange(c *models.StatusChange) error {
	_, err := db.Exec(`
		INSERT INTO status_changes (task_id, from_status, to_status, notes, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, c.TaskID, nullable(string(c.FromStatus)), string(c.ToStatus), c.Notes, formatTime(c.CreatedAt))
	if err != nil {
		return fmt.Errorf("append status change: %w", err)
	}
	return nil
}

// ListStatusChanges lists the transition history for a task, oldest first.
func (db *DB) ListStatusChanges(taskID string) ([]models.StatusChange, error) {
	rows, err := db.Query(`
		SELECT id, task_id, from_status, to_status, notes, created_at
		FROM status_changes WHERE task_id = ? ORDER BY id
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list status changes: %w", err)
	}
	defer rows.Close()

	var changes []models.StatusChange
	for rows.Next() {
		var c models.StatusChange
		var from, notes sql.NullString
		var createdAt string
		if err := rows.Scan(&c.ID, &c.TaskID, &from, &c.ToStatus, &notes, &createdAt); err != nil {
			return nil, fmt.Errorf("scan status change: %w", err)
		}
		if from.Valid {
			c.FromStatus = models.TaskStatus(from.String)
		}
		if notes.Valid {
			c.Notes = notes.String
		}
		c.CreatedAt, _ = parseTime(createdAt)
		changes = append(changes, c)
	}
	return changes, nil
}

// scanTask scans one task row via the given scan function.
func scanTask(scan func(...any) error) (*models.Task, error) {
	var t models.Task
	var parentID, description, agentID, agentName, orchID sql.NullString
	var createdAt, updatedAt string
	var completedAt sql.NullString
	err := scan(&t.ID, &parentID, &t.Title, &description, &t.Status, &t.Priority,
		&agentID, &agentName, &orchID, &t.ExecutionOrder, &createdAt, &updatedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	if parentID.Valid {
		t.ParentID = parentID.String
	}
	if description.Valid {
		t.Description = description.String
	}
	if agentID.Valid {
		t.AgentID = agentID.String
	}
	if agentName.Valid {
		t.AgentName = agentName.String
	}
	if orchID.Valid {
		t.OrchestrationID = orchID.String
	}
	t.CreatedAt, _ = parseTime(createdAt)
	t.UpdatedAt, _ = parseTime(updatedAt)
	t.CompletedAt = parseNullableTime(completedAt)
	return &t, nil
}

func scanTasks(rows *sql.Rows) ([]models.Task, error) {
	var tasks []models.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, nil
}

// nullable converts an empty string to a NULL column value.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
