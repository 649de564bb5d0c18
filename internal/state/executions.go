package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/maestrohq/maestro/pkg/models"
)

const executionColumns = `id, task_id, agent_id, status, progress, started_at, completed_at, result, error, created_at`

// CreateExecution inserts a new execution record.
func (db *DB) CreateExecution(e *models.Execution) error {
	_, err := db.Exec(`
		INSERT INTO agent_executions (`+executionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.TaskID, e.AgentID, string(e.Status), e.Progress,
		nullableTime(e.StartedAt), nullableTime(e.CompletedAt),
		nullable(e.Result), nullable(e.Error), formatTime(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("create execution: %w", err)
	}
	return nil
}

// GetExecution retrieves an execution by ID. Returns (nil, nil) when absent.
func (db *DB) GetExecution(id string) (*models.Execution, error) {
	row := db.QueryRow(`SELECT `+executionColumns+` FROM agent_executions WHERE id = ?`, id)
	e, err := scanExecution(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get execution: %w", err)
	}
	return e, nil
}

// GetLatestExecutionByTask returns the most recent execution for a task.
func (db *DB) GetLatestExecutionByTask(taskID string) (*models.Execution, error) {
	row := db.QueryRow(`
		SELECT `+executionColumns+` FROM agent_executions
		WHERE task_id = ? ORDER BY created_at DESC, rowid DESC LIMIT 1
	`, taskID)
	e, err := scanExecution(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get latest execution by task: %w", err)
	}
	return e, nil
}

// CompareAndSwapExecutionStatus moves an execution from one of the expected
// statuses to the target status. It stamps started_at on the first move into
// running and completed_at on the move into a terminal status, exactly once.
// Returns false when the current status matched none of the expected ones.
func (db *DB) CompareAndSwapExecutionStatus(id string, to models.ExecutionStatus, from ...models.ExecutionStatus) (bool, error) {
	if len(from) == 0 {
		return false, fmt.Errorf("compare and swap execution: no expected statuses")
	}

	placeholders := "?"
	args := []any{string(to)}
	now := formatTime(time.Now())

	set := "status = ?"
	if to == models.ExecRunning {
		set += ", started_at = COALESCE(started_at, ?)"
		args = append(args, now)
	}
	if to.Terminal() {
		set += ", completed_at = COALESCE(completed_at, ?)"
		args = append(args, now)
	}

	args = append(args, id, string(from[0]))
	for _, f := range from[1:] {
		placeholders += ", ?"
		args = append(args, string(f))
	}

	res, err := db.Exec(`
		UPDATE agent_executions SET `+set+`
		WHERE id = ? AND status IN (`+placeholders+`)
	`, args...)
	if err != nil {
		return false, fmt.Errorf("compare and swap execution status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("compare and swap execution rows affected: %w", err)
	}
	return n == 1, nil
}

// UpdateExecutionProgress records the current progress, clamped to [0,100].
func (db *DB) UpdateExecutionProgress(id string, progress int) error {
	_, err := db.Exec(`UPDATE agent_executions SET progress = ? WHERE id = ?`,
		models.ClampProgress(progress), id)
	if err != nil {
		return fmt.Errorf("update execution progress: %w", err)
	}
	return nil
}

// SetExecutionOutcome records the result or error payload of an execution.
func (db *DB) SetExecutionOutcome(id, result, errMsg string) error {
	_, err := db.Exec(`UPDATE agent_executions SET result = ?, error = ? WHERE id = ?`,
		nullable(result), nullable(errMsg), id)
	if err != nil {
		return fmt.Errorf("set execution outcome: %w", err)
	}
	return nil
}

// DeleteExecution removes an execution and its logs. Running executions are
// refused; the engine enforces this before calling.
func (db *DB) DeleteExecution(id string) error {
	return db.Transaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM execution_logs WHERE execution_id = ?", id); err != nil {
			return fmt.Errorf("delete execution logs: %w", err)
		}
		if _, err := tx.Exec("DELETE FROM agent_executions WHERE id = ?", id); err != nil {
			return fmt.Errorf("delete execution: %w", err)
		}
		return nil
	})
}

// ListExecutionsByTask lists all executions for a task, oldest first.
func (db *DB) ListExecutionsByTask(taskID string) ([]models.Execution, error) {
	rows, err := db.Query(`SELECT `+executionColumns+` FROM agent_executions WHERE task_id = ? ORDER BY created_at, rowid`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list executions by task: %w", err)
	}
	defer rows.Close()

	var execs []models.Execution
	for rows.Next() {
		e, err := scanExecution(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan execution: %w", err)
		}
		execs = append(execs, *e)
	}
	return execs, nil
}

// AppendExecutionLog records one log entry for an execution.
func (db *DB) AppendExecutionLog(e *models.LogEntry) error {
	var data *string
	if e.Data != nil {
		b, err := json.Marshal(e.Data)
		if err != nil {
			return fmt.Errorf("marshal log data: %w", err)
		}
		s := string(b)
		data = &s
	}

	_, err := db.Exec(`
		INSERT INTO execution_logs (execution_id, level, message, data, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, e.ExecutionID, string(e.Level), e.Message, data, formatTime(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("append execution log: %w", err)
	}
	return nil
}

// ListExecutionLogs lists an execution's log entries in record order.
func (db *DB) ListExecutionLogs(executionID string) ([]models.LogEntry, error) {
	rows, err := db.Query(`
		SELECT id, execution_id, level, message, data, created_at
		FROM execution_logs WHERE execution_id = ? ORDER BY id
	`, executionID)
	if err != nil {
		return nil, fmt.Errorf("list execution logs: %w", err)
	}
	defer rows.Close()

	var entries []models.LogEntry
	for rows.Next() {
		var e models.LogEntry
		var data sql.NullString
		var createdAt string
		if err := rows.Scan(&e.ID, &e.ExecutionID, &e.Level, &e.Message, &data, &createdAt); err != nil {
			return nil, fmt.Errorf("scan execution log: %w", err)
		}
		if data.Valid {
			json.Unmarshal([]byte(data.String), &e.Data)
		}
		e.CreatedAt, _ = parseTime(createdAt)
		entries = append(entries, e)
	}
	return entries, nil
}

func scanExecution(scan func(...any) error) (*models.Execution, error) {
	var e models.Execution
	var startedAt, completedAt, result, errMsg sql.NullString
	var createdAt string
	err := scan(&e.ID, &e.TaskID, &e.AgentID, &e.Status, &e.Progress,
		&startedAt, &completedAt, &result, &errMsg, &createdAt)
	if err != nil {
		return nil, err
	}
	e.StartedAt = parseNullableTime(startedAt)
	e.CompletedAt = parseNullableTime(completedAt)
	if result.Valid {
		e.Result = result.String
	}
	if errMsg.Valid {
		e.Error = errMsg.String
	}
	e.CreatedAt, _ = parseTime(createdAt)
	return &e, nil
}

// nullableTime converts an optional time to a column value.
func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}
