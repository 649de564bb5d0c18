package state

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/maestrohq/maestro/pkg/models"
)

const queueColumns = `id, task_id, agent_id, status, attempts, max_attempts, created_at, updated_at`

// ErrDuplicateQueueEntry is returned by CreateQueueEntry when the task
// already has a live queue entry. The UNIQUE(task_id) constraint is the
// durable guard; the sentinel surfaces it to callers via errors.Is.
var ErrDuplicateQueueEntry = errors.New("task already queued")

// CreateQueueEntry inserts a pending queue entry for a task.
func (db *DB) CreateQueueEntry(e *models.QueueEntry) error {
	_, err := db.Exec(`
		INSERT INTO agent_queue (`+queueColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.TaskID, e.AgentID, string(e.Status), e.Attempts, e.MaxAttempts,
		formatTime(e.CreatedAt), formatTime(e.UpdatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create queue entry for task %s: %w", e.TaskID, ErrDuplicateQueueEntry)
		}
		return fmt.Errorf("create queue entry: %w", err)
	}
	return nil
}

// GetQueueEntry retrieves a queue entry by ID. Returns (nil, nil) when absent.
func (db *DB) GetQueueEntry(id string) (*models.QueueEntry, error) {
	row := db.QueryRow(`SELECT `+queueColumns+` FROM agent_queue WHERE id = ?`, id)
	e, err := scanQueueEntry(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get queue entry: %w", err)
	}
	return e, nil
}

// GetQueueEntryByTask retrieves the queue entry for a task, if any.
func (db *DB) GetQueueEntryByTask(taskID string) (*models.QueueEntry, error) {
	row := db.QueryRow(`SELECT `+queueColumns+` FROM agent_queue WHERE task_id = ?`, taskID)
	e, err := scanQueueEntry(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get queue entry by task: %w", err)
	}
	return e, nil
}

// NextPendingEntry returns the oldest pending entry for an agent, FIFO by
// creation order. It does not mutate state; claiming is the caller's job.
func (db *DB) NextPendingEntry(agentID string) (*models.QueueEntry, error) {
	row := db.QueryRow(`
		SELECT `+queueColumns+` FROM agent_queue
		WHERE agent_id = ? AND status = ?
		ORDER BY created_at, rowid LIMIT 1
	`, agentID, string(models.QueuePending))
	e, err := scanQueueEntry(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next pending entry: %w", err)
	}
	return e, nil
}

// ClaimQueueEntry atomically moves an entry from pending to processing and
// increments its attempts counter. Returns false when the entry was not
// pending anymore (another caller won the claim) or when its attempts are
// already exhausted; attempts never passes max_attempts.
func (db *DB) ClaimQueueEntry(id string) (bool, error) {
	res, err := db.Exec(`
		UPDATE agent_queue
		SET status = ?, attempts = attempts + 1, updated_at = ?
		WHERE id = ? AND status = ? AND attempts < max_attempts
	`, string(models.QueueProcessing), formatTime(time.Now()), id, string(models.QueuePending))
	if err != nil {
		return false, fmt.Errorf("claim queue entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim queue entry rows affected: %w", err)
	}
	return n == 1, nil
}

// FinishQueueEntry atomically moves a processing entry to the given status.
// Returns false when the entry was not processing, meaning it was already
// finalized by another caller.
func (db *DB) FinishQueueEntry(id string, to models.QueueStatus) (bool, error) {
	res, err := db.Exec(`
		UPDATE agent_queue SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, string(to), formatTime(time.Now()), id, string(models.QueueProcessing))
	if err != nil {
		return false, fmt.Errorf("finish queue entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("finish queue entry rows affected: %w", err)
	}
	return n == 1, nil
}

// DeleteQueueEntry removes the queue entry for a task.
func (db *DB) DeleteQueueEntry(taskID string) error {
	_, err := db.Exec("DELETE FROM agent_queue WHERE task_id = ?", taskID)
	if err != nil {
		return fmt.Errorf("delete queue entry: %w", err)
	}
	return nil
}

// ListQueueEntries lists queue entries, optionally filtered by agent.
func (db *DB) ListQueueEntries(agentID string) ([]models.QueueEntry, error) {
	var rows *sql.Rows
	var err error

	if agentID != "" {
		rows, err = db.Query(`SELECT `+queueColumns+` FROM agent_queue WHERE agent_id = ? ORDER BY created_at, rowid`, agentID)
	} else {
		rows, err = db.Query(`SELECT ` + queueColumns + ` FROM agent_queue ORDER BY created_at, rowid`)
	}
	if err != nil {
		return nil, fmt.Errorf("list queue entries: %w", err)
	}
	defer rows.Close()

	var entries []models.QueueEntry
	for rows.Next() {
		e, err := scanQueueEntry(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan queue entry: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, nil
}

func scanQueueEntry(scan func(...any) error) (*models.QueueEntry, error) {
	var e models.QueueEntry
	var createdAt, updatedAt string
	err := scan(&e.ID, &e.TaskID, &e.AgentID, &e.Status, &e.Attempts, &e.MaxAttempts, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	e.CreatedAt, _ = parseTime(createdAt)
	e.UpdatedAt, _ = parseTime(updatedAt)
	return &e, nil
}
