package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/maestrohq/maestro/pkg/models"
)

const orchestrationColumns = `id, task_id, status, plan, created_at, updated_at`

// CreateOrchestration persists a new orchestration with its committed plan.
func (db *DB) CreateOrchestration(o *models.Orchestration) error {
	plan, err := json.Marshal(o.Plan)
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}

	_, err = db.Exec(`
		INSERT INTO orchestrations (`+orchestrationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
	`, o.ID, o.TaskID, string(o.Status), string(plan),
		formatTime(o.CreatedAt), formatTime(o.UpdatedAt))
	if err != nil {
		return fmt.Errorf("create orchestration: %w", err)
	}
	return nil
}

// GetOrchestration retrieves an orchestration by ID. Returns (nil, nil)
// when absent.
func (db *DB) GetOrchestration(id string) (*models.Orchestration, error) {
	row := db.QueryRow(`SELECT `+orchestrationColumns+` FROM orchestrations WHERE id = ?`, id)
	o, err := scanOrchestration(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get orchestration: %w", err)
	}
	return o, nil
}

// CompareAndSwapOrchestrationStatus moves an orchestration from the expected
// status to the target status. Returns false on a lost race.
func (db *DB) CompareAndSwapOrchestrationStatus(id string, from, to models.OrchestrationStatus) (bool, error) {
	res, err := db.Exec(`
		UPDATE orchestrations SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, string(to), formatTime(time.Now()), id, string(from))
	if err != nil {
		return false, fmt.Errorf("compare and swap orchestration status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("compare and swap orchestration rows affected: %w", err)
	}
	return n == 1, nil
}

// ListOrchestrations lists all orchestrations, newest first.
func (db *DB) ListOrchestrations() ([]models.Orchestration, error) {
	rows, err := db.Query(`SELECT ` + orchestrationColumns + ` FROM orchestrations ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("list orchestrations: %w", err)
	}
	defer rows.Close()

	var orchs []models.Orchestration
	for rows.Next() {
		o, err := scanOrchestration(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan orchestration: %w", err)
		}
		orchs = append(orchs, *o)
	}
	return orchs, nil
}

func scanOrchestration(scan func(...any) error) (*models.Orchestration, error) {
	var o models.Orchestration
	var plan string
	var createdAt, updatedAt string
	err := scan(&o.ID, &o.TaskID, &o.Status, &plan, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(plan), &o.Plan); err != nil {
		return nil, fmt.Errorf("unmarshal plan: %w", err)
	}
	o.CreatedAt, _ = parseTime(createdAt)
	o.UpdatedAt, _ = parseTime(updatedAt)
	return &o, nil
}
