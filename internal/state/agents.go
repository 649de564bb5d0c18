package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/maestrohq/maestro/pkg/models"
)

const agentColumns = `id, name, role, is_active, skills, tasks_completed, success_rate, created_at`

// CreateAgent registers a new agent. The name is unique.
func (db *DB) CreateAgent(a *models.Agent) error {
	skills, _ := json.Marshal(a.Skills)

	_, err := db.Exec(`
		INSERT INTO agents (`+agentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.Name, string(a.Role), boolToInt(a.IsActive), string(skills),
		a.TasksCompleted, a.SuccessRate, formatTime(a.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create agent: name %q taken: %w", a.Name, err)
		}
		return fmt.Errorf("create agent: %w", err)
	}
	return nil
}

// GetAgent retrieves an agent by ID. Returns (nil, nil) when absent.
func (db *DB) GetAgent(id string) (*models.Agent, error) {
	row := db.QueryRow(`SELECT `+agentColumns+` FROM agents WHERE id = ?`, id)
	a, err := scanAgent(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get agent: %w", err)
	}
	return a, nil
}

// GetAgentByName retrieves an agent by its unique name.
func (db *DB) GetAgentByName(name string) (*models.Agent, error) {
	row := db.QueryRow(`SELECT `+agentColumns+` FROM agents WHERE name = ?`, name)
	a, err := scanAgent(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get agent by name: %w", err)
	}
	return a, nil
}

// GetActiveAgentByRole returns the first active agent with the given role.
func (db *DB) GetActiveAgentByRole(role models.AgentRole) (*models.Agent, error) {
	row := db.QueryRow(`SELECT `+agentColumns+` FROM agents WHERE role = ? AND is_active = 1 ORDER BY created_at, rowid LIMIT 1`, string(role))
	a, err := scanAgent(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get agent by role: %w", err)
	}
	return a, nil
}

// UpdateAgent rewrites the mutable columns of an agent.
func (db *DB) UpdateAgent(a *models.Agent) error {
	skills, _ := json.Marshal(a.Skills)

	_, err := db.Exec(`
		UPDATE agents SET name = ?, role = ?, is_active = ?, skills = ?,
			tasks_completed = ?, success_rate = ?
		WHERE id = ?
	`, a.Name, string(a.Role), boolToInt(a.IsActive), string(skills),
		a.TasksCompleted, a.SuccessRate, a.ID)
	if err != nil {
		return fmt.Errorf("update agent: %w", err)
	}
	return nil
}

// ListAgents lists all agents, optionally restricted to active ones.
func (db *DB) ListAgents(activeOnly bool) ([]models.Agent, error) {
	query := `SELECT ` + agentColumns + ` FROM agents ORDER BY created_at, rowid`
	if activeOnly {
		query = `SELECT ` + agentColumns + ` FROM agents WHERE is_active = 1 ORDER BY created_at, rowid`
	}

	rows, err := db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	var agents []models.Agent
	for rows.Next() {
		a, err := scanAgent(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		agents = append(agents, *a)
	}
	return agents, nil
}

// RecordAgentOutcome folds one execution outcome into the agent's
// aggregate stats. The success rate is a running average over all
// recorded outcomes.
func (db *DB) RecordAgentOutcome(agentID string, success bool) error {
	a, err := db.GetAgent(agentID)
	if err != nil {
		return err
	}
	if a == nil {
		return nil
	}

	total := float64(a.TasksCompleted)
	successes := a.SuccessRate * total
	if success {
		successes++
	}
	a.TasksCompleted++
	a.SuccessRate = successes / float64(a.TasksCompleted)

	return db.UpdateAgent(a)
}

func scanAgent(scan func(...any) error) (*models.Agent, error) {
	var a models.Agent
	var isActive int
	var skills sql.NullString
	var createdAt string
	err := scan(&a.ID, &a.Name, &a.Role, &isActive, &skills, &a.TasksCompleted, &a.SuccessRate, &createdAt)
	if err != nil {
		return nil, err
	}
	a.IsActive = isActive != 0
	if skills.Valid {
		json.Unmarshal([]byte(skills.String), &a.Skills)
	}
	a.CreatedAt, _ = parseTime(createdAt)
	return &a, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueViolation reports whether err is a SQLite unique constraint error.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
