package state

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/ShayCichocki/forge/pkg/models"
)

const projectColumns = `id, proposal_id, name, client_name, status, progress, started_at, updated_at`

// CreateProject inserts a new project. A proposal can own at most one project.
func (db *DB) CreateProject(p *models.Project) error {
	_, err := db.Exec(`
		INSERT INTO projects (`+projectColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.ProposalID, p.Name, p.ClientName, string(p.Status), models.ClampProgress(p.Progress),
		formatTime(p.StartedAt), formatTime(p.UpdatedAt))
	if err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	return nil
}

// GetProject retrieves a project by ID.
func (db *DB) GetProject(id string) (*models.Project, error) {
	row := db.QueryRow(`SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

// GetProjectByProposal retrieves the project spawned by a proposal.
func (db *DB) GetProjectByProposal(proposalID string) (*models.Project, error) {
	row := db.QueryRow(`SELECT `+projectColumns+` FROM projects WHERE proposal_id = ?`, proposalID)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("project for proposal %s: %w", proposalID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get project by proposal: %w", err)
	}
	return p, nil
}

// UpdateProject updates a project's status and progress.
func (db *DB) UpdateProject(p *models.Project) error {
	res, err := db.Exec(`
		UPDATE projects SET name = ?, client_name = ?, status = ?, progress = ?, updated_at = ?
		WHERE id = ?
	`, p.Name, p.ClientName, string(p.Status), models.ClampProgress(p.Progress), formatTime(p.UpdatedAt), p.ID)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	return rowsAffected(res, "project", p.ID)
}

// ListProjects returns projects, newest first, optionally filtered by status.
func (db *DB) ListProjects(status *models.ProjectStatus) ([]models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects`
	var args []any
	if status != nil {
		query += ` WHERE status = ?`
		args = append(args, string(*status))
	}
	query += ` ORDER BY started_at DESC`

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, *p)
	}
	return projects, rows.Err()
}

func scanProject(row rowScanner) (*models.Project, error) {
	var p models.Project
	var clientName sql.NullString
	var startedAt, updatedAt string

	err := row.Scan(&p.ID, &p.ProposalID, &p.Name, &clientName, &p.Status, &p.Progress, &startedAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	p.ClientName = clientName.String
	p.StartedAt, _ = parseTime(startedAt)
	p.UpdatedAt, _ = parseTime(updatedAt)
	return &p, nil
}
