package state

import (
	"encoding/json"
	"fmt"

	"github.com/ShayCichocki/forge/pkg/models"
)

// SaveGeneratedCode stores a generated source file.
func (db *DB) SaveGeneratedCode(c *models.GeneratedCode) error {
	_, err := db.Exec(`
		INSERT INTO generated_code (id, project_id, filename, language, content, description, degraded, generated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.ProjectID, c.Filename, c.Language, c.Content, c.Description, boolToInt(c.Degraded), formatTime(c.GeneratedAt))
	if err != nil {
		return fmt.Errorf("save generated code: %w", err)
	}
	return nil
}

// ListGeneratedCode returns a project's generated files, oldest first.
func (db *DB) ListGeneratedCode(projectID string) ([]models.GeneratedCode, error) {
	rows, err := db.Query(`
		SELECT id, project_id, filename, language, content, COALESCE(description, ''), degraded, generated_at
		FROM generated_code WHERE project_id = ? ORDER BY generated_at ASC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list generated code: %w", err)
	}
	defer rows.Close()

	var files []models.GeneratedCode
	for rows.Next() {
		var c models.GeneratedCode
		var degraded int
		var generatedAt string
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.Filename, &c.Language, &c.Content, &c.Description, &degraded, &generatedAt); err != nil {
			return nil, fmt.Errorf("scan generated code: %w", err)
		}
		c.Degraded = degraded != 0
		c.GeneratedAt, _ = parseTime(generatedAt)
		files = append(files, c)
	}
	return files, rows.Err()
}

// SaveReport stores an audit report.
func (db *DB) SaveReport(r *models.Report) error {
	data, err := json.Marshal(r.Data)
	if err != nil {
		return fmt.Errorf("marshal report data: %w", err)
	}
	_, err = db.Exec(`
		INSERT INTO reports (id, project_id, kind, data, degraded, generated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.ID, r.ProjectID, string(r.Kind), string(data), boolToInt(r.Degraded), formatTime(r.GeneratedAt))
	if err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}

// ListReports returns a project's reports, newest first, optionally filtered by kind.
func (db *DB) ListReports(projectID string, kind *models.ReportKind) ([]models.Report, error) {
	query := `SELECT id, project_id, kind, data, degraded, generated_at FROM reports WHERE project_id = ?`
	args := []any{projectID}
	if kind != nil {
		query += ` AND kind = ?`
		args = append(args, string(*kind))
	}
	query += ` ORDER BY generated_at DESC`

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var reports []models.Report
	for rows.Next() {
		var r models.Report
		var data, generatedAt string
		var degraded int
		if err := rows.Scan(&r.ID, &r.ProjectID, &r.Kind, &data, &degraded, &generatedAt); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		if err := json.Unmarshal([]byte(data), &r.Data); err != nil {
			return nil, fmt.Errorf("unmarshal report data: %w", err)
		}
		r.Degraded = degraded != 0
		r.GeneratedAt, _ = parseTime(generatedAt)
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

// SaveDocumentation stores a project document.
func (db *DB) SaveDocumentation(d *models.Documentation) error {
	_, err := db.Exec(`
		INSERT INTO documentation (id, project_id, filename, document_type, version, content, degraded, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, d.ID, d.ProjectID, d.Filename, d.DocumentType, d.Version, d.Content, boolToInt(d.Degraded), formatTime(d.UpdatedAt))
	if err != nil {
		return fmt.Errorf("save documentation: %w", err)
	}
	return nil
}

// ListDocumentation returns a project's documents, newest first.
func (db *DB) ListDocumentation(projectID string) ([]models.Documentation, error) {
	rows, err := db.Query(`
		SELECT id, project_id, filename, document_type, version, content, degraded, updated_at
		FROM documentation WHERE project_id = ? ORDER BY updated_at DESC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list documentation: %w", err)
	}
	defer rows.Close()

	var docs []models.Documentation
	for rows.Next() {
		var d models.Documentation
		var degraded int
		var updatedAt string
		if err := rows.Scan(&d.ID, &d.ProjectID, &d.Filename, &d.DocumentType, &d.Version, &d.Content, &degraded, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan documentation: %w", err)
		}
		d.Degraded = degraded != 0
		d.UpdatedAt, _ = parseTime(updatedAt)
		docs = append(docs, d)
	}
	return docs, rows.Err()
}
