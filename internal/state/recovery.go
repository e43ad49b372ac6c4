package state

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/ShayCichocki/forge/pkg/models"
)

// InterruptedProject is a project whose provisioning run never recorded a
// terminal event, typically because the process died mid-pipeline.
type InterruptedProject struct {
	ProjectID    string
	ProposalID   string
	Name         string
	StartedAt    time.Time
	LastActivity time.Time
}

// ListInterruptedProjects returns active projects with no completed or
// failed provisioning event whose last activity is older than idle.
func (db *DB) ListInterruptedProjects(idle time.Duration) ([]InterruptedProject, error) {
	rows, err := db.Query(`
		SELECT p.id, p.proposal_id, p.name, p.started_at, MAX(e.timestamp)
		FROM projects p
		LEFT JOIN events e ON e.subject_id = p.id
		WHERE p.status = ?
		  AND NOT EXISTS (
			SELECT 1 FROM events t
			WHERE t.subject_id = p.id AND t.type IN (?, ?)
		  )
		GROUP BY p.id
	`, string(models.ProjectActive), string(models.EventOrchestrationCompleted), string(models.EventOrchestrationFailed))
	if err != nil {
		return nil, fmt.Errorf("list interrupted projects: %w", err)
	}
	defer rows.Close()

	cutoff := time.Now().Add(-idle)
	var interrupted []InterruptedProject
	for rows.Next() {
		var ip InterruptedProject
		var startedAt string
		var lastActivity sql.NullString
		if err := rows.Scan(&ip.ProjectID, &ip.ProposalID, &ip.Name, &startedAt, &lastActivity); err != nil {
			return nil, fmt.Errorf("scan interrupted project: %w", err)
		}
		ip.StartedAt, _ = parseTime(startedAt)
		ip.LastActivity = ip.StartedAt
		if t := parseNullableTime(lastActivity); t != nil {
			ip.LastActivity = *t
		}
		if ip.LastActivity.After(cutoff) {
			continue
		}
		interrupted = append(interrupted, ip)
	}
	return interrupted, rows.Err()
}
