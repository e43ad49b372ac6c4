package models

import "time"

// ProjectStatus represents the delivery state of a project.
type ProjectStatus string

const (
	ProjectActive    ProjectStatus = "active"
	ProjectOnHold    ProjectStatus = "on hold"
	ProjectCompleted ProjectStatus = "completed"
	ProjectCancelled ProjectStatus = "cancelled"
)

// Valid returns true if the status is a known value.
func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectActive, ProjectOnHold, ProjectCompleted, ProjectCancelled:
		return true
	default:
		return false
	}
}

// Project is the delivery unit spawned by an approved proposal.
type Project struct {
	ID         string        `json:"id"`
	ProposalID string        `json:"proposal_id"`
	Name       string        `json:"name"`
	ClientName string        `json:"client_name,omitempty"`
	Status     ProjectStatus `json:"status"`
	// Progress is a percentage in [0, 100].
	Progress  int       `json:"progress"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ClampProgress bounds a progress value to [0, 100].
func ClampProgress(p int) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}
