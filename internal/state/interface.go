// Package state provides SQLite-based persistence for forge.
package state

import (
	"io"
	"time"

	"github.com/ShayCichocki/forge/pkg/models"
)

// ProposalStore handles proposal persistence.
type ProposalStore interface {
	CreateProposal(p *models.Proposal) error
	GetProposal(id string) (*models.Proposal, error)
	UpdateProposal(p *models.Proposal) error
	ListProposals(status *models.ProposalStatus) ([]models.Proposal, error)
	DeleteProposalCascade(id string) (*CascadeResult, error)
}

// ProjectStore handles project persistence.
type ProjectStore interface {
	CreateProject(p *models.Project) error
	GetProject(id string) (*models.Project, error)
	GetProjectByProposal(proposalID string) (*models.Project, error)
	UpdateProject(p *models.Project) error
	ListProjects(status *models.ProjectStatus) ([]models.Project, error)
}

// ArtifactStore handles generated code, reports and documentation.
type ArtifactStore interface {
	SaveGeneratedCode(c *models.GeneratedCode) error
	ListGeneratedCode(projectID string) ([]models.GeneratedCode, error)
	SaveReport(r *models.Report) error
	ListReports(projectID string, kind *models.ReportKind) ([]models.Report, error)
	SaveDocumentation(d *models.Documentation) error
	ListDocumentation(projectID string) ([]models.Documentation, error)
}

// EventStore is the append-only storage behind the ledger.
type EventStore interface {
	InsertEvent(e *models.Event) error
	ListEvents(f EventFilter) ([]models.Event, error)
	CountEventsByType(subjectID string) (map[models.EventType]int, error)
}

// RecoveryStore finds work interrupted by a crash.
type RecoveryStore interface {
	ListInterruptedProjects(idle time.Duration) ([]InterruptedProject, error)
}

// Migrator handles database schema migrations.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate() error
}

// StateStore composes every store the orchestrators depend on, so they
// never reference the concrete SQLite implementation.
type StateStore interface {
	io.Closer
	Migrator
	ProposalStore
	ProjectStore
	ArtifactStore
	EventStore
	RecoveryStore
}

// Compile-time verification that DB implements all interfaces.
var (
	_ StateStore    = (*DB)(nil)
	_ Migrator      = (*DB)(nil)
	_ ProposalStore = (*DB)(nil)
	_ ProjectStore  = (*DB)(nil)
	_ ArtifactStore = (*DB)(nil)
	_ EventStore    = (*DB)(nil)
	_ RecoveryStore = (*DB)(nil)
)
