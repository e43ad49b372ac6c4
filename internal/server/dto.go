package server

import (
	"github.com/ShayCichocki/forge/internal/state"
	"github.com/ShayCichocki/forge/pkg/models"
)

// Request payloads

type DocumentationRequest struct {
	DocumentType string `json:"document_type,omitempty" example:"Technical documentation"`
}

type ReportRequest struct {
	Kind string `json:"kind" enum:"quality,security"`
}

// Response payloads

type DeleteResponse struct {
	ProposalID    string `json:"proposal_id"`
	ProjectID     string `json:"project_id,omitempty"`
	Code          int64  `json:"code_deleted"`
	Reports       int64  `json:"reports_deleted"`
	Documentation int64  `json:"documentation_deleted"`
	Events        int64  `json:"events_deleted"`
}

type paginatedEvents struct {
	Items      []models.Event `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

type listProposals struct {
	Items []models.Proposal `json:"items"`
}

type listProjects struct {
	Items []models.Project `json:"items"`
}

func deleteResponse(r *state.CascadeResult) DeleteResponse {
	return DeleteResponse{
		ProposalID:    r.ProposalID,
		ProjectID:     r.ProjectID,
		Code:          r.Code,
		Reports:       r.Reports,
		Documentation: r.Documentation,
		Events:        r.Events,
	}
}
