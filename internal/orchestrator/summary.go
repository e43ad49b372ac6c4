package orchestrator

import (
	"context"

	"github.com/ShayCichocki/forge/pkg/models"
)

// Summary is the commercial overview of proposals and projects.
type Summary struct {
	TotalProposals    int     `json:"total_proposals"`
	PendingProposals  int     `json:"pending_proposals"`
	ApprovedProposals int     `json:"approved_proposals"`
	RejectedProposals int     `json:"rejected_proposals"`
	NeedsReview       int     `json:"needs_review"`
	ApprovalRate      float64 `json:"approval_rate"`
	TotalValue        float64 `json:"total_value"`
	ApprovedValue     float64 `json:"approved_value"`

	TotalProjects     int `json:"total_projects"`
	ActiveProjects    int `json:"active_projects"`
	OnHoldProjects    int `json:"on_hold_projects"`
	CompletedProjects int `json:"completed_projects"`

	EventCounts map[models.EventType]int `json:"event_counts"`
}

// Summary computes the overview. ApprovalRate is approved over decided
// proposals, 0 when nothing has been decided.
func (f *Forge) Summary(ctx context.Context) (*Summary, error) {
	proposals, err := f.store.ListProposals(nil)
	if err != nil {
		return nil, err
	}
	projects, err := f.store.ListProjects(nil)
	if err != nil {
		return nil, err
	}
	counts, err := f.ledger.CountByType(ctx, "")
	if err != nil {
		return nil, err
	}

	s := &Summary{
		TotalProposals: len(proposals),
		TotalProjects:  len(projects),
		EventCounts:    counts,
	}
	for _, p := range proposals {
		s.TotalValue += p.EstimatedValue
		if p.NeedsReview {
			s.NeedsReview++
		}
		switch p.Status {
		case models.ProposalPending:
			s.PendingProposals++
		case models.ProposalApproved:
			s.ApprovedProposals++
			s.ApprovedValue += p.EstimatedValue
		case models.ProposalRejected:
			s.RejectedProposals++
		}
	}
	if decided := s.ApprovedProposals + s.RejectedProposals; decided > 0 {
		s.ApprovalRate = float64(s.ApprovedProposals) / float64(decided)
	}

	for _, p := range projects {
		switch p.Status {
		case models.ProjectActive:
			s.ActiveProjects++
		case models.ProjectOnHold:
			s.OnHoldProjects++
		case models.ProjectCompleted:
			s.CompletedProjects++
		}
	}
	return s, nil
}
