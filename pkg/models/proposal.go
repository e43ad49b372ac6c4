package models

import "time"

// ProposalStatus represents where a proposal is in its review lifecycle.
type ProposalStatus string

const (
	// ProposalPending indicates the proposal awaits a decision.
	ProposalPending ProposalStatus = "pending"
	// ProposalApproved indicates the client accepted the proposal.
	ProposalApproved ProposalStatus = "approved"
	// ProposalRejected indicates the client declined the proposal.
	ProposalRejected ProposalStatus = "rejected"
)

// Valid returns true if the status is a known value.
func (s ProposalStatus) Valid() bool {
	switch s {
	case ProposalPending, ProposalApproved, ProposalRejected:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether a proposal may move from s to next.
// Only pending proposals can be decided; decisions are final.
func (s ProposalStatus) CanTransitionTo(next ProposalStatus) bool {
	if s != ProposalPending {
		return false
	}
	return next == ProposalApproved || next == ProposalRejected
}

// Proposal is the commercial document assembled from a requirement set.
type Proposal struct {
	// ID is the unique identifier for this proposal.
	ID string `json:"id"`
	// Status is the review state.
	Status ProposalStatus `json:"status"`
	// Requirements is the input the proposal was built from.
	Requirements RequirementInput `json:"requirements"`

	Title                 string  `json:"title"`
	Description           string  `json:"description"`
	ProblemUnderstanding  string  `json:"problem_understanding"`
	SolutionProposal      string  `json:"solution_proposal"`
	Scope                 string  `json:"scope"`
	TechnologiesSuggested string  `json:"technologies_suggested"`
	EstimatedValue        float64 `json:"estimated_value"`
	EstimatedTime         string  `json:"estimated_time"`
	TermsConditions       string  `json:"terms_conditions"`

	// NeedsReview marks proposals built from degraded or default data.
	NeedsReview bool `json:"needs_review"`
	// ReviewReason explains why NeedsReview is set.
	ReviewReason string `json:"review_reason,omitempty"`

	// ProjectID links the project spawned on approval, if any.
	ProjectID string `json:"project_id,omitempty"`

	SubmittedAt time.Time  `json:"submitted_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DecidedAt   *time.Time `json:"decided_at,omitempty"`
}

// ProposalEdit is a whole-field replacement of the editable proposal fields.
// Nil fields are left untouched.
type ProposalEdit struct {
	Title                 *string `json:"title,omitempty"`
	Description           *string `json:"description,omitempty"`
	ProblemUnderstanding  *string `json:"problem_understanding,omitempty"`
	SolutionProposal      *string `json:"solution_proposal,omitempty"`
	Scope                 *string `json:"scope,omitempty"`
	TechnologiesSuggested *string `json:"technologies_suggested,omitempty"`
	// EstimatedValue is textual so user edits like "R$ 12.000,00" are accepted.
	EstimatedValue  *string `json:"estimated_value,omitempty"`
	EstimatedTime   *string `json:"estimated_time,omitempty"`
	TermsConditions *string `json:"terms_conditions,omitempty"`
}

// Empty reports whether the edit changes nothing.
func (e ProposalEdit) Empty() bool {
	return e.Title == nil && e.Description == nil && e.ProblemUnderstanding == nil &&
		e.SolutionProposal == nil && e.Scope == nil && e.TechnologiesSuggested == nil &&
		e.EstimatedValue == nil && e.EstimatedTime == nil && e.TermsConditions == nil
}
