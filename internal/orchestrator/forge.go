package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ShayCichocki/forge/internal/agent"
	"github.com/ShayCichocki/forge/internal/coerce"
	"github.com/ShayCichocki/forge/internal/control"
	"github.com/ShayCichocki/forge/internal/ledger"
	"github.com/ShayCichocki/forge/internal/state"
	"github.com/ShayCichocki/forge/pkg/models"
)

// ErrStepFailed is returned by on-demand generation when its agent fails.
var ErrStepFailed = errors.New("agent step failed")

// Forge is the context object behind every presentation surface. It is
// built once at startup and shared; it holds no per-request state.
type Forge struct {
	store       state.StateStore
	ledger      *ledger.Ledger
	runners     map[string]agent.Runner
	assembler   *Assembler
	provisioner *Provisioner
	signals     *control.Signals
	log         *zap.Logger
	now         func() time.Time
}

// New creates a Forge.
func New(cfg RequiredConfig, opts ...Option) (*Forge, error) {
	if cfg.Store == nil || cfg.Ledger == nil || cfg.Runners == nil {
		return nil, errors.New("forge: store, ledger and runners are required")
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	assembler, err := NewAssembler(cfg.Store, cfg.Ledger, cfg.Runners, o.defaults, o.logger)
	if err != nil {
		return nil, err
	}
	assembler.now = o.now

	provisioner, err := NewProvisioner(cfg.Store, cfg.Ledger, cfg.Runners, o.checkpoint, o.logger)
	if err != nil {
		return nil, err
	}
	provisioner.now = o.now

	for _, id := range []string{agent.DocsAgent, agent.QualityAgent, agent.SecurityAgent} {
		if cfg.Runners[id] == nil {
			return nil, fmt.Errorf("forge: no runner for %s", id)
		}
	}

	return &Forge{
		store:       cfg.Store,
		ledger:      cfg.Ledger,
		runners:     cfg.Runners,
		assembler:   assembler,
		provisioner: provisioner,
		signals:     o.signals,
		log:         o.logger.Named("forge"),
		now:         o.now,
	}, nil
}

// Ledger returns the event ledger.
func (f *Forge) Ledger() *ledger.Ledger {
	return f.ledger
}

// withHalt attaches the halt signal, when configured, to ctx.
func (f *Forge) withHalt(ctx context.Context) (context.Context, context.CancelFunc) {
	if f.signals == nil {
		return context.WithCancel(ctx)
	}
	return f.signals.WithHalt(ctx)
}

// Submit assembles and persists a proposal for req.
func (f *Forge) Submit(ctx context.Context, req models.RequirementInput) (*models.Proposal, error) {
	ctx, cancel := f.withHalt(ctx)
	defer cancel()

	asm, err := f.assembler.Run(ctx, req)
	if err != nil {
		return nil, err
	}
	return asm.Proposal, nil
}

// Proposal returns a proposal by id.
func (f *Forge) Proposal(id string) (*models.Proposal, error) {
	return f.store.GetProposal(id)
}

// Proposals lists proposals, optionally filtered by status.
func (f *Forge) Proposals(status *models.ProposalStatus) ([]models.Proposal, error) {
	return f.store.ListProposals(status)
}

// Project returns a project by id.
func (f *Forge) Project(id string) (*models.Project, error) {
	return f.store.GetProject(id)
}

// Projects lists projects, optionally filtered by status.
func (f *Forge) Projects(status *models.ProjectStatus) ([]models.Project, error) {
	return f.store.ListProjects(status)
}

// Events queries the ledger.
func (f *Forge) Events(ctx context.Context, filter ledger.Filter) ([]models.Event, error) {
	return f.ledger.Query(ctx, filter)
}

// Artifacts returns everything generated for a project.
func (f *Forge) Artifacts(projectID string) (*ProjectArtifacts, error) {
	if _, err := f.store.GetProject(projectID); err != nil {
		return nil, err
	}
	code, err := f.store.ListGeneratedCode(projectID)
	if err != nil {
		return nil, err
	}
	reports, err := f.store.ListReports(projectID, nil)
	if err != nil {
		return nil, err
	}
	docs, err := f.store.ListDocumentation(projectID)
	if err != nil {
		return nil, err
	}
	return &ProjectArtifacts{Code: code, Reports: reports, Documentation: docs}, nil
}

// ProjectArtifacts groups a project's generated outputs.
type ProjectArtifacts struct {
	Code          []models.GeneratedCode `json:"code"`
	Reports       []models.Report        `json:"reports"`
	Documentation []models.Documentation `json:"documentation"`
}

// EditProposal replaces the fields set in edit. A textual estimated value
// is normalized; an unparsable one is stored as 0. A human edit clears the
// review flag. Decided proposals cannot be edited.
func (f *Forge) EditProposal(ctx context.Context, id string, edit models.ProposalEdit) (*models.Proposal, error) {
	p, err := f.store.GetProposal(id)
	if err != nil {
		return nil, err
	}
	if p.Status != models.ProposalPending {
		return nil, fmt.Errorf("%w: proposal %s is %s", ErrInvalidTransition, id, p.Status)
	}
	if edit.Empty() {
		return p, nil
	}

	var changed []string
	set := func(name string, dst *string, v *string) {
		if v != nil {
			*dst = *v
			changed = append(changed, name)
		}
	}
	set("title", &p.Title, edit.Title)
	set("description", &p.Description, edit.Description)
	set("problem_understanding", &p.ProblemUnderstanding, edit.ProblemUnderstanding)
	set("solution_proposal", &p.SolutionProposal, edit.SolutionProposal)
	set("scope", &p.Scope, edit.Scope)
	set("technologies_suggested", &p.TechnologiesSuggested, edit.TechnologiesSuggested)
	set("estimated_time", &p.EstimatedTime, edit.EstimatedTime)
	set("terms_conditions", &p.TermsConditions, edit.TermsConditions)
	if edit.EstimatedValue != nil {
		v, ok := coerce.NormalizeCurrency(*edit.EstimatedValue)
		if !ok {
			f.log.Warn("unparsable estimated value in edit, storing 0",
				zap.String("proposal", id), zap.String("value", *edit.EstimatedValue))
		}
		p.EstimatedValue = v
		changed = append(changed, "estimated_value")
	}

	p.NeedsReview = false
	p.ReviewReason = ""
	p.UpdatedAt = f.now().UTC()
	if err := f.store.UpdateProposal(p); err != nil {
		return nil, err
	}
	if err := f.ledger.Record(ctx, models.EventProposalUpdated, id, models.SystemActor, models.EventInfo,
		"fields updated: "+strings.Join(changed, ", ")); err != nil {
		return nil, err
	}
	return p, nil
}

// Approve approves a pending proposal and runs the provisioning pipeline
// for the project it spawns. An approved proposal that never got its
// project, because provisioning failed before creating it, is provisioned
// again instead of being rejected as already decided.
func (f *Forge) Approve(ctx context.Context, id string) (*models.Project, error) {
	resume, err := f.awaitingProject(id)
	if err != nil {
		return nil, err
	}
	if resume {
		f.log.Warn("resuming provisioning for approved proposal without project", zap.String("proposal", id))
	} else if _, err := f.decide(ctx, id, models.ProposalApproved); err != nil {
		return nil, err
	}

	ctx, cancel := f.withHalt(ctx)
	defer cancel()
	return f.provisioner.Run(ctx, id)
}

// awaitingProject reports whether id is approved but has no project yet.
func (f *Forge) awaitingProject(id string) (bool, error) {
	p, err := f.store.GetProposal(id)
	if err != nil {
		return false, err
	}
	if p.Status != models.ProposalApproved {
		return false, nil
	}
	_, err = f.store.GetProjectByProposal(id)
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, state.ErrNotFound):
		return true, nil
	default:
		return false, err
	}
}

// Reject rejects a pending proposal.
func (f *Forge) Reject(ctx context.Context, id string) (*models.Proposal, error) {
	return f.decide(ctx, id, models.ProposalRejected)
}

func (f *Forge) decide(ctx context.Context, id string, next models.ProposalStatus) (*models.Proposal, error) {
	p, err := f.store.GetProposal(id)
	if err != nil {
		return nil, err
	}
	if !p.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.Status, next)
	}

	prev := p.Status
	now := f.now().UTC()
	p.Status = next
	p.DecidedAt = &now
	p.UpdatedAt = now
	if err := f.store.UpdateProposal(p); err != nil {
		return nil, err
	}
	if err := f.ledger.Record(ctx, models.EventProposalStatusChanged, id, models.SystemActor, models.EventInfo,
		fmt.Sprintf("proposal status %s -> %s", prev, next)); err != nil {
		return nil, err
	}
	f.log.Info("proposal decided", zap.String("proposal", id), zap.String("status", string(next)))
	return p, nil
}

// DeleteProposal removes a proposal and everything depending on it. A
// missing proposal is an error. A proposal_deleted event is appended after
// the cascade so the deletion itself stays auditable.
func (f *Forge) DeleteProposal(ctx context.Context, id string) (*state.CascadeResult, error) {
	res, err := f.store.DeleteProposalCascade(id)
	if err != nil {
		return nil, err
	}
	detail := fmt.Sprintf("proposal deleted with %d events", res.Events)
	if res.ProjectID != "" {
		detail = fmt.Sprintf("proposal deleted with project %s (%d code, %d reports, %d docs, %d events)",
			res.ProjectID, res.Code, res.Reports, res.Documentation, res.Events)
	}
	if err := f.ledger.Record(ctx, models.EventProposalDeleted, id, models.SystemActor, models.EventInfo, detail); err != nil {
		return nil, err
	}
	f.log.Info("proposal deleted", zap.String("proposal", id), zap.String("project", res.ProjectID))
	return res, nil
}

// CodeRequest describes an on-demand source file.
type CodeRequest struct {
	Filename    string `json:"filename,omitempty"`
	Language    string `json:"language,omitempty"`
	Description string `json:"description"`
}

// projectWithProposal loads a project and, when it still exists, its
// proposal.
func (f *Forge) projectWithProposal(projectID string) (*models.Project, *models.Proposal, error) {
	project, err := f.store.GetProject(projectID)
	if err != nil {
		return nil, nil, err
	}
	proposal, err := f.store.GetProposal(project.ProposalID)
	if err != nil && !errors.Is(err, state.ErrNotFound) {
		return nil, nil, err
	}
	return project, proposal, nil
}

// GenerateCode asks the code agent for one source file and stores it.
func (f *Forge) GenerateCode(ctx context.Context, projectID string, req CodeRequest) (*models.GeneratedCode, error) {
	project, proposal, err := f.projectWithProposal(projectID)
	if err != nil {
		return nil, err
	}

	res := f.runners[agent.CodeAgent].Run(ctx, agent.Input{
		SubjectID:    projectID,
		Requirements: requirementsOf(project, proposal),
		Context:      codeBrief(project, proposal, req),
	})
	if res.Outcome == agent.Failed {
		if err := f.ledger.Record(ctx, models.EventCodeGenerationFailed, projectID, res.Agent, models.EventError,
			"code generation failed: "+res.Reason); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", ErrStepFailed, res.Reason)
	}

	code := generatedCode(projectID, res, f.now().UTC())
	if req.Filename != "" {
		code.Filename = req.Filename
	}
	if req.Language != "" {
		code.Language = req.Language
	}
	if err := f.store.SaveGeneratedCode(code); err != nil {
		return nil, err
	}
	if err := f.ledger.Record(ctx, models.EventCodeGenerated, projectID, res.Agent, res.Outcome.EventStatus(),
		fmt.Sprintf("code %q generated", code.Filename)); err != nil {
		return nil, err
	}
	return code, nil
}

// GenerateDocumentation asks the documentation agent for one document.
func (f *Forge) GenerateDocumentation(ctx context.Context, projectID, docType string) (*models.Documentation, error) {
	project, proposal, err := f.projectWithProposal(projectID)
	if err != nil {
		return nil, err
	}
	code, err := f.store.ListGeneratedCode(projectID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(docType) == "" {
		docType = "Technical documentation"
	}

	input := agent.Input{
		SubjectID:    projectID,
		Requirements: requirementsOf(project, proposal),
		Context:      append([]models.Field{{Label: "Document type", Value: docType}}, projectContext(project, proposal)...),
	}
	for _, c := range code {
		input.Context = append(input.Context, models.Field{Label: "Source file", Value: c.Filename + ": " + c.Description})
	}

	res := f.runners[agent.DocsAgent].Run(ctx, input)
	if res.Outcome == agent.Failed {
		return nil, fmt.Errorf("%w: %s", ErrStepFailed, res.Reason)
	}

	doc := &models.Documentation{
		ID:           uuid.New().String(),
		ProjectID:    projectID,
		Filename:     res.Record.String("filename"),
		DocumentType: nonEmpty(res.Record.String("document_type"), docType),
		Version:      res.Record.String("version"),
		Content:      res.Record.String("content"),
		Degraded:     res.Outcome == agent.Degraded,
		UpdatedAt:    f.now().UTC(),
	}
	if err := f.store.SaveDocumentation(doc); err != nil {
		return nil, err
	}
	if err := f.ledger.Record(ctx, models.EventDocumentationGenerated, projectID, res.Agent, res.Outcome.EventStatus(),
		fmt.Sprintf("%s %q generated", doc.DocumentType, doc.Filename)); err != nil {
		return nil, err
	}
	return doc, nil
}

// GenerateReport runs the quality or security audit over the project's
// generated code.
func (f *Forge) GenerateReport(ctx context.Context, projectID string, kind models.ReportKind) (*models.Report, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown report kind %q", kind)
	}
	project, proposal, err := f.projectWithProposal(projectID)
	if err != nil {
		return nil, err
	}
	code, err := f.store.ListGeneratedCode(projectID)
	if err != nil {
		return nil, err
	}

	id := agent.QualityAgent
	if kind == models.ReportSecurity {
		id = agent.SecurityAgent
	}
	res := f.runners[id].Run(ctx, agent.Input{
		SubjectID:    projectID,
		Requirements: requirementsOf(project, proposal),
		Context:      append(projectContext(project, proposal), codeContext(code)...),
	})
	if res.Outcome == agent.Failed {
		return nil, fmt.Errorf("%w: %s", ErrStepFailed, res.Reason)
	}

	report := &models.Report{
		ID:          uuid.New().String(),
		ProjectID:   projectID,
		Kind:        kind,
		Data:        res.Record.Clone().Values,
		Degraded:    res.Outcome == agent.Degraded,
		GeneratedAt: f.now().UTC(),
	}
	if err := f.store.SaveReport(report); err != nil {
		return nil, err
	}
	if err := f.ledger.Record(ctx, models.EventReportGenerated, projectID, res.Agent, res.Outcome.EventStatus(),
		fmt.Sprintf("%s report generated over %d files", kind, len(code))); err != nil {
		return nil, err
	}
	return report, nil
}

// RecoverInterrupted puts on hold every project whose provisioning run
// stopped without a terminal event and has been idle for at least idle.
func (f *Forge) RecoverInterrupted(ctx context.Context, idle time.Duration) ([]models.Project, error) {
	interrupted, err := f.store.ListInterruptedProjects(idle)
	if err != nil {
		return nil, err
	}

	var recovered []models.Project
	for _, ip := range interrupted {
		project, err := f.store.GetProject(ip.ProjectID)
		if err != nil {
			return recovered, err
		}
		held, err := f.provisioner.hold(ctx, project, "interrupted",
			fmt.Sprintf("provisioning interrupted; last activity %s", ip.LastActivity.Format(time.RFC3339)), "interrupted")
		if err != nil {
			return recovered, err
		}
		recovered = append(recovered, *held)
	}
	return recovered, nil
}
