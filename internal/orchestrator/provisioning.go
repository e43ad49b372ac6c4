package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ShayCichocki/forge/internal/agent"
	"github.com/ShayCichocki/forge/internal/ledger"
	"github.com/ShayCichocki/forge/internal/metrics"
	"github.com/ShayCichocki/forge/internal/state"
	"github.com/ShayCichocki/forge/pkg/models"
)

var (
	// ErrInvalidTransition indicates a status change the lifecycle forbids.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrAlreadyProvisioned indicates the proposal already owns a project.
	ErrAlreadyProvisioned = errors.New("proposal already provisioned")
)

// Provisioning step names.
const (
	StepProvisionEnvironment = "provision-environment"
	StepConfigureBackups     = "configure-backups"
	StepGenerateInitialCode  = "generate-initial-code"
)

type provisionStep struct {
	name     string
	runner   agent.Runner
	critical bool
}

// Provisioner creates the project for an approved proposal and runs the
// post-approval steps. Completed steps are never rolled back: a critical
// failure only stops the remaining steps and puts the project on hold.
type Provisioner struct {
	store      state.StateStore
	ledger     *ledger.Ledger
	steps      []provisionStep
	checkpoint int
	log        *zap.Logger
	now        func() time.Time
}

// NewProvisioner creates a provisioner from the provisioning, backup and
// code generation runners.
func NewProvisioner(store state.StateStore, l *ledger.Ledger, runners map[string]agent.Runner, checkpoint int, log *zap.Logger) (*Provisioner, error) {
	steps := []provisionStep{
		{name: StepProvisionEnvironment, runner: runners[agent.ProvisionAgent], critical: true},
		{name: StepConfigureBackups, runner: runners[agent.BackupAgent], critical: true},
		{name: StepGenerateInitialCode, runner: runners[agent.CodeAgent]},
	}
	for _, s := range steps {
		if s.runner == nil {
			return nil, fmt.Errorf("provisioner: no runner for %s", s.name)
		}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Provisioner{
		store:      store,
		ledger:     l,
		steps:      steps,
		checkpoint: models.ClampProgress(checkpoint),
		log:        log.Named("provisioning"),
		now:        time.Now,
	}, nil
}

// Run provisions the project for an approved proposal. It returns
// ErrInvalidTransition for a proposal that is not approved and
// ErrAlreadyProvisioned when the project already exists. Step failures are
// not errors: the returned project carries the resulting status.
func (p *Provisioner) Run(ctx context.Context, proposalID string) (*models.Project, error) {
	proposal, err := p.store.GetProposal(proposalID)
	if err != nil {
		return nil, err
	}
	if proposal.Status != models.ProposalApproved {
		return nil, fmt.Errorf("%w: proposal %s is %s, not approved", ErrInvalidTransition, proposalID, proposal.Status)
	}
	if _, err := p.store.GetProjectByProposal(proposalID); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyProvisioned, proposalID)
	} else if !errors.Is(err, state.ErrNotFound) {
		return nil, err
	}

	now := p.now().UTC()
	project := &models.Project{
		ID:         uuid.New().String(),
		ProposalID: proposalID,
		Name:       proposal.Requirements.ProjectName,
		ClientName: proposal.Requirements.ClientName,
		Status:     models.ProjectActive,
		StartedAt:  now,
		UpdatedAt:  now,
	}
	if err := p.store.CreateProject(project); err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	proposal.ProjectID = project.ID

	ectx := context.WithoutCancel(ctx)
	log := p.log.With(zap.String("project", project.ID), zap.String("proposal", proposalID))

	if err := p.ledger.Record(ectx, models.EventProjectCreated, project.ID, models.SystemActor, models.EventInfo,
		fmt.Sprintf("project %q created from proposal %s", project.Name, proposalID)); err != nil {
		return nil, err
	}
	if err := p.ledger.Record(ectx, models.EventOrchestrationStarted, project.ID, models.SystemActor, models.EventInfo,
		"post-approval orchestration started"); err != nil {
		return nil, err
	}
	log.Info("provisioning started")

	input := agent.Input{
		SubjectID:    project.ID,
		Requirements: proposal.Requirements,
		Context:      projectContext(project, proposal),
	}

	for _, step := range p.steps {
		if cause := haltCause(ctx); cause != nil {
			return p.hold(ectx, project, step.name, fmt.Sprintf("halted before %s: %v", step.name, cause), "halted")
		}

		stepInput := input
		if step.name == StepGenerateInitialCode {
			stepInput.Context = codeBrief(project, proposal, CodeRequest{Description: initialCodeBrief})
		}

		res := step.runner.Run(ctx, stepInput)

		if res.Outcome == agent.Failed {
			if step.critical {
				return p.hold(ectx, project, step.name, fmt.Sprintf("%s failed: %s", step.name, res.Reason), "on_hold")
			}
			log.Warn("best-effort step failed", zap.String("step", step.name), zap.String("reason", res.Reason))
			if err := p.ledger.Record(ectx, models.EventCodeGenerationFailed, project.ID, res.Agent, models.EventError,
				fmt.Sprintf("initial code generation failed: %s", res.Reason)); err != nil {
				return nil, err
			}
			continue
		}

		if step.name == StepGenerateInitialCode {
			code := generatedCode(project.ID, res, p.now().UTC())
			if err := p.store.SaveGeneratedCode(code); err != nil {
				return nil, fmt.Errorf("save generated code: %w", err)
			}
			if err := p.ledger.Record(ectx, models.EventCodeGenerated, project.ID, res.Agent, res.Outcome.EventStatus(),
				fmt.Sprintf("initial code %q generated", code.Filename)); err != nil {
				return nil, err
			}
		}
	}

	project.Progress = p.checkpoint
	project.UpdatedAt = p.now().UTC()
	if err := p.store.UpdateProject(project); err != nil {
		return nil, fmt.Errorf("update project progress: %w", err)
	}
	if err := p.ledger.Record(ectx, models.EventProjectProgressUpdated, project.ID, models.SystemActor, models.EventInfo,
		fmt.Sprintf("progress set to %d%% (environment and initial code)", project.Progress)); err != nil {
		return nil, err
	}
	if err := p.ledger.Record(ectx, models.EventOrchestrationCompleted, project.ID, models.SystemActor, models.EventSuccess,
		"post-approval orchestration completed"); err != nil {
		return nil, err
	}
	metrics.RecordPipeline("provisioning", "completed")
	log.Info("provisioning completed", zap.Int("progress", project.Progress))
	return project, nil
}

// hold stops the pipeline after a critical failure.
func (p *Provisioner) hold(ctx context.Context, project *models.Project, step, reason, result string) (*models.Project, error) {
	p.log.Error("critical provisioning failure, project on hold",
		zap.String("project", project.ID), zap.String("step", step), zap.String("reason", reason))

	if err := p.ledger.Record(ctx, models.EventOrchestrationFailed, project.ID, models.SystemActor, models.EventCritical,
		"critical orchestration failure: "+reason); err != nil {
		return nil, err
	}

	project.Status = models.ProjectOnHold
	project.UpdatedAt = p.now().UTC()
	if err := p.store.UpdateProject(project); err != nil {
		return nil, fmt.Errorf("put project on hold: %w", err)
	}
	if err := p.ledger.Record(ctx, models.EventProjectStatusChanged, project.ID, models.SystemActor, models.EventWarning,
		fmt.Sprintf("project status %s -> %s after %s failure", models.ProjectActive, models.ProjectOnHold, step)); err != nil {
		return nil, err
	}
	metrics.RecordPipeline("provisioning", result)
	return project, nil
}

// haltCause returns why ctx was stopped, or nil.
func haltCause(ctx context.Context) error {
	if ctx.Err() == nil {
		return nil
	}
	return context.Cause(ctx)
}

func generatedCode(projectID string, res agent.Result, now time.Time) *models.GeneratedCode {
	return &models.GeneratedCode{
		ID:          uuid.New().String(),
		ProjectID:   projectID,
		Filename:    res.Record.String("filename"),
		Language:    res.Record.String("language"),
		Content:     res.Record.String("content"),
		Description: res.Record.String("description"),
		Degraded:    res.Outcome == agent.Degraded,
		GeneratedAt: now,
	}
}
