package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ShayCichocki/forge/internal/agent"
	"github.com/ShayCichocki/forge/internal/coerce"
	"github.com/ShayCichocki/forge/internal/ledger"
	"github.com/ShayCichocki/forge/internal/metrics"
	"github.com/ShayCichocki/forge/internal/state"
	"github.com/ShayCichocki/forge/pkg/models"
)

// Phase is a state of proposal assembly.
type Phase string

const (
	PhaseRequirements Phase = "requirements"
	PhaseAnalysis     Phase = "analysis"
	PhaseDesign       Phase = "design"
	PhaseEstimate     Phase = "estimate"
	PhaseCompiled     Phase = "compiled"
	PhaseAborted      Phase = "aborted"
)

// ProposalDefaults fills a proposal when assembly aborts, and any field
// compilation left blank.
type ProposalDefaults struct {
	Title                 string  `mapstructure:"title" yaml:"title"`
	Description           string  `mapstructure:"description" yaml:"description"`
	ProblemUnderstanding  string  `mapstructure:"problem_understanding" yaml:"problem_understanding"`
	SolutionProposal      string  `mapstructure:"solution_proposal" yaml:"solution_proposal"`
	Scope                 string  `mapstructure:"scope" yaml:"scope"`
	TechnologiesSuggested string  `mapstructure:"technologies_suggested" yaml:"technologies_suggested"`
	EstimatedValue        float64 `mapstructure:"estimated_value" yaml:"estimated_value"`
	EstimatedTime         string  `mapstructure:"estimated_time" yaml:"estimated_time"`
	TermsConditions       string  `mapstructure:"terms_conditions" yaml:"terms_conditions"`
}

// DefaultProposalDefaults returns the built-in fallback proposal content.
func DefaultProposalDefaults() ProposalDefaults {
	return ProposalDefaults{
		Title:                 "Commercial proposal",
		Description:           "Proposal drafted from the submitted requirements. Pending manual review.",
		ProblemUnderstanding:  agent.DefaultAnalysis,
		SolutionProposal:      agent.DefaultSolution,
		Scope:                 "To be defined with the client.",
		TechnologiesSuggested: "To be defined",
		EstimatedValue:        0,
		EstimatedTime:         agent.DefaultEstimatedTime,
		TermsConditions:       "Values and deadlines are estimates and will be confirmed after a detailed review.",
	}
}

// merge returns d with blank fields taken from base.
func (d ProposalDefaults) merge(base ProposalDefaults) ProposalDefaults {
	pick := func(v, fallback string) string {
		if strings.TrimSpace(v) == "" {
			return fallback
		}
		return v
	}
	return ProposalDefaults{
		Title:                 pick(d.Title, base.Title),
		Description:           pick(d.Description, base.Description),
		ProblemUnderstanding:  pick(d.ProblemUnderstanding, base.ProblemUnderstanding),
		SolutionProposal:      pick(d.SolutionProposal, base.SolutionProposal),
		Scope:                 pick(d.Scope, base.Scope),
		TechnologiesSuggested: pick(d.TechnologiesSuggested, base.TechnologiesSuggested),
		EstimatedValue:        d.EstimatedValue,
		EstimatedTime:         pick(d.EstimatedTime, base.EstimatedTime),
		TermsConditions:       pick(d.TermsConditions, base.TermsConditions),
	}
}

type assemblyStage struct {
	phase  Phase
	title  string
	runner agent.Runner
}

// Assembler turns a requirement set into one persisted proposal.
type Assembler struct {
	store    state.ProposalStore
	ledger   *ledger.Ledger
	stages   []assemblyStage
	defaults ProposalDefaults
	log      *zap.Logger
	now      func() time.Time
}

// NewAssembler creates an assembler from the analysis, design, estimate and
// compile runners.
func NewAssembler(store state.ProposalStore, l *ledger.Ledger, runners map[string]agent.Runner, defaults ProposalDefaults, log *zap.Logger) (*Assembler, error) {
	stages := []assemblyStage{
		{phase: PhaseAnalysis, title: "Requirements analysis", runner: runners[agent.AnalysisAgent]},
		{phase: PhaseDesign, title: "Solution design", runner: runners[agent.DesignAgent]},
		{phase: PhaseEstimate, title: "Estimate", runner: runners[agent.EstimateAgent]},
		{phase: PhaseCompiled, title: "Proposal draft", runner: runners[agent.CompileAgent]},
	}
	for _, s := range stages {
		if s.runner == nil {
			return nil, fmt.Errorf("assembler: no runner for %s phase", s.phase)
		}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Assembler{
		store:    store,
		ledger:   l,
		stages:   stages,
		defaults: defaults.merge(DefaultProposalDefaults()),
		log:      log.Named("assembly"),
		now:      time.Now,
	}, nil
}

// Assembly is the trace of one assembler run.
type Assembly struct {
	Proposal *models.Proposal
	// Phase is PhaseCompiled or PhaseAborted.
	Phase   Phase
	Results []agent.Result
}

// Degraded lists the agents whose results were completed from defaults.
func (a *Assembly) Degraded() []string {
	return degradedAgents(a.Results)
}

// Run assembles and persists a proposal. The only errors returned are
// invalid input and persistence failures; step failures produce a
// proposal flagged for review.
func (a *Assembler) Run(ctx context.Context, req models.RequirementInput) (*Assembly, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	id := uuid.New().String()
	log := a.log.With(zap.String("proposal", id), zap.String("project", req.ProjectName))
	log.Info("assembling proposal")

	asm := &Assembly{Phase: PhaseRequirements}
	var upstream []agent.Upstream
	var failed *agent.Result

	for _, st := range a.stages {
		res := st.runner.Run(ctx, agent.Input{
			SubjectID:    id,
			Requirements: req,
			Upstream:     upstream,
		})
		asm.Results = append(asm.Results, res)

		if res.Outcome == agent.Failed {
			failed = &res
			log.Warn("assembly aborted", zap.String("phase", string(st.phase)), zap.String("reason", res.Reason))
			break
		}
		upstream = append(upstream, agent.Upstream{Name: st.title, Result: res})
		asm.Phase = st.phase
	}

	now := a.now().UTC()
	var p *models.Proposal
	if failed != nil {
		asm.Phase = PhaseAborted
		p = a.fromDefaults(req, fmt.Sprintf("assembly aborted at %s: %s", failed.Agent, failed.Reason))
	} else {
		p = a.compile(req, asm.Results)
	}
	p.ID = id
	p.Status = models.ProposalPending
	p.Requirements = req
	p.SubmittedAt = now
	p.UpdatedAt = now
	asm.Proposal = p

	if err := a.store.CreateProposal(p); err != nil {
		return nil, fmt.Errorf("persist proposal: %w", err)
	}

	ectx := context.WithoutCancel(ctx)
	status, detail, result := a.summarize(asm)
	if err := a.ledger.Record(ectx, models.EventAssemblySummary, id, models.SystemActor, status, detail); err != nil {
		return nil, err
	}
	if err := a.ledger.Record(ectx, models.EventProposalCreated, id, models.SystemActor, models.EventInfo,
		fmt.Sprintf("proposal %q created (pending)", p.Title)); err != nil {
		return nil, err
	}
	metrics.RecordPipeline("assembly", result)

	log.Info("proposal assembled",
		zap.String("phase", string(asm.Phase)),
		zap.Bool("needs_review", p.NeedsReview),
		zap.Float64("estimated_value", p.EstimatedValue),
	)
	return asm, nil
}

func (a *Assembler) summarize(asm *Assembly) (models.EventStatus, string, string) {
	if asm.Phase == PhaseAborted {
		last := asm.Results[len(asm.Results)-1]
		return models.EventWarning,
			fmt.Sprintf("assembly aborted at %s; proposal built from defaults and flagged for review", last.Agent),
			"aborted"
	}
	if degraded := asm.Degraded(); len(degraded) > 0 {
		return models.EventWarning,
			fmt.Sprintf("assembly compiled with degraded steps: %s", strings.Join(degraded, ", ")),
			"degraded"
	}
	return models.EventSuccess, "assembly compiled from 4 steps", "completed"
}

// fromDefaults builds the review-flagged proposal used when a step fails.
func (a *Assembler) fromDefaults(req models.RequirementInput, reason string) *models.Proposal {
	d := a.defaults
	return &models.Proposal{
		Title:                 titleFor(d.Title, req),
		Description:           d.Description,
		ProblemUnderstanding:  d.ProblemUnderstanding,
		SolutionProposal:      d.SolutionProposal,
		Scope:                 d.Scope,
		TechnologiesSuggested: d.TechnologiesSuggested,
		EstimatedValue:        d.EstimatedValue,
		EstimatedTime:         d.EstimatedTime,
		TermsConditions:       d.TermsConditions,
		NeedsReview:           true,
		ReviewReason:          reason,
	}
}

// compile maps the four step records onto the proposal. Upstream records
// are authoritative for the fields they own; the compiler record supplies
// the narrative fields.
func (a *Assembler) compile(req models.RequirementInput, results []agent.Result) *models.Proposal {
	analysis := results[0].Record
	design := results[1].Record
	estimate := results[2].Record
	draft := results[3].Record
	d := a.defaults

	p := &models.Proposal{
		Title:                 titleFor(nonEmpty(draft.String("title"), d.Title), req),
		Description:           nonEmpty(draft.String("description"), d.Description),
		ProblemUnderstanding:  nonEmpty(analysis.String("summary"), d.ProblemUnderstanding),
		SolutionProposal:      nonEmpty(design.String("architecture_overview"), d.SolutionProposal),
		Scope:                 nonEmpty(draft.String("scope"), d.Scope),
		TechnologiesSuggested: nonEmpty(design.String("tech_stack"), draft.String("technologies_suggested"), d.TechnologiesSuggested),
		EstimatedTime:         nonEmpty(estimate.String("estimated_time"), draft.String("estimated_time"), d.EstimatedTime),
		TermsConditions:       nonEmpty(draft.String("terms_conditions"), d.TermsConditions),
		EstimatedValue:        a.estimatedValue(estimate, draft),
	}

	if degraded := degradedAgents(results); len(degraded) > 0 {
		p.NeedsReview = true
		p.ReviewReason = "completed from defaults: " + strings.Join(degraded, ", ")
	}
	return p
}

// estimatedValue normalizes the estimate's cost, falling back to the
// compiler's value and then to the configured default.
func (a *Assembler) estimatedValue(estimate, draft coerce.Record) float64 {
	for _, v := range []any{estimate.Values["estimated_cost"], draft.Values["estimated_value"]} {
		if v == nil {
			continue
		}
		n, ok := coerce.NormalizeCurrency(v)
		if !ok {
			a.log.Warn("unparsable estimated value", zap.Any("value", v))
			continue
		}
		if n > 0 {
			return n
		}
	}
	return a.defaults.EstimatedValue
}

func degradedAgents(results []agent.Result) []string {
	var ids []string
	for _, r := range results {
		if r.Outcome == agent.Degraded {
			ids = append(ids, r.Agent)
		}
	}
	return ids
}

func titleFor(title string, req models.RequirementInput) string {
	if title == DefaultProposalDefaults().Title && req.ProjectName != "" {
		return title + ": " + req.ProjectName
	}
	return title
}

func nonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
