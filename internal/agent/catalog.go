package agent

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ShayCichocki/forge/internal/coerce"
)

// Agent identifiers.
const (
	AnalysisAgent  = "ARA"
	DesignAgent    = "AAD"
	EstimateAgent  = "AGP"
	CompileAgent   = "ANP"
	ProvisionAgent = "AID-ENV"
	BackupAgent    = "AID-BACKUP"
	CodeAgent      = "ADEX"
	DocsAgent      = "ADO"
	QualityAgent   = "AQT"
	SecurityAgent  = "ASE"
)

// Defaults that other packages compare against.
const (
	// DefaultSolution is the design fallback for architecture_overview.
	DefaultSolution = "Solution design pending manual review."
	// DefaultAnalysis is the analysis fallback for summary.
	DefaultAnalysis = "Requirements analysis pending manual review."
	// DefaultEstimatedTime is the estimate fallback for estimated_time.
	DefaultEstimatedTime = "To be defined"
)

// ErrUnknownAgent is returned for an identifier not in the catalog.
var ErrUnknownAgent = errors.New("unknown agent")

// Spec defines an agent: what it is told and what it must return.
type Spec struct {
	ID     string
	Name   string
	System string
	Task   string
	Schema coerce.Schema
}

var catalog = []Spec{
	{
		ID:     AnalysisAgent,
		Name:   "requirements analysis",
		System: systemAnalysis,
		Task:   taskAnalysis,
		Schema: coerce.Schema{
			Name: "RequirementsAnalysis",
			Fields: []coerce.FieldSpec{
				{Name: "summary", Type: coerce.TypeString, Description: "Concise summary of the client requirements.", Default: DefaultAnalysis},
				{Name: "key_features", Type: coerce.TypeList, Description: "Main features identified."},
				{Name: "risks", Type: coerce.TypeList, Description: "Potential risks and challenges."},
				{Name: "estimated_effort", Type: coerce.TypeString, Description: "Initial effort or complexity estimate.", Default: "Unknown"},
			},
		},
	},
	{
		ID:     DesignAgent,
		Name:   "solution design",
		System: systemDesign,
		Task:   taskDesign,
		Schema: coerce.Schema{
			Name: "SolutionDesign",
			Fields: []coerce.FieldSpec{
				{Name: "architecture_overview", Type: coerce.TypeString, Description: "Overview of the proposed architecture.", Default: DefaultSolution},
				{Name: "tech_stack", Type: coerce.TypeList, Description: "Recommended languages, frameworks and databases."},
				{Name: "modules", Type: coerce.TypeList, Description: "Main modules and their responsibilities."},
				{Name: "diagram_description", Type: coerce.TypeString, Description: "Description for an architecture diagram.", Optional: true},
			},
		},
	},
	{
		ID:     EstimateAgent,
		Name:   "estimation",
		System: systemEstimate,
		Task:   taskEstimate,
		Schema: coerce.Schema{
			Name: "Estimate",
			Fields: []coerce.FieldSpec{
				{Name: "estimated_time", Type: coerce.TypeString, Description: "Total delivery time, e.g. '4 months'.", Default: DefaultEstimatedTime},
				{Name: "estimated_cost", Type: coerce.TypeCurrency, Description: "Total cost as a number, e.g. 50000.00."},
				{Name: "milestones", Type: coerce.TypeList, Description: "Milestones with their deadlines."},
				{Name: "resource_needs", Type: coerce.TypeList, Description: "People and tools required."},
			},
		},
	},
	{
		ID:     CompileAgent,
		Name:   "proposal compilation",
		System: systemCompile,
		Task:   taskCompile,
		Schema: coerce.Schema{
			Name: "ProposalContent",
			Fields: []coerce.FieldSpec{
				{Name: "title", Type: coerce.TypeString, Description: "Proposal title.", Default: "Commercial proposal"},
				{Name: "description", Type: coerce.TypeString, Description: "General description of the proposal."},
				{Name: "problem_understanding", Type: coerce.TypeString, Description: "Understanding of the business problem."},
				{Name: "solution_proposal", Type: coerce.TypeString, Description: "Detailed proposed solution.", Default: DefaultSolution},
				{Name: "scope", Type: coerce.TypeString, Description: "Project scope."},
				{Name: "technologies_suggested", Type: coerce.TypeList, Description: "Suggested technologies."},
				{Name: "estimated_value", Type: coerce.TypeCurrency, Description: "Estimated value as a number."},
				{Name: "estimated_time", Type: coerce.TypeString, Description: "Estimated delivery time.", Default: DefaultEstimatedTime},
				{Name: "terms_conditions", Type: coerce.TypeString, Description: "General terms and conditions."},
			},
		},
	},
	{
		ID:     ProvisionAgent,
		Name:   "environment provisioning",
		System: systemProvision,
		Task:   taskProvision,
		Schema: coerce.Schema{
			Name: "ProvisioningPlan",
			Fields: []coerce.FieldSpec{
				{Name: "overall_status", Type: coerce.TypeString, Description: "Operational, Degraded or Critical.", Default: "Pending"},
				{Name: "plan", Type: coerce.TypeString, Description: "Provisioning steps."},
				{Name: "resources", Type: coerce.TypeList, Description: "Resources created."},
				{Name: "alerts", Type: coerce.TypeList, Description: "Infrastructure alerts.", Optional: true},
			},
		},
	},
	{
		ID:     BackupAgent,
		Name:   "backup configuration",
		System: systemBackups,
		Task:   taskBackups,
		Schema: coerce.Schema{
			Name: "BackupPolicy",
			Fields: []coerce.FieldSpec{
				{Name: "policy", Type: coerce.TypeString, Description: "Backup policy summary.", Default: "Daily backups, 7 day retention, data and code."},
				{Name: "frequency", Type: coerce.TypeString, Description: "How often backups run.", Default: "daily"},
				{Name: "retention", Type: coerce.TypeString, Description: "How long backups are kept.", Default: "7 days"},
				{Name: "last_backup_status", Type: coerce.TypeString, Description: "Status of the most recent backup.", Default: "Unknown"},
			},
		},
	},
	{
		ID:     CodeAgent,
		Name:   "code generation",
		System: systemCode,
		Task:   taskCode,
		Schema: coerce.Schema{
			Name: "GeneratedCode",
			Fields: []coerce.FieldSpec{
				{Name: "filename", Type: coerce.TypeString, Description: "File name, e.g. 'main.py'.", Default: "main.py"},
				{Name: "language", Type: coerce.TypeString, Description: "Programming language.", Default: "Python"},
				{Name: "content", Type: coerce.TypeString, Description: "Full source code."},
				{Name: "description", Type: coerce.TypeString, Description: "Purpose of the code."},
			},
		},
	},
	{
		ID:     DocsAgent,
		Name:   "documentation",
		System: systemDocs,
		Task:   taskDocs,
		Schema: coerce.Schema{
			Name: "Documentation",
			Fields: []coerce.FieldSpec{
				{Name: "filename", Type: coerce.TypeString, Description: "Document file name, e.g. 'README.md'.", Default: "README.md"},
				{Name: "document_type", Type: coerce.TypeString, Description: "Kind of document.", Default: "Technical documentation"},
				{Name: "version", Type: coerce.TypeString, Description: "Document version.", Default: "1.0"},
				{Name: "content", Type: coerce.TypeString, Description: "Full document in Markdown."},
			},
		},
	},
	{
		ID:     QualityAgent,
		Name:   "quality report",
		System: systemQuality,
		Task:   taskQuality,
		Schema: coerce.Schema{
			Name: "QualityReport",
			Fields: []coerce.FieldSpec{
				{Name: "overall_status", Type: coerce.TypeString, Description: "Passed, Failed or Warning.", Default: "Unknown"},
				{Name: "total_tests", Type: coerce.TypeNumber, Description: "Number of tests."},
				{Name: "passed_tests", Type: coerce.TypeNumber, Description: "Number of passing tests."},
				{Name: "failed_tests", Type: coerce.TypeNumber, Description: "Number of failing tests."},
				{Name: "recommendations", Type: coerce.TypeList, Description: "Quality recommendations."},
			},
		},
	},
	{
		ID:     SecurityAgent,
		Name:   "security report",
		System: systemSecurity,
		Task:   taskSecurity,
		Schema: coerce.Schema{
			Name: "SecurityReport",
			Fields: []coerce.FieldSpec{
				{Name: "overall_security_status", Type: coerce.TypeString, Description: "Secure, Vulnerable or Warning.", Default: "Unknown"},
				{Name: "vulnerabilities_found", Type: coerce.TypeNumber, Description: "Number of vulnerabilities."},
				{Name: "risk_level", Type: coerce.TypeString, Description: "Low, Medium, High or Critical.", Default: "Unknown"},
				{Name: "security_score", Type: coerce.TypeNumber, Description: "Score from 0 to 100."},
				{Name: "recommendations", Type: coerce.TypeList, Description: "Security recommendations."},
			},
		},
	},
}

// Catalog returns every agent definition in pipeline order.
func Catalog() []Spec {
	out := make([]Spec, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup returns the definition for id.
func Lookup(id string) (Spec, bool) {
	for _, s := range catalog {
		if s.ID == id {
			return s, true
		}
	}
	return Spec{}, false
}

// Factory builds steps that share a client, coercer and ledger.
type Factory struct {
	Client  Invoker
	Coercer *coerce.Coercer
	Events  EventSink
	Models  *ModelSelector
	Logger  *zap.Logger
}

// Step builds the step for agent id.
func (f *Factory) Step(id string) (*Step, error) {
	spec, ok := Lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAgent, id)
	}
	return f.StepFor(spec), nil
}

// StepFor builds a step from an explicit definition.
func (f *Factory) StepFor(spec Spec) *Step {
	log := f.Logger
	if log == nil {
		log = zap.NewNop()
	}
	coercer := f.Coercer
	if coercer == nil {
		coercer = coerce.New(log)
	}
	return &Step{
		spec:    spec,
		model:   f.Models.SelectModel(spec.ID),
		client:  f.Client,
		coercer: coercer,
		events:  f.Events,
		log:     log.Named("agent"),
	}
}

// Runners builds a step for every catalog agent keyed by id.
func (f *Factory) Runners() map[string]Runner {
	out := make(map[string]Runner, len(catalog))
	for _, spec := range catalog {
		out[spec.ID] = f.StepFor(spec)
	}
	return out
}
