// Package agent runs the specialist steps of the forge pipelines. A step
// sends one prompt to the generative service, coerces the reply into its
// schema and reports a tagged Result. Steps never return errors: every
// failure is folded into a Failed result and a ledger event.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ShayCichocki/forge/internal/api"
	"github.com/ShayCichocki/forge/internal/coerce"
	"github.com/ShayCichocki/forge/internal/metrics"
	"github.com/ShayCichocki/forge/pkg/models"
)

// Outcome is the tag of a step Result.
type Outcome int

const (
	// Success means the reply validated against the schema.
	Success Outcome = iota
	// Degraded means the record was completed from schema defaults.
	Degraded
	// Failed means no usable record was produced.
	Failed
)

// String returns the lower-case outcome name.
func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Degraded:
		return "degraded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// EventStatus maps the outcome onto a ledger status.
func (o Outcome) EventStatus() models.EventStatus {
	switch o {
	case Success:
		return models.EventSuccess
	case Degraded:
		return models.EventWarning
	default:
		return models.EventError
	}
}

// Result is the tagged outcome of one step run. Record is empty when the
// outcome is Failed.
type Result struct {
	Agent   string
	Outcome Outcome
	Record  coerce.Record
	Reason  string
	Elapsed time.Duration
}

// Usable reports whether the record may be passed to later steps.
func (r Result) Usable() bool {
	return r.Outcome != Failed
}

// Invoker is the generative call a step depends on. *api.Client
// implements it.
type Invoker interface {
	Invoke(ctx context.Context, p api.Prompt, schema coerce.Schema, modelOverride string) (string, error)
}

// EventSink receives the one event each run emits. *ledger.Ledger
// implements it.
type EventSink interface {
	Record(ctx context.Context, typ models.EventType, subjectID, actor string, status models.EventStatus, detail string) error
}

// Upstream is a record produced by an earlier step.
type Upstream struct {
	Name   string
	Result Result
}

// Input is everything a step sees.
type Input struct {
	// SubjectID is the proposal or project the ledger event is filed under.
	SubjectID    string
	Requirements models.RequirementInput
	// Upstream holds earlier results in pipeline order. Failed results
	// are skipped when the prompt is built.
	Upstream []Upstream
	// Context adds labelled lines after the requirements.
	Context []models.Field
}

// Runner is the seam the orchestrators call steps through.
type Runner interface {
	ID() string
	Run(ctx context.Context, in Input) Result
}

// Step is one configured agent.
type Step struct {
	spec    Spec
	model   string
	client  Invoker
	coercer *coerce.Coercer
	events  EventSink
	log     *zap.Logger
}

var _ Runner = (*Step)(nil)

// ID returns the agent identifier.
func (s *Step) ID() string {
	return s.spec.ID
}

// Run executes the step. It always returns a Result and always emits
// exactly one agent_step event.
func (s *Step) Run(ctx context.Context, in Input) (res Result) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("agent step panicked", zap.String("agent", s.spec.ID), zap.Any("panic", r))
			res = Result{Outcome: Failed, Reason: fmt.Sprintf("panic: %v", r)}
		}
		res.Agent = s.spec.ID
		res.Elapsed = time.Since(start)
		metrics.RecordStep(s.spec.ID, res.Outcome.String())
		s.emit(ctx, in.SubjectID, res)
	}()

	prompt := api.Prompt{
		Agent:  s.spec.ID,
		System: s.spec.System,
		User:   BuildPrompt(s.spec.Task, in),
	}

	raw, err := s.client.Invoke(ctx, prompt, s.spec.Schema, s.model)
	if err != nil {
		return Result{Outcome: Failed, Reason: failureReason(err)}
	}

	rec := s.coercer.Coerce(raw, s.spec.Schema)
	if rec.Degraded {
		return Result{Outcome: Degraded, Record: rec, Reason: rec.Reason}
	}
	return Result{Outcome: Success, Record: rec}
}

func (s *Step) emit(ctx context.Context, subjectID string, res Result) {
	detail := fmt.Sprintf("%s %s", s.spec.Name, res.Outcome)
	if res.Reason != "" {
		detail += ": " + res.Reason
	}

	// The event outlives a cancelled run.
	err := s.events.Record(context.WithoutCancel(ctx), models.EventAgentStep, subjectID, s.spec.ID, res.Outcome.EventStatus(), detail)
	if err != nil {
		s.log.Error("failed to record agent step", zap.String("agent", s.spec.ID), zap.Error(err))
	}

	fields := []zap.Field{
		zap.String("agent", s.spec.ID),
		zap.String("subject", subjectID),
		zap.String("outcome", res.Outcome.String()),
		zap.Duration("elapsed", res.Elapsed),
	}
	switch res.Outcome {
	case Success:
		s.log.Info("agent step completed", fields...)
	case Degraded:
		s.log.Warn("agent step degraded", append(fields, zap.String("reason", res.Reason))...)
	default:
		s.log.Error("agent step failed", append(fields, zap.String("reason", res.Reason))...)
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, api.ErrConnectivity):
		return "generative service unreachable: " + err.Error()
	case errors.Is(err, api.ErrGeneration):
		return "generative service returned no usable payload: " + err.Error()
	default:
		return err.Error()
	}
}

// BuildPrompt renders the user prompt: task text, requirements, extra
// context lines and every usable upstream record as JSON.
func BuildPrompt(task string, in Input) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(task))

	if fields := in.Requirements.Fields(); len(fields) > 0 {
		b.WriteString("\n\n## Client requirements\n")
		for _, f := range fields {
			fmt.Fprintf(&b, "- %s: %s\n", f.Label, f.Value)
		}
	}

	if len(in.Context) > 0 {
		b.WriteString("\n## Context\n")
		for _, f := range in.Context {
			if strings.TrimSpace(f.Value) == "" {
				continue
			}
			fmt.Fprintf(&b, "- %s: %s\n", f.Label, f.Value)
		}
	}

	for _, up := range in.Upstream {
		if !up.Result.Usable() {
			continue
		}
		fmt.Fprintf(&b, "\n## %s", up.Name)
		if up.Result.Outcome == Degraded {
			b.WriteString(" (partially filled with defaults)")
		}
		b.WriteString("\n")
		data, err := json.MarshalIndent(up.Result.Record.Values, "", "  ")
		if err != nil {
			continue
		}
		b.Write(data)
		b.WriteString("\n")
	}

	return b.String()
}
