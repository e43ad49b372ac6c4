package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ShayCichocki/forge/internal/api"
	"github.com/ShayCichocki/forge/internal/coerce"
	"github.com/ShayCichocki/forge/pkg/models"
)

type recordedEvent struct {
	typ     models.EventType
	subject string
	actor   string
	status  models.EventStatus
	detail  string
}

type memorySink struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (m *memorySink) Record(_ context.Context, typ models.EventType, subjectID, actor string, status models.EventStatus, detail string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, recordedEvent{typ, subjectID, actor, status, detail})
	return nil
}

type invokerFunc func(ctx context.Context, p api.Prompt, schema coerce.Schema, model string) (string, error)

func (f invokerFunc) Invoke(ctx context.Context, p api.Prompt, schema coerce.Schema, model string) (string, error) {
	return f(ctx, p, schema, model)
}

func newFactory(t *testing.T, inv Invoker, sink EventSink) *Factory {
	t.Helper()
	log := zaptest.NewLogger(t)
	return &Factory{
		Client:  inv,
		Coercer: coerce.New(log),
		Events:  sink,
		Logger:  log,
	}
}

func reply(text string) Invoker {
	return invokerFunc(func(context.Context, api.Prompt, coerce.Schema, string) (string, error) {
		return text, nil
	})
}

var acme = models.RequirementInput{ProjectName: "Acme CRM", ClientName: "Acme", Problem: "manual tracking"}

func TestStep_Success(t *testing.T) {
	sink := &memorySink{}
	f := newFactory(t, reply(`{"summary":"CRM for Acme","key_features":["contacts","deals"],"risks":[],"estimated_effort":"medium"}`), sink)
	step, err := f.Step(AnalysisAgent)
	require.NoError(t, err)

	res := step.Run(context.Background(), Input{SubjectID: "p1", Requirements: acme})

	assert.Equal(t, Success, res.Outcome)
	assert.Equal(t, AnalysisAgent, res.Agent)
	assert.Equal(t, "CRM for Acme", res.Record.String("summary"))
	assert.Equal(t, "contacts, deals", res.Record.String("key_features"))
	assert.False(t, res.Record.Degraded)

	require.Len(t, sink.events, 1)
	assert.Equal(t, models.EventAgentStep, sink.events[0].typ)
	assert.Equal(t, "p1", sink.events[0].subject)
	assert.Equal(t, AnalysisAgent, sink.events[0].actor)
	assert.Equal(t, models.EventSuccess, sink.events[0].status)
}

func TestStep_Degraded(t *testing.T) {
	sink := &memorySink{}
	f := newFactory(t, reply("I could not come up with a design."), sink)
	step, err := f.Step(DesignAgent)
	require.NoError(t, err)

	res := step.Run(context.Background(), Input{SubjectID: "p1", Requirements: acme})

	assert.Equal(t, Degraded, res.Outcome)
	assert.True(t, res.Usable())
	assert.Equal(t, DefaultSolution, res.Record.String("architecture_overview"))
	assert.NotEmpty(t, res.Reason)

	require.Len(t, sink.events, 1)
	assert.Equal(t, models.EventWarning, sink.events[0].status)
	assert.Contains(t, sink.events[0].detail, "degraded")
}

func TestStep_FailedOnClientError(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"connectivity", api.ErrConnectivity},
		{"generation", api.ErrGeneration},
		{"unexpected", errors.New("boom")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &memorySink{}
			inv := invokerFunc(func(context.Context, api.Prompt, coerce.Schema, string) (string, error) {
				return "", tt.err
			})
			step, err := newFactory(t, inv, sink).Step(EstimateAgent)
			require.NoError(t, err)

			res := step.Run(context.Background(), Input{SubjectID: "p1"})

			assert.Equal(t, Failed, res.Outcome)
			assert.False(t, res.Usable())
			assert.Contains(t, res.Reason, tt.err.Error())
			require.Len(t, sink.events, 1)
			assert.Equal(t, models.EventError, sink.events[0].status)
		})
	}
}

func TestStep_PanicBecomesFailed(t *testing.T) {
	sink := &memorySink{}
	inv := invokerFunc(func(context.Context, api.Prompt, coerce.Schema, string) (string, error) {
		panic("backend exploded")
	})
	step, err := newFactory(t, inv, sink).Step(CompileAgent)
	require.NoError(t, err)

	res := step.Run(context.Background(), Input{SubjectID: "p1"})

	assert.Equal(t, Failed, res.Outcome)
	assert.Contains(t, res.Reason, "backend exploded")
	assert.Equal(t, CompileAgent, res.Agent)
	require.Len(t, sink.events, 1)
	assert.Equal(t, models.EventError, sink.events[0].status)
}

func TestStep_UsesSchemaAndModel(t *testing.T) {
	var gotSchema coerce.Schema
	var gotModel string
	var gotPrompt api.Prompt
	inv := invokerFunc(func(_ context.Context, p api.Prompt, schema coerce.Schema, model string) (string, error) {
		gotPrompt, gotSchema, gotModel = p, schema, model
		return "{}", nil
	})
	f := newFactory(t, inv, &memorySink{})
	f.Models = NewModelSelector(map[string]string{"aad": "big-model"})

	step, err := f.Step(DesignAgent)
	require.NoError(t, err)
	step.Run(context.Background(), Input{SubjectID: "p1", Requirements: acme})

	assert.Equal(t, "SolutionDesign", gotSchema.Name)
	assert.Equal(t, "big-model", gotModel)
	assert.Equal(t, DesignAgent, gotPrompt.Agent)
	assert.Equal(t, systemDesign, gotPrompt.System)
	assert.Contains(t, gotPrompt.User, "Acme CRM")
}

func TestStep_ThroughClient(t *testing.T) {
	backend := &api.ScriptedBackend{Replies: map[string]string{
		AnalysisAgent: `Here you go: {"summary":"ok","key_features":"a; b","risks":["r"],"estimated_effort":"low"} thanks`,
	}}
	log := zaptest.NewLogger(t)
	client := api.NewClient(context.Background(), backend, api.ClientConfig{}, log)
	sink := &memorySink{}

	step, err := (&Factory{Client: client, Events: sink, Logger: log}).Step(AnalysisAgent)
	require.NoError(t, err)

	res := step.Run(context.Background(), Input{SubjectID: "p1", Requirements: acme})
	assert.Equal(t, Success, res.Outcome)
	assert.Equal(t, "a, b", res.Record.String("key_features"))

	calls := backend.AgentCalls(AnalysisAgent)
	require.Len(t, calls, 1)
	assert.True(t, calls[0].JSON)
}

func TestBuildPrompt(t *testing.T) {
	analysis := Result{Outcome: Success, Record: coerce.Record{Values: map[string]any{"summary": "needs a CRM"}}}
	design := Result{Outcome: Degraded, Record: coerce.Record{Values: map[string]any{"architecture_overview": DefaultSolution}, Degraded: true}}
	failed := Result{Outcome: Failed, Reason: "offline"}

	prompt := BuildPrompt("Do the thing.", Input{
		Requirements: acme,
		Upstream: []Upstream{
			{Name: "Requirements analysis", Result: analysis},
			{Name: "Solution design", Result: design},
			{Name: "Estimate", Result: failed},
		},
		Context: []models.Field{{Label: "Brief", Value: "initial setup"}, {Label: "Empty", Value: " "}},
	})

	assert.True(t, strings.HasPrefix(prompt, "Do the thing."))
	assert.Contains(t, prompt, "- Project: Acme CRM")
	assert.Contains(t, prompt, "- Brief: initial setup")
	assert.NotContains(t, prompt, "Empty")
	assert.Contains(t, prompt, `"summary": "needs a CRM"`)
	assert.Contains(t, prompt, "## Solution design (partially filled with defaults)")
	assert.NotContains(t, prompt, "## Estimate")
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "success", Success.String())
	assert.Equal(t, "degraded", Degraded.String())
	assert.Equal(t, "failed", Failed.String())
	assert.Equal(t, models.EventSuccess, Success.EventStatus())
	assert.Equal(t, models.EventWarning, Degraded.EventStatus())
	assert.Equal(t, models.EventError, Failed.EventStatus())
}
