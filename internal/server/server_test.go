package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ShayCichocki/forge/internal/agent"
	"github.com/ShayCichocki/forge/internal/api"
	"github.com/ShayCichocki/forge/internal/coerce"
	"github.com/ShayCichocki/forge/internal/control"
	"github.com/ShayCichocki/forge/internal/ledger"
	"github.com/ShayCichocki/forge/internal/orchestrator"
	"github.com/ShayCichocki/forge/internal/state"
	"github.com/ShayCichocki/forge/pkg/models"
)

var replies = map[string]string{
	agent.AnalysisAgent:  `{"summary":"Acme tracks leads by hand","key_features":["leads"],"risks":[],"estimated_effort":"low"}`,
	agent.DesignAgent:    `{"architecture_overview":"Single web service","tech_stack":["Go"],"modules":["leads"]}`,
	agent.EstimateAgent:  `{"estimated_time":"6 weeks","estimated_cost":"$ 8,000.00","milestones":["beta"],"resource_needs":["1 developer"]}`,
	agent.CompileAgent:   `{"title":"Lead tracker","description":"d","problem_understanding":"p","solution_proposal":"s","scope":"leads","technologies_suggested":["Go"],"estimated_value":8000,"estimated_time":"6 weeks","terms_conditions":"t"}`,
	agent.ProvisionAgent: `{"overall_status":"Operational","plan":"repo","resources":["repo"]}`,
	agent.BackupAgent:    `{"policy":"daily","frequency":"daily","retention":"7 days","last_backup_status":"Success"}`,
	agent.CodeAgent:      `{"filename":"main.go","language":"Go","content":"package main","description":"entry"}`,
	agent.DocsAgent:      `{"filename":"README.md","document_type":"Guide","version":"1.0","content":"# Leads"}`,
	agent.QualityAgent:   `{"overall_status":"Passed","total_tests":3,"passed_tests":3,"failed_tests":0,"recommendations":[]}`,
	agent.SecurityAgent:  `{"overall_security_status":"Secure","vulnerabilities_found":0,"risk_level":"Low","security_score":90,"recommendations":[]}`,
}

type testServer struct {
	*httptest.Server
	backend *api.ScriptedBackend
	signals *control.Signals
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := zaptest.NewLogger(t)

	db, err := state.Open(filepath.Join(t.TempDir(), "forge.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })

	backend := &api.ScriptedBackend{Replies: replies}
	client := api.NewClient(context.Background(), backend, api.ClientConfig{}, log)
	l := ledger.New(db, log)
	factory := &agent.Factory{Client: client, Coercer: coerce.New(log), Events: l, Logger: log}

	signals, err := control.NewSignals(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(signals.Close)

	f, err := orchestrator.New(orchestrator.RequiredConfig{Store: db, Ledger: l, Runners: factory.Runners()},
		orchestrator.WithLogger(log), orchestrator.WithSignals(signals))
	require.NoError(t, err)

	handler, err := New(Config{Forge: f, Signals: signals, Logger: log})
	require.NoError(t, err)

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, backend: backend, signals: signals}
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader = bytes.NewReader(nil)
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), string(data))
	return v
}

type errorEnvelope struct {
	Error apiErrorBody `json:"error"`
}

func submitProposal(t *testing.T, srv *testServer) models.Proposal {
	t.Helper()
	res, data := doJSON(t, http.MethodPost, srv.URL+"/v1/proposals", map[string]any{
		"project_name": "Lead tracker",
		"client_name":  "Acme",
		"problem":      "leads are tracked by hand",
	})
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	return decode[models.Proposal](t, data)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	res, data := doJSON(t, http.MethodGet, srv.URL+"/v1/health", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "ok", decode[map[string]string](t, data)["status"])
}

func TestProposalLifecycle(t *testing.T) {
	srv := newTestServer(t)

	p := submitProposal(t, srv)
	assert.Equal(t, "Lead tracker", p.Title)
	assert.Equal(t, models.ProposalPending, p.Status)
	assert.InDelta(t, 8000.0, p.EstimatedValue, 0.001)

	res, data := doJSON(t, http.MethodGet, srv.URL+"/v1/proposals?status=pending", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Len(t, decode[listProposals](t, data).Items, 1)

	res, data = doJSON(t, http.MethodPatch, srv.URL+"/v1/proposals/"+p.ID, map[string]any{"estimated_value": "R$ 9.500,00"})
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	assert.InDelta(t, 9500.0, decode[models.Proposal](t, data).EstimatedValue, 0.001)

	res, data = doJSON(t, http.MethodPost, srv.URL+"/v1/proposals/"+p.ID+"/approve", nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	project := decode[models.Project](t, data)
	assert.Equal(t, models.ProjectActive, project.Status)
	assert.Equal(t, orchestrator.DefaultCheckpoint, project.Progress)

	res, data = doJSON(t, http.MethodPost, srv.URL+"/v1/proposals/"+p.ID+"/approve", nil)
	require.Equal(t, http.StatusConflict, res.StatusCode)
	assert.Equal(t, "invalid_transition", decode[errorEnvelope](t, data).Error.Code)

	res, data = doJSON(t, http.MethodGet, srv.URL+"/v1/projects/"+project.ID+"/artifacts", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	artifacts := decode[orchestrator.ProjectArtifacts](t, data)
	require.Len(t, artifacts.Code, 1)
	assert.Equal(t, "main.go", artifacts.Code[0].Filename)

	res, data = doJSON(t, http.MethodPost, srv.URL+"/v1/projects/"+project.ID+"/reports", map[string]any{"kind": "security"})
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	assert.Equal(t, models.ReportSecurity, decode[models.Report](t, data).Kind)

	res, data = doJSON(t, http.MethodPost, srv.URL+"/v1/projects/"+project.ID+"/docs", map[string]any{})
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	assert.Equal(t, "README.md", decode[models.Documentation](t, data).Filename)

	res, data = doJSON(t, http.MethodPost, srv.URL+"/v1/projects/"+project.ID+"/code", map[string]any{"description": "lead import", "filename": "import.go"})
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	assert.Equal(t, "import.go", decode[models.GeneratedCode](t, data).Filename)

	res, data = doJSON(t, http.MethodDelete, srv.URL+"/v1/proposals/"+p.ID, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	deleted := decode[DeleteResponse](t, data)
	assert.Equal(t, project.ID, deleted.ProjectID)
	assert.Equal(t, int64(2), deleted.Code)

	res, _ = doJSON(t, http.MethodGet, srv.URL+"/v1/projects/"+project.ID, nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestErrorEnvelope(t *testing.T) {
	srv := newTestServer(t)

	res, data := doJSON(t, http.MethodGet, srv.URL+"/v1/proposals/missing", nil)
	require.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.Equal(t, "not_found", decode[errorEnvelope](t, data).Error.Code)

	res, data = doJSON(t, http.MethodPost, srv.URL+"/v1/proposals", map[string]any{"project_name": "  "})
	require.Equal(t, http.StatusBadRequest, res.StatusCode, string(data))
	assert.Equal(t, "bad_request", decode[errorEnvelope](t, data).Error.Code)

	p := submitProposal(t, srv)
	res, _ = doJSON(t, http.MethodPost, srv.URL+"/v1/proposals/"+p.ID+"/reject", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	res, data = doJSON(t, http.MethodPatch, srv.URL+"/v1/proposals/"+p.ID, map[string]any{"title": "late"})
	require.Equal(t, http.StatusConflict, res.StatusCode)
	assert.Equal(t, "invalid_transition", decode[errorEnvelope](t, data).Error.Code)

	res, _ = doJSON(t, http.MethodGet, srv.URL+"/v1/events?cursor=abc", nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestEventsPagination(t *testing.T) {
	srv := newTestServer(t)
	p := submitProposal(t, srv)

	res, data := doJSON(t, http.MethodGet, srv.URL+"/v1/events?subject_id="+p.ID+"&limit=4", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	page := decode[paginatedEvents](t, data)
	require.Len(t, page.Items, 4)
	require.NotEmpty(t, page.NextCursor)

	res, data = doJSON(t, http.MethodGet, srv.URL+"/v1/events?subject_id="+p.ID+"&limit=4&cursor="+page.NextCursor, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	rest := decode[paginatedEvents](t, data)
	require.Len(t, rest.Items, 2)
	assert.Empty(t, rest.NextCursor)
	assert.Greater(t, rest.Items[0].Seq, page.Items[3].Seq)
	assert.Equal(t, models.EventProposalCreated, rest.Items[1].Type)

	res, data = doJSON(t, http.MethodGet, srv.URL+"/v1/events?type=assembly_summary", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Len(t, decode[paginatedEvents](t, data).Items, 1)
}

func TestSummaryAndMetrics(t *testing.T) {
	srv := newTestServer(t)
	submitProposal(t, srv)

	res, data := doJSON(t, http.MethodGet, srv.URL+"/v1/summary", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	s := decode[orchestrator.Summary](t, data)
	assert.Equal(t, 1, s.TotalProposals)
	assert.Equal(t, 1, s.PendingProposals)

	res, data = doJSON(t, http.MethodGet, srv.URL+"/metrics", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, string(data), "forge_agent_step_outcomes_total")
}

func TestHaltEndpoint(t *testing.T) {
	srv := newTestServer(t)
	p := submitProposal(t, srv)

	res, _ := doJSON(t, http.MethodPost, srv.URL+"/v1/control/halt", nil)
	require.Equal(t, http.StatusAccepted, res.StatusCode)
	assert.True(t, srv.signals.Halted())

	res, data := doJSON(t, http.MethodPost, srv.URL+"/v1/proposals/"+p.ID+"/approve", nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	assert.Equal(t, models.ProjectOnHold, decode[models.Project](t, data).Status)
	assert.Empty(t, srv.backend.AgentCalls(agent.ProvisionAgent))

	res, _ = doJSON(t, http.MethodDelete, srv.URL+"/v1/control/halt", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.False(t, srv.signals.Halted())
}
