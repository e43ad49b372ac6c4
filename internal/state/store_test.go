package state

import (
	"errors"
	"testing"
	"time"

	"github.com/ShayCichocki/forge/pkg/models"
)

func newProposal(id string) *models.Proposal {
	now := time.Now().UTC()
	return &models.Proposal{
		ID:     id,
		Status: models.ProposalPending,
		Requirements: models.RequirementInput{
			ProjectName: "Shop",
			ClientName:  "Acme",
			Extra:       map[string]string{"deadline": "Q3"},
		},
		Title:                 "Proposal for Shop",
		Description:           "Online store",
		ProblemUnderstanding:  "No online channel",
		SolutionProposal:      "Web storefront",
		Scope:                 "Catalog, checkout",
		TechnologiesSuggested: "Go, Postgres",
		EstimatedValue:        1234.56,
		EstimatedTime:         "8 weeks",
		TermsConditions:       "50% upfront",
		SubmittedAt:           now,
		UpdatedAt:             now,
	}
}

func newProject(id, proposalID string) *models.Project {
	now := time.Now().UTC()
	return &models.Project{
		ID:         id,
		ProposalID: proposalID,
		Name:       "Shop",
		ClientName: "Acme",
		Status:     models.ProjectActive,
		StartedAt:  now,
		UpdatedAt:  now,
	}
}

func TestProposalCRUD(t *testing.T) {
	db := setupTestDB(t)

	p := newProposal("prop-1")
	if err := db.CreateProposal(p); err != nil {
		t.Fatalf("CreateProposal failed: %v", err)
	}

	got, err := db.GetProposal("prop-1")
	if err != nil {
		t.Fatalf("GetProposal failed: %v", err)
	}
	if got.Title != p.Title || got.EstimatedValue != p.EstimatedValue {
		t.Errorf("GetProposal = %+v, want %+v", got, p)
	}
	if got.Requirements.Extra["deadline"] != "Q3" {
		t.Errorf("requirements not round-tripped: %+v", got.Requirements)
	}
	if got.ProjectID != "" {
		t.Errorf("ProjectID = %q, want empty", got.ProjectID)
	}

	decided := time.Now().UTC()
	got.Status = models.ProposalApproved
	got.DecidedAt = &decided
	got.NeedsReview = true
	got.ReviewReason = "manual check"
	if err := db.UpdateProposal(got); err != nil {
		t.Fatalf("UpdateProposal failed: %v", err)
	}

	updated, err := db.GetProposal("prop-1")
	if err != nil {
		t.Fatalf("GetProposal failed: %v", err)
	}
	if updated.Status != models.ProposalApproved || updated.DecidedAt == nil || !updated.NeedsReview {
		t.Errorf("update not persisted: %+v", updated)
	}

	approved := models.ProposalApproved
	list, err := db.ListProposals(&approved)
	if err != nil {
		t.Fatalf("ListProposals failed: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("ListProposals(approved) returned %d, want 1", len(list))
	}
}

func TestGetProposal_NotFound(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.GetProposal("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetProposal(missing) error = %v, want ErrNotFound", err)
	}

	err = db.UpdateProposal(newProposal("missing"))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateProposal(missing) error = %v, want ErrNotFound", err)
	}
}

func TestProjectCRUD(t *testing.T) {
	db := setupTestDB(t)

	if err := db.CreateProposal(newProposal("prop-1")); err != nil {
		t.Fatalf("CreateProposal failed: %v", err)
	}
	proj := newProject("proj-1", "prop-1")
	if err := db.CreateProject(proj); err != nil {
		t.Fatalf("CreateProject failed: %v", err)
	}

	// A proposal spawns at most one project.
	if err := db.CreateProject(newProject("proj-2", "prop-1")); err == nil {
		t.Error("expected error creating a second project for the same proposal")
	}

	byProposal, err := db.GetProjectByProposal("prop-1")
	if err != nil {
		t.Fatalf("GetProjectByProposal failed: %v", err)
	}
	if byProposal.ID != "proj-1" {
		t.Errorf("GetProjectByProposal = %s, want proj-1", byProposal.ID)
	}

	prop, err := db.GetProposal("prop-1")
	if err != nil {
		t.Fatalf("GetProposal failed: %v", err)
	}
	if prop.ProjectID != "proj-1" {
		t.Errorf("proposal ProjectID = %q, want proj-1", prop.ProjectID)
	}

	proj.Status = models.ProjectOnHold
	proj.Progress = 250
	if err := db.UpdateProject(proj); err != nil {
		t.Fatalf("UpdateProject failed: %v", err)
	}
	got, err := db.GetProject("proj-1")
	if err != nil {
		t.Fatalf("GetProject failed: %v", err)
	}
	if got.Status != models.ProjectOnHold {
		t.Errorf("Status = %q, want %q", got.Status, models.ProjectOnHold)
	}
	if got.Progress != 100 {
		t.Errorf("Progress = %d, want clamped 100", got.Progress)
	}

	if _, err := db.GetProject("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetProject(missing) error = %v, want ErrNotFound", err)
	}
}

func TestArtifacts(t *testing.T) {
	db := setupTestDB(t)
	if err := db.CreateProposal(newProposal("prop-1")); err != nil {
		t.Fatal(err)
	}
	if err := db.CreateProject(newProject("proj-1", "prop-1")); err != nil {
		t.Fatal(err)
	}
	now := time.Now().UTC()

	if err := db.SaveGeneratedCode(&models.GeneratedCode{
		ID: "code-1", ProjectID: "proj-1", Filename: "main.go", Language: "go", Content: "package main", GeneratedAt: now,
	}); err != nil {
		t.Fatalf("SaveGeneratedCode failed: %v", err)
	}
	if err := db.SaveReport(&models.Report{
		ID: "rep-1", ProjectID: "proj-1", Kind: models.ReportSecurity,
		Data: map[string]any{"overall_risk": "low"}, GeneratedAt: now,
	}); err != nil {
		t.Fatalf("SaveReport failed: %v", err)
	}
	if err := db.SaveDocumentation(&models.Documentation{
		ID: "doc-1", ProjectID: "proj-1", Filename: "README.md", DocumentType: "readme", Version: "1.0", Content: "# Shop", UpdatedAt: now,
	}); err != nil {
		t.Fatalf("SaveDocumentation failed: %v", err)
	}

	code, err := db.ListGeneratedCode("proj-1")
	if err != nil || len(code) != 1 || code[0].Filename != "main.go" {
		t.Errorf("ListGeneratedCode = %v, %v", code, err)
	}

	kind := models.ReportSecurity
	reports, err := db.ListReports("proj-1", &kind)
	if err != nil || len(reports) != 1 || reports[0].Data["overall_risk"] != "low" {
		t.Errorf("ListReports = %v, %v", reports, err)
	}
	quality := models.ReportQuality
	reports, err = db.ListReports("proj-1", &quality)
	if err != nil || len(reports) != 0 {
		t.Errorf("ListReports(quality) = %v, %v", reports, err)
	}

	docs, err := db.ListDocumentation("proj-1")
	if err != nil || len(docs) != 1 || docs[0].Version != "1.0" {
		t.Errorf("ListDocumentation = %v, %v", docs, err)
	}
}

func TestEvents_OrderAndFilter(t *testing.T) {
	db := setupTestDB(t)
	now := time.Now().UTC()

	events := []models.Event{
		{ID: "e1", Timestamp: now, Type: models.EventProposalCreated, SubjectID: "p-1", Actor: "system", Status: models.EventInfo},
		{ID: "e2", Timestamp: now, Type: models.EventAgentStep, SubjectID: "p-1", Actor: "ARA", Status: models.EventSuccess},
		{ID: "e3", Timestamp: now, Type: models.EventAgentStep, SubjectID: "p-2", Actor: "ARA", Status: models.EventError},
		{ID: "e4", Timestamp: now, Type: models.EventAgentStep, SubjectID: "p-1", Actor: "AAD", Status: models.EventWarning},
	}
	var lastSeq int64
	for i := range events {
		if err := db.InsertEvent(&events[i]); err != nil {
			t.Fatalf("InsertEvent failed: %v", err)
		}
		if events[i].Seq <= lastSeq {
			t.Errorf("seq %d not greater than previous %d", events[i].Seq, lastSeq)
		}
		lastSeq = events[i].Seq
	}

	got, err := db.ListEvents(EventFilter{SubjectID: "p-1"})
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("ListEvents(p-1) returned %d, want 3", len(got))
	}
	for i, want := range []string{"e1", "e2", "e4"} {
		if got[i].ID != want {
			t.Errorf("event[%d] = %s, want %s", i, got[i].ID, want)
		}
	}

	got, err = db.ListEvents(EventFilter{Status: models.EventError})
	if err != nil || len(got) != 1 || got[0].ID != "e3" {
		t.Errorf("ListEvents(ERROR) = %v, %v", got, err)
	}

	got, err = db.ListEvents(EventFilter{AfterSeq: events[1].Seq, Limit: 1})
	if err != nil || len(got) != 1 || got[0].ID != "e3" {
		t.Errorf("ListEvents(after e2, limit 1) = %v, %v", got, err)
	}

	counts, err := db.CountEventsByType("p-1")
	if err != nil {
		t.Fatalf("CountEventsByType failed: %v", err)
	}
	if counts[models.EventAgentStep] != 2 || counts[models.EventProposalCreated] != 1 {
		t.Errorf("CountEventsByType = %v", counts)
	}
}

func TestDeleteProposalCascade(t *testing.T) {
	db := setupTestDB(t)
	now := time.Now().UTC()

	if err := db.CreateProposal(newProposal("prop-1")); err != nil {
		t.Fatal(err)
	}
	if err := db.CreateProposal(newProposal("prop-2")); err != nil {
		t.Fatal(err)
	}
	if err := db.CreateProject(newProject("proj-1", "prop-1")); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveGeneratedCode(&models.GeneratedCode{ID: "c1", ProjectID: "proj-1", Filename: "a.go", Language: "go", Content: "x", GeneratedAt: now}); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveReport(&models.Report{ID: "r1", ProjectID: "proj-1", Kind: models.ReportQuality, Data: map[string]any{}, GeneratedAt: now}); err != nil {
		t.Fatal(err)
	}
	for _, e := range []models.Event{
		{ID: "e1", Timestamp: now, Type: models.EventProposalCreated, SubjectID: "prop-1", Actor: "system", Status: models.EventInfo},
		{ID: "e2", Timestamp: now, Type: models.EventProjectCreated, SubjectID: "proj-1", Actor: "system", Status: models.EventInfo},
		{ID: "e3", Timestamp: now, Type: models.EventProposalCreated, SubjectID: "prop-2", Actor: "system", Status: models.EventInfo},
	} {
		e := e
		if err := db.InsertEvent(&e); err != nil {
			t.Fatal(err)
		}
	}

	res, err := db.DeleteProposalCascade("prop-1")
	if err != nil {
		t.Fatalf("DeleteProposalCascade failed: %v", err)
	}
	if res.ProjectID != "proj-1" || res.Code != 1 || res.Reports != 1 || res.Events != 2 {
		t.Errorf("CascadeResult = %+v", res)
	}

	if _, err := db.GetProposal("prop-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("proposal still present: %v", err)
	}
	if _, err := db.GetProject("proj-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("project still present: %v", err)
	}
	remaining, err := db.ListEvents(EventFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 1 || remaining[0].SubjectID != "prop-2" {
		t.Errorf("remaining events = %v, want only prop-2's", remaining)
	}

	if _, err := db.DeleteProposalCascade("prop-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete error = %v, want ErrNotFound", err)
	}
}

func TestListInterruptedProjects(t *testing.T) {
	db := setupTestDB(t)
	old := time.Now().UTC().Add(-time.Hour)

	for _, id := range []string{"prop-1", "prop-2", "prop-3"} {
		if err := db.CreateProposal(newProposal(id)); err != nil {
			t.Fatal(err)
		}
	}
	for _, pair := range [][2]string{{"proj-1", "prop-1"}, {"proj-2", "prop-2"}, {"proj-3", "prop-3"}} {
		p := newProject(pair[0], pair[1])
		p.StartedAt = old
		if err := db.CreateProject(p); err != nil {
			t.Fatal(err)
		}
	}

	// proj-2 finished, proj-3 is still recent.
	done := models.Event{ID: "e1", Timestamp: old, Type: models.EventOrchestrationCompleted, SubjectID: "proj-2", Actor: "system", Status: models.EventSuccess}
	if err := db.InsertEvent(&done); err != nil {
		t.Fatal(err)
	}
	recent := models.Event{ID: "e2", Timestamp: time.Now().UTC(), Type: models.EventAgentStep, SubjectID: "proj-3", Actor: "AID-ENV", Status: models.EventSuccess}
	if err := db.InsertEvent(&recent); err != nil {
		t.Fatal(err)
	}

	got, err := db.ListInterruptedProjects(10 * time.Minute)
	if err != nil {
		t.Fatalf("ListInterruptedProjects failed: %v", err)
	}
	if len(got) != 1 || got[0].ProjectID != "proj-1" {
		t.Errorf("ListInterruptedProjects = %+v, want only proj-1", got)
	}
}
