package state

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ShayCichocki/forge/pkg/models"
)

// setupTestDB creates a new migrated database in a temp directory.
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "forge.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := db.Migrate(); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db
}

func newEvent(id, subject string, typ models.EventType) *models.Event {
	return &models.Event{
		ID:        id,
		Timestamp: time.Now().UTC(),
		Type:      typ,
		SubjectID: subject,
		Actor:     models.SystemActor,
		Status:    models.EventInfo,
	}
}

func TestOpen_CreatesDataDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "share", "forge", "forge.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	if db.Path() != path {
		t.Errorf("Path() = %q, want %q", db.Path(), path)
	}
	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		t.Errorf("data directory not created: %v", err)
	}
}

func TestMigrate_CreatesForgeSchema(t *testing.T) {
	db := setupTestDB(t)

	// A second run must leave the schema untouched.
	if err := db.Migrate(); err != nil {
		t.Fatalf("second Migrate failed: %v", err)
	}

	var version int
	if err := db.QueryRow("SELECT MAX(version) FROM schema_version").Scan(&version); err != nil {
		t.Fatalf("read schema version: %v", err)
	}
	if version != 4 {
		t.Errorf("schema version = %d, want 4", version)
	}

	for _, table := range []string{"proposals", "projects", "generated_code", "reports", "documentation", "events"} {
		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count); err != nil {
			t.Fatalf("check table %s: %v", table, err)
		}
		if count != 1 {
			t.Errorf("table %s does not exist", table)
		}
	}
}

func TestEvents_SeqIsMonotonic(t *testing.T) {
	db := setupTestDB(t)

	var last int64
	for i, subject := range []string{"prop-1", "prop-2", "prop-1", "proj-1", "prop-2"} {
		e := newEvent(fmt.Sprintf("ev-%d", i), subject, models.EventAgentStep)
		if err := db.InsertEvent(e); err != nil {
			t.Fatalf("InsertEvent failed: %v", err)
		}
		if e.Seq <= last {
			t.Fatalf("seq %d not greater than previous %d", e.Seq, last)
		}
		last = e.Seq
	}

	// Deleted sequence numbers are never reused.
	if _, err := db.Exec("DELETE FROM events WHERE seq = ?", last); err != nil {
		t.Fatalf("delete newest event: %v", err)
	}
	e := newEvent("ev-after-delete", "prop-1", models.EventProposalUpdated)
	if err := db.InsertEvent(e); err != nil {
		t.Fatalf("InsertEvent failed: %v", err)
	}
	if e.Seq <= last {
		t.Errorf("seq %d reused after delete, want > %d", e.Seq, last)
	}
}

func TestEvents_DuplicateIDRejected(t *testing.T) {
	db := setupTestDB(t)

	if err := db.InsertEvent(newEvent("ev-1", "prop-1", models.EventProposalCreated)); err != nil {
		t.Fatalf("InsertEvent failed: %v", err)
	}
	if err := db.InsertEvent(newEvent("ev-1", "prop-1", models.EventProposalCreated)); err == nil {
		t.Error("expected error inserting duplicate event id")
	}
}

func TestProjects_ProgressCheckConstraint(t *testing.T) {
	db := setupTestDB(t)
	if err := db.CreateProposal(newProposal("prop-1")); err != nil {
		t.Fatalf("CreateProposal failed: %v", err)
	}
	if err := db.CreateProject(newProject("proj-1", "prop-1")); err != nil {
		t.Fatalf("CreateProject failed: %v", err)
	}

	for _, progress := range []int{-1, 101} {
		if _, err := db.Exec("UPDATE projects SET progress = ? WHERE id = ?", progress, "proj-1"); err == nil {
			t.Errorf("progress %d accepted by the schema", progress)
		}
	}

	// The store clamps before writing, so out-of-range values never reach the constraint.
	p := newProject("proj-1", "prop-1")
	p.Progress = 150
	if err := db.UpdateProject(p); err != nil {
		t.Fatalf("UpdateProject failed: %v", err)
	}
	got, err := db.GetProject("proj-1")
	if err != nil {
		t.Fatalf("GetProject failed: %v", err)
	}
	if got.Progress != 100 {
		t.Errorf("progress = %d, want 100", got.Progress)
	}
}

func TestProjects_OnePerProposal(t *testing.T) {
	db := setupTestDB(t)
	if err := db.CreateProposal(newProposal("prop-1")); err != nil {
		t.Fatalf("CreateProposal failed: %v", err)
	}
	if err := db.CreateProject(newProject("proj-1", "prop-1")); err != nil {
		t.Fatalf("CreateProject failed: %v", err)
	}
	if err := db.CreateProject(newProject("proj-2", "prop-1")); err == nil {
		t.Error("expected second project for the same proposal to be rejected")
	}
}

func TestTransaction_RollsBackCascade(t *testing.T) {
	db := setupTestDB(t)
	if err := db.CreateProposal(newProposal("prop-1")); err != nil {
		t.Fatalf("CreateProposal failed: %v", err)
	}
	if err := db.InsertEvent(newEvent("ev-1", "prop-1", models.EventProposalCreated)); err != nil {
		t.Fatalf("InsertEvent failed: %v", err)
	}

	errAbort := errors.New("abort")
	err := db.Transaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM events WHERE subject_id = ?", "prop-1"); err != nil {
			return err
		}
		if _, err := tx.Exec("DELETE FROM proposals WHERE id = ?", "prop-1"); err != nil {
			return err
		}
		return errAbort
	})
	if !errors.Is(err, errAbort) {
		t.Fatalf("Transaction error = %v, want %v", err, errAbort)
	}

	if _, err := db.GetProposal("prop-1"); err != nil {
		t.Errorf("proposal lost after rollback: %v", err)
	}
	events, err := db.ListEvents(EventFilter{SubjectID: "prop-1"})
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("events after rollback = %d, want 1", len(events))
	}
}

func TestGlobalDBPath(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/custom/data")
	if got, want := GlobalDBPath(), "/custom/data/forge/forge.db"; got != want {
		t.Errorf("GlobalDBPath() = %q, want %q", got, want)
	}
}

func TestParseNullableTime(t *testing.T) {
	decided := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	stored := sql.NullString{String: formatTime(decided), Valid: true}
	if got := parseNullableTime(stored); got == nil || !got.Equal(decided) {
		t.Errorf("parseNullableTime(stored) = %v, want %v", got, decided)
	}
	if got := parseNullableTime(sql.NullString{}); got != nil {
		t.Errorf("parseNullableTime(null) = %v, want nil", got)
	}
	if got := parseNullableTime(sql.NullString{String: "not a time", Valid: true}); got != nil {
		t.Errorf("parseNullableTime(invalid) = %v, want nil", got)
	}
}
