package state

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/ShayCichocki/forge/pkg/models"
)

// EventFilter selects ledger events. Zero fields match everything.
type EventFilter struct {
	SubjectID string
	Type      models.EventType
	Status    models.EventStatus
	Actor     string
	// AfterSeq returns only events with a greater sequence number.
	AfterSeq int64
	// Limit caps the number of events returned; 0 means no limit.
	Limit int
}

// InsertEvent appends an event and sets its sequence number.
func (db *DB) InsertEvent(e *models.Event) error {
	res, err := db.Exec(`
		INSERT INTO events (id, timestamp, type, subject_id, actor, status, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.ID, formatTime(e.Timestamp), string(e.Type), e.SubjectID, e.Actor, string(e.Status), e.Detail)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("get event sequence: %w", err)
	}
	e.Seq = seq
	return nil
}

// ListEvents returns events matching the filter in sequence order.
func (db *DB) ListEvents(f EventFilter) ([]models.Event, error) {
	var where []string
	var args []any
	if f.SubjectID != "" {
		where = append(where, "subject_id = ?")
		args = append(args, f.SubjectID)
	}
	if f.Type != "" {
		where = append(where, "type = ?")
		args = append(args, string(f.Type))
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.Actor != "" {
		where = append(where, "actor = ?")
		args = append(args, f.Actor)
	}
	if f.AfterSeq > 0 {
		where = append(where, "seq > ?")
		args = append(args, f.AfterSeq)
	}

	query := `SELECT seq, id, timestamp, type, subject_id, actor, status, detail FROM events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq ASC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var e models.Event
		var ts string
		var detail sql.NullString
		if err := rows.Scan(&e.Seq, &e.ID, &ts, &e.Type, &e.SubjectID, &e.Actor, &e.Status, &detail); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Timestamp, _ = parseTime(ts)
		e.Detail = detail.String
		events = append(events, e)
	}
	return events, rows.Err()
}

// CountEventsByType returns event counts grouped by type. An empty
// subjectID counts across all subjects.
func (db *DB) CountEventsByType(subjectID string) (map[models.EventType]int, error) {
	query := `SELECT type, COUNT(*) FROM events`
	var args []any
	if subjectID != "" {
		query += ` WHERE subject_id = ?`
		args = append(args, subjectID)
	}
	query += ` GROUP BY type`

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.EventType]int)
	for rows.Next() {
		var t models.EventType
		var n int
		if err := rows.Scan(&t, &n); err != nil {
			return nil, fmt.Errorf("scan event count: %w", err)
		}
		counts[t] = n
	}
	return counts, rows.Err()
}
