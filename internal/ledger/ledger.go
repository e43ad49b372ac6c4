// Package ledger is the append-only audit trail of every proposal and
// project transition.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ShayCichocki/forge/internal/metrics"
	"github.com/ShayCichocki/forge/internal/state"
	"github.com/ShayCichocki/forge/pkg/models"
)

// Filter selects events; see state.EventFilter.
type Filter = state.EventFilter

// ErrInvalidEvent is returned when an event is missing required fields.
var ErrInvalidEvent = errors.New("invalid event")

// Ledger appends and queries orchestration events. Events are never
// updated; they are only removed by the proposal cascade in the store.
type Ledger struct {
	store state.EventStore
	log   *zap.Logger
	now   func() time.Time
}

// New creates a Ledger over store.
func New(store state.EventStore, log *zap.Logger) *Ledger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Ledger{store: store, log: log, now: time.Now}
}

// Append records an event. ID, timestamp and sequence are assigned here;
// the returned event carries them.
func (l *Ledger) Append(ctx context.Context, e models.Event) (models.Event, error) {
	if err := ctx.Err(); err != nil {
		return models.Event{}, err
	}
	if e.SubjectID == "" || e.Type == "" {
		return models.Event{}, fmt.Errorf("%w: subject and type are required", ErrInvalidEvent)
	}
	if !e.Status.Valid() {
		return models.Event{}, fmt.Errorf("%w: unknown status %q", ErrInvalidEvent, e.Status)
	}
	if e.Actor == "" {
		e.Actor = models.SystemActor
	}
	e.ID = uuid.New().String()
	e.Timestamp = l.now().UTC()

	if err := l.store.InsertEvent(&e); err != nil {
		return models.Event{}, fmt.Errorf("append event: %w", err)
	}

	metrics.LedgerEvents.WithLabelValues(string(e.Status)).Inc()
	l.log.Debug("ledger event",
		zap.Int64("seq", e.Seq),
		zap.String("type", string(e.Type)),
		zap.String("subject", e.SubjectID),
		zap.String("actor", e.Actor),
		zap.String("status", string(e.Status)),
	)
	return e, nil
}

// Record is a convenience wrapper around Append for callers that only
// care about failure.
func (l *Ledger) Record(ctx context.Context, typ models.EventType, subjectID, actor string, status models.EventStatus, detail string) error {
	_, err := l.Append(ctx, models.Event{
		Type:      typ,
		SubjectID: subjectID,
		Actor:     actor,
		Status:    status,
		Detail:    detail,
	})
	return err
}

// Query returns matching events ordered by sequence.
func (l *Ledger) Query(ctx context.Context, f Filter) ([]models.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	events, err := l.store.ListEvents(f)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	return events, nil
}

// CountByType returns event counts per type for a subject, or for the
// whole ledger when subjectID is empty.
func (l *Ledger) CountByType(ctx context.Context, subjectID string) (map[models.EventType]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	counts, err := l.store.CountEventsByType(subjectID)
	if err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}
	return counts, nil
}
