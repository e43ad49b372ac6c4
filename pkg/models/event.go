package models

import "time"

// EventStatus is the severity tag of a ledger event.
type EventStatus string

const (
	EventInfo     EventStatus = "INFO"
	EventSuccess  EventStatus = "SUCCESS"
	EventWarning  EventStatus = "WARNING"
	EventError    EventStatus = "ERROR"
	EventCritical EventStatus = "CRITICAL"
)

// Valid returns true if the status is a known value.
func (s EventStatus) Valid() bool {
	switch s {
	case EventInfo, EventSuccess, EventWarning, EventError, EventCritical:
		return true
	default:
		return false
	}
}

// Failure reports whether the status marks a failure.
func (s EventStatus) Failure() bool {
	return s == EventError || s == EventCritical
}

// EventType names what happened.
type EventType string

const (
	EventProposalCreated       EventType = "proposal_created"
	EventProposalUpdated       EventType = "proposal_updated"
	EventProposalStatusChanged EventType = "proposal_status_changed"
	EventProposalDeleted       EventType = "proposal_deleted"

	EventProjectCreated         EventType = "project_created"
	EventProjectStatusChanged   EventType = "project_status_changed"
	EventProjectProgressUpdated EventType = "project_progress_updated"

	EventAgentStep       EventType = "agent_step"
	EventAssemblySummary EventType = "assembly_summary"

	EventOrchestrationStarted   EventType = "orchestration_started"
	EventOrchestrationCompleted EventType = "orchestration_completed"
	EventOrchestrationFailed    EventType = "orchestration_failed"

	EventCodeGenerated          EventType = "code_generated"
	EventCodeGenerationFailed   EventType = "code_generation_failed"
	EventDocumentationGenerated EventType = "documentation_generated"
	EventReportGenerated        EventType = "report_generated"
)

// SystemActor is the actor recorded for transitions not made by an agent.
const SystemActor = "system"

// Event is one immutable entry of the orchestration ledger.
type Event struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`
	// Seq is the monotonic ledger position, assigned on append.
	Seq       int64       `json:"seq"`
	Timestamp time.Time   `json:"timestamp"`
	Type      EventType   `json:"type"`
	SubjectID string      `json:"subject_id"`
	Actor     string      `json:"actor"`
	Status    EventStatus `json:"status"`
	Detail    string      `json:"detail,omitempty"`
}
