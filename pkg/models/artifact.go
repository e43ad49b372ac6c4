package models

import "time"

// GeneratedCode is a source file produced for a project.
type GeneratedCode struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	Filename    string    `json:"filename"`
	Language    string    `json:"language"`
	Content     string    `json:"content"`
	Description string    `json:"description,omitempty"`
	Degraded    bool      `json:"degraded"`
	GeneratedAt time.Time `json:"generated_at"`
}

// ReportKind identifies the audit a report came from.
type ReportKind string

const (
	ReportQuality  ReportKind = "quality"
	ReportSecurity ReportKind = "security"
)

// Valid returns true if the kind is a known value.
func (k ReportKind) Valid() bool {
	return k == ReportQuality || k == ReportSecurity
}

// Report is a structured audit result attached to a project.
type Report struct {
	ID          string         `json:"id"`
	ProjectID   string         `json:"project_id"`
	Kind        ReportKind     `json:"kind"`
	Data        map[string]any `json:"data"`
	Degraded    bool           `json:"degraded"`
	GeneratedAt time.Time      `json:"generated_at"`
}

// Documentation is a document written for a project.
type Documentation struct {
	ID           string    `json:"id"`
	ProjectID    string    `json:"project_id"`
	Filename     string    `json:"filename"`
	DocumentType string    `json:"document_type"`
	Version      string    `json:"version"`
	Content      string    `json:"content"`
	Degraded     bool      `json:"degraded"`
	UpdatedAt    time.Time `json:"updated_at"`
}
