package models

import (
	"errors"
	"sort"
	"strings"
)

// ErrMissingProjectName is returned when a requirement set has no project name.
var ErrMissingProjectName = errors.New("requirements: project name is required")

// RequirementInput is the raw business input a proposal is assembled from.
// It is a value type and is never mutated once submitted.
type RequirementInput struct {
	// ProjectName is the working name of the project.
	ProjectName string `json:"project_name" yaml:"project_name"`
	// ClientName is who the proposal is addressed to.
	ClientName string `json:"client_name,omitempty" yaml:"client_name"`
	// Problem describes the business problem to solve.
	Problem string `json:"problem,omitempty" yaml:"problem"`
	// Objectives lists what the client wants to achieve.
	Objectives string `json:"objectives,omitempty" yaml:"objectives"`
	// ExpectedFeatures lists the capabilities the client expects.
	ExpectedFeatures string `json:"expected_features,omitempty" yaml:"expected_features"`
	// Constraints covers budget, deadline and technical restrictions.
	Constraints string `json:"constraints,omitempty" yaml:"constraints"`
	// Audience is the intended user base.
	Audience string `json:"audience,omitempty" yaml:"audience"`
	// Extra holds any free-form fields not covered above.
	Extra map[string]string `json:"extra,omitempty" yaml:"extra"`
}

// Validate checks the minimum a requirement set needs to be processed.
func (r RequirementInput) Validate() error {
	if strings.TrimSpace(r.ProjectName) == "" {
		return ErrMissingProjectName
	}
	return nil
}

// Field is a labelled requirement value in presentation order.
type Field struct {
	Label string
	Value string
}

// Fields returns the non-empty requirement values in a stable order.
// Extra keys follow the named fields, sorted alphabetically.
func (r RequirementInput) Fields() []Field {
	named := []Field{
		{"Project", r.ProjectName},
		{"Client", r.ClientName},
		{"Business problem", r.Problem},
		{"Objectives", r.Objectives},
		{"Expected features", r.ExpectedFeatures},
		{"Constraints", r.Constraints},
		{"Target audience", r.Audience},
	}

	fields := make([]Field, 0, len(named)+len(r.Extra))
	for _, f := range named {
		if strings.TrimSpace(f.Value) != "" {
			fields = append(fields, f)
		}
	}

	keys := make([]string, 0, len(r.Extra))
	for k := range r.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if v := strings.TrimSpace(r.Extra[k]); v != "" {
			fields = append(fields, Field{Label: k, Value: v})
		}
	}
	return fields
}

// String renders the requirements as "Label: value" lines.
func (r RequirementInput) String() string {
	var b strings.Builder
	for _, f := range r.Fields() {
		b.WriteString(f.Label)
		b.WriteString(": ")
		b.WriteString(f.Value)
		b.WriteString("\n")
	}
	return b.String()
}
