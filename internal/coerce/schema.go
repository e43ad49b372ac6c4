// Package coerce turns unreliable generative-model text into validated,
// schema-shaped records with deterministic fallback values.
//
// Coercion never fails: a response that cannot be validated produces a
// record populated from the schema defaults and tagged as degraded, with
// the reason it fell back. Callers branch on Record.Degraded instead of
// handling errors.
package coerce

import (
	"encoding/json"
	"fmt"
)

// FieldType is the canonical type a schema field is coerced into.
type FieldType int

const (
	// TypeString fields hold free text.
	TypeString FieldType = iota
	// TypeNumber fields hold a float64.
	TypeNumber
	// TypeCurrency fields hold a float64 parsed by NormalizeCurrency.
	TypeCurrency
	// TypeList fields accept an array or a delimited string and hold a
	// ", "-joined display string.
	TypeList
	// TypeBool fields hold a bool.
	TypeBool
)

// String returns the name used in schema instructions.
func (t FieldType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeNumber:
		return "number"
	case TypeCurrency:
		return "currency"
	case TypeList:
		return "list"
	case TypeBool:
		return "boolean"
	default:
		return fmt.Sprintf("FieldType(%d)", int(t))
	}
}

// jsonType is the JSON type the model is asked to produce for a field.
func (t FieldType) jsonType() string {
	switch t {
	case TypeNumber, TypeCurrency:
		return "number"
	case TypeList:
		return "array"
	case TypeBool:
		return "boolean"
	default:
		return "string"
	}
}

// FieldSpec describes one field of a schema.
type FieldSpec struct {
	Name        string
	Type        FieldType
	Description string
	// Default is used when the field is missing or unusable. It must be of
	// the field's canonical Go type; nil means the zero value.
	Default any
	// Optional fields may be absent without failing strict validation.
	Optional bool
}

// DefaultValue returns the fallback value for the field.
func (f FieldSpec) DefaultValue() any {
	if f.Default != nil {
		return f.Default
	}
	switch f.Type {
	case TypeNumber, TypeCurrency:
		return 0.0
	case TypeBool:
		return false
	case TypeString, TypeList:
		return ""
	default:
		return nil
	}
}

// Schema is the named, ordered field list a response is coerced into.
type Schema struct {
	Name   string
	Fields []FieldSpec
}

// IsZero reports whether the schema has no fields.
func (s Schema) IsZero() bool {
	return len(s.Fields) == 0
}

// Field returns the spec for name.
func (s Schema) Field(name string) (FieldSpec, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// Defaults returns a record holding every field's default value.
func (s Schema) Defaults() map[string]any {
	values := make(map[string]any, len(s.Fields))
	for _, f := range s.Fields {
		values[f.Name] = f.DefaultValue()
	}
	return values
}

type propertyDoc struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Items       *struct {
		Type string `json:"type"`
	} `json:"items,omitempty"`
}

type schemaDoc struct {
	Title      string                 `json:"title,omitempty"`
	Type       string                 `json:"type"`
	Properties map[string]propertyDoc `json:"properties"`
	Required   []string               `json:"required"`
}

// Describe renders the schema as a JSON Schema document for prompts.
func (s Schema) Describe() string {
	doc := schemaDoc{
		Title:      s.Name,
		Type:       "object",
		Properties: make(map[string]propertyDoc, len(s.Fields)),
		Required:   make([]string, 0, len(s.Fields)),
	}
	for _, f := range s.Fields {
		p := propertyDoc{Type: f.Type.jsonType(), Description: f.Description}
		if f.Type == TypeList {
			p.Items = &struct {
				Type string `json:"type"`
			}{Type: "string"}
		}
		doc.Properties[f.Name] = p
		if !f.Optional {
			doc.Required = append(doc.Required, f.Name)
		}
	}

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(out)
}
