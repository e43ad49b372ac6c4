package coerce

import (
	"strconv"
	"strings"
)

// Record is the outcome of coercing one response against a schema.
// Values always holds every schema field in its canonical type.
type Record struct {
	Values map[string]any `json:"values"`
	// Degraded is set when any value came from a fallback path.
	Degraded bool `json:"degraded"`
	// Reason explains why the record is degraded.
	Reason string `json:"reason,omitempty"`
}

// String returns the named value rendered as text.
func (r Record) String(name string) string {
	switch v := r.Values[name].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// Float returns the named numeric value, or 0.
func (r Record) Float(name string) float64 {
	if v, ok := r.Values[name].(float64); ok {
		return v
	}
	return 0
}

// Bool returns the named boolean value, or false.
func (r Record) Bool(name string) bool {
	v, _ := r.Values[name].(bool)
	return v
}

// List splits a list field's display string back into items.
func (r Record) List(name string) []string {
	s := r.String(name)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, listSeparator)
	items := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			items = append(items, p)
		}
	}
	return items
}

// Clone returns a copy that does not share the values map.
func (r Record) Clone() Record {
	values := make(map[string]any, len(r.Values))
	for k, v := range r.Values {
		values[k] = v
	}
	return Record{Values: values, Degraded: r.Degraded, Reason: r.Reason}
}
