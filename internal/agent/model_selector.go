package agent

import (
	"sort"
	"strings"
)

// ModelSelector maps agent identifiers to model names. Agents without an
// entry use the client's default model.
type ModelSelector struct {
	models map[string]string
}

// NewModelSelector creates a selector from an agent -> model map. Keys are
// matched case-insensitively because config keys arrive lower-cased.
func NewModelSelector(m map[string]string) *ModelSelector {
	s := &ModelSelector{models: make(map[string]string, len(m))}
	for agent, model := range m {
		model = strings.TrimSpace(model)
		if model == "" {
			continue
		}
		s.models[strings.ToUpper(strings.TrimSpace(agent))] = model
	}
	return s
}

// SelectModel returns the configured model for agentID, or "" for the
// default model.
func (s *ModelSelector) SelectModel(agentID string) string {
	if s == nil {
		return ""
	}
	return s.models[strings.ToUpper(agentID)]
}

// Assignments returns the configured agent ids in sorted order.
func (s *ModelSelector) Assignments() []string {
	if s == nil {
		return nil
	}
	ids := make([]string, 0, len(s.models))
	for id := range s.models {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
