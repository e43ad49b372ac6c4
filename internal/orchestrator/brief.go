package orchestrator

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ShayCichocki/forge/internal/agent"
	"github.com/ShayCichocki/forge/pkg/models"
)

// initialCodeBrief is the request sent by the provisioning pipeline.
const initialCodeBrief = "Initial project setup: environment configuration, directory structure and entry point."

// maxSnippet bounds each source file quoted in report prompts.
const maxSnippet = 4000

// projectContext returns the labelled lines describing a project and the
// proposal it came from.
func projectContext(project *models.Project, proposal *models.Proposal) []models.Field {
	fields := []models.Field{
		{Label: "Project", Value: project.Name},
		{Label: "Client", Value: project.ClientName},
	}
	if proposal == nil {
		return append(fields, models.Field{Label: "Proposal", Value: "associated proposal not found"})
	}
	return append(fields,
		models.Field{Label: "Proposed solution", Value: proposal.SolutionProposal},
		models.Field{Label: "Approved scope", Value: proposal.Scope},
		models.Field{Label: "Suggested technologies", Value: proposal.TechnologiesSuggested},
		models.Field{Label: "Estimated time", Value: proposal.EstimatedTime},
	)
}

// codeBrief builds the code generation context: the request itself, the
// project context and the implementation guidelines.
func codeBrief(project *models.Project, proposal *models.Proposal, req CodeRequest) []models.Field {
	description := strings.TrimSpace(req.Description)
	if description == "" {
		description = "Implementation requested for the project."
	}
	fields := []models.Field{{Label: "Request", Value: description}}
	if req.Filename != "" {
		fields = append(fields, models.Field{Label: "File name", Value: req.Filename})
	}
	if req.Language != "" {
		fields = append(fields, models.Field{Label: "Language", Value: req.Language})
	}
	fields = append(fields, projectContext(project, proposal)...)
	return append(fields, models.Field{Label: "Guidelines", Value: strings.Join(agent.CodeGuidelines, " ")})
}

// codeContext quotes the project's generated files for the audit agents.
func codeContext(code []models.GeneratedCode) []models.Field {
	if len(code) == 0 {
		return []models.Field{{Label: "Code", Value: "no code has been generated for this project yet"}}
	}
	fields := make([]models.Field, 0, len(code))
	for _, c := range code {
		content := c.Content
		if len(content) > maxSnippet {
			content = cutRunes(content, maxSnippet) + "\n... (truncated)"
		}
		fields = append(fields, models.Field{
			Label: fmt.Sprintf("File %s (%s)", c.Filename, c.Language),
			Value: "\n" + content,
		})
	}
	return fields
}

// cutRunes returns at most n bytes of s without splitting a UTF-8 sequence.
func cutRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// requirementsOf returns the requirement set behind a project.
func requirementsOf(project *models.Project, proposal *models.Proposal) models.RequirementInput {
	if proposal != nil {
		return proposal.Requirements
	}
	return models.RequirementInput{ProjectName: project.Name, ClientName: project.ClientName}
}
