package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/forge/internal/orchestrator"
	"github.com/ShayCichocki/forge/pkg/models"
)

var (
	projectsStatus string
	codegenReq     orchestrator.CodeRequest
	docsType       string
	reportKind     string
	showContent    bool
)

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List and inspect projects",
}

var projectsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var status *models.ProjectStatus
		if projectsStatus != "" {
			s := models.ProjectStatus(projectsStatus)
			if !s.Valid() {
				return fmt.Errorf("unknown project status %q", projectsStatus)
			}
			status = &s
		}

		a, err := newApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		projects, err := a.forge.Projects(status)
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(projects)
		}
		if len(projects) == 0 {
			fmt.Println("No projects.")
			return nil
		}
		renderProjects(os.Stdout, projects)
		return nil
	},
}

var projectsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a project and its generated artifacts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		project, err := a.forge.Project(args[0])
		if err != nil {
			return err
		}
		artifacts, err := a.forge.Artifacts(project.ID)
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(struct {
				Project   *models.Project                `json:"project"`
				Artifacts *orchestrator.ProjectArtifacts `json:"artifacts"`
			}{project, artifacts})
		}

		fmt.Println(headingStyle.Render(project.Name))
		fmt.Printf("%s  %s  %d%%  proposal %s\n", dimStyle.Render(project.ID), project.Status, project.Progress, project.ProposalID)

		t := newTable(os.Stdout)
		t.AppendHeader(table.Row{"Kind", "Name", "Detail", "Degraded", "When"})
		for _, c := range artifacts.Code {
			t.AppendRow(table.Row{"code", c.Filename, c.Language, c.Degraded, formatTime(c.GeneratedAt)})
		}
		for _, d := range artifacts.Documentation {
			t.AppendRow(table.Row{"doc", d.Filename, d.DocumentType, d.Degraded, formatTime(d.UpdatedAt)})
		}
		for _, r := range artifacts.Reports {
			t.AppendRow(table.Row{"report", string(r.Kind), reportHeadline(r), r.Degraded, formatTime(r.GeneratedAt)})
		}
		t.Render()

		if showContent {
			for _, c := range artifacts.Code {
				fmt.Println(panelStyle.Render(headingStyle.Render(c.Filename) + "\n" + c.Content))
			}
			for _, d := range artifacts.Documentation {
				fmt.Println(panelStyle.Render(headingStyle.Render(d.Filename) + "\n" + d.Content))
			}
		}
		return nil
	},
}

// reportHeadline picks the most telling value of a report for the table.
func reportHeadline(r models.Report) string {
	for _, key := range []string{"risk_level", "coverage", "total_tests"} {
		if v, ok := r.Data[key]; ok {
			return fmt.Sprintf("%s: %v", key, v)
		}
	}
	keys := make([]string, 0, len(r.Data))
	for k := range r.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) == 0 {
		return ""
	}
	return fmt.Sprintf("%s: %v", keys[0], r.Data[keys[0]])
}

var codegenCmd = &cobra.Command{
	Use:   "codegen <project-id>",
	Short: "Generate a source file for a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if codegenReq.Description == "" {
			return fmt.Errorf("--description is required")
		}
		ctx := cmd.Context()
		a, err := newApp(ctx, true)
		if err != nil {
			return err
		}
		defer a.Close()

		code, err := a.forge.GenerateCode(ctx, args[0], codegenReq)
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(code)
		}
		fmt.Println(panelStyle.Render(headingStyle.Render(code.Filename) + "\n" + code.Content))
		printSuccess(fmt.Sprintf("%s saved to project %s", code.Filename, code.ProjectID))
		return nil
	},
}

var docsCmd = &cobra.Command{
	Use:   "docs <project-id>",
	Short: "Generate a document for a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, true)
		if err != nil {
			return err
		}
		defer a.Close()

		doc, err := a.forge.GenerateDocumentation(ctx, args[0], docsType)
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(doc)
		}
		fmt.Println(panelStyle.Render(headingStyle.Render(doc.Filename) + "\n" + doc.Content))
		printSuccess(fmt.Sprintf("%s saved to project %s", doc.DocumentType, doc.ProjectID))
		return nil
	},
}

var reportCmd = &cobra.Command{
	Use:   "report <project-id>",
	Short: "Run a quality or security audit over a project's code",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind := models.ReportKind(reportKind)
		if !kind.Valid() {
			return fmt.Errorf("--kind must be quality or security")
		}
		ctx := cmd.Context()
		a, err := newApp(ctx, true)
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.forge.GenerateReport(ctx, args[0], kind)
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(report)
		}

		keys := make([]string, 0, len(report.Data))
		for k := range report.Data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		t := newTable(os.Stdout)
		t.AppendHeader(table.Row{"Field", "Value"})
		for _, k := range keys {
			t.AppendRow(table.Row{k, truncate(fmt.Sprint(report.Data[k]), 80)})
		}
		t.Render()
		if report.Degraded {
			printWarning("report was completed from defaults")
		}
		return nil
	},
}

func init() {
	projectsListCmd.Flags().StringVar(&projectsStatus, "status", "", "Filter by status (active, on hold, completed, cancelled)")
	projectsShowCmd.Flags().BoolVar(&showContent, "content", false, "Print generated code and documents")

	codegenCmd.Flags().StringVar(&codegenReq.Filename, "filename", "", "Target file name")
	codegenCmd.Flags().StringVar(&codegenReq.Language, "language", "", "Programming language")
	codegenCmd.Flags().StringVarP(&codegenReq.Description, "description", "d", "", "What the file should do")

	docsCmd.Flags().StringVar(&docsType, "type", "", "Document type (default: Technical documentation)")

	reportCmd.Flags().StringVar(&reportKind, "kind", string(models.ReportQuality), "Report kind (quality, security)")

	projectsCmd.AddCommand(projectsListCmd)
	projectsCmd.AddCommand(projectsShowCmd)
}
