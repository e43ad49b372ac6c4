package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ShayCichocki/forge/pkg/models"
)

var (
	proposeFile        string
	proposeInput       models.RequirementInput
	proposalsStatus    string
	editTitle          string
	editDescription    string
	editProblem        string
	editSolution       string
	editScope          string
	editTechnologies   string
	editEstimatedValue string
	editEstimatedTime  string
	editTerms          string
)

var proposeCmd = &cobra.Command{
	Use:   "propose",
	Short: "Assemble a proposal from client requirements",
	Long: `Runs the analysis, design, estimate and compilation agents over a
requirement set and stores the resulting proposal as pending.

Requirements come from a YAML file (--file) or from flags:

  project_name: Acme CRM
  client_name: Acme Ltd
  problem: Sales data is spread across spreadsheets
  objectives: One place for contacts and deals
  expected_features: contacts, pipeline, reports
  constraints: three months, fixed budget
  audience: sales team
  extra:
    region: LATAM`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		req := proposeInput
		if proposeFile != "" {
			fromFile, err := readRequirements(proposeFile)
			if err != nil {
				return err
			}
			req = mergeRequirements(fromFile, proposeInput)
		}
		if err := req.Validate(); err != nil {
			return err
		}

		ctx := cmd.Context()
		a, err := newApp(ctx, true)
		if err != nil {
			return err
		}
		defer a.Close()

		if !a.client.Available() {
			printWarning("generative service unavailable; the proposal will be built from defaults")
		}

		p, err := a.forge.Submit(ctx, req)
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(p)
		}
		renderProposal(os.Stdout, p)
		if p.NeedsReview {
			printWarning("proposal needs review before it is sent")
		} else {
			printSuccess(fmt.Sprintf("proposal %s created", p.ID))
		}
		return nil
	},
}

// readRequirements parses a YAML requirement file.
func readRequirements(path string) (models.RequirementInput, error) {
	var req models.RequirementInput
	data, err := os.ReadFile(path)
	if err != nil {
		return req, fmt.Errorf("read requirements: %w", err)
	}
	if err := yaml.Unmarshal(data, &req); err != nil {
		return req, fmt.Errorf("parse requirements %s: %w", path, err)
	}
	return req, nil
}

// mergeRequirements overlays non-empty flag values on file values.
func mergeRequirements(base, flags models.RequirementInput) models.RequirementInput {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&base.ProjectName, flags.ProjectName)
	set(&base.ClientName, flags.ClientName)
	set(&base.Problem, flags.Problem)
	set(&base.Objectives, flags.Objectives)
	set(&base.ExpectedFeatures, flags.ExpectedFeatures)
	set(&base.Constraints, flags.Constraints)
	set(&base.Audience, flags.Audience)
	for k, v := range flags.Extra {
		if base.Extra == nil {
			base.Extra = map[string]string{}
		}
		base.Extra[k] = v
	}
	return base
}

var proposalsCmd = &cobra.Command{
	Use:   "proposals",
	Short: "List and manage proposals",
}

var proposalsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List proposals",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var status *models.ProposalStatus
		if proposalsStatus != "" {
			s := models.ProposalStatus(proposalsStatus)
			if !s.Valid() {
				return fmt.Errorf("unknown proposal status %q", proposalsStatus)
			}
			status = &s
		}

		a, err := newApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		proposals, err := a.forge.Proposals(status)
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(proposals)
		}
		if len(proposals) == 0 {
			fmt.Println("No proposals.")
			return nil
		}
		renderProposals(os.Stdout, proposals)
		return nil
	},
}

var proposalsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a proposal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := a.forge.Proposal(args[0])
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(p)
		}
		renderProposal(os.Stdout, p)
		return nil
	},
}

var proposalsEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Replace fields of a pending proposal",
	Long: `Replaces the given fields of a pending proposal. The estimated value
accepts formatted amounts such as "R$ 12.000,00" or "$12,000.50".
Editing clears the review flag.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		edit := proposalEditFromFlags(cmd)
		if edit.Empty() {
			return fmt.Errorf("nothing to edit: pass at least one field flag")
		}

		ctx := cmd.Context()
		a, err := newApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := a.forge.EditProposal(ctx, args[0], edit)
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(p)
		}
		printSuccess(fmt.Sprintf("proposal %s updated (value %s)", p.ID, formatMoney(p.EstimatedValue)))
		return nil
	},
}

// proposalEditFromFlags builds an edit from the flags the user actually set.
func proposalEditFromFlags(cmd *cobra.Command) models.ProposalEdit {
	var edit models.ProposalEdit
	pick := func(name string, v string) *string {
		if !cmd.Flags().Changed(name) {
			return nil
		}
		return &v
	}
	edit.Title = pick("title", editTitle)
	edit.Description = pick("description", editDescription)
	edit.ProblemUnderstanding = pick("problem-understanding", editProblem)
	edit.SolutionProposal = pick("solution", editSolution)
	edit.Scope = pick("scope", editScope)
	edit.TechnologiesSuggested = pick("technologies", editTechnologies)
	edit.EstimatedValue = pick("value", editEstimatedValue)
	edit.EstimatedTime = pick("time", editEstimatedTime)
	edit.TermsConditions = pick("terms", editTerms)
	return edit
}

var proposalsApproveCmd = &cobra.Command{
	Use:   "approve <id>",
	Short: "Approve a proposal and provision its project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, true)
		if err != nil {
			return err
		}
		defer a.Close()

		project, err := a.forge.Approve(ctx, args[0])
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(project)
		}
		msg := fmt.Sprintf("project %s is %s at %d%%", project.ID, project.Status, project.Progress)
		if project.Status == models.ProjectOnHold {
			printWarning(msg)
			fmt.Printf("  inspect with: forge events --subject %s\n", project.ID)
			return nil
		}
		printSuccess(msg)
		return nil
	},
}

var proposalsRejectCmd = &cobra.Command{
	Use:   "reject <id>",
	Short: "Reject a proposal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := a.forge.Reject(ctx, args[0])
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(p)
		}
		printSuccess(fmt.Sprintf("proposal %s rejected", p.ID))
		return nil
	},
}

var proposalsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a proposal with its project, artifacts and events",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.forge.DeleteProposal(ctx, args[0])
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(res)
		}
		printSuccess(fmt.Sprintf("proposal %s deleted", res.ProposalID))
		if res.ProjectID != "" {
			fmt.Printf("  project %s: %d code files, %d reports, %d documents\n",
				res.ProjectID, res.Code, res.Reports, res.Documentation)
		}
		fmt.Printf("  %d events removed\n", res.Events)
		return nil
	},
}

func init() {
	f := proposeCmd.Flags()
	f.StringVarP(&proposeFile, "file", "f", "", "YAML requirement file")
	f.StringVar(&proposeInput.ProjectName, "name", "", "Project name")
	f.StringVar(&proposeInput.ClientName, "client", "", "Client name")
	f.StringVar(&proposeInput.Problem, "problem", "", "Business problem")
	f.StringVar(&proposeInput.Objectives, "objectives", "", "Objectives")
	f.StringVar(&proposeInput.ExpectedFeatures, "features", "", "Expected features")
	f.StringVar(&proposeInput.Constraints, "constraints", "", "Budget, deadline and technical constraints")
	f.StringVar(&proposeInput.Audience, "audience", "", "Target audience")
	f.StringToStringVar(&proposeInput.Extra, "extra", nil, "Additional requirement fields (key=value)")

	proposalsListCmd.Flags().StringVar(&proposalsStatus, "status", "", "Filter by status (pending, approved, rejected)")

	ef := proposalsEditCmd.Flags()
	ef.StringVar(&editTitle, "title", "", "Title")
	ef.StringVar(&editDescription, "description", "", "Description")
	ef.StringVar(&editProblem, "problem-understanding", "", "Problem understanding")
	ef.StringVar(&editSolution, "solution", "", "Solution proposal")
	ef.StringVar(&editScope, "scope", "", "Scope")
	ef.StringVar(&editTechnologies, "technologies", "", "Suggested technologies")
	ef.StringVar(&editEstimatedValue, "value", "", "Estimated value, formatted amounts accepted")
	ef.StringVar(&editEstimatedTime, "time", "", "Estimated time")
	ef.StringVar(&editTerms, "terms", "", "Terms and conditions")

	proposalsCmd.AddCommand(proposalsListCmd)
	proposalsCmd.AddCommand(proposalsShowCmd)
	proposalsCmd.AddCommand(proposalsEditCmd)
	proposalsCmd.AddCommand(proposalsApproveCmd)
	proposalsCmd.AddCommand(proposalsRejectCmd)
	proposalsCmd.AddCommand(proposalsDeleteCmd)
}
