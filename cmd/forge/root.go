package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	flagBackend  string
	flagDBPath   string
	flagLogLevel string
	flagJSON     bool
)

var rootCmd = &cobra.Command{
	Use:   "forge",
	Short: "Proposal assembly and project provisioning engine",
	Long: `Forge turns client requirements into a commercial proposal by running a
chain of generative agents (analysis, design, estimate, compilation), and
provisions the project once the proposal is approved (environment, backups,
initial code).

Every step is recorded in an append-only event ledger. A failing agent never
loses work: its output is completed from defaults and the proposal is flagged
for review.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagBackend, "backend", "", "Generative backend override (anthropic, ollama, scripted)")
	pf.StringVar(&flagDBPath, "db", "", "Database file override")
	pf.StringVar(&flagLogLevel, "log-level", "", "Log level override (debug, info, warn, error)")
	pf.BoolVar(&flagJSON, "json", false, "Print results as JSON")

	rootCmd.AddCommand(proposeCmd)
	rootCmd.AddCommand(proposalsCmd)
	rootCmd.AddCommand(projectsCmd)
	rootCmd.AddCommand(codegenCmd)
	rootCmd.AddCommand(docsCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(haltCmd)
	rootCmd.AddCommand(recoverCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
