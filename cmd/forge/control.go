package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/forge/internal/control"
)

var (
	haltClear   bool
	recoverIdle time.Duration
)

var haltCmd = &cobra.Command{
	Use:   "halt",
	Short: "Stop running provisioning pipelines",
	Long: `Writes a halt signal that every running forge process in this directory
picks up. Provisioning stops before its next step and the project is put on
hold. The signal stays until cleared with --clear.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		signals, err := control.NewSignals(cwd)
		if err != nil {
			return fmt.Errorf("open signals: %w", err)
		}
		defer signals.Close()

		if haltClear {
			signals.Clear()
			printSuccess("halt signal cleared")
			return nil
		}
		if err := signals.SendHalt(); err != nil {
			return fmt.Errorf("send halt: %w", err)
		}
		printStatus("■", fmt.Sprintf("halt signal written to %s", signals.Dir()), color.FgRed)
		return nil
	},
}

var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Put interrupted provisioning runs on hold",
	Long: `Finds projects whose provisioning never recorded a terminal event and
has been idle for longer than --idle, puts them on hold and records why.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.Close()

		idle := a.cfg.Provisioning.InterruptedAfter
		if cmd.Flags().Changed("idle") {
			idle = recoverIdle
		}
		held, err := a.forge.RecoverInterrupted(ctx, idle)
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(held)
		}
		if len(held) == 0 {
			fmt.Println("No interrupted runs.")
			return nil
		}
		renderProjects(os.Stdout, held)
		printWarning(fmt.Sprintf("%d project(s) put on hold", len(held)))
		return nil
	},
}

func init() {
	haltCmd.Flags().BoolVar(&haltClear, "clear", false, "Remove a pending halt signal")
	recoverCmd.Flags().DurationVar(&recoverIdle, "idle", 0, "Idle time before a run counts as interrupted (default from provisioning.interrupted_after)")
}
