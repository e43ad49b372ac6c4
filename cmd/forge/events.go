package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/forge/internal/ledger"
	"github.com/ShayCichocki/forge/pkg/models"
)

var eventsFilter struct {
	subject string
	typ     string
	status  string
	actor   string
	after   int64
	limit   int
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show the event ledger",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f := ledger.Filter{
			SubjectID: eventsFilter.subject,
			Type:      models.EventType(eventsFilter.typ),
			Status:    models.EventStatus(eventsFilter.status),
			Actor:     eventsFilter.actor,
			AfterSeq:  eventsFilter.after,
			Limit:     eventsFilter.limit,
		}
		if f.Status != "" && !f.Status.Valid() {
			return fmt.Errorf("unknown event status %q", eventsFilter.status)
		}

		ctx := cmd.Context()
		a, err := newApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.Close()

		events, err := a.forge.Events(ctx, f)
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(events)
		}
		if len(events) == 0 {
			fmt.Println("No events.")
			return nil
		}
		renderEvents(os.Stdout, events)
		return nil
	},
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show the commercial overview",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.Close()

		s, err := a.forge.Summary(ctx)
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(s)
		}

		t := newTable(os.Stdout)
		t.AppendHeader(table.Row{"Proposals", "", "Projects", ""})
		t.AppendRow(table.Row{"total", s.TotalProposals, "total", s.TotalProjects})
		t.AppendRow(table.Row{"pending", s.PendingProposals, "active", s.ActiveProjects})
		t.AppendRow(table.Row{"approved", s.ApprovedProposals, "on hold", s.OnHoldProjects})
		t.AppendRow(table.Row{"rejected", s.RejectedProposals, "completed", s.CompletedProjects})
		t.AppendRow(table.Row{"needs review", s.NeedsReview, "", ""})
		t.AppendSeparator()
		t.AppendRow(table.Row{"approval rate", fmt.Sprintf("%.0f%%", s.ApprovalRate*100), "", ""})
		t.AppendRow(table.Row{"total value", formatMoney(s.TotalValue), "", ""})
		t.AppendRow(table.Row{"approved value", formatMoney(s.ApprovedValue), "", ""})
		t.Render()

		if len(s.EventCounts) > 0 {
			types := make([]string, 0, len(s.EventCounts))
			for typ := range s.EventCounts {
				types = append(types, string(typ))
			}
			sort.Strings(types)
			et := newTable(os.Stdout)
			et.AppendHeader(table.Row{"Event", "Count"})
			for _, typ := range types {
				et.AppendRow(table.Row{typ, s.EventCounts[models.EventType(typ)]})
			}
			et.Render()
		}
		return nil
	},
}

func init() {
	f := eventsCmd.Flags()
	f.StringVar(&eventsFilter.subject, "subject", "", "Proposal or project id")
	f.StringVar(&eventsFilter.typ, "type", "", "Event type, e.g. agent_step")
	f.StringVar(&eventsFilter.status, "status", "", "Event status (INFO, SUCCESS, WARNING, ERROR, CRITICAL)")
	f.StringVar(&eventsFilter.actor, "actor", "", "Agent id or system")
	f.Int64Var(&eventsFilter.after, "after", 0, "Only events after this sequence number")
	f.IntVarP(&eventsFilter.limit, "limit", "n", 100, "Maximum events to show (0 for all)")
}
