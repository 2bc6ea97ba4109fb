package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapbase/internal/jobs"
)

// NewJobsCommand creates the jobs command.
func NewJobsCommand() *cobra.Command {
	var (
		site  string
		queue string
	)

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List queued background jobs",
		Long: `List jobs currently waiting on the broker, grouped by site.

Use --site to narrow to one tenant and --queue to one logical queue.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			dispatcher := jobs.NewDispatcher(
				cmdCtx.Broker, cmdCtx.Registry, jobs.NewHandlerRegistry(),
				cmdCtx.Config.Site, "", cmdCtx.Logger)
			bySite, err := dispatcher.ListJobs(cmd.Context(), site, queue)
			if err != nil {
				return err
			}

			if len(bySite) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "(no queued jobs)")
				return nil
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Site", "Job"})
			for s, names := range bySite {
				for _, name := range names {
					t.AppendRow(table.Row{s, name})
				}
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&site, "site", "", "Only show jobs for this site")
	cmd.Flags().StringVarP(&queue, "queue", "q", "", "Only show jobs on this queue")
	return cmd
}
