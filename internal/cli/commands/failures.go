package commands

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapbase/internal/faillog"
)

// NewFailuresCommand creates the failures command.
func NewFailuresCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "failures",
		Short: "Show recent job failures",
		Long:  `List the most recent entries from the job failure log, newest first.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			store := faillog.NewStore()
			if err := store.Open(cmdCtx.Config.FailureLogPath); err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.List(limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "(no recorded failures)")
				return nil
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"When", "Job", "Detail"})
			for _, e := range entries {
				t.AppendRow(table.Row{
					e.CreatedAt.Local().Format(time.DateTime),
					e.Title,
					e.Detail,
				})
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum entries to show")
	return cmd
}
