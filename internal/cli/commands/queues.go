package commands

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// NewQueuesCommand creates the queues command.
func NewQueuesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "queues",
		Short: "Show registered queues and their timeouts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Queue", "Physical Name", "Timeout"})
			for _, q := range cmdCtx.Registry.List() {
				t.AppendRow(table.Row{
					q,
					cmdCtx.Registry.Qualified(q),
					formatDuration(cmdCtx.Registry.Timeout(q)),
				})
			}
			t.Render()
			return nil
		},
	}
}
