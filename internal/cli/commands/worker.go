package commands

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapbase/internal/faillog"
	"github.com/leapstack-labs/leapbase/internal/jobs"
)

// NewWorkerCommand creates the worker command.
func NewWorkerCommand(handlers *jobs.HandlerRegistry) *cobra.Command {
	var queues []string

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run a background job worker",
		Long: `Start a worker that consumes jobs from the configured broker.

Without --queue the worker listens on every registered queue. Jobs run
one at a time; transient database errors are retried with backoff
before the failure is logged.`,
		Example: `  # Consume all queues
  leapbase worker

  # Consume only the long queue
  leapbase worker --queue long`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			failures := faillog.NewStore()
			if err := failures.Open(cmdCtx.Config.FailureLogPath); err != nil {
				return err
			}
			defer failures.Close()

			executor := jobs.NewExecutor(handlers, jobs.NopSessionFactory{}, failures, cmdCtx.Logger)
			worker, err := jobs.NewWorker(cmdCtx.Broker, cmdCtx.Registry, executor, queues, cmdCtx.Logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return worker.Run(ctx)
		},
	}

	cmd.Flags().StringSliceVarP(&queues, "queue", "q", nil, "Queues to consume (default: all)")
	return cmd
}
