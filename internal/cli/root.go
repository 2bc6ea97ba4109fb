// Package cli provides the command-line interface for leapbase.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapbase/internal/cli/commands"
	"github.com/leapstack-labs/leapbase/internal/jobs"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command. Handlers registered
// on the given registry become runnable by the worker command; a nil
// registry means the worker can only drain and fail jobs.
func NewRootCmd(handlers *jobs.HandlerRegistry) *cobra.Command {
	if handlers == nil {
		handlers = jobs.NewHandlerRegistry()
	}

	rootCmd := &cobra.Command{
		Use:   "leapbase",
		Short: "Leapbase - permission-aware query compiler and job runner",
		Long: `Leapbase compiles permission-aware SQL queries and dispatches
background jobs onto namespaced broker queues.

The worker command consumes queues; jobs and queues inspect the broker.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
`)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./leapbase.yaml)")
	rootCmd.PersistentFlags().String("site", "", "Tenant site name")
	rootCmd.PersistentFlags().String("namespace", "", "Queue namespace prefix")
	rootCmd.PersistentFlags().String("dialect", "", "SQL dialect (mariadb|postgres)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")

	rootCmd.AddCommand(commands.NewVersionCommand(Version))
	rootCmd.AddCommand(commands.NewWorkerCommand(handlers))
	rootCmd.AddCommand(commands.NewJobsCommand())
	rootCmd.AddCommand(commands.NewQueuesCommand())
	rootCmd.AddCommand(commands.NewFailuresCommand())

	return rootCmd
}

// Execute runs the root command.
func Execute(handlers *jobs.HandlerRegistry) error {
	rootCmd := NewRootCmd(handlers)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
