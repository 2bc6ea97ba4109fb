// Package commands implements the leapbase CLI subcommands.
package commands

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapbase/internal/config"
	"github.com/leapstack-labs/leapbase/internal/jobs"
	"github.com/leapstack-labs/leapbase/pkg/dialect"
)

// CommandContext bundles the runtime objects most subcommands need.
type CommandContext struct {
	Config   *config.Config
	Broker   jobs.Broker
	Registry *jobs.Registry
	Logger   *slog.Logger
}

// NewCommandContext loads configuration and connects the broker. The
// returned cleanup closes the broker connection.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cfgFile, _ := cmd.Root().PersistentFlags().GetString("config")
	verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose")

	cfg, err := config.Load(cfgFile, cmd.Root().PersistentFlags())
	if err != nil {
		return nil, nil, err
	}
	if _, ok := dialect.Get(cfg.Dialect); !ok {
		return nil, nil, fmt.Errorf("unknown dialect %q, available: %s",
			cfg.Dialect, strings.Join(dialect.List(), ", "))
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	broker := jobs.NewRedisBroker(jobs.BrokerConfig{
		Addr:     cfg.Redis.Addr,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	registry := jobs.NewRegistry(cfg.Namespace, cfg.QueueTimeouts())

	ctx := &CommandContext{
		Config:   cfg,
		Broker:   broker,
		Registry: registry,
		Logger:   logger,
	}
	cleanup := func() {
		if err := broker.Close(); err != nil {
			logger.Warn("failed to close broker", "error", err)
		}
	}
	return ctx, cleanup, nil
}

// formatDuration renders a timeout the way operators read it.
func formatDuration(d time.Duration) string {
	return d.Truncate(time.Second).String()
}
