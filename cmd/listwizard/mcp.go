package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rendis/listwizard/internal/sweeper"
	"github.com/rendis/listwizard/pkg/mcp"
)

func mcpCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the listing tools over MCP stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.close(context.Background()) }()

			sw, err := sweeper.New(a.sessions, sweeper.Config{
				Cron:        a.cfg.AutosaveCron,
				IdleTimeout: a.cfg.IdleTimeout,
				Retention:   a.cfg.Retention,
				VacuumEvery: a.cfg.VacuumInterval,
			}, a.logger)
			if err != nil {
				return err
			}
			if err := sw.Start(ctx); err != nil {
				return err
			}
			defer func() { _ = sw.Stop() }()

			srv := mcp.NewServer(mcp.ServerDeps{
				Sessions: a.sessions,
				Hub:      a.hub,
				Logger:   a.logger,
			})
			return srv.Serve(ctx)
		},
	}
}
