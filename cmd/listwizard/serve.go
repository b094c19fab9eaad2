package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rendis/listwizard/internal/api"
	"github.com/rendis/listwizard/internal/sweeper"
)

const shutdownTimeout = 10 * time.Second

func serveCmd(opts *rootOptions) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the wizard HTTP API with the draft sweeper",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := opts.open(ctx)
			if err != nil {
				return err
			}
			if listen != "" {
				a.cfg.ListenAddr = listen
			}
			return runServer(ctx, a)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (overrides listen_addr)")
	return cmd
}

func runServer(ctx context.Context, a *app) error {
	sw, err := sweeper.New(a.sessions, sweeper.Config{
		Cron:        a.cfg.AutosaveCron,
		IdleTimeout: a.cfg.IdleTimeout,
		Retention:   a.cfg.Retention,
		VacuumEvery: a.cfg.VacuumInterval,
	}, a.logger)
	if err != nil {
		_ = a.close(context.Background())
		return err
	}
	if err := sw.Start(ctx); err != nil {
		_ = a.close(context.Background())
		return err
	}

	srv := &http.Server{
		Addr: a.cfg.ListenAddr,
		Handler: api.NewServer(api.Deps{
			Sessions: a.sessions,
			Hub:      a.hub,
			Logger:   a.logger,
		}).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("listwizard listening",
			slog.String("addr", a.cfg.ListenAddr),
			slog.String("mode", a.cfg.Mode),
			slog.String("db", a.cfg.DBPath),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("http shutdown", slog.String("error", err.Error()))
	}
	if err := sw.Stop(); err != nil {
		a.logger.Warn("sweeper stop", slog.String("error", err.Error()))
	}
	if err := a.close(shutdownCtx); err != nil {
		a.logger.Warn("close sessions", slog.String("error", err.Error()))
	}
	if serveErr != nil {
		return fmt.Errorf("serve: %w", serveErr)
	}
	return nil
}
