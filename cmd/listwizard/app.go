package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/rendis/listwizard/internal/catalog"
	"github.com/rendis/listwizard/internal/legacy"
	"github.com/rendis/listwizard/internal/logging"
	"github.com/rendis/listwizard/internal/session"
	"github.com/rendis/listwizard/internal/store"
	"github.com/rendis/listwizard/internal/streaming"
	"github.com/rendis/listwizard/internal/validation"
	"github.com/rendis/listwizard/internal/wizard"
)

// app is the wiring shared by every command: store, hub, engine and the
// session manager on top of them.
type app struct {
	cfg      Config
	logger   *slog.Logger
	store    *store.LibSQLStore
	hub      *streaming.MemoryHub
	sessions *session.Manager
}

func newApp(ctx context.Context, cfg Config) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	mode, _ := wizard.ParseMode(cfg.Mode)
	logger := logging.New(cfg.LogLevel)

	if isLocalPath(cfg.DBPath) {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	st, err := store.NewLibSQLStore(dsn(cfg.DBPath))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}

	cleanup := func(err error) (*app, error) {
		_ = st.Close()
		return nil, err
	}
	v, err := validation.NewJSONSchemaValidator()
	if err != nil {
		return cleanup(err)
	}
	cat, err := catalog.Default(v)
	if err != nil {
		return cleanup(err)
	}
	engine, err := wizard.NewEngine(cat, logger)
	if err != nil {
		return cleanup(err)
	}
	mig, err := legacy.NewMigrator()
	if err != nil {
		return cleanup(err)
	}

	hub := streaming.NewMemoryHub()
	sessions, err := session.NewManager(session.Deps{
		Engine:    engine,
		Store:     st,
		Events:    streaming.Tee{Log: store.NewEventLog(st), Hub: hub},
		Hub:       hub,
		Validator: v,
		Migrator:  mig,
		Mode:      mode,
		Delay:     cfg.CompletionDelay,
		Logger:    logger,
	})
	if err != nil {
		hub.Close()
		return cleanup(err)
	}

	return &app{cfg: cfg, logger: logger, store: st, hub: hub, sessions: sessions}, nil
}

// close exits live sessions, saving their drafts, then releases the store.
func (a *app) close(ctx context.Context) error {
	err := a.sessions.Close(ctx)
	a.hub.Close()
	if cerr := a.store.Close(); err == nil {
		err = cerr
	}
	return err
}

func isLocalPath(path string) bool {
	return !strings.HasPrefix(path, "file:") && !strings.Contains(path, "://")
}

// dsn turns a bare path into a libSQL file DSN.
func dsn(path string) string {
	if isLocalPath(path) {
		return "file:" + path
	}
	return path
}
